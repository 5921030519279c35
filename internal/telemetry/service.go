package telemetry

import (
	"context"
	"errors"
	"fmt"
	"iotd/internal/models"
	"iotd/internal/providers"
	"iotd/internal/repository"
	"iotd/internal/structures"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
)

var ErrDeviceNotFound = errors.New("device not found")

const defaultListLimit = 100

type ServiceInterface interface {
	Save(ctx context.Context, deviceID int64, payload []byte) (*models.TelemetrySample, error)
	CheckTemperature(source string, payload []byte) (float64, bool)
	ListByDevice(ctx context.Context, deviceID int64, limit int) ([]models.TelemetrySample, error)
}

type Service struct {
	store     repository.Store
	logger    providers.Logger
	threshold float64
	now       func() time.Time
}

func NewService(conf *structures.Config, store repository.Store, logger providers.Logger) ServiceInterface {
	return &Service{
		store:     store,
		logger:    logger,
		threshold: conf.Monitoring.HighTempThreshold,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Save stores the payload verbatim as a sample of a registered device.
func (s *Service) Save(ctx context.Context, deviceID int64, payload []byte) (*models.TelemetrySample, error) {
	if _, err := s.store.Devices().FindByID(ctx, deviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("device %d: %w", deviceID, ErrDeviceNotFound)
		}
		return nil, err
	}

	sample := &models.TelemetrySample{
		DeviceID:  deviceID,
		Timestamp: s.now(),
		Payload:   string(payload),
	}
	if err := s.store.Telemetry().Save(ctx, sample); err != nil {
		return nil, fmt.Errorf("save telemetry for device %d: %w", deviceID, err)
	}
	s.CheckTemperature(fmt.Sprintf("device %d", deviceID), payload)
	return sample, nil
}

// CheckTemperature logs an alert when the payload reports a temp above the
// configured threshold. A zero threshold disables the check.
func (s *Service) CheckTemperature(source string, payload []byte) (float64, bool) {
	if s.threshold == 0 {
		return 0, false
	}
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return 0, false
	}
	raw, ok := doc["temp"]
	if !ok {
		return 0, false
	}
	temp, err := cast.ToFloat64E(raw)
	if err != nil || temp <= s.threshold {
		return temp, false
	}
	s.logger.Warnf(providers.TypeMonitor, "High temperature alert: %s reports %.1f (threshold %.1f)", source, temp, s.threshold)
	return temp, true
}

func (s *Service) ListByDevice(ctx context.Context, deviceID int64, limit int) ([]models.TelemetrySample, error) {
	if limit <= 0 || limit > 10*defaultListLimit {
		limit = defaultListLimit
	}
	return s.store.Telemetry().FindLatestByDevice(ctx, deviceID, limit)
}
