package commands

import (
	"context"
	"errors"
	"fmt"
	"iotd/internal/models"
	"iotd/internal/providers"
	"iotd/internal/repository"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"gorm.io/datatypes"
)

var (
	ErrDeviceNotFound  = errors.New("device not found")
	ErrCommandNotFound = errors.New("command not found")
	ErrInvalidCommand  = errors.New("invalid command")
)

// Publisher delivers a command envelope to its device.
type Publisher interface {
	PublishCommand(cmd *models.Command) bool
}

type ServiceInterface interface {
	Send(ctx context.Context, deviceID int64, commandType string, data []byte) (*models.Command, error)
	UpdateResult(ctx context.Context, id int64, result string, success bool) (*models.Command, error)
	ListByDevice(ctx context.Context, deviceID int64) ([]models.Command, error)
	Get(ctx context.Context, id int64) (*models.Command, error)
}

type Service struct {
	store     repository.Store
	publisher Publisher
	logger    providers.Logger
	now       func() time.Time
}

func NewService(store repository.Store, publisher Publisher, logger providers.Logger) ServiceInterface {
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Send records the command and publishes it once. The stored status is SENT
// when the bus client accepted the publish and FAILED otherwise.
func (s *Service) Send(ctx context.Context, deviceID int64, commandType string, data []byte) (*models.Command, error) {
	commandType = strings.TrimSpace(commandType)
	if commandType == "" || len(commandType) > 50 {
		return nil, fmt.Errorf("%w: type must be 1-50 characters", ErrInvalidCommand)
	}
	if string(data) == "null" {
		data = nil
	}
	if len(data) > 0 && !json.Valid(data) {
		return nil, fmt.Errorf("%w: data is not valid JSON", ErrInvalidCommand)
	}
	if _, err := s.store.Devices().FindByID(ctx, deviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("device %d: %w", deviceID, ErrDeviceNotFound)
		}
		return nil, err
	}

	cmd := &models.Command{
		DeviceID:    deviceID,
		CommandType: commandType,
		CommandData: datatypes.JSON(data),
		Status:      models.CommandPending,
		CreatedAt:   s.now(),
	}
	if err := s.store.Commands().Save(ctx, cmd); err != nil {
		return nil, fmt.Errorf("save command: %w", err)
	}

	if s.publisher.PublishCommand(cmd) {
		sentAt := s.now()
		cmd.Status = models.CommandSent
		cmd.SentAt = &sentAt
		s.logger.Infof(providers.TypeMqtt, "Command %d (%s) sent to device %d", cmd.ID, cmd.CommandType, deviceID)
	} else {
		cmd.Status = models.CommandFailed
		s.logger.Warnf(providers.TypeMqtt, "Command %d (%s) for device %d was not published", cmd.ID, cmd.CommandType, deviceID)
	}
	if err := s.store.Commands().Save(ctx, cmd); err != nil {
		return nil, fmt.Errorf("update command %d: %w", cmd.ID, err)
	}
	return cmd, nil
}

func (s *Service) UpdateResult(ctx context.Context, id int64, result string, success bool) (*models.Command, error) {
	cmd, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	executedAt := s.now()
	cmd.ExecutedAt = &executedAt
	cmd.Result = result
	if success {
		cmd.Status = models.CommandExecuted
	} else {
		cmd.Status = models.CommandFailed
	}
	if err := s.store.Commands().Save(ctx, cmd); err != nil {
		return nil, fmt.Errorf("update command %d: %w", id, err)
	}
	return cmd, nil
}

func (s *Service) ListByDevice(ctx context.Context, deviceID int64) ([]models.Command, error) {
	return s.store.Commands().FindByDevice(ctx, deviceID)
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Command, error) {
	cmd, err := s.store.Commands().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("command %d: %w", id, ErrCommandNotFound)
		}
		return nil, err
	}
	return cmd, nil
}
