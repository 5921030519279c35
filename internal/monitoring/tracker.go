package monitoring

import (
	"context"
	"errors"
	"fmt"
	"iotd/internal/models"
	"iotd/internal/providers"
	"iotd/internal/repository"
	"iotd/internal/structures"
	"sync"
	"time"
)

var ErrDeviceNotRegistered = errors.New("device not registered")

type AlertKind string

const (
	AlertLowBattery AlertKind = "low_battery"
	AlertWeakSignal AlertKind = "weak_signal"
)

type Alert struct {
	DeviceID int64     `json:"device_id"`
	Kind     AlertKind `json:"kind"`
	Value    int       `json:"value"`
}

type Overview struct {
	TotalDevices      int64                        `json:"total_devices"`
	OnlineDevices     int64                        `json:"online_devices"`
	OfflineDevices    int64                        `json:"offline_devices"`
	ByState           map[models.DeviceState]int64 `json:"by_state"`
	LowBatteryDevices int                          `json:"low_battery_devices"`
	WeakSignalDevices int                          `json:"weak_signal_devices"`
	SubscribedDevices int64                        `json:"subscribed_devices"`
	GeneratedAt       time.Time                    `json:"generated_at"`
}

type TrackerInterface interface {
	MarkOnline(ctx context.Context, deviceID int64, meta models.DeviceMetadata) error
	UpdateHeartbeat(ctx context.Context, deviceID int64, meta models.DeviceMetadata) error
	MarkOffline(ctx context.Context, deviceID int64) error
	CheckTimeouts(ctx context.Context) (int, error)
	CheckAlerts(ctx context.Context) ([]Alert, error)

	GetDeviceStatus(ctx context.Context, deviceID int64) (*models.DeviceStatus, error)
	GetAllStatuses(ctx context.Context) ([]models.DeviceStatus, error)
	GetByState(ctx context.Context, state models.DeviceState) ([]models.DeviceStatus, error)
	GetTopUptime(ctx context.Context, limit int) ([]models.DeviceStatus, error)
	GetRecentlyConnected(ctx context.Context, hours int) ([]models.DeviceStatus, error)
	GetOverview(ctx context.Context) (*Overview, error)

	ShouldSubscribe(ctx context.Context, deviceID int64) bool
	MarkSubscribed(ctx context.Context, deviceID int64)
	ResetSubscriptions(ctx context.Context)
}

// Tracker owns every DeviceStatus mutation. Mutations for one device are
// serialized in-process and each runs in a single transaction.
type Tracker struct {
	conf    *structures.MonitoringConfig
	store   repository.Store
	subs    SubscriptionCache
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
	locks   [lockStripes]sync.Mutex
	now     func() time.Time
}

func NewTracker(conf *structures.Config, store repository.Store, subs SubscriptionCache, logger providers.Logger, metrics providers.MetricsProviderInterface) TrackerInterface {
	return &Tracker{
		conf:    &conf.Monitoring,
		store:   store,
		subs:    subs,
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// lockStripes bounds the lock table. Devices sharing a stripe serialize
// against each other.
const lockStripes = 64

func (t *Tracker) lock(deviceID int64) func() {
	mu := &t.locks[uint64(deviceID)%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// loadOrCreate returns the device's status record, creating an unsaved one
// when the device is registered but has never been seen.
func (t *Tracker) loadOrCreate(ctx context.Context, tx repository.Store, deviceID int64) (*models.DeviceStatus, error) {
	status, err := tx.Statuses().FindByDeviceID(ctx, deviceID)
	if err == nil {
		return status, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err = tx.Devices().FindByID(ctx, deviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("device %d: %w", deviceID, ErrDeviceNotRegistered)
		}
		return nil, err
	}
	return models.NewDeviceStatus(deviceID), nil
}

func (t *Tracker) MarkOnline(ctx context.Context, deviceID int64, meta models.DeviceMetadata) error {
	unlock := t.lock(deviceID)
	defer unlock()
	return t.markOnline(ctx, deviceID, meta)
}

func (t *Tracker) markOnline(ctx context.Context, deviceID int64, meta models.DeviceMetadata) error {
	var transitioned bool
	err := t.store.Transaction(ctx, func(tx repository.Store) error {
		status, err := t.loadOrCreate(ctx, tx, deviceID)
		if err != nil {
			return err
		}
		transitioned = !status.IsOnline()
		status.MarkOnline(t.now())
		status.ApplyMetadata(meta)
		return tx.Statuses().Save(ctx, status)
	})
	if err != nil {
		return t.reportMutationError("mark online", deviceID, err)
	}
	if transitioned {
		t.metrics.IncStateTransitions(string(models.StateOnline))
		t.logger.Infof(providers.TypeMonitor, "Device %d is ONLINE", deviceID)
	}
	return nil
}

func (t *Tracker) UpdateHeartbeat(ctx context.Context, deviceID int64, meta models.DeviceMetadata) error {
	unlock := t.lock(deviceID)
	defer unlock()

	var created bool
	err := t.store.Transaction(ctx, func(tx repository.Store) error {
		status, err := tx.Statuses().FindByDeviceID(ctx, deviceID)
		if errors.Is(err, repository.ErrNotFound) {
			created = true
			return nil
		}
		if err != nil {
			return err
		}
		status.UpdateHeartbeat(t.now())
		status.ApplyMetadata(meta)
		return tx.Statuses().Save(ctx, status)
	})
	if err != nil {
		return t.reportMutationError("heartbeat", deviceID, err)
	}
	if created {
		return t.markOnline(ctx, deviceID, meta)
	}
	t.logger.Debugf(providers.TypeMonitor, "Heartbeat from device %d", deviceID)
	return nil
}

func (t *Tracker) MarkOffline(ctx context.Context, deviceID int64) error {
	_, err := t.markOffline(ctx, deviceID, nil)
	return err
}

// markOffline transitions an ONLINE device to OFFLINE. A non-nil staleBefore
// skips devices whose heartbeat, re-read under the device lock, is newer
// than it.
func (t *Tracker) markOffline(ctx context.Context, deviceID int64, staleBefore *time.Time) (bool, error) {
	unlock := t.lock(deviceID)
	defer unlock()

	var uptime int64
	var transitioned bool
	err := t.store.Transaction(ctx, func(tx repository.Store) error {
		status, err := tx.Statuses().FindByDeviceID(ctx, deviceID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !status.IsOnline() {
			return nil
		}
		if staleBefore != nil && status.LastHeartbeat != nil && status.LastHeartbeat.After(*staleBefore) {
			return nil
		}
		status.MarkOffline(t.now())
		transitioned = true
		uptime = status.TotalUptimeSeconds
		return tx.Statuses().Save(ctx, status)
	})
	if err != nil {
		return false, t.reportMutationError("mark offline", deviceID, err)
	}
	if transitioned {
		t.metrics.IncStateTransitions(string(models.StateOffline))
		t.logger.Infof(providers.TypeMonitor, "Device %d is OFFLINE, total uptime %ds", deviceID, uptime)
	}
	return transitioned, nil
}

func (t *Tracker) reportMutationError(op string, deviceID int64, err error) error {
	if errors.Is(err, ErrDeviceNotRegistered) {
		t.logger.Warnf(providers.TypeMonitor, "Ignoring %s for unregistered device %d", op, deviceID)
	} else {
		t.logger.Errorf(providers.TypeMonitor, "Failed to %s device %d: %s", op, deviceID, err)
	}
	return err
}

// CheckTimeouts marks offline every ONLINE device without a heartbeat during
// the configured timeout. It returns the number of devices transitioned.
func (t *Tracker) CheckTimeouts(ctx context.Context) (int, error) {
	threshold := t.now().Add(-t.conf.DeviceTimeout)
	stale, err := t.store.Statuses().FindStaleOnline(ctx, threshold)
	if err != nil {
		t.logger.Errorf(providers.TypeMonitor, "Timeout sweep query failed: %s", err)
		return 0, err
	}

	n := 0
	for _, status := range stale {
		transitioned, err := t.markOffline(ctx, status.DeviceID, &threshold)
		if err != nil || !transitioned {
			continue
		}
		t.logger.Warnf(providers.TypeMonitor, "Device %d timed out (last heartbeat %v)", status.DeviceID, status.LastHeartbeat)
		n++
	}
	if n > 0 {
		t.logger.Infof(providers.TypeMonitor, "Timeout sweep marked %d devices offline", n)
	}
	return n, nil
}

// CheckAlerts reports ONLINE devices with low battery or a weak signal.
// It never changes device state.
func (t *Tracker) CheckAlerts(ctx context.Context) ([]Alert, error) {
	var alerts []Alert

	lowBattery, err := t.store.Statuses().FindLowBattery(ctx, t.conf.LowBatteryThreshold)
	if err != nil {
		t.logger.Errorf(providers.TypeMonitor, "Battery alert query failed: %s", err)
		return nil, err
	}
	for _, s := range lowBattery {
		alerts = append(alerts, Alert{DeviceID: s.DeviceID, Kind: AlertLowBattery, Value: *s.BatteryLevel})
	}

	weakSignal, err := t.store.Statuses().FindWeakSignal(ctx, t.conf.WeakSignalThreshold)
	if err != nil {
		t.logger.Errorf(providers.TypeMonitor, "Signal alert query failed: %s", err)
		return nil, err
	}
	for _, s := range weakSignal {
		alerts = append(alerts, Alert{DeviceID: s.DeviceID, Kind: AlertWeakSignal, Value: *s.SignalStrength})
	}

	for _, a := range alerts {
		t.metrics.IncAlerts(string(a.Kind))
		switch a.Kind {
		case AlertLowBattery:
			t.logger.Warnf(providers.TypeMonitor, "Low battery alert: device %d at %d%%", a.DeviceID, a.Value)
		case AlertWeakSignal:
			t.logger.Warnf(providers.TypeMonitor, "Weak signal alert: device %d at %d dBm", a.DeviceID, a.Value)
		}
	}
	return alerts, nil
}

func (t *Tracker) GetDeviceStatus(ctx context.Context, deviceID int64) (*models.DeviceStatus, error) {
	return t.store.Statuses().FindByDeviceID(ctx, deviceID)
}

func (t *Tracker) GetAllStatuses(ctx context.Context) ([]models.DeviceStatus, error) {
	return t.store.Statuses().FindAll(ctx)
}

func (t *Tracker) GetByState(ctx context.Context, state models.DeviceState) ([]models.DeviceStatus, error) {
	return t.store.Statuses().FindByState(ctx, state)
}

func (t *Tracker) GetTopUptime(ctx context.Context, limit int) ([]models.DeviceStatus, error) {
	if limit <= 0 {
		limit = 10
	}
	return t.store.Statuses().FindTopUptime(ctx, limit)
}

func (t *Tracker) GetRecentlyConnected(ctx context.Context, hours int) ([]models.DeviceStatus, error) {
	if hours <= 0 {
		hours = 24
	}
	return t.store.Statuses().FindConnectedSince(ctx, t.now().Add(-time.Duration(hours)*time.Hour))
}

// GetOverview counts every registered device in TotalDevices. Devices that
// have never connected have no status record and appear in neither the
// online nor the offline count.
func (t *Tracker) GetOverview(ctx context.Context) (*Overview, error) {
	total, err := t.store.Devices().Count(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := t.store.Statuses().CountByState(ctx)
	if err != nil {
		return nil, err
	}
	lowBattery, err := t.store.Statuses().FindLowBattery(ctx, t.conf.LowBatteryThreshold)
	if err != nil {
		return nil, err
	}
	weakSignal, err := t.store.Statuses().FindWeakSignal(ctx, t.conf.WeakSignalThreshold)
	if err != nil {
		return nil, err
	}
	subscribed, err := t.subs.Len(ctx)
	if err != nil {
		t.logger.Warnf(providers.TypeMonitor, "Subscription cache size unavailable: %s", err)
	}

	o := &Overview{
		TotalDevices:      total,
		ByState:           counts,
		OnlineDevices:     counts[models.StateOnline],
		OfflineDevices:    counts[models.StateOffline],
		LowBatteryDevices: len(lowBattery),
		WeakSignalDevices: len(weakSignal),
		SubscribedDevices: subscribed,
		GeneratedAt:       t.now(),
	}
	return o, nil
}

// ShouldSubscribe reports whether the device's topic set still needs a bus
// subscription. Cache failures answer true; a duplicate subscribe is harmless.
func (t *Tracker) ShouldSubscribe(ctx context.Context, deviceID int64) bool {
	ok, err := t.subs.Contains(ctx, deviceID)
	if err != nil {
		t.logger.Warnf(providers.TypeMonitor, "Subscription cache lookup for device %d failed: %s", deviceID, err)
		return true
	}
	return !ok
}

func (t *Tracker) MarkSubscribed(ctx context.Context, deviceID int64) {
	if err := t.subs.Add(ctx, deviceID); err != nil {
		t.logger.Warnf(providers.TypeMonitor, "Subscription cache update for device %d failed: %s", deviceID, err)
	}
}

func (t *Tracker) ResetSubscriptions(ctx context.Context) {
	if err := t.subs.Reset(ctx); err != nil {
		t.logger.Warnf(providers.TypeMonitor, "Subscription cache reset failed: %s", err)
		return
	}
	t.logger.Infof(providers.TypeMonitor, "Subscription cache cleared")
}
