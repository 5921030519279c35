package repository

import (
	"context"
	"iotd/internal/models"
	"time"

	"gorm.io/gorm"
)

type statusRepo struct {
	db *gorm.DB
}

func (r *statusRepo) FindByDeviceID(ctx context.Context, deviceID int64) (*models.DeviceStatus, error) {
	var s models.DeviceStatus
	if err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *statusRepo) Save(ctx context.Context, s *models.DeviceStatus) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *statusRepo) FindAll(ctx context.Context) ([]models.DeviceStatus, error) {
	var out []models.DeviceStatus
	err := r.db.WithContext(ctx).Order("device_id").Find(&out).Error
	return out, err
}

func (r *statusRepo) FindByState(ctx context.Context, state models.DeviceState) ([]models.DeviceStatus, error) {
	var out []models.DeviceStatus
	err := r.db.WithContext(ctx).
		Where("state = ?", state).
		Order("last_seen DESC").
		Find(&out).Error
	return out, err
}

// FindStaleOnline returns ONLINE records with no heartbeat after threshold.
func (r *statusRepo) FindStaleOnline(ctx context.Context, threshold time.Time) ([]models.DeviceStatus, error) {
	var out []models.DeviceStatus
	err := r.db.WithContext(ctx).
		Where("state = ?", models.StateOnline).
		Where("last_heartbeat IS NULL OR last_heartbeat <= ?", threshold.UTC()).
		Order("device_id").
		Find(&out).Error
	return out, err
}

func (r *statusRepo) FindLowBattery(ctx context.Context, threshold int) ([]models.DeviceStatus, error) {
	var out []models.DeviceStatus
	err := r.db.WithContext(ctx).
		Where("state = ? AND battery_level IS NOT NULL AND battery_level < ?", models.StateOnline, threshold).
		Order("device_id").
		Find(&out).Error
	return out, err
}

func (r *statusRepo) FindWeakSignal(ctx context.Context, threshold int) ([]models.DeviceStatus, error) {
	var out []models.DeviceStatus
	err := r.db.WithContext(ctx).
		Where("state = ? AND signal_strength IS NOT NULL AND signal_strength < ?", models.StateOnline, threshold).
		Order("device_id").
		Find(&out).Error
	return out, err
}

func (r *statusRepo) CountByState(ctx context.Context) (map[models.DeviceState]int64, error) {
	var rows []struct {
		State models.DeviceState
		Total int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.DeviceStatus{}).
		Select("state, COUNT(*) AS total").
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.DeviceState]int64, len(rows))
	for _, row := range rows {
		out[row.State] = row.Total
	}
	return out, nil
}

func (r *statusRepo) FindTopUptime(ctx context.Context, limit int) ([]models.DeviceStatus, error) {
	var out []models.DeviceStatus
	err := r.db.WithContext(ctx).
		Order("total_uptime_seconds DESC").
		Order("device_id").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *statusRepo) FindConnectedSince(ctx context.Context, since time.Time) ([]models.DeviceStatus, error) {
	var out []models.DeviceStatus
	err := r.db.WithContext(ctx).
		Where("last_connect_time >= ?", since.UTC()).
		Order("last_connect_time DESC").
		Find(&out).Error
	return out, err
}
