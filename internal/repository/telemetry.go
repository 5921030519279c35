package repository

import (
	"context"
	"iotd/internal/models"
	"time"

	"gorm.io/gorm"
)

type telemetryRepo struct {
	db *gorm.DB
}

func (r *telemetryRepo) Save(ctx context.Context, s *models.TelemetrySample) error {
	s.Timestamp = s.Timestamp.UTC()
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *telemetryRepo) FindDeviceIDsBefore(ctx context.Context, cutoff time.Time) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.TelemetrySample{}).
		Where("ts < ?", cutoff.UTC()).
		Distinct().
		Order("device_id").
		Pluck("device_id", &ids).Error
	return ids, err
}

// FindFirstBetween returns the earliest sample time with from <= ts < to, or
// ErrNotFound.
func (r *telemetryRepo) FindFirstBetween(ctx context.Context, deviceID int64, from, to time.Time) (time.Time, error) {
	var out []time.Time
	err := r.db.WithContext(ctx).
		Model(&models.TelemetrySample{}).
		Where("device_id = ? AND ts >= ? AND ts < ?", deviceID, from.UTC(), to.UTC()).
		Order("ts").
		Limit(1).
		Pluck("ts", &out).Error
	if err != nil {
		return time.Time{}, err
	}
	if len(out) == 0 {
		return time.Time{}, ErrNotFound
	}
	return out[0].UTC(), nil
}

// FindByDeviceBetween returns samples with start <= ts < end ordered by time.
func (r *telemetryRepo) FindByDeviceBetween(ctx context.Context, deviceID int64, start, end time.Time) ([]models.TelemetrySample, error) {
	var out []models.TelemetrySample
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND ts >= ? AND ts < ?", deviceID, start.UTC(), end.UTC()).
		Order("ts").
		Order("id").
		Find(&out).Error
	return out, err
}

func (r *telemetryRepo) DeleteByDeviceBetween(ctx context.Context, deviceID int64, start, end time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("device_id = ? AND ts >= ? AND ts < ?", deviceID, start.UTC(), end.UTC()).
		Delete(&models.TelemetrySample{})
	return res.RowsAffected, res.Error
}

func (r *telemetryRepo) FindLatestByDevice(ctx context.Context, deviceID int64, limit int) ([]models.TelemetrySample, error) {
	var out []models.TelemetrySample
	err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("ts DESC").
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *telemetryRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.TelemetrySample{}).Count(&n).Error
	return n, err
}
