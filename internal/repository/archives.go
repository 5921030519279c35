package repository

import (
	"context"
	"iotd/internal/models"
	"time"

	"gorm.io/gorm"
)

type archiveRepo struct {
	db *gorm.DB
}

func (r *archiveRepo) Save(ctx context.Context, a *models.TelemetryArchive) error {
	a.StartDate = a.StartDate.UTC()
	a.EndDate = a.EndDate.UTC()
	a.ArchivedDate = a.ArchivedDate.UTC()
	return r.db.WithContext(ctx).Save(a).Error
}

// IsRangeArchived reports whether one blob fully covers [start, end).
func (r *archiveRepo) IsRangeArchived(ctx context.Context, deviceID int64, start, end time.Time) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.TelemetryArchive{}).
		Where("device_id = ? AND start_date <= ? AND end_date >= ?", deviceID, start.UTC(), end.UTC()).
		Count(&n).Error
	return n > 0, err
}

func (r *archiveRepo) FindOverlapping(ctx context.Context, deviceID int64, start, end time.Time) ([]models.TelemetryArchive, error) {
	var out []models.TelemetryArchive
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND start_date <= ? AND end_date >= ?", deviceID, end.UTC(), start.UTC()).
		Order("start_date").
		Find(&out).Error
	return out, err
}

func (r *archiveRepo) FindArchivedBefore(ctx context.Context, cutoff time.Time) ([]models.TelemetryArchive, error) {
	var out []models.TelemetryArchive
	err := r.db.WithContext(ctx).
		Where("archived_date < ?", cutoff.UTC()).
		Order("archived_date").
		Find(&out).Error
	return out, err
}

func (r *archiveRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.TelemetryArchive{}, id).Error
}

func (r *archiveRepo) Totals(ctx context.Context) (ArchiveTotals, error) {
	var out ArchiveTotals
	err := r.db.WithContext(ctx).
		Model(&models.TelemetryArchive{}).
		Select("COUNT(*) AS count, " +
			"COALESCE(SUM(original_count), 0) AS original_records, " +
			"COALESCE(AVG(compression_ratio), 0) AS average_ratio, " +
			"COALESCE(SUM(LENGTH(compressed_data)), 0) AS compressed_bytes").
		Scan(&out).Error
	return out, err
}

func (r *archiveRepo) StatsByDevice(ctx context.Context) ([]models.DeviceArchiveStats, error) {
	var out []models.DeviceArchiveStats
	err := r.db.WithContext(ctx).
		Model(&models.TelemetryArchive{}).
		Select("device_id, MAX(device_name) AS device_name, COUNT(*) AS archive_count, " +
			"COALESCE(SUM(original_count), 0) AS original_records, " +
			"COALESCE(AVG(compression_ratio), 0) AS average_ratio").
		Group("device_id").
		Order("device_id").
		Scan(&out).Error
	return out, err
}
