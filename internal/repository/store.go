package repository

import (
	"context"
	"errors"
	"iotd/internal/models"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

type DeviceRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Device, error)
	FindAll(ctx context.Context) ([]models.Device, error)
	FindByIDs(ctx context.Context, ids []int64) (map[int64]models.Device, error)
	Create(ctx context.Context, d *models.Device) error
	Count(ctx context.Context) (int64, error)
}

type StatusRepository interface {
	FindByDeviceID(ctx context.Context, deviceID int64) (*models.DeviceStatus, error)
	Save(ctx context.Context, s *models.DeviceStatus) error
	FindAll(ctx context.Context) ([]models.DeviceStatus, error)
	FindByState(ctx context.Context, state models.DeviceState) ([]models.DeviceStatus, error)
	FindStaleOnline(ctx context.Context, threshold time.Time) ([]models.DeviceStatus, error)
	FindLowBattery(ctx context.Context, threshold int) ([]models.DeviceStatus, error)
	FindWeakSignal(ctx context.Context, threshold int) ([]models.DeviceStatus, error)
	CountByState(ctx context.Context) (map[models.DeviceState]int64, error)
	FindTopUptime(ctx context.Context, limit int) ([]models.DeviceStatus, error)
	FindConnectedSince(ctx context.Context, since time.Time) ([]models.DeviceStatus, error)
}

type TelemetryRepository interface {
	Save(ctx context.Context, s *models.TelemetrySample) error
	FindDeviceIDsBefore(ctx context.Context, cutoff time.Time) ([]int64, error)
	FindFirstBetween(ctx context.Context, deviceID int64, from, to time.Time) (time.Time, error)
	FindByDeviceBetween(ctx context.Context, deviceID int64, start, end time.Time) ([]models.TelemetrySample, error)
	DeleteByDeviceBetween(ctx context.Context, deviceID int64, start, end time.Time) (int64, error)
	FindLatestByDevice(ctx context.Context, deviceID int64, limit int) ([]models.TelemetrySample, error)
	Count(ctx context.Context) (int64, error)
}

type ArchiveTotals struct {
	Count           int64
	OriginalRecords int64
	AverageRatio    float64
	CompressedBytes int64
}

type ArchiveRepository interface {
	Save(ctx context.Context, a *models.TelemetryArchive) error
	IsRangeArchived(ctx context.Context, deviceID int64, start, end time.Time) (bool, error)
	FindOverlapping(ctx context.Context, deviceID int64, start, end time.Time) ([]models.TelemetryArchive, error)
	FindArchivedBefore(ctx context.Context, cutoff time.Time) ([]models.TelemetryArchive, error)
	Delete(ctx context.Context, id int64) error
	Totals(ctx context.Context) (ArchiveTotals, error)
	StatsByDevice(ctx context.Context) ([]models.DeviceArchiveStats, error)
}

type CommandRepository interface {
	Save(ctx context.Context, c *models.Command) error
	FindByID(ctx context.Context, id int64) (*models.Command, error)
	FindByDevice(ctx context.Context, deviceID int64) ([]models.Command, error)
}

// Store groups the repositories that share one database handle. Inside
// Transaction every repository returned by tx runs on the same transaction.
type Store interface {
	Devices() DeviceRepository
	Statuses() StatusRepository
	Telemetry() TelemetryRepository
	Archives() ArchiveRepository
	Commands() CommandRepository
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

func New(db *gorm.DB) (Store, error) {
	err := db.AutoMigrate(
		&models.Device{},
		&models.DeviceStatus{},
		&models.TelemetrySample{},
		&models.TelemetryArchive{},
		&models.Command{},
	)
	if err != nil {
		return nil, err
	}
	return &gormStore{db: db}, nil
}

func (s *gormStore) Devices() DeviceRepository      { return &deviceRepo{db: s.db} }
func (s *gormStore) Statuses() StatusRepository     { return &statusRepo{db: s.db} }
func (s *gormStore) Telemetry() TelemetryRepository { return &telemetryRepo{db: s.db} }
func (s *gormStore) Archives() ArchiveRepository    { return &archiveRepo{db: s.db} }
func (s *gormStore) Commands() CommandRepository    { return &commandRepo{db: s.db} }

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
