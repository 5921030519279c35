package models

import "time"

type ArchiveType string

const (
	ArchiveHourly  ArchiveType = "HOURLY"
	ArchiveDaily   ArchiveType = "DAILY"
	ArchiveWeekly  ArchiveType = "WEEKLY"
	ArchiveMonthly ArchiveType = "MONTHLY"
)

// TelemetryArchive holds the compressed samples of one device for the
// half-open interval [StartDate, EndDate).
type TelemetryArchive struct {
	ID               int64       `gorm:"primaryKey" json:"id"`
	DeviceID         int64       `gorm:"not null;index:idx_archive_device_range,priority:1" json:"device_id"`
	DeviceName       string      `gorm:"size:100" json:"device_name"`
	OriginalCount    int         `gorm:"not null" json:"original_count"`
	StartDate        time.Time   `gorm:"not null;index:idx_archive_device_range,priority:2" json:"start_date"`
	EndDate          time.Time   `gorm:"not null;index:idx_archive_device_range,priority:3" json:"end_date"`
	ArchivedDate     time.Time   `gorm:"not null;index" json:"archived_date"`
	CompressedData   []byte      `gorm:"not null" json:"-"`
	CompressionRatio float64     `json:"compression_ratio"`
	ArchiveType      ArchiveType `gorm:"size:16;not null" json:"archive_type"`
	CreatedAt        time.Time   `json:"created_at"`
}

// ArchiveRecord is the serialized shape of a sample inside an archive blob.
type ArchiveRecord struct {
	ID         int64     `json:"id"`
	DeviceID   int64     `json:"deviceId"`
	DeviceName string    `json:"deviceName"`
	Timestamp  time.Time `json:"ts"`
	Payload    string    `json:"payload"`
}

func NewArchiveRecord(s TelemetrySample, deviceName string) ArchiveRecord {
	return ArchiveRecord{
		ID:         s.ID,
		DeviceID:   s.DeviceID,
		DeviceName: deviceName,
		Timestamp:  s.Timestamp,
		Payload:    s.Payload,
	}
}

// Sample rehydrates the record. Only identity, time and payload survive.
func (r ArchiveRecord) Sample() TelemetrySample {
	return TelemetrySample{
		ID:         r.ID,
		DeviceID:   r.DeviceID,
		DeviceName: r.DeviceName,
		Timestamp:  r.Timestamp,
		Payload:    r.Payload,
	}
}

type DeviceArchiveStats struct {
	DeviceID        int64   `json:"device_id"`
	DeviceName      string  `json:"device_name"`
	ArchiveCount    int64   `json:"archive_count"`
	OriginalRecords int64   `json:"original_records"`
	AverageRatio    float64 `json:"average_ratio"`
}

type ArchiveStatistics struct {
	TotalArchives        int64                `json:"total_archives"`
	TotalOriginalRecords int64                `json:"total_original_records"`
	AverageRatio         float64              `json:"average_compression_ratio"`
	Devices              []DeviceArchiveStats `json:"devices"`
}

type StorageUsage struct {
	LiveSamples      int64 `json:"live_samples"`
	Archives         int64 `json:"archives"`
	ArchivedRecords  int64 `json:"archived_records"`
	CompressedBytes  int64 `json:"compressed_bytes"`
	ColdArchiveFiles int   `json:"cold_archive_files"`
}
