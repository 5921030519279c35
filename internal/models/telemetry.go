package models

import "time"

// TelemetrySample is one raw reading as received from the bus. Payload is
// kept verbatim.
type TelemetrySample struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	DeviceID   int64     `gorm:"not null;index:idx_telemetry_device_ts,priority:1" json:"device_id"`
	Timestamp  time.Time `gorm:"column:ts;not null;index:idx_telemetry_device_ts,priority:2" json:"ts"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	DeviceName string    `gorm:"-" json:"device_name,omitempty"`
}
