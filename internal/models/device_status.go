package models

import "time"

type DeviceState string

const (
	StateOnline  DeviceState = "ONLINE"
	StateOffline DeviceState = "OFFLINE"
	StateUnknown DeviceState = "UNKNOWN"
)

// DeviceStatus is the per-device connectivity record. It is created lazily on
// the first online/heartbeat event for a registered device.
type DeviceStatus struct {
	ID                 int64       `gorm:"primaryKey" json:"id"`
	DeviceID           int64       `gorm:"uniqueIndex;not null" json:"device_id"`
	State              DeviceState `gorm:"size:16;index;not null;default:UNKNOWN" json:"state"`
	LastSeen           *time.Time  `json:"last_seen,omitempty"`
	LastHeartbeat      *time.Time  `json:"last_heartbeat,omitempty"`
	ConnectionCount    int64       `gorm:"not null;default:0" json:"connection_count"`
	TotalUptimeSeconds int64       `gorm:"not null;default:0" json:"total_uptime_seconds"`
	LastConnectTime    *time.Time  `json:"last_connect_time,omitempty"`
	LastDisconnectTime *time.Time  `json:"last_disconnect_time,omitempty"`
	FirmwareVersion    *string     `gorm:"size:50" json:"firmware_version,omitempty"`
	IPAddress          *string     `gorm:"size:45" json:"ip_address,omitempty"`
	SignalStrength     *int        `json:"signal_strength,omitempty"`
	BatteryLevel       *int        `json:"battery_level,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

func NewDeviceStatus(deviceID int64) *DeviceStatus {
	return &DeviceStatus{DeviceID: deviceID, State: StateUnknown}
}

func (s *DeviceStatus) IsOnline() bool {
	return s.State == StateOnline
}

// MarkOnline transitions the record to ONLINE. Only a transition from a
// not-online state opens a new session and bumps the connection count.
func (s *DeviceStatus) MarkOnline(now time.Time) {
	if !s.IsOnline() {
		s.LastConnectTime = timePtr(now)
		s.ConnectionCount++
	}
	s.State = StateOnline
	s.LastSeen = timePtr(now)
	s.LastHeartbeat = timePtr(now)
}

// MarkOffline closes the current session and accumulates its uptime in whole
// seconds. Records that are not ONLINE are left untouched.
func (s *DeviceStatus) MarkOffline(now time.Time) {
	if !s.IsOnline() {
		return
	}
	if s.LastConnectTime != nil {
		if session := now.Unix() - s.LastConnectTime.Unix(); session > 0 {
			s.TotalUptimeSeconds += session
		}
	}
	s.State = StateOffline
	s.LastDisconnectTime = timePtr(now)
}

func (s *DeviceStatus) UpdateHeartbeat(now time.Time) {
	s.LastHeartbeat = timePtr(now)
	s.LastSeen = timePtr(now)
}

func (s *DeviceStatus) HasTimedOut(now time.Time, timeout time.Duration) bool {
	if s.LastHeartbeat == nil {
		return true
	}
	return now.Sub(*s.LastHeartbeat) > timeout
}

// ApplyMetadata overwrites only the fields present in meta.
func (s *DeviceStatus) ApplyMetadata(meta DeviceMetadata) {
	if meta.FirmwareVersion != nil {
		s.FirmwareVersion = meta.FirmwareVersion
	}
	if meta.IPAddress != nil {
		s.IPAddress = meta.IPAddress
	}
	if meta.SignalStrength != nil {
		s.SignalStrength = meta.SignalStrength
	}
	if meta.BatteryLevel != nil {
		s.BatteryLevel = meta.BatteryLevel
	}
}

func timePtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
