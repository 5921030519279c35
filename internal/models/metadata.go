package models

import (
	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
)

// DeviceMetadata carries the optional fields a device may report alongside
// telemetry, heartbeat or status messages. A nil field was absent or invalid.
type DeviceMetadata struct {
	FirmwareVersion *string `json:"firmware,omitempty"`
	IPAddress       *string `json:"ip,omitempty"`
	SignalStrength  *int    `json:"signal,omitempty"`
	BatteryLevel    *int    `json:"battery,omitempty"`
}

func (m DeviceMetadata) IsEmpty() bool {
	return m.FirmwareVersion == nil && m.IPAddress == nil && m.SignalStrength == nil && m.BatteryLevel == nil
}

// ParseMetadata extracts metadata from a JSON object payload. Payloads that
// are not a JSON object yield empty metadata; individual fields that cannot
// be converted are skipped.
func ParseMetadata(payload []byte) DeviceMetadata {
	var meta DeviceMetadata
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return meta
	}

	if v, ok := doc["firmware"]; ok {
		if s, err := cast.ToStringE(v); err == nil && s != "" {
			meta.FirmwareVersion = &s
		}
	}
	if v, ok := doc["ip"]; ok {
		if s, err := cast.ToStringE(v); err == nil && s != "" {
			meta.IPAddress = &s
		}
	}
	if v, ok := doc["signal"]; ok {
		if n, ok := toInt(v); ok {
			meta.SignalStrength = &n
		}
	}
	if v, ok := doc["battery"]; ok {
		if n, ok := toInt(v); ok && n >= 0 && n <= 100 {
			meta.BatteryLevel = &n
		}
	}
	return meta
}

func toInt(v any) (int, bool) {
	switch v.(type) {
	case bool, nil, map[string]any, []any:
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return int(f), true
}
