package models

import (
	"time"

	"gorm.io/datatypes"
)

type CommandStatus string

const (
	CommandPending  CommandStatus = "PENDING"
	CommandSent     CommandStatus = "SENT"
	CommandExecuted CommandStatus = "EXECUTED"
	CommandFailed   CommandStatus = "FAILED"
	CommandTimeout  CommandStatus = "TIMEOUT"
)

type Command struct {
	ID          int64          `gorm:"primaryKey" json:"id"`
	DeviceID    int64          `gorm:"not null;index" json:"device_id"`
	CommandType string         `gorm:"size:50;not null" json:"command_type"`
	CommandData datatypes.JSON `json:"command_data,omitempty"`
	Status      CommandStatus  `gorm:"size:16;not null" json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	SentAt      *time.Time     `json:"sent_at,omitempty"`
	ExecutedAt  *time.Time     `json:"executed_at,omitempty"`
	Result      string         `gorm:"type:text" json:"result,omitempty"`
}

// CommandEnvelope is the message published on a device's command topic.
type CommandEnvelope struct {
	CommandID int64          `json:"commandId"`
	Type      string         `json:"type"`
	Data      datatypes.JSON `json:"data"`
	Timestamp int64          `json:"timestamp"`
}

func NewCommandEnvelope(c *Command, now time.Time) CommandEnvelope {
	data := c.CommandData
	if len(data) == 0 {
		data = datatypes.JSON("{}")
	}
	return CommandEnvelope{
		CommandID: c.ID,
		Type:      c.CommandType,
		Data:      data,
		Timestamp: now.UnixMilli(),
	}
}
