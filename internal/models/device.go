package models

import "time"

type Device struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Type      string    `gorm:"size:50" json:"type"`
	Status    string    `gorm:"size:20" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
