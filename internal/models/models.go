package models

import (
	"time"
)

// Device represents a monitored remote device. Its heartbeat timestamp is
// the only field mutated by the ingestion path.
type Device struct {
	ID          string     `json:"id" gorm:"primaryKey;Column:id"`
	Description string     `json:"description" gorm:"Column:description"`
	Heartbeat   *time.Time `json:"heartbeat" gorm:"Column:heartbeat"`
	// Optional per-device shared secret required in the Heartbeat-Key header.
	HeartbeatKey string    `json:"-" gorm:"Column:heartbeat_key"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Event is one power-state interval of a device. EndAt is nil while the
// interval is open; closing it is the only mutation after creation.
type Event struct {
	ID        uint       `json:"id" gorm:"primarykey"`
	DeviceID  string     `json:"device_id" gorm:"index;Column:device_id"`
	IsPowerOn bool       `json:"is_power_on" gorm:"Column:is_power_on"`
	StartAt   time.Time  `json:"start_at" gorm:"index;Column:start_at"`
	EndAt     *time.Time `json:"end_at" gorm:"Column:end_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Open reports whether the interval is still ongoing.
func (e *Event) Open() bool {
	return e.EndAt == nil
}

// Subscriber is a notification recipient. A nil DeviceID means the
// subscriber receives transitions for every device.
type Subscriber struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	ChatID    int64     `json:"chat_id" gorm:"uniqueIndex;Column:chat_id"`
	IsActive  bool      `json:"is_active" gorm:"Column:is_active"`
	DeviceID  *string   `json:"device_id" gorm:"Column:device_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
