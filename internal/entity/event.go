package entity

import (
	"time"
)

type EventStatus string

const (
	EventStatusPending  EventStatus = "Pending"
	EventStatusApproved EventStatus = "Approved"
	EventStatusDenied   EventStatus = "Denied"
)

type Event struct {
	ID          int64       `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Description string      `json:"description" db:"description"`
	Host        string      `json:"host" db:"host"`
	Venue       string      `json:"venue" db:"venue"`
	Status      EventStatus `json:"status" db:"status"`
	StartTime   time.Time   `json:"start_time" db:"start_time"`
	EndTime     time.Time   `json:"end_time" db:"end_time"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}
