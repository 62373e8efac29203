package service

import (
	"context"
	"time"

	"github.com/aurak-emp/attendance/internal/entity"
)

// AttendanceService определяет интерфейс для операций с посещаемостью
type AttendanceService interface {
	// Основные операции
	Register(ctx context.Context, req *RegisterRequest) (*RegisterResult, error)
	CheckIn(ctx context.Context, barcode string) (*entity.CheckInResult, error)
	GetPresent(ctx context.Context, eventID int64) ([]*entity.Attendance, error)

	// Дополнительные операции
	GetAttendance(ctx context.Context, id int64) (*entity.Attendance, error)
	GetEventRoster(ctx context.Context, eventID int64) ([]*entity.Attendance, error)
	GetEventStats(ctx context.Context, eventID int64) (*entity.EventAttendanceStats, error)

	// Доставка уведомлений
	MarkNotified(ctx context.Context, id int64) error
	RedispatchPending(ctx context.Context, before time.Time, limit int) (int, error)
}

// EventService определяет интерфейс для операций с мероприятиями
type EventService interface {
	CreateEvent(ctx context.Context, req *CreateEventRequest) (*entity.Event, error)
	GetEvent(ctx context.Context, id int64) (*entity.Event, error)
	GetAllEvents(ctx context.Context) ([]*entity.Event, error)
	UpdateEventStatus(ctx context.Context, id int64, status entity.EventStatus) error
	DeleteEvent(ctx context.Context, id int64) error
}

// TaskPublisher интерфейс для публикации задач в очередь
type TaskPublisher interface {
	Publish(ctx context.Context, task *Task) error
}

// Task представляет задачу для очереди
type Task struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	ExecuteAt  time.Time              `json:"execute_at"`
	MaxRetries int                    `json:"max_retries"`
	Attempts   int                    `json:"attempts"`
}

// Константы типов задач
const (
	TaskTypeSendBarcode   = "send_barcode_email"
	TaskTypeResendPending = "resend_pending_notifications"
)
