package repository

import (
	"context"
	"time"

	"github.com/aurak-emp/attendance/internal/entity"
)

type AttendanceRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, attendance *entity.Attendance) error
	GetByID(ctx context.Context, id int64) (*entity.Attendance, error)
	GetByBarcode(ctx context.Context, barcode string) (*entity.Attendance, error)

	// Check-in: атомарный переход NOT_PRESENT -> PRESENT по штрих-коду.
	// Возвращает запись после перехода и признак того, что участник
	// уже был отмечен ранее (повторный скан).
	CheckInByBarcode(ctx context.Context, barcode string, at time.Time) (*entity.Attendance, bool, error)

	// Query operations
	GetPresentByEvent(ctx context.Context, eventID int64) ([]*entity.Attendance, error)
	GetByEventID(ctx context.Context, eventID int64) ([]*entity.Attendance, error)

	// Notification bookkeeping
	MarkNotified(ctx context.Context, id int64) error
	GetUnnotified(ctx context.Context, before time.Time, limit int) ([]*entity.Attendance, error)

	// Statistical operations
	GetEventAttendanceStats(ctx context.Context, eventID int64) (*entity.EventAttendanceStats, error)
}

type EventRepository interface {
	Create(ctx context.Context, event *entity.Event) error
	GetByID(ctx context.Context, id int64) (*entity.Event, error)
	GetAll(ctx context.Context) ([]*entity.Event, error)
	UpdateStatus(ctx context.Context, id int64, status entity.EventStatus) error
	Delete(ctx context.Context, id int64) error
}
