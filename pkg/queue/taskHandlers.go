package queue

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aurak-emp/attendance/internal/pkg/barcode"
	"github.com/aurak-emp/attendance/internal/pkg/mailer"
	"github.com/aurak-emp/attendance/internal/pkg/storage"
	"github.com/aurak-emp/attendance/internal/service"
)

// TaskHandler обрабатывает задачи доставки штрих-кодов
type TaskHandler struct {
	attendanceService service.AttendanceService
	renderer          *barcode.Renderer
	mailer            mailer.Mailer
	storage           storage.FileStorage
}

// NewTaskHandler создает новый обработчик задач
func NewTaskHandler(attendanceService service.AttendanceService, renderer *barcode.Renderer, m mailer.Mailer, fs storage.FileStorage) *TaskHandler {
	return &TaskHandler{
		attendanceService: attendanceService,
		renderer:          renderer,
		mailer:            m,
		storage:           fs,
	}
}

// HandleTask routes a task to its handler by type
func (h *TaskHandler) HandleTask(task *Task) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch task.Type {
	case TaskTypeSendBarcode:
		return h.handleSendBarcode(ctx, task)
	case TaskTypeResendPending:
		return h.handleResendPending(ctx, task)
	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
}

// handleSendBarcode renders the attendee's barcode and emails it
func (h *TaskHandler) handleSendBarcode(ctx context.Context, task *Task) error {
	attendanceID := task.GetInt64("attendance_id")
	if attendanceID == 0 {
		return fmt.Errorf("invalid task data: attendance_id is required")
	}
	eventName := task.GetString("event_name")

	attendance, err := h.attendanceService.GetAttendance(ctx, attendanceID)
	if err != nil {
		return fmt.Errorf("failed to load attendance %d: %v", attendanceID, err)
	}

	// Доставка уже подтверждена другим воркером
	if attendance.Notified {
		logrus.WithField("attendance_id", attendanceID).Debug("Attendance already notified, skipping")
		return nil
	}

	png, err := h.renderer.RenderPNG(attendance.Barcode)
	if err != nil {
		return fmt.Errorf("failed to render barcode %s: %v", attendance.Barcode, err)
	}

	// Сохраняем артефакт для повторной отправки
	artifactPath := fmt.Sprintf("%s.png", attendance.Barcode)
	if err := h.storage.Save(artifactPath, bytes.NewReader(png)); err != nil {
		logrus.WithError(err).WithField("path", artifactPath).Warn("Failed to persist barcode artifact")
	}

	if err := h.mailer.SendBarcode(attendance.Email, attendance.FullName(), eventName, png); err != nil {
		return fmt.Errorf("failed to send barcode email to %s: %v", attendance.Email, err)
	}

	if err := h.attendanceService.MarkNotified(ctx, attendanceID); err != nil {
		return fmt.Errorf("failed to mark attendance %d as notified: %v", attendanceID, err)
	}

	logrus.WithFields(logrus.Fields{
		"attendance_id": attendanceID,
		"email":         attendance.Email,
		"barcode":       attendance.Barcode,
	}).Info("Barcode email delivered")

	return nil
}

// handleResendPending re-dispatches delivery for stale unnotified registrations
func (h *TaskHandler) handleResendPending(ctx context.Context, task *Task) error {
	before := task.GetTime("before")
	if before.IsZero() {
		before = time.Now().Add(-10 * time.Minute)
	}
	limit := int(task.GetInt64("limit"))
	if limit <= 0 {
		limit = 100
	}

	count, err := h.attendanceService.RedispatchPending(ctx, before, limit)
	if err != nil {
		return fmt.Errorf("failed to redispatch pending notifications: %v", err)
	}

	if count > 0 {
		logrus.WithField("count", count).Info("Re-dispatched pending barcode deliveries")
	}

	return nil
}
