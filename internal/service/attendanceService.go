package service

import (
	"context"
	"fmt"
	"time"

	repository "github.com/aurak-emp/attendance/internal/database/postgres"
	"github.com/aurak-emp/attendance/internal/entity"
	"github.com/aurak-emp/attendance/internal/pkg/barcode"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Ограниченное число попыток вставки при коллизии штрих-кода
const maxBarcodeAttempts = 3

// RegisterRequest представляет данные регистрации участника
type RegisterRequest struct {
	EventID             int64  `json:"event_ref" binding:"required"`
	FirstName           string `json:"first_name" binding:"required,max=100"`
	LastName            string `json:"last_name" binding:"required,max=100"`
	Email               string `json:"email" binding:"required,email"`
	PhoneNumber         string `json:"phone_number" binding:"required,max=20"`
	Affiliation         string `json:"affiliation" binding:"required,oneof=faculty student staff external"`
	AurakID             string `json:"aurak_id" binding:"max=50"`
	Department          string `json:"department" binding:"max=100"`
	Organization        string `json:"organization" binding:"max=100"`
	Position            string `json:"position" binding:"max=100"`
	DietaryRestrictions string `json:"dietary_restrictions"`
	SpecialRequests     string `json:"special_requests"`
}

// NotificationStatus сообщает клиенту, что стало с письмом со штрих-кодом.
// Сбой доставки никогда не откатывает созданную запись.
const (
	NotificationQueued = "queued"
	NotificationFailed = "failed"
)

// RegisterResult represents the outcome of a durable registration
type RegisterResult struct {
	Attendance   *entity.Attendance `json:"attendance"`
	Notification string             `json:"notification"`
}

type attendanceService struct {
	attendanceRepo repository.AttendanceRepository
	eventRepo      repository.EventRepository
	queue          TaskPublisher
}

// NewAttendanceService создает новый экземпляр AttendanceService
func NewAttendanceService(
	attendanceRepo repository.AttendanceRepository,
	eventRepo repository.EventRepository,
	queue TaskPublisher,
) AttendanceService {
	return &attendanceService{
		attendanceRepo: attendanceRepo,
		eventRepo:      eventRepo,
		queue:          queue,
	}
}

// Register создает запись посещаемости с новым штрих-кодом и ставит
// доставку письма в очередь
func (s *attendanceService) Register(ctx context.Context, req *RegisterRequest) (*RegisterResult, error) {
	affiliation := entity.Affiliation(req.Affiliation)
	if !affiliation.IsValid() {
		return nil, entity.ErrInvalidAffiliation
	}

	// Валидация мероприятия
	event, err := s.eventRepo.GetByID(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	attendance := &entity.Attendance{
		EventID:             req.EventID,
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		Email:               req.Email,
		PhoneNumber:         req.PhoneNumber,
		Affiliation:         affiliation,
		AurakID:             req.AurakID,
		Department:          req.Department,
		Organization:        req.Organization,
		Position:            req.Position,
		DietaryRestrictions: req.DietaryRestrictions,
		SpecialRequests:     req.SpecialRequests,
	}

	// Генерация + вставка с повтором при коллизии. Вероятность коллизии
	// 10-символьного идентификатора астрономически мала, но нарушать
	// уникальность или ронять регистрацию из-за нее нельзя.
	if err := s.createWithFreshBarcode(ctx, attendance); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"attendance_id": attendance.ID,
		"event_id":      attendance.EventID,
		"barcode":       attendance.Barcode,
	}).Info("Attendance registered")

	result := &RegisterResult{
		Attendance:   attendance,
		Notification: NotificationQueued,
	}

	// Доставка штрих-кода строго после коммита строки; любые сбои здесь
	// не откатывают регистрацию
	if err := s.dispatchBarcodeDelivery(ctx, attendance, event); err != nil {
		logrus.Warnf("Failed to dispatch barcode delivery for attendance %d: %v", attendance.ID, err)
		result.Notification = NotificationFailed
	}

	return result, nil
}

// createWithFreshBarcode выполняет цикл generate+insert: Inserted | Retry | ExhaustedRetries
func (s *attendanceService) createWithFreshBarcode(ctx context.Context, attendance *entity.Attendance) error {
	for attempt := 1; attempt <= maxBarcodeAttempts; attempt++ {
		attendance.Barcode = barcode.Generate()

		err := s.attendanceRepo.Create(ctx, attendance)
		if err == nil {
			return nil
		}
		if err != entity.ErrBarcodeExists {
			return fmt.Errorf("failed to create attendance: %w", err)
		}

		logrus.Warnf("Barcode collision on %q (attempt %d/%d), regenerating",
			attendance.Barcode, attempt, maxBarcodeAttempts)
	}

	return entity.ErrBarcodeExhausted
}

func (s *attendanceService) dispatchBarcodeDelivery(ctx context.Context, attendance *entity.Attendance, event *entity.Event) error {
	if s.queue == nil {
		return fmt.Errorf("notification queue is not configured")
	}

	task := &Task{
		ID:   uuid.New().String(),
		Type: TaskTypeSendBarcode,
		Data: map[string]interface{}{
			"attendance_id": attendance.ID,
			"event_name":    event.Name,
		},
		MaxRetries: 3,
	}

	return s.queue.Publish(ctx, task)
}

// CheckIn применяет идемпотентный переход по отсканированному штрих-коду.
// Первый скан выигрывает; повторный возвращает тот же payload с исходным
// временем отметки.
func (s *attendanceService) CheckIn(ctx context.Context, code string) (*entity.CheckInResult, error) {
	attendance, alreadyPresent, err := s.attendanceRepo.CheckInByBarcode(ctx, code, time.Now())
	if err != nil {
		return nil, err
	}

	if attendance.CheckinTime == nil {
		// Не должно случаться: переход состоялся, а время не записано
		return nil, fmt.Errorf("checkin time missing after transition for barcode %s", code)
	}

	logrus.WithFields(logrus.Fields{
		"attendance_id": attendance.ID,
		"event_id":      attendance.EventID,
		"repeat_scan":   alreadyPresent,
	}).Info("Attendee checked in")

	return &entity.CheckInResult{
		Attendance:     attendance,
		Name:           attendance.FullName(),
		Role:           attendance.Affiliation,
		CheckinTime:    *attendance.CheckinTime,
		AlreadyPresent: alreadyPresent,
	}, nil
}

// GetPresent возвращает отмеченных участников мероприятия.
// Неизвестный event_id дает пустой список, а не ошибку.
func (s *attendanceService) GetPresent(ctx context.Context, eventID int64) ([]*entity.Attendance, error) {
	attendances, err := s.attendanceRepo.GetPresentByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get present attendees: %w", err)
	}
	if attendances == nil {
		attendances = []*entity.Attendance{}
	}
	return attendances, nil
}

func (s *attendanceService) GetAttendance(ctx context.Context, id int64) (*entity.Attendance, error) {
	return s.attendanceRepo.GetByID(ctx, id)
}

func (s *attendanceService) GetEventRoster(ctx context.Context, eventID int64) ([]*entity.Attendance, error) {
	attendances, err := s.attendanceRepo.GetByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event roster: %w", err)
	}
	if attendances == nil {
		attendances = []*entity.Attendance{}
	}
	return attendances, nil
}

func (s *attendanceService) GetEventStats(ctx context.Context, eventID int64) (*entity.EventAttendanceStats, error) {
	stats, err := s.attendanceRepo.GetEventAttendanceStats(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event stats: %w", err)
	}
	return stats, nil
}

func (s *attendanceService) MarkNotified(ctx context.Context, id int64) error {
	return s.attendanceRepo.MarkNotified(ctx, id)
}

// RedispatchPending повторно ставит в очередь доставку для записей,
// оставшихся без письма, возвращает число опубликованных задач
func (s *attendanceService) RedispatchPending(ctx context.Context, before time.Time, limit int) (int, error) {
	if s.queue == nil {
		return 0, fmt.Errorf("notification queue is not configured")
	}

	pending, err := s.attendanceRepo.GetUnnotified(ctx, before, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get unnotified attendances: %w", err)
	}

	published := 0
	for _, attendance := range pending {
		event, err := s.eventRepo.GetByID(ctx, attendance.EventID)
		if err != nil {
			logrus.Errorf("Failed to load event %d for redispatch: %v", attendance.EventID, err)
			continue
		}

		if err := s.dispatchBarcodeDelivery(ctx, attendance, event); err != nil {
			logrus.Errorf("Failed to redispatch delivery for attendance %d: %v", attendance.ID, err)
			continue
		}
		published++
	}

	return published, nil
}
