package service

import (
	"context"
	"fmt"

	repository "github.com/aurak-emp/attendance/internal/database/postgres"
	"github.com/aurak-emp/attendance/internal/entity"
	"github.com/sirupsen/logrus"
)

// CreateEventRequest represents the data needed to create an event
type CreateEventRequest struct {
	Name        string          `json:"name" binding:"required,min=1,max=100"`
	Description string          `json:"description" binding:"max=1000"`
	Host        string          `json:"host" binding:"max=100"`
	Venue       string          `json:"venue" binding:"max=100"`
	StartTime   entity.FormTime `json:"start_time" binding:"required"`
	EndTime     entity.FormTime `json:"end_time" binding:"required"`
}

type eventService struct {
	eventRepo repository.EventRepository
}

// NewEventService creates a new instance of EventService
func NewEventService(eventRepo repository.EventRepository) EventService {
	return &eventService{eventRepo: eventRepo}
}

func (s *eventService) CreateEvent(ctx context.Context, req *CreateEventRequest) (*entity.Event, error) {
	if req.EndTime.Before(req.StartTime.Time) {
		return nil, entity.ErrEventDatePast
	}

	event := &entity.Event{
		Name:        req.Name,
		Description: req.Description,
		Host:        req.Host,
		Venue:       req.Venue,
		Status:      entity.EventStatusPending,
		StartTime:   req.StartTime.Time,
		EndTime:     req.EndTime.Time,
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return event, nil
}

func (s *eventService) GetEvent(ctx context.Context, id int64) (*entity.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return event, nil
}

func (s *eventService) GetAllEvents(ctx context.Context) ([]*entity.Event, error) {
	events, err := s.eventRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get all events: %w", err)
	}

	return events, nil
}

func (s *eventService) UpdateEventStatus(ctx context.Context, id int64, status entity.EventStatus) error {
	switch status {
	case entity.EventStatusPending, entity.EventStatusApproved, entity.EventStatusDenied:
	default:
		return fmt.Errorf("invalid event status: %s", status)
	}

	return s.eventRepo.UpdateStatus(ctx, id, status)
}

// DeleteEvent удаляет мероприятие; записи посещаемости уходят каскадом
func (s *eventService) DeleteEvent(ctx context.Context, id int64) error {
	if err := s.eventRepo.Delete(ctx, id); err != nil {
		return err
	}

	logrus.Infof("Event %d deleted with its attendance records", id)
	return nil
}
