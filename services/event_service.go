package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Olzhas-K/sportsmeet-system/models"
	"github.com/Olzhas-K/sportsmeet-system/repositories"
)

type CreateEventInput struct {
	Name       string `json:"name"`
	Discipline string `json:"discipline"`
	Category   string `json:"category"`
	Day        int    `json:"day"`
}

// EventService - CRUD программы соревнований. Счётчики посещаемости событий
// меняются только сервисами записи и посещаемости, не здесь.
type EventService struct {
	eventRepo repositories.EventRepository
}

func NewEventService(eventRepo repositories.EventRepository) *EventService {
	return &EventService{eventRepo: eventRepo}
}

func (s *EventService) Create(ctx context.Context, actor *models.Participant, input CreateEventInput) (*models.Event, error) {
	if actor == nil || actor.Role != models.RoleManager {
		return nil, ErrForbiddenOperation
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: event name is required", ErrValidationFailed)
	}
	discipline := models.Discipline(input.Discipline)
	if discipline != models.DisciplineTrack && discipline != models.DisciplineField && discipline != models.DisciplineTeam {
		return nil, fmt.Errorf("%w: unknown discipline %q", ErrValidationFailed, input.Discipline)
	}
	category := models.Category(input.Category)
	if category != models.CategoryBoys && category != models.CategoryGirls {
		return nil, fmt.Errorf("%w: unknown category %q", ErrValidationFailed, input.Category)
	}
	if input.Day < 1 {
		return nil, fmt.Errorf("%w: day must be positive", ErrValidationFailed)
	}

	event := &models.Event{
		Name:       name,
		Discipline: discipline,
		Category:   category,
		Day:        input.Day,
		IsActive:   true,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return event, nil
}

func (s *EventService) GetByID(ctx context.Context, id int) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	return event, nil
}

func (s *EventService) List(ctx context.Context, activeOnly bool) ([]*models.Event, error) {
	events, err := s.eventRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// SetActive включает или выключает событие. Деактивация не трогает уже
// существующие записи: она лишь закрывает событие для новых блокировок выбора.
func (s *EventService) SetActive(ctx context.Context, actor *models.Participant, id int, active bool) error {
	if actor == nil || actor.Role != models.RoleManager {
		return ErrForbiddenOperation
	}
	err := s.eventRepo.SetActive(ctx, id, active)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to set event active flag: %w", err)
	}
	return nil
}
