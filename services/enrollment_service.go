package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Olzhas-K/sportsmeet-system/models"
	"github.com/Olzhas-K/sportsmeet-system/repositories"
)

const (
	maxSelfSelectedEvents = 3 // track + field суммарно
	maxPerDiscipline      = 2
)

// EnrollmentService управляет блокировкой выбора событий участника.
// Запись участника и счётчики событий живут в разных строках без общего
// ограничения целостности: согласованность держится на порядке записей
// и явной компенсации (см. Lock/Unlock).
type EnrollmentService struct {
	participantRepo repositories.ParticipantRepository
	enrollmentRepo  repositories.EnrollmentRepository
	eventRepo       repositories.EventRepository
	hub             CounterBroadcaster
	logger          *slog.Logger
}

func NewEnrollmentService(
	participantRepo repositories.ParticipantRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	eventRepo repositories.EventRepository,
	hub CounterBroadcaster,
	logger *slog.Logger,
) *EnrollmentService {
	return &EnrollmentService{
		participantRepo: participantRepo,
		enrollmentRepo:  enrollmentRepo,
		eventRepo:       eventRepo,
		hub:             hub,
		logger:          logger,
	}
}

// Lock замораживает выбор событий участника и синхронно увеличивает
// счётчики notMarked каждого события.
//
// Порядок записей намеренный: сначала дешёвая запись участника под
// предусловием is_events_locked = false (проигрыш гонки ничего не меняет
// и не требует компенсации), затем веерное обновление счётчиков. Если
// счётчиков изменилось меньше, чем событий (событие деактивировали в
// полёте), участник откатывается к {selectedEvents: [], locked: false}.
func (s *EnrollmentService) Lock(ctx context.Context, participantID int, eventIDs []int) ([]models.Enrollment, error) {
	if len(eventIDs) == 0 {
		return nil, ErrEmptySelection
	}
	seen := make(map[int]struct{}, len(eventIDs))
	for _, id := range eventIDs {
		if _, ok := seen[id]; ok {
			return nil, ErrDuplicateSelection
		}
		seen[id] = struct{}{}
	}

	participant, err := s.participantRepo.GetByID(ctx, nil, participantID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}
	if participant.IsEventsLocked {
		return nil, ErrEventsAlreadyLocked
	}

	events, err := s.eventRepo.ListByIDs(ctx, nil, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	if len(events) != len(eventIDs) {
		return nil, ErrEventNotFound
	}
	if err := validateSelection(participant, events); err != nil {
		return nil, err
	}

	// Запись 1: шлюз участника. Ноль изменённых строк - конкурирующий lock
	// уже состоялся, компенсировать нечего.
	err = s.participantRepo.SetEventsLocked(ctx, nil, participantID, true, false)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantLockState) {
			return nil, ErrEventsAlreadyLocked
		}
		return nil, fmt.Errorf("failed to lock participant: %w", err)
	}

	if err := s.enrollmentRepo.InsertBatch(ctx, nil, participantID, eventIDs); err != nil {
		s.rollbackLock(ctx, participantID, nil)
		if errors.Is(err, repositories.ErrEnrollmentDuplicate) {
			return nil, ErrAlreadyEnrolled
		}
		return nil, fmt.Errorf("failed to insert enrollments: %w", err)
	}

	// Запись 2: веер по счётчикам. Инкремент проходит только по активным
	// событиям, недостача компенсируется откатом записи 1.
	updated, err := s.eventRepo.IncrementNotMarked(ctx, nil, eventIDs)
	if err != nil {
		s.rollbackLock(ctx, participantID, nil)
		return nil, fmt.Errorf("failed to increment event counters: %w", err)
	}
	if len(updated) != len(eventIDs) {
		s.rollbackLock(ctx, participantID, updated)
		return nil, ErrEventCounterDesync
	}

	result := make([]models.Enrollment, 0, len(events))
	for _, e := range events {
		result = append(result, models.Enrollment{
			ParticipantID: participantID,
			EventID:       e.ID,
			EventName:     e.Name,
			Status:        models.StatusNotMarked,
		})
		s.broadcastCounts(ctx, e.ID)
	}
	return result, nil
}

// rollbackLock возвращает участника к незаблокированному пустому выбору и
// снимает уже применённые инкременты счётчиков. Ошибки компенсации только
// логируются: исходная ошибка операции важнее.
func (s *EnrollmentService) rollbackLock(ctx context.Context, participantID int, incrementedEventIDs []int) {
	if len(incrementedEventIDs) > 0 {
		reverted, err := s.eventRepo.DecrementStatusCount(ctx, nil, models.StatusNotMarked, incrementedEventIDs)
		if err != nil || len(reverted) != len(incrementedEventIDs) {
			s.logger.Error("lock compensation: failed to revert event counters",
				slog.Int("participant_id", participantID),
				slog.Any("event_ids", incrementedEventIDs),
				slog.Any("error", err))
		}
	}
	if err := s.enrollmentRepo.DeleteByParticipant(ctx, nil, participantID); err != nil {
		s.logger.Error("lock compensation: failed to delete enrollments",
			slog.Int("participant_id", participantID), slog.Any("error", err))
	}
	if err := s.participantRepo.ClearEventsLock(ctx, nil, participantID); err != nil {
		s.logger.Error("lock compensation: failed to clear lock flag",
			slog.Int("participant_id", participantID), slog.Any("error", err))
	}
}

// Unlock разблокирует выбор событий участника.
//
// Самостоятельный unlock требует, чтобы ни одна запись не была отмечена:
// иначе участник мог бы стереть уже проставленную посещаемость. Персонал
// разблокирует безусловно, и счётчики уменьшаются в текущем статусе каждой
// записи. Асимметрия предусловий намеренная.
//
// Порядок обратный блокировке: сначала счётчики, затем участник. Недостача
// при охраняемом декременте - фатальное нарушение инварианта, а не гонка:
// операция прерывается без компенсации.
func (s *EnrollmentService) Unlock(ctx context.Context, actor *models.Participant, participantID int) error {
	self := actor != nil && actor.ID == participantID && !IsStaff(actor.Role)
	if !self {
		target, err := s.participantRepo.GetByID(ctx, nil, participantID)
		if err != nil {
			if errors.Is(err, repositories.ErrParticipantNotFound) {
				return ErrParticipantNotFound
			}
			return fmt.Errorf("failed to load participant: %w", err)
		}
		if err := AuthorizeMutation(actor, target); err != nil {
			return err
		}
	}

	participant, err := s.participantRepo.GetByID(ctx, nil, participantID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return ErrParticipantNotFound
		}
		return fmt.Errorf("failed to load participant: %w", err)
	}
	if !participant.IsEventsLocked {
		return ErrEventsNotLocked
	}

	entries, err := s.enrollmentRepo.ListByParticipant(ctx, nil, participantID)
	if err != nil {
		return fmt.Errorf("failed to list enrollments: %w", err)
	}

	if self {
		for _, e := range entries {
			if e.Status != models.StatusNotMarked {
				return ErrAttendanceAlreadyMarked
			}
		}
	}

	byStatus := make(map[models.AttendanceStatus][]int)
	for _, e := range entries {
		byStatus[e.Status] = append(byStatus[e.Status], e.EventID)
	}
	for status, ids := range byStatus {
		updated, err := s.eventRepo.DecrementStatusCount(ctx, nil, status, ids)
		if err != nil {
			return fmt.Errorf("failed to decrement event counters: %w", err)
		}
		if len(updated) != len(ids) {
			s.logger.Error("unlock: counter decrement fell short, counters are corrupted",
				slog.Int("participant_id", participantID),
				slog.String("status", string(status)),
				slog.Int("expected", len(ids)),
				slog.Int("updated", len(updated)))
			return ErrEventCountersCorrupted
		}
	}

	if err := s.enrollmentRepo.DeleteByParticipant(ctx, nil, participantID); err != nil {
		return fmt.Errorf("failed to delete enrollments: %w", err)
	}
	if err := s.participantRepo.ClearEventsLock(ctx, nil, participantID); err != nil {
		return fmt.Errorf("failed to clear lock flag: %w", err)
	}

	for _, e := range entries {
		s.broadcastCounts(ctx, e.EventID)
	}
	return nil
}

func (s *EnrollmentService) broadcastCounts(ctx context.Context, eventID int) {
	if s.hub == nil {
		return
	}
	counts, err := s.eventRepo.GetCounts(ctx, nil, eventID)
	if err != nil {
		s.logger.Warn("failed to read counts for broadcast",
			slog.Int("event_id", eventID), slog.Any("error", err))
		return
	}
	s.hub.BroadcastCounts(eventID, counts)
}

// validateSelection проверяет самостоятельный выбор участника: события активны,
// категория совпадает с полом, командные события не выбираются самостоятельно,
// не больше трёх индивидуальных событий и не больше двух на дисциплину.
func validateSelection(p *models.Participant, events []*models.Event) error {
	perDiscipline := make(map[models.Discipline]int)
	for _, e := range events {
		if !e.IsActive {
			return ErrEventInactive
		}
		if string(e.Category) != string(p.Gender) {
			return ErrCategoryMismatch
		}
		if e.Discipline == models.DisciplineTeam {
			return ErrTeamEventSelfEnroll
		}
		perDiscipline[e.Discipline]++
	}
	if perDiscipline[models.DisciplineTrack]+perDiscipline[models.DisciplineField] > maxSelfSelectedEvents {
		return ErrSelectionCapExceeded
	}
	if perDiscipline[models.DisciplineTrack] > maxPerDiscipline || perDiscipline[models.DisciplineField] > maxPerDiscipline {
		return ErrDisciplineCapExceeded
	}
	return nil
}
