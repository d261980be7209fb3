package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Olzhas-K/sportsmeet-system/models"
	"github.com/Olzhas-K/sportsmeet-system/queue"
	"github.com/Olzhas-K/sportsmeet-system/repositories"
)

// maxEventsPerParticipant ограничивает суммарное число записей участника,
// включая командные события, добавляемые персоналом.
const maxEventsPerParticipant = 8

// BulkResult - итог массовой операции по списку стартовых номеров.
type BulkResult struct {
	ModifiedCount int   `json:"modified_count"`
	AlreadyDone   []int `json:"already_done"`
	Rejected      []int `json:"rejected"`
}

// RosterService выполняет массовые операции по загруженному списку стартовых
// номеров. В отличие от одиночных путей, здесь радиус поражения - десятки
// участников за раз, поэтому вместо ручной компенсации используется честная
// транзакция: любой сбой откатывает весь пакет целиком.
type RosterService struct {
	db              *sql.DB
	participantRepo repositories.ParticipantRepository
	enrollmentRepo  repositories.EnrollmentRepository
	eventRepo       repositories.EventRepository
	hub             CounterBroadcaster
	publisher       queue.Publisher
	logger          *slog.Logger
}

func NewRosterService(
	db *sql.DB,
	participantRepo repositories.ParticipantRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	eventRepo repositories.EventRepository,
	hub CounterBroadcaster,
	publisher queue.Publisher,
	logger *slog.Logger,
) *RosterService {
	return &RosterService{
		db:              db,
		participantRepo: participantRepo,
		enrollmentRepo:  enrollmentRepo,
		eventRepo:       eventRepo,
		hub:             hub,
		publisher:       publisher,
		logger:          logger,
	}
}

// statusOrder задаёт детерминированный порядок обхода статусов при
// применении дельт к счётчикам.
var statusOrder = []models.AttendanceStatus{models.StatusNotMarked, models.StatusPresent, models.StatusAbsent}

// BulkMarkAttendance переводит записи перечисленных участников на событии в
// целевой статус. Несовпадение пола - жёсткий отказ всего пакета; уже стоящие
// в целевом статусе пропускаются и возвращаются отдельно; записи с
// результатом (position > 0) не перемаркировываются и попадают в rejected.
func (s *RosterService) BulkMarkAttendance(ctx context.Context, actor *models.Participant, jerseyNumbers []int, eventID int, target models.AttendanceStatus) (*BulkResult, error) {
	if actor == nil || actor.Role != models.RoleManager {
		return nil, ErrForbiddenOperation
	}
	if target != models.StatusPresent && target != models.StatusAbsent {
		return nil, ErrInvalidTransition
	}
	if len(jerseyNumbers) == 0 {
		return nil, ErrEmptySelection
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin bulk attendance transaction: %w", err)
	}
	defer tx.Rollback()

	event, participants, err := s.loadBatch(ctx, tx, eventID, jerseyNumbers)
	if err != nil {
		return nil, err
	}

	ids := make([]int, len(participants))
	jerseyByID := make(map[int]int, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
		jerseyByID[p.ID] = *p.JerseyNumber
	}

	entries, err := s.enrollmentRepo.ListForEventByParticipants(ctx, tx, eventID, ids, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollments: %w", err)
	}
	entryByID := make(map[int]models.Enrollment, len(entries))
	for _, e := range entries {
		entryByID[e.ParticipantID] = e
	}

	result := &BulkResult{AlreadyDone: []int{}, Rejected: []int{}}
	eligible := make([]int, 0, len(ids))
	deltas := make(map[models.AttendanceStatus]int)
	for _, id := range ids {
		entry, ok := entryByID[id]
		switch {
		case !ok:
			result.Rejected = append(result.Rejected, jerseyByID[id])
		case entry.Status == target:
			result.AlreadyDone = append(result.AlreadyDone, jerseyByID[id])
		case entry.Position != 0:
			result.Rejected = append(result.Rejected, jerseyByID[id])
		default:
			eligible = append(eligible, id)
			deltas[entry.Status]++
		}
	}

	if len(eligible) == 0 {
		return result, nil
	}

	modified, err := s.enrollmentRepo.BulkUpdateStatus(ctx, tx, eventID, eligible, target)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk update enrollments: %w", err)
	}
	if modified != len(eligible) {
		// Строки держатся под FOR UPDATE, расхождение здесь - не гонка.
		return nil, ErrAttendanceStateChanged
	}

	for _, status := range statusOrder {
		delta := deltas[status]
		if delta == 0 {
			continue
		}
		if err := s.eventRepo.MoveCounter(ctx, tx, eventID, status, target, delta); err != nil {
			if errors.Is(err, repositories.ErrEventCounterConflict) {
				// Откат транзакции вернёт и записи участников.
				return nil, ErrEventCounterDesync
			}
			return nil, fmt.Errorf("failed to move event counters: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bulk attendance transaction: %w", err)
	}

	result.ModifiedCount = modified
	s.broadcastCounts(ctx, event.ID)
	return result, nil
}

// BulkEnroll записывает перечисленных участников на командное событие.
// Все проверки действуют по принципу "всё или ничего": любое несовпадение
// пола, существующая запись или превышение лимита отменяют пакет до записи.
// Побочный эффект исходной системы сохранён: всем затронутым участникам
// выставляется is_events_locked независимо от прежнего состояния флага.
func (s *RosterService) BulkEnroll(ctx context.Context, actor *models.Participant, jerseyNumbers []int, eventID int) (*BulkResult, error) {
	if actor == nil || actor.Role != models.RoleManager {
		return nil, ErrForbiddenOperation
	}
	if len(jerseyNumbers) == 0 {
		return nil, ErrEmptySelection
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin bulk enroll transaction: %w", err)
	}
	defer tx.Rollback()

	event, participants, err := s.loadBatch(ctx, tx, eventID, jerseyNumbers)
	if err != nil {
		return nil, err
	}
	if event.Discipline != models.DisciplineTeam {
		return nil, ErrNotTeamEvent
	}
	if !event.IsActive {
		return nil, ErrEventInactive
	}

	ids := make([]int, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
	}

	existing, err := s.enrollmentRepo.ListForEventByParticipants(ctx, tx, eventID, ids, true)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing enrollments: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrAlreadyEnrolled
	}

	for _, id := range ids {
		count, err := s.enrollmentRepo.CountByParticipant(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to count enrollments: %w", err)
		}
		if count >= maxEventsPerParticipant {
			return nil, ErrEventCapExceeded
		}
	}

	if err := s.enrollmentRepo.InsertTeamBatch(ctx, tx, eventID, ids); err != nil {
		if errors.Is(err, repositories.ErrEnrollmentDuplicate) {
			return nil, ErrAlreadyEnrolled
		}
		return nil, fmt.Errorf("failed to insert team enrollments: %w", err)
	}
	if err := s.eventRepo.AddToCounter(ctx, tx, eventID, models.StatusNotMarked, len(ids)); err != nil {
		return nil, fmt.Errorf("failed to add to event counter: %w", err)
	}
	if err := s.participantRepo.LockMany(ctx, tx, ids); err != nil {
		return nil, fmt.Errorf("failed to lock enrolled participants: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bulk enroll transaction: %w", err)
	}

	s.broadcastCounts(ctx, event.ID)
	return &BulkResult{ModifiedCount: len(ids), AlreadyDone: []int{}, Rejected: []int{}}, nil
}

// BulkMarkResults записывает места 1–3 в порядке перечисления стартовых
// номеров. Финишировавший участник считается присутствовавшим: запись
// переводится в present, счётчики двигаются из прежнего статуса. После
// фиксации для каждого призёра публикуется запрос на выпуск сертификата.
func (s *RosterService) BulkMarkResults(ctx context.Context, actor *models.Participant, jerseyNumbers []int, eventID int) (*BulkResult, error) {
	if actor == nil || actor.Role != models.RoleManager {
		return nil, ErrForbiddenOperation
	}
	if len(jerseyNumbers) == 0 || len(jerseyNumbers) > 3 {
		return nil, ErrInvalidResultPositions
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin bulk results transaction: %w", err)
	}
	defer tx.Rollback()

	event, participants, err := s.loadBatch(ctx, tx, eventID, jerseyNumbers)
	if err != nil {
		return nil, err
	}

	idByJersey := make(map[int]int, len(participants))
	for _, p := range participants {
		idByJersey[*p.JerseyNumber] = p.ID
	}
	ids := make([]int, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
	}

	entries, err := s.enrollmentRepo.ListForEventByParticipants(ctx, tx, eventID, ids, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollments: %w", err)
	}
	entryByID := make(map[int]models.Enrollment, len(entries))
	for _, e := range entries {
		entryByID[e.ParticipantID] = e
	}
	for _, id := range ids {
		entry, ok := entryByID[id]
		if !ok {
			return nil, ErrNotEnrolled
		}
		if entry.Position != 0 {
			return nil, ErrResultAlreadyRecorded
		}
	}

	deltas := make(map[models.AttendanceStatus]int)
	for i, jersey := range jerseyNumbers {
		id := idByJersey[jersey]
		if err := s.enrollmentRepo.SetResultPosition(ctx, tx, id, eventID, i+1); err != nil {
			if errors.Is(err, repositories.ErrEnrollmentHasResult) {
				return nil, ErrResultAlreadyRecorded
			}
			return nil, fmt.Errorf("failed to set result position: %w", err)
		}
		entry := entryByID[id]
		if entry.Status != models.StatusPresent {
			if err := s.enrollmentRepo.UpdateStatus(ctx, tx, id, eventID, entry.Status, models.StatusPresent); err != nil {
				return nil, fmt.Errorf("failed to mark finisher present: %w", err)
			}
			deltas[entry.Status]++
		}
	}

	for _, status := range statusOrder {
		delta := deltas[status]
		if delta == 0 {
			continue
		}
		if err := s.eventRepo.MoveCounter(ctx, tx, eventID, status, models.StatusPresent, delta); err != nil {
			if errors.Is(err, repositories.ErrEventCounterConflict) {
				return nil, ErrEventCounterDesync
			}
			return nil, fmt.Errorf("failed to move event counters: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bulk results transaction: %w", err)
	}

	s.broadcastCounts(ctx, event.ID)
	s.publishCertificates(ctx, event, jerseyNumbers)
	return &BulkResult{ModifiedCount: len(jerseyNumbers), AlreadyDone: []int{}, Rejected: []int{}}, nil
}

// loadBatch загружает событие и участников пакета с блокировкой строк.
// Блокировка события сериализует конкурирующие массовые операции по нему.
// Несовпадение пола хотя бы у одного участника отменяет весь пакет.
func (s *RosterService) loadBatch(ctx context.Context, tx *sql.Tx, eventID int, jerseyNumbers []int) (*models.Event, []*models.Participant, error) {
	seen := make(map[int]struct{}, len(jerseyNumbers))
	for _, n := range jerseyNumbers {
		if _, ok := seen[n]; ok {
			return nil, nil, ErrDuplicateSelection
		}
		seen[n] = struct{}{}
	}

	event, err := s.eventRepo.GetByIDForUpdate(ctx, tx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, nil, ErrEventNotFound
		}
		return nil, nil, fmt.Errorf("failed to load event: %w", err)
	}

	participants, err := s.participantRepo.ListByJerseyNumbers(ctx, tx, jerseyNumbers, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load participants: %w", err)
	}
	if len(participants) != len(jerseyNumbers) {
		return nil, nil, fmt.Errorf("%w: unknown jersey numbers in batch", ErrParticipantNotFound)
	}

	mismatched := make([]int, 0)
	for _, p := range participants {
		if string(p.Gender) != string(event.Category) {
			mismatched = append(mismatched, *p.JerseyNumber)
		}
	}
	if len(mismatched) > 0 {
		return nil, nil, fmt.Errorf("%w: jersey numbers %v", ErrGenderMismatch, mismatched)
	}
	return event, participants, nil
}

func (s *RosterService) broadcastCounts(ctx context.Context, eventID int) {
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

func (s *RosterService) publishCertificates(ctx context.Context, event *models.Event, jerseyNumbers []int) {
	if s.publisher == nil {
		return
	}
	for i, jersey := range jerseyNumbers {
		payload := queue.CertificateRequested{
			JerseyNumber: jersey,
			EventID:      event.ID,
			EventName:    event.Name,
			Position:     i + 1,
		}
		if err := s.publisher.Publish(ctx, queue.RoutingKeyCertificateRequested, payload); err != nil {
			s.logger.Warn("failed to publish certificate request",
				slog.Int("jersey_number", jersey),
				slog.Int("event_id", event.ID),
				slog.Any("error", err))
		}
	}
}
