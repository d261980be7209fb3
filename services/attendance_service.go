package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Olzhas-K/sportsmeet-system/models"
	"github.com/Olzhas-K/sportsmeet-system/repositories"
)

// attendanceTransitions - явная таблица переходов посещаемости.
// Возврат в notMarked возможен только через unlock, поэтому его здесь нет.
// Таблица даёт раннее отклонение и понятную ошибку; источником истины
// остаётся условное обновление в хранилище.
var attendanceTransitions = map[models.AttendanceStatus][]models.AttendanceStatus{
	models.StatusNotMarked: {models.StatusPresent, models.StatusAbsent},
	models.StatusPresent:   {models.StatusAbsent},
	models.StatusAbsent:    {models.StatusPresent},
}

// CanTransition сообщает, разрешён ли переход посещаемости from → to.
func CanTransition(from, to models.AttendanceStatus) bool {
	for _, allowed := range attendanceTransitions[from] {
		if to == allowed {
			return true
		}
	}
	return false
}

// AttendanceService выполняет одиночные переходы посещаемости: ручной
// переключатель на дашборде и сканирование QR-кода.
type AttendanceService struct {
	participantRepo repositories.ParticipantRepository
	enrollmentRepo  repositories.EnrollmentRepository
	eventRepo       repositories.EventRepository
	hub             CounterBroadcaster
	logger          *slog.Logger
}

func NewAttendanceService(
	participantRepo repositories.ParticipantRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	eventRepo repositories.EventRepository,
	hub CounterBroadcaster,
	logger *slog.Logger,
) *AttendanceService {
	return &AttendanceService{
		participantRepo: participantRepo,
		enrollmentRepo:  enrollmentRepo,
		eventRepo:       eventRepo,
		hub:             hub,
		logger:          logger,
	}
}

// Toggle выполняет одиночный переход prev → next для пары (участник, событие).
//
// Запись участника обновляется условно по конкретному текущему статусу:
// проигравшая гонку сторона получает конфликт "state already changed", а не
// перезаписывает чужой переход. Затем оба счётчика события меняются одним
// охраняемым оператором; если он не прошёл, статус участника возвращается
// назад компенсирующей записью и операция сообщает о рассинхронизации.
func (s *AttendanceService) Toggle(ctx context.Context, actor *models.Participant, jerseyNumber, eventID int, prev, next models.AttendanceStatus) error {
	if !CanTransition(prev, next) {
		return ErrInvalidTransition
	}

	participant, err := s.loadTarget(ctx, actor, jerseyNumber)
	if err != nil {
		return err
	}
	return s.transition(ctx, participant, eventID, prev, next)
}

// ScanQR отмечает участника присутствующим по стартовому номеру.
// Быстрая проверка "уже отмечен" даёт сканеру внятную ошибку повторного
// скана; корректность и без неё обеспечена условным обновлением.
func (s *AttendanceService) ScanQR(ctx context.Context, actor *models.Participant, jerseyNumber, eventID int) (*models.Enrollment, error) {
	participant, err := s.loadTarget(ctx, actor, jerseyNumber)
	if err != nil {
		return nil, err
	}

	entry, err := s.enrollmentRepo.Get(ctx, nil, participant.ID, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEnrollmentNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}
	if entry.Status == models.StatusPresent {
		return nil, ErrAlreadyMarkedPresent
	}

	if err := s.transition(ctx, participant, eventID, entry.Status, models.StatusPresent); err != nil {
		return nil, err
	}
	return &models.Enrollment{
		ParticipantID: participant.ID,
		EventID:       eventID,
		Status:        models.StatusPresent,
		Position:      entry.Position,
	}, nil
}

func (s *AttendanceService) loadTarget(ctx context.Context, actor *models.Participant, jerseyNumber int) (*models.Participant, error) {
	participant, err := s.participantRepo.GetByJerseyNumber(ctx, nil, jerseyNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}
	if err := AuthorizeMutation(actor, participant); err != nil {
		return nil, err
	}
	if !participant.IsEventsLocked {
		return nil, ErrEventsNotLocked
	}
	return participant, nil
}

func (s *AttendanceService) transition(ctx context.Context, participant *models.Participant, eventID int, prev, next models.AttendanceStatus) error {
	err := s.enrollmentRepo.UpdateStatus(ctx, nil, participant.ID, eventID, prev, next)
	if err != nil {
		if errors.Is(err, repositories.ErrEnrollmentStateChanged) {
			return ErrAttendanceStateChanged
		}
		return fmt.Errorf("failed to update enrollment status: %w", err)
	}

	err = s.eventRepo.MoveCounter(ctx, nil, eventID, prev, next, 1)
	if err != nil {
		if errors.Is(err, repositories.ErrEventCounterConflict) {
			// Счётчик исходного статуса неожиданно на нуле: откатываем
			// запись участника и сообщаем о рассинхронизации.
			revertErr := s.enrollmentRepo.UpdateStatus(ctx, nil, participant.ID, eventID, next, prev)
			if revertErr != nil {
				s.logger.Error("attendance compensation: failed to revert enrollment status",
					slog.Int("participant_id", participant.ID),
					slog.Int("event_id", eventID),
					slog.String("from", string(next)),
					slog.String("to", string(prev)),
					slog.Any("error", revertErr))
			}
			return ErrEventCounterDesync
		}
		return fmt.Errorf("failed to move event counters: %w", err)
	}

	s.broadcastCounts(ctx, eventID)
	return nil
}

func (s *AttendanceService) broadcastCounts(ctx context.Context, eventID int) {
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
