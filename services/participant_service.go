package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Olzhas-K/sportsmeet-system/models"
	"github.com/Olzhas-K/sportsmeet-system/queue"
	"github.com/Olzhas-K/sportsmeet-system/repositories"
	"github.com/Olzhas-K/sportsmeet-system/storage"
)

// UpdateProfileInput - изменяемые поля профиля. Пустые строки означают
// "оставить как есть".
type UpdateProfileInput struct {
	FirstName string
	LastName  string
	Email     string
}

// ParticipantService управляет жизненным циклом участника: завершение
// регистрации с выдачей стартового номера, профиль, фотография и каскадное
// удаление.
type ParticipantService struct {
	db              *sql.DB
	participantRepo repositories.ParticipantRepository
	enrollmentRepo  repositories.EnrollmentRepository
	eventRepo       repositories.EventRepository
	sessionRepo     repositories.SessionRepository
	configRepo      repositories.SystemConfigRepository
	jerseyService   *JerseyService
	uploader        storage.FileUploader
	publisher       queue.Publisher
	hub             CounterBroadcaster
	logger          *slog.Logger
}

func NewParticipantService(
	db *sql.DB,
	participantRepo repositories.ParticipantRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	eventRepo repositories.EventRepository,
	sessionRepo repositories.SessionRepository,
	configRepo repositories.SystemConfigRepository,
	jerseyService *JerseyService,
	uploader storage.FileUploader,
	publisher queue.Publisher,
	hub CounterBroadcaster,
	logger *slog.Logger,
) *ParticipantService {
	return &ParticipantService{
		db:              db,
		participantRepo: participantRepo,
		enrollmentRepo:  enrollmentRepo,
		eventRepo:       eventRepo,
		sessionRepo:     sessionRepo,
		configRepo:      configRepo,
		jerseyService:   jerseyService,
		uploader:        uploader,
		publisher:       publisher,
		hub:             hub,
		logger:          logger,
	}
}

// CompleteRegistration помечает анкету заполненной и выдаёт стартовый номер.
// Повтор запроса (двойной клик) отсекается условным обновлением анкеты ещё
// до обращения к аллокатору.
func (s *ParticipantService) CompleteRegistration(ctx context.Context, participantID int) (int, error) {
	if err := s.participantRepo.CompleteDetails(ctx, participantID); err != nil {
		if errors.Is(err, repositories.ErrParticipantAlreadyComplete) {
			return 0, ErrDetailsAlreadyComplete
		}
		return 0, fmt.Errorf("failed to complete participant details: %w", err)
	}

	number, err := s.jerseyService.Allocate(ctx, participantID)
	if err != nil {
		return 0, err
	}

	if s.publisher != nil {
		participant, loadErr := s.participantRepo.GetByID(ctx, nil, participantID)
		if loadErr != nil {
			s.logger.Warn("failed to load participant for registration event",
				slog.Int("participant_id", participantID), slog.Any("error", loadErr))
		} else {
			payload := queue.ParticipantRegistered{
				ParticipantID: participant.ID,
				JerseyNumber:  number,
				FirstName:     participant.FirstName,
				LastName:      participant.LastName,
				RegisteredAt:  time.Now().UTC().Format(time.RFC3339),
			}
			if pubErr := s.publisher.Publish(ctx, queue.RoutingKeyParticipantRegistered, payload); pubErr != nil {
				s.logger.Warn("failed to publish registration event",
					slog.Int("participant_id", participantID), slog.Any("error", pubErr))
			}
		}
	}

	return number, nil
}

// GetProfile возвращает профиль с выбранными событиями и публичным URL фото.
// Читать чужой профиль может только персонал.
func (s *ParticipantService) GetProfile(ctx context.Context, actor *models.Participant, participantID int) (*models.Participant, error) {
	if actor == nil {
		return nil, ErrForbiddenOperation
	}
	if actor.ID != participantID && !IsStaff(actor.Role) {
		return nil, ErrForbiddenOperation
	}

	participant, err := s.participantRepo.GetByID(ctx, nil, participantID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}

	entries, err := s.enrollmentRepo.ListByParticipant(ctx, nil, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	participant.SelectedEvents = entries

	if s.uploader != nil && participant.PhotoKey != nil {
		url := s.uploader.GetPublicURL(*participant.PhotoKey)
		participant.PhotoURL = &url
	}
	return participant, nil
}

// UpdateProfile изменяет редактируемые поля профиля.
func (s *ParticipantService) UpdateProfile(ctx context.Context, actor *models.Participant, participantID int, input UpdateProfileInput) (*models.Participant, error) {
	participant, err := s.loadForMutation(ctx, actor, participantID)
	if err != nil {
		return nil, err
	}

	if input.FirstName != "" {
		participant.FirstName = input.FirstName
	}
	if input.LastName != "" {
		participant.LastName = input.LastName
	}
	if input.Email != "" {
		participant.Email = input.Email
	}

	if err := s.participantRepo.UpdateProfile(ctx, participant); err != nil {
		if errors.Is(err, repositories.ErrParticipantEmailConflict) {
			return nil, ErrEmailTaken
		}
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return participant, nil
}

// UploadPhoto загружает фотографию участника в объектное хранилище и
// сохраняет ключ в профиле. Ключ детерминирован, повторная загрузка
// перезаписывает объект.
func (s *ParticipantService) UploadPhoto(ctx context.Context, actor *models.Participant, participantID int, contentType string, reader io.Reader) (string, error) {
	if s.uploader == nil {
		return "", fmt.Errorf("photo storage is not configured")
	}
	participant, err := s.loadForMutation(ctx, actor, participantID)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("photos/participants/%d", participantID)
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return "", fmt.Errorf("failed to upload photo: %w", err)
	}

	participant.PhotoKey = &result.Key
	if err := s.participantRepo.UpdateProfile(ctx, participant); err != nil {
		return "", fmt.Errorf("failed to save photo key: %w", err)
	}
	return result.Location, nil
}

// Delete каскадно удаляет участника одной транзакцией: счётчики событий,
// записи, сессии, возврат стартового номера в свободный список, сама строка.
//
// Недостача при охраняемом декременте счётчика - фатальное нарушение
// инварианта: транзакция откатывается целиком, участник остаётся.
func (s *ParticipantService) Delete(ctx context.Context, actor *models.Participant, participantID int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	target, err := s.participantRepo.GetByIDForUpdate(ctx, tx, participantID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return ErrParticipantNotFound
		}
		return fmt.Errorf("failed to load participant: %w", err)
	}
	// Роль цели берётся из заблокированной строки, а не из запроса:
	// токен актёра мог устареть, строка не может.
	if err := AuthorizeMutation(actor, target); err != nil {
		return err
	}

	entries, err := s.enrollmentRepo.ListByParticipant(ctx, tx, participantID)
	if err != nil {
		return fmt.Errorf("failed to list enrollments: %w", err)
	}

	byStatus := make(map[models.AttendanceStatus][]int)
	for _, e := range entries {
		byStatus[e.Status] = append(byStatus[e.Status], e.EventID)
	}
	for _, status := range statusOrder {
		ids := byStatus[status]
		if len(ids) == 0 {
			continue
		}
		updated, err := s.eventRepo.DecrementStatusCount(ctx, tx, status, ids)
		if err != nil {
			return fmt.Errorf("failed to decrement event counters: %w", err)
		}
		if len(updated) != len(ids) {
			s.logger.Error("participant delete: counter decrement fell short, counters are corrupted",
				slog.Int("participant_id", participantID),
				slog.String("status", string(status)),
				slog.Int("expected", len(ids)),
				slog.Int("updated", len(updated)))
			return ErrEventCountersCorrupted
		}
	}

	if err := s.enrollmentRepo.DeleteByParticipant(ctx, tx, participantID); err != nil {
		return fmt.Errorf("failed to delete enrollments: %w", err)
	}
	if err := s.sessionRepo.DeleteByParticipant(ctx, tx, participantID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	if target.JerseyNumber != nil {
		if err := s.configRepo.ReleaseNumber(ctx, tx, *target.JerseyNumber); err != nil {
			return fmt.Errorf("failed to release jersey number: %w", err)
		}
	}
	if err := s.participantRepo.Delete(ctx, tx, participantID); err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete transaction: %w", err)
	}

	for _, e := range entries {
		s.broadcastCounts(ctx, e.EventID)
	}
	if s.uploader != nil && target.PhotoKey != nil {
		if err := s.uploader.Delete(ctx, *target.PhotoKey); err != nil {
			s.logger.Warn("failed to delete participant photo",
				slog.Int("participant_id", participantID), slog.Any("error", err))
		}
	}
	return nil
}

// loadForMutation загружает участника для изменения профиля. В отличие от
// посещаемости и удаления, свой профиль редактирует и сам участник.
func (s *ParticipantService) loadForMutation(ctx context.Context, actor *models.Participant, participantID int) (*models.Participant, error) {
	participant, err := s.participantRepo.GetByID(ctx, nil, participantID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}
	if actor != nil && actor.ID == participantID {
		return participant, nil
	}
	if err := AuthorizeMutation(actor, participant); err != nil {
		return nil, err
	}
	return participant, nil
}

func (s *ParticipantService) broadcastCounts(ctx context.Context, eventID int) {
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
