package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Olzhas-K/sportsmeet-system/repositories"
)

// JerseyService выдаёт участнику уникальный стартовый номер при завершении
// регистрации. Предпочитает номера, возвращённые после удаления участников,
// и только потом сдвигает монотонный счётчик.
type JerseyService struct {
	participantRepo repositories.ParticipantRepository
	configRepo      repositories.SystemConfigRepository
	logger          *slog.Logger
}

func NewJerseyService(
	participantRepo repositories.ParticipantRepository,
	configRepo repositories.SystemConfigRepository,
	logger *slog.Logger,
) *JerseyService {
	return &JerseyService{
		participantRepo: participantRepo,
		configRepo:      configRepo,
		logger:          logger,
	}
}

// Allocate присваивает участнику наименьший доступный номер.
//
// Шаг 1: попытка забрать минимум из свободного списка условным array_remove.
// Проигрыш гонки за конкретный номер не повторяется по списку - берём свежий
// номер счётчиком (шаг 2), чтобы не голодать на горячем списке.
// Шаг 3: условное присвоение участнику; если номер уже присвоен конкурирующим
// дублем запроса, забранный номер возвращается в список компенсирующей записью.
func (s *JerseyService) Allocate(ctx context.Context, participantID int) (int, error) {
	number, err := s.claimNumber(ctx)
	if err != nil {
		return 0, err
	}

	err = s.participantRepo.AssignJerseyNumber(ctx, participantID, number)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantJerseySet) {
			// Номер забран, но не присвоен: вернуть в свободный список,
			// иначе он потерян для системы.
			if releaseErr := s.configRepo.ReleaseNumber(ctx, nil, number); releaseErr != nil {
				s.logger.Error("failed to release jersey number after assign conflict",
					slog.Int("participant_id", participantID),
					slog.Int("jersey_number", number),
					slog.Any("error", releaseErr))
			}
			return 0, ErrJerseyAllocationFailed
		}
		return 0, fmt.Errorf("failed to assign jersey number: %w", err)
	}

	return number, nil
}

func (s *JerseyService) claimNumber(ctx context.Context) (int, error) {
	cfg, err := s.configRepo.Get(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to read jersey config: %w", err)
	}

	if len(cfg.FreeJerseyNumbers) > 0 {
		min := cfg.FreeJerseyNumbers[0]
		for _, n := range cfg.FreeJerseyNumbers[1:] {
			if n < min {
				min = n
			}
		}
		err = s.configRepo.ClaimFreeNumber(ctx, int(min))
		if err == nil {
			return int(min), nil
		}
		if !errors.Is(err, repositories.ErrFreeNumberClaimed) {
			return 0, fmt.Errorf("failed to claim free jersey number: %w", err)
		}
		// Конкурирующий аллокатор успел первым - падаем на счётчик.
	}

	number, err := s.configRepo.NextJerseyNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to take next jersey number: %w", err)
	}
	return number, nil
}
