package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Olzhas-K/sportsmeet-system/models"
	"github.com/Olzhas-K/sportsmeet-system/repositories"
	"golang.org/x/sync/errgroup"
)

// repairConcurrency ограничивает число параллельных пересчётов,
// чтобы не занимать весь пул соединений.
const repairConcurrency = 4

// RepairResult - итог пересчёта по одному событию.
type RepairResult struct {
	EventID int                  `json:"event_id"`
	Before  models.StudentsCount `json:"before"`
	After   models.StudentsCount `json:"after"`
	Fixed   bool                 `json:"fixed"`
}

// RepairService восстанавливает счётчики событий после фатальной
// рассинхронизации: пересчитывает их из записей участников, которые
// остаются источником истины.
type RepairService struct {
	eventRepo repositories.EventRepository
	logger    *slog.Logger
}

func NewRepairService(eventRepo repositories.EventRepository, logger *slog.Logger) *RepairService {
	return &RepairService{eventRepo: eventRepo, logger: logger}
}

// RecountAll пересчитывает счётчики всех событий. События обрабатываются
// параллельно; первая ошибка отменяет остальные пересчёты.
//
// Процедура рассчитана на тихие часы: выполняемая одновременно с потоком
// отметок посещаемости, она может зафиксировать уже устаревший снимок.
func (s *RepairService) RecountAll(ctx context.Context, actor *models.Participant) ([]RepairResult, error) {
	if actor == nil || actor.Role != models.RoleManager {
		return nil, ErrForbiddenOperation
	}

	ids, err := s.eventRepo.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list event ids: %w", err)
	}

	var mu sync.Mutex
	results := make([]RepairResult, 0, len(ids))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(repairConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			result, err := s.recountOne(gCtx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *RepairService) recountOne(ctx context.Context, eventID int) (RepairResult, error) {
	result := RepairResult{EventID: eventID}

	before, err := s.eventRepo.GetCounts(ctx, nil, eventID)
	if err != nil {
		return result, fmt.Errorf("failed to read counts for event %d: %w", eventID, err)
	}
	result.Before = before

	actual, err := s.eventRepo.ComputeCounts(ctx, nil, eventID)
	if err != nil {
		return result, fmt.Errorf("failed to compute counts for event %d: %w", eventID, err)
	}
	result.After = actual

	if before == actual {
		return result, nil
	}

	if err := s.eventRepo.UpdateCounts(ctx, nil, eventID, actual); err != nil {
		return result, fmt.Errorf("failed to update counts for event %d: %w", eventID, err)
	}
	result.Fixed = true
	s.logger.Warn("event counters repaired",
		slog.Int("event_id", eventID),
		slog.Any("before", before),
		slog.Any("after", actual))
	return result, nil
}
