package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Olzhas-K/sportsmeet-system/models"
	"github.com/lib/pq"
)

var (
	ErrSystemConfigNotFound = errors.New("system config not found")

	// ErrFreeNumberClaimed: условный array_remove не изменил строку -
	// номер уже забран конкурирующим аллокатором.
	ErrFreeNumberClaimed = errors.New("free jersey number already claimed")
)

type SystemConfigRepository interface {
	Get(ctx context.Context, exec SQLExecutor) (*models.SystemConfig, error)
	ClaimFreeNumber(ctx context.Context, number int) error
	ReleaseNumber(ctx context.Context, exec SQLExecutor, number int) error
	NextJerseyNumber(ctx context.Context) (int, error)
	SetCertificatesLocked(ctx context.Context, locked bool) error
}

type postgresSystemConfigRepository struct {
	db *sql.DB
}

func NewPostgresSystemConfigRepository(db *sql.DB) SystemConfigRepository {
	return &postgresSystemConfigRepository{db: db}
}

func (r *postgresSystemConfigRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresSystemConfigRepository) Get(ctx context.Context, exec SQLExecutor) (*models.SystemConfig, error) {
	cfg := &models.SystemConfig{}
	query := `
		SELECT key, last_assigned_jersey_number, free_jersey_numbers, certificates_locked
		FROM system_config WHERE key = $1`
	err := r.getExecutor(exec).QueryRowContext(ctx, query, models.SystemConfigKey).Scan(
		&cfg.Key,
		&cfg.LastAssignedJerseyNumber,
		pq.Array(&cfg.FreeJerseyNumbers),
		&cfg.CertificatesLocked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSystemConfigNotFound
		}
		return nil, fmt.Errorf("failed to get system config: %w", err)
	}
	return cfg, nil
}

// ClaimFreeNumber атомарно вынимает номер из свободного списка.
// Предусловие "$1 = ANY(...)" делает из удаления compare-and-pull:
// проигравший гонку аллокатор получает ErrFreeNumberClaimed.
func (r *postgresSystemConfigRepository) ClaimFreeNumber(ctx context.Context, number int) error {
	query := `
		UPDATE system_config
		SET free_jersey_numbers = array_remove(free_jersey_numbers, $1)
		WHERE key = $2 AND $1 = ANY(free_jersey_numbers)`
	result, err := r.db.ExecContext(ctx, query, number, models.SystemConfigKey)
	if err != nil {
		return fmt.Errorf("failed to claim free jersey number: %w", err)
	}
	return checkAffectedRows(result, ErrFreeNumberClaimed)
}

// ReleaseNumber возвращает номер в свободный список. Предусловие
// NOT ANY защищает от дублей при повторной компенсации.
func (r *postgresSystemConfigRepository) ReleaseNumber(ctx context.Context, exec SQLExecutor, number int) error {
	query := `
		UPDATE system_config
		SET free_jersey_numbers = array_append(free_jersey_numbers, $1)
		WHERE key = $2 AND NOT ($1 = ANY(free_jersey_numbers))`
	_, err := r.getExecutor(exec).ExecContext(ctx, query, number, models.SystemConfigKey)
	if err != nil {
		return fmt.Errorf("failed to release jersey number: %w", err)
	}
	return nil
}

// NextJerseyNumber атомарно сдвигает верхнюю границу выданных номеров.
func (r *postgresSystemConfigRepository) NextJerseyNumber(ctx context.Context) (int, error) {
	var number int
	query := `
		UPDATE system_config
		SET last_assigned_jersey_number = last_assigned_jersey_number + 1
		WHERE key = $1
		RETURNING last_assigned_jersey_number`
	err := r.db.QueryRowContext(ctx, query, models.SystemConfigKey).Scan(&number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrSystemConfigNotFound
		}
		return 0, fmt.Errorf("failed to increment jersey counter: %w", err)
	}
	return number, nil
}

func (r *postgresSystemConfigRepository) SetCertificatesLocked(ctx context.Context, locked bool) error {
	query := `UPDATE system_config SET certificates_locked = $1 WHERE key = $2`
	result, err := r.db.ExecContext(ctx, query, locked, models.SystemConfigKey)
	if err != nil {
		return fmt.Errorf("failed to set certificates lock: %w", err)
	}
	return checkAffectedRows(result, ErrSystemConfigNotFound)
}
