package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Olzhas-K/sportsmeet-system/models"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteByParticipant(ctx context.Context, exec SQLExecutor, participantID int) error
	DeleteExpired(ctx context.Context) (int, error)
}

type postgresSessionRepository struct {
	db *sql.DB
}

func NewPostgresSessionRepository(db *sql.DB) SessionRepository {
	return &postgresSessionRepository{db: db}
}

func (r *postgresSessionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresSessionRepository) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (participant_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, s.ParticipantID, s.TokenHash, s.ExpiresAt).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *postgresSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	s := &models.Session{}
	query := `SELECT id, participant_id, token_hash, expires_at, created_at FROM sessions WHERE token_hash = $1`
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(&s.ID, &s.ParticipantID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (r *postgresSessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	query := `DELETE FROM sessions WHERE token_hash = $1`
	result, err := r.db.ExecContext(ctx, query, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return checkAffectedRows(result, ErrSessionNotFound)
}

func (r *postgresSessionRepository) DeleteByParticipant(ctx context.Context, exec SQLExecutor, participantID int) error {
	query := `DELETE FROM sessions WHERE participant_id = $1`
	_, err := r.getExecutor(exec).ExecContext(ctx, query, participantID)
	if err != nil {
		return fmt.Errorf("failed to delete participant sessions: %w", err)
	}
	return nil
}

func (r *postgresSessionRepository) DeleteExpired(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check deleted sessions: %w", err)
	}
	return int(affected), nil
}
