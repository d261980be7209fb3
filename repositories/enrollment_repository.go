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
	ErrEnrollmentNotFound = errors.New("enrollment not found")

	// ErrEnrollmentStateChanged: условное обновление не прошло, потому что
	// статус записи уже изменён конкурирующей операцией.
	ErrEnrollmentStateChanged = errors.New("enrollment state already changed")

	ErrEnrollmentDuplicate = errors.New("participant is already enrolled in this event")

	// ErrEnrollmentHasResult: запись уже несёт результат (position > 0).
	ErrEnrollmentHasResult = errors.New("enrollment already has a recorded result")
)

type EnrollmentRepository interface {
	InsertBatch(ctx context.Context, exec SQLExecutor, participantID int, eventIDs []int) error
	InsertTeamBatch(ctx context.Context, exec SQLExecutor, eventID int, participantIDs []int) error
	Get(ctx context.Context, exec SQLExecutor, participantID, eventID int) (*models.Enrollment, error)
	ListByParticipant(ctx context.Context, exec SQLExecutor, participantID int) ([]models.Enrollment, error)
	ListForEventByParticipants(ctx context.Context, exec SQLExecutor, eventID int, participantIDs []int, forUpdate bool) ([]models.Enrollment, error)
	CountByParticipant(ctx context.Context, exec SQLExecutor, participantID int) (int, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, participantID, eventID int, from, to models.AttendanceStatus) error
	BulkUpdateStatus(ctx context.Context, exec SQLExecutor, eventID int, participantIDs []int, target models.AttendanceStatus) (int, error)
	SetResultPosition(ctx context.Context, exec SQLExecutor, participantID, eventID, position int) error
	DeleteByParticipant(ctx context.Context, exec SQLExecutor, participantID int) error
}

type postgresEnrollmentRepository struct {
	db *sql.DB
}

func NewPostgresEnrollmentRepository(db *sql.DB) EnrollmentRepository {
	return &postgresEnrollmentRepository{db: db}
}

func (r *postgresEnrollmentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresEnrollmentRepository) InsertBatch(ctx context.Context, exec SQLExecutor, participantID int, eventIDs []int) error {
	executor := r.getExecutor(exec)
	ids := make([]int64, len(eventIDs))
	for i, id := range eventIDs {
		ids[i] = int64(id)
	}
	query := `
		INSERT INTO enrollments (participant_id, event_id, status, position)
		SELECT $1, e.id, 'notMarked', 0 FROM events e WHERE e.id = ANY($2)`
	result, err := executor.ExecContext(ctx, query, participantID, pq.Array(ids))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrEnrollmentDuplicate
		}
		return fmt.Errorf("failed to insert enrollments: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check inserted enrollments: %w", err)
	}
	if affected != int64(len(eventIDs)) {
		return fmt.Errorf("inserted %d of %d enrollments: %w", affected, len(eventIDs), ErrEnrollmentNotFound)
	}
	return nil
}

func (r *postgresEnrollmentRepository) InsertTeamBatch(ctx context.Context, exec SQLExecutor, eventID int, participantIDs []int) error {
	executor := r.getExecutor(exec)
	ids := make([]int64, len(participantIDs))
	for i, id := range participantIDs {
		ids[i] = int64(id)
	}
	query := `
		INSERT INTO enrollments (participant_id, event_id, status, position)
		SELECT p.id, $1, 'notMarked', 0 FROM participants p WHERE p.id = ANY($2)`
	_, err := executor.ExecContext(ctx, query, eventID, pq.Array(ids))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrEnrollmentDuplicate
		}
		return fmt.Errorf("failed to insert team enrollments: %w", err)
	}
	return nil
}

func (r *postgresEnrollmentRepository) Get(ctx context.Context, exec SQLExecutor, participantID, eventID int) (*models.Enrollment, error) {
	query := `SELECT participant_id, event_id, status, position FROM enrollments WHERE participant_id = $1 AND event_id = $2`
	var e models.Enrollment
	err := r.getExecutor(exec).QueryRowContext(ctx, query, participantID, eventID).Scan(
		&e.ParticipantID, &e.EventID, &e.Status, &e.Position,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return &e, nil
}

func (r *postgresEnrollmentRepository) ListByParticipant(ctx context.Context, exec SQLExecutor, participantID int) ([]models.Enrollment, error) {
	query := `
		SELECT en.participant_id, en.event_id, ev.name, en.status, en.position
		FROM enrollments en
		JOIN events ev ON en.event_id = ev.id
		WHERE en.participant_id = $1
		ORDER BY en.event_id`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := make([]models.Enrollment, 0)
	for rows.Next() {
		var e models.Enrollment
		if err := rows.Scan(&e.ParticipantID, &e.EventID, &e.EventName, &e.Status, &e.Position); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment row: %w", err)
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

// ListForEventByParticipants читает записи одного события для набора участников.
// forUpdate блокирует строки до конца транзакции (массовые операции).
func (r *postgresEnrollmentRepository) ListForEventByParticipants(ctx context.Context, exec SQLExecutor, eventID int, participantIDs []int, forUpdate bool) ([]models.Enrollment, error) {
	ids := make([]int64, len(participantIDs))
	for i, id := range participantIDs {
		ids[i] = int64(id)
	}
	query := `
		SELECT participant_id, event_id, status, position
		FROM enrollments
		WHERE event_id = $1 AND participant_id = ANY($2)
		ORDER BY participant_id`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, eventID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments for event: %w", err)
	}
	defer rows.Close()

	enrollments := make([]models.Enrollment, 0, len(participantIDs))
	for rows.Next() {
		var e models.Enrollment
		if err := rows.Scan(&e.ParticipantID, &e.EventID, &e.Status, &e.Position); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment row: %w", err)
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

func (r *postgresEnrollmentRepository) CountByParticipant(ctx context.Context, exec SQLExecutor, participantID int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM enrollments WHERE participant_id = $1`
	err := r.getExecutor(exec).QueryRowContext(ctx, query, participantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count enrollments: %w", err)
	}
	return count, nil
}

// UpdateStatus - условный переход статуса. Предусловие требует конкретный
// текущий статус, а не просто существование записи: проигравшая гонку
// сторона получает ErrEnrollmentStateChanged, а не перезаписывает чужой переход.
func (r *postgresEnrollmentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, participantID, eventID int, from, to models.AttendanceStatus) error {
	query := `UPDATE enrollments SET status = $1 WHERE participant_id = $2 AND event_id = $3 AND status = $4`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, to, participantID, eventID, from)
	if err != nil {
		return fmt.Errorf("failed to update enrollment status: %w", err)
	}
	return checkAffectedRows(result, ErrEnrollmentStateChanged)
}

// BulkUpdateStatus переводит в целевой статус только записи, которые ещё не в нём
// и не несут результат (position = 0). Возвращает число изменённых строк.
func (r *postgresEnrollmentRepository) BulkUpdateStatus(ctx context.Context, exec SQLExecutor, eventID int, participantIDs []int, target models.AttendanceStatus) (int, error) {
	ids := make([]int64, len(participantIDs))
	for i, id := range participantIDs {
		ids[i] = int64(id)
	}
	query := `
		UPDATE enrollments SET status = $1
		WHERE event_id = $2 AND participant_id = ANY($3) AND status <> $1 AND position = 0`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, target, eventID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to bulk update enrollment status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check bulk updated rows: %w", err)
	}
	return int(affected), nil
}

func (r *postgresEnrollmentRepository) SetResultPosition(ctx context.Context, exec SQLExecutor, participantID, eventID, position int) error {
	query := `UPDATE enrollments SET position = $1 WHERE participant_id = $2 AND event_id = $3 AND position = 0`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, position, participantID, eventID)
	if err != nil {
		return fmt.Errorf("failed to set result position: %w", err)
	}
	return checkAffectedRows(result, ErrEnrollmentHasResult)
}

func (r *postgresEnrollmentRepository) DeleteByParticipant(ctx context.Context, exec SQLExecutor, participantID int) error {
	query := `DELETE FROM enrollments WHERE participant_id = $1`
	_, err := r.getExecutor(exec).ExecContext(ctx, query, participantID)
	if err != nil {
		return fmt.Errorf("failed to delete enrollments: %w", err)
	}
	return nil
}
