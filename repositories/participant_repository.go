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
	ErrParticipantNotFound       = errors.New("participant not found")
	ErrParticipantHandleConflict = errors.New("participant handle conflict")
	ErrParticipantEmailConflict  = errors.New("participant email conflict")
	ErrParticipantJerseyConflict = errors.New("participant jersey number conflict")

	// ErrParticipantJerseySet: условное присвоение номера не прошло,
	// потому что номер уже выставлен конкурирующим запросом.
	ErrParticipantJerseySet = errors.New("participant already has a jersey number")

	// ErrParticipantLockState: предусловие на is_events_locked не выполнилось.
	ErrParticipantLockState = errors.New("participant lock flag is not in the expected state")

	// ErrParticipantAlreadyComplete: повторная попытка завершить регистрацию.
	ErrParticipantAlreadyComplete = errors.New("participant details are already complete")
)

type ParticipantRepository interface {
	Create(ctx context.Context, p *models.Participant) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error)
	GetByEmail(ctx context.Context, email string) (*models.Participant, error)
	GetByJerseyNumber(ctx context.Context, exec SQLExecutor, number int) (*models.Participant, error)
	ListByJerseyNumbers(ctx context.Context, exec SQLExecutor, numbers []int, forUpdate bool) ([]*models.Participant, error)
	AssignJerseyNumber(ctx context.Context, id, number int) error
	CompleteDetails(ctx context.Context, id int) error
	SetEventsLocked(ctx context.Context, exec SQLExecutor, id int, locked, expectCurrent bool) error
	ClearEventsLock(ctx context.Context, exec SQLExecutor, id int) error
	LockMany(ctx context.Context, exec SQLExecutor, ids []int) error
	UpdateProfile(ctx context.Context, p *models.Participant) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const participantColumns = `id, handle, first_name, last_name, email, password_hash, role, gender, jersey_number, details_complete, is_events_locked, photo_key, created_at`

func (r *postgresParticipantRepository) scanParticipant(rowScanner interface {
	Scan(dest ...interface{}) error
}, p *models.Participant) error {
	return rowScanner.Scan(
		&p.ID,
		&p.Handle,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.PasswordHash,
		&p.Role,
		&p.Gender,
		&p.JerseyNumber,
		&p.DetailsComplete,
		&p.IsEventsLocked,
		&p.PhotoKey,
		&p.CreatedAt,
	)
}

func (r *postgresParticipantRepository) Create(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (handle, first_name, last_name, email, password_hash, role, gender)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		p.Handle,
		p.FirstName,
		p.LastName,
		p.Email,
		p.PasswordHash,
		p.Role,
		p.Gender,
	).Scan(&p.ID, &p.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				switch pqErr.Constraint {
				case "participants_handle_key":
					return ErrParticipantHandleConflict
				case "participants_email_key":
					return ErrParticipantEmailConflict
				}
			}
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

func (r *postgresParticipantRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Participant, error) {
	p := &models.Participant{}
	row := r.getExecutor(exec).QueryRowContext(ctx, query, args...)
	err := r.scanParticipant(row, p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`
	return r.findOne(ctx, exec, query, id)
}

// GetByIDForUpdate блокирует строку участника до конца транзакции.
// Используется каскадным удалением.
func (r *postgresParticipantRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1 FOR UPDATE`
	return r.findOne(ctx, exec, query, id)
}

func (r *postgresParticipantRepository) GetByEmail(ctx context.Context, email string) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE email = $1`
	return r.findOne(ctx, nil, query, email)
}

func (r *postgresParticipantRepository) GetByJerseyNumber(ctx context.Context, exec SQLExecutor, number int) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE jersey_number = $1`
	return r.findOne(ctx, exec, query, number)
}

func (r *postgresParticipantRepository) ListByJerseyNumbers(ctx context.Context, exec SQLExecutor, numbers []int, forUpdate bool) ([]*models.Participant, error) {
	nums := make([]int64, len(numbers))
	for i, n := range numbers {
		nums[i] = int64(n)
	}

	query := `SELECT ` + participantColumns + ` FROM participants WHERE jersey_number = ANY($1) ORDER BY jersey_number`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, pq.Array(nums))
	if err != nil {
		return nil, fmt.Errorf("failed to list participants by jersey numbers: %w", err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0, len(numbers))
	for rows.Next() {
		var p models.Participant
		if err := r.scanParticipant(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		participants = append(participants, &p)
	}
	return participants, rows.Err()
}

// AssignJerseyNumber присваивает номер только если он ещё не присвоен.
// Нулевое число изменённых строк означает конкурирующее присвоение.
func (r *postgresParticipantRepository) AssignJerseyNumber(ctx context.Context, id, number int) error {
	query := `UPDATE participants SET jersey_number = $1 WHERE id = $2 AND jersey_number IS NULL`
	result, err := r.db.ExecContext(ctx, query, number, id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrParticipantJerseyConflict
		}
		return fmt.Errorf("failed to assign jersey number: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantJerseySet)
}

func (r *postgresParticipantRepository) CompleteDetails(ctx context.Context, id int) error {
	query := `UPDATE participants SET details_complete = TRUE WHERE id = $1 AND details_complete = FALSE`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to complete participant details: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantAlreadyComplete)
}

// SetEventsLocked выставляет флаг блокировки с предусловием на текущее значение.
// Это единственная защита от двойного lock/unlock под гонкой.
func (r *postgresParticipantRepository) SetEventsLocked(ctx context.Context, exec SQLExecutor, id int, locked, expectCurrent bool) error {
	query := `UPDATE participants SET is_events_locked = $1 WHERE id = $2 AND is_events_locked = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, locked, id, expectCurrent)
	if err != nil {
		return fmt.Errorf("failed to set events lock flag: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantLockState)
}

// ClearEventsLock безусловно снимает флаг. Используется компенсацией
// и штатным unlock, где предусловие уже проверено выше.
func (r *postgresParticipantRepository) ClearEventsLock(ctx context.Context, exec SQLExecutor, id int) error {
	query := `UPDATE participants SET is_events_locked = FALSE WHERE id = $1`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to clear events lock flag: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

// LockMany выставляет is_events_locked всем перечисленным участникам.
// Побочный эффект массовой записи на командное событие.
func (r *postgresParticipantRepository) LockMany(ctx context.Context, exec SQLExecutor, ids []int) error {
	idArr := make([]int64, len(ids))
	for i, id := range ids {
		idArr[i] = int64(id)
	}
	query := `UPDATE participants SET is_events_locked = TRUE WHERE id = ANY($1)`
	_, err := r.getExecutor(exec).ExecContext(ctx, query, pq.Array(idArr))
	if err != nil {
		return fmt.Errorf("failed to lock participants: %w", err)
	}
	return nil
}

func (r *postgresParticipantRepository) UpdateProfile(ctx context.Context, p *models.Participant) error {
	query := `
		UPDATE participants
		SET first_name = $1, last_name = $2, email = $3, photo_key = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(ctx, query, p.FirstName, p.LastName, p.Email, p.PhotoKey, p.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrParticipantEmailConflict
		}
		return fmt.Errorf("failed to update participant profile: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	query := `DELETE FROM participants WHERE id = $1`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}
