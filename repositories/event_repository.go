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
	ErrEventNotFound = errors.New("event not found")

	// ErrEventCounterConflict: охраняемое обновление счётчика не изменило строку -
	// счётчик исходного статуса оказался меньше ожидаемой дельты.
	ErrEventCounterConflict = errors.New("event counter precondition failed")
)

type EventRepository interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Event, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Event, error)
	ListByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]*models.Event, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Event, error)
	ListIDs(ctx context.Context) ([]int, error)
	SetActive(ctx context.Context, id int, active bool) error
	IncrementNotMarked(ctx context.Context, exec SQLExecutor, eventIDs []int) ([]int, error)
	DecrementStatusCount(ctx context.Context, exec SQLExecutor, status models.AttendanceStatus, eventIDs []int) ([]int, error)
	MoveCounter(ctx context.Context, exec SQLExecutor, eventID int, from, to models.AttendanceStatus, delta int) error
	AddToCounter(ctx context.Context, exec SQLExecutor, eventID int, status models.AttendanceStatus, delta int) error
	GetCounts(ctx context.Context, exec SQLExecutor, eventID int) (models.StudentsCount, error)
	ComputeCounts(ctx context.Context, exec SQLExecutor, eventID int) (models.StudentsCount, error)
	UpdateCounts(ctx context.Context, exec SQLExecutor, eventID int, counts models.StudentsCount) error
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

// counterColumn отображает статус на имя колонки счётчика.
// Статусы приходят из фиксированного набора модели, не от пользователя.
func counterColumn(status models.AttendanceStatus) (string, error) {
	switch status {
	case models.StatusPresent:
		return "present_count", nil
	case models.StatusAbsent:
		return "absent_count", nil
	case models.StatusNotMarked:
		return "not_marked_count", nil
	default:
		return "", fmt.Errorf("unknown attendance status %q", status)
	}
}

const eventColumns = `id, name, discipline, category, day, is_active, present_count, absent_count, not_marked_count`

func (r *postgresEventRepository) scanEvent(rowScanner interface {
	Scan(dest ...interface{}) error
}, e *models.Event) error {
	return rowScanner.Scan(
		&e.ID,
		&e.Name,
		&e.Discipline,
		&e.Category,
		&e.Day,
		&e.IsActive,
		&e.StudentsCount.Present,
		&e.StudentsCount.Absent,
		&e.StudentsCount.NotMarked,
	)
}

func (r *postgresEventRepository) Create(ctx context.Context, e *models.Event) error {
	query := `
		INSERT INTO events (name, discipline, category, day, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query, e.Name, e.Discipline, e.Category, e.Day, e.IsActive).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *postgresEventRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Event, error) {
	e := &models.Event{}
	row := r.getExecutor(exec).QueryRowContext(ctx, query, args...)
	if err := r.scanEvent(row, e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to find event: %w", err)
	}
	return e, nil
}

func (r *postgresEventRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return r.findOne(ctx, exec, query, id)
}

func (r *postgresEventRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`
	return r.findOne(ctx, exec, query, id)
}

func (r *postgresEventRepository) ListByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]*models.Event, error) {
	idArr := make([]int64, len(ids))
	for i, id := range ids {
		idArr[i] = int64(id)
	}
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ANY($1) ORDER BY id`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, pq.Array(idArr))
	if err != nil {
		return nil, fmt.Errorf("failed to list events by ids: %w", err)
	}
	defer rows.Close()

	events := make([]*models.Event, 0, len(ids))
	for rows.Next() {
		var e models.Event
		if err := r.scanEvent(rows, &e); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *postgresEventRepository) List(ctx context.Context, activeOnly bool) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY day, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.Event, 0)
	for rows.Next() {
		var e models.Event
		if err := r.scanEvent(rows, &e); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *postgresEventRepository) ListIDs(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list event ids: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresEventRepository) SetActive(ctx context.Context, id int, active bool) error {
	query := `UPDATE events SET is_active = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("failed to set event active flag: %w", err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

// IncrementNotMarked увеличивает not_marked_count только у активных событий
// и возвращает идентификаторы фактически изменённых строк. Вызывающая сторона
// сравнивает их число с запрошенным и компенсирует расхождение.
func (r *postgresEventRepository) IncrementNotMarked(ctx context.Context, exec SQLExecutor, eventIDs []int) ([]int, error) {
	idArr := make([]int64, len(eventIDs))
	for i, id := range eventIDs {
		idArr[i] = int64(id)
	}
	query := `
		UPDATE events SET not_marked_count = not_marked_count + 1
		WHERE id = ANY($1) AND is_active
		RETURNING id`
	return r.updateReturningIDs(ctx, exec, query, pq.Array(idArr))
}

// DecrementStatusCount уменьшает счётчик указанного статуса, охраняясь от ухода
// в минус. Недостача строк в результате - признак рассинхронизации счётчиков.
func (r *postgresEventRepository) DecrementStatusCount(ctx context.Context, exec SQLExecutor, status models.AttendanceStatus, eventIDs []int) ([]int, error) {
	column, err := counterColumn(status)
	if err != nil {
		return nil, err
	}
	idArr := make([]int64, len(eventIDs))
	for i, id := range eventIDs {
		idArr[i] = int64(id)
	}
	query := fmt.Sprintf(`
		UPDATE events SET %[1]s = %[1]s - 1
		WHERE id = ANY($1) AND %[1]s > 0
		RETURNING id`, column)
	return r.updateReturningIDs(ctx, exec, query, pq.Array(idArr))
}

func (r *postgresEventRepository) updateReturningIDs(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]int, error) {
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update event counters: %w", err)
	}
	defer rows.Close()

	updated := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan updated event id: %w", err)
		}
		updated = append(updated, id)
	}
	return updated, rows.Err()
}

// MoveCounter переносит delta участников из одного счётчика в другой одним
// оператором: промежуточное состояние, где изменился только один счётчик,
// невозможно наблюдать. Предусловие не даёт исходному счётчику уйти в минус.
func (r *postgresEventRepository) MoveCounter(ctx context.Context, exec SQLExecutor, eventID int, from, to models.AttendanceStatus, delta int) error {
	fromCol, err := counterColumn(from)
	if err != nil {
		return err
	}
	toCol, err := counterColumn(to)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE events SET %[1]s = %[1]s - $1, %[2]s = %[2]s + $1
		WHERE id = $2 AND %[1]s >= $1`, fromCol, toCol)
	result, err := r.getExecutor(exec).ExecContext(ctx, query, delta, eventID)
	if err != nil {
		return fmt.Errorf("failed to move event counter: %w", err)
	}
	return checkAffectedRows(result, ErrEventCounterConflict)
}

func (r *postgresEventRepository) AddToCounter(ctx context.Context, exec SQLExecutor, eventID int, status models.AttendanceStatus, delta int) error {
	column, err := counterColumn(status)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE events SET %[1]s = %[1]s + $1
		WHERE id = $2 AND %[1]s + $1 >= 0`, column)
	result, err := r.getExecutor(exec).ExecContext(ctx, query, delta, eventID)
	if err != nil {
		return fmt.Errorf("failed to add to event counter: %w", err)
	}
	return checkAffectedRows(result, ErrEventCounterConflict)
}

func (r *postgresEventRepository) GetCounts(ctx context.Context, exec SQLExecutor, eventID int) (models.StudentsCount, error) {
	var counts models.StudentsCount
	query := `SELECT present_count, absent_count, not_marked_count FROM events WHERE id = $1`
	err := r.getExecutor(exec).QueryRowContext(ctx, query, eventID).Scan(&counts.Present, &counts.Absent, &counts.NotMarked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return counts, ErrEventNotFound
		}
		return counts, fmt.Errorf("failed to get event counts: %w", err)
	}
	return counts, nil
}

// ComputeCounts пересчитывает счётчики из записей участников.
// Процедура восстановления после рассинхронизации.
func (r *postgresEventRepository) ComputeCounts(ctx context.Context, exec SQLExecutor, eventID int) (models.StudentsCount, error) {
	var counts models.StudentsCount
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'present'),
			COUNT(*) FILTER (WHERE status = 'absent'),
			COUNT(*) FILTER (WHERE status = 'notMarked')
		FROM enrollments WHERE event_id = $1`
	err := r.getExecutor(exec).QueryRowContext(ctx, query, eventID).Scan(&counts.Present, &counts.Absent, &counts.NotMarked)
	if err != nil {
		return counts, fmt.Errorf("failed to compute event counts: %w", err)
	}
	return counts, nil
}

func (r *postgresEventRepository) UpdateCounts(ctx context.Context, exec SQLExecutor, eventID int, counts models.StudentsCount) error {
	query := `UPDATE events SET present_count = $1, absent_count = $2, not_marked_count = $3 WHERE id = $4`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, counts.Present, counts.Absent, counts.NotMarked, eventID)
	if err != nil {
		return fmt.Errorf("failed to update event counts: %w", err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}
