package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Olzhas-K/sportsmeet-system/models"
)

func newConfigRepoMock(t *testing.T) (SystemConfigRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresSystemConfigRepository(db), mock
}

func TestClaimFreeNumberIsCompareAndPull(t *testing.T) {
	repo, mock := newConfigRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE system_config
			SET free_jersey_numbers = array_remove(free_jersey_numbers, $1)
			WHERE key = $2 AND $1 = ANY(free_jersey_numbers)`)).
		WithArgs(4, models.SystemConfigKey).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.ClaimFreeNumber(context.Background(), 4); err != nil {
		t.Fatalf("ClaimFreeNumber() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestClaimFreeNumberLostRace(t *testing.T) {
	repo, mock := newConfigRepoMock(t)

	// Номер уже вынут конкурентом: предусловие ANY не прошло.
	mock.ExpectExec(`UPDATE system_config`).
		WithArgs(4, models.SystemConfigKey).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ClaimFreeNumber(context.Background(), 4)
	if !errors.Is(err, ErrFreeNumberClaimed) {
		t.Fatalf("ClaimFreeNumber() error = %v, want ErrFreeNumberClaimed", err)
	}
}

func TestReleaseNumberIdempotent(t *testing.T) {
	repo, mock := newConfigRepoMock(t)

	// Повторный возврат того же номера не должен стать ошибкой:
	// предусловие NOT ANY просто не изменит строку.
	mock.ExpectExec(`UPDATE system_config`).
		WithArgs(7, models.SystemConfigKey).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.ReleaseNumber(context.Background(), nil, 7); err != nil {
		t.Fatalf("ReleaseNumber() error = %v", err)
	}
}

func TestNextJerseyNumberReturnsIncrementedValue(t *testing.T) {
	repo, mock := newConfigRepoMock(t)

	rows := sqlmock.NewRows([]string{"last_assigned_jersey_number"}).AddRow(43)
	mock.ExpectQuery(regexp.QuoteMeta(
		`UPDATE system_config
			SET last_assigned_jersey_number = last_assigned_jersey_number + 1
			WHERE key = $1
			RETURNING last_assigned_jersey_number`)).
		WithArgs(models.SystemConfigKey).
		WillReturnRows(rows)

	number, err := repo.NextJerseyNumber(context.Background())
	if err != nil {
		t.Fatalf("NextJerseyNumber() error = %v", err)
	}
	if number != 43 {
		t.Errorf("NextJerseyNumber() = %d, want 43", number)
	}
}
