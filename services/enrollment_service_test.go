package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Olzhas-K/sportsmeet-system/models"
	"github.com/Olzhas-K/sportsmeet-system/repositories"
)

func trackEvent(id int) *models.Event {
	return &models.Event{ID: id, Name: "100m", Discipline: models.DisciplineTrack, Category: models.CategoryBoys, IsActive: true}
}

func fieldEvent(id int) *models.Event {
	return &models.Event{ID: id, Name: "long jump", Discipline: models.DisciplineField, Category: models.CategoryBoys, IsActive: true}
}

func TestValidateSelection(t *testing.T) {
	boy := &models.Participant{ID: 1, Gender: models.GenderBoys}

	inactive := trackEvent(9)
	inactive.IsActive = false

	girlsEvent := trackEvent(8)
	girlsEvent.Category = models.CategoryGirls

	teamEvent := trackEvent(7)
	teamEvent.Discipline = models.DisciplineTeam

	tests := []struct {
		name    string
		events  []*models.Event
		wantErr error
	}{
		{"valid selection", []*models.Event{trackEvent(1), trackEvent(2), fieldEvent(3)}, nil},
		{"inactive event", []*models.Event{inactive}, ErrEventInactive},
		{"category mismatch", []*models.Event{girlsEvent}, ErrCategoryMismatch},
		{"team event self-selected", []*models.Event{teamEvent}, ErrTeamEventSelfEnroll},
		{"more than three events", []*models.Event{trackEvent(1), trackEvent(2), fieldEvent(3), fieldEvent(4)}, ErrSelectionCapExceeded},
		{"three of one discipline", []*models.Event{trackEvent(1), trackEvent(2), trackEvent(3)}, ErrDisciplineCapExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSelection(boy, tt.events)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validateSelection() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLockRejectsAlreadyLockedParticipant(t *testing.T) {
	participantRepo := &fakeParticipantRepo{
		GetByIDFunc: func(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Participant, error) {
			return &models.Participant{ID: id, Gender: models.GenderBoys, IsEventsLocked: true}, nil
		},
	}

	svc := NewEnrollmentService(participantRepo, &fakeEnrollmentRepo{}, &fakeEventRepo{}, nil, discardLogger())
	_, err := svc.Lock(context.Background(), 1, []int{1, 2})
	if !errors.Is(err, ErrEventsAlreadyLocked) {
		t.Fatalf("Lock() error = %v, want ErrEventsAlreadyLocked", err)
	}
}

func TestLockLosingRaceReturnsConflictWithoutCompensation(t *testing.T) {
	compensated := false
	participantRepo := &fakeParticipantRepo{
		GetByIDFunc: func(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Participant, error) {
			return &models.Participant{ID: id, Gender: models.GenderBoys}, nil
		},
		SetEventsLockedFunc: func(ctx context.Context, _ repositories.SQLExecutor, id int, locked, expectCurrent bool) error {
			return repositories.ErrParticipantLockState
		},
		ClearEventsLockFunc: func(ctx context.Context, _ repositories.SQLExecutor, id int) error {
			compensated = true
			return nil
		},
	}
	eventRepo := &fakeEventRepo{
		ListByIDsFunc: func(ctx context.Context, _ repositories.SQLExecutor, ids []int) ([]*models.Event, error) {
			return []*models.Event{trackEvent(1), fieldEvent(2)}, nil
		},
	}

	svc := NewEnrollmentService(participantRepo, &fakeEnrollmentRepo{}, eventRepo, nil, discardLogger())
	_, err := svc.Lock(context.Background(), 1, []int{1, 2})
	if !errors.Is(err, ErrEventsAlreadyLocked) {
		t.Fatalf("Lock() error = %v, want ErrEventsAlreadyLocked", err)
	}
	if compensated {
		t.Error("losing the participant gate must not trigger compensation")
	}
}

func TestLockCounterShortfallRollsBack(t *testing.T) {
	var decremented []int
	enrollmentsDeleted := false
	lockCleared := false

	participantRepo := &fakeParticipantRepo{
		GetByIDFunc: func(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Participant, error) {
			return &models.Participant{ID: id, Gender: models.GenderBoys}, nil
		},
		SetEventsLockedFunc: func(ctx context.Context, _ repositories.SQLExecutor, id int, locked, expectCurrent bool) error {
			return nil
		},
		ClearEventsLockFunc: func(ctx context.Context, _ repositories.SQLExecutor, id int) error {
			lockCleared = true
			return nil
		},
	}
	enrollmentRepo := &fakeEnrollmentRepo{
		InsertBatchFunc: func(ctx context.Context, _ repositories.SQLExecutor, participantID int, eventIDs []int) error {
			return nil
		},
		DeleteByParticipantFunc: func(ctx context.Context, _ repositories.SQLExecutor, participantID int) error {
			enrollmentsDeleted = true
			return nil
		},
	}
	eventRepo := &fakeEventRepo{
		ListByIDsFunc: func(ctx context.Context, _ repositories.SQLExecutor, ids []int) ([]*models.Event, error) {
			return []*models.Event{trackEvent(1), fieldEvent(2)}, nil
		},
		IncrementNotMarkedFunc: func(ctx context.Context, _ repositories.SQLExecutor, eventIDs []int) ([]int, error) {
			// Событие 2 деактивировали между валидацией и инкрементом.
			return []int{1}, nil
		},
		DecrementStatusCountFunc: func(ctx context.Context, _ repositories.SQLExecutor, status models.AttendanceStatus, eventIDs []int) ([]int, error) {
			decremented = append(decremented, eventIDs...)
			return eventIDs, nil
		},
	}

	svc := NewEnrollmentService(participantRepo, enrollmentRepo, eventRepo, nil, discardLogger())
	_, err := svc.Lock(context.Background(), 1, []int{1, 2})
	if !errors.Is(err, ErrEventCounterDesync) {
		t.Fatalf("Lock() error = %v, want ErrEventCounterDesync", err)
	}
	if len(decremented) != 1 || decremented[0] != 1 {
		t.Errorf("compensation decremented %v, want only the applied increment [1]", decremented)
	}
	if !enrollmentsDeleted {
		t.Error("compensation must delete inserted enrollments")
	}
	if !lockCleared {
		t.Error("compensation must clear the lock flag")
	}
}

func TestSelfUnlockRejectedWhenAttendanceMarked(t *testing.T) {
	actor := &models.Participant{ID: 1, Role: models.RoleStudent}
	participantRepo := &fakeParticipantRepo{
		GetByIDFunc: func(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Participant, error) {
			return &models.Participant{ID: id, Role: models.RoleStudent, IsEventsLocked: true}, nil
		},
	}
	enrollmentRepo := &fakeEnrollmentRepo{
		ListByParticipantFunc: func(ctx context.Context, _ repositories.SQLExecutor, participantID int) ([]models.Enrollment, error) {
			return []models.Enrollment{
				{ParticipantID: participantID, EventID: 1, Status: models.StatusNotMarked},
				{ParticipantID: participantID, EventID: 2, Status: models.StatusPresent},
			}, nil
		},
	}

	svc := NewEnrollmentService(participantRepo, enrollmentRepo, &fakeEventRepo{}, nil, discardLogger())
	err := svc.Unlock(context.Background(), actor, 1)
	if !errors.Is(err, ErrAttendanceAlreadyMarked) {
		t.Fatalf("Unlock() error = %v, want ErrAttendanceAlreadyMarked", err)
	}
}

func TestStaffUnlockDecrementsPerStatus(t *testing.T) {
	actor := &models.Participant{ID: 99, Role: models.RoleManager}
	decrements := make(map[models.AttendanceStatus][]int)
	deleted := false
	cleared := false

	participantRepo := &fakeParticipantRepo{
		GetByIDFunc: func(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Participant, error) {
			return &models.Participant{ID: id, Role: models.RoleStudent, IsEventsLocked: true}, nil
		},
		ClearEventsLockFunc: func(ctx context.Context, _ repositories.SQLExecutor, id int) error {
			cleared = true
			return nil
		},
	}
	enrollmentRepo := &fakeEnrollmentRepo{
		ListByParticipantFunc: func(ctx context.Context, _ repositories.SQLExecutor, participantID int) ([]models.Enrollment, error) {
			return []models.Enrollment{
				{ParticipantID: participantID, EventID: 1, Status: models.StatusPresent},
				{ParticipantID: participantID, EventID: 2, Status: models.StatusNotMarked},
				{ParticipantID: participantID, EventID: 3, Status: models.StatusPresent},
			}, nil
		},
		DeleteByParticipantFunc: func(ctx context.Context, _ repositories.SQLExecutor, participantID int) error {
			deleted = true
			return nil
		},
	}
	eventRepo := &fakeEventRepo{
		DecrementStatusCountFunc: func(ctx context.Context, _ repositories.SQLExecutor, status models.AttendanceStatus, eventIDs []int) ([]int, error) {
			decrements[status] = append(decrements[status], eventIDs...)
			return eventIDs, nil
		},
		GetCountsFunc: func(ctx context.Context, _ repositories.SQLExecutor, eventID int) (models.StudentsCount, error) {
			return models.StudentsCount{}, nil
		},
	}

	hub := &fakeHub{}
	svc := NewEnrollmentService(participantRepo, enrollmentRepo, eventRepo, hub, discardLogger())
	if err := svc.Unlock(context.Background(), actor, 1); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if got := decrements[models.StatusPresent]; len(got) != 2 {
		t.Errorf("present decrements = %v, want events 1 and 3", got)
	}
	if got := decrements[models.StatusNotMarked]; len(got) != 1 || got[0] != 2 {
		t.Errorf("notMarked decrements = %v, want [2]", got)
	}
	if !deleted || !cleared {
		t.Error("unlock must delete enrollments and clear the lock flag")
	}
	if len(hub.broadcasts) != 3 {
		t.Errorf("broadcasts = %d, want one per event", len(hub.broadcasts))
	}
}

func TestUnlockCounterShortfallIsFatal(t *testing.T) {
	actor := &models.Participant{ID: 99, Role: models.RoleManager}
	deleted := false

	participantRepo := &fakeParticipantRepo{
		GetByIDFunc: func(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Participant, error) {
			return &models.Participant{ID: id, Role: models.RoleStudent, IsEventsLocked: true}, nil
		},
	}
	enrollmentRepo := &fakeEnrollmentRepo{
		ListByParticipantFunc: func(ctx context.Context, _ repositories.SQLExecutor, participantID int) ([]models.Enrollment, error) {
			return []models.Enrollment{
				{ParticipantID: participantID, EventID: 1, Status: models.StatusPresent},
			}, nil
		},
		DeleteByParticipantFunc: func(ctx context.Context, _ repositories.SQLExecutor, participantID int) error {
			deleted = true
			return nil
		},
	}
	eventRepo := &fakeEventRepo{
		DecrementStatusCountFunc: func(ctx context.Context, _ repositories.SQLExecutor, status models.AttendanceStatus, eventIDs []int) ([]int, error) {
			// Счётчик уже на нуле: охраняемый декремент не изменил строку.
			return nil, nil
		},
	}

	svc := NewEnrollmentService(participantRepo, enrollmentRepo, eventRepo, nil, discardLogger())
	err := svc.Unlock(context.Background(), actor, 1)
	if !errors.Is(err, ErrEventCountersCorrupted) {
		t.Fatalf("Unlock() error = %v, want ErrEventCountersCorrupted", err)
	}
	if deleted {
		t.Error("fatal invariant violation must abort before deleting enrollments")
	}
}

func TestLockRejectsDuplicateSelection(t *testing.T) {
	svc := NewEnrollmentService(&fakeParticipantRepo{}, &fakeEnrollmentRepo{}, &fakeEventRepo{}, nil, discardLogger())
	_, err := svc.Lock(context.Background(), 1, []int{3, 3})
	if !errors.Is(err, ErrDuplicateSelection) {
		t.Fatalf("Lock() error = %v, want ErrDuplicateSelection", err)
	}
}
