package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Olzhas-K/sportsmeet-system/models"
	"github.com/Olzhas-K/sportsmeet-system/repositories"
)

func deleteFixtureRepos(target *models.Participant, entries []models.Enrollment) (*fakeParticipantRepo, *fakeEnrollmentRepo, *fakeSessionRepo, *[]string) {
	calls := []string{}
	participantRepo := &fakeParticipantRepo{
		GetByIDForUpdateFunc: func(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Participant, error) {
			return target, nil
		},
		DeleteFunc: func(ctx context.Context, _ repositories.SQLExecutor, id int) error {
			calls = append(calls, "delete:participant")
			return nil
		},
	}
	enrollmentRepo := &fakeEnrollmentRepo{
		ListByParticipantFunc: func(ctx context.Context, _ repositories.SQLExecutor, participantID int) ([]models.Enrollment, error) {
			return entries, nil
		},
		DeleteByParticipantFunc: func(ctx context.Context, _ repositories.SQLExecutor, participantID int) error {
			calls = append(calls, "delete:enrollments")
			return nil
		},
	}
	sessionRepo := &fakeSessionRepo{
		DeleteByParticipantFunc: func(ctx context.Context, _ repositories.SQLExecutor, participantID int) error {
			calls = append(calls, "delete:sessions")
			return nil
		},
	}
	return participantRepo, enrollmentRepo, sessionRepo, &calls
}

func TestDeleteCascadesAndReleasesJersey(t *testing.T) {
	db, mock := newTxMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	jersey := 7
	target := &models.Participant{ID: 10, Role: models.RoleStudent, JerseyNumber: &jersey}
	entries := []models.Enrollment{
		{ParticipantID: 10, EventID: 1, Status: models.StatusPresent},
		{ParticipantID: 10, EventID: 2, Status: models.StatusNotMarked},
		{ParticipantID: 10, EventID: 3, Status: models.StatusNotMarked},
	}

	participantRepo, enrollmentRepo, sessionRepo, calls := deleteFixtureRepos(target, entries)

	decremented := make(map[models.AttendanceStatus][]int)
	eventRepo := &fakeEventRepo{
		DecrementStatusCountFunc: func(ctx context.Context, _ repositories.SQLExecutor, status models.AttendanceStatus, eventIDs []int) ([]int, error) {
			decremented[status] = eventIDs
			return eventIDs, nil
		},
		GetCountsFunc: func(ctx context.Context, _ repositories.SQLExecutor, eventID int) (models.StudentsCount, error) {
			return models.StudentsCount{}, nil
		},
	}
	released := 0
	configRepo := &fakeSystemConfigRepo{
		ReleaseNumberFunc: func(ctx context.Context, _ repositories.SQLExecutor, number int) error {
			released = number
			return nil
		},
	}
	hub := &fakeHub{}

	svc := NewParticipantService(db, participantRepo, enrollmentRepo, eventRepo, sessionRepo, configRepo, nil, nil, nil, hub, discardLogger())
	admin := &models.Participant{ID: 1, Role: models.RoleAdmin}

	if err := svc.Delete(context.Background(), admin, 10); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(decremented[models.StatusNotMarked]) != 2 || len(decremented[models.StatusPresent]) != 1 {
		t.Errorf("decrements = %v, want 2 notMarked and 1 present", decremented)
	}
	if released != 7 {
		t.Errorf("released jersey = %d, want 7", released)
	}
	wantOrder := []string{"delete:enrollments", "delete:sessions", "delete:participant"}
	if len(*calls) != len(wantOrder) {
		t.Fatalf("calls = %v, want %v", *calls, wantOrder)
	}
	for i := range wantOrder {
		if (*calls)[i] != wantOrder[i] {
			t.Errorf("call %d = %s, want %s", i, (*calls)[i], wantOrder[i])
		}
	}
	if len(hub.broadcasts) != 3 {
		t.Errorf("broadcasts = %v, want one per affected event", hub.broadcasts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestDeleteAbortsOnCounterShortfall(t *testing.T) {
	db, mock := newTxMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	target := &models.Participant{ID: 10, Role: models.RoleStudent}
	entries := []models.Enrollment{
		{ParticipantID: 10, EventID: 1, Status: models.StatusNotMarked},
		{ParticipantID: 10, EventID: 2, Status: models.StatusNotMarked},
	}
	participantRepo, enrollmentRepo, sessionRepo, calls := deleteFixtureRepos(target, entries)

	eventRepo := &fakeEventRepo{
		DecrementStatusCountFunc: func(ctx context.Context, _ repositories.SQLExecutor, status models.AttendanceStatus, eventIDs []int) ([]int, error) {
			// Счётчик одного из событий уже на нуле.
			return eventIDs[:1], nil
		},
	}

	svc := NewParticipantService(db, participantRepo, enrollmentRepo, eventRepo, sessionRepo, &fakeSystemConfigRepo{}, nil, nil, nil, nil, discardLogger())
	admin := &models.Participant{ID: 1, Role: models.RoleAdmin}

	err := svc.Delete(context.Background(), admin, 10)
	if !errors.Is(err, ErrEventCountersCorrupted) {
		t.Fatalf("Delete() error = %v, want ErrEventCountersCorrupted", err)
	}
	if len(*calls) != 0 {
		t.Errorf("calls = %v, nothing may be deleted after a shortfall", *calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestDeleteChecksRoleFromLockedRow(t *testing.T) {
	db, mock := newTxMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	// В БД цель оказывается менеджером, чем бы она ни выглядела в запросе.
	target := &models.Participant{ID: 10, Role: models.RoleManager}
	participantRepo, enrollmentRepo, sessionRepo, calls := deleteFixtureRepos(target, nil)

	svc := NewParticipantService(db, participantRepo, enrollmentRepo, &fakeEventRepo{}, sessionRepo, &fakeSystemConfigRepo{}, nil, nil, nil, nil, discardLogger())
	admin := &models.Participant{ID: 1, Role: models.RoleAdmin}

	err := svc.Delete(context.Background(), admin, 10)
	if !errors.Is(err, ErrForbiddenOperation) {
		t.Fatalf("Delete() error = %v, want ErrForbiddenOperation", err)
	}
	if len(*calls) != 0 {
		t.Errorf("calls = %v, forbidden delete must not touch data", *calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestCompleteRegistrationRejectsRepeat(t *testing.T) {
	participantRepo := &fakeParticipantRepo{
		CompleteDetailsFunc: func(ctx context.Context, id int) error {
			return repositories.ErrParticipantAlreadyComplete
		},
	}
	svc := NewParticipantService(nil, participantRepo, &fakeEnrollmentRepo{}, &fakeEventRepo{}, &fakeSessionRepo{}, &fakeSystemConfigRepo{}, nil, nil, nil, nil, discardLogger())

	_, err := svc.CompleteRegistration(context.Background(), 10)
	if !errors.Is(err, ErrDetailsAlreadyComplete) {
		t.Fatalf("CompleteRegistration() error = %v, want ErrDetailsAlreadyComplete", err)
	}
}

func TestCompleteRegistrationAllocatesJersey(t *testing.T) {
	participantRepo := &fakeParticipantRepo{
		CompleteDetailsFunc: func(ctx context.Context, id int) error {
			return nil
		},
		AssignJerseyNumberFunc: func(ctx context.Context, id, number int) error {
			return nil
		},
	}
	configRepo := &fakeSystemConfigRepo{
		GetFunc: func(ctx context.Context, _ repositories.SQLExecutor) (*models.SystemConfig, error) {
			return &models.SystemConfig{}, nil
		},
		NextJerseyNumberFunc: func(ctx context.Context) (int, error) {
			return 15, nil
		},
	}
	jerseySvc := NewJerseyService(participantRepo, configRepo, discardLogger())
	svc := NewParticipantService(nil, participantRepo, &fakeEnrollmentRepo{}, &fakeEventRepo{}, &fakeSessionRepo{}, configRepo, jerseySvc, nil, nil, nil, discardLogger())

	number, err := svc.CompleteRegistration(context.Background(), 10)
	if err != nil {
		t.Fatalf("CompleteRegistration() error = %v", err)
	}
	if number != 15 {
		t.Errorf("jersey number = %d, want 15", number)
	}
}

func TestUpdateProfileSelfAllowedForStudent(t *testing.T) {
	stored := &models.Participant{ID: 10, Role: models.RoleStudent, FirstName: "Aruzhan", Email: "a@school.kz"}
	participantRepo := &fakeParticipantRepo{
		GetByIDFunc: func(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Participant, error) {
			return stored, nil
		},
		UpdateProfileFunc: func(ctx context.Context, p *models.Participant) error {
			return nil
		},
	}
	svc := NewParticipantService(nil, participantRepo, &fakeEnrollmentRepo{}, &fakeEventRepo{}, &fakeSessionRepo{}, &fakeSystemConfigRepo{}, nil, nil, nil, nil, discardLogger())
	actor := &models.Participant{ID: 10, Role: models.RoleStudent}

	updated, err := svc.UpdateProfile(context.Background(), actor, 10, UpdateProfileInput{FirstName: "Dana"})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.FirstName != "Dana" {
		t.Errorf("FirstName = %s, want Dana", updated.FirstName)
	}
	if updated.Email != "a@school.kz" {
		t.Errorf("Email = %s, empty input must keep the stored value", updated.Email)
	}
}

func TestUpdateProfileForbiddenForOtherStudent(t *testing.T) {
	stored := &models.Participant{ID: 11, Role: models.RoleStudent}
	participantRepo := &fakeParticipantRepo{
		GetByIDFunc: func(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Participant, error) {
			return stored, nil
		},
	}
	svc := NewParticipantService(nil, participantRepo, &fakeEnrollmentRepo{}, &fakeEventRepo{}, &fakeSessionRepo{}, &fakeSystemConfigRepo{}, nil, nil, nil, nil, discardLogger())
	actor := &models.Participant{ID: 10, Role: models.RoleStudent}

	_, err := svc.UpdateProfile(context.Background(), actor, 11, UpdateProfileInput{FirstName: "X"})
	if !errors.Is(err, ErrForbiddenOperation) {
		t.Fatalf("UpdateProfile() error = %v, want ErrForbiddenOperation", err)
	}
}

func TestGetProfileForbiddenForOtherStudent(t *testing.T) {
	svc := NewParticipantService(nil, &fakeParticipantRepo{}, &fakeEnrollmentRepo{}, &fakeEventRepo{}, &fakeSessionRepo{}, &fakeSystemConfigRepo{}, nil, nil, nil, nil, discardLogger())
	actor := &models.Participant{ID: 10, Role: models.RoleStudent}

	_, err := svc.GetProfile(context.Background(), actor, 11)
	if !errors.Is(err, ErrForbiddenOperation) {
		t.Fatalf("GetProfile() error = %v, want ErrForbiddenOperation", err)
	}
}
