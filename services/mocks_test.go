package services

import (
	"context"
	"io"
	"log/slog"

	"github.com/Olzhas-K/sportsmeet-system/models"
	"github.com/Olzhas-K/sportsmeet-system/repositories"
)

// Ручные фейки репозиториев: тест выставляет только нужные ему функции.

type fakeParticipantRepo struct {
	CreateFunc              func(ctx context.Context, p *models.Participant) error
	GetByIDFunc             func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Participant, error)
	GetByIDForUpdateFunc    func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Participant, error)
	GetByEmailFunc          func(ctx context.Context, email string) (*models.Participant, error)
	GetByJerseyNumberFunc   func(ctx context.Context, exec repositories.SQLExecutor, number int) (*models.Participant, error)
	ListByJerseyNumbersFunc func(ctx context.Context, exec repositories.SQLExecutor, numbers []int, forUpdate bool) ([]*models.Participant, error)
	AssignJerseyNumberFunc  func(ctx context.Context, id, number int) error
	CompleteDetailsFunc     func(ctx context.Context, id int) error
	SetEventsLockedFunc     func(ctx context.Context, exec repositories.SQLExecutor, id int, locked, expectCurrent bool) error
	ClearEventsLockFunc     func(ctx context.Context, exec repositories.SQLExecutor, id int) error
	LockManyFunc            func(ctx context.Context, exec repositories.SQLExecutor, ids []int) error
	UpdateProfileFunc       func(ctx context.Context, p *models.Participant) error
	DeleteFunc              func(ctx context.Context, exec repositories.SQLExecutor, id int) error
}

func (f *fakeParticipantRepo) Create(ctx context.Context, p *models.Participant) error {
	return f.CreateFunc(ctx, p)
}

func (f *fakeParticipantRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Participant, error) {
	return f.GetByIDFunc(ctx, exec, id)
}

func (f *fakeParticipantRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Participant, error) {
	return f.GetByIDForUpdateFunc(ctx, exec, id)
}

func (f *fakeParticipantRepo) GetByEmail(ctx context.Context, email string) (*models.Participant, error) {
	return f.GetByEmailFunc(ctx, email)
}

func (f *fakeParticipantRepo) GetByJerseyNumber(ctx context.Context, exec repositories.SQLExecutor, number int) (*models.Participant, error) {
	return f.GetByJerseyNumberFunc(ctx, exec, number)
}

func (f *fakeParticipantRepo) ListByJerseyNumbers(ctx context.Context, exec repositories.SQLExecutor, numbers []int, forUpdate bool) ([]*models.Participant, error) {
	return f.ListByJerseyNumbersFunc(ctx, exec, numbers, forUpdate)
}

func (f *fakeParticipantRepo) AssignJerseyNumber(ctx context.Context, id, number int) error {
	return f.AssignJerseyNumberFunc(ctx, id, number)
}

func (f *fakeParticipantRepo) CompleteDetails(ctx context.Context, id int) error {
	return f.CompleteDetailsFunc(ctx, id)
}

func (f *fakeParticipantRepo) SetEventsLocked(ctx context.Context, exec repositories.SQLExecutor, id int, locked, expectCurrent bool) error {
	return f.SetEventsLockedFunc(ctx, exec, id, locked, expectCurrent)
}

func (f *fakeParticipantRepo) ClearEventsLock(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	return f.ClearEventsLockFunc(ctx, exec, id)
}

func (f *fakeParticipantRepo) LockMany(ctx context.Context, exec repositories.SQLExecutor, ids []int) error {
	return f.LockManyFunc(ctx, exec, ids)
}

func (f *fakeParticipantRepo) UpdateProfile(ctx context.Context, p *models.Participant) error {
	return f.UpdateProfileFunc(ctx, p)
}

func (f *fakeParticipantRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	return f.DeleteFunc(ctx, exec, id)
}

type fakeEnrollmentRepo struct {
	InsertBatchFunc                func(ctx context.Context, exec repositories.SQLExecutor, participantID int, eventIDs []int) error
	InsertTeamBatchFunc            func(ctx context.Context, exec repositories.SQLExecutor, eventID int, participantIDs []int) error
	GetFunc                        func(ctx context.Context, exec repositories.SQLExecutor, participantID, eventID int) (*models.Enrollment, error)
	ListByParticipantFunc          func(ctx context.Context, exec repositories.SQLExecutor, participantID int) ([]models.Enrollment, error)
	ListForEventByParticipantsFunc func(ctx context.Context, exec repositories.SQLExecutor, eventID int, participantIDs []int, forUpdate bool) ([]models.Enrollment, error)
	CountByParticipantFunc         func(ctx context.Context, exec repositories.SQLExecutor, participantID int) (int, error)
	UpdateStatusFunc               func(ctx context.Context, exec repositories.SQLExecutor, participantID, eventID int, from, to models.AttendanceStatus) error
	BulkUpdateStatusFunc           func(ctx context.Context, exec repositories.SQLExecutor, eventID int, participantIDs []int, target models.AttendanceStatus) (int, error)
	SetResultPositionFunc          func(ctx context.Context, exec repositories.SQLExecutor, participantID, eventID, position int) error
	DeleteByParticipantFunc        func(ctx context.Context, exec repositories.SQLExecutor, participantID int) error
}

func (f *fakeEnrollmentRepo) InsertBatch(ctx context.Context, exec repositories.SQLExecutor, participantID int, eventIDs []int) error {
	return f.InsertBatchFunc(ctx, exec, participantID, eventIDs)
}

func (f *fakeEnrollmentRepo) InsertTeamBatch(ctx context.Context, exec repositories.SQLExecutor, eventID int, participantIDs []int) error {
	return f.InsertTeamBatchFunc(ctx, exec, eventID, participantIDs)
}

func (f *fakeEnrollmentRepo) Get(ctx context.Context, exec repositories.SQLExecutor, participantID, eventID int) (*models.Enrollment, error) {
	return f.GetFunc(ctx, exec, participantID, eventID)
}

func (f *fakeEnrollmentRepo) ListByParticipant(ctx context.Context, exec repositories.SQLExecutor, participantID int) ([]models.Enrollment, error) {
	return f.ListByParticipantFunc(ctx, exec, participantID)
}

func (f *fakeEnrollmentRepo) ListForEventByParticipants(ctx context.Context, exec repositories.SQLExecutor, eventID int, participantIDs []int, forUpdate bool) ([]models.Enrollment, error) {
	return f.ListForEventByParticipantsFunc(ctx, exec, eventID, participantIDs, forUpdate)
}

func (f *fakeEnrollmentRepo) CountByParticipant(ctx context.Context, exec repositories.SQLExecutor, participantID int) (int, error) {
	return f.CountByParticipantFunc(ctx, exec, participantID)
}

func (f *fakeEnrollmentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, participantID, eventID int, from, to models.AttendanceStatus) error {
	return f.UpdateStatusFunc(ctx, exec, participantID, eventID, from, to)
}

func (f *fakeEnrollmentRepo) BulkUpdateStatus(ctx context.Context, exec repositories.SQLExecutor, eventID int, participantIDs []int, target models.AttendanceStatus) (int, error) {
	return f.BulkUpdateStatusFunc(ctx, exec, eventID, participantIDs, target)
}

func (f *fakeEnrollmentRepo) SetResultPosition(ctx context.Context, exec repositories.SQLExecutor, participantID, eventID, position int) error {
	return f.SetResultPositionFunc(ctx, exec, participantID, eventID, position)
}

func (f *fakeEnrollmentRepo) DeleteByParticipant(ctx context.Context, exec repositories.SQLExecutor, participantID int) error {
	return f.DeleteByParticipantFunc(ctx, exec, participantID)
}

type fakeEventRepo struct {
	CreateFunc               func(ctx context.Context, e *models.Event) error
	GetByIDFunc              func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Event, error)
	GetByIDForUpdateFunc     func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Event, error)
	ListByIDsFunc            func(ctx context.Context, exec repositories.SQLExecutor, ids []int) ([]*models.Event, error)
	ListFunc                 func(ctx context.Context, activeOnly bool) ([]*models.Event, error)
	ListIDsFunc              func(ctx context.Context) ([]int, error)
	SetActiveFunc            func(ctx context.Context, id int, active bool) error
	IncrementNotMarkedFunc   func(ctx context.Context, exec repositories.SQLExecutor, eventIDs []int) ([]int, error)
	DecrementStatusCountFunc func(ctx context.Context, exec repositories.SQLExecutor, status models.AttendanceStatus, eventIDs []int) ([]int, error)
	MoveCounterFunc          func(ctx context.Context, exec repositories.SQLExecutor, eventID int, from, to models.AttendanceStatus, delta int) error
	AddToCounterFunc         func(ctx context.Context, exec repositories.SQLExecutor, eventID int, status models.AttendanceStatus, delta int) error
	GetCountsFunc            func(ctx context.Context, exec repositories.SQLExecutor, eventID int) (models.StudentsCount, error)
	ComputeCountsFunc        func(ctx context.Context, exec repositories.SQLExecutor, eventID int) (models.StudentsCount, error)
	UpdateCountsFunc         func(ctx context.Context, exec repositories.SQLExecutor, eventID int, counts models.StudentsCount) error
}

func (f *fakeEventRepo) Create(ctx context.Context, e *models.Event) error {
	return f.CreateFunc(ctx, e)
}

func (f *fakeEventRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Event, error) {
	return f.GetByIDFunc(ctx, exec, id)
}

func (f *fakeEventRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Event, error) {
	return f.GetByIDForUpdateFunc(ctx, exec, id)
}

func (f *fakeEventRepo) ListByIDs(ctx context.Context, exec repositories.SQLExecutor, ids []int) ([]*models.Event, error) {
	return f.ListByIDsFunc(ctx, exec, ids)
}

func (f *fakeEventRepo) List(ctx context.Context, activeOnly bool) ([]*models.Event, error) {
	return f.ListFunc(ctx, activeOnly)
}

func (f *fakeEventRepo) ListIDs(ctx context.Context) ([]int, error) {
	return f.ListIDsFunc(ctx)
}

func (f *fakeEventRepo) SetActive(ctx context.Context, id int, active bool) error {
	return f.SetActiveFunc(ctx, id, active)
}

func (f *fakeEventRepo) IncrementNotMarked(ctx context.Context, exec repositories.SQLExecutor, eventIDs []int) ([]int, error) {
	return f.IncrementNotMarkedFunc(ctx, exec, eventIDs)
}

func (f *fakeEventRepo) DecrementStatusCount(ctx context.Context, exec repositories.SQLExecutor, status models.AttendanceStatus, eventIDs []int) ([]int, error) {
	return f.DecrementStatusCountFunc(ctx, exec, status, eventIDs)
}

func (f *fakeEventRepo) MoveCounter(ctx context.Context, exec repositories.SQLExecutor, eventID int, from, to models.AttendanceStatus, delta int) error {
	return f.MoveCounterFunc(ctx, exec, eventID, from, to, delta)
}

func (f *fakeEventRepo) AddToCounter(ctx context.Context, exec repositories.SQLExecutor, eventID int, status models.AttendanceStatus, delta int) error {
	return f.AddToCounterFunc(ctx, exec, eventID, status, delta)
}

func (f *fakeEventRepo) GetCounts(ctx context.Context, exec repositories.SQLExecutor, eventID int) (models.StudentsCount, error) {
	return f.GetCountsFunc(ctx, exec, eventID)
}

func (f *fakeEventRepo) ComputeCounts(ctx context.Context, exec repositories.SQLExecutor, eventID int) (models.StudentsCount, error) {
	return f.ComputeCountsFunc(ctx, exec, eventID)
}

func (f *fakeEventRepo) UpdateCounts(ctx context.Context, exec repositories.SQLExecutor, eventID int, counts models.StudentsCount) error {
	return f.UpdateCountsFunc(ctx, exec, eventID, counts)
}

type fakeSystemConfigRepo struct {
	GetFunc                   func(ctx context.Context, exec repositories.SQLExecutor) (*models.SystemConfig, error)
	ClaimFreeNumberFunc       func(ctx context.Context, number int) error
	ReleaseNumberFunc         func(ctx context.Context, exec repositories.SQLExecutor, number int) error
	NextJerseyNumberFunc      func(ctx context.Context) (int, error)
	SetCertificatesLockedFunc func(ctx context.Context, locked bool) error
}

func (f *fakeSystemConfigRepo) Get(ctx context.Context, exec repositories.SQLExecutor) (*models.SystemConfig, error) {
	return f.GetFunc(ctx, exec)
}

func (f *fakeSystemConfigRepo) ClaimFreeNumber(ctx context.Context, number int) error {
	return f.ClaimFreeNumberFunc(ctx, number)
}

func (f *fakeSystemConfigRepo) ReleaseNumber(ctx context.Context, exec repositories.SQLExecutor, number int) error {
	return f.ReleaseNumberFunc(ctx, exec, number)
}

func (f *fakeSystemConfigRepo) NextJerseyNumber(ctx context.Context) (int, error) {
	return f.NextJerseyNumberFunc(ctx)
}

func (f *fakeSystemConfigRepo) SetCertificatesLocked(ctx context.Context, locked bool) error {
	return f.SetCertificatesLockedFunc(ctx, locked)
}

type fakeSessionRepo struct {
	CreateFunc              func(ctx context.Context, s *models.Session) error
	GetByTokenHashFunc      func(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteByTokenHashFunc   func(ctx context.Context, tokenHash string) error
	DeleteByParticipantFunc func(ctx context.Context, exec repositories.SQLExecutor, participantID int) error
	DeleteExpiredFunc       func(ctx context.Context) (int, error)
}

func (f *fakeSessionRepo) Create(ctx context.Context, s *models.Session) error {
	return f.CreateFunc(ctx, s)
}

func (f *fakeSessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	return f.GetByTokenHashFunc(ctx, tokenHash)
}

func (f *fakeSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	return f.DeleteByTokenHashFunc(ctx, tokenHash)
}

func (f *fakeSessionRepo) DeleteByParticipant(ctx context.Context, exec repositories.SQLExecutor, participantID int) error {
	return f.DeleteByParticipantFunc(ctx, exec, participantID)
}

func (f *fakeSessionRepo) DeleteExpired(ctx context.Context) (int, error) {
	return f.DeleteExpiredFunc(ctx)
}

// fakeHub записывает рассылки счётчиков.
type fakeHub struct {
	broadcasts []int
}

func (h *fakeHub) BroadcastCounts(eventID int, counts models.StudentsCount) {
	h.broadcasts = append(h.broadcasts, eventID)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
