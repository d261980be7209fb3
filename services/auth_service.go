package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Olzhas-K/sportsmeet-system/models"
	"github.com/Olzhas-K/sportsmeet-system/repositories"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthHandleTaken        = errors.New("handle is already taken")
	ErrAuthEmailTaken         = errors.New("email is already taken")
)

const minPasswordLength = 8

type RegisterInput struct {
	Handle    string `json:"handle"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Gender    string `json:"gender"`
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.Participant, error)
	Login(ctx context.Context, input LoginInput) (*models.Participant, error)
	CreateSession(ctx context.Context, participantID int, token string, expiresAt time.Time) error
	Logout(ctx context.Context, token string) error
	PurgeExpiredSessions(ctx context.Context) (int, error)
}

type authService struct {
	participantRepo repositories.ParticipantRepository
	sessionRepo     repositories.SessionRepository
}

func NewAuthService(participantRepo repositories.ParticipantRepository, sessionRepo repositories.SessionRepository) AuthService {
	return &authService{
		participantRepo: participantRepo,
		sessionRepo:     sessionRepo,
	}
}

// Register создаёт участника с незавершённой анкетой. Стартовый номер
// не выдаётся до завершения регистрации (см. ParticipantService).
func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.Participant, error) {
	if len(input.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	gender := models.Gender(input.Gender)
	if gender != models.GenderBoys && gender != models.GenderGirls {
		return nil, fmt.Errorf("%w: unknown gender %q", ErrValidationFailed, input.Gender)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	participant := &models.Participant{
		Handle:       strings.ToLower(strings.TrimSpace(input.Handle)),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: string(hashedPassword),
		Role:         models.RoleStudent,
		Gender:       gender,
	}

	if err := s.participantRepo.Create(ctx, participant); err != nil {
		switch {
		case errors.Is(err, repositories.ErrParticipantHandleConflict):
			return nil, ErrAuthHandleTaken
		case errors.Is(err, repositories.ErrParticipantEmailConflict):
			return nil, ErrAuthEmailTaken
		}
		return nil, fmt.Errorf("ошибка создания участника: %w", err)
	}

	participant.PasswordHash = ""
	return participant, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*models.Participant, error) {
	participant, err := s.participantRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find participant by email: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(participant.PasswordHash), []byte(input.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to compare password hash: %w", err)
	}

	participant.PasswordHash = ""
	return participant, nil
}

// CreateSession сохраняет хеш выданного токена. В базе лежит только хеш:
// утечка таблицы сессий не раскрывает сами токены.
func (s *authService) CreateSession(ctx context.Context, participantID int, token string, expiresAt time.Time) error {
	session := &models.Session{
		ParticipantID: participantID,
		TokenHash:     hashToken(token),
		ExpiresAt:     expiresAt,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	err := s.sessionRepo.DeleteByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *authService) PurgeExpiredSessions(ctx context.Context) (int, error) {
	return s.sessionRepo.DeleteExpired(ctx)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
