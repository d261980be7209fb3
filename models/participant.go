package models

import "time"

// ParticipantRole представляет роль участника, соответствующую ENUM в БД.
type ParticipantRole string

const (
	RoleStudent ParticipantRole = "student"
	RoleAdmin   ParticipantRole = "admin"
	RoleManager ParticipantRole = "manager"
)

// Gender участника; должен совпадать с категорией события при записи.
type Gender string

const (
	GenderBoys  Gender = "boys"
	GenderGirls Gender = "girls"
)

// Participant представляет зарегистрированного участника соревнований.
type Participant struct {
	ID              int             `json:"id" db:"id"`
	Handle          string          `json:"handle" db:"handle"`
	FirstName       string          `json:"first_name" db:"first_name"`
	LastName        string          `json:"last_name" db:"last_name"`
	Email           string          `json:"email" db:"email"`
	PasswordHash    string          `json:"-" db:"password_hash"`
	Role            ParticipantRole `json:"role" db:"role"`
	Gender          Gender          `json:"gender" db:"gender"`
	JerseyNumber    *int            `json:"jersey_number,omitempty" db:"jersey_number"`
	DetailsComplete bool            `json:"details_complete" db:"details_complete"`
	IsEventsLocked  bool            `json:"is_events_locked" db:"is_events_locked"`
	PhotoKey        *string         `json:"-" db:"photo_key"`
	PhotoURL        *string         `json:"photo_url,omitempty" db:"-"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`

	// Заполняется отдельно, не мапится напрямую
	SelectedEvents []Enrollment `json:"selected_events,omitempty" db:"-"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
