package models

import "time"

// Session - выданная сессия участника. Удаляется каскадно при удалении участника.
type Session struct {
	ID            int       `json:"id" db:"id"`
	ParticipantID int       `json:"participant_id" db:"participant_id"`
	TokenHash     string    `json:"-" db:"token_hash"`
	ExpiresAt     time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
