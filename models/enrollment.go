package models

// AttendanceStatus представляет статус посещаемости записи участника,
// соответствующий ENUM в БД.
type AttendanceStatus string

const (
	StatusNotMarked AttendanceStatus = "notMarked"
	StatusPresent   AttendanceStatus = "present"
	StatusAbsent    AttendanceStatus = "absent"
)

// Enrollment - одна запись участника на событие.
// Position 0 означает отсутствие результата, 1–3 - занятое место.
type Enrollment struct {
	ParticipantID int              `json:"participant_id" db:"participant_id"`
	EventID       int              `json:"event_id" db:"event_id"`
	EventName     string           `json:"event_name,omitempty" db:"-"`
	Status        AttendanceStatus `json:"status" db:"status"`
	Position      int              `json:"position" db:"position"`
}
