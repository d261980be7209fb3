package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
//
// Классы ошибок движка согласованности:
//   - валидация: отклоняется до любой записи, исправляется вызывающей стороной;
//   - конфликт: предусловие условного обновления не выполнилось из-за
//     конкурирующей записи, вызывающая сторона повторяет операцию целиком;
//   - рассинхронизация счётчиков: вторичная запись не изменила ожидаемое число
//     строк, компенсация уже выполнена к моменту возврата ошибки;
//   - фатальное нарушение инварианта: счётчик ушёл бы в минус; операция
//     прервана, автоматическая компенсация запрещена.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed       = errors.New("validation failed")
	ErrPasswordTooShort       = errors.New("password is too short")
	ErrEmptySelection         = errors.New("event selection is empty")
	ErrDuplicateSelection     = errors.New("event selection contains duplicates")
	ErrEventInactive          = errors.New("event is not active")
	ErrCategoryMismatch       = errors.New("event category does not match participant gender")
	ErrSelectionCapExceeded   = errors.New("more than three track and field events selected")
	ErrDisciplineCapExceeded  = errors.New("more than two events of one discipline selected")
	ErrTeamEventSelfEnroll    = errors.New("team events cannot be self-selected")
	ErrNotTeamEvent           = errors.New("bulk enrollment is only allowed for team events")
	ErrInvalidTransition      = errors.New("attendance transition is not allowed")
	ErrInvalidResultPositions = errors.New("between one and three jersey numbers are required for results")
	ErrEventCapExceeded       = errors.New("participant exceeds the maximum number of events")
	ErrNotEnrolled            = errors.New("participant is not enrolled in this event")

	// Ошибки конфликтов (предусловие не выполнилось, повторите операцию)
	ErrHandleTaken             = errors.New("handle is already in use")
	ErrEmailTaken              = errors.New("email address is already in use")
	ErrEventsAlreadyLocked     = errors.New("events are already locked")
	ErrEventsNotLocked         = errors.New("events are not locked")
	ErrAttendanceStateChanged  = errors.New("attendance state already changed by a concurrent operation")
	ErrAlreadyMarkedPresent    = errors.New("participant is already marked present for this event")
	ErrAttendanceAlreadyMarked = errors.New("attendance has already been marked for a selected event")
	ErrAlreadyEnrolled         = errors.New("participant is already enrolled in this event")
	ErrResultAlreadyRecorded   = errors.New("a result is already recorded for this enrollment")
	ErrJerseyAllocationFailed  = errors.New("jersey number allocation conflict")
	ErrDetailsAlreadyComplete  = errors.New("registration details are already complete")
	ErrGenderMismatch          = errors.New("one or more jersey numbers belong to the wrong gender")

	// Рассинхронизация счётчиков: первичная запись откатана компенсацией.
	ErrEventCounterDesync = errors.New("event counters did not match the expected update, operation was rolled back")

	// Фатальное нарушение инварианта счётчиков. Не компенсируется,
	// требует процедуры восстановления (пересчёта из записей участников).
	ErrEventCountersCorrupted = errors.New("event counters are corrupted, manual repair required")

	// Ошибки аутентификации и авторизации
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")

	// Ошибки, специфичные для сущностей
	ErrParticipantNotFound = errors.New("participant not found")
	ErrEventNotFound       = errors.New("event not found")
	ErrSessionNotFound     = errors.New("session not found")
)
