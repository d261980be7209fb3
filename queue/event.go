package queue

// Имена очередей совпадают с ключами маршрутизации: публикация идёт в
// exchange по умолчанию, потребители объявляют одноимённые durable-очереди.
const (
	RoutingKeyParticipantRegistered = "participant.registered"
	RoutingKeyCertificateRequested  = "certificate.requested"
)

// ParticipantRegistered публикуется после завершения регистрации, когда
// участнику присвоен стартовый номер.
type ParticipantRegistered struct {
	ParticipantID int    `json:"participant_id"`
	JerseyNumber  int    `json:"jersey_number"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	RegisteredAt  string `json:"registered_at"`
}

// CertificateRequested публикуется для каждого призёра после фиксации
// результатов события. Потребитель печатает сертификат.
type CertificateRequested struct {
	JerseyNumber int    `json:"jersey_number"`
	EventID      int    `json:"event_id"`
	EventName    string `json:"event_name"`
	Position     int    `json:"position"`
}
