package services

import "github.com/Olzhas-K/sportsmeet-system/models"

// CounterBroadcaster рассылает свежие счётчики события живым дашбордам.
// Реализуется websocket-хабом; рассылка не влияет на исход операции.
type CounterBroadcaster interface {
	BroadcastCounts(eventID int, counts models.StudentsCount)
}
