package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/Olzhas-K/sportsmeet-system/live"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// В продакшене здесь должна быть проверка Origin.
		return true
	},
}

type WebSocketHandler struct {
	hub *live.Hub
}

func NewWebSocketHandler(hub *live.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// ServeWs подписывает дашборд на живые счётчики одного события.
// Клиент подключается к /ws/events/{eventID}.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	eventIDStr := chi.URLParam(r, "eventID")
	if _, err := strconv.Atoi(eventIDStr); err != nil {
		http.Error(w, "Invalid eventID", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection for event %s: %v", eventIDStr, err)
		return
	}

	client := &live.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: eventIDStr,
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
