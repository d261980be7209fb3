package handlers

import (
	"errors"
	"net/http"

	"github.com/Olzhas-K/sportsmeet-system/middleware"
	"github.com/Olzhas-K/sportsmeet-system/models"
	"github.com/Olzhas-K/sportsmeet-system/services"
)

type AttendanceHandler struct {
	attendanceService *services.AttendanceService
}

func NewAttendanceHandler(attendanceService *services.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceService: attendanceService}
}

// Toggle - одиночный переход посещаемости с дашборда. Клиент присылает
// наблюдаемый текущий статус: проигравшая гонку вкладка получает 409,
// а не перетирает чужую отметку.
func (h *AttendanceHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input struct {
		JerseyNumber int    `json:"jersey_number"`
		EventID      int    `json:"event_id"`
		From         string `json:"from"`
		To           string `json:"to"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.JerseyNumber <= 0 || input.EventID <= 0 {
		badRequestResponse(w, r, errors.New("jersey_number and event_id are required"))
		return
	}

	err = h.attendanceService.Toggle(r.Context(), actor, input.JerseyNumber, input.EventID,
		models.AttendanceStatus(input.From), models.AttendanceStatus(input.To))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"status": input.To}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ScanQR отмечает участника присутствующим по отсканированному номеру.
func (h *AttendanceHandler) ScanQR(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input struct {
		JerseyNumber int `json:"jersey_number"`
		EventID      int `json:"event_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.JerseyNumber <= 0 || input.EventID <= 0 {
		badRequestResponse(w, r, errors.New("jersey_number and event_id are required"))
		return
	}

	enrollment, err := h.attendanceService.ScanQR(r.Context(), actor, input.JerseyNumber, input.EventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"enrollment": enrollment}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
