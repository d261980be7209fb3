package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Olzhas-K/sportsmeet-system/middleware"
	"github.com/Olzhas-K/sportsmeet-system/services"
	"github.com/go-chi/chi/v5"
)

type EnrollmentHandler struct {
	enrollmentService *services.EnrollmentService
}

func NewEnrollmentHandler(enrollmentService *services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentService: enrollmentService}
}

// Lock замораживает выбор событий текущего участника.
func (h *EnrollmentHandler) Lock(w http.ResponseWriter, r *http.Request) {
	participantID, err := middleware.GetParticipantIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input struct {
		EventIDs []int `json:"event_ids"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	enrollments, err := h.enrollmentService.Lock(r.Context(), participantID, input.EventIDs)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"enrollments": enrollments}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Unlock снимает блокировку выбора. Свою снимает сам участник, чужую -
// персонал более высокого ранга.
func (h *EnrollmentHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	targetID := actor.ID
	if raw := chi.URLParam(r, "id"); raw != "" && raw != "me" {
		targetID, err = strconv.Atoi(raw)
		if err != nil || targetID <= 0 {
			badRequestResponse(w, r, errors.New("invalid participant id"))
			return
		}
	}

	if err := h.enrollmentService.Unlock(r.Context(), actor, targetID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"message": "events unlocked"}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
