package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Olzhas-K/sportsmeet-system/middleware"
	"github.com/Olzhas-K/sportsmeet-system/models"
	"github.com/Olzhas-K/sportsmeet-system/services"
	"github.com/go-chi/chi/v5"
)

// RosterHandler - массовые операции менеджера по списку стартовых номеров.
type RosterHandler struct {
	rosterService *services.RosterService
	repairService *services.RepairService
}

func NewRosterHandler(rosterService *services.RosterService, repairService *services.RepairService) *RosterHandler {
	return &RosterHandler{
		rosterService: rosterService,
		repairService: repairService,
	}
}

type rosterInput struct {
	JerseyNumbers []int `json:"jersey_numbers"`
}

func (h *RosterHandler) BulkMarkAttendance(w http.ResponseWriter, r *http.Request) {
	actor, eventID, ok := h.parseCommon(w, r)
	if !ok {
		return
	}

	var input struct {
		JerseyNumbers []int  `json:"jersey_numbers"`
		Status        string `json:"status"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.rosterService.BulkMarkAttendance(r.Context(), actor, input.JerseyNumbers, eventID,
		models.AttendanceStatus(input.Status))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RosterHandler) BulkEnroll(w http.ResponseWriter, r *http.Request) {
	actor, eventID, ok := h.parseCommon(w, r)
	if !ok {
		return
	}

	var input rosterInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.rosterService.BulkEnroll(r.Context(), actor, input.JerseyNumbers, eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// BulkMarkResults фиксирует места 1–3 в порядке перечисления номеров.
func (h *RosterHandler) BulkMarkResults(w http.ResponseWriter, r *http.Request) {
	actor, eventID, ok := h.parseCommon(w, r)
	if !ok {
		return
	}

	var input rosterInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.rosterService.BulkMarkResults(r.Context(), actor, input.JerseyNumbers, eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RepairCounters пересчитывает счётчики всех событий из записей участников.
func (h *RosterHandler) RepairCounters(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	results, err := h.repairService.RecountAll(r.Context(), actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"results": results}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RosterHandler) parseCommon(w http.ResponseWriter, r *http.Request) (*models.Participant, int, bool) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return nil, 0, false
	}
	eventID, err := strconv.Atoi(chi.URLParam(r, "eventID"))
	if err != nil || eventID <= 0 {
		badRequestResponse(w, r, errors.New("invalid event id"))
		return nil, 0, false
	}
	return actor, eventID, true
}
