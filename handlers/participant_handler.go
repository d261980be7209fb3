package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Olzhas-K/sportsmeet-system/middleware"
	"github.com/Olzhas-K/sportsmeet-system/services"
	"github.com/go-chi/chi/v5"
)

type ParticipantHandler struct {
	participantService *services.ParticipantService
}

func NewParticipantHandler(participantService *services.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{participantService: participantService}
}

// CompleteRegistration завершает анкету текущего участника и выдаёт ему
// стартовый номер.
func (h *ParticipantHandler) CompleteRegistration(w http.ResponseWriter, r *http.Request) {
	participantID, err := middleware.GetParticipantIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	number, err := h.participantService.CompleteRegistration(r.Context(), participantID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"jersey_number": number}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ParticipantHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	targetID, err := participantIDFromURL(r, actor.ID)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	participant, err := h.participantService.GetProfile(r.Context(), actor, targetID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"participant": participant}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ParticipantHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	targetID, err := participantIDFromURL(r, actor.ID)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	participant, err := h.participantService.UpdateProfile(r.Context(), actor, targetID, services.UpdateProfileInput{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"participant": participant}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadPhoto принимает multipart-форму с полем "photo".
func (h *ParticipantHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	targetID, err := participantIDFromURL(r, actor.ID)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(5 << 20); err != nil {
		badRequestResponse(w, r, errors.New("failed to parse multipart form, max photo size is 5MB"))
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		badRequestResponse(w, r, errors.New("photo file is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType != "image/jpeg" && contentType != "image/png" {
		badRequestResponse(w, r, errors.New("photo must be a JPEG or PNG image"))
		return
	}

	url, err := h.participantService.UploadPhoto(r.Context(), actor, targetID, contentType, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"photo_url": url}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ParticipantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	targetID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || targetID <= 0 {
		badRequestResponse(w, r, errors.New("invalid participant id"))
		return
	}

	if err := h.participantService.Delete(r.Context(), actor, targetID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// participantIDFromURL читает {id} из маршрута; "me" и отсутствие параметра
// означают текущего участника.
func participantIDFromURL(r *http.Request, selfID int) (int, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" || raw == "me" {
		return selfID, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid participant id")
	}
	return id, nil
}
