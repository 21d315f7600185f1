package handler

import (
	"net/http"

	"github.com/safar/kitrunner/internal/models"
)

func (h *handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	respondJSON(w, http.StatusOK, events)
}

func (h *handlers) getEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "eventID")
	if !ok {
		badRequest(w, r, "invalid_id", "ID do evento inválido")
		return
	}

	event, err := h.events.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, event)
}
