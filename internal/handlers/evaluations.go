package handlers

import (
	"net/http"

	"easybid/internal/evaluations"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) GetEvaluationsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.Evaluations.ListForTender(r.Context(), chi.URLParam(r, "tenderId"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"evaluations": list, "count": len(list)})
}

// RecordEvaluationHandler создает или обновляет оценку поставщика
func (h *Handler) RecordEvaluationHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var in evaluations.RecordInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	e, err := h.Evaluations.Record(r.Context(), p.UserID, in)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// PublishResultsHandler обрабатывает POST /api/evaluations/publish/{tenderId}
func (h *Handler) PublishResultsHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	tender, err := h.Evaluations.Publish(r.Context(), p.UserID, chi.URLParam(r, "tenderId"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tender)
}
