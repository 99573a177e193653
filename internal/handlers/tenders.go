package handlers

import (
	"net/http"
	"strings"
	"time"

	"easybid/internal/apperr"
	"easybid/internal/tenders"
	"easybid/models"

	"github.com/go-chi/chi/v5"
)

// CreateTenderHandler обрабатывает POST /api/tenders
func (h *Handler) CreateTenderHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var in tenders.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	tender, err := h.Tenders.Create(r.Context(), p.UserID, in)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tender)
}

// GetTendersHandler возвращает список тендеров с фильтрами и пагинацией
func (h *Handler) GetTendersHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	query := r.URL.Query()

	q := tenders.ListQuery{
		Search:         strings.TrimSpace(query.Get("search")),
		Category:       models.Category(query.Get("category")),
		Status:         models.TenderStatus(query.Get("status")),
		ApprovalStatus: models.ApprovalStatus(query.Get("approvalStatus")),
		Page:           params.Page,
		Limit:          params.Limit,
	}
	if v := query.Get("deadlineBefore"); v != "" {
		before, err := time.Parse(time.RFC3339, v)
		if err != nil {
			WriteError(w, r, apperr.Validation("deadlineBefore must be an RFC 3339 timestamp"))
			return
		}
		q.DeadlineBefore = &before
	}

	page, err := h.Tenders.List(r.Context(), q)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetPendingTendersHandler возвращает очередь на модерацию
func (h *Handler) GetPendingTendersHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.Tenders.ListPending(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenders": list, "count": len(list)})
}

func (h *Handler) GetTenderHandler(w http.ResponseWriter, r *http.Request) {
	tender, err := h.Tenders.Get(r.Context(), chi.URLParam(r, "tenderId"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tender)
}

// ApproveTenderHandler обрабатывает PUT /api/tenders/{tenderId}/approve
func (h *Handler) ApproveTenderHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	tender, err := h.Tenders.Approve(r.Context(), p.UserID, chi.URLParam(r, "tenderId"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tender)
}

// RejectTenderHandler обрабатывает PUT /api/tenders/{tenderId}/reject
func (h *Handler) RejectTenderHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var in struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	tender, err := h.Tenders.Reject(r.Context(), p.UserID, chi.URLParam(r, "tenderId"), in.Reason)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tender)
}
