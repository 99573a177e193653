package handlers

import (
	"net/http"

	"easybid/internal/bids"

	"github.com/go-chi/chi/v5"
)

type submitBidResponse struct {
	*bids.SubmitResult
	Message string `json:"message"`
}

// SubmitBidHandler обрабатывает POST /api/bids. Повторная подача обновляет
// существующее предложение.
func (h *Handler) SubmitBidHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var in bids.SubmitInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	res, err := h.Bids.Submit(r.Context(), p.UserID, in)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	status, msg := http.StatusCreated, "Bid submitted successfully"
	if res.Updated {
		status, msg = http.StatusOK, "Bid updated successfully"
	}
	writeJSON(w, status, submitBidResponse{SubmitResult: res, Message: msg})
}

// GetUserBidsHandler возвращает предложения текущего поставщика
func (h *Handler) GetUserBidsHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	list, err := h.Bids.ListForSupplier(r.Context(), p.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": list, "count": len(list)})
}

// GetBidsForTenderHandler возвращает ранжированные предложения по тендеру
func (h *Handler) GetBidsForTenderHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.Bids.ListForTender(r.Context(), chi.URLParam(r, "tenderId"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
