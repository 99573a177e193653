package handlers

import (
	"net/http"
	"strings"

	"easybid/internal/bids"
	"easybid/internal/tenders"
)

// BuyerDashboardHandler возвращает тендеры покупателя с числом предложений
func (h *Handler) BuyerDashboardHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	params := parsePaginationParams(r)
	dash, err := h.Tenders.ListByBuyer(r.Context(), p.UserID, params.Page, params.Limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (h *Handler) AdminDashboardHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	sum, err := h.Tenders.Summary(r.Context(), p.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type supplierDashboard struct {
	OpenTenders *tenders.Page       `json:"openTenders"`
	Submitted   *bids.SubmittedPage `json:"submitted"`
}

// SupplierDashboardHandler возвращает открытые тендеры (?q= ищет по названию)
// и предложения поставщика
func (h *Handler) SupplierDashboardHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	params := parsePaginationParams(r)
	submitted, err := h.Bids.ListSubmitted(r.Context(), p.UserID, params.Page, params.Limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	open, err := h.Tenders.ListOpen(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")), params.Page, params.Limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, supplierDashboard{OpenTenders: open, Submitted: submitted})
}
