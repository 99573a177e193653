package handlers

import (
	"net/http"

	"easybid/internal/notify"

	"github.com/go-chi/chi/v5"
)

// GetNotificationsHandler возвращает входящие уведомления, ?unreadOnly=true
// оставляет только непрочитанные
func (h *Handler) GetNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	params := parsePaginationParams(r)
	page, err := h.Inbox.List(r.Context(), p.UserID, params.Page, params.Limit, parseBool(r, "unreadOnly"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) UnreadCountHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	n, err := h.Inbox.UnreadCount(r.Context(), p.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *Handler) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	n, err := h.Inbox.MarkRead(r.Context(), p.UserID, chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *Handler) MarkAllNotificationsReadHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	n, err := h.Inbox.MarkAllRead(r.Context(), p.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *Handler) DeleteNotificationHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.Inbox.Delete(r.Context(), p.UserID, chi.URLParam(r, "id")); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateNotificationHandler отправляет системное уведомление (только Admin)
func (h *Handler) CreateNotificationHandler(w http.ResponseWriter, r *http.Request) {
	var in notify.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	n, err := h.Inbox.Create(r.Context(), in)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}
