package handlers

import (
	"net/http"

	"easybid/internal/auth"
	"easybid/internal/users"
	"easybid/models"
)

type sessionResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// startSession выдает токен и дублирует его в cookie для веб клиента
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, u *models.User, status int) {
	token, err := h.Tokens.Issue(u)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, sessionResponse{Token: token, User: u})
}

// RegisterHandler обрабатывает POST /api/auth/register
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var in users.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	u, err := h.Users.Register(r.Context(), in)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.startSession(w, r, u, http.StatusCreated)
}

// BootstrapAdminHandler обрабатывает POST /api/auth/bootstrap-admin
func (h *Handler) BootstrapAdminHandler(w http.ResponseWriter, r *http.Request) {
	var in users.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	u, err := h.Users.BootstrapAdmin(r.Context(), in)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.startSession(w, r, u, http.StatusCreated)
}

// LoginHandler обрабатывает POST /api/auth/login
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	u, err := h.Users.Authenticate(r.Context(), in.Email, in.Password)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.startSession(w, r, u, http.StatusOK)
}

// LogoutHandler стирает cookie с токеном. Сам JWT остается валидным до
// истечения срока.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ProfileHandler возвращает текущего пользователя
func (h *Handler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	u, err := h.Users.Get(r.Context(), p.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) GetEmailPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	u, err := h.Users.Get(r.Context(), p.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u.EmailPreferences)
}

func (h *Handler) UpdateEmailPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var prefs models.EmailPreferences
	if err := decodeJSON(w, r, &prefs); err != nil {
		WriteError(w, r, err)
		return
	}
	u, err := h.Users.UpdateEmailPreferences(r.Context(), p.UserID, prefs)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u.EmailPreferences)
}
