package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"easybid/internal/apperr"
	"easybid/internal/auth"
	"easybid/internal/bids"
	"easybid/internal/evaluations"
	"easybid/internal/logger"
	"easybid/internal/notify"
	"easybid/internal/tenders"
	"easybid/internal/users"

	"go.uber.org/zap"
)

// Ограничение размера тела запроса
const maxBodyBytes = 1 << 20

// Handler собирает доменные сервисы для HTTP слоя
type Handler struct {
	Users       *users.Service
	Tenders     *tenders.Service
	Bids        *bids.Service
	Evaluations *evaluations.Service
	Inbox       *notify.Inbox
	Tokens      *auth.Tokens
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// decodeJSON читает тело запроса в dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return apperr.Validation("failed to read request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Validation("invalid JSON format")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// WriteError отвечает кодом по типу ошибки. Внутренние ошибки логируются и
// клиенту не раскрываются.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: apperr.Message(err)})
}

// principal возвращает текущего пользователя. Маршруты без токена сюда не
// доходят, но пустой контекст все равно дает 401.
func principal(r *http.Request) (auth.Principal, error) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		return auth.Principal{}, apperr.Unauthorized("authentication required")
	}
	return p, nil
}

type PaginationParams struct {
	Page  int
	Limit int
}

// parsePaginationParams парсит page и limit из query. Значения по умолчанию
// и верхние границы применяют сервисы.
func parsePaginationParams(r *http.Request) PaginationParams {
	var params PaginationParams
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		params.Page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		params.Limit = l
	}
	return params
}

func parseBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return err == nil && v
}
