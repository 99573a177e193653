package handlers

import (
	"net/http"

	"easybid/internal/auth"
	"easybid/internal/logger"
	"easybid/internal/metrics"
	"easybid/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

var (
	public   = []string{auth.Anonymous}
	member   = []string{auth.Member}
	buyer    = []string{string(models.RoleBuyer)}
	supplier = []string{string(models.RoleSupplier)}
	admin    = []string{string(models.RoleAdmin)}
)

type route struct {
	method  string
	pattern string
	roles   []string
	handler http.HandlerFunc
	limited bool
}

// routes - единая таблица маршрутов и ролей, из нее строятся и роутер, и
// политика доступа.
func (h *Handler) routes() []route {
	return []route{
		{method: http.MethodGet, pattern: "/api/ping", roles: public, handler: h.PingHandler},

		// авторизация
		{method: http.MethodPost, pattern: "/api/auth/register", roles: public, handler: h.RegisterHandler},
		{method: http.MethodPost, pattern: "/api/auth/login", roles: public, handler: h.LoginHandler},
		{method: http.MethodPost, pattern: "/api/auth/bootstrap-admin", roles: public, handler: h.BootstrapAdminHandler},
		{method: http.MethodPost, pattern: "/api/auth/logout", roles: public, handler: h.LogoutHandler},
		{method: http.MethodGet, pattern: "/api/auth/profile", roles: member, handler: h.ProfileHandler},
		{method: http.MethodGet, pattern: "/api/auth/email-preferences", roles: member, handler: h.GetEmailPreferencesHandler},
		{method: http.MethodPut, pattern: "/api/auth/email-preferences", roles: member, handler: h.UpdateEmailPreferencesHandler},

		// тендеры
		{method: http.MethodPost, pattern: "/api/tenders", roles: buyer, handler: h.CreateTenderHandler},
		{method: http.MethodGet, pattern: "/api/tenders", roles: public, handler: h.GetTendersHandler},
		{method: http.MethodGet, pattern: "/api/tenders/pending", roles: admin, handler: h.GetPendingTendersHandler},
		{method: http.MethodGet, pattern: "/api/tenders/{tenderId}", roles: member, handler: h.GetTenderHandler},
		{method: http.MethodPut, pattern: "/api/tenders/{tenderId}/approve", roles: admin, handler: h.ApproveTenderHandler},
		{method: http.MethodPut, pattern: "/api/tenders/{tenderId}/reject", roles: admin, handler: h.RejectTenderHandler},

		// предложения
		{method: http.MethodPost, pattern: "/api/bids", roles: supplier, handler: h.SubmitBidHandler, limited: true},
		{method: http.MethodGet, pattern: "/api/bids/my", roles: supplier, handler: h.GetUserBidsHandler},
		{method: http.MethodGet, pattern: "/api/bids/tender/{tenderId}", roles: member, handler: h.GetBidsForTenderHandler},

		// оценки
		{method: http.MethodGet, pattern: "/api/evaluations/{tenderId}", roles: member, handler: h.GetEvaluationsHandler},
		{method: http.MethodPost, pattern: "/api/evaluations", roles: buyer, handler: h.RecordEvaluationHandler},
		{method: http.MethodPost, pattern: "/api/evaluations/publish/{tenderId}", roles: buyer, handler: h.PublishResultsHandler},

		// уведомления
		{method: http.MethodGet, pattern: "/api/notifications", roles: member, handler: h.GetNotificationsHandler},
		{method: http.MethodGet, pattern: "/api/notifications/unread-count", roles: member, handler: h.UnreadCountHandler},
		{method: http.MethodPut, pattern: "/api/notifications/mark-all-read", roles: member, handler: h.MarkAllNotificationsReadHandler},
		{method: http.MethodPut, pattern: "/api/notifications/{id}/read", roles: member, handler: h.MarkNotificationReadHandler},
		{method: http.MethodDelete, pattern: "/api/notifications/{id}", roles: member, handler: h.DeleteNotificationHandler},
		{method: http.MethodPost, pattern: "/api/notifications", roles: admin, handler: h.CreateNotificationHandler},

		// дашборды
		{method: http.MethodGet, pattern: "/api/dashboard/buyer", roles: buyer, handler: h.BuyerDashboardHandler},
		{method: http.MethodGet, pattern: "/api/dashboard/supplier", roles: supplier, handler: h.SupplierDashboardHandler},
		{method: http.MethodGet, pattern: "/api/dashboard/admin", roles: admin, handler: h.AdminDashboardHandler},
	}
}

// Rules переводит таблицу маршрутов в правила политики доступа
func (h *Handler) Rules() []auth.Rule {
	var rules []auth.Rule
	for _, rt := range h.routes() {
		for _, role := range rt.roles {
			rules = append(rules, auth.Rule{Role: role, Method: rt.method, Route: rt.pattern})
		}
	}
	return rules
}

type RouterConfig struct {
	Log         *zap.Logger
	Metrics     *metrics.Metrics
	BidLimiter  *RateLimiter
	ExposeStats bool
}

// NewRouter собирает chi роутер со всеми маршрутами API
func NewRouter(h *Handler, cfg RouterConfig) (http.Handler, error) {
	policy, err := auth.NewPolicy(h.Rules())
	if err != nil {
		return nil, err
	}
	guard := auth.NewMiddleware(h.Tokens, policy, WriteError)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(cfg.Log))
	r.Use(middleware.Recoverer)
	r.Use(cfg.Metrics.Instrument)
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	if cfg.ExposeStats && cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(guard.Authenticate)
		r.Use(guard.Authorize)
		for _, rt := range h.routes() {
			var handler http.Handler = rt.handler
			if rt.limited && cfg.BidLimiter != nil {
				handler = cfg.BidLimiter.Middleware(handler)
			}
			r.Method(rt.method, rt.pattern, handler)
		}
	})
	return r, nil
}
