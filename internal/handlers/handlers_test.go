package handlers_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"easybid/internal/auth"
	"easybid/internal/bids"
	"easybid/internal/evaluations"
	"easybid/internal/handlers"
	"easybid/internal/handlers/testutils"
	"easybid/internal/metrics"
	"easybid/internal/notify"
	"easybid/internal/store/memstore"
	"easybid/internal/tenders"
	"easybid/internal/users"
	"easybid/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	h      *handlers.Handler
	router http.Handler
}

func newEnv(t *testing.T, limiter *handlers.RateLimiter) *testEnv {
	t.Helper()
	st := memstore.New()
	log := zap.NewNop()
	dispatcher := notify.NewDispatcher(st, notify.LogMailer{Log: log}, log)
	lifecycle := tenders.NewService(st, dispatcher, log)

	h := &handlers.Handler{
		Users:       users.NewService(st, log),
		Tenders:     lifecycle,
		Bids:        bids.NewService(st, dispatcher, log),
		Evaluations: evaluations.NewService(st, lifecycle, log),
		Inbox:       notify.NewInbox(st),
		Tokens:      auth.NewTokens("test-secret", time.Hour),
	}
	if limiter == nil {
		limiter = handlers.NewRateLimiter(1000, 1000)
	}
	router, err := handlers.NewRouter(h, handlers.RouterConfig{
		Log:         log,
		Metrics:     metrics.New(),
		BidLimiter:  limiter,
		ExposeStats: true,
	})
	require.NoError(t, err)
	return &testEnv{h: h, router: router}
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	res := w.Result()
	t.Cleanup(func() { res.Body.Close() })
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

type session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (e *testEnv) register(t *testing.T, name string, role models.Role) session {
	t.Helper()
	path := "/api/auth/register"
	body := `{"name":"` + name + `","email":"` + name + `@example.com","password":"secret1","role":"` + string(role) + `"}`
	if role == models.RoleAdmin {
		path = "/api/auth/bootstrap-admin"
	}
	res, data := e.do(t, http.MethodPost, path, "", body)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	var s session
	require.NoError(t, json.Unmarshal(data, &s))
	require.NotEmpty(t, s.Token)
	return s
}

func tenderBody(title string) string {
	deadline := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	return `{"title":"` + title + `","category":"Construction","budget":1000,"deadline":"` + deadline + `"}`
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestPingHandler(t *testing.T) {
	env := newEnv(t, nil)

	res, body := env.do(t, http.MethodGet, "/api/ping", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "ok", string(body))
	require.NotEmpty(t, res.Header.Get("X-Request-Id"))
}

func TestAuthHandlers(t *testing.T) {
	env := newEnv(t, nil)
	s := env.register(t, "acme", models.RoleBuyer)
	require.Equal(t, models.RoleBuyer, s.User.Role)

	res, body := env.do(t, http.MethodPost, "/api/auth/register", "",
		`{"name":"acme","email":"acme@example.com","password":"secret1","role":"Buyer"}`)
	require.Equal(t, http.StatusConflict, res.StatusCode, string(body))

	res, _ = env.do(t, http.MethodPost, "/api/auth/register", "",
		`{"name":"root","email":"root@example.com","password":"secret1","role":"Admin"}`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, body = env.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"acme@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, decode[session](t, body).Token)
	require.NotEmpty(t, res.Cookies())

	res, body = env.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"acme@example.com","password":"wrong!"}`)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Contains(t, string(body), "incorrect email or password")

	res, _ = env.do(t, http.MethodPost, "/api/auth/login", "", `{not json`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = env.do(t, http.MethodGet, "/api/auth/profile", "", "")
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, body = env.do(t, http.MethodGet, "/api/auth/profile", s.Token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotContains(t, string(body), "password")
	require.Equal(t, s.User.ID, decode[models.User](t, body).ID)

	prefs := `{"tenderApproval":false,"newBids":true,"newTenders":true,"systemUpdates":false,"weeklyDigest":true}`
	res, body = env.do(t, http.MethodPut, "/api/auth/email-preferences", s.Token, prefs)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	res, body = env.do(t, http.MethodGet, "/api/auth/email-preferences", s.Token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, prefs, string(body))

	env.register(t, "root", models.RoleAdmin)
	res, _ = env.do(t, http.MethodPost, "/api/auth/bootstrap-admin", "",
		`{"name":"root2","email":"root2@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestTenderBidEvaluationFlow(t *testing.T) {
	env := newEnv(t, nil)
	buyer := env.register(t, "buyer", models.RoleBuyer)
	supplier := env.register(t, "supplier", models.RoleSupplier)
	rival := env.register(t, "rival", models.RoleSupplier)
	admin := env.register(t, "admin", models.RoleAdmin)

	res, _ := env.do(t, http.MethodPost, "/api/tenders", "", tenderBody("Roads"))
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	res, _ = env.do(t, http.MethodPost, "/api/tenders", supplier.Token, tenderBody("Roads"))
	require.Equal(t, http.StatusForbidden, res.StatusCode)

	res, body := env.do(t, http.MethodPost, "/api/tenders", buyer.Token, tenderBody("Roads"))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	tender := decode[models.Tender](t, body)
	require.Equal(t, models.ApprovalPending, tender.ApprovalStatus)

	res, body = env.do(t, http.MethodGet, "/api/tenders/pending", admin.Token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), tender.ID)

	bid := `{"tenderId":"` + tender.ID + `","amount":900}`
	res, _ = env.do(t, http.MethodPost, "/api/bids", supplier.Token, bid)
	require.Equal(t, http.StatusConflict, res.StatusCode)

	res, _ = env.do(t, http.MethodPut, "/api/tenders/"+tender.ID+"/approve", buyer.Token, "")
	require.Equal(t, http.StatusForbidden, res.StatusCode)
	res, body = env.do(t, http.MethodPut, "/api/tenders/"+tender.ID+"/approve", admin.Token, "")
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	res, _ = env.do(t, http.MethodPut, "/api/tenders/"+tender.ID+"/approve", admin.Token, "")
	require.Equal(t, http.StatusConflict, res.StatusCode)

	res, body = env.do(t, http.MethodPost, "/api/bids", supplier.Token, bid)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	require.True(t, decode[bids.SubmitResult](t, body).IsLowestBid)

	res, body = env.do(t, http.MethodPost, "/api/bids", rival.Token, `{"tenderId":"`+tender.ID+`","amount":850}`)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))

	res, body = env.do(t, http.MethodPost, "/api/bids", supplier.Token, `{"tenderId":"`+tender.ID+`","amount":800}`)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	resubmitted := decode[bids.SubmitResult](t, body)
	require.True(t, resubmitted.Updated)
	require.True(t, resubmitted.IsLowestBid)

	res, _ = env.do(t, http.MethodPost, "/api/bids", supplier.Token, `{"tenderId":"`+tender.ID+`","amount":1000.5}`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	res, _ = env.do(t, http.MethodPost, "/api/bids", buyer.Token, bid)
	require.Equal(t, http.StatusForbidden, res.StatusCode)

	res, body = env.do(t, http.MethodGet, "/api/bids/tender/"+tender.ID, buyer.Token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	listing := decode[bids.TenderBids](t, body)
	require.Equal(t, 2, listing.Count)
	require.Equal(t, supplier.User.ID, listing.Bids[0].SupplierID)
	require.Equal(t, 800.0, listing.Stats.LowestBid)

	res, body = env.do(t, http.MethodGet, "/api/bids/my", rival.Token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	mine := decode[struct {
		Bids []bids.SupplierBid `json:"bids"`
	}](t, body)
	require.Len(t, mine.Bids, 1)
	require.Equal(t, 2, mine.Bids[0].MyRank)

	eval := `{"tenderId":"` + tender.ID + `","supplierId":"` + supplier.User.ID + `","score":88,"remarks":"solid"}`
	res, _ = env.do(t, http.MethodPost, "/api/evaluations", supplier.Token, eval)
	require.Equal(t, http.StatusForbidden, res.StatusCode)
	res, body = env.do(t, http.MethodPost, "/api/evaluations", buyer.Token, eval)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))

	res, body = env.do(t, http.MethodGet, "/api/evaluations/"+tender.ID, buyer.Token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), "solid")

	res, body = env.do(t, http.MethodPost, "/api/evaluations/publish/"+tender.ID, buyer.Token, "")
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	require.Equal(t, models.TenderEvaluated, decode[models.Tender](t, body).Status)

	res, body = env.do(t, http.MethodGet, "/api/dashboard/buyer", buyer.Token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	dash := decode[tenders.BuyerDashboard](t, body)
	require.Len(t, dash.Tenders, 1)
	require.Equal(t, 2, dash.Tenders[0].BidCount)

	res, body = env.do(t, http.MethodGet, "/api/dashboard/admin", admin.Token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	summary := decode[tenders.AdminSummary](t, body)
	require.Equal(t, 2, summary.Bids)
	require.Len(t, summary.RecentBids, 2)
}

func TestRejectTenderRequiresReason(t *testing.T) {
	env := newEnv(t, nil)
	buyer := env.register(t, "buyer", models.RoleBuyer)
	admin := env.register(t, "admin", models.RoleAdmin)

	_, body := env.do(t, http.MethodPost, "/api/tenders", buyer.Token, tenderBody("Pipes"))
	tender := decode[models.Tender](t, body)

	res, _ := env.do(t, http.MethodPut, "/api/tenders/"+tender.ID+"/reject", admin.Token, `{"reason":""}`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	res, body = env.do(t, http.MethodPut, "/api/tenders/"+tender.ID+"/reject", admin.Token, `{"reason":"no budget"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "no budget", decode[models.Tender](t, body).RejectionReason)
}

func TestGetTendersHandler(t *testing.T) {
	env := newEnv(t, nil)
	buyer := env.register(t, "buyer", models.RoleBuyer)
	for _, title := range []string{"School roof", "Hospital wing", "School fence"} {
		res, _ := env.do(t, http.MethodPost, "/api/tenders", buyer.Token, tenderBody(title))
		require.Equal(t, http.StatusCreated, res.StatusCode)
	}

	res, body := env.do(t, http.MethodGet, "/api/tenders?search=school&limit=1", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	page := decode[tenders.Page](t, body)
	require.Equal(t, 2, page.Total)
	require.Len(t, page.Tenders, 1)
	require.Equal(t, 2, page.Pages)

	res, _ = env.do(t, http.MethodGet, "/api/tenders?category=Space", "", "")
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	res, _ = env.do(t, http.MethodGet, "/api/tenders?deadlineBefore=tomorrow", "", "")
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestGetTenderHandler(t *testing.T) {
	env := newEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tenders/missing", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"tenderId": "missing"})
	req = testutils.AsUser(req, "u1", models.RoleSupplier)
	w := httptest.NewRecorder()

	env.h.GetTenderHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Contains(t, string(body), "not found")
}

func TestCreateTenderHandlerWithoutPrincipal(t *testing.T) {
	env := newEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/tenders", strings.NewReader(tenderBody("Roads")))
	w := httptest.NewRecorder()

	env.h.CreateTenderHandler(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNotificationHandlers(t *testing.T) {
	env := newEnv(t, nil)
	admin := env.register(t, "admin", models.RoleAdmin)
	supplier := env.register(t, "supplier", models.RoleSupplier)

	note := `{"userId":"` + supplier.User.ID + `","title":"Maintenance","message":"Downtime at 22:00"}`
	res, _ := env.do(t, http.MethodPost, "/api/notifications", supplier.Token, note)
	require.Equal(t, http.StatusForbidden, res.StatusCode)
	res, body := env.do(t, http.MethodPost, "/api/notifications", admin.Token, note)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	created := decode[models.Notification](t, body)

	res, body = env.do(t, http.MethodGet, "/api/notifications/unread-count", supplier.Token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"count":1}`, string(body))

	res, body = env.do(t, http.MethodGet, "/api/notifications?unreadOnly=true", supplier.Token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	inbox := decode[notify.InboxPage](t, body)
	require.Len(t, inbox.Notifications, 1)

	res, _ = env.do(t, http.MethodPut, "/api/notifications/"+created.ID+"/read", admin.Token, "")
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	res, body = env.do(t, http.MethodPut, "/api/notifications/"+created.ID+"/read", supplier.Token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.True(t, decode[models.Notification](t, body).Read)

	res, body = env.do(t, http.MethodPut, "/api/notifications/mark-all-read", supplier.Token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"updated":0}`, string(body))

	res, _ = env.do(t, http.MethodDelete, "/api/notifications/"+created.ID, supplier.Token, "")
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	res, _ = env.do(t, http.MethodDelete, "/api/notifications/"+created.ID, supplier.Token, "")
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestSubmitBidRateLimited(t *testing.T) {
	env := newEnv(t, handlers.NewRateLimiter(0.001, 1))
	supplier := env.register(t, "supplier", models.RoleSupplier)

	res, _ := env.do(t, http.MethodPost, "/api/bids", supplier.Token, `{"tenderId":"nope","amount":1}`)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	res, _ = env.do(t, http.MethodPost, "/api/bids", supplier.Token, `{"tenderId":"nope","amount":1}`)
	require.Equal(t, http.StatusTooManyRequests, res.StatusCode)
}

func TestRouterFallbacks(t *testing.T) {
	env := newEnv(t, nil)

	res, body := env.do(t, http.MethodGet, "/api/unknown", "", "")
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Contains(t, string(body), `"error"`)

	res, _ = env.do(t, http.MethodGet, "/api/ping", "broken-token", "")
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	env.do(t, http.MethodGet, "/api/ping", "", "")
	res, body = env.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `path="/api/ping"`)
}

func TestSupplierDashboardHandler(t *testing.T) {
	env := newEnv(t, nil)
	buyer := env.register(t, "buyer", models.RoleBuyer)
	supplier := env.register(t, "supplier", models.RoleSupplier)
	admin := env.register(t, "admin", models.RoleAdmin)

	var approved models.Tender
	for _, title := range []string{"Roads east", "Roads west", "Clinic"} {
		res, body := env.do(t, http.MethodPost, "/api/tenders", buyer.Token, tenderBody(title))
		require.Equal(t, http.StatusCreated, res.StatusCode)
		tender := decode[models.Tender](t, body)
		if title == "Clinic" {
			continue
		}
		res, _ = env.do(t, http.MethodPut, "/api/tenders/"+tender.ID+"/approve", admin.Token, "")
		require.Equal(t, http.StatusOK, res.StatusCode)
		approved = tender
	}
	res, _ := env.do(t, http.MethodPost, "/api/bids", supplier.Token, `{"tenderId":"`+approved.ID+`","amount":500}`)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res, _ = env.do(t, http.MethodGet, "/api/dashboard/supplier", buyer.Token, "")
	require.Equal(t, http.StatusForbidden, res.StatusCode)

	res, body := env.do(t, http.MethodGet, "/api/dashboard/supplier?q=west", supplier.Token, "")
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	dash := decode[struct {
		OpenTenders tenders.Page       `json:"openTenders"`
		Submitted   bids.SubmittedPage `json:"submitted"`
	}](t, body)
	require.Equal(t, 1, dash.OpenTenders.Total)
	require.Equal(t, "Roads west", dash.OpenTenders.Tenders[0].Title)
	require.Equal(t, 1, dash.Submitted.Total)
	require.Equal(t, approved.ID, dash.Submitted.Bids[0].TenderID)
	require.True(t, dash.Submitted.Bids[0].IsLeading)
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newEnv(t, nil)
	s := env.register(t, "buyer", models.RoleBuyer)

	res, _ := env.do(t, http.MethodPost, "/api/auth/logout", s.Token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var cleared *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == auth.CookieName {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)
	require.Negative(t, cleared.MaxAge)
}
