package auth

import (
	"fmt"
	"net/http"
	"strings"

	"easybid/internal/apperr"

	"github.com/go-chi/chi/v5"
)

// CookieName is the cookie the web client keeps its token in.
const CookieName = "token"

// ErrorWriter renders an error response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type Middleware struct {
	tokens *Tokens
	policy *Policy
	fail   ErrorWriter
}

func NewMiddleware(tokens *Tokens, policy *Policy, fail ErrorWriter) *Middleware {
	return &Middleware{tokens: tokens, policy: policy, fail: fail}
}

// Authenticate resolves the caller from a bearer token or the token cookie.
// Requests without credentials continue anonymously; bad credentials fail.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFrom(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := m.tokens.Parse(token)
		if err != nil {
			m.fail(w, r, err)
			return
		}
		ctx := WithPrincipal(r.Context(), Principal{
			UserID: claims.UserID(),
			Email:  claims.Email,
			Role:   claims.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authorize checks the matched route against the policy, so it has to run
// after chi has resolved the full route pattern.
func (m *Middleware) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		p, authenticated := PrincipalFrom(r.Context())

		ok, err := m.policy.Allowed(string(p.Role), r.Method, route)
		switch {
		case err != nil:
			m.fail(w, r, fmt.Errorf("authorize %s %s: %w", r.Method, route, err))
		case ok:
			next.ServeHTTP(w, r)
		case !authenticated:
			m.fail(w, r, apperr.Unauthorized("authentication required"))
		default:
			m.fail(w, r, apperr.Forbidden("role %s cannot access this resource", p.Role))
		}
	})
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}
