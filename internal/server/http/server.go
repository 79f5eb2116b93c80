// Package httpserver exposes the web routes: local and federated login,
// session handling and the secret board itself.
package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/secrets/internal/model"
	"github.com/and161185/secrets/internal/service"
	"github.com/and161185/secrets/internal/view"
)

// Cookie names.
const (
	SessionCookieName = "secrets_session"
	OAuthStateCookie  = "secrets_oauth"
)

const oauthCookieMaxAge = 600 // seconds, matches the state token lifetime

// Sessions is the session manager as seen by handlers.
type Sessions interface {
	Establish(ctx context.Context, accountID uuid.UUID) (string, error)
	Resolve(ctx context.Context, token string) (*model.Account, error)
	Destroy(ctx context.Context, token string) error
}

// Federation drives the provider handshake.
type Federation interface {
	AuthURL(state string) string
	Complete(ctx context.Context, code string) (*model.Account, error)
}

// Accounts is the slice of the account store the board needs.
type Accounts interface {
	SetSecret(ctx context.Context, id uuid.UUID, secret string) error
	ListWithSecrets(ctx context.Context) ([]model.Account, error)
}

// StateSigner issues and checks OAuth state values.
type StateSigner interface {
	Issue() (state, nonce string, err error)
	Verify(state, nonce string) error
}

// Deps are the collaborators of Server. All fields except Ready and
// Registry are required.
type Deps struct {
	Log         *zap.Logger
	Credentials service.CredentialService
	Federation  Federation
	Sessions    Sessions
	Accounts    Accounts
	Views       view.Renderer
	State       StateSigner
	Cookies     sessions.Store
	Provider    string // path segment under /auth/
	Registry    *prometheus.Registry
	Ready       func(ctx context.Context) error
}

// Server holds handler dependencies.
type Server struct {
	log        *zap.Logger
	creds      service.CredentialService
	federation Federation
	sessions   Sessions
	accounts   Accounts
	views      view.Renderer
	state      StateSigner
	cookies    sessions.Store
	provider   string
	registry   *prometheus.Registry
	metrics    *Metrics
	ready      func(ctx context.Context) error
	validate   *validator.Validate
}

// New builds a Server. A nil Registry gets a private one.
func New(d Deps) *Server {
	reg := d.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	ready := d.Ready
	if ready == nil {
		ready = func(context.Context) error { return nil }
	}
	return &Server{
		log:        d.Log,
		creds:      d.Credentials,
		federation: d.Federation,
		sessions:   d.Sessions,
		accounts:   d.Accounts,
		views:      d.Views,
		state:      d.State,
		cookies:    d.Cookies,
		provider:   d.Provider,
		registry:   reg,
		metrics:    NewMetrics(reg),
		ready:      ready,
		validate:   validator.New(),
	}
}

// NewCookieStore returns the signed cookie store holding session tokens.
func NewCookieStore(secret []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Routes returns the chi router with all routes configured.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(s.logging)
	r.Use(s.instrument)
	r.Use(s.recoverer)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(s.loadAccount)

		r.Get("/", s.home)
		r.Get("/login", s.loginPage)
		r.Post("/login", s.login)
		r.Get("/register", s.registerPage)
		r.Post("/register", s.register)
		r.Get("/logout", s.logout)

		r.Get("/auth/{provider}", s.oauthStart)
		r.Get("/auth/{provider}/callback", s.oauthCallback)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAccount)
			r.Get("/secrets", s.secrets)
			r.Get("/submit", s.submitPage)
			r.Post("/submit", s.submit)
		})
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.ready(r.Context()); err != nil {
		s.log.Warn("health check", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) render(w http.ResponseWriter, status int, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.views.Render(w, page, data); err != nil {
		s.log.Error("render", zap.String("page", page), zap.Error(err))
	}
}

// sessionToken returns the opaque token from the signed cookie, or "".
func (s *Server) sessionToken(r *http.Request) string {
	sess, err := s.cookies.Get(r, SessionCookieName)
	if err != nil || sess == nil {
		return ""
	}
	tok, _ := sess.Values["token"].(string)
	return tok
}

// startSession replaces any session the browser already holds.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, accountID uuid.UUID) error {
	if old := s.sessionToken(r); old != "" {
		if err := s.sessions.Destroy(r.Context(), old); err != nil {
			s.log.Warn("destroy previous session", zap.Error(err))
		}
	}
	tok, err := s.sessions.Establish(r.Context(), accountID)
	if err != nil {
		return err
	}
	sess, _ := s.cookies.Get(r, SessionCookieName)
	sess.Values["token"] = tok
	sess.Options.MaxAge = 0
	return sess.Save(r, w)
}

func (s *Server) clearSession(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.cookies.Get(r, SessionCookieName)
	delete(sess.Values, "token")
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		s.log.Warn("clear session cookie", zap.Error(err))
	}
}

func viewer(r *http.Request) string {
	if a, ok := AccountFromCtx(r.Context()); ok {
		return a.Name()
	}
	return ""
}
