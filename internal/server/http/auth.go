package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/and161185/secrets/internal/errs"
	"github.com/and161185/secrets/internal/view"
)

func (s *Server) authForm(r *http.Request, username string) view.AuthForm {
	return view.AuthForm{
		Base:         view.Base{Viewer: viewer(r), Flash: flash(r)},
		Username:     username,
		ProviderName: s.provider,
		ProviderURL:  "/auth/" + s.provider,
	}
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := AccountFromCtx(r.Context()); ok {
		http.Redirect(w, r, "/secrets", http.StatusFound)
		return
	}
	s.render(w, http.StatusOK, view.PageLogin, s.authForm(r, ""))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	f, err := s.parseCredentials(r)
	if err != nil {
		s.metrics.login("local", "invalid")
		redirectFlash(w, r, "/login", flashInvalid)
		return
	}

	a, err := s.creds.Verify(r.Context(), f.Username, f.Password, r.RemoteAddr)
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrInvalidCredentials), errors.Is(err, errs.ErrValidation):
		s.metrics.login("local", "invalid")
		redirectFlash(w, r, "/login", flashInvalid)
		return
	case errors.Is(err, errs.ErrRateLimited):
		s.metrics.login("local", "locked")
		redirectFlash(w, r, "/login", flashLocked)
		return
	default:
		s.metrics.login("local", "error")
		s.log.Error("verify credentials", zap.Error(err))
		redirectFlash(w, r, "/login", flashUnavailable)
		return
	}

	if err := s.startSession(w, r, a.ID); err != nil {
		s.metrics.login("local", "error")
		s.log.Error("establish session", zap.Error(err))
		redirectFlash(w, r, "/login", flashUnavailable)
		return
	}
	s.metrics.login("local", "ok")
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

func (s *Server) registerPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, view.PageRegister, s.authForm(r, ""))
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	f, err := s.parseCredentials(r)
	if err != nil {
		form := s.authForm(r, f.Username)
		form.Flash = flashText[flashInput]
		s.render(w, http.StatusUnprocessableEntity, view.PageRegister, form)
		return
	}

	a, err := s.creds.Register(r.Context(), f.Username, f.Password)
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrDuplicateUsername):
		form := s.authForm(r, f.Username)
		form.Flash = flashText[flashTaken]
		s.render(w, http.StatusConflict, view.PageRegister, form)
		return
	case errors.Is(err, errs.ErrValidation):
		form := s.authForm(r, f.Username)
		form.Flash = flashText[flashInput]
		s.render(w, http.StatusUnprocessableEntity, view.PageRegister, form)
		return
	default:
		s.log.Error("register", zap.Error(err))
		redirectFlash(w, r, "/register", flashUnavailable)
		return
	}

	if err := s.startSession(w, r, a.ID); err != nil {
		s.log.Error("establish session", zap.Error(err))
		redirectFlash(w, r, "/login", flashUnavailable)
		return
	}
	s.log.Info("account registered", zap.String("account", a.ID.String()))
	http.Redirect(w, r, "/submit", http.StatusFound)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if tok := s.sessionToken(r); tok != "" {
		if err := s.sessions.Destroy(r.Context(), tok); err != nil {
			s.log.Warn("destroy session", zap.Error(err))
		}
	}
	s.clearSession(w, r)
	http.Redirect(w, r, "/", http.StatusFound)
}

// oauthStart sends the browser to the provider with a signed state whose
// nonce is also pinned in a short-lived cookie.
func (s *Server) oauthStart(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "provider") != s.provider {
		http.NotFound(w, r)
		return
	}
	state, nonce, err := s.state.Issue()
	if err != nil {
		s.log.Error("issue oauth state", zap.Error(err))
		redirectFlash(w, r, "/login", flashUnavailable)
		return
	}
	sess, _ := s.cookies.Get(r, OAuthStateCookie)
	sess.Values["nonce"] = nonce
	sess.Options.MaxAge = oauthCookieMaxAge
	if err := sess.Save(r, w); err != nil {
		s.log.Error("save oauth state", zap.Error(err))
		redirectFlash(w, r, "/login", flashUnavailable)
		return
	}
	http.Redirect(w, r, s.federation.AuthURL(state), http.StatusFound)
}

func (s *Server) oauthCallback(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "provider") != s.provider {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()

	sess, _ := s.cookies.Get(r, OAuthStateCookie)
	nonce, _ := sess.Values["nonce"].(string)
	delete(sess.Values, "nonce")
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		s.log.Warn("clear oauth state", zap.Error(err))
	}

	if e := q.Get("error"); e != "" {
		s.metrics.login("federated", "denied")
		s.log.Info("provider denied consent", zap.String("error", e))
		redirectFlash(w, r, "/login", flashOAuth)
		return
	}
	if err := s.state.Verify(q.Get("state"), nonce); err != nil {
		s.metrics.login("federated", "bad_state")
		s.log.Warn("oauth state", zap.Error(err))
		redirectFlash(w, r, "/login", flashOAuth)
		return
	}

	a, err := s.federation.Complete(r.Context(), q.Get("code"))
	if err != nil {
		s.metrics.login("federated", "error")
		s.log.Error("federated login", zap.Error(err))
		code := flashOAuth
		if errors.Is(err, errs.ErrStoreUnavailable) {
			code = flashUnavailable
		}
		redirectFlash(w, r, "/login", code)
		return
	}

	if err := s.startSession(w, r, a.ID); err != nil {
		s.metrics.login("federated", "error")
		s.log.Error("establish session", zap.Error(err))
		redirectFlash(w, r, "/login", flashUnavailable)
		return
	}
	s.metrics.login("federated", "ok")
	http.Redirect(w, r, "/secrets", http.StatusFound)
}
