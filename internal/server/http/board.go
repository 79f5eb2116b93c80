package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/secrets/internal/view"
)

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, view.PageHome, view.HomeData{
		Base: view.Base{Viewer: viewer(r), Flash: flash(r)},
	})
}

func (s *Server) secrets(w http.ResponseWriter, r *http.Request) {
	data := view.SecretsData{Base: view.Base{Viewer: viewer(r), Flash: flash(r)}}
	list, err := s.accounts.ListWithSecrets(r.Context())
	if err != nil {
		s.log.Error("list secrets", zap.Error(err))
		data.Flash = flashText[flashUnavailable]
	}
	for _, a := range list {
		data.Secrets = append(data.Secrets, a.Secret)
	}
	s.render(w, http.StatusOK, view.PageSecrets, data)
}

func (s *Server) submitPage(w http.ResponseWriter, r *http.Request) {
	a, _ := AccountFromCtx(r.Context())
	s.render(w, http.StatusOK, view.PageSubmit, view.SubmitData{
		Base:    view.Base{Viewer: a.Name(), Flash: flash(r)},
		Current: a.Secret,
	})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	a, _ := AccountFromCtx(r.Context())
	f, err := s.parseSecret(r)
	if err != nil {
		redirectFlash(w, r, "/submit", flashInput)
		return
	}
	if err := s.accounts.SetSecret(r.Context(), a.ID, f.Secret); err != nil {
		s.log.Error("save secret", zap.String("account", a.ID.String()), zap.Error(err))
		redirectFlash(w, r, "/submit", flashUnavailable)
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusFound)
}
