// Package providertest runs a minimal OAuth2 authorization server for tests.
package providertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

// Provider issues one access token per known code and serves a userinfo
// document for it.
type Provider struct {
	*httptest.Server

	mu    sync.Mutex
	codes map[string]User // authorization code -> user
	toks  map[string]User // access token -> user
}

// User is what the fake provider asserts.
type User struct {
	Sub  string
	Name string
}

// New starts the provider; it is closed with Close.
func New() *Provider {
	p := &Provider{codes: map[string]User{}, toks: map[string]User{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", p.token)
	mux.HandleFunc("/userinfo", p.userinfo)
	p.Server = httptest.NewServer(mux)
	return p
}

// Grant makes code redeemable for u.
func (p *Provider) Grant(code string, u User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes[code] = u
}

// Config returns an oauth2 config pointing at the provider.
func (p *Provider) Config(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.URL + "/authorize",
			TokenURL:  p.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// UserInfoURL is the userinfo endpoint.
func (p *Provider) UserInfoURL() string { return p.URL + "/userinfo" }

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	code := r.PostForm.Get("code")
	p.mu.Lock()
	u, ok := p.codes[code]
	if ok {
		p.toks["tok-"+code] = u
	}
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": "tok-" + code,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func (p *Provider) userinfo(w http.ResponseWriter, r *http.Request) {
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	p.mu.Lock()
	u, ok := p.toks[tok]
	p.mu.Unlock()
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"sub": u.Sub, "name": u.Name})
}
