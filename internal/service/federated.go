package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/and161185/secrets/internal/errs"
	"github.com/and161185/secrets/internal/model"
	"github.com/and161185/secrets/internal/repository"
)

// IdentityProvider is the OAuth2 side of the federated login handshake.
type IdentityProvider interface {
	// AuthCodeURL returns the provider consent URL carrying state.
	AuthCodeURL(state string) string
	// Identify exchanges an authorization code for the asserted identity.
	Identify(ctx context.Context, code string) (model.Identity, error)
}

// OAuthProvider implements IdentityProvider with a code exchange followed by
// a userinfo request made with the obtained token.
type OAuthProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
}

// NewOAuthProvider wires an oauth2 config and the provider's userinfo endpoint.
func NewOAuthProvider(cfg *oauth2.Config, userInfoURL string) *OAuthProvider {
	return &OAuthProvider{cfg: cfg, userInfoURL: userInfoURL}
}

// AuthCodeURL returns the consent page URL.
func (p *OAuthProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state)
}

// userInfo covers OpenID Connect ("sub") and legacy ("id") userinfo shapes.
type userInfo struct {
	Sub   string `json:"sub"`
	ID    any    `json:"id"`
	Name  string `json:"name"`
	Login string `json:"login"`
}

// Identify performs the code exchange and fetches the subject id and name.
func (p *OAuthProvider) Identify(ctx context.Context, code string) (model.Identity, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: token exchange: %w", errs.ErrProviderHandshakeFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return model.Identity{}, err
	}
	resp, err := p.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: userinfo: %w", errs.ErrProviderHandshakeFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.Identity{}, fmt.Errorf("%w: userinfo returned status %d", errs.ErrProviderHandshakeFailed, resp.StatusCode)
	}

	var info userInfo
	dec := json.NewDecoder(io.LimitReader(resp.Body, 1<<20))
	dec.UseNumber()
	if err := dec.Decode(&info); err != nil {
		return model.Identity{}, fmt.Errorf("%w: decode userinfo: %w", errs.ErrProviderHandshakeFailed, err)
	}

	id := model.Identity{Subject: info.Sub, Name: info.Name}
	if id.Subject == "" && info.ID != nil {
		id.Subject = fmt.Sprint(info.ID)
	}
	if id.Name == "" {
		id.Name = info.Login
	}
	return id, nil
}

// FederatedService links provider identities to accounts.
type FederatedService struct {
	accounts repository.AccountRepository
	provider IdentityProvider
}

// NewFederatedService constructs the linker.
func NewFederatedService(accounts repository.AccountRepository, provider IdentityProvider) *FederatedService {
	return &FederatedService{accounts: accounts, provider: provider}
}

// AuthURL returns where to send the user to start the handshake.
func (s *FederatedService) AuthURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

// Complete finishes the handshake for an authorization code and returns the
// linked account, creating it on first login.
func (s *FederatedService) Complete(ctx context.Context, code string) (*model.Account, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", errs.ErrProviderHandshakeFailed)
	}
	id, err := s.provider.Identify(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.Link(ctx, id)
}

// Link applies find-or-create keyed by the identity's subject. The store
// performs it atomically, so duplicate callbacks converge on one account.
func (s *FederatedService) Link(ctx context.Context, id model.Identity) (*model.Account, error) {
	if id.Subject == "" {
		return nil, fmt.Errorf("%w: provider returned no subject", errs.ErrProviderHandshakeFailed)
	}
	name := id.Name
	if name == "" {
		name = "user-" + id.Subject
	}
	a, _, err := s.accounts.FindOrCreateFederated(ctx, id.Subject, name)
	if err != nil {
		return nil, err
	}
	return a, nil
}
