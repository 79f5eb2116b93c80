package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"PORT":                "3000",
		"SESSION_SECRET":      "0123456789abcdef0123",
		"DATABASE_URL":        "memory://",
		"OAUTH_CLIENT_ID":     "id",
		"OAUTH_CLIENT_SECRET": "secret",
		"OAUTH_CALLBACK_URL":  "http://localhost:3000/auth/google/callback",
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	t.Parallel()
	c, err := LoadFrom(baseEnv())
	require.NoError(t, err)

	require.Equal(t, ":3000", c.Addr())
	require.True(t, c.MemoryDB())
	require.Equal(t, "google", c.OAuthProvider)
	require.Equal(t, "memory", c.SessionStore)
	require.Equal(t, 24*time.Hour, c.SessionIdleTTL)
	require.Equal(t, []string{"openid", "profile"}, c.OAuthScopes)
	require.False(t, c.CookieSecure)

	lim := c.Limiter()
	require.Equal(t, 5, lim.MaxFails)
	require.Equal(t, 15*time.Minute, lim.Window)

	oc, userInfo := c.OAuth2()
	require.Equal(t, "id", oc.ClientID)
	require.Equal(t, "http://localhost:3000/auth/google/callback", oc.RedirectURL)
	require.Contains(t, oc.Endpoint.AuthURL, "google")
	require.Equal(t, googleUserInfoURL, userInfo)
}

func TestLoadFrom_MissingRequired(t *testing.T) {
	t.Parallel()
	for _, k := range []string{"PORT", "SESSION_SECRET", "DATABASE_URL", "OAUTH_CLIENT_ID", "OAUTH_CLIENT_SECRET", "OAUTH_CALLBACK_URL"} {
		e := baseEnv()
		delete(e, k)
		_, err := LoadFrom(e)
		require.Error(t, err, k)
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	t.Parallel()
	cases := map[string]map[string]string{
		"port":                              {"PORT": "http"},
		"short secret":                      {"SESSION_SECRET": "short"},
		"store":                             {"SESSION_STORE": "memcached"},
		"redis w/o url":                     {"SESSION_STORE": "redis"},
		"callback":                          {"OAUTH_CALLBACK_URL": "not a url"},
		"custom provider without endpoints": {"OAUTH_PROVIDER": "gitlab"},
		"max failures":                      {"LOGIN_MAX_FAILURES": "0"},
	}
	for name, over := range cases {
		e := baseEnv()
		for k, v := range over {
			e[k] = v
		}
		_, err := LoadFrom(e)
		require.Error(t, err, name)
	}
}

func TestLoadFrom_CustomProvider(t *testing.T) {
	t.Parallel()
	e := baseEnv()
	e["OAUTH_PROVIDER"] = "gitlab"
	e["OAUTH_AUTH_URL"] = "https://idp.example/authorize"
	e["OAUTH_TOKEN_URL"] = "https://idp.example/token"
	e["OAUTH_USERINFO_URL"] = "https://idp.example/userinfo"
	e["OAUTH_SCOPES"] = "read_user"
	e["SESSION_STORE"] = "redis"
	e["REDIS_URL"] = "redis://localhost:6379/0"
	e["DATABASE_URL"] = "postgres://u:p@localhost/secrets"

	c, err := LoadFrom(e)
	require.NoError(t, err)
	require.False(t, c.MemoryDB())

	oc, userInfo := c.OAuth2()
	require.Equal(t, "https://idp.example/authorize", oc.Endpoint.AuthURL)
	require.Equal(t, "https://idp.example/token", oc.Endpoint.TokenURL)
	require.Equal(t, []string{"read_user"}, oc.Scopes)
	require.Equal(t, "https://idp.example/userinfo", userInfo)
}
