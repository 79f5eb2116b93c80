package httpserver

import "net/http"

// Bounds mirror service.MaxUsernameLen and service.MaxPasswordLen; both
// validator max and the service count runes.
type credentialsForm struct {
	Username string `validate:"required,max=64"`
	Password string `validate:"required,max=256"`
}

type secretForm struct {
	Secret string `validate:"required,max=1000"`
}

func (s *Server) parseCredentials(r *http.Request) (credentialsForm, error) {
	if err := r.ParseForm(); err != nil {
		return credentialsForm{}, err
	}
	f := credentialsForm{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	return f, s.validate.Struct(f)
}

func (s *Server) parseSecret(r *http.Request) (secretForm, error) {
	if err := r.ParseForm(); err != nil {
		return secretForm{}, err
	}
	f := secretForm{Secret: r.PostForm.Get("secret")}
	return f, s.validate.Struct(f)
}

// Flash codes travel in the "error" query parameter of a redirect.
const (
	flashInvalid     = "invalid"
	flashLocked      = "locked"
	flashUnavailable = "unavailable"
	flashOAuth       = "oauth"
	flashInput       = "input"
	flashTaken       = "taken"
)

var flashText = map[string]string{
	flashInvalid:     "Invalid username or password.",
	flashLocked:      "Too many failed attempts. Try again later.",
	flashUnavailable: "Something went wrong. Please try again.",
	flashOAuth:       "Sign-in with the provider failed.",
	flashInput:       "Please fill in the form.",
	flashTaken:       "That username is already taken.",
}

func flash(r *http.Request) string {
	return flashText[r.URL.Query().Get("error")]
}

func redirectFlash(w http.ResponseWriter, r *http.Request, path, code string) {
	http.Redirect(w, r, path+"?error="+code, http.StatusFound)
}
