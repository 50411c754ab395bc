// Package auth owns sessions, sign-up and login, and the access guard that
// sits in front of every mutation.
package auth

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"yatube/internal/forms"
	"yatube/internal/models"
	"yatube/internal/store"
)

const (
	sessionName = "yatube_session"
	userIDKey   = "user_id"
)

var (
	ErrInvalidUsername = errors.New("Invalid username")
	ErrInvalidPassword = errors.New("Invalid password")
)

// reserved usernames would be shadowed by fixed routes.
var reserved = map[string]bool{
	"new": true, "follow": true, "group": true, "auth": true,
	"media": true, "metrics": true, "health": true,
}

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

type Users interface {
	UserByID(ctx context.Context, id uint) (*models.User, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

type Authenticator struct {
	users    Users
	sessions sessions.Store
	cost     int
	log      logrus.FieldLogger
}

func NewAuthenticator(users Users, sessionStore sessions.Store, bcryptCost int, log logrus.FieldLogger) *Authenticator {
	return &Authenticator{users: users, sessions: sessionStore, cost: bcryptCost, log: log}
}

// NewCookieStore returns the signed cookie session store. secure restricts
// the cookie to HTTPS.
func NewCookieStore(key string, maxAge time.Duration, secure bool) *sessions.CookieStore {
	cs := sessions.NewCookieStore([]byte(key))
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return cs
}

// Current resolves the session cookie to a user. Unknown or broken sessions
// are anonymous.
func (a *Authenticator) Current(r *http.Request) *models.User {
	session, err := a.sessions.Get(r, sessionName)
	if err != nil {
		return nil
	}
	id, ok := session.Values[userIDKey].(uint)
	if !ok {
		return nil
	}
	user, err := a.users.UserByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.log.WithError(err).Error("Failed to load session user")
		}
		return nil
	}
	return user
}

// Middleware puts the session user, if any, on the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := a.Current(r); u != nil {
			r = r.WithContext(WithCaller(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

// Login binds user to the session and leaves a welcome flash in the same cookie.
func (a *Authenticator) Login(w http.ResponseWriter, r *http.Request, user *models.User) error {
	session, _ := a.sessions.Get(r, sessionName)
	session.Values[userIDKey] = user.ID
	session.AddFlash("You were logged in")
	return session.Save(r, w)
}

func (a *Authenticator) Logout(w http.ResponseWriter, r *http.Request) error {
	session, _ := a.sessions.Get(r, sessionName)
	delete(session.Values, userIDKey)
	session.AddFlash("You were logged out")
	return session.Save(r, w)
}

// Flash queues msg for the next rendered page.
func (a *Authenticator) Flash(w http.ResponseWriter, r *http.Request, msg string) {
	session, _ := a.sessions.Get(r, sessionName)
	session.AddFlash(msg)
	if err := session.Save(r, w); err != nil {
		a.log.WithError(err).Warn("Failed to save flash message")
	}
}

// Flashes pops the queued messages. It writes a cookie header, so call it
// before the response status is written.
func (a *Authenticator) Flashes(w http.ResponseWriter, r *http.Request) []string {
	session, err := a.sessions.Get(r, sessionName)
	if err != nil {
		return nil
	}
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := session.Save(r, w); err != nil {
		a.log.WithError(err).Warn("Failed to clear flash messages")
	}
	msgs := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// Authenticate checks a username/password pair.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := a.users.UserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidUsername
	}
	if err != nil {
		return nil, err
	}
	if !CheckPasswordHash(password, user.PWHash) {
		return nil, ErrInvalidPassword
	}
	return user, nil
}

type SignupForm struct {
	Username  string `validate:"notblank,max=150"`
	Email     string `validate:"required,email"`
	Password  string `validate:"required"`
	Password2 string
}

// FormError carries sign-up field errors.
type FormError struct {
	Fields forms.Errors
}

func (e *FormError) Error() string { return "invalid sign-up form" }

var signupFields = map[string]string{
	"Username": "username",
	"Email":    "email",
	"Password": "password",
}

var signupMessages = map[string]string{
	"Username":       "You have to enter a username",
	"Username.max":   "Ensure this value has at most 150 characters.",
	"Email":          "You have to enter a valid email address",
	"Password":       "You have to enter a password",
	"Password2.same": "The two passwords do not match",
}

// Register validates form and creates the account.
func (a *Authenticator) Register(ctx context.Context, form SignupForm) (*models.User, error) {
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)

	errs := forms.Check(form, signupFields, signupMessages)
	if !errs.Has("username") {
		switch {
		case !usernamePattern.MatchString(form.Username):
			errs.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
		case reserved[strings.ToLower(form.Username)]:
			errs.Add("username", "The username is already taken")
		}
	}
	if !errs.Has("password") && form.Password != form.Password2 {
		errs.Add("password2", signupMessages["Password2.same"])
	}
	if errs.Any() {
		return nil, &FormError{Fields: errs}
	}

	hash, err := HashPassword(form.Password, a.cost)
	if err != nil {
		return nil, err
	}

	user := &models.User{Username: form.Username, Email: form.Email, PWHash: hash}
	if err := a.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			errs.Add("username", "The username is already taken")
			return nil, &FormError{Fields: errs}
		}
		return nil, err
	}

	a.log.WithField("username", user.Username).Info("User registered successfully")
	return user, nil
}
