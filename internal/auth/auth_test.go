package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"yatube/internal/auth"
	"yatube/internal/logging"
	"yatube/internal/models"
	"yatube/internal/store/storetest"
)

func newAuthenticator(t *testing.T) *auth.Authenticator {
	s := storetest.New(t)
	cookies := auth.NewCookieStore("test-session-key-0123456789abcdef", time.Hour, false)
	return auth.NewAuthenticator(s, cookies, bcrypt.MinCost, logging.Discard())
}

func formErrors(t *testing.T, err error) map[string][]string {
	var ferr *auth.FormError
	require.ErrorAs(t, err, &ferr)
	return ferr.Fields
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "/auth/login/?next=/new/", auth.LoginURL("/new/"))
	assert.Equal(t, "/auth/login/?next=/makson/1/edit/", auth.LoginURL("/makson/1/edit/"))
	assert.Equal(t, "/auth/login/?next=/follow/%3Fpage%3D2", auth.LoginURL("/follow/?page=2"))
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/new/", auth.SafeNext("/new/"))
	assert.Equal(t, "/", auth.SafeNext(""))
	assert.Equal(t, "/", auth.SafeNext("//evil.example.com/"))
	assert.Equal(t, "/", auth.SafeNext("https://evil.example.com/"))
	assert.Equal(t, "/", auth.SafeNext(`/\evil.example.com`))
}

func TestDecide(t *testing.T) {
	owner := &models.User{ID: 1}
	other := &models.User{ID: 2}

	assert.Equal(t, auth.Anonymous, auth.Decide(nil, 1))
	assert.Equal(t, auth.NonOwner, auth.Decide(other, 1))
	assert.Equal(t, auth.Owner, auth.Decide(owner, 1))
	assert.Equal(t, "non-owner", auth.NonOwner.String())
}

func TestRequireLogin(t *testing.T) {
	h := auth.RequireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/new/", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login/?next=/new/", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/new/", nil)
	req = req.WithContext(auth.WithCaller(req.Context(), &models.User{ID: 1}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestPasswordHash(t *testing.T) {
	hash, err := auth.HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, auth.CheckPasswordHash("s3cret", hash))
	assert.False(t, auth.CheckPasswordHash("wrong", hash))
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	a := newAuthenticator(t)

	u, err := a.Register(ctx, auth.SignupForm{
		Username: " makson ", Email: "makson@example.com", Password: "pw", Password2: "pw",
	})
	require.NoError(t, err)
	assert.Equal(t, "makson", u.Username)
	assert.NotEqual(t, "pw", u.PWHash)

	_, err = a.Register(ctx, auth.SignupForm{
		Username: "makson", Email: "other@example.com", Password: "pw", Password2: "pw",
	})
	assert.Equal(t, []string{"The username is already taken"}, formErrors(t, err)["username"])
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	a := newAuthenticator(t)

	tests := []struct {
		name  string
		form  auth.SignupForm
		field string
		msg   string
	}{
		{"missing username", auth.SignupForm{Email: "a@b.c", Password: "p", Password2: "p"}, "username", "You have to enter a username"},
		{"bad email", auth.SignupForm{Username: "u", Email: "nope", Password: "p", Password2: "p"}, "email", "You have to enter a valid email address"},
		{"missing password", auth.SignupForm{Username: "u", Email: "a@b.c"}, "password", "You have to enter a password"},
		{"mismatch", auth.SignupForm{Username: "u", Email: "a@b.c", Password: "p", Password2: "q"}, "password2", "The two passwords do not match"},
		{"reserved", auth.SignupForm{Username: "follow", Email: "a@b.c", Password: "p", Password2: "p"}, "username", "The username is already taken"},
		{"slash", auth.SignupForm{Username: "a/b", Email: "a@b.c", Password: "p", Password2: "p"}, "username", ""},
		{"too long", auth.SignupForm{Username: strings.Repeat("x", 151), Email: "a@b.c", Password: "p", Password2: "p"}, "username", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Register(ctx, tt.form)
			fields := formErrors(t, err)
			require.Contains(t, fields, tt.field)
			if tt.msg != "" {
				assert.Contains(t, fields[tt.field], tt.msg)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	a := newAuthenticator(t)

	_, err := a.Register(ctx, auth.SignupForm{Username: "makson", Email: "m@example.com", Password: "pw", Password2: "pw"})
	require.NoError(t, err)

	u, err := a.Authenticate(ctx, "makson", "pw")
	require.NoError(t, err)
	assert.Equal(t, "makson", u.Username)

	_, err = a.Authenticate(ctx, "nobody", "pw")
	assert.ErrorIs(t, err, auth.ErrInvalidUsername)

	_, err = a.Authenticate(ctx, "makson", "bad")
	assert.ErrorIs(t, err, auth.ErrInvalidPassword)
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := newAuthenticator(t)

	u, err := a.Register(ctx, auth.SignupForm{Username: "makson", Email: "m@example.com", Password: "pw", Password2: "pw"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, a.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login/", nil), u))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	var seen *models.User
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.Caller(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	assert.Equal(t, u.ID, seen.ID)

	seen = nil
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Nil(t, seen)

	rec = httptest.NewRecorder()
	require.NoError(t, a.Logout(rec, req))
	after := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		after.AddCookie(c)
	}
	seen = nil
	h.ServeHTTP(httptest.NewRecorder(), after)
	assert.Nil(t, seen)
	assert.Equal(t, []string{"You were logged out"}, a.Flashes(httptest.NewRecorder(), after))
}

func TestFlashes(t *testing.T) {
	a := newAuthenticator(t)

	rec := httptest.NewRecorder()
	a.Flash(rec, httptest.NewRequest(http.MethodGet, "/", nil), "You are now following makson")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	assert.Equal(t, []string{"You are now following makson"}, a.Flashes(rec, req))
	assert.NotEmpty(t, rec.Result().Cookies(), "popping flashes rewrites the cookie")

	assert.Empty(t, a.Flashes(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
}
