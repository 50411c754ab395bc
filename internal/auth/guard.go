package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"yatube/internal/models"
)

const LoginPath = "/auth/login/"

// Decision is the guard state of a caller against a piece of content.
type Decision int

const (
	Anonymous Decision = iota
	NonOwner
	Owner
)

func (d Decision) String() string {
	switch d {
	case Anonymous:
		return "anonymous"
	case NonOwner:
		return "non-owner"
	default:
		return "owner"
	}
}

// Decide classifies caller against the owner of some content.
func Decide(caller *models.User, ownerID uint) Decision {
	switch {
	case caller == nil:
		return Anonymous
	case caller.ID != ownerID:
		return NonOwner
	default:
		return Owner
	}
}

type callerKey struct{}

// WithCaller returns a context carrying the authenticated caller.
func WithCaller(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, callerKey{}, u)
}

// Caller returns the authenticated user of the request, or nil.
func Caller(ctx context.Context) *models.User {
	u, _ := ctx.Value(callerKey{}).(*models.User)
	return u
}

// LoginURL builds the login redirect that resumes next after signing in.
// Slashes stay unescaped: /auth/login/?next=/new/
func LoginURL(next string) string {
	return LoginPath + "?next=" + strings.ReplaceAll(url.QueryEscape(next), "%2F", "/")
}

// SafeNext only lets local absolute paths through; anything else means "/".
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

// RequireLogin sends anonymous callers to the login page with a return path.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Caller(r.Context()) == nil {
			http.Redirect(w, r, LoginURL(r.URL.RequestURI()), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
