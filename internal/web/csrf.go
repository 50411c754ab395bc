package web

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/csrf"

	"yatube/internal/posts"
)

// csrfFieldName is the hidden form field carrying the token.
const csrfFieldName = "gorilla.csrf.Token"

// protect rejects unsafe requests that lack a valid CSRF token. Request
// bodies are capped first so token lookup never reads an unbounded upload.
func (s *Server) protect(next http.Handler) http.Handler {
	key := sha256.Sum256([]byte("csrf:" + s.csrfKey))
	checked := csrf.Protect(key[:],
		csrf.Secure(s.secureCookies),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.FieldName(csrfFieldName),
		csrf.ErrorHandler(http.HandlerFunc(s.csrfFailure)),
	)(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
		}
		if r.TLS == nil && r.Header.Get("X-Forwarded-Proto") != "https" {
			r = csrf.PlaintextHTTPRequest(r)
		}
		checked.ServeHTTP(w, r)
	})
}

func (s *Server) csrfFailure(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > maxRequestBytes || bodyTooLarge(r.ParseMultipartForm(multipartMemory)) {
		http.Error(w, posts.MsgImageTooBig, http.StatusRequestEntityTooLarge)
		return
	}
	s.log.WithError(csrf.FailureReason(r)).WithField("path", r.URL.Path).Warn("CSRF verification failed")
	s.render(w, r, "misc/403.html", http.StatusForbidden, &pageData{Title: "Forbidden"})
}
