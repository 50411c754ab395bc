package web

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/csrf"
	"github.com/pkg/errors"

	"yatube/internal/auth"
	"yatube/internal/feed"
	"yatube/internal/follow"
	"yatube/internal/forms"
	"yatube/internal/media"
	"yatube/internal/models"
	"yatube/internal/store"
)

//go:embed templates
var templateFS embed.FS

// pageData is the context every template receives.
type pageData struct {
	Title   string
	Caller  *models.User
	Path    string
	Flashes []string

	CSRFField template.HTML
	CSRFToken string

	Page      *feed.Page
	Group     *models.Group
	Author    *models.User
	PostCount int64
	Counts    follow.Counts
	Following bool

	Post     *models.Post
	Comments []models.Comment
	CanEdit  bool

	Groups  []models.Group
	Form    map[string]string
	Errors  forms.Errors
	Editing bool
	Next    string

	Unfollow bool
}

type views struct {
	pages map[string]*template.Template
}

func loadViews(images media.Store) (*views, error) {
	funcs := template.FuncMap{
		"imageURL": images.URL,
		"date": func(t time.Time) string {
			return t.Format("2 January 2006 15:04")
		},
	}

	pages, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	misc, err := fs.Glob(templateFS, "templates/pages/misc/*.html")
	if err != nil {
		return nil, err
	}

	v := &views{pages: map[string]*template.Template{}}
	for _, page := range append(pages, misc...) {
		t, err := template.New("base.html").Funcs(funcs).ParseFS(templateFS,
			"templates/base.html",
			"templates/partials/*.html",
			page,
		)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing template %s", page)
		}
		v.pages[strings.TrimPrefix(page, "templates/pages/")] = t
	}
	return v, nil
}

func (v *views) execute(buf *bytes.Buffer, name string, data *pageData) error {
	t, ok := v.pages[name]
	if !ok {
		return errors.Errorf("no template %q", name)
	}
	return t.ExecuteTemplate(buf, "base.html", data)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, status int, data *pageData) {
	data.Caller = auth.Caller(r.Context())
	data.Path = r.URL.Path
	data.Flashes = s.auth.Flashes(w, r)
	data.CSRFField = csrf.TemplateField(r)
	data.CSRFToken = csrf.Token(r)

	var buf bytes.Buffer
	if err := s.views.execute(&buf, name, data); err != nil {
		s.log.WithError(err).WithField("template", name).Error("Failed to render template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int) {
	if status == http.StatusNotFound {
		s.render(w, r, "misc/404.html", status, &pageData{Title: "Page not found"})
		return
	}
	s.render(w, r, "misc/500.html", http.StatusInternalServerError, &pageData{Title: "Server error"})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound)
}

// handleError maps service errors that have no page of their own.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	s.log.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
	s.renderError(w, r, http.StatusInternalServerError)
}
