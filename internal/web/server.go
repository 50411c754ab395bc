// Package web is the HTML front end: routing, middleware, handlers and
// templates.
package web

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"yatube/internal/auth"
	"yatube/internal/feed"
	"yatube/internal/follow"
	"yatube/internal/media"
	"yatube/internal/metrics"
	"yatube/internal/posts"
	"yatube/internal/store"
)

// Server holds everything the handlers need.
type Server struct {
	auth    *auth.Authenticator
	feed    *feed.Composer
	posts   *posts.Service
	follows *follow.Manager
	groups  GroupLister
	images  media.Store
	metrics *metrics.Metrics
	log     logrus.FieldLogger

	gatherer prometheus.Gatherer
	health   func() error
	views    *views
	router   *mux.Router

	csrfKey       string
	secureCookies bool
}

// Deps are the collaborators of a Server. Gatherer defaults to the
// Prometheus default registry; Health may be nil. CSRFKey signs form tokens
// and SecureCookies restricts the CSRF cookie to HTTPS.
type Deps struct {
	Auth     *auth.Authenticator
	Feed     *feed.Composer
	Posts    *posts.Service
	Follows  *follow.Manager
	Groups   GroupLister
	Images   media.Store
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Health   func() error
	Log      logrus.FieldLogger

	CSRFKey       string
	SecureCookies bool
}

func NewServer(d Deps) (*Server, error) {
	if d.CSRFKey == "" {
		return nil, errors.New("a CSRF key is required")
	}
	v, err := loadViews(d.Images)
	if err != nil {
		return nil, err
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		auth:     d.Auth,
		feed:     d.Feed,
		posts:    d.Posts,
		follows:  d.Follows,
		groups:   d.Groups,
		images:   d.Images,
		metrics:  d.Metrics,
		log:      d.Log,
		gatherer: d.Gatherer,
		health:   d.Health,
		views:    v,

		csrfKey:       d.CSRFKey,
		secureCookies: d.SecureCookies,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter().StrictSlash(true)
	r.NotFoundHandler = http.HandlerFunc(s.notFound)

	login := auth.RequireLogin

	r.HandleFunc("/", s.index).Methods(http.MethodGet)
	r.Handle("/new/", login(http.HandlerFunc(s.newPost))).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/follow/", login(http.HandlerFunc(s.followIndex))).Methods(http.MethodGet)
	r.HandleFunc("/group/{slug}/", s.groupPosts).Methods(http.MethodGet)

	r.HandleFunc("/auth/login/", s.login).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/auth/logout/", s.logout).Methods(http.MethodPost)
	r.HandleFunc("/auth/signup/", s.signup).Methods(http.MethodGet, http.MethodPost)

	if local, ok := s.images.(*media.LocalStore); ok {
		r.PathPrefix("/media/").Handler(local.Handler()).Methods(http.MethodGet, http.MethodHead)
	}
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)

	r.HandleFunc("/{username}/", s.profile).Methods(http.MethodGet)
	r.Handle("/{username}/follow/", login(http.HandlerFunc(s.profileFollow))).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/{username}/unfollow/", login(http.HandlerFunc(s.profileUnfollow))).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/{username}/{post_id:[0-9]+}/", s.postView).Methods(http.MethodGet)
	r.Handle("/{username}/{post_id:[0-9]+}/edit/", login(http.HandlerFunc(s.postEdit))).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/{username}/{post_id:[0-9]+}/comment", login(http.HandlerFunc(s.addComment))).Methods(http.MethodGet, http.MethodPost)

	return r
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = s.protect(h)
	h = s.auth.Middleware(h)
	h = s.recoverPanics(h)
	h = s.instrument(h)
	return h
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(); err != nil {
			s.log.WithError(err).Error("Health check failed")
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// HealthFromStore pings the database behind st.
func HealthFromStore(st *store.Store) func() error {
	return func() error {
		sqlDB, err := st.DB().DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	}
}
