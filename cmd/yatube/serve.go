package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"yatube/internal/auth"
	"yatube/internal/feed"
	"yatube/internal/follow"
	"yatube/internal/metrics"
	"yatube/internal/posts"
	"yatube/internal/web"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

func init() {
	RootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Migrate(ctx); err != nil {
		return err
	}

	images, err := a.mediaStore(ctx)
	if err != nil {
		return err
	}

	pub := a.publisher()
	m := metrics.InitMetrics(prometheus.DefaultRegisterer)
	composer := feed.NewComposer(a.store, a.feedCache(ctx), a.log)
	sessions := auth.NewCookieStore(a.cfg.Session.Key, a.cfg.Session.MaxAge, a.cfg.Session.Secure)

	srv, err := web.NewServer(web.Deps{
		Auth:    auth.NewAuthenticator(a.store, sessions, a.cfg.BcryptCost, a.log),
		Feed:    composer,
		Posts:   posts.NewService(a.store, images, composer, pub, m, a.log),
		Follows: follow.NewManager(a.store, pub, m, a.log),
		Groups:  a.store,
		Images:  images,
		Metrics: m,
		Health:  web.HealthFromStore(a.store),
		Log:     a.log,

		CSRFKey:       a.cfg.Session.Key,
		SecureCookies: a.cfg.Session.Secure,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              a.cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.WithFields(logrus.Fields{"addr": a.cfg.Port}).Warn("Server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serving http")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
