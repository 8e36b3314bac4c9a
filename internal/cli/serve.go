package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/systemshift/ddrgraph/internal/server/api"
	"github.com/systemshift/ddrgraph/internal/server/graph"
	"github.com/systemshift/ddrgraph/web/handlers"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(o *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only graph browser and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				o.cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), o)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, or :$PORT)")
	return cmd
}

// newRouter mounts the JSON API and the HTML browser over store.
func newRouter(store graph.Store) (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	api.New(store).Routes(r)

	web, err := handlers.New(store)
	if err != nil {
		return nil, err
	}
	web.Routes(r)

	return r, nil
}

func runServe(ctx context.Context, o *rootOptions) error {
	logger := loggerFromContext(ctx)

	store, err := o.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	router, err := newRouter(store)
	if err != nil {
		return err
	}

	sc := o.cfg.Server
	srv := &http.Server{
		Addr:         sc.Addr,
		Handler:      router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting ddrgraph viewer", "addr", sc.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("Server exited")
	return nil
}
