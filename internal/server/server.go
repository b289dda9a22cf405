package server

import (
	"context"
	"errors"
	"net/http"

	"schemap/internal/config"
	"schemap/internal/logger"
)

// Run serves the API until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config, hub *Hub, log *logger.Logger) error {
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      NewRouter(hub, hub.Dialect, log),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	errc := make(chan error, 1)
	go func() {
		log.InfoWith("http server listening", map[string]any{"addr": cfg.Server.Addr})
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout.Std())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
