package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httpapi "github.com/tbourn/go-discord-media/internal/http"
)

const shutdownGrace = 10 * time.Second

func (a *app) serve(ctx context.Context) int {
	store, closeDB, err := a.openManifest(ctx)
	if err != nil {
		return a.fatal(err, "manifest unavailable")
	}
	defer closeDB()

	gin.SetMode(a.cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, store, a.cfg, a.log)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           r,
		ReadTimeout:       a.cfg.ReadTimeout,
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Str("base_path", a.cfg.APIBasePath).Msg("manifest browser listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return a.fatal(err, "http server")
		}
		return 0
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.log.Error().Err(err).Msg("graceful shutdown failed")
		return 1
	}
	return 0
}
