package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-triage/internal/api"
	"go-triage/internal/auth"
	"go-triage/internal/llm"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.cfg.ValidateServer(); err != nil {
		return err
	}
	go a.seedQuietly(ctx)

	cfg := a.cfg
	svc := &api.Services{
		Config:    cfg,
		Sessions:  auth.NewSessionStore(a.rdb),
		Agent:     a.agent,
		Knowledge: a.kb,
		Tools:     a.tools,
		Fetcher:   a.fetcher,
		Discovery: llm.NewDiscoveryService(a.client, time.Duration(cfg.LLM.ModelCacheMinutes)*time.Minute),
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.SetupRouter(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Main] Starting server on %s%s", addr, cfg.Server.Subpath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("[Main] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
