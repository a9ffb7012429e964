package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jwambugu/smobilpay-golang-sdk/pkg/checkout"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/webhook"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the checkout and webhook endpoints",
		Long: `Serve the checkout and webhook endpoints.

Endpoints:
  PUT  /orders/{orderID}        create or update an order
  GET  /orders/{orderID}        show an order
  POST /orders/{orderID}/pay    initiate the payment of an order
  POST /webhook                 payment notifications
  POST /wc-api/wc_smobilpay_webhook`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer func() {
				_ = a.Close()
			}()

			if addr == "" {
				addr = a.conf.HTTPAddr
			}

			return a.serve(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "address to listen on (default SMOBILPAY_HTTP_ADDR or :8080)")
	return cmd
}

func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	orchestrator := checkout.NewOrchestrator(a.store, a.registry, nil, a.conf.ReturnURL, a.logger)
	checkout.NewHandler(orchestrator, a.store, a.logger).Register(r)

	webhook.NewHandler(a.reconciler, a.conf.WebhookSecret, a.conf.WebhookRateLimit, a.logger).Register(r)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

func (a *app) serve(ctx context.Context, addr string) error {
	if a.conf.WebhookSecret == "" {
		a.logger.Warn("SMOBILPAY_WEBHOOK_SECRET is not set, deliveries are signed with an empty secret")
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
		// Checkout waits for three sequential Smobilpay calls.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("environment", string(a.conf.Environment)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.logger.Info("server exited")
	return nil
}
