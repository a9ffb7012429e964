package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jwambugu/smobilpay-golang-sdk"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/config"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/gateway"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/notify"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/order"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/webhook"
)

type rootOptions struct {
	envFiles []string
	debug    bool
}

// app holds the components shared by every command.
type app struct {
	conf       *config.Config
	logger     *slog.Logger
	store      order.Store
	registry   *gateway.Registry
	reconciler *webhook.Reconciler
	close      func() error
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	conf, err := config.Get(opts.envFiles...)
	if err != nil {
		return nil, err
	}

	a := &app{
		conf:   conf,
		logger: logger,
		close:  func() error { return nil },
	}

	if conf.RedisAddr != "" {
		client, err := order.NewRedisClient(ctx, conf.RedisAddr)
		if err != nil {
			return nil, err
		}

		a.store = order.NewRedisStore(client, "")
		a.close = client.Close
		logger.Info("using redis order store", slog.String("addr", conf.RedisAddr))
	} else {
		a.store = order.NewMemoryStore()
		logger.Warn("SMOBILPAY_REDIS_ADDR is not set, orders are kept in memory")
	}

	a.registry = gateway.NewRegistry(
		newGateway(gateway.MTNMoMo, conf.MTN, conf.Environment, logger),
		newGateway(gateway.OrangeMoney, conf.Orange, conf.Environment, logger),
	)

	if len(a.registry.Methods()) == 0 {
		logger.Warn("no payment method is configured")
	}

	a.reconciler = webhook.NewReconciler(a.store, a.registry, logger, newNotifiers(conf, logger)...)
	return a, nil
}

// newGateway returns nil when the gateway has no credentials.
func newGateway(method gateway.Method, conf *config.Gateway, env smobilpay.Environment, logger *slog.Logger) *gateway.Gateway {
	if !conf.Enabled() {
		return nil
	}

	api := smobilpay.NewApp(nil, conf.Credentials.MerchantKey, conf.Credentials.SecretKey, env,
		smobilpay.WithLogger(logger.With(slog.String("payment_method", string(method)))),
	)

	return gateway.New(method, conf.Title, conf.PaymentItem, api)
}

func newNotifiers(conf *config.Config, logger *slog.Logger) []notify.Notifier {
	var notifiers []notify.Notifier

	if conf.SMTP.Addr != "" {
		mailer := notify.NewSMTPMailer(conf.SMTP.Addr, conf.SMTP.Username, conf.SMTP.Password, conf.SMTP.From)
		notifiers = append(notifiers, notify.NewEmail(mailer, ""))
	} else {
		logger.Warn("SMOBILPAY_SMTP_ADDR is not set, email notifications are disabled")
	}

	if conf.WhatsAppAPIKey != "" {
		notifiers = append(notifiers, notify.NewWhatsApp(nil, conf.WhatsAppURL, conf.WhatsAppAPIKey))
	} else {
		logger.Warn("SMOBILPAY_WHATSAPP_API_KEY is not set, WhatsApp notifications are disabled")
	}

	return notifiers
}

func (a *app) Close() error {
	if err := a.close(); err != nil {
		return fmt.Errorf("close order store: %w", err)
	}
	return nil
}
