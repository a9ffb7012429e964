package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/jwambugu/smobilpay-golang-sdk"
)

const (
	DefaultHTTPAddr         = ":8080"
	DefaultReturnURL        = "/orders/%d"
	DefaultWhatsAppURL      = "https://notifapi.com/send_message"
	DefaultMTNPaymentItem   = "20053"
	DefaultWebhookRateLimit = 20
)

type (
	// Gateway contains the credentials and the service code of a single payment method.
	Gateway struct {
		Credentials smobilpay.Credentials
		// PaymentItem is the Smobilpay service code used to resolve the payable item.
		PaymentItem string
		// Title is the payment method title shown to customers.
		Title string
	}

	// SMTP contains the settings used to send email notifications.
	SMTP struct {
		Addr     string
		Username string
		Password string
		From     string
	}

	// Config stores the configuration keys we need to run the app
	Config struct {
		Environment smobilpay.Environment
		// MTN is the MTN Mobile Money gateway
		MTN *Gateway
		// Orange is the Orange Money gateway
		Orange *Gateway

		WebhookSecret    string
		WebhookRateLimit float64

		HTTPAddr  string
		ReturnURL string
		RedisAddr string

		WhatsAppURL    string
		WhatsAppAPIKey string
		SMTP           SMTP
	}
)

// Enabled returns true when both keys have been configured.
func (g *Gateway) Enabled() bool {
	return g != nil && g.Credentials.MerchantKey != "" && g.Credentials.SecretKey != ""
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newGateway(prefix, defaultItem, defaultTitle string) *Gateway {
	return &Gateway{
		Credentials: smobilpay.Credentials{
			MerchantKey: os.Getenv(prefix + "_MERCHANT_KEY"),
			SecretKey:   os.Getenv(prefix + "_SECRET_KEY"),
		},
		PaymentItem: env(prefix+"_PAYMENT_ITEM", defaultItem),
		Title:       env(prefix+"_TITLE", defaultTitle),
	}
}

// newConfig creates and returns a new Config from the environment
func newConfig() (*Config, error) {
	environment := smobilpay.Environment(env("SMOBILPAY_ENVIRONMENT", string(smobilpay.EnvironmentSandbox)))

	if environment != smobilpay.EnvironmentSandbox && environment != smobilpay.EnvironmentProduction {
		return nil, fmt.Errorf("config.Get.InvalidEnvironment:: %q", environment)
	}

	rateLimit, err := strconv.ParseFloat(env("SMOBILPAY_WEBHOOK_RATE_LIMIT", strconv.Itoa(DefaultWebhookRateLimit)), 64)
	if err != nil {
		return nil, fmt.Errorf("config.Get.InvalidWebhookRateLimit:: %v", err)
	}

	conf := &Config{
		Environment:      environment,
		MTN:              newGateway("SMOBILPAY_MTN", DefaultMTNPaymentItem, "MTN Mobile Money"),
		Orange:           newGateway("SMOBILPAY_ORANGE", "", "Orange Money"),
		WebhookSecret:    os.Getenv("SMOBILPAY_WEBHOOK_SECRET"),
		WebhookRateLimit: rateLimit,
		HTTPAddr:         env("SMOBILPAY_HTTP_ADDR", DefaultHTTPAddr),
		ReturnURL:        env("SMOBILPAY_RETURN_URL", DefaultReturnURL),
		RedisAddr:        os.Getenv("SMOBILPAY_REDIS_ADDR"),
		WhatsAppURL:      env("SMOBILPAY_WHATSAPP_URL", DefaultWhatsAppURL),
		WhatsAppAPIKey:   os.Getenv("SMOBILPAY_WHATSAPP_API_KEY"),
		SMTP: SMTP{
			Addr:     os.Getenv("SMOBILPAY_SMTP_ADDR"),
			Username: os.Getenv("SMOBILPAY_SMTP_USERNAME"),
			Password: os.Getenv("SMOBILPAY_SMTP_PASSWORD"),
			From:     os.Getenv("SMOBILPAY_SMTP_FROM"),
		},
	}

	if conf.Orange.Enabled() && conf.Orange.PaymentItem == "" {
		return nil, errors.New("config.Get.MissingOrangePaymentItem:: SMOBILPAY_ORANGE_PAYMENT_ITEM is required")
	}

	return conf, nil
}

// Get reads from the given env files, .env by default, and creates a new Config. Missing files are ignored and
// the process environment is used as is.
func Get(filenames ...string) (*Config, error) {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config.Get.LoadEnvFile:: %v", err)
	}

	conf, err := newConfig()

	if err != nil {
		return nil, err
	}

	return conf, nil
}
