package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jwambugu/smobilpay-golang-sdk"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/config"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/gateway"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/order"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGateway(t *testing.T) {
	assert.Nil(t, newGateway(gateway.OrangeMoney, &config.Gateway{}, smobilpay.EnvironmentSandbox, nil))

	gw := newGateway(gateway.MTNMoMo, &config.Gateway{
		Credentials: smobilpay.Credentials{MerchantKey: "key", SecretKey: "secret"},
		PaymentItem: "20053",
		Title:       "MTN Mobile Money",
	}, smobilpay.EnvironmentProduction, slogDiscard())

	require.NotNil(t, gw)
	assert.Equal(t, gateway.MTNMoMo, gw.Method)
	assert.Equal(t, "20053", gw.PaymentItem)
	assert.Equal(t, smobilpay.ProductionBaseURL, gw.API.(*smobilpay.Smobilpay).BaseURL())
}

func TestNewNotifiers(t *testing.T) {
	conf := &config.Config{}
	assert.Empty(t, newNotifiers(conf, slogDiscard()))

	conf.SMTP.Addr = "localhost:25"
	conf.WhatsAppAPIKey = "key"
	assert.Len(t, newNotifiers(conf, slogDiscard()), 2)
}

func TestApp_Router(t *testing.T) {
	store := order.NewMemoryStore()
	registry := gateway.NewRegistry()
	logger := slogDiscard()

	a := &app{
		conf:       &config.Config{WebhookSecret: "secret", ReturnURL: "https://shop.example/%d"},
		logger:     logger,
		store:      store,
		registry:   registry,
		reconciler: webhook.NewReconciler(store, registry, logger),
	}

	h := a.router()

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodPost, webhook.Path, `{"trid":"1"}`, http.StatusUnauthorized},
		{http.MethodPost, webhook.LegacyPath, `{"trid":"1"}`, http.StatusUnauthorized},
		{http.MethodGet, "/orders/1", "", http.StatusNotFound},
		{http.MethodPut, "/orders/1", `{"payment_method":"mtn_momo","total":"100"}`, http.StatusOK},
		{http.MethodPost, "/orders/1/pay", `{"phone_number":"237670000000"}`, http.StatusBadRequest},
	}

	for _, tc := range tests {
		req := httptest.NewRequest(tc.method, tc.path, bytes.NewBufferString(tc.body))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, tc.want, rr.Code, "%s %s", tc.method, tc.path)
	}
}
