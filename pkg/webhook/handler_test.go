package webhook

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jwambugu/smobilpay-golang-sdk"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/gateway"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/notify"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/order"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrderID int64 = 1042

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) messages() []gateway.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := make([]gateway.Message, 0, len(r.sent))
	for _, n := range r.sent {
		msgs = append(msgs, n.Message)
	}
	return msgs
}

type testEnv struct {
	store    order.Store
	email    *recordingNotifier
	whatsapp *recordingNotifier
	registry *gateway.Registry
	verifies *int32
	handler  http.Handler
}

func newTestEnv(t *testing.T, verifyStatus int, verifyBody string, rateLimit float64) *testEnv {
	t.Helper()

	var verifies int32

	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v2/verifytx/1042" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		atomic.AddInt32(&verifies, 1)
		w.WriteHeader(verifyStatus)
		_, _ = w.Write([]byte(verifyBody))
	}))
	t.Cleanup(svr.Close)

	api := smobilpay.NewApp(svr.Client(), "merchant", "secret", smobilpay.EnvironmentSandbox,
		smobilpay.WithBaseURL(svr.URL+"/v2"),
	)

	store := order.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), &order.Order{
		ID:            testOrderID,
		Status:        order.StatusOnHold,
		PaymentMethod: string(gateway.MTNMoMo),
		Currency:      "XAF",
		Total:         decimal.NewFromInt(2500),
		Billing:       order.Billing{FirstName: "Jane", Email: "jane@example.com", Phone: "237670000000"},
		Attempt: order.Attempt{
			PhoneNumber:   "237670000000",
			PayableItemID: "S-112-951-MTNMOMO-20053-200040001-1",
			QuoteID:       "q-123",
			TransactionID: "1042",
			Status:        order.AttemptPending,
		},
	}))

	registry := gateway.NewRegistry(gateway.New(gateway.MTNMoMo, "MTN Mobile Money", "20053", api))
	email, whatsapp := &recordingNotifier{}, &recordingNotifier{}

	reconciler := NewReconciler(store, registry, nil, email, whatsapp)

	return &testEnv{
		store:    store,
		email:    email,
		whatsapp: whatsapp,
		registry: registry,
		verifies: &verifies,
		handler:  NewHandler(reconciler, testSecret, rateLimit, nil).Router(),
	}
}

func (e *testEnv) deliver(t *testing.T, path, body string, sign func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if sign != nil {
		sign(req)
	}

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func signed(body string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set(HeaderWebhookSignature, sha256Base64(testSecret, []byte(body)))
	}
}

func (e *testEnv) order(t *testing.T) *order.Order {
	t.Helper()

	o, err := e.store.Get(context.Background(), testOrderID)
	require.NoError(t, err)
	return o
}

const successBody = `[{"ptn":"99999166542651400095315364801168","trid":"1042","status":"SUCCESS"}]`

func TestHandler_Unauthorized(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, successBody, 0)
	body := `{"trid":"1042"}`

	rr := env.deliver(t, Path, body, func(r *http.Request) {
		r.Header.Set(HeaderWebhookSignature, sha256Base64("not-the-secret", []byte(body)))
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.deliver(t, Path, body, func(r *http.Request) {
		r.Header.Set(HeaderSignature, sha1Hex(testSecret, []byte(`{"trid":"1043"}`)))
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.deliver(t, Path, body, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	assert.Empty(t, env.order(t).Notes)
	assert.Zero(t, atomic.LoadInt32(env.verifies))
}

func TestHandler_BadRequest(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, successBody, 0)

	for _, body := range []string{`{"status":"SUCCESS"}`, `not json`, `{"trid":"abc"}`} {
		rr := env.deliver(t, Path, body, signed(body))
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}

	assert.Zero(t, atomic.LoadInt32(env.verifies))
}

func TestHandler_OrderNotFound(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, successBody, 0)
	body := `{"trid":"999"}`

	rr := env.deliver(t, Path, body, signed(body))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Zero(t, atomic.LoadInt32(env.verifies))
}

func TestHandler_PaidOnce(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, successBody, 0)
	body := `{"trid":"1042","status":"SUCCESS"}`

	for i := 0; i < 2; i++ {
		rr := env.deliver(t, Path, body, signed(body))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "OK", rr.Body.String())
	}

	o := env.order(t)
	assert.Equal(t, order.StatusProcessing, o.Status)
	assert.Equal(t, "1042", o.TransactionRef)
	assert.NotNil(t, o.PaidAt)
	assert.Equal(t, order.AttemptSuccess, o.Attempt.Status)

	var webhookNotes, paidNotes int
	for _, n := range o.Notes {
		switch n.Body {
		case "Webhook received: " + body:
			webhookNotes++
		case "Payment verified via webhook. trid: 1042":
			paidNotes++
		}
	}
	assert.Equal(t, 2, webhookNotes)
	assert.Equal(t, 1, paidNotes)

	success := gateway.Message{En: "The payment was successful.", Fr: "Le paiement a été effectué avec succès."}
	assert.Equal(t, []gateway.Message{success}, env.email.messages())
	assert.Equal(t, []gateway.Message{success}, env.whatsapp.messages())
	assert.EqualValues(t, 2, atomic.LoadInt32(env.verifies))
}

func TestHandler_ConcurrentDeliveries(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, successBody, 0)
	body := `{"id":1042}`

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rr := env.deliver(t, LegacyPath, body, func(r *http.Request) {
				r.Header.Set(HeaderSignature, sha1Hex(testSecret, []byte(body)))
			})
			assert.Equal(t, http.StatusOK, rr.Code)
		}()
	}
	wg.Wait()

	assert.Equal(t, order.StatusProcessing, env.order(t).Status)
	assert.Len(t, env.email.messages(), 1)
	assert.Len(t, env.whatsapp.messages(), 1)
}

func TestHandler_Failed(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `[{"trid":"1042","status":"ERRORED","errorCode":703108}]`, 0)
	body := `{"trid":"1042","status":"ERRORED"}`

	rr := env.deliver(t, Path, body, signed(body))
	require.Equal(t, http.StatusOK, rr.Code)

	o := env.order(t)
	assert.Equal(t, order.StatusFailed, o.Status)
	assert.Equal(t, order.AttemptErrored, o.Attempt.Status)
	assert.Equal(t, "Insufficient balance. Order status changed from on-hold to failed.", o.Notes[len(o.Notes)-1].Body)

	want := []gateway.Message{{En: "Insufficient balance.", Fr: "Solde insuffisant."}}
	assert.Equal(t, want, env.email.messages())
	assert.Equal(t, want, env.whatsapp.messages())
}

func TestHandler_FailedUnknownCode(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `[{"trid":"1042","status":"ERRORED"}]`, 0)
	body := `{"trid":"1042"}`

	rr := env.deliver(t, Path, body, signed(body))
	require.Equal(t, http.StatusOK, rr.Code)

	want := []gateway.Message{{En: "The payment failed.", Fr: "Le paiement a échoué."}}
	assert.Equal(t, order.StatusFailed, env.order(t).Status)
	assert.Equal(t, want, env.email.messages())
}

func TestHandler_FailedWithSuccessCode(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `[{"trid":"1042","status":"ERRORED","errorCode":0}]`, 0)
	body := `{"trid":"1042"}`

	rr := env.deliver(t, Path, body, signed(body))
	require.Equal(t, http.StatusOK, rr.Code)

	o := env.order(t)
	assert.Equal(t, order.StatusFailed, o.Status)
	assert.Equal(t, "The payment failed. Order status changed from on-hold to failed.", o.Notes[len(o.Notes)-1].Body)

	want := []gateway.Message{{En: "The payment failed.", Fr: "Le paiement a échoué."}}
	assert.Equal(t, want, env.email.messages())
	assert.Equal(t, want, env.whatsapp.messages())
}

func TestHandler_NoStateChange(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "still pending", status: http.StatusOK, body: `[{"trid":"1042","status":"PENDING"}]`},
		{name: "verification failed", status: http.StatusInternalServerError, body: `{"message":"boom"}`},
		{name: "no transaction", status: http.StatusOK, body: `[]`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, tc.status, tc.body, 0)
			body := `{"trid":"1042"}`

			rr := env.deliver(t, Path, body, signed(body))
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "OK", rr.Body.String())

			o := env.order(t)
			assert.Equal(t, order.StatusOnHold, o.Status)
			require.Len(t, o.Notes, 1)
			assert.Equal(t, "Webhook received: "+body, o.Notes[0].Body)
			assert.Empty(t, env.email.messages())
		})
	}
}

func TestHandler_UnregisteredPaymentMethod(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, successBody, 0)

	o := env.order(t)
	o.PaymentMethod = "cod"
	require.NoError(t, env.store.Put(context.Background(), o))

	body := `{"trid":"1042"}`
	rr := env.deliver(t, Path, body, signed(body))
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Len(t, env.order(t).Notes, 1)
	assert.Zero(t, atomic.LoadInt32(env.verifies))
}

func TestHandler_RateLimit(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `[{"trid":"1042","status":"PENDING"}]`, 1)
	body := `{"trid":"1042"}`

	assert.Equal(t, http.StatusOK, env.deliver(t, Path, body, signed(body)).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.deliver(t, Path, body, signed(body)).Code)
}

func TestReconciler_ReconcileLogsReportedState(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, `[{"trid":"1042","status":"PENDING"}]`, 0)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	reconciler := NewReconciler(env.store, env.registry, logger)
	outcome, err := reconciler.Reconcile(context.Background(), &Notification{
		OrderID:   testOrderID,
		Status:    "ERRORED",
		ErrorCode: "703108",
		Body:      `{"trid":"1042","status":"ERRORED","errorCode":"703108"}`,
	})
	require.NoError(t, err)

	// The reported status does not override the verified one.
	assert.Equal(t, OutcomePending, outcome)
	assert.Equal(t, order.StatusOnHold, env.order(t).Status)

	assert.Contains(t, buf.String(), `"reported_status":"ERRORED"`)
	assert.Contains(t, buf.String(), `"reported_error_code":"703108"`)
}

func TestReconciler_Verify(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, successBody, 0)

	reconciler := NewReconciler(env.store, gateway.NewRegistry(), nil)
	outcome, err := reconciler.Verify(context.Background(), testOrderID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)

	_, err = reconciler.Verify(context.Background(), 1)
	assert.ErrorIs(t, err, &smobilpay.Error{Kind: smobilpay.KindOrderNotFound})
}
