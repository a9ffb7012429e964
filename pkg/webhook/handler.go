package webhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jwambugu/smobilpay-golang-sdk"
	"golang.org/x/time/rate"
)

const (
	// Path is the webhook endpoint.
	Path = "/webhook"
	// LegacyPath is the endpoint used by WooCommerce installations.
	LegacyPath = "/wc-api/wc_smobilpay_webhook"

	maxBodySize = 1 << 20
)

// Handler serves webhook deliveries.
type Handler struct {
	reconciler *Reconciler
	secret     string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewHandler creates a Handler that authenticates deliveries with secret and accepts at most limit deliveries per
// second. A limit of 0 disables rate limiting.
func NewHandler(reconciler *Reconciler, secret string, limit float64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if limit > 0 {
		burst := int(limit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}

	return &Handler{
		reconciler: reconciler,
		secret:     secret,
		limiter:    limiter,
		logger:     logger,
	}
}

// Register mounts the webhook endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Post(Path, h.handle)
		r.Post(LegacyPath, h.handle)
	})
}

// Router returns a router serving only the webhook endpoints.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With(slog.String("delivery_id", uuid.NewString()))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		logger.WarnContext(ctx, "failed to read webhook body", slog.Any("error", err))
		http.Error(w, "Invalid webhook data", http.StatusBadRequest)
		return
	}

	if err := Authenticate(r.Header, h.secret, body); err != nil {
		logger.WarnContext(ctx, "webhook authentication failed", slog.Any("error", err))
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	n, err := ParseNotification(body)
	if err != nil {
		logger.WarnContext(ctx, "invalid webhook payload", slog.Any("error", err))
		http.Error(w, "Invalid webhook data", http.StatusBadRequest)
		return
	}

	logger = logger.With(slog.Int64("order_id", n.OrderID))

	outcome, err := h.reconciler.Reconcile(ctx, n)
	if err != nil {
		var e *smobilpay.Error
		if errors.As(err, &e) && e.Kind == smobilpay.KindOrderNotFound {
			logger.WarnContext(ctx, "webhook for unknown order")
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}

		logger.ErrorContext(ctx, "webhook reconciliation failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger.InfoContext(ctx, "webhook processed", slog.String("outcome", string(outcome)))

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
