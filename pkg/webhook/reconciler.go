// Package webhook reconciles the asynchronous payment notifications sent for an order with the state of its
// Smobilpay transaction.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jwambugu/smobilpay-golang-sdk"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/gateway"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/notify"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/order"
)

// Outcome describes what a reconciliation did to the order.
type Outcome string

const (
	// OutcomeIgnored means the order is not paid through a registered gateway.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeUnverified means the transaction could not be verified. The next delivery will try again.
	OutcomeUnverified Outcome = "unverified"
	// OutcomePending means the customer has not confirmed the payment yet.
	OutcomePending Outcome = "pending"
	// OutcomePaid means the order was marked as paid.
	OutcomePaid Outcome = "paid"
	// OutcomeFailed means the order was marked as failed.
	OutcomeFailed Outcome = "failed"
	// OutcomeUnchanged means the transaction is final but the order already reached a final status.
	OutcomeUnchanged Outcome = "unchanged"
)

// Reconciler applies the verified status of a transaction to its order. Only the first final transition of an
// order is applied and notified.
type Reconciler struct {
	store     order.Store
	registry  *gateway.Registry
	notifiers []notify.Notifier
	logger    *slog.Logger
}

// NewReconciler creates a Reconciler. Every notifier is invoked when an order is paid or fails.
func NewReconciler(store order.Store, registry *gateway.Registry, logger *slog.Logger, notifiers ...notify.Notifier) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		store:     store,
		registry:  registry,
		notifiers: notifiers,
		logger:    logger,
	}
}

// Reconcile handles an authenticated delivery. The body is recorded on the order before the transaction is
// verified.
func (r *Reconciler) Reconcile(ctx context.Context, n *Notification) (Outcome, error) {
	const op = "webhook.Reconcile"

	ord, err := r.load(ctx, op, n.OrderID)
	if err != nil {
		return "", err
	}

	// The reported status is informational, only the verified transaction moves the order.
	r.logger.InfoContext(ctx, "webhook received",
		slog.Int64("order_id", ord.ID),
		slog.String("reported_status", n.Status),
		slog.String("reported_error_code", n.ErrorCode),
	)

	if err := r.store.AddNote(ctx, ord.ID, "Webhook received: "+n.Body); err != nil {
		return "", fmt.Errorf("%s.AddNote:: %w", op, err)
	}

	return r.verify(ctx, ord, "webhook")
}

// Verify checks the transaction of an order without a delivery, e.g. when a notification was never received.
func (r *Reconciler) Verify(ctx context.Context, orderID int64) (Outcome, error) {
	ord, err := r.load(ctx, "webhook.Verify", orderID)
	if err != nil {
		return "", err
	}

	return r.verify(ctx, ord, "manual check")
}

func (r *Reconciler) load(ctx context.Context, op string, orderID int64) (*order.Order, error) {
	ord, err := r.store.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return nil, &smobilpay.Error{Kind: smobilpay.KindOrderNotFound, Op: op, Message: "Order not found", Err: err}
		}
		return nil, fmt.Errorf("%s.Get:: %w", op, err)
	}

	return ord, nil
}

func (r *Reconciler) verify(ctx context.Context, ord *order.Order, via string) (Outcome, error) {
	logger := r.logger.With(slog.Int64("order_id", ord.ID), slog.String("payment_method", ord.PaymentMethod))

	gw, ok := r.registry.Lookup(ord.PaymentMethod)
	if !ok {
		logger.InfoContext(ctx, "no gateway for payment method")
		return OutcomeIgnored, nil
	}

	// Collections are created with the order id as merchant transaction id.
	trid := ord.Attempt.TransactionID
	if trid == "" {
		trid = strconv.FormatInt(ord.ID, 10)
	}

	res := gw.API.VerifyTransaction(ctx, trid)
	if !res.Success {
		logger.WarnContext(ctx, "transaction verification failed",
			slog.String("trid", trid),
			slog.String("kind", res.Kind().String()),
			slog.String("message", res.Message),
		)
		return OutcomeUnverified, nil
	}

	var txns []smobilpay.Transaction
	if err := res.Decode(&txns); err != nil || len(txns) == 0 {
		logger.WarnContext(ctx, "transaction verification returned no transaction", slog.String("trid", trid))
		return OutcomeUnverified, nil
	}

	txn := txns[0]
	logger = logger.With(slog.String("trid", trid), slog.String("status", string(txn.Status)))

	switch txn.Status {
	case smobilpay.TransactionStatusSuccess:
		note := fmt.Sprintf("Payment verified via %s. trid: %s", via, trid)

		changed, err := r.store.MarkPaid(ctx, ord.ID, trid, note)
		if err != nil {
			return "", fmt.Errorf("webhook.MarkPaid:: %w", err)
		}

		if !changed {
			logger.InfoContext(ctx, "order already final")
			return OutcomeUnchanged, nil
		}

		logger.InfoContext(ctx, "order paid")
		r.notify(ctx, ord, gw, gw.Messages.Success())
		return OutcomePaid, nil

	case smobilpay.TransactionStatusErrored:
		msg := gw.FailureMessage(txn.ErrorCode.String())

		changed, err := r.store.UpdateStatus(ctx, ord.ID, order.StatusFailed, msg.En)
		if err != nil {
			return "", fmt.Errorf("webhook.UpdateStatus:: %w", err)
		}

		if !changed {
			logger.InfoContext(ctx, "order already final")
			return OutcomeUnchanged, nil
		}

		logger.InfoContext(ctx, "order failed", slog.String("error_code", txn.ErrorCode.String()))
		r.notify(ctx, ord, gw, msg)
		return OutcomeFailed, nil

	default:
		return OutcomePending, nil
	}
}

// notify delivers the message on every channel. Delivery failures do not affect the order.
func (r *Reconciler) notify(ctx context.Context, ord *order.Order, gw *gateway.Gateway, msg gateway.Message) {
	n := notify.Notification{Order: ord, Message: msg, PaymentMethod: gw.Title}

	for _, notifier := range r.notifiers {
		if err := notifier.Notify(ctx, n); err != nil {
			r.logger.ErrorContext(ctx, "notification failed",
				slog.Int64("order_id", ord.ID),
				slog.String("notifier", fmt.Sprintf("%T", notifier)),
				slog.Any("error", err),
			)
		}
	}
}
