// Package checkout drives an order through the Smobilpay purchase flow: resolve the payable item, request a
// quote and collect the payment from the customer's mobile money account.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jwambugu/smobilpay-golang-sdk"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/gateway"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/order"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/phone"
)

type (
	// Cart is emptied once the customer has been asked to confirm the payment.
	Cart interface {
		Empty(ctx context.Context, orderID int64) error
	}

	// CartFunc adapts a function to the Cart interface.
	CartFunc func(ctx context.Context, orderID int64) error

	// Outcome is returned when the payment was initiated.
	Outcome struct {
		// Result is always "success".
		Result string `json:"result"`
		// TransactionID is the merchant transaction id echoed by Smobilpay.
		TransactionID string `json:"trid"`
		// Redirect is the page the customer is sent to while the payment is pending.
		Redirect string `json:"redirect"`
	}

	// Orchestrator processes payments submitted at checkout. It keeps no state between calls.
	Orchestrator struct {
		store     order.Store
		registry  *gateway.Registry
		cart      Cart
		returnURL string
		logger    *slog.Logger
	}
)

func (f CartFunc) Empty(ctx context.Context, orderID int64) error {
	return f(ctx, orderID)
}

// DefaultReturnURL is the redirect target used when no return URL is configured. It points at the order
// endpoint served by Handler.
const DefaultReturnURL = "/orders/%d"

// NewOrchestrator creates an Orchestrator. returnURL is formatted with the order id, e.g.
// https://shop.example/checkout/order-received/%d, and defaults to DefaultReturnURL. cart may be nil.
func NewOrchestrator(store order.Store, registry *gateway.Registry, cart Cart, returnURL string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	if returnURL == "" {
		returnURL = DefaultReturnURL
	}

	return &Orchestrator{
		store:     store,
		registry:  registry,
		cart:      cart,
		returnURL: returnURL,
		logger:    logger,
	}
}

// ProcessPayment initiates the payment of an order with the phone number the customer entered. Every error
// returned is an *smobilpay.Error whose Message can be shown to the customer.
func (o *Orchestrator) ProcessPayment(ctx context.Context, orderID int64, phoneNumber string) (*Outcome, error) {
	const op = "checkout.ProcessPayment"

	phoneNumber = strings.TrimSpace(phoneNumber)

	if err := phone.Validate(phoneNumber); err != nil {
		message := "Invalid phone number format. Use: 237xxxxxxxxx"
		if errors.Is(err, phone.ErrRequired) {
			message = "Phone number is required"
		}
		return nil, &smobilpay.Error{Kind: smobilpay.KindValidation, Op: op, Message: message, Err: err}
	}

	ord, err := o.store.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return nil, &smobilpay.Error{Kind: smobilpay.KindOrderNotFound, Op: op, Message: "Order not found", Err: err}
		}
		return nil, o.internal(op, err)
	}

	gw, ok := o.registry.Lookup(ord.PaymentMethod)
	if !ok {
		return nil, &smobilpay.Error{
			Kind:    smobilpay.KindValidation,
			Op:      op,
			Message: fmt.Sprintf("Payment method %q is not available", ord.PaymentMethod),
		}
	}

	logger := o.logger.With(slog.Int64("order_id", orderID), slog.String("payment_method", string(gw.Method)))

	if err := o.store.BeginAttempt(ctx, orderID, phoneNumber); err != nil {
		if errors.Is(err, order.ErrPaymentStarted) {
			return nil, &smobilpay.Error{
				Kind:    smobilpay.KindValidation,
				Op:      op,
				Message: "This order is already awaiting payment confirmation",
				Err:     err,
			}
		}
		return nil, o.internal(op, err)
	}

	attempt := order.Attempt{PhoneNumber: phoneNumber, Status: order.AttemptNone}

	// Step 1: Get payable item ID
	payable := gw.API.GetPayableItem(ctx, gw.PaymentItem)
	if !payable.Success {
		logger.WarnContext(ctx, "payable item lookup failed", slog.String("message", payable.Message))
		return nil, upstream(op, payable, "Payment initialization failed. Please try again.")
	}

	var items []smobilpay.PayableItem
	if err := payable.Decode(&items); err != nil || len(items) == 0 || items[0].PayItemID == "" {
		return nil, missing(op, "Could not retrieve payment item ID")
	}

	attempt.PayableItemID = items[0].PayItemID
	attempt.Status = order.AttemptPayableResolved
	if err := o.store.SaveAttempt(ctx, orderID, attempt); err != nil {
		return nil, o.internal(op, err)
	}

	// Step 2: Initiate transaction. The provider only accepts whole amounts.
	quoteRes := gw.API.InitiateTransaction(ctx, smobilpay.QuoteRequest{
		PayItemID: attempt.PayableItemID,
		Amount:    ord.Total.IntPart(),
	})

	if !quoteRes.Success {
		logger.WarnContext(ctx, "quote failed", slog.String("message", quoteRes.Message))
		return nil, upstream(op, quoteRes, "Transaction initiation failed: "+messageOrDefault(quoteRes))
	}

	var quote smobilpay.Quote
	if err := quoteRes.Decode(&quote); err != nil || quote.QuoteID == "" {
		return nil, missing(op, "Could not retrieve quote ID")
	}

	attempt.QuoteID = quote.QuoteID
	attempt.Status = order.AttemptQuoted
	if err := o.store.SaveAttempt(ctx, orderID, attempt); err != nil {
		return nil, o.internal(op, err)
	}

	// Step 3: Finalize transaction
	merchantTransactionID := strconv.FormatInt(orderID, 10)

	collectRes := gw.API.FinalizeTransaction(ctx, smobilpay.CollectRequest{
		QuoteID:               quote.QuoteID,
		CustomerPhoneNumber:   phoneNumber,
		CustomerEmailAddress:  ord.Billing.Email,
		CustomerName:          ord.Billing.LastName,
		CustomerAddress:       ord.Billing.Address1,
		ServiceNumber:         phoneNumber,
		MerchantTransactionID: merchantTransactionID,
	})

	if !collectRes.Success {
		logger.WarnContext(ctx, "collect failed", slog.String("message", collectRes.Message))
		return nil, upstream(op, collectRes, "Payment collection failed: "+messageOrDefault(collectRes))
	}

	var collect smobilpay.CollectResponse
	if err := collectRes.Decode(&collect); err != nil {
		return nil, missing(op, "Could not read the payment collection response")
	}

	status := collect.Status
	if status == "" {
		status = smobilpay.TransactionStatusPending
	}

	trid := collect.TransactionID.String()
	if trid != "" {
		attempt.TransactionID = trid
	}

	if status != smobilpay.TransactionStatusPending {
		attempt.Status = order.AttemptErrored
		if err := o.store.SaveAttempt(ctx, orderID, attempt); err != nil {
			logger.ErrorContext(ctx, "failed to save attempt", slog.Any("error", err))
		}

		return nil, &smobilpay.Error{
			Kind:    smobilpay.KindUnexpectedStatus,
			Op:      op,
			Message: "Unexpected payment status: " + string(status),
		}
	}

	attempt.Status = order.AttemptPending
	if err := o.store.SaveAttempt(ctx, orderID, attempt); err != nil {
		return nil, o.internal(op, err)
	}

	if _, err := o.store.UpdateStatus(ctx, orderID, order.StatusOnHold,
		fmt.Sprintf("Awaiting %s payment confirmation", gw.Title)); err != nil {
		return nil, o.internal(op, err)
	}

	note := fmt.Sprintf("Payment initiated. trid: %s. Waiting for customer to confirm on their phone.", trid)
	if err := o.store.AddNote(ctx, orderID, note); err != nil {
		logger.ErrorContext(ctx, "failed to add order note", slog.Any("error", err))
	}

	if o.cart != nil {
		if err := o.cart.Empty(ctx, orderID); err != nil {
			logger.ErrorContext(ctx, "failed to empty cart", slog.Any("error", err))
		}
	}

	logger.InfoContext(ctx, "payment initiated", slog.String("trid", trid), slog.String("quote_id", quote.QuoteID))

	return &Outcome{Result: "success", TransactionID: trid, Redirect: o.redirect(orderID)}, nil
}

func (o *Orchestrator) redirect(orderID int64) string {
	if strings.Contains(o.returnURL, "%d") {
		return fmt.Sprintf(o.returnURL, orderID)
	}

	return o.returnURL
}

func (o *Orchestrator) internal(op string, err error) error {
	o.logger.Error("checkout failed", slog.String("op", op), slog.Any("error", err))
	return &smobilpay.Error{Op: op, Message: "Payment could not be processed. Please try again.", Err: err}
}

func messageOrDefault(r *smobilpay.Result) string {
	if r.Message == "" {
		return "Unknown error"
	}
	return r.Message
}

// upstream keeps the kind of the API failure so network errors stay distinguishable from HTTP errors.
func upstream(op string, r *smobilpay.Result, message string) error {
	kind := r.Kind()
	if kind == 0 {
		kind = smobilpay.KindUpstreamHTTP
	}

	return &smobilpay.Error{Kind: kind, Op: op, StatusCode: r.StatusCode, Message: message, Err: r.Err}
}

func missing(op, message string) error {
	return &smobilpay.Error{Kind: smobilpay.KindMissingData, Op: op, Message: message}
}
