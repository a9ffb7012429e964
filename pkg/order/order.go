// Package order models the shop orders a payment is collected for and persists the state of every payment
// attempt so that asynchronous notifications can be reconciled later.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound         = errors.New("order: not found")
	ErrAttemptRegressed = errors.New("order: payment attempt status cannot go backwards")
	ErrConflict         = errors.New("order: too many concurrent updates")
	ErrPaymentStarted   = errors.New("order: payment already started")
)

// Status is the status of an order in the shop.
type Status string

const (
	StatusPending    Status = "pending"
	StatusOnHold     Status = "on-hold"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// IsPaid returns true if the payment of the order has been received.
func (s Status) IsPaid() bool {
	return s == StatusProcessing || s == StatusCompleted
}

// IsTerminal returns true if the payment flow of the order is over. Only the first terminal transition of an
// order takes effect.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}

// AttemptStatus is the progress of a payment attempt through the purchase flow.
type AttemptStatus string

const (
	AttemptNone            AttemptStatus = "NONE"
	AttemptPayableResolved AttemptStatus = "PAYABLE_RESOLVED"
	AttemptQuoted          AttemptStatus = "QUOTED"
	AttemptPending         AttemptStatus = "PENDING"
	AttemptSuccess         AttemptStatus = "SUCCESS"
	AttemptErrored         AttemptStatus = "ERRORED"
)

var attemptRank = map[AttemptStatus]int{
	AttemptNone:            0,
	"":                     0,
	AttemptPayableResolved: 1,
	AttemptQuoted:          2,
	AttemptPending:         3,
	AttemptSuccess:         4,
	AttemptErrored:         4,
}

// IsTerminal returns true for SUCCESS and ERRORED.
func (a AttemptStatus) IsTerminal() bool {
	return a == AttemptSuccess || a == AttemptErrored
}

// CanAdvanceTo reports whether moving from a to next keeps the attempt moving forward.
func (a AttemptStatus) CanAdvanceTo(next AttemptStatus) bool {
	if a.IsTerminal() {
		return a == next
	}
	return attemptRank[next] >= attemptRank[a]
}

type (
	// Billing holds the billing fields of the customer.
	Billing struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
		Address1  string `json:"address_1"`
		City      string `json:"city"`
	}

	// Item is a product line of the order.
	Item struct {
		Name     string          `json:"name"`
		Quantity int             `json:"quantity"`
		Subtotal decimal.Decimal `json:"subtotal"`
	}

	// Note is a free text audit entry.
	Note struct {
		ID        uuid.UUID `json:"id"`
		Body      string    `json:"body"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Attempt is the state of the payment attempt of an order. Each identifier is persisted as soon as the step
	// that produced it succeeds.
	Attempt struct {
		PhoneNumber   string        `json:"phone_number,omitempty"`
		PayableItemID string        `json:"payable_item_id,omitempty"`
		QuoteID       string        `json:"quote_id,omitempty"`
		TransactionID string        `json:"transaction_id,omitempty"`
		Status        AttemptStatus `json:"status"`
	}

	// Order is a shop order paid through Smobilpay.
	Order struct {
		ID            int64           `json:"id"`
		Status        Status          `json:"status"`
		PaymentMethod string          `json:"payment_method"`
		Currency      string          `json:"currency"`
		Total         decimal.Decimal `json:"total"`
		ShippingTotal decimal.Decimal `json:"shipping_total"`
		Billing       Billing         `json:"billing"`
		Items         []Item          `json:"items"`
		Attempt       Attempt         `json:"attempt"`

		// TransactionRef is set once the order has been paid.
		TransactionRef string     `json:"transaction_ref,omitempty"`
		PaidAt         *time.Time `json:"paid_at,omitempty"`
		Notes          []Note     `json:"notes,omitempty"`
	}

	// Store persists orders. Status updates are compare-and-set: concurrent deliveries for the same order
	// result in a single transition.
	Store interface {
		// Get returns the order or ErrNotFound.
		Get(ctx context.Context, id int64) (*Order, error)
		// Put creates or replaces an order.
		Put(ctx context.Context, o *Order) error
		// BeginAttempt replaces the payment attempt of the order with a new one for phoneNumber. It fails with
		// ErrPaymentStarted once the customer has been asked to confirm or the order is past pending.
		BeginAttempt(ctx context.Context, id int64, phoneNumber string) error
		// SaveAttempt persists the payment attempt, failing with ErrAttemptRegressed if its status goes backwards.
		SaveAttempt(ctx context.Context, id int64, a Attempt) error
		// AddNote appends an audit note to the order.
		AddNote(ctx context.Context, id int64, note string) error
		// UpdateStatus moves the order to status. It returns false when the order is already in that status or
		// in a terminal one.
		UpdateStatus(ctx context.Context, id int64, status Status, note string) (bool, error)
		// MarkPaid moves the order to processing and records the transaction reference. It returns false if the
		// order was already in a terminal status.
		MarkPaid(ctx context.Context, id int64, transactionRef, note string) (bool, error)
	}
)

// mutation changes o and reports whether anything changed.
type mutation func(o *Order, now time.Time) (bool, error)

// Clone returns a deep copy of o.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	c.Notes = append([]Note(nil), o.Notes...)

	if o.PaidAt != nil {
		paidAt := *o.PaidAt
		c.PaidAt = &paidAt
	}

	return &c
}

// FullName returns the billing first and last name.
func (o *Order) FullName() string {
	switch {
	case o.Billing.FirstName == "":
		return o.Billing.LastName
	case o.Billing.LastName == "":
		return o.Billing.FirstName
	default:
		return o.Billing.FirstName + " " + o.Billing.LastName
	}
}

func (o *Order) addNote(body string, now time.Time) {
	o.Notes = append(o.Notes, Note{ID: uuid.New(), Body: body, CreatedAt: now})
}

func addNote(body string) mutation {
	return func(o *Order, now time.Time) (bool, error) {
		o.addNote(body, now)
		return true, nil
	}
}

func beginAttempt(phoneNumber string) mutation {
	return func(o *Order, _ time.Time) (bool, error) {
		if o.Status == StatusOnHold || o.Status.IsTerminal() {
			return false, fmt.Errorf("%w: order is %s", ErrPaymentStarted, o.Status)
		}

		// An ERRORED attempt on a pending order comes from checkout itself and can be started over.
		if o.Attempt.Status == AttemptPending || o.Attempt.Status == AttemptSuccess {
			return false, fmt.Errorf("%w: attempt is %s", ErrPaymentStarted, o.Attempt.Status)
		}

		o.Attempt = Attempt{PhoneNumber: phoneNumber, Status: AttemptNone}
		return true, nil
	}
}

func saveAttempt(a Attempt) mutation {
	return func(o *Order, _ time.Time) (bool, error) {
		if !o.Attempt.Status.CanAdvanceTo(a.Status) {
			return false, fmt.Errorf("%w: %s to %s", ErrAttemptRegressed, o.Attempt.Status, a.Status)
		}

		if a.Status == "" {
			a.Status = AttemptNone
		}

		o.Attempt = a
		return true, nil
	}
}

func updateStatus(to Status, note string) mutation {
	return func(o *Order, now time.Time) (bool, error) {
		if o.Status == to || o.Status.IsTerminal() {
			return false, nil
		}

		from := o.Status
		o.Status = to

		if to == StatusFailed && !o.Attempt.Status.IsTerminal() {
			o.Attempt.Status = AttemptErrored
		}

		o.addNote(statusNote(note, from, to), now)
		return true, nil
	}
}

func markPaid(ref, note string) mutation {
	return func(o *Order, now time.Time) (bool, error) {
		if o.Status.IsTerminal() {
			return false, nil
		}

		from := o.Status
		o.Status = StatusProcessing
		o.TransactionRef = ref
		o.PaidAt = &now

		if !o.Attempt.Status.IsTerminal() {
			o.Attempt.Status = AttemptSuccess
		}

		o.addNote(statusNote("", from, StatusProcessing), now)
		if note != "" {
			o.addNote(note, now)
		}

		return true, nil
	}
}

func statusNote(note string, from, to Status) string {
	changed := fmt.Sprintf("Order status changed from %s to %s.", from, to)
	if note == "" {
		return changed
	}
	return note + " " + changed
}
