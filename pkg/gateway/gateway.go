// Package gateway describes the payment methods collected through Smobilpay.
package gateway

import (
	"context"
	"sort"

	"github.com/jwambugu/smobilpay-golang-sdk"
)

// Method identifies a payment method. The set is closed: MTN Mobile Money and Orange Money.
type Method string

const (
	MTNMoMo     Method = "mtn_momo"
	OrangeMoney Method = "orange_money"
)

// Valid returns true for the supported methods.
func (m Method) Valid() bool {
	return m == MTNMoMo || m == OrangeMoney
}

// API is the capability every payment method relies on. *smobilpay.Smobilpay satisfies it.
type API interface {
	GetPayableItem(ctx context.Context, serviceCode string) *smobilpay.Result
	InitiateTransaction(ctx context.Context, q smobilpay.QuoteRequest) *smobilpay.Result
	FinalizeTransaction(ctx context.Context, c smobilpay.CollectRequest) *smobilpay.Result
	VerifyTransaction(ctx context.Context, transactionID string) *smobilpay.Result
}

var _ API = (*smobilpay.Smobilpay)(nil)

// Gateway is a configured payment method.
type Gateway struct {
	Method Method
	// Title is shown to customers and in notifications.
	Title string
	// PaymentItem is the Smobilpay service code, e.g. 20053.
	PaymentItem string
	API         API
	Messages    Messages
}

// New creates a gateway for a supported method with its default message table.
func New(method Method, title, paymentItem string, api API) *Gateway {
	return &Gateway{
		Method:      method,
		Title:       title,
		PaymentItem: paymentItem,
		API:         api,
		Messages:    DefaultMessages(method),
	}
}

// FailureMessage returns the localized message for the error code of a failed payment, falling back to the
// generic failure of the method.
func (g *Gateway) FailureMessage(code string) Message {
	return g.Messages.Failure(code)
}

// Registry maps payment method identifiers to their gateway.
type Registry struct {
	gateways map[Method]*Gateway
}

// NewRegistry creates a registry holding gws. Gateways without an API are not registered.
func NewRegistry(gws ...*Gateway) *Registry {
	r := &Registry{gateways: make(map[Method]*Gateway, len(gws))}

	for _, g := range gws {
		if g == nil || g.API == nil || !g.Method.Valid() {
			continue
		}
		r.gateways[g.Method] = g
	}

	return r
}

// Lookup returns the gateway for the payment method of an order.
func (r *Registry) Lookup(paymentMethod string) (*Gateway, bool) {
	g, ok := r.gateways[Method(paymentMethod)]
	return g, ok
}

// Methods returns the registered methods sorted by name.
func (r *Registry) Methods() []Method {
	methods := make([]Method, 0, len(r.gateways))
	for m := range r.gateways {
		methods = append(methods, m)
	}

	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	return methods
}
