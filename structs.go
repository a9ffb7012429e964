package smobilpay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind classifies a failure in the payment flow.
type ErrorKind uint8

const (
	// KindValidation is returned when the input provided by the customer is invalid, e.g. a bad phone number.
	KindValidation ErrorKind = iota + 1

	// KindUpstreamHTTP is returned when Smobilpay responds with a non 2xx status code.
	KindUpstreamHTTP

	// KindNetwork is returned when the request never got a response: timeouts, connection resets or DNS failures.
	KindNetwork

	// KindMissingData is returned when a 2xx response does not carry a field we need.
	KindMissingData

	// KindWebhookAuth is returned when the signature of a webhook delivery does not match.
	KindWebhookAuth

	// KindOrderNotFound is returned when an order referenced by a request does not exist.
	KindOrderNotFound

	// KindUnexpectedStatus is returned when a transaction is in a status we cannot act on.
	KindUnexpectedStatus
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUpstreamHTTP:
		return "upstream_http"
	case KindNetwork:
		return "network"
	case KindMissingData:
		return "missing_data"
	case KindWebhookAuth:
		return "webhook_auth"
	case KindOrderNotFound:
		return "order_not_found"
	case KindUnexpectedStatus:
		return "unexpected_status"
	default:
		return "unknown"
	}
}

type (
	// Credentials are the keys used to sign every request sent to Smobilpay.
	Credentials struct {
		// MerchantKey is the public access token issued by Smobilpay.
		MerchantKey string `json:"merchant_key"`
		// SecretKey is used to compute the HMAC signature and is never sent over the wire.
		SecretKey string `json:"secret_key"`
	}

	// Result is returned by every Client operation. A failed call never returns a Go error, instead Success is
	// false and Err describes what went wrong.
	Result struct {
		// Success is true when Smobilpay responded with a 2xx status code.
		Success bool
		// StatusCode is the HTTP status code of the response. It is 0 for network failures.
		StatusCode int
		// Data is the decoded JSON body of the response, if any.
		Data json.RawMessage
		// Message is a human-readable description of the failure.
		Message string
		// Err is set when Success is false and is always an *Error.
		Err error
	}

	// Error describes a failure in one of the payment flows.
	Error struct {
		Kind       ErrorKind
		Op         string
		StatusCode int
		Message    string
		Err        error
	}
)

// Decode unmarshals the response data into v.
func (r *Result) Decode(v interface{}) error {
	if len(r.Data) == 0 {
		return &Error{Kind: KindMissingData, Op: "smobilpay.Result.Decode", Message: "response has no data"}
	}

	if err := json.Unmarshal(r.Data, v); err != nil {
		return &Error{Kind: KindMissingData, Op: "smobilpay.Result.Decode", Message: "response data is malformed", Err: err}
	}

	return nil
}

// Kind returns the kind of the failure or 0 if the call was successful.
func (r *Result) Kind() ErrorKind {
	var e *Error
	if errors.As(r.Err, &e) {
		return e.Kind
	}
	return 0
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s:: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s:: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, which allows errors.Is(err, &Error{Kind: KindNetwork}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == ""
}

// NewError creates an *Error of the given kind.
func NewError(kind ErrorKind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// KindOf returns the kind of err if it is an *Error, or 0 otherwise.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
