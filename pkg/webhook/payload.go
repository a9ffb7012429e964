package webhook

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jwambugu/smobilpay-golang-sdk"
)

// Notification is a parsed webhook delivery. It only lives for the duration of the request.
type Notification struct {
	// OrderID is read from "trid", or from "id" when "trid" is absent.
	OrderID   int64
	Status    string
	ErrorCode string
	// Body is the compacted JSON body, recorded on the order for auditing.
	Body string
}

// ParseNotification decodes a delivery body. Both string and numeric identifiers are accepted.
func ParseNotification(raw []byte) (*Notification, error) {
	const op = "webhook.ParseNotification"

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &smobilpay.Error{Kind: smobilpay.KindValidation, Op: op, Message: "Invalid webhook data", Err: err}
	}

	id, ok := present(fields, "trid")
	if !ok {
		id, ok = present(fields, "id")
	}

	if !ok {
		return nil, smobilpay.NewError(smobilpay.KindValidation, op, "Invalid webhook data")
	}

	orderID, err := parseID(id)
	if err != nil {
		return nil, &smobilpay.Error{Kind: smobilpay.KindValidation, Op: op, Message: "Invalid order id", Err: err}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, &smobilpay.Error{Kind: smobilpay.KindValidation, Op: op, Message: "Invalid webhook data", Err: err}
	}

	n := &Notification{OrderID: orderID, Body: compact.String()}

	if v, ok := present(fields, "status"); ok {
		var status smobilpay.Code
		if json.Unmarshal(v, &status) == nil {
			n.Status = status.String()
		}
	}

	if v, ok := present(fields, "errorCode"); ok {
		var code smobilpay.Code
		if json.Unmarshal(v, &code) == nil {
			n.ErrorCode = code.String()
		}
	}

	return n, nil
}

// present returns the value of key unless it is missing or null.
func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	v, ok := fields[key]
	if !ok || len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

func parseID(v json.RawMessage) (int64, error) {
	var code smobilpay.Code
	if err := json.Unmarshal(v, &code); err != nil {
		return 0, err
	}

	return strconv.ParseInt(strings.TrimSpace(code.String()), 10, 64)
}
