package smobilpay

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Environment is the Smobilpay environment the app talks to.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// IsProduction returns true if the current env is set to production.
func (e Environment) IsProduction() bool {
	return e == EnvironmentProduction
}

// BaseURL returns the S3P API base for the environment.
func (e Environment) BaseURL() string {
	if e.IsProduction() {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

// TransactionStatus is the status of a collection as reported by Smobilpay.
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "PENDING"
	TransactionStatusSuccess  TransactionStatus = "SUCCESS"
	TransactionStatusErrored  TransactionStatus = "ERRORED"
	TransactionStatusUnderway TransactionStatus = "INPROCESS"
)

// Code is an identifier Smobilpay sends either as a JSON string or a JSON number.
type Code string

// UnmarshalJSON accepts both "703108" and 703108.
func (c *Code) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}

	*c = Code(n.String())
	return nil
}

// String returns the code as a string.
func (c Code) String() string {
	return string(c)
}

type (
	// PayableItem is a cashout service item returned by GET /cashout.
	PayableItem struct {
		// PayItemID is the identifier to quote against. Example: S-112-951-MTNMOMO-20053-200040001-1
		PayItemID string `json:"payItemId"`

		// ServiceID is the service code the item was resolved from.
		ServiceID Code `json:"serviceid,omitempty"`

		// Merchant is the merchant code of the service, e.g. MTNMOMO.
		Merchant string `json:"merchant,omitempty"`

		// AmountType is either FIXED or CUSTOM.
		AmountType string `json:"amountType,omitempty"`

		// Name of the payable item.
		Name string `json:"name,omitempty"`
	}

	// QuoteRequest is the body of POST /quotestd.
	QuoteRequest struct {
		// PayItemID is the PayableItem.PayItemID to be quoted.
		PayItemID string `json:"payItemId"`

		// Amount in whole currency units. Fractions are not supported by the provider.
		Amount int64 `json:"amount"`
	}

	// Quote is a provisional reservation returned by POST /quotestd.
	Quote struct {
		// QuoteID is used to collect the payment.
		QuoteID string `json:"quoteId"`

		ExpiresAt      string  `json:"expiresAt,omitempty"`
		PayItemID      string  `json:"payItemId,omitempty"`
		AmountLocalCur float64 `json:"amountLocalCur,omitempty"`
		PriceLocalCur  float64 `json:"priceLocalCur,omitempty"`
		PriceSystemCur float64 `json:"priceSystemCur,omitempty"`
		LocalCur       string  `json:"localCur,omitempty"`
		SystemCur      string  `json:"systemCur,omitempty"`
	}

	// CollectRequest is the body of POST /collectstd.
	CollectRequest struct {
		// QuoteID returned by InitiateTransaction.
		QuoteID string `json:"quoteId"`

		// CustomerPhoneNumber in the format 237XXXXXXXXX.
		CustomerPhoneNumber string `json:"customerPhonenumber"`

		CustomerEmailAddress string `json:"customerEmailaddress"`
		CustomerName         string `json:"customerName"`
		CustomerAddress      string `json:"customerAddress"`

		// ServiceNumber is the mobile money account to be debited.
		ServiceNumber string `json:"serviceNumber"`

		// MerchantTransactionID correlates the collection with the order.
		MerchantTransactionID string `json:"trid"`
	}

	// CollectResponse is returned by POST /collectstd.
	CollectResponse struct {
		// PTN is the payment transaction number assigned by Smobilpay.
		PTN string `json:"ptn,omitempty"`

		// TransactionID is the merchant transaction id echoed back.
		TransactionID Code `json:"trid,omitempty"`

		Timestamp string `json:"timestamp,omitempty"`

		// Status of the collection. PENDING means the customer has to confirm on their phone.
		Status TransactionStatus `json:"status,omitempty"`

		ReceiptNumber  string  `json:"receiptNumber,omitempty"`
		VeriCode       string  `json:"veriCode,omitempty"`
		ClearingDate   string  `json:"clearingDate,omitempty"`
		PriceLocalCur  float64 `json:"priceLocalCur,omitempty"`
		PriceSystemCur float64 `json:"priceSystemCur,omitempty"`
		PayItemID      string  `json:"payItemId,omitempty"`
	}

	// Transaction is an element of the array returned by GET /verifytx.
	Transaction struct {
		PTN           string            `json:"ptn,omitempty"`
		TransactionID Code              `json:"trid,omitempty"`
		Timestamp     string            `json:"timestamp,omitempty"`
		Status        TransactionStatus `json:"status"`
		ErrorCode     Code              `json:"errorCode,omitempty"`
		ReceiptNumber string            `json:"receiptNumber,omitempty"`
		PayItemID     string            `json:"payItemId,omitempty"`
	}

	// apiError is the body Smobilpay sends with non 2xx responses.
	apiError struct {
		RespCode  Code   `json:"respCode,omitempty"`
		ErrorCode Code   `json:"errorCode,omitempty"`
		Message   string `json:"message,omitempty"`
	}
)

// params returns the body parameters the way they are signed.
func (q QuoteRequest) params() map[string]string {
	return map[string]string{
		"payItemId": q.PayItemID,
		"amount":    strconv.FormatInt(q.Amount, 10),
	}
}

func (c CollectRequest) params() map[string]string {
	return map[string]string{
		"quoteId":              c.QuoteID,
		"customerPhonenumber":  c.CustomerPhoneNumber,
		"customerEmailaddress": c.CustomerEmailAddress,
		"customerName":         c.CustomerName,
		"customerAddress":      c.CustomerAddress,
		"serviceNumber":        c.ServiceNumber,
		"trid":                 c.MerchantTransactionID,
	}
}
