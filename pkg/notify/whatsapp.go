package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jwambugu/smobilpay-golang-sdk"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/phone"
)

// WhatsAppTimeout bounds a single message delivery.
const WhatsAppTimeout = 20 * time.Second

var ErrNoPhoneNumber = errors.New("notify: order has no billing phone number")

type whatsAppRequest struct {
	PhoneNo string `json:"phone_no"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

// WhatsApp sends the notification through a WhatsApp messaging API to every number of the billing phone field.
type WhatsApp struct {
	client   smobilpay.HttpClient
	endpoint string
	apiKey   string
}

// NewWhatsApp creates a WhatsApp notifier posting to endpoint.
func NewWhatsApp(c smobilpay.HttpClient, endpoint, apiKey string) *WhatsApp {
	if c == nil {
		c = &http.Client{Timeout: WhatsAppTimeout}
	}

	return &WhatsApp{client: c, endpoint: endpoint, apiKey: apiKey}
}

func (w *WhatsApp) Notify(ctx context.Context, n Notification) error {
	numbers := phone.Extract(n.Order.Billing.Phone)
	if len(numbers) == 0 {
		return ErrNoPhoneNumber
	}

	message, err := render("whatsapp.tmpl", newTemplateData(n))
	if err != nil {
		return err
	}

	var errs []error
	for _, number := range numbers {
		if err := w.send(ctx, number, message); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (w *WhatsApp) send(ctx context.Context, number, message string) error {
	ctx, cancel := context.WithTimeout(ctx, WhatsAppTimeout)
	defer cancel()

	body, err := json.Marshal(whatsAppRequest{PhoneNo: number, Key: w.apiKey, Message: message})
	if err != nil {
		return fmt.Errorf("notify.WhatsApp.MarshalBody:: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify.WhatsApp.NewRequest:: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify.WhatsApp.Send:: %v", err)
	}

	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notify.WhatsApp.Send:: %s returned %d: %s", number, resp.StatusCode, raw)
	}

	return nil
}
