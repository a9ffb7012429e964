// Package notify tells customers about the outcome of their payment by email and WhatsApp.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"math"
	"strings"
	"text/template"

	"github.com/jwambugu/smobilpay-golang-sdk/pkg/gateway"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/order"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/phone"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.tmpl"))

type (
	// Notification is the payment update sent to a customer.
	Notification struct {
		Order *order.Order
		// Message is the localized outcome of the payment.
		Message gateway.Message
		// PaymentMethod is the title of the gateway that handled the payment.
		PaymentMethod string
	}

	// Notifier delivers a Notification over one channel.
	Notifier interface {
		Notify(ctx context.Context, n Notification) error
	}

	templateData struct {
		LogoURL       string
		ID            int64
		FirstName     string
		LastName      string
		Email         string
		PhoneNumber   string
		City          string
		Neighborhood  string
		ProductNames  string
		PaymentMethod string
		ShippingTotal string
		Total         string
		Fr            string
		En            string
	}
)

func newTemplateData(n Notification) templateData {
	o := n.Order

	return templateData{
		ID:            o.ID,
		FirstName:     o.Billing.FirstName,
		LastName:      o.Billing.LastName,
		Email:         o.Billing.Email,
		PhoneNumber:   strings.Join(phone.Extract(o.Billing.Phone), " / "),
		City:          o.Billing.City,
		Neighborhood:  o.Billing.Address1,
		ProductNames:  FormatOrderItems(o.Items),
		PaymentMethod: n.PaymentMethod,
		ShippingTotal: o.ShippingTotal.Round(0).String(),
		Total:         o.Total.Round(0).String(),
		Fr:            n.Message.Fr,
		En:            n.Message.En,
	}
}

func render(name string, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("notify.Render.%s:: %v", name, err)
	}
	return buf.String(), nil
}

// FormatOrderItems renders the product lines as "Name - 1000CFA x 2", separated by a rule of dashes about half
// as long as the line above it.
func FormatOrderItems(items []order.Item) string {
	var b strings.Builder

	for i, item := range items {
		line := fmt.Sprintf("%s - %sCFA x %d", item.Name, item.Subtotal.Truncate(0).String(), item.Quantity)
		b.WriteString(line)
		b.WriteString("\n")

		if i == len(items)-1 {
			break
		}

		if n := int(math.Ceil(float64(len(line))/2 - 3)); n > 0 {
			b.WriteString(strings.Repeat("-", n))
		}
		b.WriteString("\n")
	}

	return b.String()
}
