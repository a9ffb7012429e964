package notify

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
)

var ErrNoRecipient = errors.New("notify: order has no billing email")

// Mailer sends a plain text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends emails through an SMTP relay.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPMailer creates a mailer for the relay at addr. PLAIN auth is used when a username is provided.
func NewSMTPMailer(addr, username, password, from string) *SMTPMailer {
	m := &SMTPMailer{addr: addr, from: from}

	if username != "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		m.auth = smtp.PlainAuth("", username, password, host)
	}

	return m
}

// Send delivers the message. smtp.SendMail does not take a context so ctx is only checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("notify.SMTPMailer.Send:: %v", err)
	}

	return nil
}

// Email notifies the customer at their billing email address.
type Email struct {
	mailer  Mailer
	logoURL string
}

// NewEmail creates an email notifier. logoURL is printed at the top of the message when set.
func NewEmail(mailer Mailer, logoURL string) *Email {
	return &Email{mailer: mailer, logoURL: logoURL}
}

// Subject returns the subject of the payment update email of an order.
func Subject(orderID int64) string {
	return fmt.Sprintf("Order #%d – Payment Update | Mise à jour du paiement – Commande n° %d", orderID, orderID)
}

func (e *Email) Notify(ctx context.Context, n Notification) error {
	to := n.Order.Billing.Email
	if to == "" {
		return ErrNoRecipient
	}

	data := newTemplateData(n)
	data.LogoURL = e.logoURL

	body, err := render("email.tmpl", data)
	if err != nil {
		return err
	}

	return e.mailer.Send(ctx, to, Subject(n.Order.ID), body)
}
