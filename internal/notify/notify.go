// Package notify fans billing events out to in-app notifications and email.
package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"agencydesk/internal/domain"
)

// Message is a single notification addressed to a user.
type Message struct {
	UserID    string
	Email     string
	ProjectID string
	Type      domain.NotificationType
	Title     string
	Body      string
}

// Sink delivers messages. Implementations must be safe for concurrent use.
type Sink interface {
	Notify(ctx context.Context, msg Message) error
}

// Fanout delivers to every sink and joins the failures.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range f {
		if err := s.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InApp persists messages as notification rows.
type InApp struct {
	Repo domain.NotificationRepository
}

func (s InApp) Notify(ctx context.Context, msg Message) error {
	if msg.UserID == "" {
		return nil
	}
	return s.Repo.Create(ctx, &domain.Notification{
		UserID:    msg.UserID,
		ProjectID: msg.ProjectID,
		Title:     msg.Title,
		Message:   msg.Body,
		Type:      msg.Type,
	})
}

// LogMailer writes outgoing mail to the log instead of an SMTP relay.
type LogMailer struct {
	Logger zerolog.Logger
}

func (m LogMailer) Notify(_ context.Context, msg Message) error {
	if strings.TrimSpace(msg.Email) == "" {
		return nil
	}
	m.Logger.Info().
		Str("to", msg.Email).
		Str("type", string(msg.Type)).
		Str("subject", msg.Title).
		Msg("mail queued")
	return nil
}

// Formatter renders amounts and message bodies for one locale.
type Formatter struct {
	printer *message.Printer
	unit    currency.Unit
}

// NewFormatter builds a formatter for an ISO 4217 code. Unknown codes fall
// back to USD.
func NewFormatter(currencyCode string, tag language.Tag) Formatter {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(currencyCode)))
	if err != nil {
		unit = currency.USD
	}
	return Formatter{printer: message.NewPrinter(tag), unit: unit}
}

// Amount renders m as "USD 500.00".
func (f Formatter) Amount(m domain.Money) string {
	return f.printer.Sprint(currency.ISO(f.unit.Amount(m.InexactFloat64())))
}

// PaymentRequested is sent to a client when an admin asks for payment.
func (f Formatter) PaymentRequested(clientID, email string, project domain.Project, amount domain.Money) Message {
	return Message{
		UserID:    clientID,
		Email:     email,
		ProjectID: project.ID,
		Type:      domain.NotificationPayment,
		Title:     "Payment requested",
		Body:      f.printer.Sprintf("A payment of %s is due for %s.", f.Amount(amount), project.Name),
	}
}

// PaymentReceived is sent to a client after their payment settles.
func (f Formatter) PaymentReceived(clientID, email string, inv domain.Invoice) Message {
	return Message{
		UserID:    clientID,
		Email:     email,
		ProjectID: inv.ProjectID,
		Type:      domain.NotificationPayment,
		Title:     "Payment received",
		Body:      f.printer.Sprintf("Payment of %s received. Invoice %s is available.", f.Amount(inv.Amount), inv.InvoiceNumber),
	}
}

// InvoiceIssued is sent to the admin that owns the invoiced project.
func (f Formatter) InvoiceIssued(adminID string, inv domain.Invoice) Message {
	return Message{
		UserID:    adminID,
		ProjectID: inv.ProjectID,
		Type:      domain.NotificationInvoice,
		Title:     "Invoice issued",
		Body:      f.printer.Sprintf("Invoice %s for %s was issued.", inv.InvoiceNumber, f.Amount(inv.Amount)),
	}
}
