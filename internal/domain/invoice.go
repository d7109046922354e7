package domain

import "time"

// Invoice is the immutable financial record emitted when a payment request
// settles. PaymentRequestID is unique across invoices.
type Invoice struct {
	ID               string
	InvoiceNumber    string
	PaymentRequestID string
	ProjectID        string
	ClientID         string
	AdminID          string
	Amount           Money
	PaidAt           time.Time
	CreatedAt        time.Time
}

// Project is the subset of the project record the billing core reads.
type Project struct {
	ID        string
	Name      string
	ClientID  string
	CreatedBy string
	Price     Money
}

// NotificationType classifies in-app notifications.
type NotificationType string

const (
	NotificationPayment NotificationType = "payment"
	NotificationInvoice NotificationType = "invoice"
)

// Notification is an in-app message for a user.
type Notification struct {
	ID        string
	UserID    string
	ProjectID string
	Title     string
	Message   string
	Type      NotificationType
	IsRead    bool
	CreatedAt time.Time
}
