package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MetadataKey is the single processor metadata field carrying our side-channel
// payloads. Processor metadata values are flat strings, so the payload is a
// JSON document stored under this key.
const MetadataKey = "agencydesk"

// MetadataVersion is the current payload version. Decoders reject others.
const MetadataVersion = 1

// CheckoutMetadata attributes a checkout session and the subscription it
// creates to a tenant and plan.
type CheckoutMetadata struct {
	V      int    `json:"v"`
	UserID string `json:"user_id"`
	Plan   Plan   `json:"plan"`
}

// PaymentMetadata attributes a payment intent to a payment request.
type PaymentMetadata struct {
	V                int    `json:"v"`
	PaymentRequestID string `json:"payment_request_id"`
	ProjectID        string `json:"project_id"`
}

// NewCheckoutMetadata builds a versioned checkout payload.
func NewCheckoutMetadata(userID string, plan Plan) CheckoutMetadata {
	return CheckoutMetadata{V: MetadataVersion, UserID: userID, Plan: plan}
}

// NewPaymentMetadata builds a versioned payment payload.
func NewPaymentMetadata(paymentRequestID, projectID string) PaymentMetadata {
	return PaymentMetadata{V: MetadataVersion, PaymentRequestID: paymentRequestID, ProjectID: projectID}
}

// Validate checks required fields and version.
func (m CheckoutMetadata) Validate() error {
	if m.V != MetadataVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidMetadata, m.V)
	}
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("%w: user_id missing", ErrInvalidMetadata)
	}
	if _, err := ParsePlan(string(m.Plan)); err != nil {
		return fmt.Errorf("%w: plan %q", ErrInvalidMetadata, m.Plan)
	}
	return nil
}

// Validate checks required fields and version.
func (m PaymentMetadata) Validate() error {
	if m.V != MetadataVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidMetadata, m.V)
	}
	if strings.TrimSpace(m.PaymentRequestID) == "" {
		return fmt.Errorf("%w: payment_request_id missing", ErrInvalidMetadata)
	}
	return nil
}

// Encode serializes the payload into a processor metadata map.
func (m CheckoutMetadata) Encode() map[string]string {
	return encodeMetadata(m)
}

// Encode serializes the payload into a processor metadata map.
func (m PaymentMetadata) Encode() map[string]string {
	return encodeMetadata(m)
}

// DecodeCheckoutMetadata extracts and validates the checkout payload.
func DecodeCheckoutMetadata(md map[string]string) (CheckoutMetadata, error) {
	var out CheckoutMetadata
	if err := decodeMetadata(md, &out); err != nil {
		return CheckoutMetadata{}, err
	}
	out.Plan = Plan(strings.ToLower(strings.TrimSpace(string(out.Plan))))
	if err := out.Validate(); err != nil {
		return CheckoutMetadata{}, err
	}
	return out, nil
}

// DecodePaymentMetadata extracts and validates the payment payload.
func DecodePaymentMetadata(md map[string]string) (PaymentMetadata, error) {
	var out PaymentMetadata
	if err := decodeMetadata(md, &out); err != nil {
		return PaymentMetadata{}, err
	}
	if err := out.Validate(); err != nil {
		return PaymentMetadata{}, err
	}
	return out, nil
}

func encodeMetadata(v any) map[string]string {
	raw, err := json.Marshal(v)
	if err != nil {
		// Both payloads are plain structs of strings and ints.
		panic(fmt.Sprintf("encode metadata: %v", err))
	}
	return map[string]string{MetadataKey: string(raw)}
}

func decodeMetadata(md map[string]string, dst any) error {
	raw, ok := md[MetadataKey]
	if !ok || strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: %s key absent", ErrInvalidMetadata, MetadataKey)
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrInvalidMetadata)
	}
	return nil
}
