package domain

import "testing"

func TestPaymentStatusCanAdvanceTo(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentNone, PaymentRequested, true},
		{PaymentNone, PaymentPaid, true},
		{PaymentRequested, PaymentRequested, true},
		{PaymentRequested, PaymentPaid, true},
		{PaymentRequested, PaymentNone, false},
		{PaymentPaid, PaymentPaid, false},
		{PaymentPaid, PaymentRequested, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanAdvanceTo(tc.to); got != tc.want {
			t.Fatalf("%q -> %q = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestUpsertResultChanged(t *testing.T) {
	if !(UpsertResult[PaymentRequest]{Outcome: OutcomeCreated}).Changed() {
		t.Fatalf("created should report changed")
	}
	if !(UpsertResult[PaymentRequest]{Outcome: OutcomeUpdated}).Changed() {
		t.Fatalf("updated should report changed")
	}
	if (UpsertResult[PaymentRequest]{Outcome: OutcomeUnchanged}).Changed() {
		t.Fatalf("unchanged should not report changed")
	}
}

func TestMoneyMinorUnits(t *testing.T) {
	cases := map[string]int64{
		"500":    50000,
		"19.99":  1999,
		"0.005":  1,
		"12.344": 1234,
		"0":      0,
	}
	for in, want := range cases {
		m, err := ParseMoney(in)
		if err != nil {
			t.Fatalf("ParseMoney(%q) error: %v", in, err)
		}
		if got := m.MinorUnits(); got != want {
			t.Fatalf("MinorUnits(%q) = %d, want %d", in, got, want)
		}
	}
	if got := MoneyFromMinor(50000); !got.Equal(MoneyFromInt(500).Decimal) {
		t.Fatalf("MoneyFromMinor(50000) = %s, want 500", got)
	}
	if MoneyFromInt(0).Positive() {
		t.Fatalf("zero should not be positive")
	}
}
