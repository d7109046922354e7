package infra

import "testing"

func TestPoolConfigDefaults(t *testing.T) {
	pc, err := poolConfig(&Config{DatabaseURL: "postgres://u:p@localhost:5432/app", DBMaxConns: 25})
	if err != nil {
		t.Fatalf("poolConfig error: %v", err)
	}
	if pc.MaxConns != 25 {
		t.Fatalf("MaxConns = %d, want 25", pc.MaxConns)
	}
	if pc.MinConns != 1 {
		t.Fatalf("MinConns = %d, want 1", pc.MinConns)
	}
	if got := pc.ConnConfig.RuntimeParams["application_name"]; got != "agencydesk" {
		t.Fatalf("application_name = %q", got)
	}
}

func TestPoolConfigURLWins(t *testing.T) {
	pc, err := poolConfig(&Config{
		DatabaseURL: "postgres://u:p@localhost:5432/app?pool_max_conns=3&application_name=billingctl",
		DBMaxConns:  25,
	})
	if err != nil {
		t.Fatalf("poolConfig error: %v", err)
	}
	if pc.MaxConns != 3 {
		t.Fatalf("MaxConns = %d, want 3 from the url", pc.MaxConns)
	}
	if got := pc.ConnConfig.RuntimeParams["application_name"]; got != "billingctl" {
		t.Fatalf("application_name = %q, want billingctl", got)
	}
	if _, err := poolConfig(nil); err == nil {
		t.Fatalf("nil config should fail")
	}
}
