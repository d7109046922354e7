package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agencydesk/internal/domain"
)

func TestWithinTxRollsBack(t *testing.T) {
	s := NewStore()
	client := s.PutUser(domain.User{Email: "c@example.com", Role: domain.UserRoleClient})
	project := s.PutProject(domain.Project{ClientID: client.ID, Price: domain.MoneyFromInt(10)})
	ctx := context.Background()
	res, err := s.PaymentRequests().GetOrCreateForProject(ctx, project.ID, client.ID, project.Price)
	if err != nil {
		t.Fatalf("GetOrCreateForProject error: %v", err)
	}

	boom := errors.New("boom")
	err = s.WithinTx(ctx, func(tx domain.Store) error {
		if _, err := tx.PaymentRequests().MarkPaid(ctx, res.Row.ID, time.Now()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx err = %v, want boom", err)
	}
	pr, err := s.PaymentRequests().GetByID(ctx, res.Row.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if pr.Status != domain.PaymentNone {
		t.Fatalf("status = %q after rollback, want none", pr.Status)
	}
}

func TestFailNextReturnsStorageError(t *testing.T) {
	s := NewStore()
	s.FailNext("invoices.Create", errors.New("disk full"))
	_, err := s.Invoices().Create(context.Background(), &domain.Invoice{PaymentRequestID: "pr"})
	if !domain.IsStorage(err) {
		t.Fatalf("err = %v, want StorageError", err)
	}
	if _, err := s.Invoices().Create(context.Background(), &domain.Invoice{PaymentRequestID: "pr"}); err != nil {
		t.Fatalf("failure should fire once, got %v", err)
	}
}

func TestMarkPaidConcurrentSingleWinner(t *testing.T) {
	s := NewStore()
	client := s.PutUser(domain.User{Email: "c@example.com", Role: domain.UserRoleClient})
	project := s.PutProject(domain.Project{ClientID: client.ID, Price: domain.MoneyFromInt(10)})
	ctx := context.Background()
	res, _ := s.PaymentRequests().GetOrCreateForProject(ctx, project.ID, client.ID, project.Price)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.PaymentRequests().MarkPaid(ctx, res.Row.ID, time.Now())
			if err != nil {
				t.Errorf("MarkPaid error: %v", err)
				return
			}
			if out.Changed() {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if changed != 1 {
		t.Fatalf("changed = %d, want exactly 1", changed)
	}
}

func TestUpsertByUserRequiresUser(t *testing.T) {
	s := NewStore()
	_, err := s.Subscriptions().UpsertByUser(context.Background(), "missing", domain.SubscriptionPatch{Status: domain.SubscriptionActive})
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestConsumeLoginTokenOnce(t *testing.T) {
	s := NewStore()
	u := s.PutUser(domain.User{Email: "a@example.com", Role: domain.UserRoleAdmin})
	ctx := context.Background()
	expiry := time.Now().Add(time.Minute)
	if err := s.Users().SetLoginToken(ctx, u.ID, "h1", expiry); err != nil {
		t.Fatalf("SetLoginToken error: %v", err)
	}
	if _, got, err := s.Users().ConsumeLoginToken(ctx, "h1"); err != nil || !got.Equal(expiry) {
		t.Fatalf("first consume = %v, %v", got, err)
	}
	if _, _, err := s.Users().ConsumeLoginToken(ctx, "h1"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("second consume err = %v, want ErrTokenInvalid", err)
	}
}

func TestClaimSessionRollsBackWithTx(t *testing.T) {
	s := NewStore()
	u := s.PutUser(domain.User{Email: "a@example.com", Role: domain.UserRoleAdmin})
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx domain.Store) error {
		if ok, err := tx.Checkouts().ClaimSession(ctx, "cs_1", u.ID, at); err != nil || !ok {
			t.Fatalf("claim inside tx = %v, %v", ok, err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx err = %v, want boom", err)
	}
	ok, err := s.Checkouts().ClaimSession(ctx, "cs_1", u.ID, at)
	if err != nil || !ok {
		t.Fatalf("claim after rollback = %v, %v; want true", ok, err)
	}
	if ok, _ := s.Checkouts().ClaimSession(ctx, "cs_1", u.ID, at); ok {
		t.Fatalf("second claim should report false")
	}
}
