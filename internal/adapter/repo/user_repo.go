package repo

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"agencydesk/internal/domain"
	"agencydesk/internal/infra"
	"agencydesk/internal/sqlinline"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(sql infra.SQLExecutor) *UserRepositoryPG {
	return &UserRepositoryPG{sql: sql}
}

// Create inserts a user. A duplicate email yields domain.ErrEmailTaken.
func (r *UserRepositoryPG) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertUser,
		user.Name,
		strings.TrimSpace(user.Email),
		user.PasswordHash,
		string(user.Role),
		user.CreatedBy,
	)
	u, err := scanUser(row)
	if err != nil {
		if infra.IsUniqueViolation(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, domain.Storage("create user", err)
	}
	return u, nil
}

// GetByID fetches a user by UUID.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, domain.ErrUserNotFound
	}
	u, err := scanUser(r.sql.QueryRow(ctx, sqlinline.QSelectUserByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.Storage("get user", err)
	}
	return u, nil
}

// GetByEmail fetches a user by case-insensitive email.
func (r *UserRepositoryPG) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(r.sql.QueryRow(ctx, sqlinline.QSelectUserByEmail, strings.TrimSpace(email)))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.Storage("get user by email", err)
	}
	return u, nil
}

// SetStripeCustomerID keeps the first customer id written for the user.
func (r *UserRepositoryPG) SetStripeCustomerID(ctx context.Context, userID, customerID string) (string, error) {
	if !validID(userID) {
		return "", domain.ErrUserNotFound
	}
	var stored string
	if err := r.sql.QueryRow(ctx, sqlinline.QSetUserStripeCustomer, userID, customerID).Scan(&stored); err != nil {
		if infra.IsNoRows(err) {
			return "", domain.ErrUserNotFound
		}
		return "", domain.Storage("set stripe customer", err)
	}
	return stored, nil
}

// ApplyPlan updates the denormalized plan fields.
func (r *UserRepositoryPG) ApplyPlan(ctx context.Context, userID string, patch domain.PlanPatch) error {
	if !validID(userID) {
		return domain.ErrUserNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QApplyUserPlan, userID, string(patch.Plan), patch.StripeSubscriptionID, patch.CurrentPeriodEnd)
	if err != nil {
		return domain.Storage("apply user plan", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// SetLoginToken stores the hash of a freshly minted one-time token.
func (r *UserRepositoryPG) SetLoginToken(ctx context.Context, userID, tokenHash string, expiry time.Time) error {
	if !validID(userID) {
		return domain.ErrUserNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QSetUserLoginToken, userID, tokenHash, expiry)
	if err != nil {
		return domain.Storage("set login token", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ConsumeLoginToken clears the token in one statement; only one caller can
// ever observe a given hash.
func (r *UserRepositoryPG) ConsumeLoginToken(ctx context.Context, tokenHash string) (*domain.User, time.Time, error) {
	if tokenHash == "" {
		return nil, time.Time{}, domain.ErrTokenInvalid
	}
	row := r.sql.QueryRow(ctx, sqlinline.QConsumeUserLoginToken, tokenHash)
	var (
		u      domain.User
		expiry *time.Time
	)
	dest := append(userDest(&u), &expiry)
	if err := row.Scan(dest...); err != nil {
		if infra.IsNoRows(err) {
			return nil, time.Time{}, domain.ErrTokenInvalid
		}
		return nil, time.Time{}, domain.Storage("consume login token", err)
	}
	if expiry == nil {
		return &u, time.Time{}, nil
	}
	return &u, *expiry, nil
}

// ClearExpiredLoginTokens drops tokens whose expiry passed.
func (r *UserRepositoryPG) ClearExpiredLoginTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QClearExpiredLoginTokens, now)
	if err != nil {
		return 0, domain.Storage("clear expired login tokens", err)
	}
	return tag.RowsAffected(), nil
}

func userDest(u *domain.User) []any {
	return []any{
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedBy, &u.IsActive,
		&u.StripeCustomerID, &u.StripeSubscriptionID, &u.CurrentPlan,
		&u.SubscriptionCurrentPeriodEnd, &u.LoginTokenHash, &u.LoginTokenExpiry, &u.CreatedAt, &u.UpdatedAt,
	}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(userDest(&u)...); err != nil {
		return nil, err
	}
	return &u, nil
}
