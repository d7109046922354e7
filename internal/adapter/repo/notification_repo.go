package repo

import (
	"context"

	"agencydesk/internal/domain"
	"agencydesk/internal/infra"
	"agencydesk/internal/sqlinline"
)

// NotificationRepositoryPG stores in-app notifications.
type NotificationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewNotificationRepository creates a new NotificationRepositoryPG.
func NewNotificationRepository(sql infra.SQLExecutor) *NotificationRepositoryPG {
	return &NotificationRepositoryPG{sql: sql}
}

func (r *NotificationRepositoryPG) Create(ctx context.Context, n *domain.Notification) error {
	if !validID(n.UserID) {
		return domain.ErrUserNotFound
	}
	err := r.sql.QueryRow(ctx, sqlinline.QInsertNotification,
		n.UserID, n.ProjectID, n.Title, n.Message, string(n.Type),
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return domain.Storage("insert notification", err)
	}
	return nil
}

func (r *NotificationRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if !validID(userID) {
		return []domain.Notification{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListNotificationsByUser, userID, limit)
	if err != nil {
		return nil, domain.Storage("list notifications", err)
	}
	defer rows.Close()

	out := make([]domain.Notification, 0)
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.ProjectID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, domain.Storage("scan notification", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("list notifications", err)
	}
	return out, nil
}
