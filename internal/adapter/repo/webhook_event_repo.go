package repo

import (
	"context"

	"agencydesk/internal/domain"
	"agencydesk/internal/infra"
	"agencydesk/internal/sqlinline"
)

// WebhookEventRepositoryPG records processed processor events.
type WebhookEventRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewWebhookEventRepository creates a new WebhookEventRepositoryPG.
func NewWebhookEventRepository(sql infra.SQLExecutor) *WebhookEventRepositoryPG {
	return &WebhookEventRepositoryPG{sql: sql}
}

func (r *WebhookEventRepositoryPG) Seen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	var seen bool
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectWebhookEventSeen, eventID).Scan(&seen); err != nil {
		return false, domain.Storage("webhook event seen", err)
	}
	return seen, nil
}

func (r *WebhookEventRepositoryPG) Record(ctx context.Context, eventID, eventType, outcome string) error {
	if eventID == "" {
		return nil
	}
	if _, err := r.sql.Exec(ctx, sqlinline.QInsertWebhookEvent, eventID, eventType, outcome); err != nil {
		return domain.Storage("record webhook event", err)
	}
	return nil
}
