package repo

import (
	"context"

	"agencydesk/internal/domain"
	"agencydesk/internal/infra"
	"agencydesk/internal/sqlinline"
)

// ProjectRepositoryPG reads projects.
type ProjectRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewProjectRepository creates a new ProjectRepositoryPG.
func NewProjectRepository(sql infra.SQLExecutor) *ProjectRepositoryPG {
	return &ProjectRepositoryPG{sql: sql}
}

// GetByID fetches a project by id.
func (r *ProjectRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	if !validID(id) {
		return nil, domain.ErrProjectNotFound
	}
	var (
		p     domain.Project
		price string
	)
	err := r.sql.QueryRow(ctx, sqlinline.QSelectProjectByID, id).Scan(&p.ID, &p.Name, &p.ClientID, &p.CreatedBy, &price)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, domain.Storage("get project", err)
	}
	if p.Price, err = domain.ParseMoney(price); err != nil {
		return nil, domain.Storage("parse project price", err)
	}
	return &p, nil
}
