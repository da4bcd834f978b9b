package db

import (
	"context"

	"relaunch/internal/types"
)

// ProspectRepository reads a user's prospects. The order is stable (creation
// time, then id) so single-mode selection is deterministic.
type ProspectRepository struct {
	db DBTX
}

// NewProspectRepository creates a ProspectRepository.
func NewProspectRepository(db DBTX) *ProspectRepository {
	return &ProspectRepository{db: db}
}

// ListByUser returns every prospect owned by userID, eligible or not.
func (r *ProspectRepository) ListByUser(ctx context.Context, userID string) ([]types.Recipient, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, email, name, project, company, status
		 FROM prospects
		 WHERE user_id = $1
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list prospects", err)
	}
	defer rows.Close()

	var out []types.Recipient
	for rows.Next() {
		var p types.Recipient
		var email, name, project, company, status *string
		if err := rows.Scan(&p.ID, &p.UserID, &email, &name, &project, &company, &status); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan prospect", err)
		}
		p.Email = derefString(email)
		p.Name = derefString(name)
		p.Project = derefString(project)
		p.Company = derefString(company)
		p.Status = derefString(status)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate prospects", err)
	}
	return out, nil
}
