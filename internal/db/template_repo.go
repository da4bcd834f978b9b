package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"relaunch/internal/types"
)

const templateColumns = `id, user_id, name, subject, body, stage, created_at`

// TemplateRepository reads follow-up templates. Templates are authored
// elsewhere; dispatch only reads them.
type TemplateRepository struct {
	db DBTX
}

// NewTemplateRepository creates a TemplateRepository.
func NewTemplateRepository(db DBTX) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// FirstByStage returns the user's lowest-stage template, or nil, nil when
// the user has none. Ties on stage are broken by creation time.
func (r *TemplateRepository) FirstByStage(ctx context.Context, userID string) (*types.Template, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+templateColumns+`
		 FROM templates
		 WHERE user_id = $1
		 ORDER BY stage ASC, created_at ASC
		 LIMIT 1`,
		userID,
	)
	t, err := scanTemplate(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load first template", err)
	}
	return t, nil
}

// GetByID returns one of the user's templates, or nil, nil when it does not
// exist or belongs to another user.
func (r *TemplateRepository) GetByID(ctx context.Context, userID, templateID string) (*types.Template, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+templateColumns+`
		 FROM templates
		 WHERE id = $1 AND user_id = $2`,
		templateID, userID,
	)
	t, err := scanTemplate(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load template", err)
	}
	return t, nil
}

// ListByUser returns the user's templates ordered by stage.
func (r *TemplateRepository) ListByUser(ctx context.Context, userID string) ([]types.Template, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+templateColumns+`
		 FROM templates
		 WHERE user_id = $1
		 ORDER BY stage ASC, created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list templates", err)
	}
	defer rows.Close()

	templates := []types.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan template", err)
		}
		templates = append(templates, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate templates", err)
	}
	return templates, nil
}

func scanTemplate(row pgx.Row) (*types.Template, error) {
	var (
		t    types.Template
		name *string
	)
	if err := row.Scan(&t.ID, &t.UserID, &name, &t.Subject, &t.Body, &t.Stage, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Name = derefString(name)
	return &t, nil
}
