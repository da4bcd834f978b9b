package db

import (
	"context"

	"relaunch/internal/types"
)

// HistoryRepository appends delivery history. Rows are never updated by
// dispatch; status transitions after Sent belong to other components.
type HistoryRepository struct {
	db DBTX
}

// NewHistoryRepository creates a HistoryRepository.
func NewHistoryRepository(db DBTX) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append inserts entry and fills its generated ID. A zero SentAt lets the
// database default apply.
func (r *HistoryRepository) Append(ctx context.Context, entry *types.HistoryEntry) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO history (prospect_id, template_id, user_id, status, sent_at)
		 VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		 RETURNING id, sent_at`,
		entry.ProspectID,
		nilIfEmpty(entry.TemplateID),
		entry.UserID,
		string(entry.Status),
		nilIfZeroTime(entry.SentAt),
	)
	if err := row.Scan(&entry.ID, &entry.SentAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record history", err)
	}
	return nil
}
