package repository

import (
	"context"

	"tg2fa-relay/internal/domain/model"
)

// -----------------------------
// Outcome journal
// -----------------------------

type JournalRepository interface {
	// Append records one bind, delivery or decision outcome.
	Append(ctx context.Context, entry *model.JournalEntry) error
	// ListByRef returns entries for a queue id, session id or masked code, newest first.
	ListByRef(ctx context.Context, kind model.JournalKind, ref string, limit int) ([]*model.JournalEntry, error)
}
