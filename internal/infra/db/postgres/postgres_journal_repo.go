package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"tg2fa-relay/internal/domain"
	"tg2fa-relay/internal/domain/model"
	"tg2fa-relay/internal/domain/ports/repository"
)

var _ repository.JournalRepository = (*journalRepo)(nil)

// Schema is applied by EnsureSchema at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS relay_journal (
    id          UUID PRIMARY KEY,
    kind        TEXT NOT NULL,
    ref         TEXT NOT NULL,
    chat_target TEXT NOT NULL DEFAULT '',
    outcome     TEXT NOT NULL,
    detail      TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS relay_journal_kind_ref_idx ON relay_journal (kind, ref, created_at DESC);`

type executor interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Sealer encrypts personal fields before they are stored.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(sealed string) (string, error)
}

type journalRepo struct {
	db     executor
	sealer Sealer
}

// NewJournalRepo accepts a *pgxpool.Pool, a pgx.Tx or a *pgx.Conn.
func NewJournalRepo(db executor) *journalRepo {
	return &journalRepo{db: db}
}

// WithSealer stores chat targets encrypted.
func (r *journalRepo) WithSealer(s Sealer) *journalRepo {
	r.sealer = s
	return r
}

func (r *journalRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure journal schema: %w", err)
	}
	return nil
}

func (r *journalRepo) Append(ctx context.Context, e *model.JournalEntry) error {
	if e == nil || e.Kind == "" || e.Ref == "" {
		return domain.ErrInvalidArgument
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	target := e.ChatTarget
	if r.sealer != nil {
		sealed, err := r.sealer.Encrypt(target)
		if err != nil {
			return fmt.Errorf("seal chat target: %w", err)
		}
		target = sealed
	}
	const q = `
INSERT INTO relay_journal (id, kind, ref, chat_target, outcome, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, q, e.ID, string(e.Kind), e.Ref, target, e.Outcome, e.Detail, e.CreatedAt)
	return err
}

// ListByRef returns the newest entries first.
func (r *journalRepo) ListByRef(ctx context.Context, kind model.JournalKind, ref string, limit int) ([]*model.JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id::text, kind, ref, chat_target, outcome, detail, created_at
FROM relay_journal
WHERE kind = $1 AND ref = $2
ORDER BY created_at DESC
LIMIT $3`
	rows, err := r.db.Query(ctx, q, string(kind), ref, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.JournalEntry
	for rows.Next() {
		var (
			e model.JournalEntry
			k string
		)
		if err := rows.Scan(&e.ID, &k, &e.Ref, &e.ChatTarget, &e.Outcome, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = model.JournalKind(k)
		if r.sealer != nil {
			pt, err := r.sealer.Decrypt(e.ChatTarget)
			if err != nil {
				return nil, fmt.Errorf("open chat target of %s: %w", e.ID, err)
			}
			e.ChatTarget = pt
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
