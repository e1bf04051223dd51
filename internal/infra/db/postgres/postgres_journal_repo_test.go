//go:build !integration

package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"tg2fa-relay/internal/domain"
	"tg2fa-relay/internal/domain/model"
	"tg2fa-relay/internal/infra/security"
)

type recordingExecutor struct {
	sql  []string
	args [][]interface{}
	err  error
}

func (r *recordingExecutor) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	r.sql = append(r.sql, sql)
	r.args = append(r.args, args)
	return pgconn.CommandTag("INSERT 0 1"), r.err
}

func (r *recordingExecutor) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func TestJournalRepoAppend(t *testing.T) {
	ctx := context.Background()

	t.Run("should fill id and timestamp and insert", func(t *testing.T) {
		ex := &recordingExecutor{}
		repo := NewJournalRepo(ex)
		e := &model.JournalEntry{Kind: model.JournalDelivery, Ref: "42", ChatTarget: "555", Outcome: "sent"}

		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if e.ID == "" || e.CreatedAt.IsZero() {
			t.Errorf("expected id and timestamp to be set, got %+v", e)
		}
		if len(ex.sql) != 1 || !strings.Contains(ex.sql[0], "INSERT INTO relay_journal") {
			t.Fatalf("unexpected sql %v", ex.sql)
		}
		if ex.args[0][1] != "delivery" || ex.args[0][2] != "42" {
			t.Errorf("unexpected args %v", ex.args[0])
		}
	})

	t.Run("should store the chat target sealed when a sealer is set", func(t *testing.T) {
		ex := &recordingExecutor{}
		sealer, err := security.NewEncryptionService("0123456789abcdef")
		if err != nil {
			t.Fatalf("sealer: %v", err)
		}
		repo := NewJournalRepo(ex).WithSealer(sealer)
		e := &model.JournalEntry{Kind: model.JournalBind, Ref: "abc***", ChatTarget: "555", Outcome: "ok"}

		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		stored, _ := ex.args[0][3].(string)
		if stored == "555" || !strings.HasPrefix(stored, "enc1:") {
			t.Fatalf("expected sealed chat target, got %q", stored)
		}
		if pt, err := sealer.Decrypt(stored); err != nil || pt != "555" {
			t.Errorf("expected stored value to open to 555, got %q (%v)", pt, err)
		}
		if e.ChatTarget != "555" {
			t.Errorf("expected caller entry untouched, got %q", e.ChatTarget)
		}
	})

	t.Run("should reject incomplete entries", func(t *testing.T) {
		repo := NewJournalRepo(&recordingExecutor{})
		if err := repo.Append(ctx, &model.JournalEntry{Kind: model.JournalBind}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if err := repo.Append(ctx, nil); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for nil, got %v", err)
		}
	})

	t.Run("should wrap schema errors", func(t *testing.T) {
		repo := NewJournalRepo(&recordingExecutor{err: errors.New("permission denied")})
		if err := repo.EnsureSchema(ctx); err == nil || !strings.Contains(err.Error(), "ensure journal schema") {
			t.Errorf("unexpected error %v", err)
		}
	})
}
