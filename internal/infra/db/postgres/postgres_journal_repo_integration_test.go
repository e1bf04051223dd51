//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"tg2fa-relay/internal/domain/model"
	"tg2fa-relay/internal/infra/security"
)

func TestJournalRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewJournalRepo(testPool)

	t.Run("should append and list entries newest first", func(t *testing.T) {
		cleanup(t)
		base := time.Now().UTC().Truncate(time.Millisecond)
		for i, outcome := range []string{"failed", "ok"} {
			e := &model.JournalEntry{
				Kind:       model.JournalDecision,
				Ref:        "sess_abc123",
				ChatTarget: "555",
				Outcome:    outcome,
				CreatedAt:  base.Add(time.Duration(i) * time.Second),
			}
			if err := repo.Append(ctx, e); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
		other := &model.JournalEntry{Kind: model.JournalDelivery, Ref: "sess_abc123", Outcome: "sent"}
		if err := repo.Append(ctx, other); err != nil {
			t.Fatalf("append: %v", err)
		}

		got, err := repo.ListByRef(ctx, model.JournalDecision, "sess_abc123", 10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(got))
		}
		if got[0].Outcome != "ok" || got[1].Outcome != "failed" {
			t.Errorf("expected newest first, got %s, %s", got[0].Outcome, got[1].Outcome)
		}
		if got[0].Kind != model.JournalDecision || got[0].ChatTarget != "555" {
			t.Errorf("unexpected entry %+v", got[0])
		}
	})

	t.Run("should read back sealed chat targets", func(t *testing.T) {
		cleanup(t)
		sealer, err := security.NewEncryptionService("0123456789abcdef")
		if err != nil {
			t.Fatalf("sealer: %v", err)
		}
		sealed := NewJournalRepo(testPool).WithSealer(sealer)
		if err := sealed.Append(ctx, &model.JournalEntry{Kind: model.JournalBind, Ref: "abc***", ChatTarget: "777", Outcome: "ok"}); err != nil {
			t.Fatalf("append: %v", err)
		}
		got, err := sealed.ListByRef(ctx, model.JournalBind, "abc***", 1)
		if err != nil || len(got) != 1 {
			t.Fatalf("list: %v (%d)", err, len(got))
		}
		if got[0].ChatTarget != "777" {
			t.Errorf("expected decrypted chat target, got %q", got[0].ChatTarget)
		}
	})

	t.Run("should apply the schema idempotently", func(t *testing.T) {
		if err := repo.EnsureSchema(ctx); err != nil {
			t.Fatalf("second EnsureSchema: %v", err)
		}
	})
}
