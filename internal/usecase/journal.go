package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg2fa-relay/internal/domain/model"
	"tg2fa-relay/internal/domain/ports/repository"
)

// recordOutcome appends to the journal when one is configured. Journal
// failures never affect the protocol.
func recordOutcome(ctx context.Context, j repository.JournalRepository, log *zerolog.Logger, kind model.JournalKind, ref, chatTarget, outcome, detail string) {
	if j == nil {
		return
	}
	entry := &model.JournalEntry{
		ID:         uuid.NewString(),
		Kind:       kind,
		Ref:        ref,
		ChatTarget: chatTarget,
		Outcome:    outcome,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	if err := j.Append(ctx, entry); err != nil {
		log.Warn().Err(err).Str("kind", string(kind)).Msg("journal append failed")
	}
}

// maskCode keeps enough of a pairing code to correlate logs without making it reusable.
func maskCode(code string) string {
	if len(code) <= 4 {
		return "***"
	}
	return code[:3] + "***"
}
