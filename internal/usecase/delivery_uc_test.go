//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tg2fa-relay/internal/domain"
	"tg2fa-relay/internal/domain/model"
	"tg2fa-relay/internal/domain/ports/adapter"
	"tg2fa-relay/internal/usecase"
)

func pending(id, chat, session string) model.PendingApproval {
	return model.PendingApproval{
		ID:         model.FlexString(id),
		ChatTarget: model.FlexString(chat),
		SessionID:  session,
		Context:    model.LoginContext{IP: "203.0.113.7", When: "2026-10-18 09:00"},
	}
}

func TestDeliveryUseCase(t *testing.T) {
	ctx := context.Background()
	tr := newTestTranslator()

	t.Run("should send the approval request and mark it sent", func(t *testing.T) {
		// --- Arrange ---
		backend := &MockBackend{}
		bot := &MockTelegramBot{}
		journal := &MockJournal{}
		uc := usecase.NewDeliveryUseCase(backend, bot, journal, tr, newTestLogger())

		// --- Act ---
		res, err := uc.Deliver(ctx, pending("42", "555", "sess_abc123"))

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Status != model.DeliverySent || !res.Reported {
			t.Errorf("unexpected result %+v", res)
		}
		if len(bot.Sent) != 1 {
			t.Fatalf("expected one message, got %d", len(bot.Sent))
		}
		msg := bot.Sent[0]
		if msg.ChatTarget != "555" {
			t.Errorf("wrong recipient %q", msg.ChatTarget)
		}
		if !strings.Contains(msg.Text, "203.0.113.7") || !strings.Contains(msg.Text, "2026-10-18 09:00") {
			t.Errorf("login context missing from %q", msg.Text)
		}
		if !strings.Contains(msg.Text, tr.T("approval_session", "sess_abc")) || strings.Contains(msg.Text, "sess_abc123") {
			t.Errorf("expected a short session reference in %q", msg.Text)
		}
		if len(msg.Rows) != 1 || len(msg.Rows[0]) != 2 {
			t.Fatalf("expected one row of two buttons, got %+v", msg.Rows)
		}
		if msg.Rows[0][0].Data != "2fa:approve:sess_abc123" || msg.Rows[0][1].Data != "2fa:deny:sess_abc123" {
			t.Errorf("unexpected button data %+v", msg.Rows[0])
		}
		want := model.DeliveryOutcome{ID: "42", Status: model.DeliverySent}
		if len(backend.Marks) != 1 || backend.Marks[0] != want {
			t.Errorf("expected exactly one sent mark, got %+v", backend.Marks)
		}
		if len(journal.Entries) != 1 || journal.Entries[0].Ref != "42" {
			t.Errorf("unexpected journal %+v", journal.Entries)
		}
	})

	t.Run("should mark error with a diagnostic when the send fails", func(t *testing.T) {
		backend := &MockBackend{}
		bot := &MockTelegramBot{SendMessageFunc: func(ctx context.Context, p adapter.SendMessageParams) (int, error) {
			return 0, errors.New("Forbidden: bot was blocked by the user")
		}}
		uc := usecase.NewDeliveryUseCase(backend, bot, nil, tr, newTestLogger())

		res, err := uc.Deliver(ctx, pending("7", "555", "sess_abc123"))

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Status != model.DeliveryError {
			t.Errorf("expected error status, got %s", res.Status)
		}
		if len(backend.Marks) != 1 {
			t.Fatalf("expected exactly one mark, got %d", len(backend.Marks))
		}
		m := backend.Marks[0]
		if m.Status != model.DeliveryError || !strings.Contains(m.ErrorText, "blocked") {
			t.Errorf("unexpected mark %+v", m)
		}
	})

	t.Run("should not send to an item without a chat target", func(t *testing.T) {
		backend := &MockBackend{}
		bot := &MockTelegramBot{}
		uc := usecase.NewDeliveryUseCase(backend, bot, nil, tr, newTestLogger())

		res, _ := uc.Deliver(ctx, pending("8", "", "sess_abc123"))

		if len(bot.Sent) != 0 {
			t.Error("expected no message")
		}
		if res.Status != model.DeliveryError || len(backend.Marks) != 1 || backend.Marks[0].ErrorText == "" {
			t.Errorf("expected one error mark with diagnostic, got %+v", backend.Marks)
		}
	})

	t.Run("should not send an item with a malformed session id", func(t *testing.T) {
		for _, sid := range []string{"", "short", "has space 123", strings.Repeat("a", 129)} {
			backend := &MockBackend{}
			bot := &MockTelegramBot{}
			uc := usecase.NewDeliveryUseCase(backend, bot, nil, tr, newTestLogger())

			_, _ = uc.Deliver(ctx, pending("9", "555", sid))

			if len(bot.Sent) != 0 {
				t.Errorf("%q: expected no message", sid)
			}
			if len(backend.Marks) != 1 || backend.Marks[0].Status != model.DeliveryError {
				t.Errorf("%q: expected one error mark, got %+v", sid, backend.Marks)
			}
		}
	})

	t.Run("should skip items without an id", func(t *testing.T) {
		backend := &MockBackend{}
		bot := &MockTelegramBot{}
		uc := usecase.NewDeliveryUseCase(backend, bot, nil, tr, newTestLogger())

		_, err := uc.Deliver(ctx, pending("", "555", "sess_abc123"))

		if !errors.Is(err, domain.ErrMissingQueueID) {
			t.Errorf("expected ErrMissingQueueID, got %v", err)
		}
		if len(bot.Sent) != 0 || len(backend.Marks) != 0 {
			t.Error("expected neither a message nor a mark")
		}
	})

	t.Run("should survive a failed mark without resending", func(t *testing.T) {
		backend := &MockBackend{MarkFunc: func(ctx context.Context, o model.DeliveryOutcome) error {
			return &domain.TransportError{Op: "mark", StatusCode: 500}
		}}
		bot := &MockTelegramBot{}
		uc := usecase.NewDeliveryUseCase(backend, bot, nil, tr, newTestLogger())

		res, err := uc.Deliver(ctx, pending("10", "555", "sess_abc123"))

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Reported {
			t.Error("expected report to be flagged as failed")
		}
		if len(bot.Sent) != 1 || len(backend.Marks) != 1 {
			t.Errorf("expected one send and one mark, got %d/%d", len(bot.Sent), len(backend.Marks))
		}
	})
}
