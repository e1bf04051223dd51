package telegram

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"tg2fa-relay/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter implements adapter.TelegramBotAdapter for local/dev testing.
// It logs messages instead of sending real Telegram messages.
type NoopBotAdapter struct {
	log    *zerolog.Logger
	delay  time.Duration
	nextID atomic.Int64
}

// NewNoopBotAdapter constructs the noop adapter.
func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	compLog := logger.With().Str("component", "NoopBot").Logger()
	return &NoopBotAdapter{log: &compLog, delay: 100 * time.Millisecond}
}

// SendMessage logs the message and simulates small delay.
func (b *NoopBotAdapter) SendMessage(ctx context.Context, params adapter.SendMessageParams) (int, error) {
	if err := b.wait(ctx); err != nil {
		return 0, err
	}
	if _, err := parseChatTarget(params.ChatTarget); err != nil {
		return 0, err
	}
	id := int(b.nextID.Add(1))
	b.log.Info().
		Str("chat", params.ChatTarget).
		Int("message_id", id).
		Str("text", params.Text).
		Interface("buttons", params.Rows).
		Msg("[noop-telegram] send")
	return id, nil
}

func (b *NoopBotAdapter) EditMessage(ctx context.Context, params adapter.EditMessageParams) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.log.Info().Str("chat", params.ChatTarget).Int("message_id", params.MessageID).Str("text", params.Text).Msg("[noop-telegram] edit")
	return nil
}

func (b *NoopBotAdapter) AnswerCallback(ctx context.Context, params adapter.AnswerCallbackParams) error {
	b.log.Info().Str("callback_id", params.CallbackID).Str("text", params.Text).Bool("alert", params.Alert).Msg("[noop-telegram] answer")
	return nil
}

// Simulate slight processing time and respect ctx
func (b *NoopBotAdapter) wait(ctx context.Context) error {
	select {
	case <-time.After(b.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
