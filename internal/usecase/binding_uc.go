package usecase

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"tg2fa-relay/internal/domain"
	"tg2fa-relay/internal/domain/model"
	"tg2fa-relay/internal/domain/ports/adapter"
	"tg2fa-relay/internal/domain/ports/repository"
	"tg2fa-relay/internal/infra/i18n"
	"tg2fa-relay/internal/infra/logging"
	"tg2fa-relay/internal/infra/metrics"
)

// Compile-time check
var _ BindingUseCase = (*bindingUC)(nil)

type BindOutcome string

const (
	BindReady    BindOutcome = "ready"
	BindOK       BindOutcome = "ok"
	BindInvalid  BindOutcome = "invalid"
	BindRejected BindOutcome = "rejected"
	BindFailed   BindOutcome = "failed"
)

// StartCommand is an inbound /start, optionally carrying a pairing code.
type StartCommand struct {
	ChatTarget  string
	DisplayName string
	Code        string
}

// BindingUseCase consumes pairing codes and replies exactly once per command.
type BindingUseCase interface {
	HandleStart(ctx context.Context, cmd StartCommand) (BindOutcome, error)
}

type bindingUC struct {
	backend    adapter.BackendClient
	bot        adapter.TelegramBotAdapter
	journal    repository.JournalRepository
	translator *i18n.Translator
	log        *zerolog.Logger
	dev        bool
}

func NewBindingUseCase(backend adapter.BackendClient, bot adapter.TelegramBotAdapter, journal repository.JournalRepository, translator *i18n.Translator, logger *zerolog.Logger, dev bool) *bindingUC {
	compLog := logger.With().Str("component", "BindingUC").Logger()
	return &bindingUC{
		backend:    backend,
		bot:        bot,
		journal:    journal,
		translator: translator,
		log:        &compLog,
		dev:        dev,
	}
}

// HandleStart returns the outcome and the error of sending the reply, if any.
// Bind itself is never resubmitted here; the client's transport retry is the only retry.
func (b *bindingUC) HandleStart(ctx context.Context, cmd StartCommand) (BindOutcome, error) {
	defer logging.TraceDuration(b.log, "BindingUC.HandleStart")()
	log := logging.With(ctx, b.log)

	code := strings.TrimSpace(cmd.Code)
	if code == "" {
		return BindReady, b.reply(ctx, cmd.ChatTarget, "start_ready")
	}

	req, err := model.NewBindingRequest(code, cmd.ChatTarget, cmd.DisplayName)
	if err != nil {
		log.Info().Str("code", maskCode(code)).Msg("malformed pairing code")
		metrics.IncBind(string(BindInvalid))
		return BindInvalid, b.reply(ctx, cmd.ChatTarget, "bind_invalid_code")
	}

	outcome, key := BindOK, "bind_success"
	err = b.backend.Bind(ctx, *req)
	switch {
	case err == nil:
		log.Info().Str("chat", logging.Redact(req.ChatTarget, b.dev)).Msg("chat bound to account")
	case domain.IsRejected(err):
		outcome, key = BindRejected, "bind_rejected"
		log.Info().Err(err).Str("code", maskCode(code)).Msg("pairing code rejected")
	default:
		outcome, key = BindFailed, "bind_failed"
		log.Warn().Err(err).Str("code", maskCode(code)).Msg("bind request failed")
	}
	metrics.IncBind(string(outcome))

	detail := ""
	if err != nil {
		detail = err.Error()
	}
	recordOutcome(ctx, b.journal, b.log, model.JournalBind, maskCode(code), req.ChatTarget, string(outcome), detail)

	return outcome, b.reply(ctx, cmd.ChatTarget, key)
}

func (b *bindingUC) reply(ctx context.Context, chatTarget, key string) error {
	_, err := b.bot.SendMessage(ctx, adapter.SendMessageParams{
		ChatTarget: chatTarget,
		Text:       b.translator.T(key),
	})
	return err
}
