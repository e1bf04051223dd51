package usecase

import (
	"context"

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
var _ DecisionUseCase = (*decisionUC)(nil)

type DecisionOutcome string

const (
	DecisionUnmatched DecisionOutcome = "unmatched"
	DecisionOK        DecisionOutcome = "ok"
	DecisionRejected  DecisionOutcome = "rejected"
	DecisionFailed    DecisionOutcome = "failed"
)

// Interaction is an inline button tap on a delivered approval message.
type Interaction struct {
	CallbackID  string
	Data        string
	ChatTarget  string
	MessageID   int
	MessageText string
}

// DecisionUseCase relays approve/deny taps to the backend.
type DecisionUseCase interface {
	Handle(ctx context.Context, in Interaction) (DecisionOutcome, error)
}

type decisionUC struct {
	backend    adapter.BackendClient
	bot        adapter.TelegramBotAdapter
	journal    repository.JournalRepository
	translator *i18n.Translator
	log        *zerolog.Logger
}

func NewDecisionUseCase(backend adapter.BackendClient, bot adapter.TelegramBotAdapter, journal repository.JournalRepository, translator *i18n.Translator, logger *zerolog.Logger) *decisionUC {
	compLog := logger.With().Str("component", "DecisionUC").Logger()
	return &decisionUC{
		backend:    backend,
		bot:        bot,
		journal:    journal,
		translator: translator,
		log:        &compLog,
	}
}

// Handle answers the tap exactly once. The original message loses its buttons
// only after the backend accepted the decision; repeated decisions for a
// session are the backend's to refuse.
func (d *decisionUC) Handle(ctx context.Context, in Interaction) (DecisionOutcome, error) {
	defer logging.TraceDuration(d.log, "DecisionUC.Handle")()

	tok := model.ParseDecisionToken(in.Data)
	decision, ok := tok.Decision(in.ChatTarget)
	if !ok || in.ChatTarget == "" {
		metrics.IncDecision("", string(DecisionUnmatched))
		return DecisionUnmatched, d.answer(ctx, in.CallbackID, "decision_unknown", false)
	}

	ctx = logging.WithSessID(ctx, decision.SessionID)
	log := logging.With(ctx, d.log)

	err := d.backend.Decide(ctx, decision)
	outcome := DecisionOK
	switch {
	case err == nil:
	case domain.IsRejected(err):
		outcome = DecisionRejected
		log.Info().Err(err).Str("action", string(decision.Action)).Msg("decision rejected by backend")
	default:
		outcome = DecisionFailed
		log.Warn().Err(err).Str("action", string(decision.Action)).Msg("decision relay failed")
	}
	metrics.IncDecision(string(decision.Action), string(outcome))

	detail := string(decision.Action)
	if err != nil {
		detail += ": " + err.Error()
	}
	recordOutcome(ctx, d.journal, d.log, model.JournalDecision, decision.SessionID, in.ChatTarget, string(outcome), detail)

	switch outcome {
	case DecisionRejected:
		return outcome, d.answer(ctx, in.CallbackID, "decision_rejected", true)
	case DecisionFailed:
		return outcome, d.answer(ctx, in.CallbackID, "decision_failed", true)
	}

	toast, final := "decision_approved", "decision_final_approved"
	if decision.Action == model.ActionDeny {
		toast, final = "decision_denied", "decision_final_denied"
	}
	answerErr := d.answer(ctx, in.CallbackID, toast, false)

	if in.MessageID != 0 {
		text := d.translator.T(final)
		if in.MessageText != "" {
			text = in.MessageText + "\n\n" + text
		}
		if err := d.bot.EditMessage(ctx, adapter.EditMessageParams{
			ChatTarget: in.ChatTarget,
			MessageID:  in.MessageID,
			Text:       text,
		}); err != nil {
			log.Warn().Err(err).Int("message_id", in.MessageID).Msg("failed to close approval message")
		}
	}
	log.Info().Str("action", string(decision.Action)).Msg("decision relayed")
	return outcome, answerErr
}

func (d *decisionUC) answer(ctx context.Context, callbackID, key string, alert bool) error {
	if callbackID == "" {
		return nil
	}
	return d.bot.AnswerCallback(ctx, adapter.AnswerCallbackParams{
		CallbackID: callbackID,
		Text:       d.translator.T(key),
		Alert:      alert,
	})
}
