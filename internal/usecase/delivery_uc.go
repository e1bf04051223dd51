package usecase

import (
	"context"
	"errors"
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
var _ DeliveryUseCase = (*deliveryUC)(nil)

// DeliveryResult describes what happened to one pulled item.
type DeliveryResult struct {
	Status    model.DeliveryStatus
	MessageID int
	Diag      string
	// Reported is true when the backend accepted the outcome report.
	Reported bool
}

// DeliveryUseCase sends one approval request and reports the outcome.
type DeliveryUseCase interface {
	Deliver(ctx context.Context, item model.PendingApproval) (DeliveryResult, error)
}

type deliveryUC struct {
	backend    adapter.BackendClient
	bot        adapter.TelegramBotAdapter
	journal    repository.JournalRepository
	translator *i18n.Translator
	log        *zerolog.Logger
}

func NewDeliveryUseCase(backend adapter.BackendClient, bot adapter.TelegramBotAdapter, journal repository.JournalRepository, translator *i18n.Translator, logger *zerolog.Logger) *deliveryUC {
	compLog := logger.With().Str("component", "DeliveryUC").Logger()
	return &deliveryUC{
		backend:    backend,
		bot:        bot,
		journal:    journal,
		translator: translator,
		log:        &compLog,
	}
}

// Deliver makes at most one send attempt and always exactly one outcome
// report for an item with an id. Items without an id cannot be reported and
// return domain.ErrMissingQueueID.
func (d *deliveryUC) Deliver(ctx context.Context, item model.PendingApproval) (DeliveryResult, error) {
	if item.ID == "" {
		metrics.IncDelivery("skipped")
		return DeliveryResult{}, domain.ErrMissingQueueID
	}
	ctx = logging.WithSessID(ctx, item.SessionID)
	log := logging.With(ctx, d.log).With().Str("queue_id", item.ID.String()).Logger()

	var outcome model.DeliveryOutcome
	res := DeliveryResult{}

	params, err := d.buildMessage(item)
	if err == nil {
		res.MessageID, err = d.bot.SendMessage(ctx, params)
	}
	if err != nil {
		outcome = model.NewFailedOutcome(item.ID, diagnostic(err))
		log.Warn().Err(err).Msg("approval request not delivered")
	} else {
		outcome = model.DeliveryOutcome{ID: item.ID, Status: model.DeliverySent}
		log.Info().Int("message_id", res.MessageID).Msg("approval request delivered")
	}
	res.Status, res.Diag = outcome.Status, outcome.ErrorText
	metrics.IncDelivery(string(outcome.Status))

	// The backend re-offers unacknowledged items, so a failed report is only logged.
	if err := d.backend.Mark(ctx, outcome); err != nil {
		metrics.IncOutcomeReport(string(outcome.Status), "failed")
		log.Warn().Err(err).Str("status", string(outcome.Status)).Msg("outcome report failed")
	} else {
		metrics.IncOutcomeReport(string(outcome.Status), "ok")
		res.Reported = true
	}

	recordOutcome(ctx, d.journal, d.log, model.JournalDelivery, item.ID.String(), item.ChatTarget.String(), string(outcome.Status), outcome.ErrorText)
	return res, nil
}

func (d *deliveryUC) buildMessage(item model.PendingApproval) (adapter.SendMessageParams, error) {
	if item.ChatTarget == "" {
		return adapter.SendMessageParams{}, &domain.ValidationError{Field: "telegram_id", Err: domain.ErrInvalidTarget}
	}
	approve, err := model.EncodeDecisionToken(model.ActionApprove, item.SessionID)
	if err != nil {
		return adapter.SendMessageParams{}, err
	}
	deny, err := model.EncodeDecisionToken(model.ActionDeny, item.SessionID)
	if err != nil {
		return adapter.SendMessageParams{}, err
	}
	return adapter.SendMessageParams{
		ChatTarget: item.ChatTarget.String(),
		Text:       d.renderApproval(item),
		Rows: [][]adapter.InlineButton{{
			{Text: d.translator.T("button_approve"), Data: approve},
			{Text: d.translator.T("button_deny"), Data: deny},
		}},
	}, nil
}

func (d *deliveryUC) renderApproval(item model.PendingApproval) string {
	var b strings.Builder
	b.WriteString(d.translator.T("approval_title") + "\n")
	line := func(key, v string) {
		if v = strings.TrimSpace(v); v != "" {
			b.WriteString(d.translator.T(key, v) + "\n")
		}
	}
	line("approval_account", item.AccountLabel)
	line("approval_ip", item.Context.IP)
	line("approval_time", item.Context.When)
	line("approval_agent", item.Context.UserAgent)
	line("approval_location", item.Context.Location)
	line("approval_session", sessionRef(item.SessionID))
	b.WriteString("\n" + d.translator.T("approval_prompt"))
	return b.String()
}

// sessionRef is the short session reference shown to the user; the full id
// only travels in the button tokens.
func sessionRef(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// diagnostic is the short reason attached to an error outcome.
func diagnostic(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Field + ": " + ve.Err.Error()
	}
	return err.Error()
}
