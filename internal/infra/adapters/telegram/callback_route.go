package telegram

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg2fa-relay/internal/domain/model"
	"tg2fa-relay/internal/domain/ports/adapter"
	"tg2fa-relay/internal/usecase"
)

type cbHandler func(ctx context.Context, query *tgbotapi.CallbackQuery) error
type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

// Prefix-match callbacks
func (r *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{
			Prefix: model.DecisionTokenPrefix,
			Fn:     r.decisionPrefixCBRoute,
		},
	}
}

func (r *RealTelegramBotAdapter) decisionPrefixCBRoute(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	in := usecase.Interaction{
		CallbackID: query.ID,
		Data:       query.Data,
		ChatTarget: strconv.FormatInt(query.From.ID, 10),
	}
	if query.Message != nil {
		in.MessageID = query.Message.MessageID
		in.MessageText = query.Message.Text
	}
	_, err := r.decision.Handle(ctx, in)
	return err
}

// unknownCBRoute stops the client spinner for data no route claims.
func (r *RealTelegramBotAdapter) unknownCBRoute(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	return r.AnswerCallback(ctx, adapter.AnswerCallbackParams{
		CallbackID: query.ID,
		Text:       r.translator.T("decision_unknown"),
	})
}
