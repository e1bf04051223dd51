package telegram

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg2fa-relay/internal/domain/ports/adapter"
	"tg2fa-relay/internal/usecase"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start": r.handleStartCommand,
		"help":  r.handleHelpCommand,
	}
}

// handleStartCommand handles /start and /start <code> (deep links arrive the same way).
func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	_, err := r.binding.HandleStart(ctx, usecase.StartCommand{
		ChatTarget:  strconv.FormatInt(message.From.ID, 10),
		DisplayName: displayName(message.From),
		Code:        strings.TrimSpace(message.CommandArguments()),
	})
	return err
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	_, err := r.SendMessage(ctx, adapter.SendMessageParams{
		ChatTarget: strconv.FormatInt(message.Chat.ID, 10),
		Text:       r.translator.T("help"),
	})
	return err
}

// displayName prefers the @username and falls back to the first name.
func displayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
