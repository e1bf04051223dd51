package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg2fa-relay/internal/config"
	"tg2fa-relay/internal/domain"
	"tg2fa-relay/internal/domain/ports/adapter"
	"tg2fa-relay/internal/infra/i18n"
	"tg2fa-relay/internal/infra/logging"
	"tg2fa-relay/internal/infra/metrics"
	"tg2fa-relay/internal/infra/worker"
	"tg2fa-relay/internal/usecase"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// RateLimiter is satisfied by the redis fixed-window limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RealTelegramBotAdapter long-polls Telegram, fans updates out to a worker
// pool and routes commands and button taps to the use cases.
type RealTelegramBotAdapter struct {
	bot         *tgbotapi.BotAPI
	translator  *i18n.Translator
	rateLimiter RateLimiter
	limits      config.RateLimitConfig
	log         *zerolog.Logger

	binding  usecase.BindingUseCase
	decision usecase.DecisionUseCase

	updateWorkers int
}

func NewRealTelegramBotAdapter(cfg config.BotConfig, translator *i18n.Translator, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("bot token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return newAdapter(bot, cfg.Workers, translator, logger), nil
}

func newAdapter(bot *tgbotapi.BotAPI, workers int, translator *i18n.Translator, logger *zerolog.Logger) *RealTelegramBotAdapter {
	if workers <= 0 {
		workers = 4
	}
	compLog := logger.With().Str("component", "TelegramBot").Logger()
	return &RealTelegramBotAdapter{
		bot:           bot,
		translator:    translator,
		log:           &compLog,
		updateWorkers: workers,
	}
}

// SetUseCases wires the inbound handlers. The use cases send through this
// adapter, so they are attached after construction.
func (r *RealTelegramBotAdapter) SetUseCases(binding usecase.BindingUseCase, decision usecase.DecisionUseCase) {
	r.binding = binding
	r.decision = decision
}

// SetRateLimiter enables per-user throttling of commands and button taps.
func (r *RealTelegramBotAdapter) SetRateLimiter(rl RateLimiter, limits config.RateLimitConfig) {
	r.rateLimiter = rl
	r.limits = limits
}

func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if r.binding == nil || r.decision == nil {
		return errors.New("telegram: use cases not set")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	pool := worker.NewPool(r.updateWorkers, r.log)
	pool.Start(ctx)
	r.log.Info().Str("bot", r.bot.Self.UserName).Int("workers", r.updateWorkers).Msg("Starting telegram polling")

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			pool.Stop()
			r.log.Info().Msg("Stopping telegram polling")
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				pool.Stop()
				return errors.New("telegram: update channel closed")
			}
			if err := pool.Submit(ctx, func(ctx context.Context) error { return r.handleUpdate(ctx, up) }); err != nil {
				r.log.Debug().Err(err).Int("update_id", up.UpdateID).Msg("update dropped")
			}
		}
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	ctx = logging.WithTraceID(ctx, uuid.NewString())

	// ----- Inline button callbacks -----
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}

	// ----- Commands -----
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || !msg.IsCommand() {
		return nil
	}
	ctx = logging.WithChatID(ctx, strconv.FormatInt(msg.Chat.ID, 10))

	command := msg.Command()
	handler, ok := r.commandRoutes()[command]
	if !ok {
		return nil
	}
	metrics.IncTelegramCommand("/" + command)

	if !r.allow(ctx, msg.From.ID, command, r.limits.Commands) {
		_, err := r.SendMessage(ctx, adapter.SendMessageParams{
			ChatTarget: strconv.FormatInt(msg.Chat.ID, 10),
			Text:       r.translator.T("rate_limited"),
		})
		return err
	}
	return handler(ctx, msg)
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}
	ctx = logging.WithChatID(ctx, strconv.FormatInt(query.From.ID, 10))
	data := strings.TrimSpace(query.Data)
	metrics.IncTelegramCommand("callback")

	if !r.allow(ctx, query.From.ID, "cb", r.limits.Callbacks) {
		return r.AnswerCallback(ctx, adapter.AnswerCallbackParams{
			CallbackID: query.ID,
			Text:       r.translator.T("rate_limited"),
			Alert:      true,
		})
	}

	for _, pr := range r.cbPrefixRoutes() {
		if strings.HasPrefix(data, pr.Prefix) {
			return pr.Fn(ctx, query)
		}
	}
	return r.unknownCBRoute(ctx, query)
}

// allow fails open when the limiter is unavailable.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, userID int64, key string, limit int) bool {
	if r.rateLimiter == nil || limit <= 0 {
		return true
	}
	allowed, err := r.rateLimiter.Allow(ctx, rateKey(userID, key), limit, r.limits.Window)
	if err != nil {
		r.log.Warn().Err(err).Msg("rate limit check failed")
		return true
	}
	if !allowed {
		metrics.IncRateLimitTriggered()
	}
	return allowed
}

func rateKey(userID int64, key string) string {
	return fmt.Sprintf("rate_limit:%d:%s", userID, key)
}

// SendMessage sends text with an optional inline keyboard and returns the message id.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, params adapter.SendMessageParams) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	chatID, err := parseChatTarget(params.ChatTarget)
	if err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, params.Text)
	if kb := buildKeyboard(params.Rows); kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := r.bot.Send(msg)
	if err != nil {
		return 0, describe(err)
	}
	return sent.MessageID, nil
}

// EditMessage replaces the text of a sent message. Rows == nil removes the keyboard.
func (r *RealTelegramBotAdapter) EditMessage(ctx context.Context, params adapter.EditMessageParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, err := parseChatTarget(params.ChatTarget)
	if err != nil {
		return err
	}
	kb := buildKeyboard(params.Rows)
	if kb == nil {
		kb = &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	}
	if params.Text == "" {
		_, err = r.bot.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, params.MessageID, *kb))
		return describe(err)
	}
	edit := tgbotapi.NewEditMessageText(chatID, params.MessageID, params.Text)
	edit.ReplyMarkup = kb
	_, err = r.bot.Request(edit)
	return describe(err)
}

func (r *RealTelegramBotAdapter) AnswerCallback(ctx context.Context, params adapter.AnswerCallbackParams) error {
	cb := tgbotapi.NewCallback(params.CallbackID, params.Text)
	if params.Alert {
		cb = tgbotapi.NewCallbackWithAlert(params.CallbackID, params.Text)
	}
	_, err := r.bot.Request(cb)
	return describe(err)
}

// buildKeyboard returns nil when rows hold no buttons.
// - If btn.URL is set, the button opens a link
// - Else the button sends btn.Data as callback data
func buildKeyboard(rows [][]adapter.InlineButton) *tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			if btn.URL != "" {
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
				continue
			}
			r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
		}
		kbRows = append(kbRows, r)
	}
	if len(kbRows) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	return &kb
}

func parseChatTarget(target string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(target), 10, 64)
	if err != nil || id == 0 {
		return 0, &domain.ValidationError{Field: "telegram_id", Err: domain.ErrInvalidTarget}
	}
	return id, nil
}

// describe shortens Telegram API errors to "telegram <code>: <description>".
func describe(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("telegram %d: %s", apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("telegram: %w", err)
}
