// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// SendMessageParams describes one outbound chat message. ChatTarget is the
// opaque recipient identifier as received from the backend.
type SendMessageParams struct {
	ChatTarget string
	Text       string
	Rows       [][]InlineButton
}

// EditMessageParams replaces the text of a previously sent message.
// Rows == nil removes any inline keyboard.
type EditMessageParams struct {
	ChatTarget string
	MessageID  int
	Text       string
	Rows       [][]InlineButton
}

// AnswerCallbackParams acknowledges an inline button tap. Alert shows a modal
// instead of a toast.
type AnswerCallbackParams struct {
	CallbackID string
	Text       string
	Alert      bool
}

type TelegramBotAdapter interface {
	// SendMessage returns the id of the sent message.
	SendMessage(ctx context.Context, params SendMessageParams) (int, error)
	EditMessage(ctx context.Context, params EditMessageParams) error
	AnswerCallback(ctx context.Context, params AnswerCallbackParams) error
}
