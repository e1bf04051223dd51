//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"tg2fa-relay/internal/domain/model"
	"tg2fa-relay/internal/domain/ports/adapter"
	"tg2fa-relay/internal/domain/ports/repository"
	"tg2fa-relay/internal/infra/i18n"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func newTestTranslator() *i18n.Translator {
	t, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		panic(err)
	}
	return t
}

// ---- Mock TelegramBotAdapter ----

type MockTelegramBot struct {
	mu       sync.Mutex
	Sent     []adapter.SendMessageParams
	Edited   []adapter.EditMessageParams
	Answered []adapter.AnswerCallbackParams
	nextID   int

	SendMessageFunc    func(ctx context.Context, params adapter.SendMessageParams) (int, error)
	EditMessageFunc    func(ctx context.Context, params adapter.EditMessageParams) error
	AnswerCallbackFunc func(ctx context.Context, params adapter.AnswerCallbackParams) error
}

var _ adapter.TelegramBotAdapter = (*MockTelegramBot)(nil)

func (m *MockTelegramBot) SendMessage(ctx context.Context, params adapter.SendMessageParams) (int, error) {
	id := 0
	if m.SendMessageFunc != nil {
		var err error
		if id, err = m.SendMessageFunc(ctx, params); err != nil {
			return 0, err
		}
	}
	generated := m.record(params)
	if id == 0 {
		id = generated
	}
	return id, nil
}

func (m *MockTelegramBot) record(params adapter.SendMessageParams) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, params)
	m.nextID++
	return m.nextID
}

func (m *MockTelegramBot) EditMessage(ctx context.Context, params adapter.EditMessageParams) error {
	if m.EditMessageFunc != nil {
		if err := m.EditMessageFunc(ctx, params); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Edited = append(m.Edited, params)
	return nil
}

func (m *MockTelegramBot) AnswerCallback(ctx context.Context, params adapter.AnswerCallbackParams) error {
	if m.AnswerCallbackFunc != nil {
		if err := m.AnswerCallbackFunc(ctx, params); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Answered = append(m.Answered, params)
	return nil
}

// ---- Mock BackendClient ----

type MockBackend struct {
	mu        sync.Mutex
	Binds     []model.BindingRequest
	Marks     []model.DeliveryOutcome
	Decisions []model.SessionDecision
	PullCalls int

	BindFunc   func(ctx context.Context, req model.BindingRequest) error
	PullFunc   func(ctx context.Context, limit int) ([]model.PendingApproval, error)
	MarkFunc   func(ctx context.Context, outcome model.DeliveryOutcome) error
	DecideFunc func(ctx context.Context, decision model.SessionDecision) error
}

var _ adapter.BackendClient = (*MockBackend)(nil)

func (m *MockBackend) Bind(ctx context.Context, req model.BindingRequest) error {
	m.mu.Lock()
	m.Binds = append(m.Binds, req)
	m.mu.Unlock()
	if m.BindFunc != nil {
		return m.BindFunc(ctx, req)
	}
	return nil
}

func (m *MockBackend) Pull(ctx context.Context, limit int) ([]model.PendingApproval, error) {
	m.mu.Lock()
	m.PullCalls++
	m.mu.Unlock()
	if m.PullFunc != nil {
		return m.PullFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockBackend) Mark(ctx context.Context, outcome model.DeliveryOutcome) error {
	m.mu.Lock()
	m.Marks = append(m.Marks, outcome)
	m.mu.Unlock()
	if m.MarkFunc != nil {
		return m.MarkFunc(ctx, outcome)
	}
	return nil
}

func (m *MockBackend) Decide(ctx context.Context, decision model.SessionDecision) error {
	m.mu.Lock()
	m.Decisions = append(m.Decisions, decision)
	m.mu.Unlock()
	if m.DecideFunc != nil {
		return m.DecideFunc(ctx, decision)
	}
	return nil
}

// ---- Mock JournalRepository ----

type MockJournal struct {
	mu      sync.Mutex
	Entries []*model.JournalEntry

	AppendErr error
}

var _ repository.JournalRepository = (*MockJournal)(nil)

func (m *MockJournal) Append(ctx context.Context, e *model.JournalEntry) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, e)
	return nil
}

func (m *MockJournal) ListByRef(ctx context.Context, kind model.JournalKind, ref string, limit int) ([]*model.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.JournalEntry
	for _, e := range m.Entries {
		if e.Kind == kind && e.Ref == ref {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
