//go:build !integration

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg2fa-relay/internal/domain/model"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

type memJournal struct {
	entries []*model.JournalEntry
	err     error
}

func (m *memJournal) Append(ctx context.Context, e *model.JournalEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memJournal) ListByRef(ctx context.Context, kind model.JournalKind, ref string, limit int) ([]*model.JournalEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*model.JournalEntry
	for _, e := range m.entries {
		if e.Kind == kind && e.Ref == ref {
			out = append(out, e)
		}
	}
	return out, nil
}

func do(t *testing.T, h http.Handler, method, target, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminServer(t *testing.T) {
	journal := &memJournal{entries: []*model.JournalEntry{
		{ID: "1", Kind: model.JournalDecision, Ref: "sess_abc123", Outcome: "ok", CreatedAt: time.Now()},
		{ID: "2", Kind: model.JournalDelivery, Ref: "42", Outcome: "sent", CreatedAt: time.Now()},
	}}
	h := NewServer(0, "k3y", journal, newTestLogger()).Handler()

	t.Run("should report health with a request id", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/health", "")
		if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
			t.Errorf("unexpected health response %d %q", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("expected a request id header")
		}
	})

	t.Run("should expose prometheus metrics", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/metrics", "")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
			t.Errorf("unexpected metrics response %d", rec.Code)
		}
	})

	t.Run("should require the api key for the journal", func(t *testing.T) {
		if rec := do(t, h, http.MethodGet, "/api/v1/journal/decision/sess_abc123", ""); rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 without key, got %d", rec.Code)
		}
		if rec := do(t, h, http.MethodGet, "/api/v1/journal/decision/sess_abc123", "wrong"); rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 with wrong key, got %d", rec.Code)
		}
	})

	t.Run("should accept short-lived tokens signed with the key", func(t *testing.T) {
		tok, err := MintToken("k3y", time.Minute)
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		if rec := do(t, h, http.MethodGet, "/api/v1/journal/decision/sess_abc123", tok); rec.Code != http.StatusOK {
			t.Errorf("expected 200 with token, got %d", rec.Code)
		}

		expired, _ := MintToken("k3y", -time.Minute)
		if rec := do(t, h, http.MethodGet, "/api/v1/journal/decision/sess_abc123", expired); rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 with expired token, got %d", rec.Code)
		}
		forged, _ := MintToken("other-key", time.Minute)
		if rec := do(t, h, http.MethodGet, "/api/v1/journal/decision/sess_abc123", forged); rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 with forged token, got %d", rec.Code)
		}
	})

	t.Run("should list journal entries by kind and ref", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/journal/decision/sess_abc123", "k3y")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body struct {
			Items []journalEntryDTO `json:"items"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Items) != 1 || body.Items[0].ID != "1" || body.Items[0].Outcome != "ok" {
			t.Errorf("unexpected items %+v", body.Items)
		}
	})

	t.Run("should validate kind and limit", func(t *testing.T) {
		if rec := do(t, h, http.MethodGet, "/api/v1/journal/payment/x", "k3y"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for unknown kind, got %d", rec.Code)
		}
		if rec := do(t, h, http.MethodGet, "/api/v1/journal/bind/x?limit=abc", "k3y"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for bad limit, got %d", rec.Code)
		}
	})

	t.Run("should hide journal failures", func(t *testing.T) {
		h := NewServer(0, "k3y", &memJournal{err: errors.New("conn refused")}, newTestLogger()).Handler()
		rec := do(t, h, http.MethodGet, "/api/v1/journal/bind/x", "k3y")
		if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "conn refused") {
			t.Errorf("unexpected response %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("should not mount the journal without a repository", func(t *testing.T) {
		h := NewServer(0, "k3y", nil, newTestLogger()).Handler()
		if rec := do(t, h, http.MethodGet, "/api/v1/journal/bind/x", "k3y"); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }), Recover(newTestLogger()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}
