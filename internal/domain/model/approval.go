package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexString accepts a JSON string or number and keeps its textual form.
// The backend emits queue ids and telegram ids either way.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// PendingApproval is one outstanding login confirmation pulled from the backend queue.
type PendingApproval struct {
	ID           FlexString   `json:"id"`
	ChatTarget   FlexString   `json:"telegram_id"`
	SessionID    string       `json:"session_id"`
	AccountLabel string       `json:"login,omitempty"`
	Context      LoginContext `json:"context"`
}

// LoginContext holds optional display-only details of the login attempt.
type LoginContext struct {
	IP        string `json:"ip,omitempty"`
	When      string `json:"when,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Location  string `json:"location,omitempty"`
}

// UnmarshalJSON flattens the context fields which the backend sends inline,
// and accepts "account" as an alias of "login".
func (p *PendingApproval) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID         FlexString `json:"id"`
		ChatTarget FlexString `json:"telegram_id"`
		SessionID  FlexString `json:"session_id"`
		Login      string     `json:"login"`
		Account    string     `json:"account"`
		LoginContext
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.ID = raw.ID
	p.ChatTarget = raw.ChatTarget
	p.SessionID = raw.SessionID.String()
	p.AccountLabel = strings.TrimSpace(raw.Login)
	if p.AccountLabel == "" {
		p.AccountLabel = strings.TrimSpace(raw.Account)
	}
	p.Context = raw.LoginContext
	return nil
}

// DeliveryStatus is the outcome reported back for a pulled item.
type DeliveryStatus string

const (
	DeliverySent  DeliveryStatus = "sent"
	DeliveryError DeliveryStatus = "error"
)

// DeliveryOutcome is the body of a mark request.
type DeliveryOutcome struct {
	ID        FlexString     `json:"id"`
	Status    DeliveryStatus `json:"status"`
	ErrorText string         `json:"error,omitempty"`
}

// MaxErrorText bounds the diagnostic attached to an error outcome.
const MaxErrorText = 200

// NewFailedOutcome builds an error outcome with a trimmed diagnostic.
func NewFailedOutcome(id FlexString, diag string) DeliveryOutcome {
	diag = strings.TrimSpace(diag)
	if r := []rune(diag); len(r) > MaxErrorText {
		diag = string(r[:MaxErrorText])
	}
	if diag == "" {
		diag = "delivery failed"
	}
	return DeliveryOutcome{ID: id, Status: DeliveryError, ErrorText: diag}
}
