package model

import (
	"regexp"

	"tg2fa-relay/internal/domain"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionDeny    Action = "deny"
)

const DecisionTokenPrefix = "2fa:"

var (
	sessionIDRe     = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)
	decisionTokenRe = regexp.MustCompile(`^2fa:(approve|deny):([A-Za-z0-9_-]{8,128})$`)
)

// SessionDecision is the user's answer for one login session.
type SessionDecision struct {
	SessionID  string `json:"session_id"`
	Action     Action `json:"action"`
	ChatTarget string `json:"telegram_id,omitempty"`
}

// DecisionToken is the parse result of callback data: either Matched with
// an action and session id, or unmatched.
type DecisionToken struct {
	Matched   bool
	Action    Action
	SessionID string
}

// ParseDecisionToken matches data against 2fa:(approve|deny):<session id>.
func ParseDecisionToken(data string) DecisionToken {
	m := decisionTokenRe.FindStringSubmatch(data)
	if m == nil {
		return DecisionToken{}
	}
	return DecisionToken{Matched: true, Action: Action(m[1]), SessionID: m[2]}
}

// EncodeDecisionToken is the inverse of ParseDecisionToken.
func EncodeDecisionToken(a Action, sessionID string) (string, error) {
	if a != ActionApprove && a != ActionDeny {
		return "", &domain.ValidationError{Field: "action", Err: domain.ErrInvalidArgument}
	}
	if !IsSessionID(sessionID) {
		return "", &domain.ValidationError{Field: "session_id", Err: domain.ErrInvalidSessionID}
	}
	return DecisionTokenPrefix + string(a) + ":" + sessionID, nil
}

func IsSessionID(s string) bool { return sessionIDRe.MatchString(s) }

// Decision converts a matched token into a request for the given chat.
func (t DecisionToken) Decision(chatTarget string) (SessionDecision, bool) {
	if !t.Matched {
		return SessionDecision{}, false
	}
	return SessionDecision{SessionID: t.SessionID, Action: t.Action, ChatTarget: chatTarget}, true
}
