package model

import (
	"regexp"
	"strings"

	"tg2fa-relay/internal/domain"
)

var pairingCodeRe = regexp.MustCompile(`^[A-Za-z0-9]{6,64}$`)

// BindingRequest ties a chat identity to a website account through a single-use code.
type BindingRequest struct {
	Code        string `json:"code"`
	ChatTarget  string `json:"telegram_id"`
	DisplayName string `json:"username"`
}

// NewBindingRequest validates the pairing code shape. The backend owns expiry and single use.
func NewBindingRequest(code, chatTarget, displayName string) (*BindingRequest, error) {
	code = strings.TrimSpace(code)
	if !pairingCodeRe.MatchString(code) {
		return nil, &domain.ValidationError{Field: "code", Err: domain.ErrInvalidCode}
	}
	if strings.TrimSpace(chatTarget) == "" {
		return nil, &domain.ValidationError{Field: "telegram_id", Err: domain.ErrInvalidTarget}
	}
	return &BindingRequest{
		Code:        code,
		ChatTarget:  chatTarget,
		DisplayName: strings.TrimSpace(displayName),
	}, nil
}
