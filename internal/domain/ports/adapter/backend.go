package adapter

import (
	"context"

	"tg2fa-relay/internal/domain/model"
)

// BackendClient is the website's bot API. Every method returns a
// *domain.TransportError, *domain.ProtocolError or an error wrapping
// domain.ErrBackendRejected on failure.
type BackendClient interface {
	Bind(ctx context.Context, req model.BindingRequest) error
	Pull(ctx context.Context, limit int) ([]model.PendingApproval, error)
	Mark(ctx context.Context, outcome model.DeliveryOutcome) error
	Decide(ctx context.Context, decision model.SessionDecision) error
}
