package deposits

import (
	"context"

	"github.com/google/uuid"
)

// Authorizer approves a balance addition with an external payment provider.
type Authorizer interface {
	Authorize(ctx context.Context, req Authorization) (Decision, error)
}

// Authorization is what the provider sees of a deposit.
type Authorization struct {
	AccountID string
	Method    Method
	Amount    int64
}

// Decision captures the simulated response from the provider.
type Decision struct {
	Reference string
	Status    string
}

// StaticAuthorizer simulates a provider that approves everything.
type StaticAuthorizer struct{}

// Authorize approves the deposit with a synthetic reference.
func (StaticAuthorizer) Authorize(_ context.Context, _ Authorization) (Decision, error) {
	return Decision{Reference: uuid.NewString(), Status: "approved"}, nil
}
