package events

import (
	"context"
	"stayledger/pkg/model"
)

// Publisher emits ledger events for external indexers. Emission is
// best-effort: a failed publish never rolls back the ledger mutation it
// describes, it goes to the DLQ instead.
type Publisher interface {
	Publish(ctx context.Context, event model.LedgerEvent) error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, _ model.LedgerEvent) error {
	return nil
}
