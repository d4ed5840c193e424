package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StockMoved describes one committed ledger operation. FromLocationID is 0 for a
// replenish; ToLocationID is the pool for replenish and return.
type StockMoved struct {
	ID             string    `json:"id"`
	Op             string    `json:"op"`
	ItemID         int       `json:"item_id"`
	FromLocationID int       `json:"from_location_id,omitempty"`
	ToLocationID   int       `json:"to_location_id"`
	Quantity       int       `json:"quantity"`
	Actor          string    `json:"actor,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewStockMoved stamps an event with a fresh id and the current time.
func NewStockMoved(op string, itemID, from, to, qty int, actor string) StockMoved {
	return StockMoved{
		ID:             uuid.NewString(),
		Op:             op,
		ItemID:         itemID,
		FromLocationID: from,
		ToLocationID:   to,
		Quantity:       qty,
		Actor:          actor,
		OccurredAt:     time.Now().UTC(),
	}
}

// Publisher delivers events after the ledger has committed. Delivery failures never
// roll back the ledger.
type Publisher interface {
	Publish(ctx context.Context, ev StockMoved) error
	Close() error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, StockMoved) error { return nil }
func (NopPublisher) Close() error                              { return nil }
