package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Condition is the physical state recorded on a stock record.
type Condition string

const (
	ConditionNew  Condition = "NEW"
	ConditionGood Condition = "GOOD"
	ConditionFair Condition = "FAIR"
	ConditionPoor Condition = "POOR"
)

// ParseCondition accepts a case-insensitive condition name. An empty string parses to ""
// which callers treat as "no override".
func ParseCondition(s string) (Condition, error) {
	c := Condition(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case "", ConditionNew, ConditionGood, ConditionFair, ConditionPoor:
		return c, nil
	}
	return "", &InvalidArgumentError{Field: "condition", Msg: fmt.Sprintf("unknown condition %q", s)}
}

// Location is either the single pool location or an ordinary consuming center.
type Location struct {
	ID        int
	Code      string
	Name      string
	IsPool    bool
	IsActive  bool
	CreatedAt time.Time
}

// ItemSummary is the catalog view of an item used when listing stock.
type ItemSummary struct {
	ID              int
	Code            string
	Name            string
	Category        string
	DefaultUnitCost decimal.NullDecimal
}

// StockRecord is the ledger row for one (item, location) pair.
// Quantity is never negative; rows are never deleted, only zeroed.
type StockRecord struct {
	ID           int
	ItemID       int
	LocationID   int
	Quantity     int
	UnitCost     decimal.NullDecimal // last-known acquisition price
	Condition    Condition
	LocationNote string   // shelf or room label
	SerialTags   []string // opaque, informational only
	Provenance   string   // supplier/invoice reference or return annotation
	UpdatedAt    time.Time
}

// StockMeta carries optional metadata overrides applied when a record is credited.
// Zero values mean "leave unchanged".
type StockMeta struct {
	UnitCost     decimal.NullDecimal
	Condition    Condition
	LocationNote string
	SerialTags   []string
	Provenance   string
}

// PoolInventoryEntry is a stock record joined with its item's catalog summary.
type PoolInventoryEntry struct {
	Item   ItemSummary
	Record StockRecord
}

// ItemDistribution lists every record of one item across the pool and all centers.
type ItemDistribution struct {
	ItemID  int
	Records []StockRecord
	Total   int
}

// MovementType labels one side of a committed transfer in the movement journal.
type MovementType string

const (
	MovementReplenish   MovementType = "REPLENISH"
	MovementAllocateOut MovementType = "ALLOCATE_OUT"
	MovementAllocateIn  MovementType = "ALLOCATE_IN"
	MovementReturnOut   MovementType = "RETURN_OUT"
	MovementReturnIn    MovementType = "RETURN_IN"
)

// Movement is an append-only journal row. Quantity is signed: negative for the debited side.
type Movement struct {
	ID         int
	ItemID     int
	LocationID int
	Type       MovementType
	Quantity   int
	Actor      string
	Note       string
	CreatedAt  time.Time
}
