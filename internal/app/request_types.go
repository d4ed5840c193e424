package app

import "github.com/shopspring/decimal"

// ReplenishRequest is the input for adding received stock to the pool.
type ReplenishRequest struct {
	ItemID     int
	Quantity   int
	UnitCost   decimal.NullDecimal
	Condition  string // empty keeps the record's current condition
	Provenance string // invoice or donor reference
	SerialTags []string
	Actor      string
}

// AllocateRequest is the input for moving pool stock to a center.
type AllocateRequest struct {
	ItemID       int
	ToLocationID int
	Quantity     int
	UnitCost     decimal.NullDecimal
	Condition    string
	LocationNote string
	SerialTags   []string
	Actor        string
}

// AllocateBatchRequest allocates one item to several centers at once.
type AllocateBatchRequest struct {
	ItemID int
	Lines  []AllocationLineInput
	Actor  string
}

// AllocationLineInput is a single destination within an AllocateBatchRequest.
type AllocationLineInput struct {
	ToLocationID int
	Quantity     int
	UnitCost     decimal.NullDecimal
	Condition    string
	LocationNote string
}

// ReturnRequest is the input for moving stock from a center back to the pool.
type ReturnRequest struct {
	ItemID         int
	FromLocationID int
	Quantity       int
	Reason         string
	Actor          string
}
