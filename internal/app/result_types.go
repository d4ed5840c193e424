package app

import "stock-ledger/internal/core"

// QuantityResult is returned by GetQuantity and GetPoolQuantity.
type QuantityResult struct {
	ItemID     int
	LocationID int
	Quantity   int
}

// PoolInventoryResult is returned by ListPoolInventory.
type PoolInventoryResult struct {
	Pool    core.Location
	Entries []core.PoolInventoryEntry
}

// CenterListResult is returned by ListCenters.
type CenterListResult struct {
	Centers []core.Location
}

// LocationStockResult is returned by ListLocationStock.
type LocationStockResult struct {
	LocationID int
	Entries    []core.PoolInventoryEntry
}

// DistributionResult is returned by ItemDistribution.
type DistributionResult struct {
	Distribution *core.ItemDistribution
}

// MovementListResult is returned by ListMovements.
type MovementListResult struct {
	ItemID    int
	Movements []core.Movement
}

// StockRecordResult is returned by single-record ledger writes.
type StockRecordResult struct {
	Record *core.StockRecord
}

// BatchResult is returned by AllocateBatch, one record per line in request order.
type BatchResult struct {
	Records []core.StockRecord
}
