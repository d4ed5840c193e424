package app

import (
	"context"
	"io"
)

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from ledger logic. Implementations must contain
// no fmt.Println and no display logic of any kind.
type ApplicationService interface {
	// Health resolves the pool location against the store. A missing pool is reported
	// as *core.ConfigurationError.
	Health(ctx context.Context) error

	// GetQuantity returns the quantity of an item at any location, 0 if it holds none.
	GetQuantity(ctx context.Context, itemID, locationID int) (*QuantityResult, error)

	// GetPoolQuantity returns the quantity of an item available in the pool.
	GetPoolQuantity(ctx context.Context, itemID int) (*QuantityResult, error)

	// ListPoolInventory returns every item with positive pool stock, most recently updated first.
	ListPoolInventory(ctx context.Context) (*PoolInventoryResult, error)

	// ExportPoolInventory writes the pool inventory as an .xlsx workbook to w.
	ExportPoolInventory(ctx context.Context, w io.Writer) error

	// ListCenters returns all active non-pool locations.
	ListCenters(ctx context.Context) (*CenterListResult, error)

	// ListLocationStock returns every record held at a location, zero rows included.
	ListLocationStock(ctx context.Context, locationID int) (*LocationStockResult, error)

	// ItemDistribution returns an item's records across all locations and their total.
	ItemDistribution(ctx context.Context, itemID int) (*DistributionResult, error)

	// ListMovements returns the movement journal of an item, newest first.
	// limit <= 0 uses the default page size.
	ListMovements(ctx context.Context, itemID, limit int) (*MovementListResult, error)

	// Replenish adds newly received stock to the pool.
	Replenish(ctx context.Context, req ReplenishRequest) (*StockRecordResult, error)

	// Allocate moves stock from the pool to a center. Fails with
	// *core.InsufficientStockError when the pool cannot cover the request.
	Allocate(ctx context.Context, req AllocateRequest) (*StockRecordResult, error)

	// AllocateBatch allocates one item to several centers in a single transaction.
	AllocateBatch(ctx context.Context, req AllocateBatchRequest) (*BatchResult, error)

	// Return moves stock from a center back to the pool.
	Return(ctx context.Context, req ReturnRequest) (*StockRecordResult, error)
}
