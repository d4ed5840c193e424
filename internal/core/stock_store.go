package core

import "context"

// StockStore is the persistence boundary of the ledger. Reads are always computed fresh;
// every mutation goes through InItemTx.
type StockStore interface {
	// FindLocationByCode returns ErrRecordNotFound if no location has the code.
	FindLocationByCode(ctx context.Context, code string) (*Location, error)
	// GetLocation returns ErrRecordNotFound if the location does not exist.
	GetLocation(ctx context.Context, id int) (*Location, error)
	// ListCenters returns active non-pool locations ordered by code.
	ListCenters(ctx context.Context) ([]Location, error)

	// GetRecord returns ErrRecordNotFound when no record exists for the pair.
	GetRecord(ctx context.Context, itemID, locationID int) (*StockRecord, error)
	// ListLocationRecords returns the records held at a location joined with their item
	// summaries, most recently updated first. positiveOnly drops zero-quantity rows.
	ListLocationRecords(ctx context.Context, locationID int, positiveOnly bool) ([]PoolInventoryEntry, error)
	// ListItemRecords returns every record of an item ordered by location id.
	ListItemRecords(ctx context.Context, itemID int) ([]StockRecord, error)
	// ListMovements returns journal rows for an item, newest first.
	ListMovements(ctx context.Context, itemID, limit int) ([]Movement, error)

	// InItemTx runs fn in a single transaction that holds the item's exclusive lock.
	// If fn returns an error, or ctx is done before commit, nothing is applied.
	InItemTx(ctx context.Context, itemID int, fn func(tx StockTx) error) error
}

// StockTx is the set of mutations available inside InItemTx.
type StockTx interface {
	// Record returns the current record for the pair, or ErrRecordNotFound.
	Record(ctx context.Context, itemID, locationID int) (*StockRecord, error)
	// Credit finds-or-creates the record, adds qty, and applies non-zero meta fields.
	// Returns ErrRecordNotFound if the item or location does not exist.
	Credit(ctx context.Context, itemID, locationID, qty int, meta StockMeta) (*StockRecord, error)
	// Debit subtracts qty from an existing record. Callers check availability first.
	Debit(ctx context.Context, itemID, locationID, qty int) (*StockRecord, error)
	// AppendMovement writes a journal row.
	AppendMovement(ctx context.Context, m Movement) error
}
