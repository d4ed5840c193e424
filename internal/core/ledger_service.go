package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMovementLimit = 50
	maxMovementLimit     = 500

	// MaxRecordQuantity bounds any single stock record; quantities are int4 columns.
	MaxRecordQuantity = math.MaxInt32
)

// LedgerOptions bounds individual ledger operations. Zero values disable a bound.
type LedgerOptions struct {
	MaxTransferQuantity int
	MaxBatchLines       int
	OpTimeout           time.Duration
}

// ReplenishInput adds newly received quantity to the pool.
type ReplenishInput struct {
	ItemID     int
	Quantity   int
	UnitCost   decimal.NullDecimal
	Condition  Condition
	Provenance string
	SerialTags []string
	Actor      string
}

// AllocateInput moves quantity from the pool to a center.
type AllocateInput struct {
	ItemID       int
	ToLocationID int
	Quantity     int
	UnitCost     decimal.NullDecimal // overrides the destination's cost, may differ from the pool's
	Condition    Condition
	LocationNote string
	SerialTags   []string
	Actor        string
}

// AllocationLine is one destination of an AllocateBatch call.
type AllocationLine struct {
	ToLocationID int
	Quantity     int
	UnitCost     decimal.NullDecimal
	Condition    Condition
	LocationNote string
}

// AllocateBatchInput allocates one item to several centers in a single transaction.
type AllocateBatchInput struct {
	ItemID int
	Lines  []AllocationLine
	Actor  string
}

// ReturnInput moves quantity from a center back to the pool.
type ReturnInput struct {
	ItemID         int
	FromLocationID int
	Quantity       int
	Reason         string
	Actor          string
}

// LedgerService is the stock ledger: the read path, the availability queries, and the
// transfer engine. Every write runs in one transaction serialized per item.
type LedgerService interface {
	// Pool returns the pool location resolved at construction.
	Pool() Location

	// GetQuantity returns 0 when no record exists for the pair.
	GetQuantity(ctx context.Context, itemID, locationID int) (int, error)
	GetPoolQuantity(ctx context.Context, itemID int) (int, error)
	// ListPoolInventory returns pool records with quantity > 0, most recently updated first.
	ListPoolInventory(ctx context.Context) ([]PoolInventoryEntry, error)
	ListCenters(ctx context.Context) ([]Location, error)
	// ListLocationStock returns every record at a location, zero rows included.
	ListLocationStock(ctx context.Context, locationID int) ([]PoolInventoryEntry, error)
	ItemDistribution(ctx context.Context, itemID int) (*ItemDistribution, error)
	ListMovements(ctx context.Context, itemID, limit int) ([]Movement, error)

	// Replenish returns the updated pool record.
	Replenish(ctx context.Context, in ReplenishInput) (*StockRecord, error)
	// Allocate returns the updated destination record.
	Allocate(ctx context.Context, in AllocateInput) (*StockRecord, error)
	// AllocateBatch returns the updated destination records in line order.
	AllocateBatch(ctx context.Context, in AllocateBatchInput) ([]StockRecord, error)
	// Return returns the updated pool record.
	Return(ctx context.Context, in ReturnInput) (*StockRecord, error)
}

type ledgerService struct {
	store    StockStore
	registry LocationRegistry
	pool     Location
	opts     LedgerOptions
	tracer   trace.Tracer
}

// NewLedgerService resolves the pool once through registry and holds it for the
// lifetime of the service. A missing pool is returned as *ConfigurationError.
func NewLedgerService(ctx context.Context, store StockStore, registry LocationRegistry, opts LedgerOptions) (LedgerService, error) {
	pool, err := registry.ResolvePool(ctx)
	if err != nil {
		return nil, err
	}
	return &ledgerService{
		store:    store,
		registry: registry,
		pool:     *pool,
		opts:     opts,
		tracer:   otel.Tracer("stock-ledger/core"),
	}, nil
}

func (s *ledgerService) Pool() Location { return s.pool }

// ── Read path ─────────────────────────────────────────────────────────────────

func (s *ledgerService) GetQuantity(ctx context.Context, itemID, locationID int) (int, error) {
	if itemID <= 0 {
		return 0, invalidArg("item_id", "must be positive, got %d", itemID)
	}
	if locationID <= 0 {
		return 0, invalidArg("location_id", "must be positive, got %d", locationID)
	}
	rec, err := s.store.GetRecord(ctx, itemID, locationID)
	if errors.Is(err, ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read stock for item %d at location %d: %w", itemID, locationID, err)
	}
	return rec.Quantity, nil
}

func (s *ledgerService) GetPoolQuantity(ctx context.Context, itemID int) (int, error) {
	return s.GetQuantity(ctx, itemID, s.pool.ID)
}

func (s *ledgerService) ListPoolInventory(ctx context.Context) ([]PoolInventoryEntry, error) {
	entries, err := s.store.ListLocationRecords(ctx, s.pool.ID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list pool inventory: %w", err)
	}
	return entries, nil
}

func (s *ledgerService) ListCenters(ctx context.Context) ([]Location, error) {
	return s.registry.ListCenters(ctx)
}

func (s *ledgerService) ListLocationStock(ctx context.Context, locationID int) ([]PoolInventoryEntry, error) {
	if locationID <= 0 {
		return nil, invalidArg("location_id", "must be positive, got %d", locationID)
	}
	if _, err := s.store.GetLocation(ctx, locationID); err != nil {
		return nil, fmt.Errorf("location %d: %w", locationID, err)
	}
	entries, err := s.store.ListLocationRecords(ctx, locationID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock at location %d: %w", locationID, err)
	}
	return entries, nil
}

func (s *ledgerService) ItemDistribution(ctx context.Context, itemID int) (*ItemDistribution, error) {
	if itemID <= 0 {
		return nil, invalidArg("item_id", "must be positive, got %d", itemID)
	}
	records, err := s.store.ListItemRecords(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records for item %d: %w", itemID, err)
	}
	dist := &ItemDistribution{ItemID: itemID, Records: records}
	for _, r := range records {
		dist.Total += r.Quantity
	}
	return dist, nil
}

func (s *ledgerService) ListMovements(ctx context.Context, itemID, limit int) ([]Movement, error) {
	if itemID <= 0 {
		return nil, invalidArg("item_id", "must be positive, got %d", itemID)
	}
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	if limit > maxMovementLimit {
		limit = maxMovementLimit
	}
	moves, err := s.store.ListMovements(ctx, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements for item %d: %w", itemID, err)
	}
	return moves, nil
}

// ── Transfer engine ───────────────────────────────────────────────────────────

// Replenish adds quantity to the pool. Quantity is additive; metadata is last-write-wins.
func (s *ledgerService) Replenish(ctx context.Context, in ReplenishInput) (rec *StockRecord, err error) {
	ctx, span := s.startSpan(ctx, "ledger.replenish",
		attribute.Int("item.id", in.ItemID),
		attribute.Int("stock.quantity", in.Quantity),
	)
	defer func() { endSpan(span, err) }()

	if err := s.checkItem(in.ItemID); err != nil {
		return nil, err
	}
	if err := s.checkQuantity(in.Quantity); err != nil {
		return nil, err
	}
	if _, err := ParseCondition(string(in.Condition)); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	meta := StockMeta{
		UnitCost:   in.UnitCost,
		Condition:  in.Condition,
		Provenance: in.Provenance,
		SerialTags: in.SerialTags,
	}
	err = s.store.InItemTx(ctx, in.ItemID, func(tx StockTx) error {
		if err := s.checkHeadroom(ctx, tx, in.ItemID, s.pool, in.Quantity); err != nil {
			return err
		}
		var err error
		rec, err = tx.Credit(ctx, in.ItemID, s.pool.ID, in.Quantity, meta)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return fmt.Errorf("item %d: %w", in.ItemID, ErrRecordNotFound)
			}
			return fmt.Errorf("failed to credit pool: %w", err)
		}
		return tx.AppendMovement(ctx, Movement{
			ItemID:     in.ItemID,
			LocationID: s.pool.ID,
			Type:       MovementReplenish,
			Quantity:   in.Quantity,
			Actor:      in.Actor,
			Note:       in.Provenance,
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Allocate checks pool availability and moves quantity to a center as one unit.
func (s *ledgerService) Allocate(ctx context.Context, in AllocateInput) (rec *StockRecord, err error) {
	ctx, span := s.startSpan(ctx, "ledger.allocate",
		attribute.Int("item.id", in.ItemID),
		attribute.Int("location.to", in.ToLocationID),
		attribute.Int("stock.quantity", in.Quantity),
	)
	defer func() { endSpan(span, err) }()

	recs, err := s.allocate(ctx, in.ItemID, in.Actor, []AllocationLine{{
		ToLocationID: in.ToLocationID,
		Quantity:     in.Quantity,
		UnitCost:     in.UnitCost,
		Condition:    in.Condition,
		LocationNote: in.LocationNote,
	}}, in.SerialTags)
	if err != nil {
		return nil, err
	}
	return &recs[0], nil
}

// AllocateBatch allocates to every line or to none. The pool is checked against the
// total of all lines.
func (s *ledgerService) AllocateBatch(ctx context.Context, in AllocateBatchInput) (recs []StockRecord, err error) {
	ctx, span := s.startSpan(ctx, "ledger.allocate_batch",
		attribute.Int("item.id", in.ItemID),
		attribute.Int("batch.lines", len(in.Lines)),
	)
	defer func() { endSpan(span, err) }()

	if len(in.Lines) == 0 {
		return nil, invalidArg("lines", "at least one allocation line is required")
	}
	if s.opts.MaxBatchLines > 0 && len(in.Lines) > s.opts.MaxBatchLines {
		return nil, invalidArg("lines", "%d lines exceeds the limit of %d", len(in.Lines), s.opts.MaxBatchLines)
	}
	return s.allocate(ctx, in.ItemID, in.Actor, in.Lines, nil)
}

func (s *ledgerService) allocate(ctx context.Context, itemID int, actor string, lines []AllocationLine, serialTags []string) ([]StockRecord, error) {
	if err := s.checkItem(itemID); err != nil {
		return nil, err
	}
	total := 0
	centers := make([]*Location, len(lines))
	perCenter := make(map[int]int, len(lines))
	for i, line := range lines {
		if err := s.checkQuantity(line.Quantity); err != nil {
			return nil, err
		}
		if _, err := ParseCondition(string(line.Condition)); err != nil {
			return nil, err
		}
		center, err := s.registry.Center(ctx, line.ToLocationID)
		if err != nil {
			return nil, err
		}
		centers[i] = center
		if total > MaxRecordQuantity-line.Quantity {
			return nil, invalidArg("lines", "total quantity exceeds %d", MaxRecordQuantity)
		}
		total += line.Quantity
		perCenter[center.ID] += line.Quantity
	}
	if err := s.checkQuantity(total); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []StockRecord
	err := s.store.InItemTx(ctx, itemID, func(tx StockTx) error {
		out = make([]StockRecord, 0, len(lines))

		available, err := lockedQuantity(ctx, tx, itemID, s.pool.ID)
		if err != nil {
			return fmt.Errorf("failed to read pool stock: %w", err)
		}
		if total > available {
			return &InsufficientStockError{ItemID: itemID, LocationID: s.pool.ID, Available: available, Requested: total}
		}
		checked := make(map[int]bool, len(perCenter))
		for _, center := range centers {
			if checked[center.ID] {
				continue
			}
			checked[center.ID] = true
			if err := s.checkHeadroom(ctx, tx, itemID, *center, perCenter[center.ID]); err != nil {
				return err
			}
		}

		if _, err := tx.Debit(ctx, itemID, s.pool.ID, total); err != nil {
			return fmt.Errorf("failed to debit pool: %w", err)
		}
		for i, line := range lines {
			dest, err := tx.Credit(ctx, itemID, line.ToLocationID, line.Quantity, StockMeta{
				UnitCost:     line.UnitCost,
				Condition:    line.Condition,
				LocationNote: line.LocationNote,
				SerialTags:   serialTags,
			})
			if err != nil {
				return fmt.Errorf("failed to credit location %s: %w", centers[i].Code, err)
			}
			out = append(out, *dest)

			note := fmt.Sprintf("allocated to %s", centers[i].Code)
			if err := tx.AppendMovement(ctx, Movement{
				ItemID: itemID, LocationID: s.pool.ID, Type: MovementAllocateOut,
				Quantity: -line.Quantity, Actor: actor, Note: note,
			}); err != nil {
				return err
			}
			if err := tx.AppendMovement(ctx, Movement{
				ItemID: itemID, LocationID: line.ToLocationID, Type: MovementAllocateIn,
				Quantity: line.Quantity, Actor: actor, Note: line.LocationNote,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Return moves quantity from a center back to the pool. The pool record takes the
// source's condition and cost; provenance records the origin and reason.
func (s *ledgerService) Return(ctx context.Context, in ReturnInput) (rec *StockRecord, err error) {
	ctx, span := s.startSpan(ctx, "ledger.return",
		attribute.Int("item.id", in.ItemID),
		attribute.Int("location.from", in.FromLocationID),
		attribute.Int("stock.quantity", in.Quantity),
	)
	defer func() { endSpan(span, err) }()

	if err := s.checkItem(in.ItemID); err != nil {
		return nil, err
	}
	if err := s.checkQuantity(in.Quantity); err != nil {
		return nil, err
	}
	center, err := s.registry.Center(ctx, in.FromLocationID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	provenance := "returned from " + center.Code
	if in.Reason != "" {
		provenance += ": " + in.Reason
	}

	err = s.store.InItemTx(ctx, in.ItemID, func(tx StockTx) error {
		src, err := tx.Record(ctx, in.ItemID, center.ID)
		if errors.Is(err, ErrRecordNotFound) {
			return fmt.Errorf("no stock of item %d at location %s: %w", in.ItemID, center.Code, ErrRecordNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read source stock: %w", err)
		}
		if in.Quantity > src.Quantity {
			return &InsufficientStockError{ItemID: in.ItemID, LocationID: center.ID, Available: src.Quantity, Requested: in.Quantity}
		}

		if err := s.checkHeadroom(ctx, tx, in.ItemID, s.pool, in.Quantity); err != nil {
			return err
		}

		if _, err := tx.Debit(ctx, in.ItemID, center.ID, in.Quantity); err != nil {
			return fmt.Errorf("failed to debit location %s: %w", center.Code, err)
		}
		rec, err = tx.Credit(ctx, in.ItemID, s.pool.ID, in.Quantity, StockMeta{
			UnitCost:   src.UnitCost,
			Condition:  src.Condition,
			Provenance: provenance,
		})
		if err != nil {
			return fmt.Errorf("failed to credit pool: %w", err)
		}

		if err := tx.AppendMovement(ctx, Movement{
			ItemID: in.ItemID, LocationID: center.ID, Type: MovementReturnOut,
			Quantity: -in.Quantity, Actor: in.Actor, Note: in.Reason,
		}); err != nil {
			return err
		}
		return tx.AppendMovement(ctx, Movement{
			ItemID: in.ItemID, LocationID: s.pool.ID, Type: MovementReturnIn,
			Quantity: in.Quantity, Actor: in.Actor, Note: provenance,
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// lockedQuantity reads a record inside the transaction, treating absence as zero.
func lockedQuantity(ctx context.Context, tx StockTx, itemID, locationID int) (int, error) {
	rec, err := tx.Record(ctx, itemID, locationID)
	if errors.Is(err, ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Quantity, nil
}

// checkHeadroom rejects a credit that would push a record past MaxRecordQuantity.
func (s *ledgerService) checkHeadroom(ctx context.Context, tx StockTx, itemID int, loc Location, add int) error {
	have, err := lockedQuantity(ctx, tx, itemID, loc.ID)
	if err != nil {
		return fmt.Errorf("failed to read stock at location %s: %w", loc.Code, err)
	}
	if have > MaxRecordQuantity-add {
		return invalidArg("quantity", "%d more would raise item %d at location %s above %d", add, itemID, loc.Code, MaxRecordQuantity)
	}
	return nil
}

func (s *ledgerService) checkItem(itemID int) error {
	if itemID <= 0 {
		return invalidArg("item_id", "must be positive, got %d", itemID)
	}
	return nil
}

func (s *ledgerService) checkQuantity(qty int) error {
	if qty <= 0 {
		return invalidArg("quantity", "must be positive, got %d", qty)
	}
	if qty > MaxRecordQuantity {
		return invalidArg("quantity", "%d exceeds %d", qty, MaxRecordQuantity)
	}
	if s.opts.MaxTransferQuantity > 0 && qty > s.opts.MaxTransferQuantity {
		return invalidArg("quantity", "%d exceeds the per-operation limit of %d", qty, s.opts.MaxTransferQuantity)
	}
	return nil
}

func (s *ledgerService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.OpTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.OpTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *ledgerService) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name)
	span.SetAttributes(attrs...)
	span.SetAttributes(attribute.Int("location.pool", s.pool.ID))
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Kind(err))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
