package app

import (
	"context"
	"time"

	"stock-ledger/internal/core"
	"stock-ledger/internal/events"
	"stock-ledger/internal/observability"

	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

type appService struct {
	ledger    core.LedgerService
	registry  core.LocationRegistry
	metrics   *observability.Metrics
	publisher events.Publisher
	log       *zap.Logger
}

// NewAppService constructs an appService that satisfies ApplicationService.
// metrics may be nil; a nil publisher discards events.
func NewAppService(
	ledger core.LedgerService,
	registry core.LocationRegistry,
	metrics *observability.Metrics,
	publisher events.Publisher,
	log *zap.Logger,
) ApplicationService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &appService{
		ledger:    ledger,
		registry:  registry,
		metrics:   metrics,
		publisher: publisher,
		log:       log,
	}
}

// Health resolves the pool location against the store.
func (s *appService) Health(ctx context.Context) error {
	if _, err := s.registry.ResolvePool(ctx); err != nil {
		s.log.Error("health check failed", zap.Error(err))
		return err
	}
	return nil
}

// GetQuantity returns the quantity of an item at a location.
func (s *appService) GetQuantity(ctx context.Context, itemID, locationID int) (*QuantityResult, error) {
	qty, err := s.ledger.GetQuantity(ctx, itemID, locationID)
	if err != nil {
		return nil, err
	}
	return &QuantityResult{ItemID: itemID, LocationID: locationID, Quantity: qty}, nil
}

// GetPoolQuantity returns the quantity of an item available in the pool.
func (s *appService) GetPoolQuantity(ctx context.Context, itemID int) (*QuantityResult, error) {
	qty, err := s.ledger.GetPoolQuantity(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return &QuantityResult{ItemID: itemID, LocationID: s.ledger.Pool().ID, Quantity: qty}, nil
}

// ListPoolInventory returns every item with positive pool stock.
func (s *appService) ListPoolInventory(ctx context.Context) (*PoolInventoryResult, error) {
	entries, err := s.ledger.ListPoolInventory(ctx)
	if err != nil {
		return nil, err
	}
	return &PoolInventoryResult{Pool: s.ledger.Pool(), Entries: entries}, nil
}

// ListCenters returns all active non-pool locations.
func (s *appService) ListCenters(ctx context.Context) (*CenterListResult, error) {
	centers, err := s.ledger.ListCenters(ctx)
	if err != nil {
		return nil, err
	}
	return &CenterListResult{Centers: centers}, nil
}

// ListLocationStock returns every record at a location.
func (s *appService) ListLocationStock(ctx context.Context, locationID int) (*LocationStockResult, error) {
	entries, err := s.ledger.ListLocationStock(ctx, locationID)
	if err != nil {
		return nil, err
	}
	return &LocationStockResult{LocationID: locationID, Entries: entries}, nil
}

// ItemDistribution returns an item's records across all locations.
func (s *appService) ItemDistribution(ctx context.Context, itemID int) (*DistributionResult, error) {
	dist, err := s.ledger.ItemDistribution(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return &DistributionResult{Distribution: dist}, nil
}

// ListMovements returns the movement journal of an item.
func (s *appService) ListMovements(ctx context.Context, itemID, limit int) (*MovementListResult, error) {
	moves, err := s.ledger.ListMovements(ctx, itemID, limit)
	if err != nil {
		return nil, err
	}
	return &MovementListResult{ItemID: itemID, Movements: moves}, nil
}

// Replenish adds newly received stock to the pool.
func (s *appService) Replenish(ctx context.Context, req ReplenishRequest) (res *StockRecordResult, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "replenish", started, req.ItemID, req.Quantity, err) }()

	cond, err := core.ParseCondition(req.Condition)
	if err != nil {
		return nil, err
	}
	rec, err := s.ledger.Replenish(ctx, core.ReplenishInput{
		ItemID:     req.ItemID,
		Quantity:   req.Quantity,
		UnitCost:   req.UnitCost,
		Condition:  cond,
		Provenance: req.Provenance,
		SerialTags: req.SerialTags,
		Actor:      req.Actor,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewStockMoved("replenish", req.ItemID, 0, rec.LocationID, req.Quantity, req.Actor))
	return &StockRecordResult{Record: rec}, nil
}

// Allocate moves stock from the pool to a center.
func (s *appService) Allocate(ctx context.Context, req AllocateRequest) (res *StockRecordResult, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "allocate", started, req.ItemID, req.Quantity, err) }()

	cond, err := core.ParseCondition(req.Condition)
	if err != nil {
		return nil, err
	}
	rec, err := s.ledger.Allocate(ctx, core.AllocateInput{
		ItemID:       req.ItemID,
		ToLocationID: req.ToLocationID,
		Quantity:     req.Quantity,
		UnitCost:     req.UnitCost,
		Condition:    cond,
		LocationNote: req.LocationNote,
		SerialTags:   req.SerialTags,
		Actor:        req.Actor,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewStockMoved("allocate", req.ItemID, s.ledger.Pool().ID, req.ToLocationID, req.Quantity, req.Actor))
	return &StockRecordResult{Record: rec}, nil
}

// AllocateBatch allocates one item to several centers in a single transaction.
func (s *appService) AllocateBatch(ctx context.Context, req AllocateBatchRequest) (res *BatchResult, err error) {
	started := time.Now()
	total := 0
	for _, l := range req.Lines {
		total += l.Quantity
	}
	defer func() { s.finish(ctx, "allocate_batch", started, req.ItemID, total, err) }()

	lines := make([]core.AllocationLine, len(req.Lines))
	for i, l := range req.Lines {
		cond, err := core.ParseCondition(l.Condition)
		if err != nil {
			return nil, err
		}
		lines[i] = core.AllocationLine{
			ToLocationID: l.ToLocationID,
			Quantity:     l.Quantity,
			UnitCost:     l.UnitCost,
			Condition:    cond,
			LocationNote: l.LocationNote,
		}
	}

	recs, err := s.ledger.AllocateBatch(ctx, core.AllocateBatchInput{ItemID: req.ItemID, Lines: lines, Actor: req.Actor})
	if err != nil {
		return nil, err
	}

	poolID := s.ledger.Pool().ID
	for _, l := range req.Lines {
		s.publish(ctx, events.NewStockMoved("allocate", req.ItemID, poolID, l.ToLocationID, l.Quantity, req.Actor))
	}
	return &BatchResult{Records: recs}, nil
}

// Return moves stock from a center back to the pool.
func (s *appService) Return(ctx context.Context, req ReturnRequest) (res *StockRecordResult, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "return", started, req.ItemID, req.Quantity, err) }()

	rec, err := s.ledger.Return(ctx, core.ReturnInput{
		ItemID:         req.ItemID,
		FromLocationID: req.FromLocationID,
		Quantity:       req.Quantity,
		Reason:         req.Reason,
		Actor:          req.Actor,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewStockMoved("return", req.ItemID, req.FromLocationID, rec.LocationID, req.Quantity, req.Actor))
	return &StockRecordResult{Record: rec}, nil
}

// finish records metrics and logs the outcome of a write.
func (s *appService) finish(ctx context.Context, op string, started time.Time, itemID, qty int, err error) {
	result := "ok"
	if err != nil {
		result = core.Kind(err)
	}
	if s.metrics != nil {
		s.metrics.Observe(op, result, started, qty)
	}

	fields := []zap.Field{
		zap.String("op", op),
		zap.Int("item_id", itemID),
		zap.Int("quantity", qty),
		zap.Duration("elapsed", time.Since(started)),
	}
	switch result {
	case "ok":
		s.log.Info("stock operation committed", fields...)
	case core.KindConfiguration, core.KindInternal:
		s.log.Error("stock operation failed", append(fields, zap.String("kind", result), zap.Error(err))...)
	default:
		s.log.Info("stock operation rejected", append(fields, zap.String("kind", result), zap.Error(err))...)
	}
}

// publish delivers an event after commit. The request context may already be
// canceled by the time the client disconnects, so the send gets its own deadline.
func (s *appService) publish(ctx context.Context, ev events.StockMoved) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, ev); err != nil {
		s.log.Warn("failed to publish stock event",
			zap.String("event_id", ev.ID),
			zap.String("op", ev.Op),
			zap.Int("item_id", ev.ItemID),
			zap.Error(err),
		)
	}
}
