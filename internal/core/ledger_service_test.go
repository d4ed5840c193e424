package core_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"stock-ledger/internal/core"

	"github.com/shopspring/decimal"
)

type ledgerFixture struct {
	ctx     context.Context
	store   *core.MemoryStore
	ledger  core.LedgerService
	poolID  int
	centerA int
	centerB int
	itemX   int
	itemY   int
}

// setupMemoryLedger builds a ledger over an in-memory store with one pool, two centers
// and two catalog items.
func setupMemoryLedger(t *testing.T, opts core.LedgerOptions) *ledgerFixture {
	t.Helper()
	ctx := context.Background()
	store := core.NewMemoryStore()

	f := &ledgerFixture{ctx: ctx, store: store}
	f.poolID = store.AddLocation("CENTRAL", "Central Warehouse", true)
	f.centerA = store.AddLocation("CTR-A", "Center A", false)
	f.centerB = store.AddLocation("CTR-B", "Center B", false)
	f.itemX = store.AddItem(core.ItemSummary{Code: "X-100", Name: "Projector", Category: "AV"})
	f.itemY = store.AddItem(core.ItemSummary{Code: "Y-200", Name: "Whiteboard", Category: "Furniture"})

	ledger, err := core.NewLedgerService(ctx, store, core.NewLocationRegistry(store, "CENTRAL"), opts)
	if err != nil {
		t.Fatalf("NewLedgerService failed: %v", err)
	}
	f.ledger = ledger
	return f
}

func (f *ledgerFixture) qty(t *testing.T, itemID, locationID int) int {
	t.Helper()
	q, err := f.ledger.GetQuantity(f.ctx, itemID, locationID)
	if err != nil {
		t.Fatalf("GetQuantity(%d, %d) failed: %v", itemID, locationID, err)
	}
	return q
}

func (f *ledgerFixture) replenish(t *testing.T, itemID, qty int) {
	t.Helper()
	if _, err := f.ledger.Replenish(f.ctx, core.ReplenishInput{ItemID: itemID, Quantity: qty}); err != nil {
		t.Fatalf("Replenish(%d, %d) failed: %v", itemID, qty, err)
	}
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestLedger_Scenario(t *testing.T) {
	f := setupMemoryLedger(t, core.LedgerOptions{})

	f.replenish(t, f.itemX, 10)
	if got := f.qty(t, f.itemX, f.poolID); got != 10 {
		t.Fatalf("Expected pool=10 after replenish, got %d", got)
	}

	if _, err := f.ledger.Allocate(f.ctx, core.AllocateInput{ItemID: f.itemX, ToLocationID: f.centerA, Quantity: 4}); err != nil {
		t.Fatalf("Allocate to A failed: %v", err)
	}
	if got := f.qty(t, f.itemX, f.poolID); got != 6 {
		t.Errorf("Expected pool=6, got %d", got)
	}
	if got := f.qty(t, f.itemX, f.centerA); got != 4 {
		t.Errorf("Expected A=4, got %d", got)
	}

	_, err := f.ledger.Allocate(f.ctx, core.AllocateInput{ItemID: f.itemX, ToLocationID: f.centerB, Quantity: 7})
	var insufficient *core.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	if insufficient.Available != 6 || insufficient.Requested != 7 {
		t.Errorf("Expected shortfall {available:6, requested:7}, got {%d, %d}", insufficient.Available, insufficient.Requested)
	}
	if got := f.qty(t, f.itemX, f.poolID); got != 6 {
		t.Errorf("Expected pool to remain 6, got %d", got)
	}

	rec, err := f.ledger.Return(f.ctx, core.ReturnInput{ItemID: f.itemX, FromLocationID: f.centerA, Quantity: 2})
	if err != nil {
		t.Fatalf("Return failed: %v", err)
	}
	if rec.LocationID != f.poolID || rec.Quantity != 8 {
		t.Errorf("Expected returned pool record with quantity 8, got location %d qty %d", rec.LocationID, rec.Quantity)
	}
	if got := f.qty(t, f.itemX, f.centerA); got != 2 {
		t.Errorf("Expected A=2, got %d", got)
	}
}

func TestLedger_ReplenishAdditiveQuantityLastWriteMetadata(t *testing.T) {
	f := setupMemoryLedger(t, core.LedgerOptions{})

	_, err := f.ledger.Replenish(f.ctx, core.ReplenishInput{
		ItemID:     f.itemX,
		Quantity:   5,
		UnitCost:   decimal.NewNullDecimal(decimal.RequireFromString("12.50")),
		Condition:  core.ConditionGood,
		Provenance: "INV-001",
	})
	if err != nil {
		t.Fatalf("First replenish failed: %v", err)
	}
	rec, err := f.ledger.Replenish(f.ctx, core.ReplenishInput{
		ItemID:     f.itemX,
		Quantity:   3,
		UnitCost:   decimal.NewNullDecimal(decimal.RequireFromString("14.00")),
		Condition:  core.ConditionFair,
		Provenance: "INV-002",
	})
	if err != nil {
		t.Fatalf("Second replenish failed: %v", err)
	}

	if rec.Quantity != 8 {
		t.Errorf("Expected quantity 8, got %d", rec.Quantity)
	}
	if !rec.UnitCost.Valid || !rec.UnitCost.Decimal.Equal(decimal.RequireFromString("14")) {
		t.Errorf("Expected unit cost 14.00, got %v", rec.UnitCost)
	}
	if rec.Condition != core.ConditionFair {
		t.Errorf("Expected condition FAIR, got %s", rec.Condition)
	}
	if rec.Provenance != "INV-002" {
		t.Errorf("Expected provenance INV-002, got %q", rec.Provenance)
	}

	// A replenish without metadata keeps the previous values.
	rec, err = f.ledger.Replenish(f.ctx, core.ReplenishInput{ItemID: f.itemX, Quantity: 1})
	if err != nil {
		t.Fatalf("Third replenish failed: %v", err)
	}
	if rec.Quantity != 9 || rec.Condition != core.ConditionFair || rec.Provenance != "INV-002" {
		t.Errorf("Expected metadata to survive a bare replenish, got %+v", rec)
	}
}

func TestLedger_AllocateShortfallLeavesRecordsUnchanged(t *testing.T) {
	f := setupMemoryLedger(t, core.LedgerOptions{})
	f.replenish(t, f.itemX, 3)

	_, err := f.ledger.Allocate(f.ctx, core.AllocateInput{ItemID: f.itemX, ToLocationID: f.centerA, Quantity: 10})
	if core.Kind(err) != core.KindInsufficientStock {
		t.Fatalf("Expected %s, got %v", core.KindInsufficientStock, err)
	}
	if got := f.qty(t, f.itemX, f.poolID); got != 3 {
		t.Errorf("Expected pool unchanged at 3, got %d", got)
	}
	if _, err := f.store.GetRecord(f.ctx, f.itemX, f.centerA); !errors.Is(err, core.ErrRecordNotFound) {
		t.Errorf("Expected no destination record after failed allocate, got %v", err)
	}
}

func TestLedger_AllocateFromEmptyPool(t *testing.T) {
	f := setupMemoryLedger(t, core.LedgerOptions{})

	_, err := f.ledger.Allocate(f.ctx, core.AllocateInput{ItemID: f.itemY, ToLocationID: f.centerA, Quantity: 1})
	var insufficient *core.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	if insufficient.Available != 0 || insufficient.Shortfall() != 1 {
		t.Errorf("Expected available 0 and shortfall 1, got %+v", insufficient)
	}
}

func TestLedger_ReturnShortfallLeavesRecordsUnchanged(t *testing.T) {
	f := setupMemoryLedger(t, core.LedgerOptions{})
	f.replenish(t, f.itemX, 10)
	if _, err := f.ledger.Allocate(f.ctx, core.AllocateInput{ItemID: f.itemX, ToLocationID: f.centerA, Quantity: 4}); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	_, err := f.ledger.Return(f.ctx, core.ReturnInput{ItemID: f.itemX, FromLocationID: f.centerA, Quantity: 5})
	var insufficient *core.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	if insufficient.Available != 4 || insufficient.LocationID != f.centerA {
		t.Errorf("Expected shortfall reported against center A with 4 available, got %+v", insufficient)
	}
	if got := f.qty(t, f.itemX, f.centerA); got != 4 {
		t.Errorf("Expected A unchanged at 4, got %d", got)
	}
	if got := f.qty(t, f.itemX, f.poolID); got != 6 {
		t.Errorf("Expected pool unchanged at 6, got %d", got)
	}
}

func TestLedger_ReturnNeverAllocated(t *testing.T) {
	f := setupMemoryLedger(t, core.LedgerOptions{})
	f.replenish(t, f.itemX, 10)

	_, err := f.ledger.Return(f.ctx, core.ReturnInput{ItemID: f.itemX, FromLocationID: f.centerB, Quantity: 1})
	if !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("Expected ErrRecordNotFound, got %v", err)
	}
	if got := f.qty(t, f.itemX, f.poolID); got != 10 {
		t.Errorf("Expected pool unchanged at 10, got %d", got)
	}
}

func TestLedger_ReturnCarriesSourceMetadata(t *testing.T) {
	f := setupMemoryLedger(t, core.LedgerOptions{})
	f.replenish(t, f.itemX, 5)

	_, err := f.ledger.Allocate(f.ctx, core.AllocateInput{
		ItemID:       f.itemX,
		ToLocationID: f.centerA,
		Quantity:     5,
		UnitCost:     decimal.NewNullDecimal(decimal.NewFromInt(99)),
		Condition:    core.ConditionPoor,
		LocationNote: "Room 12",
	})
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	rec, err := f.ledger.Return(f.ctx, core.ReturnInput{ItemID: f.itemX, FromLocationID: f.centerA, Quantity: 2, Reason: "damaged"})
	if err != nil {
		t.Fatalf("Return failed: %v", err)
	}
	if rec.Condition != core.ConditionPoor {
		t.Errorf("Expected pool condition POOR from source, got %s", rec.Condition)
	}
	if !rec.UnitCost.Valid || !rec.UnitCost.Decimal.Equal(decimal.NewFromInt(99)) {
		t.Errorf("Expected pool cost 99 from source, got %v", rec.UnitCost)
	}
	if rec.Provenance != "returned from CTR-A: damaged" {
		t.Errorf("Unexpected provenance %q", rec.Provenance)
	}
}

func TestLedger_ZeroQuantityRecordsArePreserved(t *testing.T) {
	f := setupMemoryLedger(t, core.LedgerOptions{})
	f.replenish(t, f.itemX, 2)
	if _, err := f.ledger.Allocate(f.ctx, core.AllocateInput{ItemID: f.itemX, ToLocationID: f.centerA, Quantity: 2, LocationNote: "Lab"}); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if _, err := f.ledger.Return(f.ctx, core.ReturnInput{ItemID: f.itemX, FromLocationID: f.centerA, Quantity: 2}); err != nil {
		t.Fatalf("Return failed: %v", err)
	}

	rec, err := f.store.GetRecord(f.ctx, f.itemX, f.centerA)
	if err != nil {
		t.Fatalf("Expected zero-quantity record to remain, got %v", err)
	}
	if rec.Quantity != 0 || rec.LocationNote != "Lab" {
		t.Errorf("Expected qty 0 with note preserved, got %+v", rec)
	}
}

func TestLedger_InvalidArguments(t *testing.T) {
	f := setupMemoryLedger(t, core.LedgerOptions{MaxTransferQuantity: 100})
	f.replenish(t, f.itemX, 10)

	cases := []struct {
		name string
		call func() error
	}{
		{"replenish zero", func() error {
			_, err := f.ledger.Replenish(f.ctx, core.ReplenishInput{ItemID: f.itemX, Quantity: 0})
			return err
		}},
		{"replenish negative", func() error {
			_, err := f.ledger.Replenish(f.ctx, core.ReplenishInput{ItemID: f.itemX, Quantity: -3})
			return err
		}},
		{"replenish over limit", func() error {
			_, err := f.ledger.Replenish(f.ctx, core.ReplenishInput{ItemID: f.itemX, Quantity: 101})
			return err
		}},
		{"replenish bad condition", func() error {
			_, err := f.ledger.Replenish(f.ctx, core.ReplenishInput{ItemID: f.itemX, Quantity: 1, Condition: "SHINY"})
			return err
		}},
		{"allocate to pool", func() error {
			_, err := f.ledger.Allocate(f.ctx, core.AllocateInput{ItemID: f.itemX, ToLocationID: f.poolID, Quantity: 1})
			return err
		}},
		{"allocate bad item id", func() error {
			_, err := f.ledger.Allocate(f.ctx, core.AllocateInput{ItemID: 0, ToLocationID: f.centerA, Quantity: 1})
			return err
		}},
		{"allocate zero", func() error {
			_, err := f.ledger.Allocate(f.ctx, core.AllocateInput{ItemID: f.itemX, ToLocationID: f.centerA, Quantity: 0})
			return err
		}},
		{"return from pool", func() error {
			_, err := f.ledger.Return(f.ctx, core.ReturnInput{ItemID: f.itemX, FromLocationID: f.poolID, Quantity: 1})
			return err
		}},
		{"return negative", func() error {
			_, err := f.ledger.Return(f.ctx, core.ReturnInput{ItemID: f.itemX, FromLocationID: f.centerA, Quantity: -1})
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			var invalid *core.InvalidArgumentError
			if !errors.As(err, &invalid) {
				t.Errorf("Expected InvalidArgumentError, got %v", err)
			}
		})
	}

	if got := f.qty(t, f.itemX, f.poolID); got != 10 {
		t.Errorf("Expected pool unchanged at 10 after rejected calls, got %d", got)
	}
}

func TestLedger_QuantityOverflowRejected(t *testing.T) {
	f := setupMemoryLedger(t, core.LedgerOptions{})

	if _, err := f.ledger.Replenish(f.ctx, core.ReplenishInput{ItemID: f.itemX, Quantity: math.MaxInt}); core.Kind(err) != core.KindInvalidArgument {
		t.Errorf("Expected MaxInt replenish to be rejected, got %v", err)
	}

	f.replenish(t, f.itemX, core.MaxRecordQuantity-2)
	if _, err := f.ledger.Replenish(f.ctx, core.ReplenishInput{ItemID: f.itemX, Quantity: 5}); core.Kind(err) != core.KindInvalidArgument {
		t.Errorf("Expected replenish past the record limit to be rejected, got %v", err)
	}
	if got := f.qty(t, f.itemX, f.poolID); got != core.MaxRecordQuantity-2 {
		t.Errorf("Expected pool unchanged at %d, got %d", core.MaxRecordQuantity-2, got)
	}

	big := core.MaxRecordQuantity / 2
	_, err := f.ledger.AllocateBatch(f.ctx, core.AllocateBatchInput{
		ItemID: f.itemX,
		Lines: []core.AllocationLine{
			{ToLocationID: f.centerA, Quantity: big},
			{ToLocationID: f.centerB, Quantity: big},
			{ToLocationID: f.centerA, Quantity: big},
		},
	})
	if core.Kind(err) != core.KindInvalidArgument {
		t.Errorf("Expected batch total past the record limit to be rejected, got %v", err)
	}

	// A return that would overflow the pool leaves both records untouched.
	f.replenish(t, f.itemY, core.MaxRecordQuantity)
	if _, err := f.ledger.Allocate(f.ctx, core.AllocateInput{ItemID: f.itemY, ToLocationID: f.centerA, Quantity: 10}); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	f.replenish(t, f.itemY, 10)
	if _, err := f.ledger.Return(f.ctx, core.ReturnInput{ItemID: f.itemY, FromLocationID: f.centerA, Quantity: 1}); core.Kind(err) != core.KindInvalidArgument {
		t.Errorf("Expected return past the record limit to be rejected, got %v", err)
	}
	if f.qty(t, f.itemY, f.poolID) != core.MaxRecordQuantity || f.qty(t, f.itemY, f.centerA) != 10 {
		t.Error("Expected rejected return to leave records unchanged")
	}
}

func TestLedger_UnknownReferences(t *testing.T) {
	f := setupMemoryLedger(t, core.LedgerOptions{})

	if _, err := f.ledger.Replenish(f.ctx, core.ReplenishInput{ItemID: 999, Quantity: 1}); !errors.Is(err, core.ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound for unknown item, got %v", err)
	}
	f.replenish(t, f.itemX, 1)
	if _, err := f.ledger.Allocate(f.ctx, core.AllocateInput{ItemID: f.itemX, ToLocationID: 999, Quantity: 1}); !errors.Is(err, core.ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound for unknown center, got %v", err)
	}
}

func TestLedger_MissingPoolIsConfigurationError(t *testing.T) {
	store := core.NewMemoryStore()
	store.AddLocation("CTR-A", "Center A", false)

	_, err := core.NewLedgerService(context.Background(), store, core.NewLocationRegistry(store, "CENTRAL"), core.LedgerOptions{})
	var cfgErr *core.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
	if !strings.HasPrefix(cfgErr.Msg, "pool not provisioned") || !strings.Contains(cfgErr.Msg, "CENTRAL") {
		t.Errorf("Unexpected message %q", cfgErr.Msg)
	}

	// A location with the pool code that is not flagged as the pool is also a setup fault.
	_, err = core.NewLedgerService(context.Background(), store, core.NewLocationRegistry(store, "CTR-A"), core.LedgerOptions{})
	if core.Kind(err) != core.KindConfiguration {
		t.Errorf("Expected %s for non-pool location, got %v", core.KindConfiguration, err)
	}
}

func TestLedger_ConcurrentAllocate(t *testing.T) {
	const (
		stock    = 20
		requests = 50
	)
	f := setupMemoryLedger(t, core.LedgerOptions{})
	f.replenish(t, f.itemX, stock)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successes    int
		insufficient int
		unexpected   []error
	)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dest := f.centerA
			if i%2 == 1 {
				dest = f.centerB
			}
			_, err := f.ledger.Allocate(f.ctx, core.AllocateInput{ItemID: f.itemX, ToLocationID: dest, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			switch core.Kind(err) {
			case "":
				successes++
			case core.KindInsufficientStock:
				insufficient++
			default:
				unexpected = append(unexpected, err)
			}
		}(i)
	}
	wg.Wait()

	if len(unexpected) > 0 {
		t.Fatalf("Unexpected errors: %v", unexpected)
	}
	if successes != stock {
		t.Errorf("Expected exactly %d successes, got %d", stock, successes)
	}
	if insufficient != requests-stock {
		t.Errorf("Expected %d InsufficientStock failures, got %d", requests-stock, insufficient)
	}
	if got := f.qty(t, f.itemX, f.poolID); got != 0 {
		t.Errorf("Expected pool=0, got %d", got)
	}
	if got := f.qty(t, f.itemX, f.centerA) + f.qty(t, f.itemX, f.centerB); got != stock {
		t.Errorf("Expected centers to hold %d in total, got %d", stock, got)
	}
}

func TestLedger_ConservationUnderRandomOperations(t *testing.T) {
	f := setupMemoryLedger(t, core.LedgerOptions{})
	rng := rand.New(rand.NewSource(7))
	centers := []int{f.centerA, f.centerB}

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		replenished = map[int]int{}
	)
	for w := 0; w < 8; w++ {
		seed := rng.Int63()
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 200; i++ {
				item := f.itemX
				if r.Intn(2) == 1 {
					item = f.itemY
				}
				center := centers[r.Intn(len(centers))]
				qty := r.Intn(5) + 1
				switch r.Intn(3) {
				case 0:
					if _, err := f.ledger.Replenish(f.ctx, core.ReplenishInput{ItemID: item, Quantity: qty}); err == nil {
						mu.Lock()
						replenished[item] += qty
						mu.Unlock()
					}
				case 1:
					_, _ = f.ledger.Allocate(f.ctx, core.AllocateInput{ItemID: item, ToLocationID: center, Quantity: qty})
				case 2:
					_, _ = f.ledger.Return(f.ctx, core.ReturnInput{ItemID: item, FromLocationID: center, Quantity: qty})
				}
			}
		}()
	}
	wg.Wait()

	for _, item := range []int{f.itemX, f.itemY} {
		dist, err := f.ledger.ItemDistribution(f.ctx, item)
		if err != nil {
			t.Fatalf("ItemDistribution failed: %v", err)
		}
		for _, rec := range dist.Records {
			if rec.Quantity < 0 {
				t.Errorf("Negative quantity %d for item %d at location %d", rec.Quantity, item, rec.LocationID)
			}
		}
		if dist.Total != replenished[item] {
			t.Errorf("Conservation violated for item %d: total %d, replenished %d", item, dist.Total, replenished[item])
		}
	}
}

func TestLedger_ListPoolInventory(t *testing.T) {
	f := setupMemoryLedger(t, core.LedgerOptions{})
	f.replenish(t, f.itemX, 3)
	f.replenish(t, f.itemY, 2)

	entries, err := f.ledger.ListPoolInventory(f.ctx)
	if err != nil {
		t.Fatalf("ListPoolInventory failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Item.Code != "Y-200" {
		t.Errorf("Expected most recently updated item first, got %s", entries[0].Item.Code)
	}

	// Draining X removes it from the listing; touching Y keeps it first.
	if _, err := f.ledger.Allocate(f.ctx, core.AllocateInput{ItemID: f.itemX, ToLocationID: f.centerA, Quantity: 3}); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	entries, err = f.ledger.ListPoolInventory(f.ctx)
	if err != nil {
		t.Fatalf("ListPoolInventory failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Item.Code != "Y-200" || entries[0].Record.Quantity != 2 {
		t.Errorf("Expected only Y with quantity 2, got %+v", entries)
	}
}

func TestLedger_AllocateBatch(t *testing.T) {
	f := setupMemoryLedger(t, core.LedgerOptions{MaxBatchLines: 3})
	f.replenish(t, f.itemX, 10)

	recs, err := f.ledger.AllocateBatch(f.ctx, core.AllocateBatchInput{
		ItemID: f.itemX,
		Lines: []core.AllocationLine{
			{ToLocationID: f.centerA, Quantity: 3},
			{ToLocationID: f.centerB, Quantity: 4},
		},
	})
	if err != nil {
		t.Fatalf("AllocateBatch failed: %v", err)
	}
	if len(recs) != 2 || recs[0].Quantity != 3 || recs[1].Quantity != 4 {
		t.Errorf("Unexpected batch result %+v", recs)
	}

	// The remaining 3 units cannot cover 2+2; nothing is applied.
	_, err = f.ledger.AllocateBatch(f.ctx, core.AllocateBatchInput{
		ItemID: f.itemX,
		Lines: []core.AllocationLine{
			{ToLocationID: f.centerA, Quantity: 2},
			{ToLocationID: f.centerB, Quantity: 2},
		},
	})
	var insufficient *core.InsufficientStockError
	if !errors.As(err, &insufficient) || insufficient.Requested != 4 || insufficient.Available != 3 {
		t.Fatalf("Expected shortfall {3, 4}, got %v", err)
	}
	if f.qty(t, f.itemX, f.poolID) != 3 || f.qty(t, f.itemX, f.centerA) != 3 || f.qty(t, f.itemX, f.centerB) != 4 {
		t.Error("Expected failed batch to leave every record unchanged")
	}

	_, err = f.ledger.AllocateBatch(f.ctx, core.AllocateBatchInput{
		ItemID: f.itemX,
		Lines:  make([]core.AllocationLine, 4),
	})
	if core.Kind(err) != core.KindInvalidArgument {
		t.Errorf("Expected batch over the line limit to be rejected, got %v", err)
	}
}

func TestLedger_CanceledContextAppliesNothing(t *testing.T) {
	f := setupMemoryLedger(t, core.LedgerOptions{})
	f.replenish(t, f.itemX, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ledger.Allocate(ctx, core.AllocateInput{ItemID: f.itemX, ToLocationID: f.centerA, Quantity: 2})
	if core.Kind(err) != core.KindCanceled {
		t.Fatalf("Expected %s, got %v", core.KindCanceled, err)
	}
	if got := f.qty(t, f.itemX, f.poolID); got != 5 {
		t.Errorf("Expected pool unchanged at 5, got %d", got)
	}
	if got := f.qty(t, f.itemX, f.centerA); got != 0 {
		t.Errorf("Expected no allocation at A, got %d", got)
	}
}

func TestLedger_Movements(t *testing.T) {
	f := setupMemoryLedger(t, core.LedgerOptions{})
	if _, err := f.ledger.Replenish(f.ctx, core.ReplenishInput{ItemID: f.itemX, Quantity: 5, Actor: "receiver"}); err != nil {
		t.Fatalf("Replenish failed: %v", err)
	}
	if _, err := f.ledger.Allocate(f.ctx, core.AllocateInput{ItemID: f.itemX, ToLocationID: f.centerA, Quantity: 2, Actor: "ops"}); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	moves, err := f.ledger.ListMovements(f.ctx, f.itemX, 0)
	if err != nil {
		t.Fatalf("ListMovements failed: %v", err)
	}
	want := []core.MovementType{core.MovementAllocateIn, core.MovementAllocateOut, core.MovementReplenish}
	if len(moves) != len(want) {
		t.Fatalf("Expected %d movements, got %d", len(want), len(moves))
	}
	sum := 0
	for i, m := range moves {
		if m.Type != want[i] {
			t.Errorf("Movement %d: expected %s, got %s", i, want[i], m.Type)
		}
		sum += m.Quantity
	}
	if sum != 5 {
		t.Errorf("Expected signed movements to sum to the replenished 5, got %d", sum)
	}
	if moves[0].Actor != "ops" {
		t.Errorf("Expected actor ops on allocation, got %q", moves[0].Actor)
	}
}
