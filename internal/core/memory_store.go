package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

type stockKey struct {
	itemID     int
	locationID int
}

// MemoryStore is an in-process StockStore. Each item has its own lock, so transfers on
// different items run in parallel while transfers on the same item are linearized.
// Writes inside InItemTx are staged and applied only on successful commit.
type MemoryStore struct {
	mu        sync.RWMutex
	items     map[int]ItemSummary
	locations map[int]Location
	records   map[stockKey]StockRecord
	touched   map[stockKey]uint64 // update sequence, orders "most recently updated"
	movements []Movement
	itemLocks map[int]chan struct{}

	seq        uint64
	nextItem   int
	nextLoc    int
	nextRecord int
	nextMove   int
	now        func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:     make(map[int]ItemSummary),
		locations: make(map[int]Location),
		records:   make(map[stockKey]StockRecord),
		touched:   make(map[stockKey]uint64),
		itemLocks: make(map[int]chan struct{}),
		now:       time.Now,
	}
}

// AddItem registers a catalog item and returns its id.
func (m *MemoryStore) AddItem(item ItemSummary) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextItem++
	item.ID = m.nextItem
	m.items[item.ID] = item
	return item.ID
}

// AddLocation registers a location and returns its id.
func (m *MemoryStore) AddLocation(code, name string, isPool bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLoc++
	m.locations[m.nextLoc] = Location{
		ID:        m.nextLoc,
		Code:      code,
		Name:      name,
		IsPool:    isPool,
		IsActive:  true,
		CreatedAt: m.now(),
	}
	return m.nextLoc
}

func (m *MemoryStore) FindLocationByCode(_ context.Context, code string) (*Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, loc := range m.locations {
		if strings.EqualFold(loc.Code, code) {
			l := loc
			return &l, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *MemoryStore) GetLocation(_ context.Context, id int) (*Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &loc, nil
}

func (m *MemoryStore) ListCenters(_ context.Context) ([]Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var centers []Location
	for _, loc := range m.locations {
		if !loc.IsPool && loc.IsActive {
			centers = append(centers, loc)
		}
	}
	sort.Slice(centers, func(i, j int) bool { return centers[i].Code < centers[j].Code })
	return centers, nil
}

func (m *MemoryStore) GetRecord(_ context.Context, itemID, locationID int) (*StockRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[stockKey{itemID, locationID}]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneRecord(rec), nil
}

func (m *MemoryStore) ListLocationRecords(_ context.Context, locationID int, positiveOnly bool) ([]PoolInventoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	type ranked struct {
		entry PoolInventoryEntry
		seq   uint64
	}
	var rows []ranked
	for key, rec := range m.records {
		if key.locationID != locationID || (positiveOnly && rec.Quantity <= 0) {
			continue
		}
		rows = append(rows, ranked{
			entry: PoolInventoryEntry{Item: m.items[key.itemID], Record: *cloneRecord(rec)},
			seq:   m.touched[key],
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	entries := make([]PoolInventoryEntry, len(rows))
	for i, r := range rows {
		entries[i] = r.entry
	}
	return entries, nil
}

func (m *MemoryStore) ListItemRecords(_ context.Context, itemID int) ([]StockRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []StockRecord
	for key, rec := range m.records {
		if key.itemID == itemID {
			out = append(out, *cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocationID < out[j].LocationID })
	return out, nil
}

func (m *MemoryStore) ListMovements(_ context.Context, itemID, limit int) ([]Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Movement
	for i := len(m.movements) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.movements[i].ItemID == itemID {
			out = append(out, m.movements[i])
		}
	}
	return out, nil
}

// InItemTx waits for the item's lock (or ctx), runs fn against a staging area, and
// applies the staged writes only if fn succeeds and ctx is still live.
func (m *MemoryStore) InItemTx(ctx context.Context, itemID int, fn func(tx StockTx) error) error {
	lock := m.itemLock(itemID)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("failed to acquire lock for item %d: %w", itemID, ctx.Err())
	}
	defer func() { <-lock }()

	tx := &memoryTx{store: m, staged: make(map[stockKey]StockRecord)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction for item %d abandoned: %w", itemID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range tx.order {
		m.seq++
		m.records[key] = tx.staged[key]
		m.touched[key] = m.seq
	}
	for _, mv := range tx.moves {
		m.nextMove++
		mv.ID = m.nextMove
		m.movements = append(m.movements, mv)
	}
	return nil
}

func (m *MemoryStore) itemLock(itemID int) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.itemLocks[itemID]
	if !ok {
		lock = make(chan struct{}, 1)
		m.itemLocks[itemID] = lock
	}
	return lock
}

type memoryTx struct {
	store  *MemoryStore
	staged map[stockKey]StockRecord
	order  []stockKey
	moves  []Movement
}

func (tx *memoryTx) Record(_ context.Context, itemID, locationID int) (*StockRecord, error) {
	key := stockKey{itemID, locationID}
	if rec, ok := tx.staged[key]; ok {
		return cloneRecord(rec), nil
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	rec, ok := tx.store.records[key]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneRecord(rec), nil
}

func (tx *memoryTx) Credit(ctx context.Context, itemID, locationID, qty int, meta StockMeta) (*StockRecord, error) {
	tx.store.mu.RLock()
	_, itemOK := tx.store.items[itemID]
	_, locOK := tx.store.locations[locationID]
	tx.store.mu.RUnlock()
	if !itemOK || !locOK {
		return nil, ErrRecordNotFound
	}

	rec, err := tx.Record(ctx, itemID, locationID)
	if errors.Is(err, ErrRecordNotFound) {
		rec = &StockRecord{ItemID: itemID, LocationID: locationID, Condition: ConditionNew}
	} else if err != nil {
		return nil, err
	}
	if rec.Quantity > MaxRecordQuantity-qty {
		return nil, fmt.Errorf("credit of %d would overflow item %d at location %d", qty, itemID, locationID)
	}
	rec.Quantity += qty
	applyMeta(rec, meta)
	return tx.stage(*rec), nil
}

func (tx *memoryTx) Debit(ctx context.Context, itemID, locationID, qty int) (*StockRecord, error) {
	rec, err := tx.Record(ctx, itemID, locationID)
	if err != nil {
		return nil, err
	}
	if rec.Quantity-qty < 0 {
		return nil, fmt.Errorf("debit of %d would leave item %d at location %d negative", qty, itemID, locationID)
	}
	rec.Quantity -= qty
	return tx.stage(*rec), nil
}

func (tx *memoryTx) AppendMovement(_ context.Context, mv Movement) error {
	mv.CreatedAt = tx.store.now()
	tx.moves = append(tx.moves, mv)
	return nil
}

// stage records the new row version. Ids are allocated eagerly, like a database
// sequence, so a rolled-back transaction may leave gaps.
func (tx *memoryTx) stage(rec StockRecord) *StockRecord {
	if rec.ID == 0 {
		tx.store.mu.Lock()
		tx.store.nextRecord++
		rec.ID = tx.store.nextRecord
		tx.store.mu.Unlock()
	}
	rec.UpdatedAt = tx.store.now()
	key := stockKey{rec.ItemID, rec.LocationID}
	if _, ok := tx.staged[key]; !ok {
		tx.order = append(tx.order, key)
	}
	tx.staged[key] = rec
	return cloneRecord(rec)
}

func applyMeta(rec *StockRecord, meta StockMeta) {
	if meta.UnitCost.Valid {
		rec.UnitCost = meta.UnitCost
	}
	if meta.Condition != "" {
		rec.Condition = meta.Condition
	}
	if meta.LocationNote != "" {
		rec.LocationNote = meta.LocationNote
	}
	if meta.SerialTags != nil {
		rec.SerialTags = dedupeTags(meta.SerialTags)
	}
	if meta.Provenance != "" {
		rec.Provenance = meta.Provenance
	}
}

// dedupeTags returns the tags as a sorted set.
func dedupeTags(tags []string) []string {
	out := slices.Clone(tags)
	slices.Sort(out)
	return slices.Compact(out)
}

func cloneRecord(rec StockRecord) *StockRecord {
	rec.SerialTags = slices.Clone(rec.SerialTags)
	return &rec
}
