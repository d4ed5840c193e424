package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

const stockRecordColumns = `sr.id, sr.item_id, sr.location_id, sr.quantity, sr.unit_cost, sr.condition,
	sr.location_note, sr.serial_tags, COALESCE(sr.provenance, ''), sr.updated_at`

// PostgresStore is the StockStore backed by the stock_records and stock_movements tables.
// InItemTx takes a transaction-scoped advisory lock keyed on the item id, so every
// transfer touching the same item is linearized regardless of which rows it locks.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps a connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) FindLocationByCode(ctx context.Context, code string) (*Location, error) {
	var l Location
	err := s.pool.QueryRow(ctx, `
		SELECT id, code, name, is_pool, is_active, created_at
		FROM locations
		WHERE code = $1
	`, code).Scan(&l.ID, &l.Code, &l.Name, &l.IsPool, &l.IsActive, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to fetch location %s: %w", code, err)
	}
	return &l, nil
}

func (s *PostgresStore) GetLocation(ctx context.Context, id int) (*Location, error) {
	var l Location
	err := s.pool.QueryRow(ctx, `
		SELECT id, code, name, is_pool, is_active, created_at
		FROM locations
		WHERE id = $1
	`, id).Scan(&l.ID, &l.Code, &l.Name, &l.IsPool, &l.IsActive, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to fetch location %d: %w", id, err)
	}
	return &l, nil
}

func (s *PostgresStore) ListCenters(ctx context.Context) ([]Location, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, name, is_pool, is_active, created_at
		FROM locations
		WHERE is_pool = false AND is_active = true
		ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query centers: %w", err)
	}
	defer rows.Close()

	var centers []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.Code, &l.Name, &l.IsPool, &l.IsActive, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		centers = append(centers, l)
	}
	return centers, rows.Err()
}

func (s *PostgresStore) GetRecord(ctx context.Context, itemID, locationID int) (*StockRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+stockRecordColumns+`
		FROM stock_records sr
		WHERE sr.item_id = $1 AND sr.location_id = $2
	`, itemID, locationID)
	return scanRecordRow(row)
}

func (s *PostgresStore) ListLocationRecords(ctx context.Context, locationID int, positiveOnly bool) ([]PoolInventoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT i.id, i.code, i.name, i.category, i.default_unit_cost,
		       `+stockRecordColumns+`
		FROM stock_records sr
		JOIN items i ON i.id = sr.item_id
		WHERE sr.location_id = $1
		  AND ($2 = false OR sr.quantity > 0)
		ORDER BY sr.updated_at DESC, sr.id DESC
	`, locationID, positiveOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock at location %d: %w", locationID, err)
	}
	defer rows.Close()

	var entries []PoolInventoryEntry
	for rows.Next() {
		var e PoolInventoryEntry
		r := &e.Record
		if err := rows.Scan(
			&e.Item.ID, &e.Item.Code, &e.Item.Name, &e.Item.Category, &e.Item.DefaultUnitCost,
			&r.ID, &r.ItemID, &r.LocationID, &r.Quantity, &r.UnitCost, &r.Condition,
			&r.LocationNote, &r.SerialTags, &r.Provenance, &r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stock entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) ListItemRecords(ctx context.Context, itemID int) ([]StockRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+stockRecordColumns+`
		FROM stock_records sr
		WHERE sr.item_id = $1
		ORDER BY sr.location_id
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records for item %d: %w", itemID, err)
	}
	defer rows.Close()

	var out []StockRecord
	for rows.Next() {
		rec, err := scanRecordRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListMovements(ctx context.Context, itemID, limit int) ([]Movement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, item_id, location_id, movement_type, quantity, actor, note, created_at
		FROM stock_movements
		WHERE item_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements for item %d: %w", itemID, err)
	}
	defer rows.Close()

	var moves []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.LocationID, &m.Type, &m.Quantity, &m.Actor, &m.Note, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

func (s *PostgresStore) InItemTx(ctx context.Context, itemID int, fn func(tx StockTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Released automatically at commit or rollback.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", int64(itemID)); err != nil {
		return fmt.Errorf("failed to lock item %d: %w", itemID, err)
	}

	if err := fn(&pgStockTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit stock transaction: %w", err)
	}
	return nil
}

type pgStockTx struct {
	tx pgx.Tx
}

func (t *pgStockTx) Record(ctx context.Context, itemID, locationID int) (*StockRecord, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+stockRecordColumns+`
		FROM stock_records sr
		WHERE sr.item_id = $1 AND sr.location_id = $2
		FOR UPDATE
	`, itemID, locationID)
	return scanRecordRow(row)
}

// Credit upserts on the (item_id, location_id) unique constraint so two first-touch
// credits can never produce duplicate rows.
func (t *pgStockTx) Credit(ctx context.Context, itemID, locationID, qty int, meta StockMeta) (*StockRecord, error) {
	var tags []string
	if meta.SerialTags != nil {
		tags = dedupeTags(meta.SerialTags)
	}
	row := t.tx.QueryRow(ctx, `
		INSERT INTO stock_records AS sr
		       (item_id, location_id, quantity, unit_cost, condition, location_note, serial_tags, provenance)
		VALUES ($1, $2, $3, $4, COALESCE(NULLIF($5::text, ''), 'NEW'), $6::text,
		        COALESCE($7::text[], '{}'), NULLIF($8::text, ''))
		ON CONFLICT (item_id, location_id) DO UPDATE SET
		       quantity      = sr.quantity + EXCLUDED.quantity,
		       unit_cost     = COALESCE(EXCLUDED.unit_cost, sr.unit_cost),
		       condition     = COALESCE(NULLIF($5::text, ''), sr.condition),
		       location_note = COALESCE(NULLIF($6::text, ''), sr.location_note),
		       serial_tags   = COALESCE($7::text[], sr.serial_tags),
		       provenance    = COALESCE(EXCLUDED.provenance, sr.provenance),
		       updated_at    = NOW()
		RETURNING `+stockRecordColumns,
		itemID, locationID, qty, meta.UnitCost, string(meta.Condition), meta.LocationNote, tags, meta.Provenance,
	)
	rec, err := scanRecordRow(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to upsert stock record: %w", err)
	}
	return rec, nil
}

func (t *pgStockTx) Debit(ctx context.Context, itemID, locationID, qty int) (*StockRecord, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE stock_records AS sr
		SET quantity = sr.quantity - $3, updated_at = NOW()
		WHERE sr.item_id = $1 AND sr.location_id = $2
		RETURNING `+stockRecordColumns,
		itemID, locationID, qty,
	)
	rec, err := scanRecordRow(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
			return nil, fmt.Errorf("debit of %d would leave item %d at location %d negative: %w", qty, itemID, locationID, err)
		}
		return nil, err
	}
	return rec, nil
}

func (t *pgStockTx) AppendMovement(ctx context.Context, m Movement) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO stock_movements (item_id, location_id, movement_type, quantity, actor, note)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ItemID, m.LocationID, string(m.Type), m.Quantity, m.Actor, m.Note)
	if err != nil {
		return fmt.Errorf("failed to insert %s movement: %w", m.Type, err)
	}
	return nil
}

func scanRecordRow(row pgx.Row) (*StockRecord, error) {
	var r StockRecord
	err := row.Scan(&r.ID, &r.ItemID, &r.LocationID, &r.Quantity, &r.UnitCost, &r.Condition,
		&r.LocationNote, &r.SerialTags, &r.Provenance, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &r, nil
}
