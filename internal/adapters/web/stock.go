package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"stock-ledger/internal/app"
	"stock-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// ── Response views ────────────────────────────────────────────────────────────

type stockRecordView struct {
	ID           int       `json:"id"`
	ItemID       int       `json:"item_id"`
	LocationID   int       `json:"location_id"`
	Quantity     int       `json:"quantity"`
	UnitCost     *string   `json:"unit_cost"`
	Condition    string    `json:"condition"`
	LocationNote string    `json:"location_note,omitempty"`
	SerialTags   []string  `json:"serial_tags"`
	Provenance   string    `json:"provenance,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type itemView struct {
	ID       int    `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

type stockEntryView struct {
	Item   itemView        `json:"item"`
	Record stockRecordView `json:"record"`
}

type locationView struct {
	ID     int    `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	IsPool bool   `json:"is_pool"`
}

type movementView struct {
	ID         int       `json:"id"`
	LocationID int       `json:"location_id"`
	Type       string    `json:"type"`
	Quantity   int       `json:"quantity"`
	Actor      string    `json:"actor,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toRecordView(rec core.StockRecord) stockRecordView {
	v := stockRecordView{
		ID:           rec.ID,
		ItemID:       rec.ItemID,
		LocationID:   rec.LocationID,
		Quantity:     rec.Quantity,
		Condition:    string(rec.Condition),
		LocationNote: rec.LocationNote,
		SerialTags:   rec.SerialTags,
		Provenance:   rec.Provenance,
		UpdatedAt:    rec.UpdatedAt,
	}
	if v.SerialTags == nil {
		v.SerialTags = []string{}
	}
	if rec.UnitCost.Valid {
		s := rec.UnitCost.Decimal.StringFixed(2)
		v.UnitCost = &s
	}
	return v
}

func toEntryViews(entries []core.PoolInventoryEntry) []stockEntryView {
	out := make([]stockEntryView, len(entries))
	for i, e := range entries {
		out[i] = stockEntryView{
			Item:   itemView{ID: e.Item.ID, Code: e.Item.Code, Name: e.Item.Name, Category: e.Item.Category},
			Record: toRecordView(e.Record),
		}
	}
	return out
}

func toLocationView(l core.Location) locationView {
	return locationView{ID: l.ID, Code: l.Code, Name: l.Name, IsPool: l.IsPool}
}

// parseUnitCost accepts an optional decimal string. Empty means "no cost supplied".
func parseUnitCost(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid unit_cost %q", s)
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, fmt.Errorf("unit_cost must not be negative")
	}
	return decimal.NewNullDecimal(d), nil
}

// ── Writes ────────────────────────────────────────────────────────────────────

// apiReplenish handles POST /api/stock/replenish.
func (h *Handler) apiReplenish(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ItemID     int      `json:"item_id"`
		Quantity   int      `json:"quantity"`
		UnitCost   string   `json:"unit_cost"`
		Condition  string   `json:"condition"`
		Provenance string   `json:"provenance"`
		SerialTags []string `json:"serial_tags"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	cost, err := parseUnitCost(body.UnitCost)
	if err != nil {
		writeError(w, r, err.Error(), "INVALID_ARGUMENT", http.StatusBadRequest)
		return
	}

	result, err := h.svc.Replenish(r.Context(), app.ReplenishRequest{
		ItemID:     body.ItemID,
		Quantity:   body.Quantity,
		UnitCost:   cost,
		Condition:  body.Condition,
		Provenance: body.Provenance,
		SerialTags: body.SerialTags,
		Actor:      actorFromContext(r.Context()),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, toRecordView(*result.Record))
}

// apiAllocate handles POST /api/stock/allocate.
func (h *Handler) apiAllocate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ItemID       int      `json:"item_id"`
		ToLocationID int      `json:"to_location_id"`
		Quantity     int      `json:"quantity"`
		UnitCost     string   `json:"unit_cost"`
		Condition    string   `json:"condition"`
		LocationNote string   `json:"location_note"`
		SerialTags   []string `json:"serial_tags"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	cost, err := parseUnitCost(body.UnitCost)
	if err != nil {
		writeError(w, r, err.Error(), "INVALID_ARGUMENT", http.StatusBadRequest)
		return
	}

	result, err := h.svc.Allocate(r.Context(), app.AllocateRequest{
		ItemID:       body.ItemID,
		ToLocationID: body.ToLocationID,
		Quantity:     body.Quantity,
		UnitCost:     cost,
		Condition:    body.Condition,
		LocationNote: body.LocationNote,
		SerialTags:   body.SerialTags,
		Actor:        actorFromContext(r.Context()),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, toRecordView(*result.Record))
}

// apiAllocateBatch handles POST /api/stock/allocate-batch.
func (h *Handler) apiAllocateBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ItemID int `json:"item_id"`
		Lines  []struct {
			ToLocationID int    `json:"to_location_id"`
			Quantity     int    `json:"quantity"`
			UnitCost     string `json:"unit_cost"`
			Condition    string `json:"condition"`
			LocationNote string `json:"location_note"`
		} `json:"lines"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	req := app.AllocateBatchRequest{ItemID: body.ItemID, Actor: actorFromContext(r.Context())}
	for i, l := range body.Lines {
		cost, err := parseUnitCost(l.UnitCost)
		if err != nil {
			writeError(w, r, fmt.Sprintf("line %d: %v", i+1, err), "INVALID_ARGUMENT", http.StatusBadRequest)
			return
		}
		req.Lines = append(req.Lines, app.AllocationLineInput{
			ToLocationID: l.ToLocationID,
			Quantity:     l.Quantity,
			UnitCost:     cost,
			Condition:    l.Condition,
			LocationNote: l.LocationNote,
		})
	}

	result, err := h.svc.AllocateBatch(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	views := make([]stockRecordView, len(result.Records))
	for i, rec := range result.Records {
		views[i] = toRecordView(rec)
	}
	writeJSON(w, map[string]any{"records": views})
}

// apiReturn handles POST /api/stock/return.
func (h *Handler) apiReturn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ItemID         int    `json:"item_id"`
		FromLocationID int    `json:"from_location_id"`
		Quantity       int    `json:"quantity"`
		Reason         string `json:"reason"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.Return(r.Context(), app.ReturnRequest{
		ItemID:         body.ItemID,
		FromLocationID: body.FromLocationID,
		Quantity:       body.Quantity,
		Reason:         body.Reason,
		Actor:          actorFromContext(r.Context()),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, toRecordView(*result.Record))
}

// ── Reads ─────────────────────────────────────────────────────────────────────

// apiListPool handles GET /api/stock/pool.
func (h *Handler) apiListPool(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListPoolInventory(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"pool":    toLocationView(result.Pool),
		"entries": toEntryViews(result.Entries),
	})
}

// apiExportPool handles GET /api/stock/pool/export.xlsx.
func (h *Handler) apiExportPool(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.ExportPoolInventory(r.Context(), &buf); err != nil {
		writeServiceError(w, r, err)
		return
	}
	name := fmt.Sprintf("pool_inventory_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	_, _ = w.Write(buf.Bytes())
}

// apiPoolQuantity handles GET /api/stock/pool/{itemID}.
func (h *Handler) apiPoolQuantity(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	result, err := h.svc.GetPoolQuantity(r.Context(), itemID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]int{
		"item_id":     result.ItemID,
		"location_id": result.LocationID,
		"quantity":    result.Quantity,
	})
}

// apiItemDistribution handles GET /api/stock/items/{itemID}/distribution.
func (h *Handler) apiItemDistribution(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	result, err := h.svc.ItemDistribution(r.Context(), itemID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	records := make([]stockRecordView, len(result.Distribution.Records))
	for i, rec := range result.Distribution.Records {
		records[i] = toRecordView(rec)
	}
	writeJSON(w, map[string]any{
		"item_id": itemID,
		"total":   result.Distribution.Total,
		"records": records,
	})
}

// apiItemMovements handles GET /api/stock/items/{itemID}/movements?limit=N.
func (h *Handler) apiItemMovements(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, r, "invalid limit", "INVALID_ARGUMENT", http.StatusBadRequest)
			return
		}
		limit = n
	}

	result, err := h.svc.ListMovements(r.Context(), itemID, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	moves := make([]movementView, len(result.Movements))
	for i, m := range result.Movements {
		moves[i] = movementView{
			ID:         m.ID,
			LocationID: m.LocationID,
			Type:       string(m.Type),
			Quantity:   m.Quantity,
			Actor:      m.Actor,
			Note:       m.Note,
			CreatedAt:  m.CreatedAt,
		}
	}
	writeJSON(w, map[string]any{"item_id": itemID, "movements": moves})
}

// apiListCenters handles GET /api/locations.
func (h *Handler) apiListCenters(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListCenters(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	views := make([]locationView, len(result.Centers))
	for i, c := range result.Centers {
		views[i] = toLocationView(c)
	}
	writeJSON(w, map[string]any{"locations": views})
}

// apiLocationStock handles GET /api/locations/{locationID}/stock.
func (h *Handler) apiLocationStock(w http.ResponseWriter, r *http.Request) {
	locationID, ok := pathID(w, r, "locationID")
	if !ok {
		return
	}
	result, err := h.svc.ListLocationStock(r.Context(), locationID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"location_id": locationID,
		"entries":     toEntryViews(result.Entries),
	})
}
