package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// poolExportSheet is the export's only sheet; the pool code goes in the workbook title.
const poolExportSheet = "Pool"

var poolExportHeader = []interface{}{
	"item_id", "item_code", "item_name", "category",
	"quantity", "unit_cost", "condition", "location_note", "serial_tags", "provenance", "updated_at",
}

// ExportPoolInventory writes the pool inventory as an .xlsx workbook to w.
func (s *appService) ExportPoolInventory(ctx context.Context, w io.Writer) error {
	res, err := s.ListPoolInventory(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := poolExportSheet
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:       res.Pool.Code,
		Description: res.Pool.Name,
	}); err != nil {
		return fmt.Errorf("failed to set workbook properties: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &poolExportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, e := range res.Entries {
		cost := ""
		if e.Record.UnitCost.Valid {
			cost = e.Record.UnitCost.Decimal.StringFixed(2)
		}
		row := []interface{}{
			e.Item.ID,
			e.Item.Code,
			e.Item.Name,
			e.Item.Category,
			e.Record.Quantity,
			cost,
			string(e.Record.Condition),
			e.Record.LocationNote,
			strings.Join(e.Record.SerialTags, ","),
			e.Record.Provenance,
			e.Record.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
