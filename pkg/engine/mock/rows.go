package mock

import (
	"strings"

	"github.com/gridplan/gridplan/pkg/models"
)

// rowIDPrefix starts every mock row id. The rest of the id is the row's
// dimension item ids in module dimension order, so a later write can
// recover the exact cell key from the row id alone, without a side table.
const rowIDPrefix = "row"

func encodeRowID(itemIDs []string) string {
	return rowIDPrefix + ":" + strings.Join(itemIDs, ":")
}

// decodeRowID recovers the ordered row-dimension item ids from a row id
// and checks the count against the module's row dimensions.
func decodeRowID(rowID string, wantDims int) ([]string, error) {
	parts := strings.Split(rowID, ":")
	if parts[0] != rowIDPrefix {
		return nil, &models.InvalidIdentifierError{Message: "malformed row id " + rowID}
	}
	ids := parts[1:]
	if wantDims == 0 && len(ids) == 1 && ids[0] == "" {
		ids = nil
	}
	if len(ids) != wantDims {
		return nil, &models.InvalidIdentifierError{Message: "row id " + rowID + " does not match module dimensions"}
	}
	return ids, nil
}

// cartesian builds every combination of one item per list, first list
// outermost. An empty input yields a single empty combination (a module
// with no row dimensions still has exactly one row). The result size is
// the product of the list lengths; the full product is materialized in
// memory before pagination, which is the accepted scaling limit of this
// engine.
func cartesian(lists [][]models.DimensionItem) [][]models.DimensionItem {
	combos := [][]models.DimensionItem{nil}
	for _, list := range lists {
		next := make([][]models.DimensionItem, 0, len(combos)*len(list))
		for _, combo := range combos {
			for _, item := range list {
				row := make([]models.DimensionItem, len(combo), len(combo)+1)
				copy(row, combo)
				next = append(next, append(row, item))
			}
		}
		combos = next
	}
	return combos
}

// rowDimensionIDs returns the module's row axes: its dimensions in
// declared order, with the time axis excluded (time expands into columns
// instead).
func rowDimensionIDs(mod models.ModuleMeta) (ids []string, hasTime bool) {
	for _, id := range mod.DimensionIDs {
		if id == "time" {
			hasTime = true
			continue
		}
		ids = append(ids, id)
	}
	return ids, hasTime
}

// columnKey builds the value-column key for a (line item, time period)
// pair: "li__tp" for time-pivoted modules, the bare line item id otherwise.
func columnKey(lineItemID, timeID string, hasTime bool) string {
	if hasTime {
		return lineItemID + "__" + timeID
	}
	return lineItemID
}

// splitColumnKey is columnKey's inverse, used on the write path.
func splitColumnKey(key string) (lineItemID, timeID string) {
	if li, tp, ok := strings.Cut(key, "__"); ok {
		return li, tp
	}
	return key, timeSentinel
}

// buildColumns assembles the column definitions for one module view:
// one dimension column per row axis, one un-pivoted column per text line
// item, then one column per (numeric line item, time period).
func (c *Catalog) buildColumns(mod models.ModuleMeta, rowDims []string, hasTime bool,
	textItems, numericItems []models.LineItemMeta, timeItems []models.DimensionItem) []models.ColumnDef {

	var columns []models.ColumnDef
	for _, dimID := range rowDims {
		if dim, ok := c.Dimension(dimID); ok {
			columns = append(columns, models.ColumnDef{Key: dim.ID, Label: dim.Name, Type: models.ColumnDimension})
		}
	}
	for _, li := range textItems {
		li := li
		columns = append(columns, models.ColumnDef{
			Key:        li.ID,
			Label:      li.Name,
			Type:       models.ColumnValue,
			Format:     models.FormatText,
			Editable:   &li.Editable,
			LineItemID: li.ID,
		})
	}
	for _, li := range numericItems {
		li := li
		for _, tp := range timeItems {
			col := models.ColumnDef{
				Key:        columnKey(li.ID, tp.ID, hasTime),
				Label:      li.Name,
				Type:       models.ColumnValue,
				Format:     li.Format,
				Editable:   &li.Editable,
				LineItemID: li.ID,
			}
			if hasTime {
				col.Label = li.Name + " - " + tp.Name
				col.TimePeriodID = tp.ID
			}
			columns = append(columns, col)
		}
	}
	return columns
}

// applyLineItemFilters keeps rows whose text line-item value is among the
// selected value set. An empty selection imposes no restriction.
func applyLineItemFilters(rows []models.DataRow, filters map[string][]string) []models.DataRow {
	for lineItemID, selected := range filters {
		if len(selected) == 0 {
			continue
		}
		want := toSet(selected)
		kept := rows[:0:len(rows)]
		for _, row := range rows {
			v, ok := row.Cells[lineItemID]
			if !ok || v == nil {
				continue
			}
			if s, isString := v.(string); isString && want[s] {
				kept = append(kept, row)
			}
		}
		rows = kept
	}
	return rows
}

// applyNumericFilters keeps rows where, for each filter, at least one of
// the line item's value columns matches the operator.
func applyNumericFilters(rows []models.DataRow, filters []models.NumericFilter, columns []models.ColumnDef) []models.DataRow {
	for _, nf := range filters {
		var keys []string
		for _, col := range columns {
			if col.LineItemID == nf.LineItemID && col.Type == models.ColumnValue && col.Format != models.FormatText {
				keys = append(keys, col.Key)
			}
		}
		if len(keys) == 0 {
			continue
		}
		kept := rows[:0:len(rows)]
		for _, row := range rows {
			for _, key := range keys {
				v, ok := row.Cells[key].(float64)
				if matchNumeric(v, ok, nf.Operator, nf.Value, nf.ValueHigh) {
					kept = append(kept, row)
					break
				}
			}
		}
		rows = kept
	}
	return rows
}

// paginate slices one page out of the filtered row set.
func paginate(rows []models.DataRow, page, pageSize int) []models.DataRow {
	start := (page - 1) * pageSize
	if start >= len(rows) {
		return []models.DataRow{}
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}
