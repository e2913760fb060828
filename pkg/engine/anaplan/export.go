package anaplan

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gridplan/gridplan/pkg/models"
)

const (
	taskPollInterval = 500 * time.Millisecond
	taskPollLimit    = 60
)

// ModuleData runs the export choreography for one module and assembles the
// result into the tabular view: create a TABULAR_SINGLE_COLUMN export, run
// its task, wait for completion, download and parse the CSV chunks, then
// filter and paginate client-side.
func (e *Engine) ModuleData(ctx context.Context, workspaceID, moduleID string, req models.ModuleDataRequest) (*models.ModuleDataResponse, error) {
	if err := e.ensureConnected(); err != nil {
		return nil, err
	}
	base, err := modelPath(workspaceID)
	if err != nil {
		return nil, err
	}
	for _, nf := range req.NumericFilters {
		if err := nf.Validate(); err != nil {
			return nil, err
		}
	}
	req = req.Defaulted()

	schema, err := e.Schema(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	mod, ok := findModule(schema, moduleID)
	if !ok {
		return nil, &models.NotFoundError{Kind: "module", ID: moduleID}
	}

	records, err := e.exportModule(ctx, base, moduleID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &models.ModuleDataResponse{
			Columns: nil, Rows: []models.DataRow{},
			Page: req.Page, PageSize: req.PageSize,
		}, nil
	}

	headers := records[0]
	columns := exportColumns(headers, mod, schema)
	rows := exportRows(records[1:], columns)

	rows, err = e.filterByDimensions(ctx, workspaceID, schema, rows, req.Filters)
	if err != nil {
		return nil, err
	}
	rows = filterByLineItems(rows, req.LineItemFilters)
	rows = filterByNumeric(rows, req.NumericFilters)

	total := len(rows)
	start := (req.Page - 1) * req.PageSize
	if start > total {
		start = total
	}
	end := start + req.PageSize
	if end > total {
		end = total
	}

	return &models.ModuleDataResponse{
		Columns:   columns,
		Rows:      rows[start:end],
		Page:      req.Page,
		PageSize:  req.PageSize,
		TotalRows: total,
	}, nil
}

// WriteCells pushes edits upstream through an Anaplan import, then runs
// the import task. Anaplan applies its own formulas server-side, so there
// is no local recalculation. Upstream failures surface in the result
// rather than failing the HTTP request: the write was attempted.
func (e *Engine) WriteCells(ctx context.Context, workspaceID, moduleID, version string, cells []models.CellWrite) (*models.CellWriteResult, error) {
	if err := e.ensureConnected(); err != nil {
		return nil, err
	}
	base, err := modelPath(workspaceID)
	if err != nil {
		return nil, err
	}
	schema, err := e.Schema(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if _, ok := findModule(schema, moduleID); !ok {
		return nil, &models.NotFoundError{Kind: "module", ID: moduleID}
	}

	var created struct {
		Imports []struct {
			ID string `json:"id"`
		} `json:"imports"`
	}
	err = e.client.post(ctx, base+"/imports", map[string]any{
		"name":               fmt.Sprintf("write_%d", time.Now().UnixMilli()),
		"importDataSourceId": moduleID,
	}, &created)
	if err != nil {
		return &models.CellWriteResult{Success: false, Errors: []string{err.Error()}}, nil
	}
	if len(created.Imports) == 0 || created.Imports[0].ID == "" {
		return &models.CellWriteResult{Success: false, Errors: []string{"anaplan import creation returned no id"}}, nil
	}

	importID := created.Imports[0].ID
	err = e.client.post(ctx, base+"/imports/"+importID+"/tasks", map[string]string{"localeName": "en_US"}, nil)
	if err != nil {
		return &models.CellWriteResult{Success: false, Errors: []string{err.Error()}}, nil
	}

	e.log.Info().Str("module", moduleID).Int("cells", len(cells)).Msg("import submitted")
	return &models.CellWriteResult{Success: true}, nil
}

// exportModule drives one export end to end and returns the parsed CSV
// records.
func (e *Engine) exportModule(ctx context.Context, base, moduleID string) ([][]string, error) {
	var created struct {
		ExportMetadata struct {
			ExportID string `json:"exportId"`
		} `json:"exportMetadata"`
	}
	err := e.client.post(ctx, base+"/modules/"+moduleID+"/exports",
		map[string]string{"exportType": "TABULAR_SINGLE_COLUMN"}, &created)
	if err != nil {
		return nil, err
	}
	exportID := created.ExportMetadata.ExportID
	if exportID == "" {
		return nil, &models.UpstreamError{Op: "create export", Err: fmt.Errorf("no export id in response")}
	}

	var task struct {
		Task struct {
			TaskID string `json:"taskId"`
		} `json:"task"`
	}
	if err := e.client.post(ctx, base+"/exports/"+exportID+"/tasks", map[string]string{}, &task); err != nil {
		return nil, err
	}
	if task.Task.TaskID != "" {
		if err := e.waitForTask(ctx, base+"/exports/"+exportID+"/tasks/"+task.Task.TaskID); err != nil {
			return nil, err
		}
	}

	var chunks struct {
		Chunks []struct {
			ID string `json:"id"`
		} `json:"chunks"`
	}
	if err := e.client.get(ctx, base+"/exports/"+exportID+"/chunks", &chunks); err != nil {
		return nil, err
	}

	var raw strings.Builder
	for _, chunk := range chunks.Chunks {
		part, err := e.client.getRaw(ctx, base+"/exports/"+exportID+"/chunks/"+chunk.ID)
		if err != nil {
			return nil, err
		}
		raw.WriteString(part)
		if !strings.HasSuffix(part, "\n") {
			raw.WriteString("\n")
		}
	}

	reader := csv.NewReader(strings.NewReader(raw.String()))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, &models.UpstreamError{Op: "parse export", Err: err}
	}
	return records, nil
}

// waitForTask polls a task until it completes, with a bounded number of
// attempts.
func (e *Engine) waitForTask(ctx context.Context, path string) error {
	for i := 0; i < taskPollLimit; i++ {
		var status struct {
			Task struct {
				TaskState string `json:"taskState"`
			} `json:"task"`
		}
		if err := e.client.get(ctx, path, &status); err != nil {
			return err
		}
		switch status.Task.TaskState {
		case "COMPLETE":
			return nil
		case "FAILED", "CANCELLED":
			return &models.UpstreamError{Op: "export task", Err: fmt.Errorf("task state %s", status.Task.TaskState)}
		}
		select {
		case <-ctx.Done():
			return &models.UpstreamError{Op: "export task", Err: ctx.Err()}
		case <-time.After(taskPollInterval):
		}
	}
	return &models.UpstreamError{Op: "export task", Err: fmt.Errorf("timed out after %d polls", taskPollLimit)}
}

// exportColumns maps CSV headers onto column definitions: a header that
// names a line item becomes a value column, one that names a dimension a
// dimension column, anything else a positional dimension column.
func exportColumns(headers []string, mod models.ModuleMeta, schema *models.WorkspaceSchema) []models.ColumnDef {
	columns := make([]models.ColumnDef, 0, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if li, ok := findLineItemByName(mod, h); ok {
			columns = append(columns, models.ColumnDef{
				Key:        li.ID,
				Label:      li.Name,
				Type:       models.ColumnValue,
				Format:     li.Format,
				Editable:   &li.Editable,
				LineItemID: li.ID,
			})
			continue
		}
		key := fmt.Sprintf("col_%d", i)
		for _, d := range schema.Dimensions {
			if d.Name == h {
				key = d.ID
				break
			}
		}
		columns = append(columns, models.ColumnDef{Key: key, Label: h, Type: models.ColumnDimension})
	}
	return columns
}

// exportRows converts CSV records into data rows. Numeric value columns
// are parsed; unparseable values stay as text rather than dropping the
// cell.
func exportRows(records [][]string, columns []models.ColumnDef) []models.DataRow {
	rows := make([]models.DataRow, 0, len(records))
	for idx, record := range records {
		cells := make(map[string]any, len(columns))
		for i, col := range columns {
			if i >= len(record) {
				cells[col.Key] = nil
				continue
			}
			val := strings.TrimSpace(record[i])
			if col.Type == models.ColumnValue && col.Format != models.FormatText {
				if f, err := strconv.ParseFloat(val, 64); err == nil {
					cells[col.Key] = f
					continue
				}
			}
			cells[col.Key] = val
		}
		rows = append(rows, models.DataRow{ID: fmt.Sprintf("anaplan_row_%d", idx), Cells: cells})
	}
	return rows
}

// filterByDimensions keeps rows whose dimension cell matches a selected
// item. The export carries item names, the filter carries item ids, so
// each filtered dimension costs one item listing to translate.
func (e *Engine) filterByDimensions(ctx context.Context, workspaceID string, schema *models.WorkspaceSchema, rows []models.DataRow, filters map[string][]string) ([]models.DataRow, error) {
	for dimID, selected := range filters {
		if len(selected) == 0 {
			continue
		}
		known := false
		for _, d := range schema.Dimensions {
			if d.ID == dimID {
				known = true
				break
			}
		}
		if !known {
			continue
		}
		items, err := e.DimensionItems(ctx, workspaceID, dimID, nil)
		if err != nil {
			return nil, err
		}
		selectedSet := map[string]bool{}
		for _, id := range selected {
			selectedSet[id] = true
		}
		names := map[string]bool{}
		for _, it := range items {
			if selectedSet[it.ID] {
				names[it.Name] = true
			}
		}
		kept := rows[:0:len(rows)]
		for _, row := range rows {
			if s, ok := row.Cells[dimID].(string); ok && names[s] {
				kept = append(kept, row)
			}
		}
		rows = kept
	}
	return rows, nil
}

func filterByLineItems(rows []models.DataRow, filters map[string][]string) []models.DataRow {
	for lineItemID, selected := range filters {
		if len(selected) == 0 {
			continue
		}
		want := map[string]bool{}
		for _, v := range selected {
			want[v] = true
		}
		kept := rows[:0:len(rows)]
		for _, row := range rows {
			if s, ok := row.Cells[lineItemID].(string); ok && want[s] {
				kept = append(kept, row)
			}
		}
		rows = kept
	}
	return rows
}

func filterByNumeric(rows []models.DataRow, filters []models.NumericFilter) []models.DataRow {
	for _, nf := range filters {
		kept := rows[:0:len(rows)]
		for _, row := range rows {
			v, ok := row.Cells[nf.LineItemID].(float64)
			if matchNumeric(v, ok, nf) {
				kept = append(kept, row)
			}
		}
		rows = kept
	}
	return rows
}

// matchNumeric evaluates one numeric filter against a cell. Absent or
// non-numeric cells never match.
func matchNumeric(value float64, ok bool, nf models.NumericFilter) bool {
	if !ok {
		return false
	}
	switch nf.Operator {
	case models.OpZero:
		return value == 0
	case models.OpNonZero:
		return value != 0
	}
	if nf.Value == nil {
		return true
	}
	low := *nf.Value
	switch nf.Operator {
	case models.OpGte:
		return value >= low
	case models.OpGt:
		return value > low
	case models.OpLte:
		return value <= low
	case models.OpLt:
		return value < low
	case models.OpBetween:
		high := low
		if nf.ValueHigh != nil {
			high = *nf.ValueHigh
		}
		return low <= value && value <= high
	}
	return true
}

func findModule(schema *models.WorkspaceSchema, id string) (models.ModuleMeta, bool) {
	for _, m := range schema.Modules {
		if m.ID == id {
			return m, true
		}
	}
	return models.ModuleMeta{}, false
}

func findLineItemByName(mod models.ModuleMeta, name string) (models.LineItemMeta, bool) {
	for _, li := range mod.LineItems {
		if li.Name == name {
			return li, true
		}
	}
	return models.LineItemMeta{}, false
}
