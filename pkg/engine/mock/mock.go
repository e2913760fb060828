// Package mock implements a fully functional in-process planning engine.
//
// The engine serves a fixed demo catalog (embedded as YAML) over a sparse
// in-memory cell store. Connecting seeds deterministic demo data and runs a
// full recalculation pass; disconnecting drops every cell. It is the
// reference implementation of the filter-resolution, row-assembly and
// recalculation semantics that external adapters approximate.
package mock

import (
	"context"
	"sync"

	"github.com/gridplan/gridplan/pkg/models"
)

// Engine is the in-process planning engine.
//
// The store carries its own lock for cell access; mu additionally
// serializes the compound operations (connect, disconnect, write batches
// and the recalculation that follows them) against each other, so a read
// never observes a half-applied batch's derived values out of order with
// its inputs beyond single-cell granularity.
type Engine struct {
	catalog *Catalog
	store   *Store

	mu        sync.Mutex
	connected bool
}

var workspaces = []models.WorkspaceInfo{
	{ID: "demo", Name: "Demo Workspace"},
	{ID: "sandbox", Name: "Sandbox"},
}

func New() (*Engine, error) {
	catalog, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	return &Engine{catalog: catalog, store: NewStore()}, nil
}

func (e *Engine) ID() string   { return "mock" }
func (e *Engine) Name() string { return "Mock Planning Engine" }
func (e *Engine) Type() string { return "mock" }

// Connect seeds the demo data. The config map is ignored: the in-process
// engine needs no credentials. Reconnecting resets the store to the seed
// state, discarding any writes.
func (e *Engine) Connect(ctx context.Context, config map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.Clear()
	e.seed()
	e.connected = true
	return nil
}

func (e *Engine) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.Clear()
	e.connected = false
	return nil
}

func (e *Engine) IsConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

func (e *Engine) Workspaces(ctx context.Context) ([]models.WorkspaceInfo, error) {
	if err := e.checkWorkspace(""); err != nil {
		return nil, err
	}
	return workspaces, nil
}

func (e *Engine) Schema(ctx context.Context, workspaceID string) (*models.WorkspaceSchema, error) {
	if err := e.checkWorkspace(workspaceID); err != nil {
		return nil, err
	}
	return e.catalog.Schema(), nil
}

// DimensionItems lists a dimension's items, optionally restricted to the
// children of the given parent items.
func (e *Engine) DimensionItems(ctx context.Context, workspaceID, dimensionID string, parent *models.ParentFilter) ([]models.DimensionItem, error) {
	if err := e.checkWorkspace(workspaceID); err != nil {
		return nil, err
	}
	if _, ok := e.catalog.Dimension(dimensionID); !ok {
		return nil, &models.NotFoundError{Kind: "dimension", ID: dimensionID}
	}
	items := e.catalog.Items(dimensionID)
	if parent == nil || len(parent.ItemIDs) == 0 {
		return items, nil
	}
	inParent := toSet(parent.ItemIDs)
	restricted := make([]models.DimensionItem, 0, len(items))
	for _, it := range items {
		if it.ParentItemID != "" && inParent[it.ParentItemID] {
			restricted = append(restricted, it)
		}
	}
	return restricted, nil
}

// LineItemValues returns the sorted distinct non-blank values stored for a
// text line item, for populating filter dropdowns.
func (e *Engine) LineItemValues(ctx context.Context, workspaceID, moduleID, lineItemID, version string) ([]string, error) {
	if err := e.checkWorkspace(workspaceID); err != nil {
		return nil, err
	}
	mod, ok := e.catalog.Module(moduleID)
	if !ok {
		return nil, &models.NotFoundError{Kind: "module", ID: moduleID}
	}
	if _, ok := lineItem(mod, lineItemID); !ok {
		return nil, &models.NotFoundError{Kind: "line item", ID: lineItemID}
	}
	if version == "" {
		version = "actual"
	}
	return e.store.DistinctTexts(moduleID, version, lineItemID), nil
}

// ModuleData assembles one page of a module's tabular view.
//
// Row composition: each non-time dimension's effective item set is resolved
// through the cascading filter rules, and the row set is the cartesian
// product of those sets. The time dimension, when present, expands into one
// value column per (numeric line item, time period) instead of contributing
// rows. Text filters and numeric filters prune the assembled rows;
// totalRows counts the pruned set before pagination.
func (e *Engine) ModuleData(ctx context.Context, workspaceID, moduleID string, req models.ModuleDataRequest) (*models.ModuleDataResponse, error) {
	if err := e.checkWorkspace(workspaceID); err != nil {
		return nil, err
	}
	mod, ok := e.catalog.Module(moduleID)
	if !ok {
		return nil, &models.NotFoundError{Kind: "module", ID: moduleID}
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	req = req.Defaulted()

	textItems, numericItems, err := viewLineItems(mod, req.LineItemID)
	if err != nil {
		return nil, err
	}

	rowDims, hasTime := rowDimensionIDs(mod)
	lists := make([][]models.DimensionItem, len(rowDims))
	for i, dimID := range rowDims {
		lists[i] = e.catalog.FilteredItems(dimID, req.Filters)
	}
	timeItems := []models.DimensionItem{{ID: timeSentinel}}
	if hasTime {
		timeItems = e.catalog.FilteredItems("time", req.Filters)
	}

	columns := e.catalog.buildColumns(mod, rowDims, hasTime, textItems, numericItems, timeItems)

	combos := cartesian(lists)
	rows := make([]models.DataRow, 0, len(combos))
	for _, combo := range combos {
		itemIDs := make([]string, len(combo))
		cells := make(map[string]any, len(columns))
		for i, item := range combo {
			itemIDs[i] = item.ID
			cells[rowDims[i]] = item.Name
		}
		for _, li := range textItems {
			if v := e.store.Text(cellKey(moduleID, req.Version, itemIDs, li.ID, timeSentinel)); v != "" {
				cells[li.ID] = v
			} else {
				cells[li.ID] = nil
			}
		}
		for _, li := range numericItems {
			for _, tp := range timeItems {
				key := columnKey(li.ID, tp.ID, hasTime)
				if v, ok := e.store.Num(cellKey(moduleID, req.Version, itemIDs, li.ID, tp.ID)); ok {
					cells[key] = v
				} else {
					cells[key] = nil
				}
			}
		}
		rows = append(rows, models.DataRow{ID: encodeRowID(itemIDs), Cells: cells})
	}

	rows = applyLineItemFilters(rows, req.LineItemFilters)
	rows = applyNumericFilters(rows, req.NumericFilters, columns)

	total := len(rows)
	rows = paginate(rows, req.Page, req.PageSize)

	return &models.ModuleDataResponse{
		Columns:   columns,
		Rows:      rows,
		Page:      req.Page,
		PageSize:  req.PageSize,
		TotalRows: total,
	}, nil
}

// WriteCells applies a batch of edits, then recalculates derived line items
// for the touched rows. Individually invalid cells (unknown line item,
// computed line item, type mismatch, malformed row id) do not fail the
// batch: valid cells commit and the problems are reported per cell.
func (e *Engine) WriteCells(ctx context.Context, workspaceID, moduleID, version string, cells []models.CellWrite) (*models.CellWriteResult, error) {
	if err := e.checkWorkspace(workspaceID); err != nil {
		return nil, err
	}
	mod, ok := e.catalog.Module(moduleID)
	if !ok {
		return nil, &models.NotFoundError{Kind: "module", ID: moduleID}
	}
	if version == "" {
		version = "actual"
	}
	rowDims, hasTime := rowDimensionIDs(mod)

	timeIDs := map[string]bool{}
	for _, tp := range e.catalog.Items("time") {
		timeIDs[tp.ID] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	result := &models.CellWriteResult{Success: true}
	var touched [][]string
	seen := map[string]bool{}

	for _, cell := range cells {
		itemIDs, err := decodeRowID(cell.RowID, len(rowDims))
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		lineItemID, timeID := splitColumnKey(cell.ColumnKey)
		li, ok := lineItem(mod, lineItemID)
		if !ok {
			result.Errors = append(result.Errors, (&models.NotFoundError{Kind: "line item", ID: lineItemID}).Error())
			continue
		}
		if !li.Editable {
			result.Errors = append(result.Errors, (&models.NotEditableError{LineItem: lineItemID}).Error())
			continue
		}

		if li.Format == models.FormatText {
			s, ok := cell.Value.(string)
			if !ok {
				result.Errors = append(result.Errors, "line item "+lineItemID+" expects a text value")
				continue
			}
			e.store.SetText(cellKey(moduleID, version, itemIDs, lineItemID, timeSentinel), s)
		} else {
			if hasTime && !timeIDs[timeID] {
				result.Errors = append(result.Errors, (&models.NotFoundError{Kind: "time period", ID: timeID}).Error())
				continue
			}
			v, ok := numericValue(cell.Value)
			if !ok {
				result.Errors = append(result.Errors, "line item "+lineItemID+" expects a numeric value")
				continue
			}
			e.store.SetNum(cellKey(moduleID, version, itemIDs, lineItemID, timeID), v)
		}

		if id := cell.RowID; !seen[id] {
			seen[id] = true
			touched = append(touched, itemIDs)
		}
	}

	if len(touched) > 0 {
		e.recalculate(moduleID, version, touched)
	}
	result.Success = len(result.Errors) == 0
	return result, nil
}

// checkWorkspace validates the workspace id against the known set. The
// empty id is accepted for workspace-independent calls; any other unknown
// id is a not-found, not an empty result.
func (e *Engine) checkWorkspace(workspaceID string) error {
	if !e.IsConnected() {
		return &models.ValidationError{Message: "engine \"mock\" is not connected"}
	}
	if workspaceID == "" {
		return nil
	}
	for _, ws := range workspaces {
		if ws.ID == workspaceID {
			return nil
		}
	}
	return &models.NotFoundError{Kind: "workspace", ID: workspaceID}
}

func lineItem(mod models.ModuleMeta, id string) (models.LineItemMeta, bool) {
	for _, li := range mod.LineItems {
		if li.ID == id {
			return li, true
		}
	}
	return models.LineItemMeta{}, false
}

// viewLineItems splits a module's line items into text and numeric sets,
// optionally restricted to a single line item.
func viewLineItems(mod models.ModuleMeta, only string) (textItems, numericItems []models.LineItemMeta, err error) {
	if only != "" {
		if _, ok := lineItem(mod, only); !ok {
			return nil, nil, &models.NotFoundError{Kind: "line item", ID: only}
		}
	}
	for _, li := range mod.LineItems {
		if only != "" && li.ID != only {
			continue
		}
		if li.Format == models.FormatText {
			textItems = append(textItems, li)
		} else {
			numericItems = append(numericItems, li)
		}
	}
	return textItems, numericItems, nil
}

// numericValue coerces a decoded JSON value into a float64. JSON numbers
// arrive as float64; integers from typed callers are accepted too.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
