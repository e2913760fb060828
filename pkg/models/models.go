// Package models defines the wire-level types shared by every planning
// engine adapter and the HTTP layer.
//
// All types serialize to camelCase JSON, matching what the grid UI expects.
// The model is deliberately engine-neutral: an adapter for an external
// planning service translates its own vocabulary (lists, modules, line
// items, versions) into these shapes one-to-one.
package models

// CellFormat describes how a line item's values should be rendered.
type CellFormat string

const (
	FormatNumber     CellFormat = "number"
	FormatCurrency   CellFormat = "currency"
	FormatPercentage CellFormat = "percentage"
	FormatText       CellFormat = "text"
)

// Dimension is a hierarchy axis (e.g. Region). A dimension may declare at
// most one parent dimension, forming a forest; items of a child dimension
// cascade from the parent's current selection.
type Dimension struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ParentDimensionID string `json:"parentDimensionId,omitempty"`
}

// DimensionItem is one member of a dimension. ParentItemID, when set,
// references an item in the dimension's parent dimension and carries the
// cascading-hierarchy edge.
type DimensionItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ParentItemID string `json:"parentItemId,omitempty"`
}

// LineItemMeta describes one metric within a module. Editable line items
// are raw inputs; non-editable ones are derived by recalculation and must
// never accept direct writes.
type LineItemMeta struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Format   CellFormat `json:"format"`
	Editable bool       `json:"editable"`
}

// ModuleMeta describes a module: its axes, in order, and its line items.
// By convention a "time" dimension is not a row axis but expands into one
// column per (line item, time period).
type ModuleMeta struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	DimensionIDs []string       `json:"dimensionIds"`
	LineItems    []LineItemMeta `json:"lineItems"`
}

// WorkspaceSchema is the full static description of a workspace: its
// dimensions, modules and versions, loaded once at connect time.
type WorkspaceSchema struct {
	Dimensions []Dimension     `json:"dimensions"`
	Modules    []ModuleMeta    `json:"modules"`
	Versions   []DimensionItem `json:"versions"`
}

// NumericFilterOp is the comparison applied by a NumericFilter.
type NumericFilterOp string

const (
	OpGte     NumericFilterOp = "gte"
	OpGt      NumericFilterOp = "gt"
	OpLte     NumericFilterOp = "lte"
	OpLt      NumericFilterOp = "lt"
	OpZero    NumericFilterOp = "zero"
	OpNonZero NumericFilterOp = "non_zero"
	OpBetween NumericFilterOp = "between"
)

// NumericFilter restricts rows by a line item's numeric value. Value is the
// operand (the inclusive low bound for between); ValueHigh is the inclusive
// high bound, used only by between.
type NumericFilter struct {
	LineItemID string          `json:"lineItemId"`
	Operator   NumericFilterOp `json:"operator"`
	Value      *float64        `json:"value,omitempty"`
	ValueHigh  *float64        `json:"valueHigh,omitempty"`
}

// Validate rejects filters with a missing required operand before they are
// ever evaluated. zero and non_zero take no operand; between needs both
// bounds; every other operator needs Value.
func (f NumericFilter) Validate() error {
	switch f.Operator {
	case OpZero, OpNonZero:
		return nil
	case OpBetween:
		if f.Value == nil || f.ValueHigh == nil {
			return &ValidationError{Message: "numeric filter with operator 'between' requires value and valueHigh"}
		}
		return nil
	case OpGte, OpGt, OpLte, OpLt:
		if f.Value == nil {
			return &ValidationError{Message: "numeric filter with operator '" + string(f.Operator) + "' requires a value"}
		}
		return nil
	default:
		return &ValidationError{Message: "unknown numeric filter operator '" + string(f.Operator) + "'"}
	}
}

// ModuleDataRequest carries everything that shapes one tabular read:
// dimension selections, line-item text filters, numeric filters, the
// version, an optional single line item restriction, and the page window.
type ModuleDataRequest struct {
	Filters         map[string][]string `json:"filters"`
	LineItemFilters map[string][]string `json:"lineItemFilters"`
	NumericFilters  []NumericFilter     `json:"numericFilters"`
	Version         string              `json:"version"`
	LineItemID      string              `json:"lineItemId,omitempty"`
	Page            int                 `json:"page"`
	PageSize        int                 `json:"pageSize"`
}

// Defaulted returns a copy with zero values replaced by the request
// defaults: version "actual", page 1, page size 50.
func (r ModuleDataRequest) Defaulted() ModuleDataRequest {
	if r.Version == "" {
		r.Version = "actual"
	}
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = 50
	}
	return r
}

// ColumnType distinguishes dimension label columns from value columns.
type ColumnType string

const (
	ColumnDimension ColumnType = "dimension"
	ColumnValue     ColumnType = "value"
)

// ColumnDef describes one column of a module data response. Value columns
// for time-pivoted modules are keyed "{lineItemId}__{timePeriodId}";
// text columns and time-less modules use the bare line item id.
type ColumnDef struct {
	Key          string     `json:"key"`
	Label        string     `json:"label"`
	Type         ColumnType `json:"type"`
	Format       CellFormat `json:"format,omitempty"`
	Editable     *bool      `json:"editable,omitempty"`
	LineItemID   string     `json:"lineItemId,omitempty"`
	TimePeriodID string     `json:"timePeriodId,omitempty"`
}

// DataRow is one assembled row: a stable id that encodes the row's
// dimension item tuple, plus a cell per column key. Cell values are
// strings for dimension/text columns, float64 for numeric columns, and
// nil where the store holds nothing.
type DataRow struct {
	ID    string         `json:"id"`
	Cells map[string]any `json:"cells"`
}

// ModuleDataResponse is one page of an assembled module view. TotalRows is
// the full filtered count, before pagination.
type ModuleDataResponse struct {
	Columns   []ColumnDef `json:"columns"`
	Rows      []DataRow   `json:"rows"`
	Page      int         `json:"page"`
	PageSize  int         `json:"pageSize"`
	TotalRows int         `json:"totalRows"`
}

// CellWrite addresses one cell by row id and column key.
type CellWrite struct {
	RowID     string `json:"rowId"`
	ColumnKey string `json:"columnKey"`
	Value     any    `json:"value"`
}

// CellWriteResult reports a write batch. Writes never fail the whole batch
// for individual bad cells: valid cells commit, invalid ones are listed in
// Errors and Success is false.
type CellWriteResult struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors,omitempty"`
}

// EngineInfo is the registry's public view of one adapter.
type EngineInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Connected bool   `json:"connected"`
}

// WorkspaceInfo identifies one workspace of a connected engine. For engines
// that nest models inside workspaces the ID is a composite
// "workspaceId:modelId" pair.
type WorkspaceInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ModelInfo identifies a model within a workspace, for engines that expose
// that extra level of nesting.
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ConnectRequest is the adapter-specific connect configuration. All fields
// are optional; adapters fall back to environment variables.
type ConnectRequest struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Config flattens a ConnectRequest into the map form adapters consume.
func (c ConnectRequest) Config() map[string]string {
	cfg := map[string]string{}
	if c.Email != "" {
		cfg["email"] = c.Email
	}
	if c.Password != "" {
		cfg["password"] = c.Password
	}
	if c.Token != "" {
		cfg["token"] = c.Token
	}
	return cfg
}

// WriteCellsRequest is the write-back body for a module.
type WriteCellsRequest struct {
	Version string      `json:"version"`
	Cells   []CellWrite `json:"cells"`
}

// ParentFilter restricts a dimension item listing to items whose
// ParentItemID is among ItemIDs.
type ParentFilter struct {
	DimensionID string   `json:"dimensionId"`
	ItemIDs     []string `json:"itemIds"`
}

// SavedConnection is a named, reusable engine credential. Held in memory
// only; the token is returned as-is to the UI that stored it.
type SavedConnection struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	EngineID  string `json:"engineId"`
	Token     string `json:"token"`
	CreatedAt string `json:"createdAt"`
}

// SaveConnectionRequest creates a SavedConnection.
type SaveConnectionRequest struct {
	Name     string `json:"name"`
	EngineID string `json:"engineId"`
	Token    string `json:"token"`
}
