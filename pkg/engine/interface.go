// Package engine defines the planning engine abstraction for gridplan.
//
// This package defines the [Engine] interface which lets the application
// serve one normalized, dimension-aware tabular view over interchangeable
// backing engines. Two implementations ship with gridplan:
//
//   - [github.com/gridplan/gridplan/pkg/engine/mock.Engine]: a fully
//     functional in-process engine with a seeded sparse cell store, used
//     for demos and as the reference semantics for filters, row assembly
//     and recalculation
//   - [github.com/gridplan/gridplan/pkg/engine/anaplan.Engine]: a
//     normalization adapter that translates the Anaplan REST API's
//     workspace/model/list/module vocabulary into the gridplan model and
//     collapses its asynchronous export choreography into the synchronous
//     ModuleData contract
//
// Engines are selected at request time through a [Registry] keyed by
// engine id, never by switching on concrete types.
package engine

import (
	"context"

	"github.com/gridplan/gridplan/pkg/models"
)

// Engine is the capability set every backing engine must provide.
//
// Read methods surface structured failures from pkg/models (NotFoundError,
// InvalidIdentifierError, UpstreamError) rather than raw transport errors.
// WriteCells never returns an error for individually invalid cells:
// valid cells in the batch commit, invalid ones are reported in the
// CellWriteResult, and derived line items are recalculated before the call
// returns. Mutations are expected to run one at a time; engines do not
// isolate concurrent reads from an in-flight write.
//
// All blocking methods take a context for cancellation. The in-process
// engine never suspends; network-backed engines must respect deadlines on
// every upstream call.
type Engine interface {
	// ID is the stable registry key, Name a human label, Type the engine
	// family ("mock", "anaplan", ...).
	ID() string
	Name() string
	Type() string

	// Connect initializes the engine with adapter-specific configuration
	// (credentials, tokens). Connecting an already-connected engine resets
	// its state. Disconnect clears all engine state, including any cell
	// data held in memory.
	Connect(ctx context.Context, config map[string]string) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	// Workspaces lists the workspaces (or workspace:model pairs) the
	// connected engine exposes.
	Workspaces(ctx context.Context) ([]models.WorkspaceInfo, error)

	// Schema returns the full static catalog of a workspace: dimensions,
	// modules and versions. The catalog is immutable until disconnect.
	Schema(ctx context.Context, workspaceID string) (*models.WorkspaceSchema, error)

	// DimensionItems lists a dimension's items. A non-empty parent filter
	// restricts the result to items whose parentItemId is among the given
	// parent item ids (the cascading-filter read used by the UI's chained
	// dropdowns).
	DimensionItems(ctx context.Context, workspaceID, dimensionID string, parent *models.ParentFilter) ([]models.DimensionItem, error)

	// LineItemValues returns the distinct non-blank text values stored for
	// a text line item, sorted, for building filter choice lists.
	LineItemValues(ctx context.Context, workspaceID, moduleID, lineItemID, version string) ([]string, error)

	// ModuleData assembles one page of the module's tabular view: resolved
	// filters, cartesian rows, and a column per dimension plus one value
	// column per (line item, time period).
	ModuleData(ctx context.Context, workspaceID, moduleID string, req models.ModuleDataRequest) (*models.ModuleDataResponse, error)

	// WriteCells applies a batch of cell edits for one module and version,
	// then recalculates derived line items for the touched rows.
	WriteCells(ctx context.Context, workspaceID, moduleID, version string, cells []models.CellWrite) (*models.CellWriteResult, error)
}
