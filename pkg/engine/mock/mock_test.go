package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridplan/gridplan/pkg/models"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New()
	require.NoError(t, err)
	require.NoError(t, e.Connect(context.Background(), nil))
	return e
}

func f(v float64) *float64 { return &v }

func TestCatalogLoads(t *testing.T) {
	c, err := loadCatalog()
	require.NoError(t, err)

	schema := c.Schema()
	assert.Len(t, schema.Versions, 3)
	assert.Len(t, schema.Modules, 3)

	sub, ok := c.Dimension("subregion")
	require.True(t, ok)
	assert.Equal(t, "region", sub.ParentDimensionID)

	mod, ok := c.Module("revenue")
	require.True(t, ok)
	assert.Equal(t, []string{"time", "product", "subregion"}, mod.DimensionIDs)
}

func TestConnectSeedsAndDisconnectClears(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	assert.False(t, e.IsConnected())

	_, err = e.Schema(context.Background(), "demo")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)

	require.NoError(t, e.Connect(context.Background(), nil))
	assert.True(t, e.IsConnected())

	resp, err := e.ModuleData(context.Background(), "demo", "revenue", models.ModuleDataRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Rows)
	assert.NotNil(t, resp.Rows[0].Cells["units__q1_24"])

	require.NoError(t, e.Disconnect(context.Background()))
	assert.False(t, e.IsConnected())
}

func TestSchemaUnknownWorkspace(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Schema(context.Background(), "nope")
	var nf *models.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "workspace", nf.Kind)
}

func TestDimensionItemsParentFilter(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	all, err := e.DimensionItems(ctx, "demo", "subregion", nil)
	require.NoError(t, err)
	assert.Len(t, all, 7)

	eu, err := e.DimensionItems(ctx, "demo", "subregion", &models.ParentFilter{
		DimensionID: "region", ItemIDs: []string{"eu"},
	})
	require.NoError(t, err)
	ids := itemIDs(eu)
	assert.Equal(t, []string{"uk", "de", "fr"}, ids)

	_, err = e.DimensionItems(ctx, "demo", "flavor", nil)
	var nf *models.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestFilteredItemsCascade(t *testing.T) {
	c, err := loadCatalog()
	require.NoError(t, err)

	// No filters: full set.
	assert.Len(t, c.FilteredItems("subregion", nil), 7)

	// Parent selection cascades to the child dimension.
	cascaded := c.FilteredItems("subregion", map[string][]string{"region": {"na"}})
	assert.Equal(t, []string{"us", "ca"}, itemIDs(cascaded))

	// Explicit child selection wins over the parent's.
	explicit := c.FilteredItems("subregion", map[string][]string{
		"region":    {"na"},
		"subregion": {"jp"},
	})
	assert.Equal(t, []string{"jp"}, itemIDs(explicit))
}

func TestModuleDataCartesianRows(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.ModuleData(context.Background(), "demo", "revenue", models.ModuleDataRequest{})
	require.NoError(t, err)

	// 3 products x 7 subregions.
	assert.Equal(t, 21, resp.TotalRows)
	assert.Len(t, resp.Rows, 21)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 50, resp.PageSize)

	// Dimension columns precede value columns, in module order.
	require.NotEmpty(t, resp.Columns)
	assert.Equal(t, "product", resp.Columns[0].Key)
	assert.Equal(t, "subregion", resp.Columns[1].Key)

	// 6 time periods per numeric line item.
	var unitCols int
	for _, col := range resp.Columns {
		if col.LineItemID == "units" {
			unitCols++
		}
	}
	assert.Equal(t, 6, unitCols)
}

func TestModuleDataPagination(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	sizes := []int{10, 10, 1}
	for page := 1; page <= 3; page++ {
		resp, err := e.ModuleData(ctx, "demo", "revenue", models.ModuleDataRequest{
			Page: page, PageSize: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, 21, resp.TotalRows)
		assert.Len(t, resp.Rows, sizes[page-1], "page %d", page)
	}

	past, err := e.ModuleData(ctx, "demo", "revenue", models.ModuleDataRequest{Page: 4, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, past.Rows)
	assert.Equal(t, 21, past.TotalRows)
}

func TestModuleDataUnknownModule(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.ModuleData(context.Background(), "demo", "capex", models.ModuleDataRequest{})
	var nf *models.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "module", nf.Kind)
}

func TestModuleDataInvalidNumericFilter(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.ModuleData(context.Background(), "demo", "revenue", models.ModuleDataRequest{
		NumericFilters: []models.NumericFilter{{LineItemID: "units", Operator: models.OpGte}},
	})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestWriteCellsRecalculates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.WriteCells(ctx, "demo", "revenue", "actual", []models.CellWrite{
		{RowID: "row:electronics:us", ColumnKey: "units__q1_24", Value: float64(10)},
		{RowID: "row:electronics:us", ColumnKey: "price__q1_24", Value: float64(5)},
		{RowID: "row:electronics:us", ColumnKey: "discounts__q1_24", Value: float64(2)},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Errors)

	row := fetchRow(t, e, "revenue", "row:electronics:us")
	assert.Equal(t, 50.0, row.Cells["gross_rev__q1_24"])
	assert.Equal(t, 48.0, row.Cells["net_rev__q1_24"])

	// Re-running the same batch changes nothing.
	res, err = e.WriteCells(ctx, "demo", "revenue", "actual", []models.CellWrite{
		{RowID: "row:electronics:us", ColumnKey: "units__q1_24", Value: float64(10)},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	row = fetchRow(t, e, "revenue", "row:electronics:us")
	assert.Equal(t, 48.0, row.Cells["net_rev__q1_24"])
}

func TestWriteCellsRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.WriteCells(ctx, "demo", "pnl", "budget", []models.CellWrite{
		{RowID: "row:home", ColumnKey: "revenue__q2_24", Value: float64(20)},
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	resp, err := e.ModuleData(ctx, "demo", "pnl", models.ModuleDataRequest{
		Version: "budget",
		Filters: map[string][]string{"product": {"home"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, 20.0, resp.Rows[0].Cells["revenue__q2_24"])
}

func TestWriteCellsRejectsComputedLineItem(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	before := fetchRow(t, e, "revenue", "row:apparel:de")
	want := before.Cells["gross_rev__q1_24"]

	res, err := e.WriteCells(ctx, "demo", "revenue", "actual", []models.CellWrite{
		{RowID: "row:apparel:de", ColumnKey: "gross_rev__q1_24", Value: float64(999)},
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "not editable")

	after := fetchRow(t, e, "revenue", "row:apparel:de")
	assert.Equal(t, want, after.Cells["gross_rev__q1_24"])
}

func TestWriteCellsPartialBatch(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.WriteCells(ctx, "demo", "revenue", "actual", []models.CellWrite{
		{RowID: "row:home:jp", ColumnKey: "units__q1_24", Value: float64(3)},
		{RowID: "row:home:jp", ColumnKey: "bogus__q1_24", Value: float64(3)},
		{RowID: "row:home:jp", ColumnKey: "price__q1_24", Value: "not a number"},
		{RowID: "gibberish", ColumnKey: "units__q1_24", Value: float64(3)},
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Len(t, res.Errors, 3)

	// The valid cell committed and its derived values were refreshed.
	row := fetchRow(t, e, "revenue", "row:home:jp")
	assert.Equal(t, 3.0, row.Cells["units__q1_24"])
}

func TestWriteCellsTextLineItem(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.WriteCells(ctx, "demo", "revenue", "actual", []models.CellWrite{
		{RowID: "row:home:au", ColumnKey: "route", Value: "Wholesale"},
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	values, err := e.LineItemValues(ctx, "demo", "revenue", "route", "actual")
	require.NoError(t, err)
	assert.Contains(t, values, "Wholesale")

	row := fetchRow(t, e, "revenue", "row:home:au")
	assert.Equal(t, "Wholesale", row.Cells["route"])
}

func TestNumericFilterBetweenInclusive(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Pin three rows to boundary and out-of-range values for q1_24.
	for row, v := range map[string]float64{
		"row:electronics:us": 10,
		"row:electronics:ca": 20,
		"row:electronics:uk": 21,
	} {
		res, err := e.WriteCells(ctx, "demo", "revenue", "actual", []models.CellWrite{
			{RowID: row, ColumnKey: "units__q1_24", Value: v},
		})
		require.NoError(t, err)
		require.True(t, res.Success)
	}

	resp, err := e.ModuleData(ctx, "demo", "revenue", models.ModuleDataRequest{
		Filters: map[string][]string{"product": {"electronics"}, "time": {"q1_24"}},
		NumericFilters: []models.NumericFilter{
			{LineItemID: "units", Operator: models.OpBetween, Value: f(10), ValueHigh: f(20)},
		},
	})
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, row := range resp.Rows {
		ids[row.ID] = true
	}
	assert.True(t, ids["row:electronics:us"], "low boundary is inclusive")
	assert.True(t, ids["row:electronics:ca"], "high boundary is inclusive")
	assert.False(t, ids["row:electronics:uk"])
}

func TestLineItemTextFilter(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	values, err := e.LineItemValues(ctx, "demo", "revenue", "route", "actual")
	require.NoError(t, err)
	require.NotEmpty(t, values)

	resp, err := e.ModuleData(ctx, "demo", "revenue", models.ModuleDataRequest{
		LineItemFilters: map[string][]string{"route": {values[0]}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Rows)
	for _, row := range resp.Rows {
		assert.Equal(t, values[0], row.Cells["route"])
	}
	assert.Less(t, resp.TotalRows, 21)
}

func TestModuleDataSingleLineItem(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.ModuleData(context.Background(), "demo", "revenue", models.ModuleDataRequest{
		LineItemID: "units",
	})
	require.NoError(t, err)
	for _, col := range resp.Columns {
		if col.Type == models.ColumnValue {
			assert.Equal(t, "units", col.LineItemID)
		}
	}

	_, err = e.ModuleData(context.Background(), "demo", "revenue", models.ModuleDataRequest{
		LineItemID: "bogus",
	})
	var nf *models.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestSeedIsDeterministic(t *testing.T) {
	a := newTestEngine(t)
	b := newTestEngine(t)

	ra := fetchRow(t, a, "revenue", "row:electronics:us")
	rb := fetchRow(t, b, "revenue", "row:electronics:us")
	assert.Equal(t, ra.Cells, rb.Cells)
}

func itemIDs(items []models.DimensionItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func fetchRow(t *testing.T, e *Engine, moduleID, rowID string) models.DataRow {
	t.Helper()
	resp, err := e.ModuleData(context.Background(), "demo", moduleID, models.ModuleDataRequest{
		PageSize: 1000,
	})
	require.NoError(t, err)
	for _, row := range resp.Rows {
		if row.ID == rowID {
			return row
		}
	}
	t.Fatalf("row %s not found in %s", rowID, moduleID)
	return models.DataRow{}
}
