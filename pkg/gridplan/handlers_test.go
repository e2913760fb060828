package gridplan

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridplan/gridplan/pkg/models"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := New(&Config{ServerPort: "0", LogLevel: "error"})
	require.NoError(t, err)
	return app
}

func doRequest(t *testing.T, app *App, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/health", "/api/health"} {
		rec := doRequest(t, app, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		body := decode[map[string]any](t, rec)
		assert.Equal(t, "ok", body["status"])
	}
}

func TestListEngines(t *testing.T) {
	app := newTestApp(t)

	rec := doRequest(t, app, http.MethodGet, "/api/engines", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	engines := decode[[]models.EngineInfo](t, rec)
	require.Len(t, engines, 2)
	assert.Equal(t, "anaplan", engines[0].ID)
	assert.False(t, engines[0].Connected)
	assert.Equal(t, "mock", engines[1].ID)
	assert.True(t, engines[1].Connected)
}

func TestUnknownEngine(t *testing.T) {
	app := newTestApp(t)

	rec := doRequest(t, app, http.MethodGet, "/api/engines/sap/workspaces", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConnectWithoutCredentials(t *testing.T) {
	app := newTestApp(t)
	t.Setenv("ANAPLAN_TOKEN", "")
	t.Setenv("ANAPLAN_EMAIL", "")
	t.Setenv("ANAPLAN_PASSWORD", "")

	rec := doRequest(t, app, http.MethodPost, "/api/engines/anaplan/connect", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDisconnectAndReconnectMock(t *testing.T) {
	app := newTestApp(t)

	rec := doRequest(t, app, http.MethodPost, "/api/engines/mock/disconnect", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, app, http.MethodGet, "/api/engines/mock/workspaces", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, app, http.MethodPost, "/api/engines/mock/connect", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, app, http.MethodGet, "/api/engines/mock/workspaces", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	workspaces := decode[[]models.WorkspaceInfo](t, rec)
	assert.Len(t, workspaces, 2)
}

func TestGetSchema(t *testing.T) {
	app := newTestApp(t)

	rec := doRequest(t, app, http.MethodGet, "/api/engines/mock/workspaces/demo/schema", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	schema := decode[models.WorkspaceSchema](t, rec)
	assert.Len(t, schema.Modules, 3)
	assert.Len(t, schema.Versions, 3)

	rec = doRequest(t, app, http.MethodGet, "/api/engines/mock/workspaces/nope/schema", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDimensionItemsRoute(t *testing.T) {
	app := newTestApp(t)

	rec := doRequest(t, app, http.MethodGet,
		"/api/engines/mock/workspaces/demo/dimensions/subregion/items?parentDimensionId=region&parentItemIds=na", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	items := decode[[]models.DimensionItem](t, rec)
	require.Len(t, items, 2)
	assert.Equal(t, "us", items[0].ID)
}

func TestModuleDataRoute(t *testing.T) {
	app := newTestApp(t)

	filters := url.QueryEscape(`{"product":["electronics"],"time":["q1_24"]}`)
	numeric := url.QueryEscape(`[{"lineItemId":"units","operator":"gte","value":0}]`)
	path := "/api/engines/mock/workspaces/demo/modules/revenue/data?filters=" + filters +
		"&numericFilters=" + numeric + "&page=1&pageSize=5"

	rec := doRequest(t, app, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decode[models.ModuleDataResponse](t, rec)
	assert.Equal(t, 7, data.TotalRows)
	assert.Len(t, data.Rows, 5)
	assert.Equal(t, 5, data.PageSize)
}

func TestModuleDataMalformedFilters(t *testing.T) {
	app := newTestApp(t)

	rec := doRequest(t, app, http.MethodGet,
		"/api/engines/mock/workspaces/demo/modules/revenue/data?filters=not-json", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWriteCellsRoute(t *testing.T) {
	app := newTestApp(t)

	rec := doRequest(t, app, http.MethodPost,
		"/api/engines/mock/workspaces/demo/modules/revenue/cells",
		models.WriteCellsRequest{
			Version: "actual",
			Cells: []models.CellWrite{
				{RowID: "row:electronics:us", ColumnKey: "units__q1_24", Value: 10},
				{RowID: "row:electronics:us", ColumnKey: "price__q1_24", Value: 5},
			},
		})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[models.CellWriteResult](t, rec)
	assert.True(t, result.Success)

	// Writing a computed line item reports per-cell errors, not an HTTP
	// failure.
	rec = doRequest(t, app, http.MethodPost,
		"/api/engines/mock/workspaces/demo/modules/revenue/cells",
		models.WriteCellsRequest{
			Version: "actual",
			Cells:   []models.CellWrite{{RowID: "row:electronics:us", ColumnKey: "net_rev__q1_24", Value: 1}},
		})
	require.Equal(t, http.StatusOK, rec.Code)
	result = decode[models.CellWriteResult](t, rec)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "not editable")
}

func TestWriteCellsUnknownModule(t *testing.T) {
	app := newTestApp(t)

	rec := doRequest(t, app, http.MethodPost,
		"/api/engines/mock/workspaces/demo/modules/capex/cells",
		models.WriteCellsRequest{Version: "actual"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLineItemValuesRoute(t *testing.T) {
	app := newTestApp(t)

	rec := doRequest(t, app, http.MethodGet,
		"/api/engines/mock/workspaces/demo/modules/revenue/lineitems/route/values?version=actual", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	values := decode[[]string](t, rec)
	assert.NotEmpty(t, values)
}

func TestModelsRouteOnlyForAnaplan(t *testing.T) {
	app := newTestApp(t)

	rec := doRequest(t, app, http.MethodGet, "/api/engines/mock/workspaces/demo/models", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConnectionsCRUD(t *testing.T) {
	app := newTestApp(t)

	rec := doRequest(t, app, http.MethodPost, "/api/connections",
		models.SaveConnectionRequest{Name: "prod", EngineID: "anaplan", Token: "tok"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.SavedConnection](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "prod", created.Name)

	rec = doRequest(t, app, http.MethodGet, "/api/connections", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]models.SavedConnection](t, rec)
	require.Len(t, listed, 1)

	rec = doRequest(t, app, http.MethodDelete, "/api/connections/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, app, http.MethodDelete, "/api/connections/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Unknown engine is rejected on save.
	rec = doRequest(t, app, http.MethodPost, "/api/connections",
		models.SaveConnectionRequest{Name: "bad", EngineID: "sap"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSHeaders(t *testing.T) {
	app := newTestApp(t)

	rec := doRequest(t, app, http.MethodGet, "/api/engines", nil)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/api/engines/mock/connect", nil)
	pre := httptest.NewRecorder()
	app.Router().ServeHTTP(pre, req)
	assert.Equal(t, http.StatusNoContent, pre.Code)
	assert.Equal(t, "*", pre.Header().Get("Access-Control-Allow-Origin"))
}

func TestEventFeed(t *testing.T) {
	app := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go app.hub.run(ctx)

	srv := httptest.NewServer(app.Router())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The hub registers subscribers asynchronously.
	time.Sleep(50 * time.Millisecond)

	rec := doRequest(t, app, http.MethodPost,
		"/api/engines/mock/workspaces/demo/modules/revenue/cells",
		models.WriteCellsRequest{
			Version: "actual",
			Cells:   []models.CellWrite{{RowID: "row:home:jp", ColumnKey: "units__q2_24", Value: 7}},
		})
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event cellEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "cellsWritten", event.Type)
	assert.Equal(t, "revenue", event.ModuleID)
	assert.Equal(t, 1, event.Cells)
}
