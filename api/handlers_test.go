/*
handlers_test.go - HTTP tests for the bonus API

Tests for:
- Person CRUD and validation errors
- Parameter updates
- Calculation and Excel report over the demo roster
- Scenario loading and reset
- Error mapping, metrics and tracing
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trouble2112/Bouns-tools/bonus"
	"github.com/trouble2112/Bouns-tools/observability"
	"github.com/trouble2112/Bouns-tools/report"
	"github.com/trouble2112/Bouns-tools/store/memory"
	"github.com/trouble2112/Bouns-tools/store/sqlite"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// =============================================================================
// HELPERS
// =============================================================================

func newTestServer(t *testing.T, store bonus.Store) (*Handler, http.Handler) {
	t.Helper()
	if store == nil {
		store = memory.New()
	}
	h := NewHandler(store, zap.NewNop(), observability.NewMetrics())
	h.Workers = 2
	return h, NewRouter(h, RouterOptions{})
}

func do(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func f(v float64) *float64 { return &v }

func salesRequest(name string) PersonRequest {
	return PersonRequest{
		Name:           name,
		Role:           "SALES_NEW",
		Org:            "上海分公司",
		Revenue:        []float64{80000, 90000, 100000, 110000, 95000, 85000},
		CompanyRevenue: f(3000000),
		Target:         500000,
		CollectionRate: f(0.88),
		Ratio:          f(0.15),
	}
}

// =============================================================================
// PERSONS
// =============================================================================

func TestPersons_Lifecycle(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Creating, reading, updating and deleting a person
	// THEN: Each step returns the expected status and body

	_, srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/persons", salesRequest("陈销售"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[PersonDTO](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "SALES_NEW", created.Role)
	assert.Equal(t, "销售-新购", created.RoleName)
	assert.Len(t, created.Revenue, bonus.Periods)

	rec = do(t, srv, http.MethodGet, "/api/persons/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "陈销售", decode[PersonDTO](t, rec).Name)

	update := salesRequest("陈销售")
	update.CEOBonus = 3000
	rec = do(t, srv, http.MethodPut, "/api/persons/"+created.ID, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3000.0, decode[PersonDTO](t, rec).CEOBonus)

	rec = do(t, srv, http.MethodGet, "/api/persons", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]PersonDTO](t, rec), 1)

	rec = do(t, srv, http.MethodDelete, "/api/persons/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/persons/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePerson_Defaults(t *testing.T) {
	_, srv := newTestServer(t, nil)

	req := salesRequest("x")
	req.CollectionRate = nil
	req.Ratio = nil
	req.Revenue = []float64{100000}

	rec := do(t, srv, http.MethodPost, "/api/persons", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	p := decode[PersonDTO](t, rec)
	assert.Equal(t, 0.9, p.CollectionRate)
	assert.Nil(t, p.Ratio)
	assert.Equal(t, []float64{100000, 0, 0, 0, 0, 0}, p.Revenue)
}

func TestCreatePerson_Rejected(t *testing.T) {
	_, srv := newTestServer(t, nil)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"bad json", `{"name":`, ""},
		{"unknown role", PersonRequest{Name: "x", Role: "JANITOR", Target: 1}, "unknown_role"},
		{"empty name", salesRequest(" "), "validation_failed"},
		{"collection above one", func() PersonRequest { r := salesRequest("x"); r.CollectionRate = f(1.2); return r }(), "validation_failed"},
		{"too many periods", func() PersonRequest { r := salesRequest("x"); r.Revenue = make([]float64, 7); return r }(), "validation_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/persons", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
		})
	}

	rec := do(t, srv, http.MethodGet, "/api/persons", nil)
	assert.Empty(t, decode[[]PersonDTO](t, rec), "nothing stored")
}

func TestCreatePerson_ValidationDetails(t *testing.T) {
	_, srv := newTestServer(t, nil)

	req := salesRequest("x")
	req.Target = 0

	rec := do(t, srv, http.MethodPost, "/api/persons", req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Code    string     `json:"code"`
		Details []IssueDTO `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_failed", resp.Code)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, "target", resp.Details[0].Field)
}

func TestPersons_NotFound(t *testing.T) {
	_, srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPut, "/api/persons/missing", salesRequest("x"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, rec).Code)

	rec = do(t, srv, http.MethodDelete, "/api/persons/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/persons/missing/breakdown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteAllPersons(t *testing.T) {
	_, srv := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/scenarios/load", nil).Code)

	rec := do(t, srv, http.MethodDelete, "/api/persons", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, decode[[]PersonDTO](t, do(t, srv, http.MethodGet, "/api/persons", nil)))
	assert.Equal(t, "null\n", do(t, srv, http.MethodGet, "/api/scenarios/current", nil).Body.String())
}

func TestGetPersonBreakdown(t *testing.T) {
	_, srv := newTestServer(t, nil)
	created := decode[PersonDTO](t, do(t, srv, http.MethodPost, "/api/persons", salesRequest("陈销售")))

	rec := do(t, srv, http.MethodGet, "/api/persons/"+created.ID+"/breakdown", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	b := decode[BreakdownDTO](t, rec)
	assert.InDelta(t, 17197.5, b.Incentive, 0.001)
	assert.InDelta(t, 6750, b.CompletionBonusTotal, 0.001)
	assert.InDelta(t, 4800, b.Subsidy, 0.001)
	assert.InDelta(t, 28747.5, b.Total, 0.001)
	assert.Equal(t, "stack", b.Mode)
	assert.Empty(t, b.Warnings)
}

// =============================================================================
// PARAMETERS
// =============================================================================

func TestParameters_DefaultsAndUpdate(t *testing.T) {
	// GIVEN: A store with no saved parameters
	// WHEN: Reading, then updating only dm_mode and split_payout
	// THEN: Defaults are returned first, and other fields survive the update

	_, srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/api/params", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	params := decode[ParametersDTO](t, rec)
	assert.Equal(t, []float64{1.15, 1.15, 1.1, 1, 0.9, 0.85}, params.Coefficients)
	assert.Equal(t, "exclusive", params.DMMode)
	assert.Equal(t, 60000.0, params.CPSubsidy)
	assert.Nil(t, params.UpdatedAt)

	rec = do(t, srv, http.MethodPut, "/api/params", map[string]any{"dm_mode": "stack", "split_payout": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	params = decode[ParametersDTO](t, rec)
	assert.Equal(t, "stack", params.DMMode)
	assert.True(t, params.SplitPayout)
	assert.Equal(t, 0.85, params.Threshold90)
	assert.NotNil(t, params.UpdatedAt)

	rec = do(t, srv, http.MethodPost, "/api/params", map[string]any{"coefficients": []float64{1, 1, 1, 1, 1, 1}})
	require.Equal(t, http.StatusOK, rec.Code)
	params = decode[ParametersDTO](t, do(t, srv, http.MethodGet, "/api/params", nil))
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1}, params.Coefficients)
	assert.Equal(t, "stack", params.DMMode)
}

func TestParameters_Rejected(t *testing.T) {
	_, srv := newTestServer(t, nil)

	for name, body := range map[string]any{
		"unknown mode":      map[string]any{"other_mode": "sometimes"},
		"short":             map[string]any{"coefficients": []float64{1, 1}},
		"zero coefficient":  map[string]any{"coefficients": []float64{1, 1, 0, 1, 1, 1}},
		"threshold above 1": map[string]any{"threshold_100": 1.5},
		"negative subsidy":  map[string]any{"sales_subsidy": -1},
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPut, "/api/params", body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_parameters", decode[ErrorResponse](t, rec).Code)
		})
	}

	params := decode[ParametersDTO](t, do(t, srv, http.MethodGet, "/api/params", nil))
	assert.Equal(t, "stack", params.OtherMode, "nothing saved")
}

func TestListRoles(t *testing.T) {
	_, srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/api/roles", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	roles := decode[[]RoleDTO](t, rec)
	require.Len(t, roles, 7)
	assert.Equal(t, "CP", roles[0].Role)
	assert.True(t, roles[0].EligibleForNationalBonus)
	assert.Equal(t, 0.004, roles[1].IncentiveRate)
}

// =============================================================================
// CALCULATION
// =============================================================================

func TestCalculation_DemoRoster(t *testing.T) {
	// GIVEN: The demo roster under default parameters
	// WHEN: Calculating
	// THEN: Known totals match and the summary adds up

	_, srv := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"demo"}`).Code)

	rec := do(t, srv, http.MethodGet, "/api/calculation", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[CalculationResponse](t, rec)

	require.Len(t, resp.Results, 6)
	assert.Equal(t, "王总", resp.Results[0].Name)
	assert.InDelta(t, 210000, resp.Results[0].Total, 0.001)
	assert.Empty(t, resp.Results[0].Mode)
	assert.NotEmpty(t, resp.Results[0].Warnings, "CP has no revenue")

	dm := resp.Results[1]
	assert.InDelta(t, 16250, dm.Incentive, 0.001)
	assert.InDelta(t, 16000, dm.CompletionBonusTotal, 0.001)
	assert.InDelta(t, 40000, dm.RegionBonus, 0.001)
	assert.InDelta(t, 92250, dm.Total, 0.001)
	assert.Equal(t, "exclusive", dm.Mode)
	assert.Nil(t, dm.IncentiveImmediate)

	assert.InDelta(t, 28747.5, resp.Results[3].Total, 0.001)

	var sum float64
	for _, r := range resp.Results {
		sum += r.Total
	}
	assert.Equal(t, 6, resp.Summary.Count)
	assert.InDelta(t, sum, resp.Summary.Total, 0.01)
	assert.Len(t, resp.Summary.Roles, 6)
	assert.Equal(t, "exclusive", resp.Parameters.DMMode)
}

func TestCalculation_SplitPayout(t *testing.T) {
	_, srv := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/scenarios/load", nil).Code)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPut, "/api/params", map[string]any{"split_payout": true}).Code)

	resp := decode[CalculationResponse](t, do(t, srv, http.MethodGet, "/api/calculation", nil))

	dm := resp.Results[1]
	require.NotNil(t, dm.IncentiveImmediate)
	require.NotNil(t, dm.IncentiveAfterCollection)
	assert.InDelta(t, 8125, *dm.IncentiveImmediate, 0.001)
	assert.InDelta(t, 8125, *dm.IncentiveAfterCollection, 0.001)
	assert.InDelta(t, 92250, dm.Total, 0.001, "split does not change the total")
}

func TestCalculation_EmptyRoster(t *testing.T) {
	_, srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/api/calculation", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[CalculationResponse](t, rec)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 0, resp.Summary.Count)
	assert.Equal(t, 0.0, resp.Summary.Total)
}

func TestCalculation_RatioWarning(t *testing.T) {
	_, srv := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"edge-cases"}`).Code)

	resp := decode[CalculationResponse](t, do(t, srv, http.MethodGet, "/api/calculation", nil))

	require.Len(t, resp.Results, 4)
	for _, i := range []int{1, 2} {
		var fields []string
		for _, w := range resp.Results[i].Warnings {
			fields = append(fields, w.Field)
		}
		assert.Contains(t, fields, "ratio", resp.Results[i].Name)
	}
	assert.InDelta(t, 40000, resp.Results[0].RegionBonus, 0.001, "DM gets one award for both region tiers")
}

func TestCalculation_Metrics(t *testing.T) {
	_, srv := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/scenarios/load", nil).Code)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/calculation", nil).Code)

	rec := do(t, srv, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bonus_persons_computed_total 6")
	assert.Contains(t, rec.Body.String(), "bonus_calculation_duration_seconds_count 1")
}

func TestCalculation_Span(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	_, srv := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/scenarios/load", nil).Code)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/calculation", nil).Code)

	var found bool
	for _, s := range recorder.Ended() {
		if s.Name() != "GET /api/calculation" {
			continue
		}
		found = true
		for _, kv := range s.Attributes() {
			if kv.Key == "bonus.persons" {
				assert.Equal(t, int64(6), kv.Value.AsInt64())
			}
		}
	}
	assert.True(t, found, "calculation span recorded")
}

func TestReport(t *testing.T) {
	_, srv := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/scenarios/load", nil).Code)

	rec := do(t, srv, http.MethodGet, "/api/report.xlsx", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.ContentType, rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), `attachment; filename="bonus_report_`))

	wb, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, []string{report.SummarySheet, report.DetailSheet}, wb.GetSheetList())

	rows, err := wb.GetRows(report.DetailSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 7, "header plus six persons")

	metrics := do(t, srv, http.MethodGet, "/metrics", nil)
	assert.Contains(t, metrics.Body.String(), "bonus_reports_generated_total 1")
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarios(t *testing.T) {
	_, srv := newTestServer(t, nil)

	list := decode[[]ScenarioDTO](t, do(t, srv, http.MethodGet, "/api/scenarios", nil))
	require.Len(t, list, 2)
	assert.Equal(t, "demo", list[0].ID)
	assert.Equal(t, 6, list[0].Persons)

	assert.Equal(t, "null\n", do(t, srv, http.MethodGet, "/api/scenarios/current", nil).Body.String())

	rec := do(t, srv, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"edge-cases"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	current := decode[ScenarioDTO](t, do(t, srv, http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "edge-cases", current.ID)

	rec = do(t, srv, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, decode[[]PersonDTO](t, do(t, srv, http.MethodGet, "/api/persons", nil)), 4, "roster unchanged")
}

func TestScenarios_LoadReplacesRoster(t *testing.T) {
	// GIVEN: A roster with one hand-entered person
	// WHEN: Loading the demo roster twice
	// THEN: Only the six demo persons remain

	_, srv := newTestServer(t, nil)
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/persons", salesRequest("x")).Code)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/scenarios/load", nil).Code)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/scenarios/load", nil).Code)

	persons := decode[[]PersonDTO](t, do(t, srv, http.MethodGet, "/api/persons", nil))
	require.Len(t, persons, 6)
	assert.Equal(t, "王总", persons[0].Name)
	assert.Equal(t, "赵销售", persons[5].Name)
}

func TestScenarios_Reset(t *testing.T) {
	_, srv := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/scenarios/load", nil).Code)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPut, "/api/params", map[string]any{"dm_mode": "stack"}).Code)

	rec := do(t, srv, http.MethodPost, "/api/scenarios/reset", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]PersonDTO](t, do(t, srv, http.MethodGet, "/api/persons", nil)))
	params := decode[ParametersDTO](t, do(t, srv, http.MethodGet, "/api/params", nil))
	assert.Equal(t, "exclusive", params.DMMode)
}

func TestDemoRoster_Valid(t *testing.T) {
	for _, s := range scenarios {
		persons := s.Roster()
		for i := range persons {
			persons[i].ID = fmt.Sprintf("%s-%d", s.ID, i)
		}
		results := bonus.ValidateRoster(persons, bonus.DefaultParameters())
		for _, p := range persons {
			assert.True(t, results[p.ID].Valid(), "%s/%s: %v", s.ID, p.Name, results[p.ID].Errors)
		}
	}
}

// =============================================================================
// STORES & ERRORS
// =============================================================================

func TestRouter_SQLiteStore(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, srv := newTestServer(t, store)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", nil).Code)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/scenarios/load", nil).Code)

	resp := decode[CalculationResponse](t, do(t, srv, http.MethodGet, "/api/calculation", nil))
	require.Len(t, resp.Results, 6)
	assert.InDelta(t, 92250, resp.Results[1].Total, 0.001)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/scenarios/reset", nil).Code)
	assert.Empty(t, decode[[]PersonDTO](t, do(t, srv, http.MethodGet, "/api/persons", nil)))
}

type failingStore struct {
	*memory.Memory
}

func (failingStore) ListPersons(context.Context) ([]bonus.Person, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) Ping(context.Context) error {
	return errors.New("disk on fire")
}

func TestStoreFailure(t *testing.T) {
	// GIVEN: A store whose reads fail
	// WHEN: Listing persons
	// THEN: 500 with code internal, counted per operation

	_, srv := newTestServer(t, failingStore{memory.New()})

	rec := do(t, srv, http.MethodGet, "/api/persons", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", decode[ErrorResponse](t, rec).Code)

	rec = do(t, srv, http.MethodGet, "/api/calculation", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	metrics := do(t, srv, http.MethodGet, "/metrics", nil).Body.String()
	assert.Contains(t, metrics, `bonus_store_errors_total{op="list_persons"} 1`)
	assert.Contains(t, metrics, `bonus_store_errors_total{op="calculate"} 1`)

	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodGet, "/healthz", nil).Code)
}

func TestIndexPage(t *testing.T) {
	_, srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/calculation")
}
