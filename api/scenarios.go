/*
scenarios.go - Demo rosters for testing and demonstrations

PURPOSE:

	Provides pre-built rosters that replace the stored persons with
	realistic data. Parameters are left untouched so a demo can be rerun
	under different coefficients or stacking modes.

AVAILABLE SCENARIOS:

	demo:        One person per main role across four branches
	edge-cases:  Low collection, missing company revenue, over-allocated
	             ratios and a DM with both region tiers

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "edge-cases"}

	An empty body loads "demo".

ADDING NEW SCENARIOS:
 1. Add an entry to 'scenarios' with ID, name, description and roster func

NOTE:

	Loading replaces every stored person. Only use in development/demo
	environments.

SEE ALSO:
  - handlers.go: Handler, error mapping
  - cmd/bonuscalc: uses DemoRoster for -demo
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/trouble2112/Bouns-tools/bonus"
	"go.uber.org/zap"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// DefaultScenario is loaded when a load request names no scenario.
const DefaultScenario = "demo"

type scenario struct {
	ID          string
	Name        string
	Description string
	Roster      func() []bonus.Person
}

var scenarios = []scenario{
	{
		ID:          "demo",
		Name:        "演示数据",
		Description: "One person per main role across four branches",
		Roster:      DemoRoster,
	},
	{
		ID:          "edge-cases",
		Name:        "边界情况",
		Description: "Low collection rates, missing company revenue, ratios above 100% and stacked region tiers",
		Roster:      EdgeCaseRoster,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

func (s scenario) dto() ScenarioDTO {
	return ScenarioDTO{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Persons:     len(s.Roster()),
	}
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.dto()
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	s, ok := findScenario(h.scenario())
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.dto())
}

// LoadScenario replaces the stored persons with a predefined roster.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ScenarioID == "" {
		req.ScenarioID = DefaultScenario
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	persons, err := h.Store.ReplacePersons(r.Context(), s.Roster())
	if err != nil {
		h.writeServiceError(w, r, "load_scenario", "Failed to load scenario", err)
		return
	}
	h.setCurrentScenario(s.ID)

	h.Logger.Info("scenario loaded", zap.String("scenario", s.ID), zap.Int("persons", len(persons)))
	writeJSON(w, http.StatusOK, map[string]any{"status": "loaded", "scenario": s.ID, "persons": len(persons)})
}

type resetter interface {
	Reset(ctx context.Context) error
}

// ResetScenario clears persons and parameters.
func (h *Handler) ResetScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var err error
	if s, ok := h.Store.(resetter); ok {
		err = s.Reset(ctx)
	} else if err = h.Store.DeleteAllPersons(ctx); err == nil {
		err = h.Store.SaveParameters(ctx, bonus.DefaultParameters())
	}
	if err != nil {
		h.writeServiceError(w, r, "reset", "Failed to reset store", err)
		return
	}
	h.setCurrentScenario("")

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// ROSTERS
// =============================================================================

// DemoRoster returns the demo roster: a CP, a DM, a department manager,
// a VP and two sales persons.
func DemoRoster() []bonus.Person {
	return []bonus.Person{
		{
			Name:           "王总",
			Role:           bonus.RoleCP,
			Region:         "全国",
			Org:            "总部",
			CollectionRate: dec("0.95"),
			Region90:       true,
			Region100:      true,
			National90:     true,
			CEOBonus:       dec("50000"),
		},
		{
			Name:           "李总",
			Role:           bonus.RoleDM,
			Region:         "华北",
			Org:            "北京分公司",
			Revenue:        revenue("500000", "600000", "700000", "800000", "750000", "650000"),
			CompanyRevenue: decimal.NewNullDecimal(dec("4000000")),
			Target:         dec("3800000"),
			CollectionRate: dec("0.92"),
			Region90:       true,
			CEOBonus:       dec("20000"),
		},
		{
			Name:           "张经理",
			Role:           bonus.RoleMGR,
			Region:         "华东",
			Org:            "上海分公司",
			Revenue:        revenue("150000", "180000", "200000", "220000", "190000", "160000"),
			CompanyRevenue: decimal.NewNullDecimal(dec("3000000")),
			Target:         dec("2800000"),
			CollectionRate: dec("0.91"),
			Ratio:          decimal.NewNullDecimal(dec("0.25")),
			CEOBonus:       dec("5000"),
		},
		{
			Name:           "陈销售",
			Role:           bonus.RoleSalesNew,
			Region:         "华东",
			Org:            "上海分公司",
			Revenue:        revenue("80000", "90000", "100000", "110000", "95000", "85000"),
			CompanyRevenue: decimal.NewNullDecimal(dec("3000000")),
			Target:         dec("500000"),
			CollectionRate: dec("0.88"),
			Ratio:          decimal.NewNullDecimal(dec("0.15")),
		},
		{
			Name:           "刘副总",
			Role:           bonus.RoleVP,
			Region:         "华南",
			Org:            "深圳分公司",
			Revenue:        revenue("200000", "250000", "280000", "300000", "270000", "230000"),
			CompanyRevenue: decimal.NewNullDecimal(dec("2500000")),
			Target:         dec("2300000"),
			CollectionRate: dec("0.93"),
			Ratio:          decimal.NewNullDecimal(dec("0.4")),
			CEOBonus:       dec("10000"),
		},
		{
			Name:           "赵销售",
			Role:           bonus.RoleSalesEdu,
			Region:         "西南",
			Org:            "成都分公司",
			Revenue:        revenue("60000", "70000", "85000", "90000", "80000", "65000"),
			CompanyRevenue: decimal.NewNullDecimal(dec("1800000")),
			Target:         dec("400000"),
			CollectionRate: dec("0.90"),
			Ratio:          decimal.NewNullDecimal(dec("0.2")),
		},
	}
}

// EdgeCaseRoster returns persons that trigger validation warnings and the
// less common payout paths. Every entry is still valid.
func EdgeCaseRoster() []bonus.Person {
	return []bonus.Person{
		{
			Name:           "孙总",
			Role:           bonus.RoleDM,
			Region:         "华中",
			Org:            "武汉分公司",
			Revenue:        revenue("400000", "400000", "400000", "400000", "400000", "400000"),
			CompanyRevenue: decimal.NewNullDecimal(dec("2600000")),
			Target:         dec("2400000"),
			CollectionRate: dec("0.95"),
			Region90:       true,
			Region100:      true,
		},
		{
			Name:           "周经理",
			Role:           bonus.RoleMGR,
			Region:         "华中",
			Org:            "武汉分公司",
			Revenue:        revenue("100000", "100000", "100000", "100000", "100000", "100000"),
			CompanyRevenue: decimal.NewNullDecimal(dec("2600000")),
			Target:         dec("2400000"),
			CollectionRate: dec("0.80"),
			Ratio:          decimal.NewNullDecimal(dec("0.6")),
		},
		{
			Name:           "吴销售",
			Role:           bonus.RoleSalesUser,
			Region:         "华中",
			Org:            "武汉分公司",
			Revenue:        revenue("50000", "60000", "70000", "80000", "90000", "100000"),
			CompanyRevenue: decimal.NewNullDecimal(dec("2600000")),
			Target:         dec("2400000"),
			CollectionRate: dec("0.87"),
			Ratio:          decimal.NewNullDecimal(dec("0.6")),
		},
		{
			Name:           "郑销售",
			Role:           bonus.RoleSalesNew,
			Region:         "西北",
			Org:            "西安分公司",
			Revenue:        revenue("30000", "30000", "30000", "30000", "30000", "30000"),
			Target:         dec("150000"),
			CollectionRate: dec("0.92"),
		},
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func revenue(values ...string) [bonus.Periods]decimal.Decimal {
	var out [bonus.Periods]decimal.Decimal
	for i, v := range values {
		out[i] = dec(v)
	}
	return out
}
