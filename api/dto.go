/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Amounts cross
  the boundary as float64; the domain keeps them as decimal.Decimal.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Persons:     PersonDTO, PersonRequest
  Parameters:  ParametersDTO, ParametersRequest
  Roles:       RoleDTO
  Calculation: BreakdownDTO, SummaryDTO, CalculationResponse
  Scenarios:   ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Shape checks (period count, unknown role) happen while converting a
  request; business rules run through bonus.ValidatePerson in handlers.

SEE ALSO:
  - handlers.go: Uses these types
  - bonus/types.go: Domain types
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trouble2112/Bouns-tools/bonus"
)

// =============================================================================
// PERSONS
// =============================================================================

// PersonDTO represents a person in API responses.
type PersonDTO struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	RoleName       string    `json:"role_name"`
	Region         string    `json:"region"`
	Org            string    `json:"org"`
	Revenue        []float64 `json:"revenue"`
	CompanyRevenue *float64  `json:"company_revenue"`
	Target         float64   `json:"target"`
	CollectionRate float64   `json:"collection_rate"`
	Ratio          *float64  `json:"ratio"`
	Region90       bool      `json:"region_90"`
	Region100      bool      `json:"region_100"`
	National90     bool      `json:"national_90"`
	National100    bool      `json:"national_100"`
	CEOBonus       float64   `json:"ceo_bonus"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PersonRequest is the body of POST /api/persons and PUT /api/persons/{id}.
type PersonRequest struct {
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	Region         string    `json:"region"`
	Org            string    `json:"org"`
	Revenue        []float64 `json:"revenue"`
	CompanyRevenue *float64  `json:"company_revenue"`
	Target         float64   `json:"target"`
	// CollectionRate defaults to 0.9 when omitted.
	CollectionRate *float64 `json:"collection_rate"`
	Ratio          *float64 `json:"ratio"`
	Region90       bool     `json:"region_90"`
	Region100      bool     `json:"region_100"`
	National90     bool     `json:"national_90"`
	National100    bool     `json:"national_100"`
	CEOBonus       float64  `json:"ceo_bonus"`
}

var defaultCollectionRate = decimal.RequireFromString("0.9")

// toPerson converts the request. Missing revenue periods are zero.
func (req PersonRequest) toPerson(id string) (bonus.Person, error) {
	role, err := bonus.ParseRole(req.Role)
	if err != nil {
		return bonus.Person{}, err
	}
	if len(req.Revenue) > bonus.Periods {
		return bonus.Person{}, &bonus.ValidationError{PersonID: id, Issues: []bonus.Issue{{
			Field:   "revenue",
			Message: fmt.Sprintf("at most %d periods allowed, got %d", bonus.Periods, len(req.Revenue)),
		}}}
	}

	p := bonus.Person{
		ID:             id,
		Name:           req.Name,
		Role:           role,
		Region:         req.Region,
		Org:            req.Org,
		CompanyRevenue: nullDecimal(req.CompanyRevenue),
		Target:         decimal.NewFromFloat(req.Target),
		CollectionRate: defaultCollectionRate,
		Ratio:          nullDecimal(req.Ratio),
		Region90:       req.Region90,
		Region100:      req.Region100,
		National90:     req.National90,
		National100:    req.National100,
		CEOBonus:       decimal.NewFromFloat(req.CEOBonus),
	}
	for i, v := range req.Revenue {
		p.Revenue[i] = decimal.NewFromFloat(v)
	}
	if req.CollectionRate != nil {
		p.CollectionRate = decimal.NewFromFloat(*req.CollectionRate)
	}
	return p, nil
}

func toPersonDTO(p bonus.Person) PersonDTO {
	return PersonDTO{
		ID:             p.ID,
		Name:           p.Name,
		Role:           string(p.Role),
		RoleName:       p.Role.DisplayName(),
		Region:         p.Region,
		Org:            p.Org,
		Revenue:        floats(p.Revenue),
		CompanyRevenue: floatPtr(p.CompanyRevenue),
		Target:         p.Target.InexactFloat64(),
		CollectionRate: p.CollectionRate.InexactFloat64(),
		Ratio:          floatPtr(p.Ratio),
		Region90:       p.Region90,
		Region100:      p.Region100,
		National90:     p.National90,
		National100:    p.National100,
		CEOBonus:       p.CEOBonus.InexactFloat64(),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// =============================================================================
// PARAMETERS
// =============================================================================

// ParametersDTO represents the parameter set in API responses.
type ParametersDTO struct {
	Coefficients []float64  `json:"coefficients"`
	Threshold90  float64    `json:"threshold_90"`
	Threshold100 float64    `json:"threshold_100"`
	DMMode       string     `json:"dm_mode"`
	OtherMode    string     `json:"other_mode"`
	CPSubsidy    float64    `json:"cp_subsidy"`
	SalesSubsidy float64    `json:"sales_subsidy"`
	SplitPayout  bool       `json:"split_payout"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// ParametersRequest is the body of PUT /api/params. Omitted fields keep
// their current value.
type ParametersRequest struct {
	Coefficients []float64 `json:"coefficients"`
	Threshold90  *float64  `json:"threshold_90"`
	Threshold100 *float64  `json:"threshold_100"`
	DMMode       *string   `json:"dm_mode"`
	OtherMode    *string   `json:"other_mode"`
	CPSubsidy    *float64  `json:"cp_subsidy"`
	SalesSubsidy *float64  `json:"sales_subsidy"`
	SplitPayout  *bool     `json:"split_payout"`
}

// apply overlays the request on current. The result is not validated here.
func (req ParametersRequest) apply(current bonus.Parameters) (bonus.Parameters, error) {
	if req.Coefficients != nil {
		if len(req.Coefficients) != bonus.Periods {
			return bonus.Parameters{}, &bonus.ParametersError{Issues: []bonus.Issue{{
				Field:   "coefficients",
				Message: fmt.Sprintf("expected %d values, got %d", bonus.Periods, len(req.Coefficients)),
			}}}
		}
		for i, c := range req.Coefficients {
			current.Coefficients[i] = decimal.NewFromFloat(c)
		}
	}
	if req.Threshold90 != nil {
		current.Threshold90 = decimal.NewFromFloat(*req.Threshold90)
	}
	if req.Threshold100 != nil {
		current.Threshold100 = decimal.NewFromFloat(*req.Threshold100)
	}
	if req.DMMode != nil {
		current.DMMode = bonus.StackingMode(*req.DMMode)
	}
	if req.OtherMode != nil {
		current.OtherMode = bonus.StackingMode(*req.OtherMode)
	}
	if req.CPSubsidy != nil {
		current.CPSubsidy = decimal.NewFromFloat(*req.CPSubsidy)
	}
	if req.SalesSubsidy != nil {
		current.SalesSubsidy = decimal.NewFromFloat(*req.SalesSubsidy)
	}
	if req.SplitPayout != nil {
		current.SplitPayout = *req.SplitPayout
	}
	return current, nil
}

func toParametersDTO(p bonus.Parameters) ParametersDTO {
	dto := ParametersDTO{
		Coefficients: floats(p.Coefficients),
		Threshold90:  p.Threshold90.InexactFloat64(),
		Threshold100: p.Threshold100.InexactFloat64(),
		DMMode:       string(p.DMMode),
		OtherMode:    string(p.OtherMode),
		CPSubsidy:    p.CPSubsidy.InexactFloat64(),
		SalesSubsidy: p.SalesSubsidy.InexactFloat64(),
		SplitPayout:  p.SplitPayout,
	}
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt
		dto.UpdatedAt = &t
	}
	return dto
}

// =============================================================================
// ROLES
// =============================================================================

// RoleDTO represents one catalog entry.
type RoleDTO struct {
	Role                     string  `json:"role"`
	DisplayName              string  `json:"display_name"`
	IncentiveRate            float64 `json:"incentive_rate"`
	EligibleForRegionBonus   bool    `json:"eligible_for_region_bonus"`
	EligibleForNationalBonus bool    `json:"eligible_for_national_bonus"`
	EligibleForFixedSubsidy  bool    `json:"eligible_for_fixed_subsidy"`
}

func toRoleDTO(p bonus.RoleProfile) RoleDTO {
	return RoleDTO{
		Role:                     string(p.Role),
		DisplayName:              p.DisplayName,
		IncentiveRate:            p.IncentiveRate.InexactFloat64(),
		EligibleForRegionBonus:   p.EligibleForRegionBonus,
		EligibleForNationalBonus: p.EligibleForNationalBonus,
		EligibleForFixedSubsidy:  p.EligibleForFixedSubsidy,
	}
}

// =============================================================================
// CALCULATION
// =============================================================================

// IssueDTO is one validation finding.
type IssueDTO struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// BreakdownDTO represents one person's computed bonus.
type BreakdownDTO struct {
	PersonID                 string     `json:"person_id"`
	Name                     string     `json:"name"`
	Role                     string     `json:"role"`
	RoleName                 string     `json:"role_name"`
	TotalRevenue             float64    `json:"total_revenue"`
	CompletionRate           float64    `json:"completion_rate"`
	CollectionRate           float64    `json:"collection_rate"`
	Incentive                float64    `json:"incentive"`
	MonthlyIncentives        []float64  `json:"monthly_incentives"`
	IncentiveImmediate       *float64   `json:"incentive_immediate,omitempty"`
	IncentiveAfterCollection *float64   `json:"incentive_after_collection,omitempty"`
	CompletionBonus90        float64    `json:"completion_bonus_90"`
	CompletionBonus100       float64    `json:"completion_bonus_100"`
	CompletionBonusTotal     float64    `json:"completion_bonus_total"`
	Mode                     string     `json:"mode,omitempty"`
	RegionBonus              float64    `json:"region_bonus"`
	NationalBonus            float64    `json:"national_bonus"`
	Subsidy                  float64    `json:"subsidy"`
	CEOBonus                 float64    `json:"ceo_bonus"`
	Total                    float64    `json:"total"`
	Warnings                 []IssueDTO `json:"warnings"`
	Errors                   []IssueDTO `json:"errors,omitempty"`
}

// RoleSubtotalDTO is one per-role line of the summary.
type RoleSubtotalDTO struct {
	Role     string  `json:"role"`
	RoleName string  `json:"role_name"`
	Count    int     `json:"count"`
	Total    float64 `json:"total"`
}

// SummaryDTO represents roster totals.
type SummaryDTO struct {
	Count           int               `json:"count"`
	Incentive       float64           `json:"incentive"`
	CompletionBonus float64           `json:"completion_bonus"`
	RegionNational  float64           `json:"region_national"`
	SubsidyCEO      float64           `json:"subsidy_ceo"`
	Total           float64           `json:"total"`
	Roles           []RoleSubtotalDTO `json:"roles"`
}

// CalculationResponse is returned by GET /api/calculation.
type CalculationResponse struct {
	Parameters  ParametersDTO  `json:"parameters"`
	Results     []BreakdownDTO `json:"results"`
	Summary     SummaryDTO     `json:"summary"`
	GeneratedAt time.Time      `json:"generated_at"`
}

func toBreakdownDTO(b bonus.Breakdown, v bonus.ValidationResult) BreakdownDTO {
	return BreakdownDTO{
		PersonID:                 b.PersonID,
		Name:                     b.Name,
		Role:                     string(b.Role),
		RoleName:                 b.RoleName,
		TotalRevenue:             b.TotalRevenue.InexactFloat64(),
		CompletionRate:           b.CompletionRate.InexactFloat64(),
		CollectionRate:           b.CollectionRate.InexactFloat64(),
		Incentive:                b.Incentive.InexactFloat64(),
		MonthlyIncentives:        floats(b.MonthlyIncentives),
		IncentiveImmediate:       floatPtr(b.IncentiveImmediate),
		IncentiveAfterCollection: floatPtr(b.IncentiveAfterCollection),
		CompletionBonus90:        b.CompletionBonus90.InexactFloat64(),
		CompletionBonus100:       b.CompletionBonus100.InexactFloat64(),
		CompletionBonusTotal:     b.CompletionBonusTotal.InexactFloat64(),
		Mode:                     string(b.Mode),
		RegionBonus:              b.RegionBonus.InexactFloat64(),
		NationalBonus:            b.NationalBonus.InexactFloat64(),
		Subsidy:                  b.Subsidy.InexactFloat64(),
		CEOBonus:                 b.CEOBonus.InexactFloat64(),
		Total:                    b.Total.InexactFloat64(),
		Warnings:                 toIssueDTOs(v.Warnings),
		Errors:                   toIssueDTOs(v.Errors),
	}
}

func toSummaryDTO(s bonus.Summary) SummaryDTO {
	dto := SummaryDTO{
		Count:           s.Count,
		Incentive:       s.Incentive.InexactFloat64(),
		CompletionBonus: s.CompletionBonus.InexactFloat64(),
		RegionNational:  s.RegionNational.InexactFloat64(),
		SubsidyCEO:      s.SubsidyCEO.InexactFloat64(),
		Total:           s.Total.InexactFloat64(),
		Roles:           make([]RoleSubtotalDTO, len(s.Roles)),
	}
	for i, r := range s.Roles {
		dto.Roles[i] = RoleSubtotalDTO{
			Role:     string(r.Role),
			RoleName: r.RoleName,
			Count:    r.Count,
			Total:    r.Total.InexactFloat64(),
		}
	}
	return dto
}

func toIssueDTOs(issues []bonus.Issue) []IssueDTO {
	out := make([]IssueDTO, len(issues))
	for i, is := range issues {
		out[i] = IssueDTO{Field: is.Field, Message: is.Message}
	}
	return out
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo roster.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Persons     int    `json:"persons"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
// An empty body loads the default demo roster.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func floats(ds [bonus.Periods]decimal.Decimal) []float64 {
	out := make([]float64, len(ds))
	for i, d := range ds {
		out[i] = d.InexactFloat64()
	}
	return out
}

func floatPtr(n decimal.NullDecimal) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Decimal.InexactFloat64()
	return &f
}

func nullDecimal(f *float64) decimal.NullDecimal {
	if f == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*f))
}
