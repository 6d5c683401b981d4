/*
Package bonus provides the sales compensation engine.

PURPOSE:
  Turns a person's half-year revenue figures and one shared parameter set
  into a bonus breakdown, and folds a roster of breakdowns into totals.
  Everything here is pure: no I/O, no globals, no retained references.

KEY CONCEPTS IN THIS FILE (types.go):
  - Parameters: coefficients, thresholds, stacking modes, subsidies
  - Person: one roster entry with revenue, rates and achievement flags
  - Breakdown: the computed projection for one person
  - Summary: grand totals plus per-role subtotals

PERIODS:
  Revenue and coefficients are index-aligned over Periods (6) monthly
  periods. Index 0 is the first month of the half year.

MONEY:
  Amounts and rates are decimal.Decimal so that the same inputs always
  produce the same cents. Rounding for display is left to the caller.

SEE ALSO:
  - roles.go: role catalog
  - calculator.go: Compute
  - aggregate.go: Aggregate
  - validate.go: input checks with errors and warnings
*/
package bonus

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Periods is the number of revenue periods in one calculation.
const Periods = 6

// =============================================================================
// STACKING MODE - How the 90% and 100% completion tiers combine
// =============================================================================

// StackingMode decides how unlocked completion tiers are combined.
type StackingMode string

const (
	// ModeExclusive pays only the larger tier.
	ModeExclusive StackingMode = "exclusive"
	// ModeStack pays both tiers.
	ModeStack StackingMode = "stack"
)

// Valid reports whether m is a known mode.
func (m StackingMode) Valid() bool {
	return m == ModeExclusive || m == ModeStack
}

// =============================================================================
// PARAMETERS - Shared policy knobs (one per system)
// =============================================================================

// Parameters is the shared, tunable policy used for every person.
type Parameters struct {
	// Coefficients weights each period's revenue in the process incentive.
	Coefficients [Periods]decimal.Decimal

	// Threshold90 and Threshold100 are minimum collection rates (0-1)
	// gating the two completion tiers.
	Threshold90  decimal.Decimal
	Threshold100 decimal.Decimal

	DMMode    StackingMode
	OtherMode StackingMode

	// CPSubsidy is the flat half-year subsidy for CP.
	CPSubsidy decimal.Decimal
	// SalesSubsidy is the monthly subsidy for SALES_NEW and SALES_EDU.
	SalesSubsidy decimal.Decimal

	// SplitPayout reports the incentive as 50% paid immediately and 50%
	// paid after collection. It does not change any total.
	SplitPayout bool

	UpdatedAt time.Time
}

// DefaultParameters returns the parameter set used until an operator saves one.
func DefaultParameters() Parameters {
	return Parameters{
		Coefficients: [Periods]decimal.Decimal{
			decimal.RequireFromString("1.15"),
			decimal.RequireFromString("1.15"),
			decimal.RequireFromString("1.10"),
			decimal.RequireFromString("1.00"),
			decimal.RequireFromString("0.90"),
			decimal.RequireFromString("0.85"),
		},
		Threshold90:  decimal.RequireFromString("0.85"),
		Threshold100: decimal.RequireFromString("0.90"),
		DMMode:       ModeExclusive,
		OtherMode:    ModeStack,
		CPSubsidy:    decimal.NewFromInt(60000),
		SalesSubsidy: decimal.NewFromInt(800),
	}
}

// Validate checks the parameter invariants: positive coefficients,
// thresholds in [0,1], known modes and non-negative subsidies.
func (p Parameters) Validate() error {
	var issues []Issue
	for i, c := range p.Coefficients {
		if !c.IsPositive() {
			issues = append(issues, Issue{Field: "coefficients", Message: "coefficient for period " + periodLabel(i) + " must be positive"})
		}
	}
	if !inUnitRange(p.Threshold90) {
		issues = append(issues, Issue{Field: "threshold_90", Message: "must be between 0 and 1"})
	}
	if !inUnitRange(p.Threshold100) {
		issues = append(issues, Issue{Field: "threshold_100", Message: "must be between 0 and 1"})
	}
	if !p.DMMode.Valid() {
		issues = append(issues, Issue{Field: "dm_mode", Message: "must be exclusive or stack"})
	}
	if !p.OtherMode.Valid() {
		issues = append(issues, Issue{Field: "other_mode", Message: "must be exclusive or stack"})
	}
	if p.CPSubsidy.IsNegative() {
		issues = append(issues, Issue{Field: "cp_subsidy", Message: "must not be negative"})
	}
	if p.SalesSubsidy.IsNegative() {
		issues = append(issues, Issue{Field: "sales_subsidy", Message: "must not be negative"})
	}
	if len(issues) > 0 {
		return &ParametersError{Issues: issues}
	}
	return nil
}

// =============================================================================
// PERSON - One roster entry
// =============================================================================

// Person is the input record for one employee.
type Person struct {
	ID     string
	Name   string
	Role   Role
	Region string
	Org    string

	// Revenue is the person's revenue per period.
	Revenue [Periods]decimal.Decimal
	// CompanyRevenue is the branch revenue used for completion math.
	// Absent (or zero) means "use the sum of Revenue".
	CompanyRevenue decimal.NullDecimal
	// Target is the branch revenue target.
	Target decimal.Decimal

	CollectionRate decimal.Decimal
	// Ratio is the person's share of the branch completion bonus.
	// Absent means 1.
	Ratio decimal.NullDecimal

	Region90    bool
	Region100   bool
	National90  bool
	National100 bool

	// CEOBonus is entered by hand and passed through unchanged.
	CEOBonus decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TotalRevenue returns the sum of the period revenues.
func (p Person) TotalRevenue() decimal.Decimal {
	return decimal.Sum(decimal.Zero, p.Revenue[:]...)
}

// EffectiveCompanyRevenue returns CompanyRevenue, or TotalRevenue when it
// was not entered.
func (p Person) EffectiveCompanyRevenue() decimal.Decimal {
	if p.CompanyRevenue.Valid && !p.CompanyRevenue.Decimal.IsZero() {
		return p.CompanyRevenue.Decimal
	}
	return p.TotalRevenue()
}

// EffectiveRatio returns Ratio, or 1 when it was not entered.
func (p Person) EffectiveRatio() decimal.Decimal {
	if p.Ratio.Valid {
		return p.Ratio.Decimal
	}
	return decimal.NewFromInt(1)
}

// =============================================================================
// BREAKDOWN - Computed per person, never stored
// =============================================================================

// Breakdown is the full bonus projection for one person.
type Breakdown struct {
	PersonID       string
	Name           string
	Role           Role
	RoleName       string
	CollectionRate decimal.Decimal

	TotalRevenue   decimal.Decimal
	CompletionRate decimal.Decimal

	Incentive         decimal.Decimal
	MonthlyIncentives [Periods]decimal.Decimal

	// IncentiveImmediate and IncentiveAfterCollection are only set when
	// Parameters.SplitPayout is on.
	IncentiveImmediate       decimal.NullDecimal
	IncentiveAfterCollection decimal.NullDecimal

	CompletionBonus90    decimal.Decimal
	CompletionBonus100   decimal.Decimal
	CompletionBonusTotal decimal.Decimal
	// Mode is the stacking mode applied. Empty for CP.
	Mode StackingMode

	RegionBonus   decimal.Decimal
	NationalBonus decimal.Decimal
	Subsidy       decimal.Decimal
	CEOBonus      decimal.Decimal

	Total decimal.Decimal
}

// Components returns the six amounts that make up Total, in order:
// incentive, completion, region, national, subsidy, CEO bonus.
func (b Breakdown) Components() [6]decimal.Decimal {
	return [6]decimal.Decimal{
		b.Incentive,
		b.CompletionBonusTotal,
		b.RegionBonus,
		b.NationalBonus,
		b.Subsidy,
		b.CEOBonus,
	}
}

// =============================================================================
// SUMMARY - Aggregated over a roster
// =============================================================================

// Summary holds roster-wide totals.
type Summary struct {
	Count           int
	Incentive       decimal.Decimal
	CompletionBonus decimal.Decimal
	// RegionNational is region + national bonuses.
	RegionNational decimal.Decimal
	// SubsidyCEO is fixed subsidies + CEO bonuses.
	SubsidyCEO decimal.Decimal
	Total      decimal.Decimal

	// Roles lists per-role subtotals in first-seen order.
	Roles []RoleSubtotal
}

// RoleSubtotal is the head count and summed total of one role.
type RoleSubtotal struct {
	Role     Role
	RoleName string
	Count    int
	Total    decimal.Decimal
}

func inUnitRange(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(1))
}

func periodLabel(i int) string {
	return strconv.Itoa(i + 1)
}
