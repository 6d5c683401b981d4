/*
calculator.go - Per-person bonus calculation

PURPOSE:
  Compute maps (Person, Parameters) to a Breakdown. It is deterministic,
  has no side effects and never mutates its inputs.

RULES (in evaluation order):
  1. Total revenue      sum of the period revenues
  2. Completion rate    companyRevenue / target, 0 when target <= 0
  3. Process incentive  sum(revenue[i] * rate * coefficient[i]) when rate > 0
  4. Completion bonus   two tiers, skipped for CP
                          90%:  completion >= 0.9 and collection >= threshold90
                          100%: completion >= 1.0 and collection >= threshold100
                        DM tier:    min(companyRevenue * 0.4%, 40000)
                        other tier: companyRevenue * 1.5% * ratio
                        exclusive -> max(tiers), stack -> sum(tiers)
  5. Region bonus       CP: 30000 per flag; DM: 40000 if any flag
  6. National bonus     CP: 40000 per flag
  7. Fixed subsidy      CP: cpSubsidy; SALES_NEW/SALES_EDU: salesSubsidy * 6
  8. Total              sum of the six components (see Breakdown.Components)

ERRORS:
  The only failure is a role outside the catalog.

SEE ALSO:
  - roles.go: per-role rates and eligibility
  - aggregate.go: roster totals
*/
package bonus

import "github.com/shopspring/decimal"

var (
	tier90Completion  = decimal.RequireFromString("0.9")
	tier100Completion = decimal.NewFromInt(1)

	dmCompletionRate      = decimal.RequireFromString("0.004")
	dmCompletionCap       = decimal.NewFromInt(40000)
	defaultCompletionRate = decimal.RequireFromString("0.015")

	cpRegionAward   = decimal.NewFromInt(30000)
	dmRegionAward   = decimal.NewFromInt(40000)
	cpNationalAward = decimal.NewFromInt(40000)

	half = decimal.RequireFromString("0.5")
)

// Compute returns the bonus breakdown for one person under params.
func Compute(p Person, params Parameters) (Breakdown, error) {
	profile, err := Lookup(p.Role)
	if err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{
		PersonID:       p.ID,
		Name:           p.Name,
		Role:           p.Role,
		RoleName:       profile.DisplayName,
		CollectionRate: p.CollectionRate,
		TotalRevenue:   p.TotalRevenue(),
	}

	companyRevenue := p.EffectiveCompanyRevenue()
	b.CompletionRate = completionRate(companyRevenue, p.Target)

	b.MonthlyIncentives, b.Incentive = processIncentive(p.Revenue, profile.IncentiveRate, params.Coefficients)
	if params.SplitPayout {
		immediate := b.Incentive.Mul(half)
		b.IncentiveImmediate = decimal.NewNullDecimal(immediate)
		b.IncentiveAfterCollection = decimal.NewNullDecimal(b.Incentive.Sub(immediate))
	}

	// CP never takes part in completion bonuses. This is a skip, not a zero
	// result: no tier is evaluated and no mode is recorded.
	if p.Role != RoleCP {
		b.Mode = modeFor(p.Role, params)
		b.CompletionBonus90, b.CompletionBonus100 = completionTiers(p, companyRevenue, b.CompletionRate, params)
		b.CompletionBonusTotal = combineTiers(b.Mode, b.CompletionBonus90, b.CompletionBonus100)
	}

	b.RegionBonus = regionBonus(p, profile)
	b.NationalBonus = nationalBonus(p, profile)
	b.Subsidy = fixedSubsidy(p.Role, profile, params)
	b.CEOBonus = p.CEOBonus

	c := b.Components()
	b.Total = decimal.Sum(c[0], c[1:]...)
	return b, nil
}

func completionRate(companyRevenue, target decimal.Decimal) decimal.Decimal {
	if !target.IsPositive() {
		return decimal.Zero
	}
	return companyRevenue.Div(target)
}

func processIncentive(revenue [Periods]decimal.Decimal, rate decimal.Decimal, coefficients [Periods]decimal.Decimal) ([Periods]decimal.Decimal, decimal.Decimal) {
	var monthly [Periods]decimal.Decimal
	total := decimal.Zero
	if !rate.IsPositive() {
		return monthly, total
	}
	for i := range revenue {
		monthly[i] = revenue[i].Mul(rate).Mul(coefficients[i])
		total = total.Add(monthly[i])
	}
	return monthly, total
}

func modeFor(role Role, params Parameters) StackingMode {
	if role == RoleDM {
		return params.DMMode
	}
	return params.OtherMode
}

// completionTiers evaluates both tiers independently. Locked tiers are zero.
func completionTiers(p Person, companyRevenue, rate decimal.Decimal, params Parameters) (tier90, tier100 decimal.Decimal) {
	amount := tierAmount(p, companyRevenue)

	if rate.GreaterThanOrEqual(tier90Completion) && p.CollectionRate.GreaterThanOrEqual(params.Threshold90) {
		tier90 = amount
	}
	if rate.GreaterThanOrEqual(tier100Completion) && p.CollectionRate.GreaterThanOrEqual(params.Threshold100) {
		tier100 = amount
	}
	return tier90, tier100
}

func tierAmount(p Person, companyRevenue decimal.Decimal) decimal.Decimal {
	if p.Role == RoleDM {
		return decimal.Min(companyRevenue.Mul(dmCompletionRate), dmCompletionCap)
	}
	return companyRevenue.Mul(defaultCompletionRate).Mul(p.EffectiveRatio())
}

func combineTiers(mode StackingMode, tier90, tier100 decimal.Decimal) decimal.Decimal {
	if mode == ModeExclusive {
		return decimal.Max(tier90, tier100)
	}
	return tier90.Add(tier100)
}

// regionBonus is additive per flag for CP; DM gets one flat award no matter
// how many flags are set.
func regionBonus(p Person, profile RoleProfile) decimal.Decimal {
	if !profile.EligibleForRegionBonus {
		return decimal.Zero
	}
	switch p.Role {
	case RoleCP:
		total := decimal.Zero
		if p.Region90 {
			total = total.Add(cpRegionAward)
		}
		if p.Region100 {
			total = total.Add(cpRegionAward)
		}
		return total
	case RoleDM:
		if p.Region90 || p.Region100 {
			return dmRegionAward
		}
	}
	return decimal.Zero
}

func nationalBonus(p Person, profile RoleProfile) decimal.Decimal {
	if !profile.EligibleForNationalBonus || p.Role != RoleCP {
		return decimal.Zero
	}
	total := decimal.Zero
	if p.National90 {
		total = total.Add(cpNationalAward)
	}
	if p.National100 {
		total = total.Add(cpNationalAward)
	}
	return total
}

func fixedSubsidy(role Role, profile RoleProfile, params Parameters) decimal.Decimal {
	if !profile.EligibleForFixedSubsidy {
		return decimal.Zero
	}
	switch {
	case role == RoleCP:
		return params.CPSubsidy
	case role.receivesSalesSubsidy():
		return params.SalesSubsidy.Mul(decimal.NewFromInt(Periods))
	}
	return decimal.Zero
}
