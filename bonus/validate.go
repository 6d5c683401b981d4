/*
validate.go - Input checks for person records

PURPOSE:
  Compute accepts any structurally valid person. Validation is the
  boundary check run before a record is saved or reported: errors block
  the record, warnings are shown next to its result.

ERRORS (block the record):
  - empty name, role outside the catalog
  - negative revenue or company revenue, negative CEO bonus
  - collection rate or ratio outside [0,1]
  - target <= 0 for any role except CP

WARNINGS (reported, never block):
  - no revenue entered
  - company revenue not entered (the person's own revenue is used)
  - collection rate below the 90% tier threshold
  - DM without any region flag
  - ratios within one org summing above 100% (roster check only)
*/
package bonus

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidationResult collects the findings for one person.
type ValidationResult struct {
	Errors   []Issue
	Warnings []Issue
}

// Valid reports whether there are no errors.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Err returns a *ValidationError when there are errors, nil otherwise.
func (r ValidationResult) Err(personID string) error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{PersonID: personID, Issues: r.Errors}
}

func (r *ValidationResult) addError(field, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) addWarning(field, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidatePerson checks one person against the input rules.
func ValidatePerson(p Person, params Parameters) ValidationResult {
	var r ValidationResult

	if strings.TrimSpace(p.Name) == "" {
		r.addError("name", "must not be empty")
	}
	if _, err := Lookup(p.Role); err != nil {
		r.addError("role", "unknown role %q", string(p.Role))
	}

	allZero := true
	for i, rev := range p.Revenue {
		if rev.IsNegative() {
			r.addError("revenue", "period %d must not be negative: %s", i+1, rev.String())
		}
		if !rev.IsZero() {
			allZero = false
		}
	}
	if allZero {
		r.addWarning("revenue", "no revenue entered")
	}

	if p.Role != RoleCP {
		switch {
		case !p.CompanyRevenue.Valid || p.CompanyRevenue.Decimal.IsZero():
			r.addWarning("company_revenue", "not entered, the person's own revenue is used")
		case p.CompanyRevenue.Decimal.IsNegative():
			r.addError("company_revenue", "must not be negative: %s", p.CompanyRevenue.Decimal.String())
		}
		if !p.Target.IsPositive() {
			r.addError("target", "must be greater than 0")
		}
	}

	if !inUnitRange(p.CollectionRate) {
		r.addError("collection_rate", "must be between 0 and 1: %s", p.CollectionRate.String())
	} else if p.CollectionRate.LessThan(params.Threshold90) {
		r.addWarning("collection_rate", "%s is below the 90%% tier threshold %s", percent(p.CollectionRate), percent(params.Threshold90))
	}

	if p.Ratio.Valid && !inUnitRange(p.Ratio.Decimal) {
		r.addError("ratio", "must be between 0 and 1: %s", p.Ratio.Decimal.String())
	}

	if p.CEOBonus.IsNegative() {
		r.addError("ceo_bonus", "must not be negative: %s", p.CEOBonus.String())
	}

	if p.Role == RoleDM && !p.Region90 && !p.Region100 {
		r.addWarning("region", "no region completion flag set for DM")
	}

	return r
}

// ValidateRoster validates every person and adds the org ratio check.
// Results are keyed by person ID.
func ValidateRoster(persons []Person, params Parameters) map[string]ValidationResult {
	results := make(map[string]ValidationResult, len(persons))
	for _, p := range persons {
		results[p.ID] = ValidatePerson(p, params)
	}

	type orgShare struct {
		sum     decimal.Decimal
		members []string
	}
	shares := make(map[string]*orgShare)
	var order []string
	for _, p := range persons {
		if !p.Ratio.Valid {
			continue
		}
		s, ok := shares[p.Org]
		if !ok {
			s = &orgShare{sum: decimal.Zero}
			shares[p.Org] = s
			order = append(order, p.Org)
		}
		s.sum = s.sum.Add(p.Ratio.Decimal)
		s.members = append(s.members, p.ID)
	}

	one := decimal.NewFromInt(1)
	for _, org := range order {
		s := shares[org]
		if !s.sum.GreaterThan(one) {
			continue
		}
		for _, id := range s.members {
			r := results[id]
			r.addWarning("ratio", "ratios in org %q sum to %s, above 100%%", org, percent(s.sum))
			results[id] = r
		}
	}
	return results
}

func percent(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}
