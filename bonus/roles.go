package bonus

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROLES - Static catalog keyed by role identifier
// =============================================================================

// Role identifies a compensation profile.
type Role string

const (
	RoleCP        Role = "CP"         // committee / executive
	RoleDM        Role = "DM"         // branch general manager
	RoleVP        Role = "VP"         // deputy general manager
	RoleMGR       Role = "MGR"        // department manager
	RoleSalesUser Role = "SALES_USER" // sales, user department
	RoleSalesNew  Role = "SALES_NEW"  // sales, new purchases
	RoleSalesEdu  Role = "SALES_EDU"  // sales, universities
)

// RoleProfile is the compensation data attached to one role.
// Behavior per role is data, not code.
type RoleProfile struct {
	Role        Role
	DisplayName string
	// IncentiveRate of zero means the role earns no process incentive.
	IncentiveRate            decimal.Decimal
	EligibleForRegionBonus   bool
	EligibleForNationalBonus bool
	EligibleForFixedSubsidy  bool
}

var catalog = []RoleProfile{
	{
		Role:                     RoleCP,
		DisplayName:              "常委",
		IncentiveRate:            decimal.Zero,
		EligibleForRegionBonus:   true,
		EligibleForNationalBonus: true,
		EligibleForFixedSubsidy:  true,
	},
	{
		Role:                   RoleDM,
		DisplayName:            "总经理",
		IncentiveRate:          decimal.RequireFromString("0.004"),
		EligibleForRegionBonus: true,
	},
	{
		Role:          RoleVP,
		DisplayName:   "副总经理",
		IncentiveRate: decimal.RequireFromString("0.004"),
	},
	{
		Role:          RoleMGR,
		DisplayName:   "部门经理",
		IncentiveRate: decimal.RequireFromString("0.01"),
	},
	{
		Role:          RoleSalesUser,
		DisplayName:   "销售-用户部",
		IncentiveRate: decimal.RequireFromString("0.02"),
	},
	{
		Role:                    RoleSalesNew,
		DisplayName:             "销售-新购",
		IncentiveRate:           decimal.RequireFromString("0.03"),
		EligibleForFixedSubsidy: true,
	},
	{
		Role:                    RoleSalesEdu,
		DisplayName:             "销售-高校",
		IncentiveRate:           decimal.RequireFromString("0.03"),
		EligibleForFixedSubsidy: true,
	},
}

var catalogIndex = func() map[Role]int {
	idx := make(map[Role]int, len(catalog))
	for i, p := range catalog {
		idx[p.Role] = i
	}
	return idx
}()

// Lookup returns the profile for role.
func Lookup(role Role) (RoleProfile, error) {
	i, ok := catalogIndex[role]
	if !ok {
		return RoleProfile{}, &UnknownRoleError{Role: role}
	}
	return catalog[i], nil
}

// Roles returns every profile in catalog order. The slice is a copy.
func Roles() []RoleProfile {
	out := make([]RoleProfile, len(catalog))
	copy(out, catalog)
	return out
}

// ParseRole normalizes s and checks it against the catalog.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := catalogIndex[r]; !ok {
		return "", &UnknownRoleError{Role: Role(s)}
	}
	return r, nil
}

// DisplayName returns the role's display name, or the raw identifier for
// roles outside the catalog.
func (r Role) DisplayName() string {
	if p, err := Lookup(r); err == nil {
		return p.DisplayName
	}
	return string(r)
}

// receivesSalesSubsidy reports whether the role's subsidy is the monthly
// sales allowance rather than the CP flat amount.
func (r Role) receivesSalesSubsidy() bool {
	return r == RoleSalesNew || r == RoleSalesEdu
}
