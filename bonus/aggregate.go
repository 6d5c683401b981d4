package bonus

import "github.com/shopspring/decimal"

// Aggregate folds breakdowns into roster totals. Roles are listed in the
// order they first appear. An empty input yields zero sums and no roles.
func Aggregate(breakdowns []Breakdown) Summary {
	s := Summary{
		Count:           len(breakdowns),
		Incentive:       decimal.Zero,
		CompletionBonus: decimal.Zero,
		RegionNational:  decimal.Zero,
		SubsidyCEO:      decimal.Zero,
		Total:           decimal.Zero,
		Roles:           []RoleSubtotal{},
	}

	byRole := make(map[Role]int)
	for _, b := range breakdowns {
		s.Incentive = s.Incentive.Add(b.Incentive)
		s.CompletionBonus = s.CompletionBonus.Add(b.CompletionBonusTotal)
		s.RegionNational = s.RegionNational.Add(b.RegionBonus).Add(b.NationalBonus)
		s.SubsidyCEO = s.SubsidyCEO.Add(b.Subsidy).Add(b.CEOBonus)
		s.Total = s.Total.Add(b.Total)

		i, ok := byRole[b.Role]
		if !ok {
			i = len(s.Roles)
			byRole[b.Role] = i
			name := b.RoleName
			if name == "" {
				name = b.Role.DisplayName()
			}
			s.Roles = append(s.Roles, RoleSubtotal{Role: b.Role, RoleName: name, Total: decimal.Zero})
		}
		s.Roles[i].Count++
		s.Roles[i].Total = s.Roles[i].Total.Add(b.Total)
	}
	return s
}
