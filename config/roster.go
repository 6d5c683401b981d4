package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/trouble2112/Bouns-tools/bonus"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// DECIMAL - YAML scalar without a float round trip
// =============================================================================

// Decimal reads a YAML number (or quoted number) straight from its text.
type Decimal struct {
	decimal.Decimal
}

func (d *Decimal) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	v, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid number %q", node.Line, node.Value)
	}
	d.Decimal = v
	return nil
}

func (d Decimal) MarshalYAML() (any, error) {
	tag := "!!float"
	if d.IsInteger() {
		tag = "!!int"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: d.String()}, nil
}

func optional(d *Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d.Decimal)
}

func fromOptional(n decimal.NullDecimal) *Decimal {
	if !n.Valid {
		return nil
	}
	return &Decimal{n.Decimal}
}

// =============================================================================
// PARAMETERS FILE
// =============================================================================

// ParametersFile is a partial parameter set. Unset fields keep the base value.
type ParametersFile struct {
	Coefficients []Decimal `yaml:"coefficients,omitempty"`
	Threshold90  *Decimal  `yaml:"threshold_90,omitempty"`
	Threshold100 *Decimal  `yaml:"threshold_100,omitempty"`
	DMMode       string    `yaml:"dm_mode,omitempty"`
	OtherMode    string    `yaml:"other_mode,omitempty"`
	CPSubsidy    *Decimal  `yaml:"cp_subsidy,omitempty"`
	SalesSubsidy *Decimal  `yaml:"sales_subsidy,omitempty"`
	SplitPayout  *bool     `yaml:"split_payout,omitempty"`
}

// Apply overlays f on base and validates the result.
func (f *ParametersFile) Apply(base bonus.Parameters) (bonus.Parameters, error) {
	if f == nil {
		return base, base.Validate()
	}

	if len(f.Coefficients) > 0 {
		if len(f.Coefficients) != bonus.Periods {
			return bonus.Parameters{}, &bonus.ParametersError{Issues: []bonus.Issue{{
				Field:   "coefficients",
				Message: fmt.Sprintf("expected %d values, got %d", bonus.Periods, len(f.Coefficients)),
			}}}
		}
		for i, c := range f.Coefficients {
			base.Coefficients[i] = c.Decimal
		}
	}
	if f.Threshold90 != nil {
		base.Threshold90 = f.Threshold90.Decimal
	}
	if f.Threshold100 != nil {
		base.Threshold100 = f.Threshold100.Decimal
	}
	if f.DMMode != "" {
		base.DMMode = bonus.StackingMode(f.DMMode)
	}
	if f.OtherMode != "" {
		base.OtherMode = bonus.StackingMode(f.OtherMode)
	}
	if f.CPSubsidy != nil {
		base.CPSubsidy = f.CPSubsidy.Decimal
	}
	if f.SalesSubsidy != nil {
		base.SalesSubsidy = f.SalesSubsidy.Decimal
	}
	if f.SplitPayout != nil {
		base.SplitPayout = *f.SplitPayout
	}

	if err := base.Validate(); err != nil {
		return bonus.Parameters{}, err
	}
	return base, nil
}

// ParametersFileFrom renders a full parameter set as a file.
func ParametersFileFrom(p bonus.Parameters) *ParametersFile {
	f := &ParametersFile{
		Coefficients: make([]Decimal, bonus.Periods),
		Threshold90:  &Decimal{p.Threshold90},
		Threshold100: &Decimal{p.Threshold100},
		DMMode:       string(p.DMMode),
		OtherMode:    string(p.OtherMode),
		CPSubsidy:    &Decimal{p.CPSubsidy},
		SalesSubsidy: &Decimal{p.SalesSubsidy},
		SplitPayout:  &p.SplitPayout,
	}
	for i, c := range p.Coefficients {
		f.Coefficients[i] = Decimal{c}
	}
	return f
}

// LoadParameters reads a parameters YAML file over the defaults.
func LoadParameters(path string) (bonus.Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bonus.Parameters{}, fmt.Errorf("reading parameters %s: %w", path, err)
	}

	var f ParametersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return bonus.Parameters{}, fmt.Errorf("parsing parameters %s: %w", path, err)
	}
	return f.Apply(bonus.DefaultParameters())
}

// =============================================================================
// ROSTER FILE
// =============================================================================

// PersonFile is one roster entry as written in YAML.
type PersonFile struct {
	ID             string    `yaml:"id,omitempty"`
	Name           string    `yaml:"name"`
	Role           string    `yaml:"role"`
	Region         string    `yaml:"region,omitempty"`
	Org            string    `yaml:"org,omitempty"`
	Revenue        []Decimal `yaml:"revenue"`
	CompanyRevenue *Decimal  `yaml:"company_revenue,omitempty"`
	Target         Decimal   `yaml:"target"`
	CollectionRate Decimal   `yaml:"collection_rate"`
	Ratio          *Decimal  `yaml:"ratio,omitempty"`
	Region90       bool      `yaml:"region_90,omitempty"`
	Region100      bool      `yaml:"region_100,omitempty"`
	National90     bool      `yaml:"national_90,omitempty"`
	National100    bool      `yaml:"national_100,omitempty"`
	CEOBonus       *Decimal  `yaml:"ceo_bonus,omitempty"`
}

// Person converts the entry. Missing revenue periods are zero; more than
// the period count is an error.
func (f PersonFile) Person() (bonus.Person, error) {
	role, err := bonus.ParseRole(f.Role)
	if err != nil {
		return bonus.Person{}, fmt.Errorf("person %q: %w", f.Name, err)
	}
	if len(f.Revenue) > bonus.Periods {
		return bonus.Person{}, fmt.Errorf("person %q: %d revenue periods, at most %d allowed", f.Name, len(f.Revenue), bonus.Periods)
	}

	p := bonus.Person{
		ID:             f.ID,
		Name:           f.Name,
		Role:           role,
		Region:         f.Region,
		Org:            f.Org,
		CompanyRevenue: optional(f.CompanyRevenue),
		Target:         f.Target.Decimal,
		CollectionRate: f.CollectionRate.Decimal,
		Ratio:          optional(f.Ratio),
		Region90:       f.Region90,
		Region100:      f.Region100,
		National90:     f.National90,
		National100:    f.National100,
	}
	for i, r := range f.Revenue {
		p.Revenue[i] = r.Decimal
	}
	if f.CEOBonus != nil {
		p.CEOBonus = f.CEOBonus.Decimal
	}
	return p, nil
}

// PersonFileFrom renders a person as a roster entry.
func PersonFileFrom(p bonus.Person) PersonFile {
	f := PersonFile{
		ID:             p.ID,
		Name:           p.Name,
		Role:           string(p.Role),
		Region:         p.Region,
		Org:            p.Org,
		Revenue:        make([]Decimal, bonus.Periods),
		CompanyRevenue: fromOptional(p.CompanyRevenue),
		Target:         Decimal{p.Target},
		CollectionRate: Decimal{p.CollectionRate},
		Ratio:          fromOptional(p.Ratio),
		Region90:       p.Region90,
		Region100:      p.Region100,
		National90:     p.National90,
		National100:    p.National100,
	}
	for i, r := range p.Revenue {
		f.Revenue[i] = Decimal{r}
	}
	if !p.CEOBonus.IsZero() {
		f.CEOBonus = &Decimal{p.CEOBonus}
	}
	return f
}

// RosterFile is the on-disk roster: persons plus optional parameters.
type RosterFile struct {
	Parameters *ParametersFile `yaml:"parameters,omitempty"`
	Persons    []PersonFile    `yaml:"persons"`
}

// Roster is a decoded roster file.
type Roster struct {
	// Parameters is the file's parameter block applied over the defaults.
	Parameters bonus.Parameters
	// HasParameters reports whether the file carried a parameter block.
	HasParameters bool
	Persons       []bonus.Person
}

// LoadRoster reads and converts a roster YAML file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster %s: %w", path, err)
	}

	var f RosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing roster %s: %w", path, err)
	}

	params, err := f.Parameters.Apply(bonus.DefaultParameters())
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", path, err)
	}

	r := &Roster{
		Parameters:    params,
		HasParameters: f.Parameters != nil,
		Persons:       make([]bonus.Person, 0, len(f.Persons)),
	}
	for _, pf := range f.Persons {
		p, err := pf.Person()
		if err != nil {
			return nil, fmt.Errorf("roster %s: %w", path, err)
		}
		r.Persons = append(r.Persons, p)
	}
	return r, nil
}

// SaveRoster writes persons and params as a roster YAML file.
func SaveRoster(path string, persons []bonus.Person, params bonus.Parameters) error {
	f := RosterFile{
		Parameters: ParametersFileFrom(params),
		Persons:    make([]PersonFile, 0, len(persons)),
	}
	for _, p := range persons {
		f.Persons = append(f.Persons, PersonFileFrom(p))
	}

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("marshaling roster: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating roster dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
