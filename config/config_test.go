package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trouble2112/Bouns-tools/bonus"
	"github.com/trouble2112/Bouns-tools/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// =============================================================================
// SERVER CONFIG
// =============================================================================

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "bonus.db", cfg.DBPath)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Nil(t, cfg.Parameters)
}

func TestLoad_FileThenEnv(t *testing.T) {
	// GIVEN: A YAML file and an env var both setting the port
	// WHEN: Loading
	// THEN: The env var wins, other file values are kept

	path := writeFile(t, "server.yaml", `
port: 9000
db_path: /tmp/b.db
log_level: debug
shutdown_timeout: 5s
parameters:
  dm_mode: stack
  cp_subsidy: 70000
`)
	t.Setenv("PORT", "9100")
	t.Setenv("WORKERS", "8")

	cfg, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "/tmp/b.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	require.NotNil(t, cfg.Parameters)

	params, err := cfg.Parameters.Apply(bonus.DefaultParameters())
	require.NoError(t, err)
	assert.Equal(t, bonus.ModeStack, params.DMMode)
	assert.True(t, params.CPSubsidy.Equal(decimal.NewFromInt(70000)))
	assert.Equal(t, bonus.ModeStack, params.OtherMode, "unset fields keep defaults")
}

func TestLoad_BadEnvIsIgnored(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	cfg, err := config.Load("")

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = config.Load(writeFile(t, "bad.yaml", "port: [1, 2"))
	assert.Error(t, err)

	_, err = config.Load(writeFile(t, "port.yaml", "port: 70000"))
	assert.ErrorContains(t, err, "invalid port")
}

// =============================================================================
// PARAMETERS & ROSTER FILES
// =============================================================================

func TestLoadParameters(t *testing.T) {
	path := writeFile(t, "params.yaml", `
coefficients: [1.2, 1.2, 1.1, 1.0, 0.9, 0.8]
threshold_90: 0.8
split_payout: true
`)

	params, err := config.LoadParameters(path)

	require.NoError(t, err)
	assert.True(t, params.Coefficients[0].Equal(decimal.RequireFromString("1.2")))
	assert.True(t, params.Coefficients[5].Equal(decimal.RequireFromString("0.8")))
	assert.True(t, params.Threshold90.Equal(decimal.RequireFromString("0.8")))
	assert.True(t, params.Threshold100.Equal(decimal.RequireFromString("0.9")))
	assert.True(t, params.SplitPayout)
}

func TestLoadParameters_Invalid(t *testing.T) {
	_, err := config.LoadParameters(writeFile(t, "short.yaml", "coefficients: [1, 1]"))
	assert.ErrorIs(t, err, bonus.ErrInvalidParameters)

	_, err = config.LoadParameters(writeFile(t, "mode.yaml", "other_mode: sometimes"))
	assert.ErrorIs(t, err, bonus.ErrInvalidParameters)

	_, err = config.LoadParameters(writeFile(t, "nan.yaml", "threshold_90: abc"))
	assert.ErrorContains(t, err, "invalid number")
}

func TestLoadRoster(t *testing.T) {
	path := writeFile(t, "roster.yaml", `
persons:
  - name: 李总
    role: dm
    org: 北京分公司
    revenue: [500000, 600000, 700000, 800000, 750000, 650000]
    company_revenue: 4000000
    target: 3800000
    collection_rate: 0.92
    region_90: true
    ceo_bonus: 20000
  - name: 赵销售
    role: SALES_EDU
    revenue: [60000, 70000]
    target: 400000
    collection_rate: "0.90"
    ratio: 0.2
`)

	roster, err := config.LoadRoster(path)

	require.NoError(t, err)
	assert.False(t, roster.HasParameters)
	assert.Equal(t, bonus.DefaultParameters(), roster.Parameters)
	require.Len(t, roster.Persons, 2)

	dm := roster.Persons[0]
	assert.Equal(t, bonus.RoleDM, dm.Role)
	assert.Equal(t, "北京分公司", dm.Org)
	assert.True(t, dm.CompanyRevenue.Valid)
	assert.False(t, dm.Ratio.Valid)
	assert.True(t, dm.Region90)
	assert.True(t, dm.CEOBonus.Equal(decimal.NewFromInt(20000)))

	b, err := bonus.Compute(dm, roster.Parameters)
	require.NoError(t, err)
	assert.True(t, b.Total.Equal(decimal.NewFromInt(92250)))

	edu := roster.Persons[1]
	assert.True(t, edu.Revenue[1].Equal(decimal.NewFromInt(70000)))
	assert.True(t, edu.Revenue[2].IsZero(), "missing periods default to zero")
	assert.False(t, edu.CompanyRevenue.Valid)
	assert.True(t, edu.Ratio.Decimal.Equal(decimal.RequireFromString("0.2")))
	assert.True(t, edu.CEOBonus.IsZero())
}

func TestLoadRoster_Errors(t *testing.T) {
	_, err := config.LoadRoster(writeFile(t, "role.yaml", `
persons:
  - name: x
    role: JANITOR
    target: 1
    collection_rate: 1
`))
	assert.ErrorIs(t, err, bonus.ErrUnknownRole)

	_, err = config.LoadRoster(writeFile(t, "long.yaml", `
persons:
  - name: x
    role: MGR
    revenue: [1, 2, 3, 4, 5, 6, 7]
    target: 1
    collection_rate: 1
`))
	assert.ErrorContains(t, err, "at most 6")
}

func TestSaveRoster_RoundTrip(t *testing.T) {
	persons := []bonus.Person{
		{
			ID:             "p1",
			Name:           "张经理",
			Role:           bonus.RoleMGR,
			Revenue:        [bonus.Periods]decimal.Decimal{decimal.NewFromInt(150000), decimal.RequireFromString("180000.5")},
			CompanyRevenue: decimal.NewNullDecimal(decimal.NewFromInt(3000000)),
			Target:         decimal.NewFromInt(2800000),
			CollectionRate: decimal.RequireFromString("0.91"),
			Ratio:          decimal.NewNullDecimal(decimal.RequireFromString("0.25")),
			National90:     true,
			CEOBonus:       decimal.NewFromInt(5000),
		},
	}
	params := bonus.DefaultParameters()
	params.SplitPayout = true

	path := filepath.Join(t.TempDir(), "out", "roster.yaml")
	require.NoError(t, config.SaveRoster(path, persons, params))

	roster, err := config.LoadRoster(path)
	require.NoError(t, err)
	assert.True(t, roster.HasParameters)
	assert.True(t, roster.Parameters.SplitPayout)
	require.Len(t, roster.Persons, 1)

	got := roster.Persons[0]
	assert.Equal(t, "p1", got.ID)
	assert.True(t, got.Revenue[1].Equal(decimal.RequireFromString("180000.5")))
	assert.True(t, got.Ratio.Decimal.Equal(decimal.RequireFromString("0.25")))
	assert.True(t, got.National90)
	assert.True(t, got.CEOBonus.Equal(decimal.NewFromInt(5000)))
}
