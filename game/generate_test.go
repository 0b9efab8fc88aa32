package game

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/trademesh/internal/util"
)

func testConfiguration() Configuration {
	cfg := DefaultConfiguration(
		[]string{"alice", "bob", "carol", "dave"},
		[]string{"good1", "good2", "good3"},
	)
	cfg.LowerBoundFactor = 1
	cfg.UpperBoundFactor = 2
	return cfg
}

func TestConfigurationValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Configuration)
		field  string
	}{
		{name: "too few agents", mutate: func(c *Configuration) { c.AgentIDs = []string{"solo"} }, field: "AgentIDs"},
		{name: "duplicate agents", mutate: func(c *Configuration) { c.AgentIDs = []string{"a", "a"} }, field: "AgentIDs"},
		{name: "empty agent id", mutate: func(c *Configuration) { c.AgentIDs = []string{"a", ""} }, field: "AgentIDs"},
		{name: "no goods", mutate: func(c *Configuration) { c.GoodKeys = nil }, field: "GoodKeys"},
		{name: "duplicate goods", mutate: func(c *Configuration) { c.GoodKeys = []string{"g", "g"} }, field: "GoodKeys"},
		{name: "negative money", mutate: func(c *Configuration) { c.MoneyEndowment = -1 }, field: "MoneyEndowment"},
		{name: "zero base amount", mutate: func(c *Configuration) { c.BaseAmount = 0 }, field: "BaseAmount"},
		{name: "negative lower bound", mutate: func(c *Configuration) { c.LowerBoundFactor = -1 }, field: "LowerBoundFactor"},
		{name: "inverted bounds", mutate: func(c *Configuration) { c.LowerBoundFactor = 3; c.UpperBoundFactor = 1 }, field: "UpperBoundFactor"},
		{name: "negative fee", mutate: func(c *Configuration) { c.Fee = decimal.NewFromInt(-1) }, field: "Fee"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfiguration()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verr *util.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)

			_, err = Generate(cfg)
			assert.Error(t, err, "Generate must refuse invalid configurations")
		})
	}

	assert.NoError(t, testConfiguration().Validate())
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := testConfiguration()

	first, err := Generate(cfg)
	require.NoError(t, err)
	second, err := Generate(cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Holdings, second.Holdings)
	assert.Equal(t, first.Params, second.Params)

	cfg.Seed = 43
	other, err := Generate(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, first.Params, other.Params, "a different seed draws different parameters")
}

func TestGenerateEndowments(t *testing.T) {
	cfg := testConfiguration()
	setup, err := Generate(cfg)
	require.NoError(t, err)

	n := cfg.NbAgents()
	minTotal := cfg.BaseAmount*n + n*cfg.LowerBoundFactor
	maxTotal := cfg.BaseAmount*n + n*cfg.UpperBoundFactor

	for _, good := range cfg.GoodKeys {
		total := 0
		for _, agentID := range cfg.AgentIDs {
			q := setup.Holdings[agentID].Goods.Quantity(good)
			assert.GreaterOrEqual(t, q, cfg.BaseAmount, "agent %s good %s", agentID, good)
			total += q
		}
		assert.GreaterOrEqual(t, total, minTotal, "good %s total", good)
		assert.LessOrEqual(t, total, maxTotal, "good %s total", good)
	}

	money := decimal.NewFromInt(int64(cfg.MoneyEndowment))
	for _, agentID := range cfg.AgentIDs {
		assert.True(t, setup.Holdings[agentID].Money.Equal(money))
	}
}

func TestGenerateUtilityParams(t *testing.T) {
	cfg := testConfiguration()
	setup, err := Generate(cfg)
	require.NoError(t, err)

	require.Equal(t, 100.0, setup.ScalingFactor, "endowment 200 has three digits")

	for _, agentID := range cfg.AgentIDs {
		params := setup.Params[agentID]
		require.Len(t, params, cfg.NbGoods())

		sum := 0.0
		for _, good := range cfg.GoodKeys {
			assert.Greater(t, params[good], 0.0, "agent %s good %s", agentID, good)
			sum += params[good]
		}
		assert.InDelta(t, setup.ScalingFactor, sum, setup.ScalingFactor*1e-3,
			"agent %s params sum to the scaling factor", agentID)
	}
}

func TestScalingFactor(t *testing.T) {
	assert.Equal(t, 1.0, ScalingFactor(9))
	assert.Equal(t, 10.0, ScalingFactor(20))
	assert.Equal(t, 100.0, ScalingFactor(200))
	assert.Equal(t, 1000.0, ScalingFactor(2000))
}
