package policy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveRevenueRate(t *testing.T) {
	t.Run("should return the base rate without boost", func(t *testing.T) {
		econ := Default()
		assert.True(t, econ.EffectiveRevenueRate(false).Equal(decimal.NewFromFloat(0.7)))
	})

	t.Run("should cap the boosted rate at 1.0", func(t *testing.T) {
		econ := Default()
		// 0.7 * 2.0 = 1.4, capped
		assert.True(t, econ.EffectiveRevenueRate(true).Equal(decimal.NewFromInt(1)))
	})

	t.Run("should boost below the cap when the product permits", func(t *testing.T) {
		econ := Default()
		econ.RevenueShareRate = decimal.NewFromFloat(0.3)
		assert.True(t, econ.EffectiveRevenueRate(true).Equal(decimal.NewFromFloat(0.6)))
	})
}

func TestParseEconomics(t *testing.T) {
	t.Run("should overlay only the provided fields", func(t *testing.T) {
		econ, err := ParseEconomics(Default(), []byte(`{"revenue_share_rate":"0.8","dispute_window_days":14}`))
		require.NoError(t, err)

		assert.True(t, econ.RevenueShareRate.Equal(decimal.NewFromFloat(0.8)))
		assert.Equal(t, 14, econ.DisputeWindow)
		// Untouched fields keep defaults
		assert.True(t, econ.InitialGrant.Equal(decimal.NewFromInt(1000)))
		assert.Equal(t, 50, econ.MinReasonLength)
	})

	t.Run("should reject a malformed document", func(t *testing.T) {
		_, err := ParseEconomics(Default(), []byte(`{"revenue_share_rate":`))
		assert.Error(t, err)
	})
}

func TestProviders(t *testing.T) {
	t.Run("should serve updated policy from dynamic provider", func(t *testing.T) {
		d := NewDynamic(Default())

		next := Default()
		next.RevenueShareRate = decimal.NewFromFloat(0.9)
		d.Update(next)

		assert.True(t, d.Current().RevenueShareRate.Equal(decimal.NewFromFloat(0.9)))
	})

	t.Run("should serve a fixed snapshot from static provider", func(t *testing.T) {
		s := NewStatic(Default())
		assert.True(t, s.Current().TokensPerSecond.Equal(decimal.NewFromInt(1)))
	})
}
