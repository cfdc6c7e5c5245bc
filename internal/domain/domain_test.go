package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDisputeStatusTerminal(t *testing.T) {
	assert.False(t, DisputePending.Terminal())
	assert.False(t, DisputeReviewing.Terminal())
	assert.True(t, DisputeUpheld.Terminal())
	assert.True(t, DisputeRejected.Terminal())
}

func TestDisputeCategoryValid(t *testing.T) {
	for _, c := range []DisputeCategory{CategoryCopyright, CategoryFake, CategoryAbuse, CategoryOther} {
		assert.True(t, c.Valid(), string(c))
	}
	assert.False(t, DisputeCategory("spite").Valid())
	assert.False(t, DisputeCategory("").Valid())
}

func TestEscrowPlayable(t *testing.T) {
	esc := &Escrow{Balance: decimal.NewFromInt(10)}
	assert.True(t, esc.Playable())

	esc.RevenueHeld = true
	assert.False(t, esc.Playable())

	esc.RevenueHeld = false
	esc.Balance = decimal.Zero
	assert.False(t, esc.Playable())
}
