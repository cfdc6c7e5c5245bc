package policy

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Economics holds the numeric policy of the TL economy. Values are read on
// every operation, so updates (see Watcher) take effect without restart.
type Economics struct {
	RevenueShareRate decimal.Decimal // creator share of consumed TL
	BoostMultiplier  decimal.Decimal // boost-mode rate multiplier, effective rate capped at 1.0
	TokensPerSecond  decimal.Decimal // playback consumption rate
	ExchangeRate     decimal.Decimal // exchangeable share of net spend
	InitialGrant     decimal.Decimal // registration bonus
	MinReasonLength  int             // dispute intake validation
	DisputeWindow    int             // informational countdown, days
}

// Default returns the canonical policy values
func Default() Economics {
	return Economics{
		RevenueShareRate: decimal.NewFromFloat(0.7),
		BoostMultiplier:  decimal.NewFromFloat(2.0),
		TokensPerSecond:  decimal.NewFromInt(1),
		ExchangeRate:     decimal.NewFromFloat(0.5),
		InitialGrant:     decimal.NewFromInt(1000),
		MinReasonLength:  50,
		DisputeWindow:    30,
	}
}

// EffectiveRevenueRate applies the boost multiplier with the 1.0 cap.
// Creators never receive more than 100% of consumed value.
func (e Economics) EffectiveRevenueRate(boost bool) decimal.Decimal {
	rate := e.RevenueShareRate
	if boost {
		rate = rate.Mul(e.BoostMultiplier)
	}
	one := decimal.NewFromInt(1)
	if rate.GreaterThan(one) {
		return one
	}
	return rate
}

// Provider yields the current economics snapshot
type Provider interface {
	Current() Economics
}

// Static is a fixed-policy provider
type Static struct {
	econ Economics
}

func NewStatic(e Economics) *Static { return &Static{econ: e} }

func (s *Static) Current() Economics { return s.econ }

// Dynamic is a provider whose policy can be swapped at runtime
type Dynamic struct {
	mu   sync.RWMutex
	econ Economics
}

func NewDynamic(initial Economics) *Dynamic {
	return &Dynamic{econ: initial}
}

func (d *Dynamic) Current() Economics {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.econ
}

func (d *Dynamic) Update(e Economics) {
	d.mu.Lock()
	d.econ = e
	d.mu.Unlock()
}
