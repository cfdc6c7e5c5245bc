package policy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// EconomicsKey is the etcd key holding the JSON policy document
const EconomicsKey = "timelink/policy/economics"

type wireEconomics struct {
	RevenueShareRate *decimal.Decimal `json:"revenue_share_rate"`
	BoostMultiplier  *decimal.Decimal `json:"boost_multiplier"`
	TokensPerSecond  *decimal.Decimal `json:"tokens_per_second"`
	ExchangeRate     *decimal.Decimal `json:"exchange_rate"`
	InitialGrant     *decimal.Decimal `json:"initial_grant"`
	MinReasonLength  *int             `json:"min_reason_length"`
	DisputeWindow    *int             `json:"dispute_window_days"`
}

// ParseEconomics overlays a JSON policy document on top of base. Absent
// fields keep their base values.
func ParseEconomics(base Economics, data []byte) (Economics, error) {
	var w wireEconomics
	if err := json.Unmarshal(data, &w); err != nil {
		return base, fmt.Errorf("policy document malformed: %w", err)
	}
	out := base
	if w.RevenueShareRate != nil {
		out.RevenueShareRate = *w.RevenueShareRate
	}
	if w.BoostMultiplier != nil {
		out.BoostMultiplier = *w.BoostMultiplier
	}
	if w.TokensPerSecond != nil {
		out.TokensPerSecond = *w.TokensPerSecond
	}
	if w.ExchangeRate != nil {
		out.ExchangeRate = *w.ExchangeRate
	}
	if w.InitialGrant != nil {
		out.InitialGrant = *w.InitialGrant
	}
	if w.MinReasonLength != nil {
		out.MinReasonLength = *w.MinReasonLength
	}
	if w.DisputeWindow != nil {
		out.DisputeWindow = *w.DisputeWindow
	}
	return out, nil
}

// Watcher keeps a Dynamic provider in sync with the policy document in etcd
type Watcher struct {
	client *clientv3.Client
	target *Dynamic
	base   Economics
	log    *logrus.Entry
}

func NewWatcher(client *clientv3.Client, target *Dynamic, base Economics, log *logrus.Entry) *Watcher {
	return &Watcher{client: client, target: target, base: base, log: log}
}

// Run loads the current document, then blocks applying updates until ctx is
// cancelled. A malformed document is logged and skipped, never applied.
func (w *Watcher) Run(ctx context.Context) error {
	resp, err := w.client.Get(ctx, EconomicsKey)
	if err != nil {
		return fmt.Errorf("policy fetch failed: %w", err)
	}
	if len(resp.Kvs) > 0 {
		w.apply(resp.Kvs[0].Value)
	}

	ch := w.client.Watch(ctx, EconomicsKey)
	for watchResp := range ch {
		if err := watchResp.Err(); err != nil {
			return fmt.Errorf("policy watch failed: %w", err)
		}
		for _, ev := range watchResp.Events {
			switch ev.Type {
			case clientv3.EventTypePut:
				w.apply(ev.Kv.Value)
			case clientv3.EventTypeDelete:
				w.target.Update(w.base)
				w.log.Info("policy document deleted, reverted to defaults")
			}
		}
	}
	return ctx.Err()
}

func (w *Watcher) apply(data []byte) {
	econ, err := ParseEconomics(w.base, data)
	if err != nil {
		w.log.WithError(err).Warn("ignoring invalid policy update")
		return
	}
	w.target.Update(econ)
	w.log.WithField("revenue_rate", econ.RevenueShareRate.String()).Info("policy updated")
}
