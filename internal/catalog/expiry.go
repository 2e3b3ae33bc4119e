package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/pantry/internal/settings"
)

// Stats summarizes quantities by expiry state.
type Stats struct {
	TotalItems    int `json:"totalItems"`
	FreshItems    int `json:"freshItems"`
	ExpiringItems int `json:"expiringItems"`
	ExpiredItems  int `json:"expiredItems"`
}

// warningFor returns the warning that applies to it.
func warningFor(it Item, cfg settings.Expiry) settings.Warning {
	if it.IsFresh() {
		return cfg.FreshProducts
	}
	return cfg.OtherProducts
}

// expiring reports whether it expires within its warning window. Items
// already expired are not expiring.
func expiring(it Item, now time.Time, cfg settings.Expiry) bool {
	if it.Consumed {
		return false
	}
	w := warningFor(it, cfg)
	if !w.Enabled {
		return false
	}
	days, ok := it.DaysUntilExpiry(now)
	return ok && days > 0 && days <= w.WarningDays
}

// Expiring returns unconsumed items that expire within the warning window of
// their category, soonest first.
func (c *Catalog) Expiring(ctx context.Context, now time.Time, cfg settings.Expiry) ([]Item, error) {
	items, err := c.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("expiring items: %w", err)
	}

	out := []Item{}
	for _, it := range items {
		if expiring(it, now, cfg) {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExpirationDate < out[j].ExpirationDate
	})
	return out, nil
}

// Stats sums item quantities by expiry state. Items with a disabled warning
// count as fresh.
func (c *Catalog) Stats(ctx context.Context, now time.Time, cfg settings.Expiry) (Stats, error) {
	items, err := c.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("item stats: %w", err)
	}

	var st Stats
	for _, it := range items {
		st.TotalItems += it.Quantity
		w := warningFor(it, cfg)
		days, ok := it.DaysUntilExpiry(now)
		switch {
		case !w.Enabled:
			st.FreshItems += it.Quantity
		case !ok:
		case days > w.WarningDays:
			st.FreshItems += it.Quantity
		case days > 0:
			st.ExpiringItems += it.Quantity
		default:
			st.ExpiredItems += it.Quantity
		}
	}
	return st, nil
}
