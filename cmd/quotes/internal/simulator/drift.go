package simulator

import "sync/atomic"

// DriftRegistry assigns each symbol an up or down bias. The whole map is
// swapped on reshuffle so readers always see one consistent assignment.
type DriftRegistry struct {
	tickers    []string
	pinned     string
	directions atomic.Pointer[map[string]Direction]
}

func NewDriftRegistry(tickers []string, pinned string) *DriftRegistry {
	t := make([]string, len(tickers))
	copy(t, tickers)
	return &DriftRegistry{tickers: t, pinned: pinned}
}

// Direction of symbol. The pinned symbol is Up even before the first
// reshuffle; unknown symbols default to Up.
func (d *DriftRegistry) Direction(symbol string) Direction {
	if symbol == d.pinned {
		return Up
	}
	m := d.directions.Load()
	if m == nil {
		return Up
	}
	if dir, ok := (*m)[symbol]; ok {
		return dir
	}
	return Up
}

// Reshuffle gives floor(n/2) random symbols Up, the rest Down, then pins.
func (d *DriftRegistry) Reshuffle(rnd Rand) {
	order := make([]string, len(d.tickers))
	copy(order, d.tickers)
	for i := len(order) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}

	half := len(order) / 2
	next := make(map[string]Direction, len(order))
	for i, sym := range order {
		if i < half {
			next[sym] = Up
		} else {
			next[sym] = Down
		}
	}
	if d.pinned != "" {
		next[d.pinned] = Up
	}
	d.directions.Store(&next)
}

// Snapshot copies the current assignment.
func (d *DriftRegistry) Snapshot() map[string]Direction {
	out := make(map[string]Direction, len(d.tickers))
	for _, sym := range d.tickers {
		out[sym] = d.Direction(sym)
	}
	return out
}
