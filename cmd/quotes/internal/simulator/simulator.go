package simulator

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-quotes/pkg/models"
)

const (
	ExchangeName = "vert.x stock exchange"
	Volume       = 10000
	Share        = Volume / 2

	DefaultBid = 99.5
	DefaultAsk = 100.0

	phaseStep  = 0.2   // radians per tick
	driftStep  = 0.001 // per tick, times direction
	amplitude  = 0.006
	noiseWidth = 0.001 // noise in [-0.0005, 0.0005)
	minSpread  = 0.05
	maxSpread  = 0.60
	crossRate  = 0.10
	priceFloor = 0.01
)

// Simulator owns the per-symbol quote state and the drift assignment.
type Simulator struct {
	logger   *zap.Logger
	registry *models.Registry
	drift    *DriftRegistry
	states   sync.Map // ticker -> *QuoteState

	// serializes Tick and ReshuffleDrift; guards rand
	mu   sync.Mutex
	rand Rand
}

func NewSimulator(logger *zap.Logger, registry *models.Registry, pinned string, rnd Rand) *Simulator {
	s := &Simulator{
		logger:   logger,
		registry: registry,
		drift:    NewDriftRegistry(registry.Tickers(), pinned),
		rand:     rnd,
	}
	s.ReshuffleDrift()
	return s
}

// Tick advances every registered symbol one step and returns the new snapshot.
func (s *Simulator) Tick() []models.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()

	quotes := make([]models.Quote, 0, s.registry.Len())
	for _, sym := range s.registry.Symbols() {
		next := s.step(s.State(sym.Ticker), s.drift.Direction(sym.Ticker))
		s.states.Store(sym.Ticker, next)
		quotes = append(quotes, newQuote(sym.Ticker, sym.Name, *next))
	}
	return quotes
}

func (s *Simulator) step(prev QuoteState, dir Direction) *QuoteState {
	phase := prev.Phase + phaseStep
	prevMid := (prev.Ask + prev.Bid) / 2

	noise := (s.rand.Float64() - 0.5) * noiseWidth
	move := driftStep*float64(dir) + amplitude*math.Sin(phase) + noise
	mid := prevMid * (1 + move)

	spread := minSpread + s.rand.Float64()*(maxSpread-minSpread)
	ask := math.Max(priceFloor, mid+spread/2)
	bid := math.Max(priceFloor, mid-spread/2)

	if s.rand.Float64() < crossRate {
		bid, ask = ask, bid
	}

	return &QuoteState{
		Bid:       roundCents(bid),
		Ask:       roundCents(ask),
		Phase:     phase,
		Direction: dir,
	}
}

// ReshuffleDrift re-partitions symbols into up and down halves.
func (s *Simulator) ReshuffleDrift() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drift.Reshuffle(s.rand)
	s.logger.Debug("Drift reshuffled", zap.Any("directions", s.drift.Snapshot()))
}

// State returns the committed state of symbol, or the defaults if it has
// never ticked.
func (s *Simulator) State(symbol string) QuoteState {
	if v, ok := s.states.Load(symbol); ok {
		return *v.(*QuoteState)
	}
	return QuoteState{Bid: DefaultBid, Ask: DefaultAsk, Direction: s.drift.Direction(symbol)}
}

func (s *Simulator) Direction(symbol string) Direction {
	return s.drift.Direction(symbol)
}

func (s *Simulator) Directions() map[string]Direction {
	return s.drift.Snapshot()
}

// Snapshot reads symbol without mutating anything.
func (s *Simulator) Snapshot(symbol string) models.Quote {
	name, _ := s.registry.Name(symbol)
	return newQuote(symbol, name, s.State(symbol))
}

// SnapshotAll returns one quote per registered symbol, in registry order.
func (s *Simulator) SnapshotAll() []models.Quote {
	quotes := make([]models.Quote, 0, s.registry.Len())
	for _, sym := range s.registry.Symbols() {
		quotes = append(quotes, newQuote(sym.Ticker, sym.Name, s.State(sym.Ticker)))
	}
	return quotes
}

func newQuote(symbol, name string, st QuoteState) models.Quote {
	bid := decimal.NewFromFloat(st.Bid)
	ask := decimal.NewFromFloat(st.Ask)
	return models.Quote{
		Exchange: ExchangeName,
		Symbol:   symbol,
		Name:     name,
		Bid:      st.Bid,
		Ask:      st.Ask,
		Price:    bid.Add(ask).Div(decimal.NewFromInt(2)).InexactFloat64(),
		Spread:   ask.Sub(bid).InexactFloat64(),
		Volume:   Volume,
		Share:    Share,
	}
}

func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
