package simulator

import (
	"math/rand"

	"github.com/shubham-shewale/stock-quotes/pkg/models"
)

// for deterministic values
type Rand interface {
	Intn(n int) int
	Float64() float64
}

type RealRand struct{ *rand.Rand }

func (r RealRand) Intn(n int) int   { return r.Rand.Intn(n) }
func (r RealRand) Float64() float64 { return r.Rand.Float64() }

// Sink receives the snapshot produced by every tick. Offer must not block.
type Sink interface {
	Offer(quotes []models.Quote)
}

// Direction biases a symbol's long-run movement
type Direction int

const (
	Up   Direction = 1
	Down Direction = -1
)

// QuoteState is the committed simulation state of one symbol. Values are
// never mutated after being stored; a tick stores a fresh one.
type QuoteState struct {
	Bid       float64
	Ask       float64
	Phase     float64
	Direction Direction
}
