package simulator_test

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-quotes/cmd/quotes/internal/simulator"
	"github.com/shubham-shewale/stock-quotes/cmd/quotes/internal/testutils"
	"github.com/shubham-shewale/stock-quotes/pkg/models"
)

const cent = 0.01 + 1e-9

func newSeeded(seed int64) *simulator.Simulator {
	rnd := simulator.RealRand{Rand: rand.New(rand.NewSource(seed))}
	return simulator.NewSimulator(zap.NewNop(), models.DefaultRegistry(), "RHT", rnd)
}

func TestTick_FirstStepWithinBand(t *testing.T) {
	// noise roll 0.5 -> 0, spread roll 0.5 -> 0.325, cross roll 0.5 -> not crossed
	rnd := &testutils.MockRand{Floats: []float64{0.5, 0.5, 0.5}}
	reg := models.NewRegistry(models.Symbol{Ticker: "FB", Name: "Facebook"})
	sim := simulator.NewSimulator(zap.NewNop(), reg, "FB", rnd)

	quotes := sim.Tick()
	if len(quotes) != 1 {
		t.Fatalf("Expected 1 quote, got %d", len(quotes))
	}
	q := quotes[0]

	prevMid := (simulator.DefaultBid + simulator.DefaultAsk) / 2
	base := 0.001 + 0.006*math.Sin(0.2)
	low := prevMid * (1 + base - 0.0005)
	high := prevMid * (1 + base + 0.0005)

	mid := (q.Bid + q.Ask) / 2
	if mid < low-cent || mid > high+cent {
		t.Errorf("Mid %.4f outside [%.4f, %.4f]", mid, low, high)
	}
	if q.Ask < q.Bid {
		t.Errorf("Expected ask >= bid, got bid=%.2f ask=%.2f", q.Bid, q.Ask)
	}
	if math.Abs((q.Ask-q.Bid)-0.325) > cent {
		t.Errorf("Expected spread ~0.325, got %.4f", q.Ask-q.Bid)
	}
	if q.Bid != 99.81 || q.Ask != 100.13 {
		t.Errorf("Expected 99.81/100.13, got %.2f/%.2f", q.Bid, q.Ask)
	}

	st := sim.State("FB")
	if math.Abs(st.Phase-0.2) > 1e-12 {
		t.Errorf("Expected phase 0.2, got %f", st.Phase)
	}
	if st.Direction != simulator.Up {
		t.Errorf("Pinned symbol should tick upward")
	}
}

func TestTick_CrossedSpread(t *testing.T) {
	rnd := &testutils.MockRand{Floats: []float64{0.5, 0.5, 0.05}}
	reg := models.NewRegistry(models.Symbol{Ticker: "FB", Name: "Facebook"})
	sim := simulator.NewSimulator(zap.NewNop(), reg, "FB", rnd)

	q := sim.Tick()[0]
	if q.Bid <= q.Ask {
		t.Fatalf("Expected crossed book, got bid=%.2f ask=%.2f", q.Bid, q.Ask)
	}
	if math.Abs((q.Bid-q.Ask)-0.325) > cent {
		t.Errorf("Crossed spread magnitude should stay ~0.325, got %.4f", q.Bid-q.Ask)
	}
	if q.Spread >= 0 {
		t.Errorf("Spread of a crossed quote should be negative, got %f", q.Spread)
	}
}

func TestTick_Invariants(t *testing.T) {
	sim := newSeeded(42)

	crossed := 0
	samples := 0
	for i := 0; i < 1000; i++ {
		for _, q := range sim.Tick() {
			samples++
			if q.Bid < 0.01 || q.Ask < 0.01 {
				t.Fatalf("tick %d: price below floor: %+v", i, q)
			}
			width := math.Abs(q.Ask - q.Bid)
			if width < 0.05-cent || width > 0.60+cent {
				t.Fatalf("tick %d: spread %.4f outside [0.05, 0.60]", i, width)
			}
			if q.Bid > q.Ask {
				crossed++
			}
			if math.Abs(q.Bid*100-math.Round(q.Bid*100)) > 1e-6 {
				t.Fatalf("tick %d: bid %v not rounded to cents", i, q.Bid)
			}
		}
	}

	ratio := float64(crossed) / float64(samples)
	if ratio < 0.06 || ratio > 0.14 {
		t.Errorf("Crossed ratio %.3f far from 0.10", ratio)
	}
}

func TestTick_NeverNonPositive(t *testing.T) {
	// noise and spread pinned at their lower bounds, never crossed
	rnd := &testutils.MockRand{Floats: []float64{0.0, 0.0, 0.99}}
	sim := simulator.NewSimulator(zap.NewNop(), models.DefaultRegistry(), "RHT", rnd)

	for i := 0; i < 1000; i++ {
		for _, q := range sim.Tick() {
			if q.Bid <= 0 || q.Ask <= 0 {
				t.Fatalf("tick %d: non-positive price %+v", i, q)
			}
		}
	}
}

func TestSnapshot_Idempotent(t *testing.T) {
	sim := newSeeded(7)
	sim.Tick()

	a := sim.Snapshot("MSFT")
	b := sim.Snapshot("MSFT")
	if a != b {
		t.Errorf("Snapshot changed without a tick: %+v vs %+v", a, b)
	}

	all1 := sim.SnapshotAll()
	all2 := sim.SnapshotAll()
	for i := range all1 {
		if all1[i] != all2[i] {
			t.Errorf("SnapshotAll[%d] changed without a tick", i)
		}
	}
}

func TestSnapshot_LazyDefaults(t *testing.T) {
	sim := newSeeded(1)

	q := sim.Snapshot("ZZZ")
	if q.Bid != 99.5 || q.Ask != 100.0 {
		t.Errorf("Expected defaults 99.5/100.0, got %.2f/%.2f", q.Bid, q.Ask)
	}
	if q.Price != 99.75 || q.Spread != 0.5 {
		t.Errorf("Expected price 99.75 spread 0.5, got %v/%v", q.Price, q.Spread)
	}
	if q.Exchange != simulator.ExchangeName || q.Volume != 10000 || q.Share != 5000 {
		t.Errorf("Unexpected constants: %+v", q)
	}

	if st := sim.State("FB"); st.Phase != 0 {
		t.Errorf("Untouched symbol should have phase 0, got %f", st.Phase)
	}
}

func TestSnapshotAll_RegistryOrder(t *testing.T) {
	sim := newSeeded(3)

	quotes := sim.SnapshotAll()
	want := models.DefaultRegistry().Tickers()
	if len(quotes) != len(want) {
		t.Fatalf("Expected %d quotes, got %d", len(want), len(quotes))
	}
	for i, q := range quotes {
		if q.Symbol != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], q.Symbol)
		}
		if q.Name == "" {
			t.Errorf("%s has no display name", q.Symbol)
		}
	}
}

func TestSimulator_ConcurrentReaders(t *testing.T) {
	sim := newSeeded(99)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for _, q := range sim.SnapshotAll() {
					if math.Abs(q.Price-(q.Bid+q.Ask)/2) > 1e-6 {
						t.Errorf("Torn read: %+v", q)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		sim.Tick()
		if i%50 == 0 {
			sim.ReshuffleDrift()
		}
	}
	close(stop)
	wg.Wait()
}

func TestTick_ClampsBidAtFloor(t *testing.T) {
	// noise and spread at their lower bounds, never crossed
	rnd := &testutils.MockRand{Floats: []float64{0.0, 0.0, 0.99}}
	reg := models.NewRegistry(models.Symbol{Ticker: "FB", Name: "Facebook"})
	sim := simulator.NewSimulator(zap.NewNop(), reg, "", rnd)

	// next phase lands on the trough of the wave
	sim.SetState("FB", simulator.QuoteState{Bid: 0.01, Ask: 0.02, Phase: 3*math.Pi/2 - 0.2})

	q := sim.Tick()[0]
	if q.Bid != 0.01 {
		t.Errorf("Expected bid clamped to 0.01, got %v", q.Bid)
	}
	if q.Ask != 0.04 {
		t.Errorf("Expected ask 0.04, got %v", q.Ask)
	}
	if sim.State("FB").Bid != 0.01 {
		t.Errorf("Clamped bid was not committed")
	}
}
