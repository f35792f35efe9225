package simulator_test

import (
	"math/rand"
	"testing"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-quotes/cmd/quotes/internal/simulator"
	"github.com/shubham-shewale/stock-quotes/pkg/models"
)

func TestReshuffle_PinnedAlwaysUp(t *testing.T) {
	tickers := models.DefaultRegistry().Tickers()
	drift := simulator.NewDriftRegistry(tickers, "RHT")
	rnd := simulator.RealRand{Rand: rand.New(rand.NewSource(2024))}

	half := len(tickers) / 2
	for run := 0; run < 1000; run++ {
		drift.Reshuffle(rnd)

		if drift.Direction("RHT") != simulator.Up {
			t.Fatalf("run %d: pinned symbol not Up", run)
		}

		ups := 0
		for _, sym := range tickers {
			switch drift.Direction(sym) {
			case simulator.Up:
				ups++
			case simulator.Down:
			default:
				t.Fatalf("run %d: %s has no direction", run, sym)
			}
		}
		// floor(n/2) up before pinning, plus one if the pin flipped a down
		if ups != half && ups != half+1 {
			t.Fatalf("run %d: %d symbols up, want %d or %d", run, ups, half, half+1)
		}
	}
}

func TestReshuffle_PartitionWithoutPin(t *testing.T) {
	tickers := []string{"A", "B", "C", "D", "E"}
	drift := simulator.NewDriftRegistry(tickers, "")
	rnd := simulator.RealRand{Rand: rand.New(rand.NewSource(5))}

	for run := 0; run < 100; run++ {
		drift.Reshuffle(rnd)
		ups, downs := 0, 0
		for _, dir := range drift.Snapshot() {
			if dir == simulator.Up {
				ups++
			} else {
				downs++
			}
		}
		if ups != 2 || downs != 3 {
			t.Fatalf("run %d: expected 2 up / 3 down, got %d / %d", run, ups, downs)
		}
	}
}

func TestDirection_PinnedBeforeFirstReshuffle(t *testing.T) {
	drift := simulator.NewDriftRegistry([]string{"FB", "RHT"}, "RHT")

	if drift.Direction("RHT") != simulator.Up {
		t.Error("Pinned symbol must be Up before any reshuffle")
	}
	if drift.Direction("UNKNOWN") != simulator.Up {
		t.Error("Unknown symbols default to Up")
	}
}

func TestSimulator_DirectionsFollowReshuffle(t *testing.T) {
	sim := simulator.NewSimulator(zap.NewNop(), models.DefaultRegistry(), "RHT",
		simulator.RealRand{Rand: rand.New(rand.NewSource(11))})

	for run := 0; run < 50; run++ {
		sim.ReshuffleDrift()
		dirs := sim.Directions()
		if len(dirs) != models.DefaultRegistry().Len() {
			t.Fatalf("run %d: expected a direction per symbol, got %v", run, dirs)
		}
		if dirs["RHT"] != simulator.Up {
			t.Fatalf("run %d: pinned symbol not Up", run)
		}
		for sym, dir := range dirs {
			if sim.Direction(sym) != dir {
				t.Fatalf("run %d: Directions and Direction disagree on %s", run, sym)
			}
		}
	}
}
