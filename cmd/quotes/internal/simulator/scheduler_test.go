package simulator_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-quotes/cmd/quotes/internal/simulator"
	"github.com/shubham-shewale/stock-quotes/cmd/quotes/internal/testutils"
)

func TestScheduler_TicksAndFeedsSinks(t *testing.T) {
	sim := newSeeded(11)
	sink := &testutils.MockSink{}

	sched := simulator.NewScheduler(sim, zap.NewNop(), 5*time.Millisecond, time.Hour, sink)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Scheduler did not stop after context cancel")
	}

	if sink.Count() == 0 {
		t.Fatal("Sink never received a tick")
	}

	sink.Mu.Lock()
	last := sink.Batches[len(sink.Batches)-1]
	sink.Mu.Unlock()

	if len(last) != 6 {
		t.Errorf("Expected 6 quotes per tick, got %d", len(last))
	}
	if st := sim.State("FB"); st.Phase == 0 {
		t.Error("State was not advanced by the scheduler")
	}
}
