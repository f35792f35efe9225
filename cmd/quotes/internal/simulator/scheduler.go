package simulator

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler drives the simulator's tick and reshuffle timers.
type Scheduler struct {
	sim            *Simulator
	logger         *zap.Logger
	tickEvery      time.Duration
	reshuffleEvery time.Duration
	sinks          []Sink
}

func NewScheduler(sim *Simulator, logger *zap.Logger, tickEvery, reshuffleEvery time.Duration, sinks ...Sink) *Scheduler {
	return &Scheduler{
		sim:            sim,
		logger:         logger,
		tickEvery:      tickEvery,
		reshuffleEvery: reshuffleEvery,
		sinks:          sinks,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	tick := time.NewTicker(s.tickEvery)
	reshuffle := time.NewTicker(s.reshuffleEvery)
	defer tick.Stop()
	defer reshuffle.Stop()

	s.logger.Info("Simulator Started",
		zap.Duration("tick_every", s.tickEvery),
		zap.Duration("reshuffle_every", s.reshuffleEvery),
		zap.Int("sinks", len(s.sinks)))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Simulator stopped")
			return
		case <-tick.C:
			quotes := s.sim.Tick()
			for _, sink := range s.sinks {
				sink.Offer(quotes)
			}
		case <-reshuffle.C:
			s.sim.ReshuffleDrift()
		}
	}
}
