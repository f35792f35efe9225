// Package stream fans periodic quote snapshots out to streaming subscribers.
package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-quotes/pkg/models"
)

// ErrNoData is returned by Next when no push arrives within the wait.
var ErrNoData = errors.New("no quotes available yet")

type SnapshotSource interface {
	SnapshotAll() []models.Quote
}

// Broadcaster pushes a full snapshot to every subscriber on each interval.
// A subscriber that has not consumed the previous push misses the new one.
type Broadcaster struct {
	logger   *zap.Logger
	source   SnapshotSource
	interval time.Duration

	mu   sync.RWMutex
	subs map[string]chan []models.Quote
}

func NewBroadcaster(logger *zap.Logger, source SnapshotSource, interval time.Duration) *Broadcaster {
	return &Broadcaster{
		logger:   logger,
		source:   source,
		interval: interval,
		subs:     make(map[string]chan []models.Quote),
	}
}

func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			return
		case <-ticker.C:
			b.Broadcast(b.source.SnapshotAll())
		}
	}
}

// Broadcast delivers quotes to every subscriber without blocking.
func (b *Broadcaster) Broadcast(quotes []models.Quote) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- quotes:
		default:
			b.logger.Debug("Dropping push for slow subscriber", zap.String("subscriber", id))
		}
	}
}

func (b *Broadcaster) Subscribe() (string, <-chan []models.Quote) {
	id := uuid.NewString()
	ch := make(chan []models.Quote, 1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Next waits up to wait for the next push.
func (b *Broadcaster) Next(ctx context.Context, wait time.Duration) ([]models.Quote, error) {
	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case quotes, ok := <-ch:
		if !ok {
			return nil, ErrNoData
		}
		return quotes, nil
	case <-timer.C:
		return nil, ErrNoData
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
