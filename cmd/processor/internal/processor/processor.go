package processor

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-quotes/pkg/config"
	"github.com/shubham-shewale/stock-quotes/pkg/models"
)

const (
	SnapshotKeyPrefix = "quote:"
	ChannelPrefix     = "quotes."
	snapshotTTL       = 1 * time.Hour
	workerBuffer      = 100
	persistTimeout    = 5 * time.Second
)

// position is the newest tick a worker has applied for one symbol.
type position struct {
	epoch int64
	seq   int64
}

// after reports whether t is newer than pos. A later producer epoch
// restarts the sequence; an earlier one is a leftover from a previous run.
func (pos position) after(t models.QuoteTick) bool {
	if t.Epoch != pos.epoch {
		return t.Epoch > pos.epoch
	}
	return t.SeqID > pos.seq
}

type Processor struct {
	logger        Logger
	rdb           RedisClient
	reader        KafkaReader
	sink          QuoteSink // nil disables persistence
	numWorkers    int
	batchSize     int
	flushInterval time.Duration
}

func NewProcessor(cfg *config.Config, logger Logger, rdb RedisClient, reader KafkaReader, sink QuoteSink) *Processor {
	p := &Processor{
		logger:        logger,
		rdb:           rdb,
		reader:        reader,
		sink:          sink,
		numWorkers:    cfg.Processor.NumWorkers,
		batchSize:     cfg.Processor.BatchSize,
		flushInterval: cfg.Processor.FlushInterval,
	}
	if p.numWorkers <= 0 {
		p.numWorkers = 1
	}
	if p.batchSize <= 0 {
		p.batchSize = 100
	}
	if p.flushInterval <= 0 {
		p.flushInterval = time.Second
	}
	return p
}

// Run blocks until ctx is done, then drains the workers.
func (p *Processor) Run(ctx context.Context) error {
	workerChans := make([]chan []byte, p.numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < p.numWorkers; i++ {
		workerChans[i] = make(chan []byte, workerBuffer)
		wg.Add(1)
		go p.worker(i, workerChans[i], &wg)
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		p.logger.Info("Processor Started", zap.Int("workers", p.numWorkers), zap.Bool("persistence", p.sink != nil))
		for {
			m, err := p.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				p.logger.Error("Kafka Read Error", zap.Error(err))
				continue
			}

			// same symbol always goes to the same worker
			workerID := getWorkerID(m.Key, p.numWorkers)

			select {
			case workerChans[workerID] <- m.Value:
			case <-ctx.Done():
				return
			default:
				// the latest quote matters more than every quote
				p.logger.Warn("Dropping slow packet", zap.String("key", string(m.Key)), zap.Int("worker_id", workerID))
			}
		}
	}()

	<-ctx.Done()
	p.logger.Info("Shutdown signal received, stopping processor...")
	<-readerDone

	for _, ch := range workerChans {
		close(ch)
	}
	p.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	return nil
}

func (p *Processor) worker(id int, msgs <-chan []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	// not the Run context: a shutdown must not cancel an in-flight write
	ctx := context.Background()

	// valid only because of deterministic sharding
	last := make(map[string]position)
	pending := make([]models.QuoteTick, 0, p.batchSize)

	flush := time.NewTicker(p.flushInterval)
	defer flush.Stop()

	for {
		select {
		case payload, ok := <-msgs:
			if !ok {
				p.persist(ctx, id, pending)
				return
			}
			tick, accepted := p.apply(ctx, id, payload, last)
			if !accepted || p.sink == nil {
				continue
			}
			pending = append(pending, tick)
			if len(pending) >= p.batchSize {
				p.persist(ctx, id, pending)
				pending = pending[:0]
			}
		case <-flush.C:
			if len(pending) > 0 {
				p.persist(ctx, id, pending)
				pending = pending[:0]
			}
		}
	}
}

// apply caches and publishes one tick; false means it was skipped.
func (p *Processor) apply(ctx context.Context, workerID int, payload []byte, last map[string]position) (models.QuoteTick, bool) {
	var tick models.QuoteTick
	if err := json.Unmarshal(payload, &tick); err != nil {
		p.logger.Error("JSON Unmarshal Error", zap.Error(err))
		return tick, false
	}

	if !last[tick.Symbol].after(tick) {
		p.logger.Debug("Skipping duplicate tick", zap.String("symbol", tick.Symbol), zap.Int64("epoch", tick.Epoch), zap.Int64("seq_id", tick.SeqID))
		return tick, false
	}

	pipe := p.rdb.Pipeline()
	pipe.Set(ctx, SnapshotKeyPrefix+tick.Symbol, payload, snapshotTTL)
	pipe.Publish(ctx, ChannelPrefix+tick.Symbol, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Error("Redis Pipeline Error", zap.Error(err), zap.String("symbol", tick.Symbol))
		return tick, false
	}

	p.logger.Debug("Processed", zap.String("symbol", tick.Symbol), zap.Int("worker_id", workerID), zap.Int64("seq_id", tick.SeqID))
	if prev := last[tick.Symbol]; prev.epoch != 0 && tick.Epoch > prev.epoch {
		p.logger.Info("Producer restarted, sequence reset", zap.String("symbol", tick.Symbol), zap.Int64("epoch", tick.Epoch))
	}
	last[tick.Symbol] = position{epoch: tick.Epoch, seq: tick.SeqID}
	return tick, true
}

func (p *Processor) persist(ctx context.Context, workerID int, batch []models.QuoteTick) {
	if p.sink == nil || len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	if err := p.sink.SaveBatch(ctx, batch); err != nil {
		p.logger.Error("Persist Error, batch dropped", zap.Error(err), zap.Int("worker_id", workerID), zap.Int("quotes", len(batch)))
		return
	}
	p.logger.Debug("Persisted", zap.Int("worker_id", workerID), zap.Int("quotes", len(batch)))
}

func getWorkerID(key []byte, numWorkers int) int {
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32() % uint32(numWorkers))
}
