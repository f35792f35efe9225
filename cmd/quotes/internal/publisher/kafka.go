package publisher

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-quotes/pkg/models"
)

// KafkaPublisher forwards tick snapshots to Kafka, one message per quote
// keyed by symbol so a symbol always lands on the same partition.
type KafkaPublisher struct {
	logger *zap.Logger
	writer KafkaWriter
	clock  Clock
	queue  chan []models.Quote
	epoch  int64

	// only touched by the Run goroutine
	seqCounters map[string]int64
}

func NewKafkaPublisher(logger *zap.Logger, writer KafkaWriter, clock Clock, buffer int) *KafkaPublisher {
	if buffer <= 0 {
		buffer = 1
	}
	return &KafkaPublisher{
		logger:      logger,
		writer:      writer,
		clock:       clock,
		queue:       make(chan []models.Quote, buffer),
		epoch:       clock.Now().UnixMicro(),
		seqCounters: make(map[string]int64),
	}
}

// Offer queues a batch, dropping it if the publisher is behind.
func (p *KafkaPublisher) Offer(quotes []models.Quote) {
	select {
	case p.queue <- quotes:
	default:
		p.logger.Warn("Dropping quote batch, publisher queue full", zap.Int("quotes", len(quotes)))
	}
}

func (p *KafkaPublisher) Run(ctx context.Context) {
	p.logger.Info("Publisher Started")
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-p.queue:
			p.publish(ctx, batch)
		}
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, batch []models.Quote) {
	now := p.clock.Now().UnixMicro()
	msgs := make([]kafka.Message, 0, len(batch))

	for _, q := range batch {
		p.seqCounters[q.Symbol]++
		payload, err := json.Marshal(models.QuoteTick{
			Quote:     q,
			Timestamp: now,
			SeqID:     p.seqCounters[q.Symbol],
			Epoch:     p.epoch,
		})
		if err != nil {
			p.logger.Error("JSON Marshal Error", zap.String("symbol", q.Symbol), zap.Error(err))
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(q.Symbol),
			Value: payload,
		})
	}

	if len(msgs) == 0 {
		return
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("Kafka Write Error", zap.Error(err), zap.Int("messages", len(msgs)))
		return
	}
	p.logger.Debug("Published quotes", zap.Int("messages", len(msgs)))
}

// Close flushes the writer's buffer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
