package testutils

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/stock-quotes/pkg/models"
)

// MockKafkaReader replays Messages, then reports DeadlineExceeded so the
// read loop ends.
type MockKafkaReader struct {
	Messages []kafka.Message
	Index    int
	Mu       sync.Mutex
	Closed   bool
}

func (m *MockKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.Closed {
		return kafka.Message{}, io.EOF
	}
	if m.Index >= len(m.Messages) {
		return kafka.Message{}, context.DeadlineExceeded
	}

	msg := m.Messages[m.Index]
	m.Index++
	return msg, nil
}

func (m *MockKafkaReader) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

// MockPipeline records SET/PUBLISH commands by name
type MockPipeline struct {
	redis.Pipeliner // satisfies the rest of the interface; unused methods panic

	ExecCount    int
	RecordedCmds []string
	FailExec     bool
	Mu           sync.Mutex
}

func (m *MockPipeline) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "SET "+key)
	return redis.NewStatusCmd(ctx)
}

func (m *MockPipeline) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "PUBLISH "+channel)
	return redis.NewIntCmd(ctx)
}

func (m *MockPipeline) Exec(ctx context.Context) ([]redis.Cmder, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.FailExec {
		return nil, errors.New("redis unavailable")
	}
	m.ExecCount++
	return nil, nil
}

type MockRedisClient struct {
	PipelineSpy *MockPipeline
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{PipelineSpy: &MockPipeline{}}
}

func (m *MockRedisClient) Pipeline() redis.Pipeliner {
	return m.PipelineSpy
}

// MockQuoteSink keeps every saved tick
type MockQuoteSink struct {
	Mu      sync.Mutex
	Saved   []models.QuoteTick
	Batches int
	Fail    bool
}

func (m *MockQuoteSink) SaveBatch(ctx context.Context, ticks []models.QuoteTick) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Fail {
		return errors.New("database unavailable")
	}
	m.Batches++
	m.Saved = append(m.Saved, ticks...)
	return nil
}

func (m *MockQuoteSink) Len() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Saved)
}
