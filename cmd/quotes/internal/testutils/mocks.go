package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/stock-quotes/cmd/quotes/internal/publisher"
	"github.com/shubham-shewale/stock-quotes/pkg/models"
)

// MockRand replays Floats and Ints in a loop. Empty slices yield 0.5 and 0.
type MockRand struct {
	Floats []float64
	Ints   []int

	mu sync.Mutex
	fi int
	ii int
}

func (m *MockRand) Float64() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Floats) == 0 {
		return 0.5
	}
	v := m.Floats[m.fi%len(m.Floats)]
	m.fi++
	return v
}

func (m *MockRand) Intn(n int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Ints) == 0 {
		return 0
	}
	v := m.Ints[m.ii%len(m.Ints)]
	m.ii++
	return v % n
}

// MockSink records every offered batch
type MockSink struct {
	Mu      sync.Mutex
	Batches [][]models.Quote
}

func (m *MockSink) Offer(quotes []models.Quote) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Batches = append(m.Batches, quotes)
}

func (m *MockSink) Count() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Batches)
}

// MockSource serves a fixed snapshot
type MockSource struct {
	Quotes []models.Quote
}

func (m *MockSource) SnapshotAll() []models.Quote { return m.Quotes }

type MockKafkaWriter struct {
	Messages   []kafka.Message
	Mu         sync.Mutex
	ShouldFail bool
	Block      chan struct{} // when set, writes wait for it to close
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("kafka error")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error { return nil }

func (m *MockKafkaWriter) Len() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Messages)
}

type MockClock struct {
	Mu          sync.Mutex
	CurrentTime time.Time
}

func (m *MockClock) Now() time.Time {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.CurrentTime
}

func (m *MockClock) Sleep(d time.Duration) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.CurrentTime = m.CurrentTime.Add(d)
}

type MockKafkaConn struct {
	CreatedTopics []string
	NotReady      bool
}

func (m *MockKafkaConn) Controller() (kafka.Broker, error) {
	return kafka.Broker{Host: "localhost", Port: 9092}, nil
}
func (m *MockKafkaConn) Close() error { return nil }
func (m *MockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	for _, t := range topics {
		m.CreatedTopics = append(m.CreatedTopics, t.Topic)
	}
	return nil
}
func (m *MockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if m.NotReady {
		return nil, nil
	}
	return []kafka.Partition{{ID: 0}}, nil
}

type MockKafkaDialer struct {
	ConnSpy *MockKafkaConn
	Fail    bool
	Dialed  []string
}

func (m *MockKafkaDialer) DialContext(ctx context.Context, network, address string) (publisher.KafkaConn, error) {
	m.Dialed = append(m.Dialed, address)
	if m.Fail {
		return nil, errors.New("connection refused")
	}
	if m.ConnSpy == nil {
		m.ConnSpy = &MockKafkaConn{}
	}
	return m.ConnSpy, nil
}

// MockCounter answers count queries from a map
type MockCounter struct {
	Counts map[string]int64
	Err    error
}

func (m *MockCounter) Count(ctx context.Context, symbol string) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	if symbol == "" {
		var total int64
		for _, n := range m.Counts {
			total += n
		}
		return total, nil
	}
	return m.Counts[symbol], nil
}
