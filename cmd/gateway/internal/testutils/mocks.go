package testutils

import (
	"context"
	"sync"

	"github.com/shubham-shewale/stock-quotes/cmd/gateway/internal/protocol"
)

// MockClient records everything the hub sends to it
type MockClient struct {
	IDVal    string
	Messages []protocol.WSResponse
	RawBytes []string
	Closed   bool
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if resp, ok := v.(protocol.WSResponse); ok {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockClient) Last() protocol.WSResponse {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return protocol.WSResponse{}
	}
	return m.Messages[len(m.Messages)-1]
}

func (m *MockClient) Raw() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return append([]string(nil), m.RawBytes...)
}

// MockQuoteStore keeps snapshots in a map and counts upstream subscriptions
type MockQuoteStore struct {
	Snapshots          map[string]string
	SubscribedChannels map[string]int
	SubscribeCalls     int
	Mu                 sync.Mutex
}

func NewMockStore() *MockQuoteStore {
	return &MockQuoteStore{
		Snapshots:          make(map[string]string),
		SubscribedChannels: make(map[string]int),
	}
}

func (m *MockQuoteStore) GetSnapshots(ctx context.Context, symbols []string) ([]string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	var out []string
	for _, s := range symbols {
		if snap, ok := m.Snapshots[s]; ok {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (m *MockQuoteStore) SubscribeToFeed(ctx context.Context, symbol string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribeCalls++
	m.SubscribedChannels[symbol]++
	return nil
}

func (m *MockQuoteStore) UnsubscribeFromFeed(ctx context.Context, symbol string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribedChannels[symbol]--
	if m.SubscribedChannels[symbol] <= 0 {
		delete(m.SubscribedChannels, symbol)
	}
	return nil
}

func (m *MockQuoteStore) Channels(symbol string) int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.SubscribedChannels[symbol]
}

func (m *MockQuoteStore) RunPubSub(ctx context.Context, onMessage func(symbol string, payload string)) {
	<-ctx.Done()
}

func (m *MockQuoteStore) Close() error { return nil }
