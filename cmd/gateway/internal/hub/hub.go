package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-quotes/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/stock-quotes/cmd/gateway/internal/repository"
	"github.com/shubham-shewale/stock-quotes/pkg/models"
)

const storeTimeout = 2 * time.Second

type ClientInterface interface {
	ID() string
	SendJSON(v interface{})
	SendBytes(b []byte)
	Close()
}

// Hub routes upstream quote payloads to the websocket clients watching each
// symbol. One upstream channel is held per symbol while anyone watches it.
type Hub struct {
	subscribers map[string]map[ClientInterface]bool
	clientSubs  map[ClientInterface]map[string]bool
	refCount    map[string]int
	mu          sync.RWMutex

	store    repository.QuoteStore
	registry *models.Registry
	logger   *zap.Logger
	cancel   context.CancelFunc
}

func NewHub(store repository.QuoteStore, registry *models.Registry, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		subscribers: make(map[string]map[ClientInterface]bool),
		clientSubs:  make(map[ClientInterface]map[string]bool),
		refCount:    make(map[string]int),
		store:       store,
		registry:    registry,
		logger:      logger,
		cancel:      cancel,
	}

	go h.store.RunPubSub(ctx, h.Broadcast)

	return h
}

func (h *Hub) HandleCommand(client ClientInterface, req protocol.WSRequest) {
	switch req.Action {
	case protocol.ActionSubscribe:
		h.handleSubscribe(client, req)
	case protocol.ActionUnsubscribe:
		h.handleUnsubscribe(client, req)
	case protocol.ActionUnsubscribeAll:
		h.handleUnsubscribeAll(client, req)
	case protocol.ActionSnapshot:
		h.handleSnapshot(client, req)
	default:
		h.sendError(client, req.ID, "Unknown action: "+req.Action)
	}
}

func (h *Hub) handleSubscribe(client ClientInterface, req protocol.WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var added []string
	for _, s := range h.known(req.Payload.Symbols) {
		if h.clientSubs[client][s] {
			continue
		}
		added = append(added, s)
	}

	if len(added) == 0 {
		h.sendError(client, req.ID, "No valid/new symbols provided")
		return
	}

	if h.clientSubs[client] == nil {
		h.clientSubs[client] = make(map[string]bool)
	}

	for _, sym := range added {
		h.clientSubs[client][sym] = true
		if h.subscribers[sym] == nil {
			h.subscribers[sym] = make(map[ClientInterface]bool)
		}
		h.subscribers[sym][client] = true

		h.refCount[sym]++
		if h.refCount[sym] == 1 {
			ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			if err := h.store.SubscribeToFeed(ctx, sym); err != nil {
				h.logger.Error("Failed to subscribe upstream", zap.String("symbol", sym), zap.Error(err))
			}
			cancel()
		}
	}

	h.sendAck(client, req.ID, fmt.Sprintf("Subscribed to %v", added))

	// outside the lock: a slow MGET must not stall broadcasts
	go h.sendSnapshots(client, added)
}

func (h *Hub) handleSnapshot(client ClientInterface, req protocol.WSRequest) {
	symbols := h.known(req.Payload.Symbols)
	if len(symbols) == 0 {
		h.sendError(client, req.ID, "No valid symbols provided")
		return
	}
	h.sendAck(client, req.ID, fmt.Sprintf("Snapshot of %v", symbols))
	h.sendSnapshots(client, symbols)
}

func (h *Hub) handleUnsubscribe(client ClientInterface, req protocol.WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var removed []string
	if subs, ok := h.clientSubs[client]; ok {
		for _, sym := range req.Payload.Symbols {
			if subs[sym] {
				delete(subs, sym)
				delete(h.subscribers[sym], client)
				removed = append(removed, sym)
				h.release(sym)
			}
		}
	}

	if len(removed) > 0 {
		h.sendAck(client, req.ID, fmt.Sprintf("Unsubscribed from %v", removed))
	} else {
		h.sendError(client, req.ID, fmt.Sprintf("Not subscribed to: %v", req.Payload.Symbols))
	}
}

func (h *Hub) handleUnsubscribeAll(client ClientInterface, req protocol.WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sym := range h.clientSubs[client] {
		delete(h.subscribers[sym], client)
		h.release(sym)
	}
	if _, ok := h.clientSubs[client]; ok {
		h.clientSubs[client] = make(map[string]bool)
	}
	h.sendAck(client, req.ID, "Unsubscribed from all symbols")
}

// Unregister drops every subscription of a disconnected client.
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sym := range h.clientSubs[client] {
		delete(h.subscribers[sym], client)
		h.release(sym)
	}
	delete(h.clientSubs, client)
	client.Close()
}

func (h *Hub) Broadcast(symbol string, payload string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msg := []byte(payload)
	for client := range h.subscribers[symbol] {
		client.SendBytes(msg)
	}
}

// Watchers reports how many clients watch symbol.
func (h *Hub) Watchers(symbol string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[symbol])
}

// Shutdown stops the upstream read loop. Connected clients are left to
// the HTTP server.
func (h *Hub) Shutdown() {
	h.cancel()
}

func (h *Hub) known(symbols []string) []string {
	var out []string
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		if h.registry.Contains(s) && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// release must be called with h.mu held.
func (h *Hub) release(symbol string) {
	h.refCount[symbol]--
	if h.refCount[symbol] > 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := h.store.UnsubscribeFromFeed(ctx, symbol); err != nil {
		h.logger.Error("Failed to unsubscribe upstream", zap.String("symbol", symbol), zap.Error(err))
	}
	delete(h.refCount, symbol)
	delete(h.subscribers, symbol)
}

func (h *Hub) sendSnapshots(client ClientInterface, symbols []string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	snapshots, err := h.store.GetSnapshots(ctx, symbols)
	if err != nil {
		h.logger.Warn("Snapshot lookup failed", zap.Strings("symbols", symbols), zap.Error(err))
		return
	}
	for _, snap := range snapshots {
		client.SendBytes([]byte(snap))
	}
}

func (h *Hub) sendAck(c ClientInterface, id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeAck, ID: id, Status: "success", Message: msg})
}

func (h *Hub) sendError(c ClientInterface, id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, ID: id, Status: "error", Message: msg})
}
