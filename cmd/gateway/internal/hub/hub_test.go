package hub_test

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-quotes/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/stock-quotes/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/stock-quotes/cmd/gateway/internal/testutils"
	"github.com/shubham-shewale/stock-quotes/pkg/models"
)

func setup(t *testing.T) (*hub.Hub, *testutils.MockQuoteStore) {
	store := testutils.NewMockStore()
	h := hub.NewHub(store, models.DefaultRegistry(), zap.NewNop())
	t.Cleanup(h.Shutdown)
	return h, store
}

func cmd(action string, symbols ...string) protocol.WSRequest {
	return protocol.WSRequest{Action: action, Payload: protocol.RequestPayload{Symbols: symbols}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_Subscribe_Success(t *testing.T) {
	h, store := setup(t)
	store.Snapshots["FB"] = `{"symbol":"FB","bid":99.5}`
	client := testutils.NewMockClient("c1")

	req := cmd(protocol.ActionSubscribe, "FB")
	req.ID = "req-1"
	h.HandleCommand(client, req)

	last := client.Last()
	if last.Type != protocol.TypeAck || last.ID != "req-1" {
		t.Errorf("Expected ack for req-1, got %+v", last)
	}
	if store.Channels("FB") != 1 {
		t.Errorf("Expected one upstream subscription to FB")
	}

	// snapshot follows the ack asynchronously
	waitFor(t, func() bool { return len(client.Raw()) == 1 })
	if client.Raw()[0] != store.Snapshots["FB"] {
		t.Errorf("Unexpected snapshot %q", client.Raw()[0])
	}
}

func TestHub_Subscribe_MixedValidity(t *testing.T) {
	h, _ := setup(t)
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, cmd(protocol.ActionSubscribe, "AMZN", "NOT_LISTED"))

	last := client.Last()
	if last.Status != "success" {
		t.Errorf("Expected success for partially valid subscription")
	}
	if !strings.Contains(last.Message, "AMZN") {
		t.Errorf("Response should contain accepted symbol AMZN")
	}
	if strings.Contains(last.Message, "NOT_LISTED") {
		t.Errorf("Response should not contain unknown symbol")
	}
}

func TestHub_Subscribe_OnlyUnknown(t *testing.T) {
	h, store := setup(t)
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, cmd(protocol.ActionSubscribe, "AAPL"))

	if client.Last().Type != protocol.TypeError {
		t.Errorf("Expected error for unlisted symbol")
	}
	if store.SubscribeCalls != 0 {
		t.Errorf("No upstream subscription expected")
	}
}

func TestHub_Subscribe_Idempotency(t *testing.T) {
	h, store := setup(t)
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, cmd(protocol.ActionSubscribe, "NFLX", "NFLX"))
	h.HandleCommand(client, cmd(protocol.ActionSubscribe, "NFLX"))

	if store.Channels("NFLX") != 1 {
		t.Errorf("Upstream should be subscribed once per symbol")
	}
	if h.Watchers("NFLX") != 1 {
		t.Errorf("Expected 1 watcher, got %d", h.Watchers("NFLX"))
	}
}

func TestHub_RefCountAcrossClients(t *testing.T) {
	h, store := setup(t)
	c1 := testutils.NewMockClient("c1")
	c2 := testutils.NewMockClient("c2")

	h.HandleCommand(c1, cmd(protocol.ActionSubscribe, "MSFT"))
	h.HandleCommand(c2, cmd(protocol.ActionSubscribe, "MSFT"))
	if store.SubscribeCalls != 1 {
		t.Errorf("Second watcher should reuse the upstream channel, got %d calls", store.SubscribeCalls)
	}

	h.Unregister(c1)
	if store.Channels("MSFT") != 1 {
		t.Errorf("Upstream must stay while c2 watches MSFT")
	}
	if !c1.Closed {
		t.Errorf("Unregister should close the client")
	}

	h.HandleCommand(c2, cmd(protocol.ActionUnsubscribe, "MSFT"))
	if store.Channels("MSFT") != 0 {
		t.Errorf("Upstream should be released with the last watcher")
	}
}

func TestHub_Unsubscribe_NotSubscribed(t *testing.T) {
	h, _ := setup(t)
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, cmd(protocol.ActionUnsubscribe, "GOOGL"))

	if client.Last().Type != protocol.TypeError {
		t.Errorf("Expected error response for unsubscribing a symbol not watched")
	}
}

func TestHub_UnsubscribeAll(t *testing.T) {
	h, store := setup(t)
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, cmd(protocol.ActionSubscribe, "FB", "RHT"))
	h.HandleCommand(client, cmd(protocol.ActionUnsubscribeAll))

	if store.Channels("FB") != 0 || store.Channels("RHT") != 0 {
		t.Errorf("Store should hold no channels after unsubscribe_all")
	}
	if client.Last().Type != protocol.TypeAck {
		t.Errorf("Expected ack")
	}
}

func TestHub_Snapshot_DoesNotSubscribe(t *testing.T) {
	h, store := setup(t)
	store.Snapshots["RHT"] = `{"symbol":"RHT"}`
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, cmd(protocol.ActionSnapshot, "RHT", "FB"))

	if client.Last().Type != protocol.TypeAck {
		t.Errorf("Expected ack, got %+v", client.Last())
	}
	raw := client.Raw()
	if len(raw) != 1 || raw[0] != `{"symbol":"RHT"}` {
		t.Errorf("Expected only cached RHT snapshot, got %v", raw)
	}
	if store.SubscribeCalls != 0 {
		t.Errorf("snapshot must not subscribe upstream")
	}
}

func TestHub_Broadcast(t *testing.T) {
	h, _ := setup(t)
	watcher := testutils.NewMockClient("w")
	other := testutils.NewMockClient("o")

	h.HandleCommand(watcher, cmd(protocol.ActionSubscribe, "GOOGL"))
	h.HandleCommand(other, cmd(protocol.ActionSubscribe, "AMZN"))

	h.Broadcast("GOOGL", `{"symbol":"GOOGL"}`)

	if raw := watcher.Raw(); len(raw) != 1 || raw[0] != `{"symbol":"GOOGL"}` {
		t.Errorf("Watcher should get the GOOGL quote, got %v", raw)
	}
	if len(other.Raw()) != 0 {
		t.Errorf("Other client should get nothing")
	}
}

func TestHub_UnknownAction(t *testing.T) {
	h, _ := setup(t)
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, cmd("buy", "FB"))

	if !strings.Contains(client.Last().Message, "Unknown action") {
		t.Errorf("Expected unknown action error, got %+v", client.Last())
	}
}

func TestHub_ConcurrentCommands(t *testing.T) {
	// meaningful under -race
	h, store := setup(t)
	client := testutils.NewMockClient("c1")

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		h.HandleCommand(client, cmd(protocol.ActionSubscribe, "FB"))
	}()
	go func() {
		defer wg.Done()
		h.HandleCommand(client, cmd(protocol.ActionUnsubscribe, "FB"))
	}()
	go func() {
		defer wg.Done()
		h.Broadcast("FB", "{}")
	}()
	wg.Wait()

	h.Unregister(client)
	if store.Channels("FB") != 0 {
		t.Errorf("No channel should survive Unregister")
	}
}

func TestHub_AckWireShape(t *testing.T) {
	h, _ := setup(t)
	client := testutils.NewMockClient("c1")

	req := cmd(protocol.ActionSubscribe, "FB")
	req.ID = "w1"
	h.HandleCommand(client, req)

	b, err := json.Marshal(client.Last())
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(b, &fields); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"type", "id", "status", "message"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("ack is missing %q: %s", key, b)
		}
	}
	if len(fields) != 4 {
		t.Errorf("ack carries unexpected fields: %s", b)
	}
}
