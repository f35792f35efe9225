package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/shubham-shewale/stock-quotes/cmd/gateway/internal/repository"
)

func newStore(t *testing.T) (*repository.RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	store := repository.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStore_GetSnapshots_SkipsMissing(t *testing.T) {
	store, mr := newStore(t)
	mr.Set("quote:FB", `{"symbol":"FB"}`)
	mr.Set("quote:RHT", `{"symbol":"RHT"}`)

	snaps, err := store.GetSnapshots(context.Background(), []string{"FB", "AMZN", "RHT"})
	if err != nil {
		t.Fatalf("GetSnapshots: %v", err)
	}
	if len(snaps) != 2 || snaps[0] != `{"symbol":"FB"}` || snaps[1] != `{"symbol":"RHT"}` {
		t.Errorf("Unexpected snapshots: %v", snaps)
	}
}

func TestRedisStore_RunPubSub_StripsChannelPrefix(t *testing.T) {
	store, mr := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.SubscribeToFeed(ctx, "NFLX"); err != nil {
		t.Fatalf("SubscribeToFeed: %v", err)
	}

	got := make(chan [2]string, 1)
	go store.RunPubSub(ctx, func(symbol, payload string) {
		got <- [2]string{symbol, payload}
	})

	deadline := time.After(2 * time.Second)
	for {
		// the subscription is confirmed asynchronously, retry until it lands
		if mr.Publish("quotes.NFLX", `{"symbol":"NFLX"}`) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("subscription never registered")
		case <-time.After(20 * time.Millisecond):
		}
	}

	select {
	case msg := <-got:
		if msg[0] != "NFLX" || msg[1] != `{"symbol":"NFLX"}` {
			t.Errorf("Unexpected message: %v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("No message delivered")
	}
}
