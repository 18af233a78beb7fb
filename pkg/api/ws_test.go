package api

import (
	"context"
	"testing"
	"time"
)

// A client whose send buffer is full gets dropped by the broadcast loop
// without panicking and without closing its channel twice.
func TestHubDropsSlowClientOnBroadcast(t *testing.T) {
	hub := NewWSHub(&Server{startTime: time.Now()})

	fast := &WSClient{send: make(chan []byte, 4), hub: hub}
	slow := &WSClient{send: make(chan []byte), hub: hub} // no reader
	hub.mu.Lock()
	hub.clients[fast] = true
	hub.clients[slow] = true
	hub.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	hub.Broadcast("bid_accepted", map[string]interface{}{"item_id": int64(1)})

	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.RLock()
		_, present := hub.clients[slow]
		hub.mu.RUnlock()
		if !present {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("slow client was not dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case frame, ok := <-fast.send:
		if !ok || len(frame) == 0 {
			t.Fatalf("fast client frame = %q, ok = %v", frame, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("fast client did not receive the broadcast")
	}

	// The dropped client's channel is closed exactly once.
	select {
	case _, ok := <-slow.send:
		if ok {
			t.Fatal("expected slow client channel to be closed")
		}
	default:
		t.Fatal("expected slow client channel to be closed")
	}

	// Unregistering an already-dropped client is a no-op, not a second close.
	hub.unregister <- slow

	hub.Broadcast("bid_accepted", map[string]interface{}{"item_id": int64(2)})
	select {
	case frame, ok := <-fast.send:
		if !ok || len(frame) == 0 {
			t.Fatalf("fast client frame = %q, ok = %v", frame, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("fast client did not receive the second broadcast")
	}
}
