package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeLinkStore struct {
	mu    sync.Mutex
	links [][2]int64
}

func (f *fakeLinkStore) LinkComponentVariable(_ context.Context, componentID, variableID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, [2]int64{componentID, variableID})
	return nil
}

func (f *fakeLinkStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.links)
}

func TestLinkQueueDrains(t *testing.T) {
	store := &fakeLinkStore{}
	queue := NewLinkQueue(store, 8, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go queue.Start(ctx)

	queue.EnqueueLink(1, 10)
	queue.EnqueueLink(2, 20)

	deadline := time.Now().Add(2 * time.Second)
	for store.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("queue did not drain, wrote %d links", store.count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLinkQueueDropsWhenFull(t *testing.T) {
	store := &fakeLinkStore{}
	queue := NewLinkQueue(store, 1, zap.NewNop())

	// No worker running: the second enqueue must drop, not block.
	done := make(chan struct{})
	go func() {
		queue.EnqueueLink(1, 10)
		queue.EnqueueLink(2, 20)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on full buffer")
	}
}
