package watcher

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/decred/slog"

	"github.com/Pradise2/FlipIt/chain"
)

type fakeStatusReader struct {
	mu     sync.Mutex
	status map[string]*chain.BetStatus
	err    error
	calls  int
}

func (f *fakeStatusReader) BetStatus(_ context.Context, id *big.Int) (*chain.BetStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	st, ok := f.status[id.String()]
	if !ok {
		return &chain.BetStatus{}, nil
	}
	return st, nil
}

func (f *fakeStatusReader) set(id *big.Int, st *chain.BetStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == nil {
		f.status = make(map[string]*chain.BetStatus)
	}
	f.status[id.String()] = st
}

func TestPollDeliversTerminalOnce(t *testing.T) {
	reader := &fakeStatusReader{}
	w := New(slog.Disabled, reader, time.Millisecond)

	id := big.NewInt(42)
	ch, unsub := w.Subscribe(id)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	defer w.Stop()

	// Not fulfilled yet: nothing should arrive.
	select {
	case f := <-ch:
		t.Fatalf("unexpected fulfillment before settlement: %+v", f)
	case <-time.After(20 * time.Millisecond):
	}

	reader.set(id, &chain.BetStatus{Fulfilled: true, Won: true, Payout: big.NewInt(20)})

	select {
	case f := <-ch:
		if f.RequestID.Cmp(id) != 0 {
			t.Fatalf("fulfillment for wrong request: %s", f.RequestID)
		}
		if !f.Won || f.Payout.Cmp(big.NewInt(20)) != 0 {
			t.Fatalf("bad fulfillment: %+v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fulfillment")
	}

	// Terminal: the subscription must be gone and nothing may fire again.
	if w.Watching(id) {
		t.Fatal("subscription should be dropped after settlement")
	}
	select {
	case f := <-ch:
		t.Fatalf("second fulfillment delivered: %+v", f)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestDeliverPushBacking(t *testing.T) {
	w := New(slog.Disabled, &fakeStatusReader{}, time.Hour)

	id := big.NewInt(7)
	ch, unsub := w.Subscribe(id)
	defer unsub()

	w.Deliver(Fulfillment{RequestID: id, Won: false, Payout: big.NewInt(0)})

	select {
	case f := <-ch:
		if f.Won {
			t.Fatalf("expected a loss, got %+v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("push delivery did not arrive")
	}
	if w.Watching(id) {
		t.Fatal("subscription should be dropped after push delivery")
	}
}

func TestDeliverUnwatchedIsNoop(t *testing.T) {
	w := New(slog.Disabled, &fakeStatusReader{}, time.Hour)
	w.Deliver(Fulfillment{RequestID: big.NewInt(99)})
	w.Deliver(Fulfillment{}) // nil id
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	reader := &fakeStatusReader{}
	w := New(slog.Disabled, reader, time.Millisecond)

	id := big.NewInt(5)
	ch, unsub := w.Subscribe(id)
	unsub()

	if w.Watching(id) {
		t.Fatal("still watching after unsubscribe")
	}

	reader.set(id, &chain.BetStatus{Fulfilled: true, Payout: big.NewInt(1)})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	defer w.Stop()

	select {
	case f := <-ch:
		t.Fatalf("delivery after unsubscribe: %+v", f)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestReaderErrorIsNotNegative(t *testing.T) {
	reader := &fakeStatusReader{err: context.DeadlineExceeded}
	w := New(slog.Disabled, reader, time.Millisecond)

	id := big.NewInt(3)
	ch, unsub := w.Subscribe(id)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	defer w.Stop()

	// Errors must leave the subscription pending, not settle or drop it.
	select {
	case f := <-ch:
		t.Fatalf("fulfillment from a failing reader: %+v", f)
	case <-time.After(30 * time.Millisecond):
	}
	if !w.Watching(id) {
		t.Fatal("subscription dropped on reader error")
	}
}
