package watcher

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/Pradise2/FlipIt/chain"
)

// Fulfillment is the terminal notification for a watched request identifier.
type Fulfillment struct {
	RequestID  *big.Int
	Won        bool
	RolledFace bool
	Payout     *big.Int
	At         time.Time
}

// BetStatusReader is the pull backing: a single read that reports whether the
// randomness request behind a wager has been fulfilled.
type BetStatusReader interface {
	BetStatus(ctx context.Context, requestID *big.Int) (*chain.BetStatus, error)
}

// Watcher observes wager fulfillment for every request identifier that
// currently has a subscriber. Two backing strategies feed it: a ticker that
// polls BetStatus, and Deliver, which accepts fulfillments decoded from a log
// subscription. Either way each identifier gets at most one terminal
// notification, after which its subscriptions are dropped.
type Watcher struct {
	log      slog.Logger
	reader   BetStatusReader
	interval time.Duration

	mu   sync.RWMutex
	subs map[string]map[chan Fulfillment]struct{} // requestID (decimal) -> set(chan)
	ids  map[string]*big.Int

	quit chan struct{}
}

const defaultInterval = 5 * time.Second

func New(log slog.Logger, reader BetStatusReader, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Watcher{
		log:      log,
		reader:   reader,
		interval: interval,
		subs:     make(map[string]map[chan Fulfillment]struct{}),
		ids:      make(map[string]*big.Int),
		quit:     make(chan struct{}),
	}
}

func (w *Watcher) Stop() { close(w.quit) }

// Run drives the polling backing until ctx is cancelled or Stop is called.
func (w *Watcher) Run(ctx context.Context) {
	w.log.Infof("watcher: started")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	defer w.log.Infof("watcher: stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.quit:
			return
		case <-t.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *Watcher) pollOnce(ctx context.Context) {
	// Snapshot watched identifiers; RPCs run without holding the lock.
	w.mu.RLock()
	if len(w.subs) == 0 {
		w.mu.RUnlock()
		return
	}
	ids := make([]*big.Int, 0, len(w.ids))
	for _, id := range w.ids {
		ids = append(ids, id)
	}
	w.mu.RUnlock()

	for _, id := range ids {
		st, err := w.reader.BetStatus(ctx, id)
		if err != nil {
			// Unknown, not negative: keep waiting.
			w.log.Debugf("watcher: BetStatus(%s) failed: %v", id, err)
			continue
		}
		if !st.Fulfilled {
			continue
		}
		w.settle(Fulfillment{
			RequestID:  id,
			Won:        st.Won,
			RolledFace: st.RolledFace,
			Payout:     st.Payout,
			At:         time.Now(),
		})
	}
}

// Deliver is the push backing: feeds an externally observed fulfillment (a
// decoded BetResult log) into the same terminal-notification contract.
func (w *Watcher) Deliver(f Fulfillment) {
	if f.RequestID == nil {
		return
	}
	if f.At.IsZero() {
		f.At = time.Now()
	}
	w.settle(f)
}

// settle broadcasts the terminal notification and drops every subscription
// for the identifier so nothing fires twice.
func (w *Watcher) settle(f Fulfillment) {
	k := f.RequestID.String()

	w.mu.Lock()
	set := w.subs[k]
	if set == nil {
		w.mu.Unlock()
		return
	}
	chs := make([]chan Fulfillment, 0, len(set))
	for ch := range set {
		chs = append(chs, ch)
	}
	delete(w.subs, k)
	delete(w.ids, k)
	w.mu.Unlock()

	w.log.Infof("watcher: request %s fulfilled (won=%t payout=%s)", k, f.Won, f.Payout)
	for _, ch := range chs {
		select {
		case ch <- f:
		default:
			// Drop if receiver is slow.
		}
	}
}

// Subscribe adds a listener for requestID and returns the channel plus an
// unsubscribe func. The channel sees at most one Fulfillment; cancel via the
// returned func when tearing down before settlement.
func (w *Watcher) Subscribe(requestID *big.Int) (<-chan Fulfillment, func()) {
	k := requestID.String()
	ch := make(chan Fulfillment, 1)

	w.mu.Lock()
	if _, ok := w.subs[k]; !ok {
		w.subs[k] = make(map[chan Fulfillment]struct{})
		w.ids[k] = new(big.Int).Set(requestID)
	}
	w.subs[k][ch] = struct{}{}
	n := len(w.subs[k])
	w.mu.Unlock()
	w.log.Infof("watcher: subscribed request=%s (subs=%d)", k, n)

	unsub := func() {
		w.mu.Lock()
		if set, ok := w.subs[k]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(w.subs, k)
				delete(w.ids, k)
			}
		}
		w.mu.Unlock()
		w.log.Infof("watcher: unsubscribed request=%s", k)
		// Do not close(ch): the producer may still try to send; receivers
		// stop via context instead.
	}
	return ch, unsub
}

// Watching reports whether any subscriber remains for requestID.
func (w *Watcher) Watching(requestID *big.Int) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.subs[requestID.String()]
	return ok
}
