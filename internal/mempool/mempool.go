// Package mempool subscribes to pending transactions per chain, applies
// admission filters, and hands surviving transactions to the Transaction
// Decoder through a bounded channel without blocking the feed. When the
// channel is full the incoming transaction is dropped; transactions already
// queued on the channel are never evicted to make room for it.
package mempool

import (
	"container/heap"
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/duskrelay/edgecore/internal/chain"
)

// Filter decides whether a pending transaction is worth decoding at all,
// before the (comparatively expensive) Transaction Decoder ever sees it.
type Filter struct {
	TargetWallets   map[string]bool // empty means "no wallet restriction"
	RouterAllowlist map[string]bool
	MinValueWei     *big.Int // nil means "no minimum"
}

func (f Filter) admits(tx chain.PendingTx) bool {
	if len(f.TargetWallets) > 0 && !f.TargetWallets[tx.From] {
		return false
	}
	if len(f.RouterAllowlist) > 0 && !f.RouterAllowlist[tx.To] {
		return false
	}
	if f.MinValueWei != nil && tx.Value != nil && tx.Value.Cmp(f.MinValueWei) < 0 {
		return false
	}
	return true
}

// dedupeWindow is how long a (chain, tx_hash) pair is remembered to reject
// duplicate deliveries from a provider that redelivers on reconnect.
const dedupeWindow = 2 * time.Minute

// queueCapacity bounds the per-chain admitted-transaction channel (Out) and
// the eviction heap evictLowestAndAdmit keeps beside it.
const queueCapacity = 2048

// priorityItem is one entry in the per-chain eviction heap.
type priorityItem struct {
	tx    chain.PendingTx
	index int
}

// priorityQueue is a min-heap on priority fee: Pop always removes the
// lowest-priority-fee transaction, which is the entry evictLowestAndAdmit
// discards once the heap grows past queueCapacity.
type priorityQueue []*priorityItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].tx.GasPrice.Cmp(pq[j].tx.GasPrice) < 0
}
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}
func (pq *priorityQueue) Push(x any) {
	item := x.(*priorityItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

// Monitor fans one Adapter's pending-transaction feed through a Filter and
// a bounded channel, emitting admitted transactions on Out.
type Monitor struct {
	adapter chain.Adapter
	filter  Filter

	mu    sync.Mutex
	queue priorityQueue
	seen  map[string]time.Time

	Out chan chain.PendingTx
}

// NewMonitor builds a Monitor for one chain's Adapter.
func NewMonitor(adapter chain.Adapter, filter Filter) *Monitor {
	return &Monitor{
		adapter: adapter,
		filter:  filter,
		seen:    make(map[string]time.Time),
		Out:     make(chan chain.PendingTx, queueCapacity),
	}
}

// Run subscribes to the adapter's pending-tx feed and admits transactions
// until ctx is cancelled. One Monitor owns exactly one chain's feed, mirroring
// spec.md §5's single-producer-per-chain concurrency model. A dropped
// subscription (SubscribePendingTxs erroring, or the feed channel closing)
// is not fatal: Run resubscribes behind a jittered exponential backoff
// (spec.md §4.1), so one chain's transient disconnect never forces the
// caller to tear down every other chain's monitor.
func (m *Monitor) Run(ctx context.Context) error {
	backoff := chain.Backoff{}
	attempt := 0
	for {
		feed, err := m.adapter.SubscribePendingTxs(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var adapterErr *chain.AdapterError
			if errors.As(err, &adapterErr) && adapterErr.Class == chain.ClassPermanent {
				return err // spec.md §4.1: permanent failures propagate, never retry
			}
			if !m.waitBackoff(ctx, backoff.Duration(attempt)) {
				return ctx.Err()
			}
			attempt++
			continue
		}

		// A fresh subscription resets the backoff clock: this connection
		// worked, so the next drop starts counting from zero again, not
		// from wherever the previous run of failures left off.
		attempt = 0
		if m.drain(ctx, feed) {
			return ctx.Err()
		}
		// feed closed without ctx being cancelled: the subscription was
		// dropped out from under us (node restart, provider disconnect).
		// Resubscribe; the resumed feed is this chain's resync checkpoint.
		if !m.waitBackoff(ctx, backoff.Duration(attempt)) {
			return ctx.Err()
		}
		attempt++
	}
}

// waitBackoff sleeps for d or returns false if ctx is cancelled first.
func (m *Monitor) waitBackoff(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// drain reads admitted transactions off feed until ctx is cancelled (true)
// or feed itself closes, signalling a dropped subscription the caller
// should resubscribe to (false).
func (m *Monitor) drain(ctx context.Context, feed <-chan chain.PendingTx) bool {
	cleanupTicker := time.NewTicker(dedupeWindow)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return true
		case <-cleanupTicker.C:
			m.evictExpiredDedupe()
		case tx, ok := <-feed:
			if !ok {
				return false
			}
			m.admit(tx)
		}
	}
}

func (m *Monitor) admit(tx chain.PendingTx) {
	m.mu.Lock()
	key := string(tx.Chain) + ":" + tx.Hash
	if _, dup := m.seen[key]; dup {
		m.mu.Unlock()
		return
	}
	m.seen[key] = time.Now()

	if !m.filter.admits(tx) {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	select {
	case m.Out <- tx:
	default:
		m.evictLowestAndAdmit(tx)
	}
}

// evictLowestAndAdmit runs when Out is full. It records tx in the eviction
// heap, popping the heap's lowest-priority-fee entry once the heap holds
// more than queueCapacity, then retries a non-blocking send of tx. The heap
// is never drained into Out and nothing already queued on Out is removed,
// so if Out is still full, tx itself is dropped.
func (m *Monitor) evictLowestAndAdmit(tx chain.PendingTx) {
	m.mu.Lock()
	heap.Push(&m.queue, &priorityItem{tx: tx})
	if m.queue.Len() > queueCapacity {
		heap.Pop(&m.queue)
	}
	m.mu.Unlock()

	select {
	case m.Out <- tx:
	default:
	}
}

func (m *Monitor) evictExpiredDedupe() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-dedupeWindow)
	for k, t := range m.seen {
		if t.Before(cutoff) {
			delete(m.seen, k)
		}
	}
}

