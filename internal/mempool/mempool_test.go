package mempool

import (
	"container/heap"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/duskrelay/edgecore/internal/chain"
)

func TestFilter_AdmitsWithinAllowlist(t *testing.T) {
	f := Filter{RouterAllowlist: map[string]bool{"0xrouter": true}}
	assert.True(t, f.admits(chain.PendingTx{To: "0xrouter"}))
	assert.False(t, f.admits(chain.PendingTx{To: "0xother"}))
}

func TestFilter_RejectsBelowMinValue(t *testing.T) {
	f := Filter{MinValueWei: big.NewInt(1000)}
	assert.False(t, f.admits(chain.PendingTx{Value: big.NewInt(500)}))
	assert.True(t, f.admits(chain.PendingTx{Value: big.NewInt(1500)}))
}

func TestFilter_NoRestrictionsAdmitsEverything(t *testing.T) {
	f := Filter{}
	assert.True(t, f.admits(chain.PendingTx{From: "anyone", To: "anywhere"}))
}

func TestPriorityQueue_PopsLowestFeeFirst(t *testing.T) {
	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &priorityItem{tx: chain.PendingTx{Hash: "high", GasPrice: big.NewInt(100)}})
	heap.Push(pq, &priorityItem{tx: chain.PendingTx{Hash: "low", GasPrice: big.NewInt(1)}})
	heap.Push(pq, &priorityItem{tx: chain.PendingTx{Hash: "mid", GasPrice: big.NewInt(50)}})

	popped := heap.Pop(pq).(*priorityItem)
	assert.Equal(t, "low", popped.tx.Hash)
}

func TestMonitor_AdmitDedupesRepeatedHash(t *testing.T) {
	m := NewMonitor(nil, Filter{})
	tx := chain.PendingTx{Chain: "ethereum", Hash: "0xabc", GasPrice: big.NewInt(1)}
	m.admit(tx)
	m.admit(tx)

	assert.Len(t, m.Out, 1)
}
