// Package gas tracks recent gas-cost samples per chain and predicts a
// forward-looking fee to submit at, trading off inclusion speed against
// overpaying.
package gas

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/duskrelay/edgecore/internal/core"
)

// Sample is one observed gas data point: a mined transaction's actual cost,
// or a polled network fee suggestion.
type Sample struct {
	Chain     core.ChainId
	GasPrice  *big.Int // wei or lamports-equivalent
	Timestamp time.Time
}

// SpeedTarget is the inclusion-speed tier optimize() is asked to solve for.
type SpeedTarget string

const (
	SpeedSlow   SpeedTarget = "slow"   // tolerate several blocks of delay
	SpeedNormal SpeedTarget = "normal" // next 1-2 blocks
	SpeedFast   SpeedTarget = "fast"   // current block, pay a premium
)

const ringCapacity = 256

// Tracker maintains a fixed-capacity ring buffer of recent Samples per chain
// and derives current/predicted/optimized gas prices from it.
type Tracker struct {
	mu     sync.Mutex
	ring   map[core.ChainId][]Sample
	cursor map[core.ChainId]int
}

// New builds an empty Tracker.
func New() *Tracker {
	return &Tracker{
		ring:   make(map[core.ChainId][]Sample),
		cursor: make(map[core.ChainId]int),
	}
}

// Record appends a sample to chain's ring buffer, overwriting the oldest
// entry once ringCapacity is reached.
func (t *Tracker) Record(s Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf := t.ring[s.Chain]
	if len(buf) < ringCapacity {
		t.ring[s.Chain] = append(buf, s)
		return
	}
	idx := t.cursor[s.Chain] % ringCapacity
	buf[idx] = s
	t.cursor[s.Chain] = idx + 1
}

// Current returns the most recently recorded sample's gas price for chain.
func (t *Tracker) Current(chain core.ChainId) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf := t.ring[chain]
	if len(buf) == 0 {
		return nil, fmt.Errorf("gas: no samples recorded for %s", chain)
	}
	newest := (t.cursor[chain] + len(buf) - 1) % len(buf)
	return buf[newest].GasPrice, nil
}

// Predict fits a short-horizon linear trend over the ring buffer (oldest to
// newest) and projects it horizon samples forward, clamped to never predict
// below the most recent observed price — a naive linear fit can project a
// falling trend negative, which is never a sane fee to submit at.
func (t *Tracker) Predict(chain core.ChainId, horizon int) (*big.Int, error) {
	t.mu.Lock()
	src := t.ring[chain]
	oldest := 0
	if len(src) > 0 {
		oldest = t.cursor[chain] % len(src)
	}
	buf := append(append([]Sample(nil), src[oldest:]...), src[:oldest]...)
	t.mu.Unlock()

	if len(buf) < 2 {
		return t.Current(chain)
	}

	xs := make([]float64, len(buf))
	ys := make([]float64, len(buf))
	for i, s := range buf {
		xs[i] = float64(i)
		f, _ := new(big.Float).SetInt(s.GasPrice).Float64()
		ys[i] = f
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	predictedX := float64(len(buf)-1) + float64(horizon)
	predicted := alpha + beta*predictedX

	latest := ys[len(ys)-1]
	if predicted < latest {
		predicted = latest
	}

	result := new(big.Int)
	big.NewFloat(predicted).Int(result)
	return result, nil
}

// Optimize returns a gas price tuned to target, derived from Current as a
// floor and a percentage premium per speed tier.
func (t *Tracker) Optimize(chain core.ChainId, target SpeedTarget) (*big.Int, error) {
	current, err := t.Current(chain)
	if err != nil {
		return nil, err
	}

	var premiumPct int64
	switch target {
	case SpeedSlow:
		premiumPct = 0
	case SpeedNormal:
		premiumPct = 10
	case SpeedFast:
		premiumPct = 35
	default:
		return nil, fmt.Errorf("gas: unknown speed target %q", target)
	}

	premium := new(big.Int).Mul(current, big.NewInt(premiumPct))
	premium.Div(premium, big.NewInt(100))
	return new(big.Int).Add(current, premium), nil
}
