package route

import (
	"encoding/json"
	"fmt"

	"github.com/duskrelay/edgecore/internal/core"
)

// wireRoute is the JSON wire format for a precomputed core.Route, used only
// to persist/retrieve entries from the badger snapshot store.
type wireRoute struct {
	Hops               []wireToken    `json:"hops"`
	Protocols          []core.Protocol `json:"protocols"`
	PoolIDs            []string       `json:"pool_ids"`
	EstimatedGasUnits  uint64         `json:"estimated_gas_units"`
	EstimatedProfitBps int64          `json:"estimated_profit_bps"`
	Reliability        float64        `json:"reliability"`
	MinWei             string         `json:"min_wei"`
	MaxWei             string         `json:"max_wei"`
}

type wireToken struct {
	Chain    core.ChainId `json:"chain"`
	Address  string       `json:"address"`
	Decimals uint8        `json:"decimals"`
	Symbol   string       `json:"symbol"`
}

func encodeRoutes(routes []core.Route) ([]byte, error) {
	wire := make([]wireRoute, len(routes))
	for i, r := range routes {
		hops := make([]wireToken, len(r.Hops))
		for j, h := range r.Hops {
			hops[j] = wireToken{Chain: h.Chain, Address: h.Address, Decimals: h.Decimals, Symbol: h.Symbol}
		}
		wire[i] = wireRoute{
			Hops:               hops,
			Protocols:          r.Protocols,
			PoolIDs:            r.PoolIDs,
			EstimatedGasUnits:  r.EstimatedGasUnits,
			EstimatedProfitBps: r.EstimatedProfitBps,
			Reliability:        r.Reliability,
			MinWei:             r.AmountScaleBand.MinWei,
			MaxWei:             r.AmountScaleBand.MaxWei,
		}
	}
	return json.Marshal(wire)
}

func decodeRoutes(raw []byte) ([]core.Route, error) {
	var wire []wireRoute
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("route: decode snapshot entry: %w", err)
	}
	routes := make([]core.Route, len(wire))
	for i, w := range wire {
		hops := make([]core.TokenRef, len(w.Hops))
		for j, h := range w.Hops {
			tok, err := core.NewTokenRef(h.Chain, h.Address, h.Decimals, h.Symbol)
			if err != nil {
				return nil, fmt.Errorf("route: decode snapshot token: %w", err)
			}
			hops[j] = tok
		}
		routes[i] = core.Route{
			Hops:               hops,
			Protocols:          w.Protocols,
			PoolIDs:            w.PoolIDs,
			EstimatedGasUnits:  w.EstimatedGasUnits,
			EstimatedProfitBps: w.EstimatedProfitBps,
			Reliability:        w.Reliability,
			AmountScaleBand:    core.AmountScaleBand{MinWei: w.MinWei, MaxWei: w.MaxWei},
		}
	}
	return routes, nil
}

func pairKey(tokenIn, tokenOut core.TokenRef) []byte {
	return []byte(tokenIn.Key() + "->" + tokenOut.Key())
}
