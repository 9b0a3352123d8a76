package oracle

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/duskrelay/edgecore/internal/core"
)

// wireQuote is Quote's badger-cache wire shape: big.Float has no JSON
// marshaler, so price is carried as a decimal string at full precision.
type wireQuote struct {
	Chain      core.ChainId `json:"chain"`
	Address    string       `json:"address"`
	Decimals   uint8        `json:"decimals"`
	Symbol     string       `json:"symbol"`
	PriceUSD   string       `json:"price_usd"`
	Confidence float64      `json:"confidence"`
	Sources    []string     `json:"sources"`
	AsOfUnix   int64        `json:"as_of_unix"`
}

func encodeQuote(q Quote) ([]byte, error) {
	w := wireQuote{
		Chain:      q.Token.Chain,
		Address:    q.Token.Address,
		Decimals:   q.Token.Decimals,
		Symbol:     q.Token.Symbol,
		PriceUSD:   q.PriceUSD.Text('f', -1),
		Confidence: q.Confidence,
		Sources:    q.Sources,
		AsOfUnix:   q.AsOf.Unix(),
	}
	return json.Marshal(w)
}

func decodeQuote(raw []byte, out *Quote) error {
	var w wireQuote
	if err := json.Unmarshal(raw, &w); err != nil {
		return fmt.Errorf("oracle: decode cached quote: %w", err)
	}
	price, ok := new(big.Float).SetString(w.PriceUSD)
	if !ok {
		return fmt.Errorf("oracle: cached price %q is not a valid decimal", w.PriceUSD)
	}
	token, err := core.NewTokenRef(w.Chain, w.Address, w.Decimals, w.Symbol)
	if err != nil {
		return fmt.Errorf("oracle: cached token ref invalid: %w", err)
	}
	out.Token = token
	out.PriceUSD = price
	out.Confidence = w.Confidence
	out.Sources = w.Sources
	out.AsOf = time.Unix(w.AsOfUnix, 0)
	return nil
}
