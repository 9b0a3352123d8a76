package core

import (
	"fmt"
	"strings"
)

// TokenRef identifies a token by (chain, address). Address is stored in its
// bit-exact canonical form: lowercase hex for EVM chains, base58 for Solana.
// Two TokenRefs are the same token iff Chain and Address are equal.
type TokenRef struct {
	Chain        ChainId
	Address      string
	Decimals     uint8
	Symbol       string // advisory, not part of identity
	VerifiedFlag bool   // advisory
}

// NewTokenRef constructs a TokenRef, canonicalizing Address and validating
// Decimals is in the spec-mandated 0-36 range.
func NewTokenRef(chain ChainId, address string, decimals uint8, symbol string) (TokenRef, error) {
	if err := chain.AssertValid(); err != nil {
		return TokenRef{}, err
	}
	if decimals > 36 {
		return TokenRef{}, fmt.Errorf("core: token decimals %d out of range [0,36]", decimals)
	}
	return TokenRef{
		Chain:    chain,
		Address:  canonicalAddress(chain, address),
		Decimals: decimals,
		Symbol:   symbol,
	}, nil
}

func canonicalAddress(chain ChainId, address string) string {
	if chain.Family() == FamilySolana {
		// Solana addresses are already base58; canonical form is verbatim
		// (base58 has no case-folding ambiguity the way hex does).
		return address
	}
	return strings.ToLower(address)
}

// Key returns the identity key used for map lookups across Pool Registry,
// Route Engine graph nodes, and Price Oracle cache entries.
func (t TokenRef) Key() string {
	return string(t.Chain) + ":" + t.Address
}

func (t TokenRef) String() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Key()
}
