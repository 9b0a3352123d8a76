package relay

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/duskrelay/edgecore/internal/core"
)

// chainIDByNetwork maps edgecore's ChainId to the EIP-155 chain id EVM
// signing needs. Solana legs never reach this map (signLeg short-circuits
// on chain family first).
var chainIDByNetwork = map[core.ChainId]int64{
	core.ChainEthereum: 1,
	core.ChainBSC:      56,
}

// signLeg builds and signs a raw EVM legacy transaction for leg at
// gasPrice. Solana legs are expected to already carry a base58/base64
// encoded signed transaction in SignedTxHex by the time Sign is called
// (Solana uses ed25519 over the whole message, not EIP-155, and that
// construction happens where the leg is built, not here).
func signLeg(chainID core.ChainId, leg core.BundleLeg, gasPrice *big.Int, key *ecdsa.PrivateKey) (string, error) {
	if chainID.Family() != core.FamilyEVM {
		return leg.SignedTxHex, nil
	}
	if key == nil {
		return "", fmt.Errorf("relay: no signer configured for EVM leg")
	}
	eip155ID, ok := chainIDByNetwork[chainID]
	if !ok {
		return "", fmt.Errorf("relay: no EIP-155 chain id configured for %s", chainID)
	}

	value := leg.Value
	if value == nil {
		value = big.NewInt(0)
	}

	// Mirrors pkg/contractclient.Send's LegacyTx+LatestSignerForChainID
	// pattern: this path signs a pre-built leg whose To/Data/Value/
	// GasLimit/Nonce are already final (the Bundle Builder assigned them),
	// rather than going through a ContractClient's ABI-pack step.
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    leg.Nonce,
		To:       addressPtr(leg.To),
		Value:    value,
		Gas:      leg.GasLimit,
		GasPrice: gasPrice,
		Data:     leg.Data,
	})

	signer := types.LatestSignerForChainID(big.NewInt(eip155ID))
	signed, err := types.SignTx(tx, signer, key)
	if err != nil {
		return "", fmt.Errorf("relay: sign tx: %w", err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("relay: marshal signed tx: %w", err)
	}
	return hexutil.Encode(raw), nil
}

func addressPtr(addr string) *common.Address {
	if addr == "" {
		return nil
	}
	a := common.HexToAddress(addr)
	return &a
}

// flashbotsSignatureHeader builds the X-Flashbots-Signature header value
// Flashbots-style relays require: "<searcher address>:<hex signature>" over
// keccak256(body), signed with the searcher's reputation key — the
// standard scheme every Flashbots-compatible block builder expects.
func flashbotsSignatureHeader(body []byte, key *ecdsa.PrivateKey) (string, error) {
	hash := crypto.Keccak256Hash([]byte(hexutil.Encode(crypto.Keccak256(body))))
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return "", err
	}
	address := crypto.PubkeyToAddress(key.PublicKey)
	return address.Hex() + ":" + hexutil.Encode(sig), nil
}
