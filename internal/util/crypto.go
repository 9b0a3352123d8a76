package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Encrypt seals plaintext with AES-256-GCM under key, prepending the random
// nonce to the ciphertext so Decrypt needs nothing but the key and the blob.
// Used by internal/store's Encryptor to seal route snapshots at rest, and
// (through Decrypt) by cmd/edgecore to open a keystore-sealed signer key;
// key management (sourcing, rotation) lives one layer up, never here.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("util: new aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("util: new gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("util: read nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt: it expects ciphertext to be nonce||sealed as
// Encrypt produces.
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("util: new aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("util: new gcm: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("util: ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("util: gcm open: %w", err)
	}
	return plain, nil
}

// ExtractGasCost returns gasUsed * effectiveGasPrice in wei, the figure the
// Gas Tracker and ExecutionRecord.GasNativeSpent both want out of a mined
// EVM receipt.
func ExtractGasCost(receipt *gethtypes.Receipt) *big.Int {
	if receipt == nil || receipt.EffectiveGasPrice == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), receipt.EffectiveGasPrice)
}
