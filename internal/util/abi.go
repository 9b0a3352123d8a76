package util

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// LoadABI reads a plain ABI JSON file (a bare array of the kind solc or
// abigen emit) and parses it.
func LoadABI(path string) (abi.ABI, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("util: read abi file %s: %w", path, err)
	}
	parsed, err := abi.JSON(strings.NewReader(string(raw)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("util: parse abi file %s: %w", path, err)
	}
	return parsed, nil
}

// hardhatArtifact is the subset of a Hardhat compilation artifact this
// loader needs: the top-level "abi" key, ignoring bytecode/sourceMap/etc.
type hardhatArtifact struct {
	ABI json.RawMessage `json:"abi"`
}

// LoadABIFromHardhatArtifact reads a full Hardhat artifact JSON file (as
// produced under artifacts/contracts/**/*.json) and extracts its ABI.
func LoadABIFromHardhatArtifact(path string) (abi.ABI, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("util: read hardhat artifact %s: %w", path, err)
	}
	var artifact hardhatArtifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return abi.ABI{}, fmt.Errorf("util: parse hardhat artifact %s: %w", path, err)
	}
	if len(artifact.ABI) == 0 {
		return abi.ABI{}, fmt.Errorf("util: hardhat artifact %s has no abi field", path)
	}
	parsed, err := abi.JSON(strings.NewReader(string(artifact.ABI)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("util: parse abi from hardhat artifact %s: %w", path, err)
	}
	return parsed, nil
}

// Hex2Bytes decodes a hex string into bytes, tolerating an optional "0x"
// prefix. Malformed input returns an empty slice rather than panicking,
// since this is fed transaction calldata from untrusted mempool sources.
func Hex2Bytes(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
