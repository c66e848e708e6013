package indexer

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// The BridgeOut precompile emits withdrawal intents with ABI-encoded
// (uint256 amount, bytes destination) event data.

const wordSize = 32

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

func parseHexUint64(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, fmt.Errorf("empty hex quantity")
	}
	var n uint64
	if _, err := fmt.Sscanf(s, "%x", &n); err != nil {
		return 0, fmt.Errorf("parse hex quantity %q: %w", s, err)
	}
	return n, nil
}

type withdrawalIntent struct {
	Amount      string // decimal wei
	Destination string // 0x-prefixed hex descriptor
}

// decodeWithdrawalIntent decodes the event data of a withdrawal intent log.
func decodeWithdrawalIntent(data string) (withdrawalIntent, error) {
	raw, err := decodeHex(data)
	if err != nil {
		return withdrawalIntent{}, fmt.Errorf("decode log data: %w", err)
	}
	if len(raw) < 2*wordSize {
		return withdrawalIntent{}, fmt.Errorf("log data too short: %d bytes", len(raw))
	}

	amount := new(big.Int).SetBytes(raw[:wordSize])

	// Compare against the remaining space before any addition: offset and
	// length words near 2^64 must not wrap the bounds checks.
	dataLen := uint64(len(raw))

	offset := new(big.Int).SetBytes(raw[wordSize : 2*wordSize])
	if !offset.IsUint64() || offset.Uint64() > dataLen-wordSize {
		return withdrawalIntent{}, fmt.Errorf("destination offset out of range")
	}
	start := offset.Uint64()

	length := new(big.Int).SetBytes(raw[start : start+wordSize])
	if !length.IsUint64() || length.Uint64() > dataLen-wordSize-start {
		return withdrawalIntent{}, fmt.Errorf("destination length out of range")
	}
	dest := raw[start+wordSize : start+wordSize+length.Uint64()]

	return withdrawalIntent{
		Amount:      amount.String(),
		Destination: "0x" + hex.EncodeToString(dest),
	}, nil
}
