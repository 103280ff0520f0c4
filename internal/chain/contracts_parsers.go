package chain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// =============================================================================
// Result Parsers
// =============================================================================

// ErrEmptyResult is returned when a contract call returns no data, which is
// what nodes answer for calls to addresses without code.
var ErrEmptyResult = errors.New("empty call result")

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func parseHexString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("expected hex string: %w", err)
	}
	return s, nil
}

func parseQuantity(raw json.RawMessage) (*big.Int, error) {
	s, err := parseHexString(raw)
	if err != nil {
		return nil, err
	}
	n, err := hexutil.DecodeBig(s)
	if err != nil {
		return nil, fmt.Errorf("decode quantity %q: %w", s, err)
	}
	return n, nil
}

func parseQuantityUint(raw json.RawMessage) (uint64, error) {
	s, err := parseHexString(raw)
	if err != nil {
		return 0, err
	}
	n, err := hexutil.DecodeUint64(s)
	if err != nil {
		return 0, fmt.Errorf("decode quantity %q: %w", s, err)
	}
	return n, nil
}

// ParseData decodes a hex data result. "0x" yields ErrEmptyResult.
func ParseData(raw json.RawMessage) ([]byte, error) {
	s, err := parseHexString(raw)
	if err != nil {
		return nil, err
	}
	data, err := hexutil.Decode(s)
	if err != nil {
		if errors.Is(err, hexutil.ErrEmptyString) {
			return nil, ErrEmptyResult
		}
		return nil, fmt.Errorf("decode data %q: %w", s, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyResult
	}
	return data, nil
}
