// Package format turns raw on-chain integers into display strings.
package format

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultTruncateWidth is the number of hex characters kept on each side of
// a truncated address.
const DefaultTruncateWidth = 4

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 24 * secondsPerHour
)

// ErrInvalidUnits is returned by ParseUnits for malformed amounts.
var ErrInvalidUnits = errors.New("invalid decimal amount")

// FormatSeconds renders a duration as "1 day, 2 hours, 1 second".
// Zero-valued units are omitted, so FormatSeconds(0) is "".
func FormatSeconds(total uint64) string {
	units := []struct {
		name  string
		count uint64
	}{
		{"day", total / secondsPerDay},
		{"hour", total % secondsPerDay / secondsPerHour},
		{"minute", total % secondsPerHour / secondsPerMinute},
		{"second", total % secondsPerMinute},
	}

	parts := make([]string, 0, len(units))
	for _, u := range units {
		if u.count == 0 {
			continue
		}
		label := u.name
		if u.count != 1 {
			label += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", u.count, label))
	}
	return strings.Join(parts, ", ")
}

// FormatPercentage renders value/max as a percentage without the % sign.
// 6900 of 10000 is "69"; 69000000 of 1e9 is "6.9".
func FormatPercentage(value *big.Int, max int64) string {
	if value == nil || max == 0 {
		return "0"
	}
	pct := decimal.NewFromBigInt(value, 0).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(max), 8)
	return pct.String()
}

// FormatUnits renders an integer amount with the given number of decimals,
// trimming trailing zeros: 1500000000000000000 with 18 decimals is "1.5".
func FormatUnits(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}

// ParseUnits converts a non-negative decimal string into smallest units.
// The amount may not carry more than decimals fractional digits.
func ParseUnits(value string, decimals int32) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return new(big.Int), nil
	}
	if strings.HasPrefix(value, ".") {
		value = "0" + value
	}
	if strings.HasSuffix(value, ".") {
		value += "0"
	}
	if strings.ContainsAny(value, "eE+-") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUnits, value)
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUnits, value)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount %q", ErrInvalidUnits, value)
	}
	if -d.Exponent() > decimals {
		return nil, fmt.Errorf("%w: more than %d decimals in %q", ErrInvalidUnits, decimals, value)
	}
	return d.Shift(decimals).BigInt(), nil
}

// TruncateAddress shortens a hex address to 0x + width chars, "...", and the
// last width chars. A width of zero returns the address unchanged, as does a
// width longer than the address itself.
func TruncateAddress(address string, width int) string {
	front := width + 2
	if width <= 0 || front > len(address) {
		return address
	}
	return address[:front] + "..." + address[len(address)-width:]
}

// LinkKind selects the block explorer path.
type LinkKind string

const (
	LinkAddress LinkKind = "address"
	LinkTx      LinkKind = "tx"
)

// ExplorerLink builds a block explorer URL for an address or tx hash.
func ExplorerLink(explorerBase string, kind LinkKind, value string) string {
	base := strings.TrimRight(explorerBase, "/")
	if base == "" {
		base = "https://etherscan.io"
	}
	return fmt.Sprintf("%s/%s/%s", base, kind, value)
}
