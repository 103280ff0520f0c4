// Package amount validates free-text monetary input.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"sync"

	"github.com/R3E-Network/juicescan/internal/format"
)

// DefaultDecimals matches the native token.
const DefaultDecimals = 18

// ErrInvalidAmount is returned when a candidate value is rejected.
var ErrInvalidAmount = errors.New("invalid amount")

var patterns sync.Map // decimals -> *regexp.Regexp

// Pattern returns the acceptance pattern for the given decimal limit:
// optional integer part, optional '.', zero to decimals fractional digits.
func Pattern(decimals int) *regexp.Regexp {
	if re, ok := patterns.Load(decimals); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(fmt.Sprintf(`^\d*\.?\d{0,%d}$`, decimals))
	patterns.Store(decimals, re)
	return re
}

// Valid reports whether candidate would be accepted by an Input with the
// given decimal limit. The empty string is valid and means zero.
func Valid(candidate string, decimals int) bool {
	return candidate == "" || Pattern(decimals).MatchString(candidate)
}

// Input keeps the last accepted amount string. Rejected candidates never
// replace it.
type Input struct {
	decimals int
	value    string
	warning  bool
}

// NewInput creates an Input starting at "0". A non-positive decimals value
// selects DefaultDecimals.
func NewInput(decimals int) *Input {
	if decimals <= 0 {
		decimals = DefaultDecimals
	}
	return &Input{decimals: decimals, value: "0"}
}

// Set offers a new candidate. It reports whether the candidate was accepted.
// The empty string is accepted and stored as "0".
func (in *Input) Set(candidate string) bool {
	switch {
	case candidate == "":
		in.value = "0"
	case Pattern(in.decimals).MatchString(candidate):
		in.value = candidate
	default:
		in.warning = true
		return false
	}
	in.warning = false
	return true
}

// Value returns the last accepted amount string.
func (in *Input) Value() string { return in.value }

// Decimals returns the fractional digit limit.
func (in *Input) Decimals() int { return in.decimals }

// Warning reports whether the most recent candidate was rejected.
func (in *Input) Warning() bool { return in.warning }

// WarningText is shown next to a rejected candidate.
func (in *Input) WarningText() string {
	return fmt.Sprintf("This input only accepts numbers (with up to %d decimal places).", in.decimals)
}

// Amount converts the accepted value to smallest units.
func (in *Input) Amount() (*big.Int, error) {
	return format.ParseUnits(in.value, int32(in.decimals))
}

// Parse validates candidate and converts it to smallest units in one step.
func Parse(candidate string, decimals int) (*big.Int, error) {
	in := NewInput(decimals)
	if !in.Set(candidate) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, candidate)
	}
	return in.Amount()
}
