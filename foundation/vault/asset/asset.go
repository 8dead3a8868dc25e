// Package asset provides the fixed point quantities, symbols and account
// names the vault books are kept in.
package asset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxAmount is the largest magnitude an asset amount can hold. It leaves the
// two high bits of the 64 bit amount free so the sum of two valid amounts
// can never wrap.
const MaxAmount int64 = (1 << 62) - 1

// Set of errors returned by asset arithmetic and parsing.
var (
	ErrOverflow       = errors.New("asset amount overflow")
	ErrSymbolMismatch = errors.New("asset symbol mismatch")
	ErrInvalidFormat  = errors.New("invalid asset format")
)

// =============================================================================

// Asset represents a signed fixed point quantity of a specific symbol. The
// amount is expressed in the smallest unit defined by the symbol precision.
type Asset struct {
	Amount int64
	Symbol Symbol
}

// New constructs an asset value for use.
func New(amount int64, symbol Symbol) Asset {
	return Asset{
		Amount: amount,
		Symbol: symbol,
	}
}

// ParseAsset converts the text form "1.0000 EOS" into an asset. The number of
// fractional digits defines the precision of the symbol.
func ParseAsset(s string) (Asset, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return Asset{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}

	code, err := ToSymbolCode(parts[1])
	if err != nil {
		return Asset{}, err
	}

	number := parts[0]
	negative := strings.HasPrefix(number, "-")
	number = strings.TrimPrefix(number, "-")

	whole, frac, hasDot := strings.Cut(number, ".")
	if whole == "" || (hasDot && frac == "") {
		return Asset{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	if len(frac) > MaxPrecision {
		return Asset{}, fmt.Errorf("%w: precision %d exceeds %d", ErrInvalidFormat, len(frac), MaxPrecision)
	}

	digits := whole + frac
	for _, c := range []byte(digits) {
		if c < '0' || c > '9' {
			return Asset{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
		}
	}

	amount, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || amount > MaxAmount {
		return Asset{}, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	if negative {
		amount = -amount
	}

	return New(amount, Symbol{Code: code, Precision: uint8(len(frac))}), nil
}

// IsValid reports whether the amount is in range and the symbol is valid.
func (a Asset) IsValid() bool {
	return a.Amount >= -MaxAmount && a.Amount <= MaxAmount && a.Symbol.IsValid()
}

// Add returns the sum of the two assets. Both must carry the same symbol.
func (a Asset) Add(b Asset) (Asset, error) {
	if a.Symbol != b.Symbol {
		return Asset{}, fmt.Errorf("%w: %s, %s", ErrSymbolMismatch, a.Symbol, b.Symbol)
	}

	sum := a.Amount + b.Amount
	if sum < -MaxAmount || sum > MaxAmount {
		return Asset{}, fmt.Errorf("%w: %s + %s", ErrOverflow, a, b)
	}

	return New(sum, a.Symbol), nil
}

// Sub returns the difference of the two assets. Both must carry the same symbol.
func (a Asset) Sub(b Asset) (Asset, error) {
	if a.Symbol != b.Symbol {
		return Asset{}, fmt.Errorf("%w: %s, %s", ErrSymbolMismatch, a.Symbol, b.Symbol)
	}

	diff := a.Amount - b.Amount
	if diff < -MaxAmount || diff > MaxAmount {
		return Asset{}, fmt.Errorf("%w: %s - %s", ErrOverflow, a, b)
	}

	return New(diff, a.Symbol), nil
}

// String implements the fmt.Stringer interface. The amount is rendered with
// exactly as many fractional digits as the symbol precision.
func (a Asset) String() string {
	if a.Symbol.Code == "" {
		return ""
	}

	sign := ""
	abs := uint64(a.Amount)
	if a.Amount < 0 {
		sign = "-"
		abs = uint64(-a.Amount)
	}

	if a.Symbol.Precision == 0 {
		return fmt.Sprintf("%s%d %s", sign, abs, a.Symbol.Code)
	}

	p := pow10(a.Symbol.Precision)
	return fmt.Sprintf("%s%d.%0*d %s", sign, abs/p, int(a.Symbol.Precision), abs%p, a.Symbol.Code)
}

// MarshalText implements the encoding.TextMarshaler interface.
func (a Asset) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (a *Asset) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = Asset{}
		return nil
	}

	v, err := ParseAsset(string(data))
	if err != nil {
		return err
	}

	*a = v
	return nil
}

// =============================================================================

// ExtendedAsset is an asset bound to the token contract that manages it.
type ExtendedAsset struct {
	Quantity Asset `json:"quantity"`
	Contract Name  `json:"contract"`
}

// NewExtended constructs an extended asset for the specified symbol.
func NewExtended(amount int64, symbol ExtendedSymbol) ExtendedAsset {
	return ExtendedAsset{
		Quantity: New(amount, symbol.Symbol),
		Contract: symbol.Contract,
	}
}

// ExtendedSymbol returns the symbol and contract pair of the asset.
func (ea ExtendedAsset) ExtendedSymbol() ExtendedSymbol {
	return ExtendedSymbol{
		Symbol:   ea.Quantity.Symbol,
		Contract: ea.Contract,
	}
}

// String implements the fmt.Stringer interface.
func (ea ExtendedAsset) String() string {
	return fmt.Sprintf("%s@%s", ea.Quantity, ea.Contract)
}

// =============================================================================

// pow10 returns 10 raised to the specified precision.
func pow10(precision uint8) uint64 {
	p := uint64(1)
	for i := uint8(0); i < precision; i++ {
		p *= 10
	}
	return p
}
