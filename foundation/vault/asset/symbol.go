package asset

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxPrecision is the largest number of decimal places a symbol can declare.
const MaxPrecision = 18

// SymbolCode represents the ticker of a token, 1 to 7 upper case letters.
type SymbolCode string

// ToSymbolCode converts a string to a symbol code and validates the
// string is formatted correctly.
func ToSymbolCode(s string) (SymbolCode, error) {
	c := SymbolCode(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid symbol code %q", s)
	}

	return c, nil
}

// IsValid verifies whether the underlying data represents a valid symbol code.
func (c SymbolCode) IsValid() bool {
	if len(c) == 0 || len(c) > 7 {
		return false
	}

	for _, r := range []byte(c) {
		if r < 'A' || r > 'Z' {
			return false
		}
	}

	return true
}

// =============================================================================

// Symbol is a symbol code together with the number of decimal places the
// amounts of that token are scaled by.
type Symbol struct {
	Code      SymbolCode
	Precision uint8
}

// NewSymbol constructs a validated symbol.
func NewSymbol(code string, precision uint8) (Symbol, error) {
	c, err := ToSymbolCode(code)
	if err != nil {
		return Symbol{}, err
	}

	if precision > MaxPrecision {
		return Symbol{}, fmt.Errorf("precision %d exceeds %d", precision, MaxPrecision)
	}

	return Symbol{Code: c, Precision: precision}, nil
}

// MustSymbol constructs a symbol and panics when the values are invalid. It is
// meant for package level constants and tests.
func MustSymbol(code string, precision uint8) Symbol {
	s, err := NewSymbol(code, precision)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseSymbol converts the text form "4,EOS" into a symbol.
func ParseSymbol(s string) (Symbol, error) {
	p, code, ok := strings.Cut(s, ",")
	if !ok {
		return Symbol{}, fmt.Errorf("%w: symbol %q", ErrInvalidFormat, s)
	}

	precision, err := strconv.ParseUint(p, 10, 8)
	if err != nil {
		return Symbol{}, fmt.Errorf("%w: symbol %q", ErrInvalidFormat, s)
	}

	return NewSymbol(code, uint8(precision))
}

// IsValid verifies the code and precision of the symbol.
func (s Symbol) IsValid() bool {
	return s.Code.IsValid() && s.Precision <= MaxPrecision
}

// String implements the fmt.Stringer interface.
func (s Symbol) String() string {
	if s.Code == "" {
		return ""
	}
	return fmt.Sprintf("%d,%s", s.Precision, s.Code)
}

// MarshalText implements the encoding.TextMarshaler interface.
func (s Symbol) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (s *Symbol) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*s = Symbol{}
		return nil
	}

	v, err := ParseSymbol(string(data))
	if err != nil {
		return err
	}

	*s = v
	return nil
}

// =============================================================================

// ExtendedSymbol is a symbol bound to the token contract that manages it.
type ExtendedSymbol struct {
	Symbol   Symbol `json:"symbol"`
	Contract Name   `json:"contract"`
}

// ParseExtendedSymbol converts the text form "4,EOS@eosio.token" into an
// extended symbol.
func ParseExtendedSymbol(s string) (ExtendedSymbol, error) {
	sym, contract, ok := strings.Cut(s, "@")
	if !ok {
		return ExtendedSymbol{}, fmt.Errorf("%w: extended symbol %q", ErrInvalidFormat, s)
	}

	symbol, err := ParseSymbol(sym)
	if err != nil {
		return ExtendedSymbol{}, err
	}

	name, err := ToName(contract)
	if err != nil {
		return ExtendedSymbol{}, err
	}

	return ExtendedSymbol{Symbol: symbol, Contract: name}, nil
}

// String implements the fmt.Stringer interface.
func (es ExtendedSymbol) String() string {
	return fmt.Sprintf("%s@%s", es.Symbol, es.Contract)
}
