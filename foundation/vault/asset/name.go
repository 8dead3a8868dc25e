package asset

import "fmt"

// Name represents an account on the host ledger. Names are 1 to 12
// characters drawn from a-z, 1-5 and the dot, and never end with a dot.
type Name string

// ToName converts a string to an account name and validates the string
// is formatted correctly.
func ToName(s string) (Name, error) {
	n := Name(s)
	if !n.IsValid() {
		return "", fmt.Errorf("invalid account name %q", s)
	}

	return n, nil
}

// IsValid verifies whether the underlying data represents a valid name.
func (n Name) IsValid() bool {
	if len(n) == 0 || len(n) > 12 || n[len(n)-1] == '.' {
		return false
	}

	for _, c := range []byte(n) {
		if !isNameCharacter(c) {
			return false
		}
	}

	return true
}

// String implements the fmt.Stringer interface.
func (n Name) String() string {
	return string(n)
}

// isNameCharacter returns bool of c being a valid name character.
func isNameCharacter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('1' <= c && c <= '5') || c == '.'
}
