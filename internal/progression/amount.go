package progression

import (
	"strconv"
)

// AmountKind tags which variant an Amount carries.
type AmountKind uint8

const (
	// AmountUnset is the zero value. References loaded without an amount
	// are normalized to Bool(true) before the engine sees them.
	AmountUnset AmountKind = iota
	AmountBool
	AmountNumber
)

// Amount is either a presence flag or a quantity. Every arithmetic or
// comparison site dispatches on the kind; the two are never coerced into
// each other except by AsNumber, which exists for aggregation only.
type Amount struct {
	kind AmountKind
	b    bool
	n    float64
}

// Bool returns a presence-flag amount.
func Bool(v bool) Amount {
	return Amount{kind: AmountBool, b: v}
}

// Number returns a quantity amount.
func Number(v float64) Amount {
	return Amount{kind: AmountNumber, n: v}
}

// Kind returns the variant tag.
func (a Amount) Kind() AmountKind { return a.kind }

// IsSet reports whether the amount carries either variant.
func (a Amount) IsSet() bool { return a.kind != AmountUnset }

// IsBool reports whether the amount is a presence flag.
func (a Amount) IsBool() bool { return a.kind == AmountBool }

// IsNumber reports whether the amount is a quantity.
func (a Amount) IsNumber() bool { return a.kind == AmountNumber }

// Bool returns the flag value. Only meaningful when IsBool is true.
func (a Amount) Bool() bool { return a.b }

// Number returns the quantity. Only meaningful when IsNumber is true.
func (a Amount) Number() float64 { return a.n }

// Truthy reports whether the amount counts as "present": true for a set
// flag, non-zero for a quantity.
func (a Amount) Truthy() bool {
	switch a.kind {
	case AmountBool:
		return a.b
	case AmountNumber:
		return a.n != 0
	default:
		return false
	}
}

// AsNumber folds a flag into 0/1 and returns quantities unchanged.
func (a Amount) AsNumber() float64 {
	switch a.kind {
	case AmountBool:
		if a.b {
			return 1
		}
		return 0
	case AmountNumber:
		return a.n
	default:
		return 0
	}
}

// Negate inverts a flag or flips the sign of a quantity.
func (a Amount) Negate() Amount {
	switch a.kind {
	case AmountBool:
		return Bool(!a.b)
	case AmountNumber:
		return Number(-a.n)
	default:
		return a
	}
}

// Equal reports whether both amounts carry the same variant and value.
func (a Amount) Equal(o Amount) bool {
	if a.kind != o.kind {
		return false
	}
	switch a.kind {
	case AmountBool:
		return a.b == o.b
	case AmountNumber:
		return a.n == o.n
	default:
		return true
	}
}

func (a Amount) String() string {
	switch a.kind {
	case AmountBool:
		return strconv.FormatBool(a.b)
	case AmountNumber:
		return strconv.FormatFloat(a.n, 'f', -1, 64)
	default:
		return "unset"
	}
}

// MarshalJSON renders the amount as a plain JSON bool or number.
func (a Amount) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case AmountBool:
		return []byte(strconv.FormatBool(a.b)), nil
	case AmountNumber:
		return []byte(strconv.FormatFloat(a.n, 'g', -1, 64)), nil
	default:
		return []byte("null"), nil
	}
}
