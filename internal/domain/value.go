package domain

import (
	"cmp"
	"math"
	"strconv"
)

// Kind is the type of a single cell.
type Kind uint8

const (
	KindText Kind = iota
	KindNumber
	KindBool
)

// Value is one typed cell of a record. Booleans carry Num 1 or 0 so they can
// be summed.
type Value struct {
	Kind Kind
	Text string
	Num  float64
}

// Text returns a text value.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	if b {
		return Value{Kind: KindBool, Num: 1}
	}
	return Value{Kind: KindBool}
}

// Numeric reports whether the value can take part in arithmetic.
func (v Value) Numeric() bool { return v.Kind != KindText }

// String renders the value for CSV output. Numbers use the shortest decimal
// that round-trips, booleans render as True/False, NaN renders empty.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return FormatNumber(v.Num)
	case KindBool:
		if v.Num != 0 {
			return "True"
		}
		return "False"
	default:
		return v.Text
	}
}

// FormatNumber renders f as its shortest round-trip decimal, or "" for NaN.
func FormatNumber(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Compare orders values: numbers (and booleans) numerically, text lexically,
// and any numeric value before any text value.
func Compare(a, b Value) int {
	an, bn := a.Numeric(), b.Numeric()
	switch {
	case an && bn:
		return cmp.Compare(a.Num, b.Num)
	case an:
		return -1
	case bn:
		return 1
	default:
		return cmp.Compare(a.Text, b.Text)
	}
}
