package timing

import (
	"fmt"
	"math/big"
)

// TimeStamp is an exact fraction of a whole note, kept in lowest terms
// so it can be used as a map key. A zero denominator is the infinity
// sentinel: it only takes part in comparisons and sorts after every
// finite stamp.
type TimeStamp struct {
	Num, Den int64
}

var (
	Zero     = TimeStamp{0, 1}
	Infinity = TimeStamp{1, 0}
)

// New returns num/den in lowest terms; den 0 gives Infinity.
func New(num, den int64) TimeStamp {
	if den == 0 {
		return Infinity
	}
	return FromRat(big.NewRat(num, den))
}

// FromRat converts r; values whose numerator or denominator does not fit
// in an int64 saturate to Infinity.
func FromRat(r *big.Rat) TimeStamp {
	if !r.Num().IsInt64() || !r.Denom().IsInt64() {
		return Infinity
	}
	return TimeStamp{Num: r.Num().Int64(), Den: r.Denom().Int64()}
}

// Rat returns the stamp as a big.Rat; it panics for Infinity.
func (t TimeStamp) Rat() *big.Rat {
	if t.IsInfinite() {
		panic("timing: infinite time stamp used in arithmetic")
	}
	return big.NewRat(t.Num, t.Den)
}

func (t TimeStamp) IsInfinite() bool { return t.Den == 0 }

func (t TimeStamp) IsZero() bool { return !t.IsInfinite() && t.Num == 0 }

// Add returns t+d; Infinity absorbs.
func (t TimeStamp) Add(d TimeStamp) TimeStamp {
	if t.IsInfinite() || d.IsInfinite() {
		return Infinity
	}
	var sum big.Rat
	sum.Add(t.Rat(), d.Rat())
	return FromRat(&sum)
}

// Compare compares by cross multiplication.
func (t TimeStamp) Compare(u TimeStamp) int {
	switch {
	case t.IsInfinite() && u.IsInfinite():
		return 0
	case t.IsInfinite():
		return 1
	case u.IsInfinite():
		return -1
	}
	var a, b big.Int
	a.Mul(big.NewInt(t.Num), big.NewInt(u.Den))
	b.Mul(big.NewInt(u.Num), big.NewInt(t.Den))
	return a.Cmp(&b)
}

func (t TimeStamp) Less(u TimeStamp) bool  { return t.Compare(u) < 0 }
func (t TimeStamp) Equal(u TimeStamp) bool { return t.Compare(u) == 0 }

func (t TimeStamp) String() string {
	if t.IsInfinite() {
		return "inf"
	}
	if t.Den == 1 {
		return fmt.Sprint(t.Num)
	}
	return fmt.Sprintf("%d/%d", t.Num, t.Den)
}
