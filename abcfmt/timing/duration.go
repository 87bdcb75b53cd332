package timing

import (
	"math/big"

	"github.com/egonelbre/abctools/abcfmt/abc"
)

// Calculator computes durations of time-bearing elements while walking
// one voice left to right. It carries the broken rhythm of the previous
// sibling and the open tuplet between calls.
type Calculator struct {
	// Unit is the unit note length (L:).
	Unit big.Rat
	// Bar is the bar length from the meter; zero for free meter.
	Bar big.Rat

	Warnings []abc.Warning

	broken int
	tuplet *Tuplet
}

// Tuplet is an open `(p:q:r` context.
type Tuplet struct {
	P, Q, R   int
	Remaining int
}

func NewCalculator(unit, bar big.Rat) *Calculator {
	c := &Calculator{}
	c.Unit.Set(&unit)
	c.Bar.Set(&bar)
	return c
}

// ForTune creates a calculator with the tune's unit note length and
// meter.
func ForTune(tune *abc.Tune) *Calculator {
	unit := tune.NoteLength
	if unit.Sign() == 0 {
		unit = abc.DefaultNoteLength(tune.Meter)
	}
	return NewCalculator(unit, tune.Meter.BarLength())
}

// Clone returns a calculator with the same unit and bar length and a
// fresh context.
func (c *Calculator) Clone() *Calculator {
	return NewCalculator(c.Unit, c.Bar)
}

// ResetBar clears the broken rhythm context; called at barlines.
func (c *Calculator) ResetBar() {
	c.broken = 0
}

// Tuplet returns the open tuplet context, nil when there is none.
func (c *Calculator) Tuplet() *Tuplet { return c.tuplet }

var tupletDefaults = map[int][2]int{
	2: {3, 2},
	3: {2, 3},
	4: {3, 4},
	6: {2, 6},
	8: {3, 8},
}

// EnterTuplet opens a tuplet context; q and r default from p.
func (c *Calculator) EnterTuplet(t *abc.Tuplet) {
	p, q, r := t.Values()
	if p <= 0 {
		c.warn(t.LParen, "invalid tuplet")
		return
	}
	def, ok := tupletDefaults[p]
	if !ok {
		def = [2]int{2, p}
	}
	if q <= 0 {
		q = def[0]
	}
	if r <= 0 {
		r = def[1]
	}
	c.tuplet = &Tuplet{P: p, Q: q, R: r, Remaining: r}
}

// BaseDuration is the unit length times the rhythm fraction, adjusted
// by the broken rhythm of the previous sibling and by its own marker.
func (c *Calculator) BaseDuration(r *abc.Rhythm) *big.Rat {
	num, den, ok := r.Fraction()
	if !ok {
		c.warn(rhythmToken(r), "invalid note length, using 1")
		num, den = 1, 1
	}

	dur := new(big.Rat).Set(&c.Unit)
	dur.Mul(dur, big.NewRat(num, den))

	switch {
	case c.broken > 0:
		dur.Mul(dur, shorter(c.broken))
	case c.broken < 0:
		dur.Mul(dur, longer(-c.broken))
	}

	own := r.BrokenCount()
	switch {
	case own > 0:
		dur.Mul(dur, longer(own))
	case own < 0:
		dur.Mul(dur, shorter(-own))
	}
	c.broken = own

	return dur
}

// longer is 2 - 1/2^n: 3/2 for `>`, 7/4 for `>>`.
func longer(n int) *big.Rat {
	if n > 8 {
		n = 8
	}
	pow := int64(1) << n
	return big.NewRat(2*pow-1, pow)
}

// shorter is 1/2^n: 1/2 for `>`, 1/4 for `>>`.
func shorter(n int) *big.Rat {
	if n > 8 {
		n = 8
	}
	return big.NewRat(1, int64(1)<<n)
}

// Duration returns the duration of e and advances the context. Elements
// that do not occupy time return Zero; a rest lasting more than the
// current bar returns Infinity.
func (c *Calculator) Duration(e abc.Element) TimeStamp {
	switch e := e.(type) {
	case *abc.Note:
		return FromRat(c.tupled(c.BaseDuration(e.Rhythm)))
	case *abc.Rest:
		return FromRat(c.tupled(c.BaseDuration(e.Rhythm)))
	case *abc.Chord:
		return FromRat(c.tupled(c.BaseDuration(e.Rhythm)))
	case *abc.Beam:
		var sum big.Rat
		for _, x := range e.Contents {
			switch x.(type) {
			case *abc.Note, *abc.Chord, *abc.Rest:
				sum.Add(&sum, c.Duration(x).Rat())
			}
		}
		return FromRat(&sum)
	case *abc.MultiMeasureRest:
		c.broken = 0
		if e.Bars() > 1 || c.Bar.Sign() == 0 {
			return Infinity
		}
		return FromRat(&c.Bar)
	case *abc.Tuplet:
		c.EnterTuplet(e)
	case *abc.BarLine:
		c.ResetBar()
	}
	return Zero
}

func (c *Calculator) tupled(dur *big.Rat) *big.Rat {
	t := c.tuplet
	if t == nil {
		return dur
	}
	dur.Mul(dur, big.NewRat(int64(t.Q), int64(t.P)))
	t.Remaining--
	if t.Remaining <= 0 {
		c.tuplet = nil
	}
	return dur
}

func (c *Calculator) warn(t *abc.Token, message string) {
	w := abc.Warning{Message: message}
	if t != nil {
		w.Line, w.Column = t.Line, t.Column
	}
	c.Warnings = append(c.Warnings, w)
}

func rhythmToken(r *abc.Rhythm) *abc.Token {
	if r == nil {
		return nil
	}
	for _, t := range []*abc.Token{r.Numerator, r.Separator, r.Denominator} {
		if t != nil {
			return t
		}
	}
	return nil
}
