package timing

import (
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"

	"github.com/egonelbre/abctools/abcfmt/abc"
)

func TestTimeStamp(t *testing.T) {
	assert.Equal(t, TimeStamp{1, 2}, New(2, 4))
	assert.Equal(t, New(1, 4), New(2, 8))
	assert.Equal(t, Infinity, New(3, 0))
	assert.True(t, Zero.IsZero())
	assert.False(t, Infinity.IsZero())

	assert.Equal(t, New(3, 4), New(1, 2).Add(New(1, 4)))
	assert.Equal(t, Infinity, New(1, 2).Add(Infinity))
	assert.Equal(t, Infinity, Infinity.Add(Zero))

	assert.True(t, New(1, 3).Less(New(1, 2)))
	assert.True(t, New(1000000, 1).Less(Infinity))
	assert.False(t, Infinity.Less(New(1000000, 1)))
	assert.True(t, Infinity.Equal(Infinity))
	assert.True(t, New(2, 6).Equal(New(1, 3)))

	assert.Equal(t, "inf", Infinity.String())
	assert.Equal(t, "3", New(3, 1).String())
	assert.Equal(t, "3/8", New(3, 8).String())

	assert.Panics(t, func() { Infinity.Rat() })
}

func TestTimeStampOverflow(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 70)

	assert.Equal(t, Infinity, FromRat(new(big.Rat).SetInt(huge)))
	assert.Equal(t, Infinity, FromRat(new(big.Rat).SetFrac(big.NewInt(1), huge)))
	assert.Equal(t, Infinity, New(1<<62, 1).Add(New(1<<62, 1)))
	assert.Equal(t, New(1<<62, 1), FromRat(big.NewRat(1<<62, 1)))
}

func TestTimeStampOrder(t *testing.T) {
	stamps := []TimeStamp{Infinity, New(1, 2), Zero, New(1, 3), New(3, 4)}
	slices.SortFunc(stamps, func(a, b TimeStamp) bool { return a.Less(b) })
	assert.Equal(t, []TimeStamp{Zero, New(1, 3), New(1, 2), New(3, 4), Infinity}, stamps)

	seen := map[TimeStamp]int{}
	seen[New(1, 2)]++
	seen[New(2, 4)]++
	seen[FromRat(big.NewRat(4, 8))]++
	assert.Equal(t, map[TimeStamp]int{{1, 2}: 3}, seen)
}

// durations parses music in 4/4 with L:1/8 and returns the duration of
// every time-bearing element in order.
func durations(t *testing.T, meter, music string) ([]string, []abc.Warning) {
	t.Helper()
	book, warnings := abc.Parse("X:1\nM:" + meter + "\nL:1/8\nK:C\n" + music + "\n")
	require.Empty(t, warnings)
	tune := book.Tunes[0]

	calc := ForTune(tune)
	var out []string
	for _, e := range tune.Body.Systems[0].Elements {
		d := calc.Duration(e)
		if abc.IsTimed(e) {
			out = append(out, d.String())
		}
	}
	return out, calc.Warnings
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name   string
		meter  string
		music  string
		expect []string
	}{
		{"lengths", "4/4", "C D2 E/ F3/2 G//", []string{"1/8", "1/4", "1/16", "3/16", "1/32"}},
		{"rests", "4/4", "z z3 x/", []string{"1/8", "3/8", "1/16"}},
		{"beam", "4/4", "CDEF GA", []string{"1/2", "1/4"}},
		{"broken", "4/4", "A> B A< B", []string{"3/16", "1/16", "1/16", "3/16"}},
		{"double broken", "4/4", "A<< B", []string{"1/32", "7/32"}},
		{"broken beam", "4/4", "A>B c>>d", []string{"1/4", "1/4"}},
		{"broken reset at barline", "4/4", "A>|B", []string{"3/16", "1/8"}},
		{"chord", "4/4", "[CE]2 [C2E4] [CEG]/", []string{"1/4", "1/8", "1/16"}},
		{"triplet", "4/4", "(3C D E F", []string{"1/12", "1/12", "1/12", "1/8"}},
		{"triplet beam", "4/4", "(3CDE F", []string{"1/4", "1/8"}},
		{"duplet", "6/8", "(2C D E", []string{"3/16", "3/16", "1/8"}},
		{"explicit tuplet", "4/4", "(3:2:2 C D E", []string{"1/12", "1/12", "1/8"}},
		{"quintuplet", "4/4", "(5C D E F G A", []string{"1/20", "1/20", "1/20", "1/20", "1/20", "1/8"}},
		{"tuplet with chord", "4/4", "(3[CE] D E F", []string{"1/12", "1/12", "1/12", "1/8"}},
		{"bar rest", "3/4", "Z Z2", []string{"3/4", "inf"}},
		{"free meter rest", "none", "Z", []string{"inf"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, warnings := durations(t, test.meter, test.music)
			assert.Empty(t, warnings)
			if diff := cmp.Diff(test.expect, got); diff != "" {
				t.Error(diff)
			}
		})
	}
}

func TestDurationDegenerate(t *testing.T) {
	got, warnings := durations(t, "4/4", "C0 D/0")
	assert.Equal(t, []string{"1/8", "1/8"}, got)
	require.Len(t, warnings, 2)
	assert.Equal(t, "invalid note length, using 1", warnings[0].Message)
	assert.Equal(t, 5, warnings[0].Line)
}

func TestTupletContext(t *testing.T) {
	calc := NewCalculator(*big.NewRat(1, 8), *big.NewRat(1, 1))
	assert.Nil(t, calc.Tuplet())

	gen := abc.NewIDGen()
	calc.EnterTuplet(&abc.Tuplet{
		LParen: gen.Token(abc.TokenTupletLParen, "("),
		P:      gen.Token(abc.TokenTupletP, "4"),
	})
	require.NotNil(t, calc.Tuplet())
	assert.Equal(t, Tuplet{P: 4, Q: 3, R: 4, Remaining: 4}, *calc.Tuplet())

	clone := calc.Clone()
	assert.Nil(t, clone.Tuplet())
	assert.Equal(t, calc.Unit.RatString(), clone.Unit.RatString())

	calc.EnterTuplet(&abc.Tuplet{LParen: gen.Token(abc.TokenTupletLParen, "(")})
	assert.Len(t, calc.Warnings, 1)
}
