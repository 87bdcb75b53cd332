package align

import (
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/egonelbre/abctools/abcfmt/abc"
	"github.com/egonelbre/abctools/abcfmt/timing"
)

const header = "X:1\nM:4/4\nL:1/8\nV:1\nV:2\nK:C\n"

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		expect string
	}{
		{
			name:   "identical",
			in:     "V:1\nCDEF|GABc|\nV:2\nCDEF|GABc|\n",
			expect: "V:1\nCDEF|GABc|\nV:2\nCDEF|GABc|\n",
		},
		{
			name:   "same width beams",
			in:     "V:1\nC2D2|GABc|\nV:2\nCDEF|GABc|\n",
			expect: "V:1\nC2D2|GABc|\nV:2\nCDEF|GABc|\n",
		},
		{
			name:   "unequal note counts",
			in:     "V:1\nC2 D2|GABc|\nV:2\nC D E F|GABc|\n",
			expect: "V:1\nC2  D2 |GABc|\nV:2\nC D E F|GABc|\n",
		},
		{
			name:   "bar lengths",
			in:     "V:1\nCDEF|GABc|\nV:2\nC2 D2|G4|\n",
			expect: "V:1\nCDEF |GABc|\nV:2\nC2 D2|G4  |\n",
		},
		{
			name:   "tuplet",
			in:     "V:1\n(3CDE CDEF|GABc|\nV:2\nCDEF|GABc|\n",
			expect: "V:1\n(3CDE CDEF|GABc|\nV:2\n  CDEF    |GABc|\n",
		},
		{
			name:   "multi measure rest",
			in:     "V:1\nZ4|\nV:2\nCDEF|CDEF|CDEF|CDEF|\n",
			expect: "V:1\nZ   |Z   |Z   |Z   |\nV:2\nCDEF|CDEF|CDEF|CDEF|\n",
		},
		{
			name:   "comments are kept",
			in:     "V:1\nC2 D2|\n% between voices\nV:2\nC D E F|\n",
			expect: "V:1\nC2  D2 |\n% between voices\nV:2\nC D E F|\n",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, warnings := FormatString(header+test.in, Formatter{Align: true})
			assert.Empty(t, warnings)
			if diff := cmp.Diff(header+test.expect, out); diff != "" {
				t.Error(diff)
			}
		})
	}
}

func TestFormatSingleVoiceUnchanged(t *testing.T) {
	src := "X:1\nM:4/4\nK:C\nC2 D2|G4|\nCDEF  GABc|\n"
	out, warnings := FormatString(src, Formatter{Align: true})
	assert.Empty(t, warnings)
	assert.Equal(t, src, out)
}

func TestFormatIdempotent(t *testing.T) {
	inputs := []string{
		"V:1\nC2 D2|GABc|\nV:2\nC D E F|GABc|\n",
		"V:1\n(3CDE CDEF|GABc|\nV:2\nCDEF|GABc|\n",
		"V:1\nZ4|\nV:2\nCDEF|CDEF|CDEF|CDEF|\n",
		"V:1\n[CE]2 z2 A>B c2|d4 e4|\nV:2\nC,4 E,2 G,2|C8|\n",
	}
	for _, in := range inputs {
		for _, f := range []Formatter{{Align: true}, {Align: true, Normalize: true}} {
			once, _ := FormatString(header+in, f)
			twice, _ := FormatString(once, f)
			if diff := cmp.Diff(once, twice); diff != "" {
				t.Errorf("%q normalize=%v:\n%s", in, f.Normalize, diff)
			}
		}
	}
}

func TestNormalizeSpacing(t *testing.T) {
	src := "X:1\nM:4/4\nK:C\nC2   D2  |GABc|  \n% a  comment\n"
	out, warnings := FormatString(src, Formatter{Normalize: true})
	assert.Empty(t, warnings)
	assert.Equal(t, "X:1\nM:4/4\nK:C\nC2 D2 |GABc|\n% a  comment\n", out)
}

// TestEqualWidth checks that after alignment every time stamp shared by
// two voices starts at the same column within its bar.
func TestEqualWidth(t *testing.T) {
	inputs := []string{
		"V:1\nC2 D2|GABc|\nV:2\nC D E F|GABc|\n",
		"V:1\n[CE]2 z2 A>B c2|d4 e4|\nV:2\nC,4 E,2 G,2|C8|\n",
		"V:1\nA/B/c/d/ e2 f4|z8|\nV:2\nA2 B2 c2 d2|(3efg (3abc' d'2|\n",
		"V:1\n!trill!A2 \"Am\"B2 {g}c4|\nV:2\nA B c d e f g a|\n",
	}
	for _, in := range inputs {
		gen := abc.NewIDGen()
		book, warnings := abc.ParseWith(header+in, gen)
		require.Empty(t, warnings)
		require.Len(t, book.Tunes, 1)
		tune := book.Tunes[0]

		for _, sys := range tune.Body.Systems {
			splits := SplitVoices(sys, tune.Voices)
			bars, _ := MapTimePoints(splits, TuneTiming(tune))
			aligned, err := AlignBars(splits, bars, abc.Printer{}, gen)
			require.NoError(t, err)

			after, _ := MapTimePoints(aligned, TuneTiming(tune))
			for _, bar := range after {
				for _, stamp := range bar.Stamps {
					locs := bar.Map[stamp]
					if len(locs) < 2 {
						continue
					}
					want := -1
					for _, loc := range locs {
						got := columnOf(t, aligned[loc.Split].Content, bar.Starts[loc.Split], loc.ID)
						if want < 0 {
							want = got
						}
						assert.Equal(t, want, got, "%q bar %d at %v", in, bar.Bar, stamp)
					}
				}
			}
		}
	}
}

func columnOf(t *testing.T, content []abc.Element, start, target abc.ID) int {
	t.Helper()
	from, to := -1, -1
	for i, e := range content {
		switch e.ElementID() {
		case start:
			from = i
		case target:
			to = i
		}
	}
	if start == target {
		to = from
	}
	require.True(t, from >= 0 && to >= from, "start %d target %d", start, target)
	return utf8.RuneCountInString(abc.String(content[from:to]...))
}

func TestAlignBarsMissingElement(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(loc *Location, gen *abc.IDGen, splits int)
		err    error
	}{
		{
			name:   "unknown element",
			mutate: func(loc *Location, gen *abc.IDGen, splits int) { loc.ID = gen.Next() },
			err:    ErrNodeNotFound,
		},
		{
			name:   "unknown line",
			mutate: func(loc *Location, gen *abc.IDGen, splits int) { loc.Split = splits + 5 },
			err:    ErrBarOutOfRange,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			gen := abc.NewIDGen()
			book, _ := abc.ParseWith(header+"V:1\nC2 D2|\nV:2\nC D E F|\n", gen)
			tune := book.Tunes[0]
			require.Len(t, tune.Body.Systems, 1)

			splits := SplitVoices(tune.Body.Systems[0], tune.Voices)
			bars, _ := MapTimePoints(splits, TuneTiming(tune))
			require.NotEmpty(t, bars)

			broken := false
			for _, stamp := range bars[0].Stamps {
				if locs := bars[0].Map[stamp]; len(locs) > 1 {
					test.mutate(&locs[0], gen, len(splits))
					broken = true
					break
				}
			}
			require.True(t, broken)

			out, err := AlignBars(splits, bars, abc.Printer{}, gen)
			require.Error(t, err)
			assert.True(t, errors.Is(err, test.err), err.Error())
			assert.Equal(t, splits, out)
		})
	}
}

func TestFormatBodyUnitLength(t *testing.T) {
	in := header + "V:1\nL:1/16\nC2 D2 E2 F2|\nV:2\nC D E F|\n"
	out, warnings := FormatString(in, Formatter{Align: true})
	assert.Empty(t, warnings)
	assert.Equal(t, header+"V:1\nL:1/16\nC2 D2 E2 F2|\nV:2\nC  D  E  F |\n", out)
}

func TestVoiceTiming(t *testing.T) {
	gen := abc.NewIDGen()
	book, _ := abc.ParseWith(header+"V:1\nL:1/16\nC2 D2|\nV:2\nC D|\nM:3/4\n", gen)
	tune := book.Tunes[0]
	require.Len(t, tune.Body.Systems, 1)

	vt := TuneTiming(tune)
	splits := SplitVoices(tune.Body.Systems[0], tune.Voices)
	_, _ = MapTimePoints(splits, vt)
	assert.Equal(t, "1/8", vt.Calculator("1").Unit.RatString(), "time mapping must not modify the tracker")

	vt.Apply(tune.Body.Systems[0])
	assert.Equal(t, "1/16", vt.Calculator("1").Unit.RatString())
	assert.Equal(t, "1/8", vt.Calculator("2").Unit.RatString())
	assert.Equal(t, "1", vt.Calculator("1").Bar.RatString())
	assert.Equal(t, "3/4", vt.Calculator("2").Bar.RatString())

	clone := vt.Clone()
	clone.Field("", "L", "1/4")
	assert.Equal(t, "1/4", clone.Calculator("1").Unit.RatString())
	assert.Equal(t, "1/4", clone.Calculator("3").Unit.RatString())
	assert.Equal(t, "1/16", vt.Calculator("1").Unit.RatString())
}

func TestFormatSystemKeepsInput(t *testing.T) {
	gen := abc.NewIDGen()
	book, _ := abc.ParseWith(header+"V:1\nZ2|\nV:2\nC D E F|CDEF|\n", gen)
	tune := book.Tunes[0]
	sys := tune.Body.Systems[0]
	before := sys.String()

	f := &Formatter{Align: true, Normalize: true}
	formatted, warnings := f.FormatSystem(sys, tune.Voices, TuneTiming(tune), gen)
	assert.Empty(t, warnings)
	assert.Equal(t, before, sys.String())
	assert.Equal(t, "V:1\nZ      |Z   |\nV:2\nC D E F|CDEF|\n", formatted.String())
}

func TestExpandMultiMeasureRests(t *testing.T) {
	gen := abc.NewIDGen()
	book, _ := abc.ParseWith("X:1\nM:3/4\nK:C\nZ3|X2|Z|\n", gen)
	sys := book.Tunes[0].Body.Systems[0]

	expanded := ExpandMultiMeasureRests(sys, gen)
	assert.Equal(t, "Z|Z|Z|X|X|Z|\n", expanded.String())
	assert.Equal(t, "Z3|X2|Z|\n", sys.String())

	seen := map[abc.ID]bool{}
	for _, e := range expanded.Elements {
		assert.False(t, seen[e.ElementID()], "duplicate id %d", e.ElementID())
		seen[e.ElementID()] = true
	}
}

func TestVoiceBars(t *testing.T) {
	gen := abc.NewIDGen()
	book, _ := abc.ParseWith("X:1\nM:4/4\nL:1/8\nK:C\nC2 D2 Z2|E4 [L:1/4] F2|\n", gen)
	tune := book.Tunes[0]

	bars := VoiceBars(tune.Body.Systems[0].Elements, timing.ForTune(tune))
	require.Len(t, bars, 3)

	stamps := func(bar BarTimeMap) []string {
		var out []string
		for _, s := range sortedStamps(bar) {
			out = append(out, s.String())
		}
		return out
	}
	assert.Equal(t, []string{"0", "1/4", "1/2"}, stamps(bars[0]))
	assert.Equal(t, []string{"0", "1/2"}, stamps(bars[1]))
	assert.Empty(t, bars[2].Times)
	assert.NotZero(t, bars[0].End)
	assert.Zero(t, bars[2].End)
}

func sortedStamps(bar BarTimeMap) []timing.TimeStamp {
	stamps := maps.Keys(bar.Times)
	slices.SortFunc(stamps, func(a, b timing.TimeStamp) bool { return a.Less(b) })
	return stamps
}
