package align

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/egonelbre/abctools/abcfmt/abc"
	"github.com/egonelbre/abctools/abcfmt/timing"
)

// BarTimeMap lists where time-bearing elements start within one bar of
// one voice line.
type BarTimeMap struct {
	// Start is the first element of the bar, End its closing barline
	// (zero for the last, unclosed bar of a line).
	Start, End abc.ID
	Times      map[timing.TimeStamp]abc.ID
}

// Location is an element of a voice line.
type Location struct {
	Split int
	Voice int
	ID    abc.ID
}

// BarAlignment collects, for one bar number, the elements of every voice
// line that start at each time stamp.
type BarAlignment struct {
	Bar    int
	Map    map[timing.TimeStamp][]Location
	Stamps []timing.TimeStamp
	// Starts and Ends are keyed by split index.
	Starts map[int]abc.ID
	Ends   map[int]abc.ID
}

// VoiceBars walks one voice line and records the time stamp of every
// time-bearing element, resetting at barlines. Time stops advancing
// within a bar after an element of infinite duration.
func VoiceBars(content []abc.Element, calc *timing.Calculator) []BarTimeMap {
	var bars []BarTimeMap
	cur := BarTimeMap{Times: map[timing.TimeStamp]abc.ID{}}
	now := timing.Zero
	stopped := false

	for _, e := range content {
		if cur.Start == 0 {
			cur.Start = e.ElementID()
		}
		switch e := e.(type) {
		case *abc.BarLine:
			cur.End = e.ID
			bars = append(bars, cur)
			cur = BarTimeMap{Times: map[timing.TimeStamp]abc.ID{}}
			now, stopped = timing.Zero, false
			calc.ResetBar()
		case *abc.Note, *abc.Rest, *abc.Chord, *abc.Beam, *abc.MultiMeasureRest:
			if stopped {
				continue
			}
			cur.Times[now] = e.ElementID()
			if d := calc.Duration(e); d.IsInfinite() {
				stopped = true
			} else {
				now = now.Add(d)
			}
		case *abc.Tuplet:
			calc.EnterTuplet(e)
		case *abc.InlineField:
			applyField(calc, e.Tag(), e.Text())
		case *abc.InfoLine:
			applyField(calc, e.Tag(), e.Text())
		}
	}
	return append(bars, cur)
}

// MapTimePoints computes the cross-voice alignment of every bar in the
// formatted splits of one system. Every split is timed with the unit
// length and meter of its own voice; vt is not modified.
func MapTimePoints(splits []VoiceSplit, vt *VoiceTiming) ([]BarAlignment, []abc.Warning) {
	var warnings []abc.Warning

	local := vt.Clone()
	perSplit := map[int][]BarTimeMap{}
	maxBars := 0
	for i, split := range splits {
		if split.Kind != Formatted {
			local.fields(split.Voice, split.Content)
			continue
		}
		voice := local.Calculator(split.Voice)
		c := voice.Clone()
		bars := VoiceBars(split.Content, c)
		warnings = append(warnings, c.Warnings...)
		voice.Unit.Set(&c.Unit)
		voice.Bar.Set(&c.Bar)

		perSplit[i] = bars
		if len(bars) > maxBars {
			maxBars = len(bars)
		}
	}

	order := maps.Keys(perSplit)
	slices.Sort(order)

	alignments := make([]BarAlignment, 0, maxBars)
	for bar := 0; bar < maxBars; bar++ {
		ba := BarAlignment{
			Bar:    bar,
			Map:    map[timing.TimeStamp][]Location{},
			Starts: map[int]abc.ID{},
			Ends:   map[int]abc.ID{},
		}
		for _, i := range order {
			bars := perSplit[i]
			if bar >= len(bars) {
				continue
			}
			btm := bars[bar]
			ba.Starts[i] = btm.Start
			if btm.End != 0 {
				ba.Ends[i] = btm.End
			}
			for stamp, id := range btm.Times {
				ba.Map[stamp] = append(ba.Map[stamp], Location{
					Split: i,
					Voice: splits[i].VoiceIndex,
					ID:    id,
				})
			}
		}
		ba.Stamps = maps.Keys(ba.Map)
		slices.SortFunc(ba.Stamps, func(a, b timing.TimeStamp) bool { return a.Less(b) })
		alignments = append(alignments, ba)
	}
	return alignments, warnings
}
