package align

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/egonelbre/abctools/abcfmt/abc"
)

var (
	// ErrNodeNotFound means an element referenced by the time map is no
	// longer in its voice line.
	ErrNodeNotFound = errors.New("element not found in voice")
	// ErrBarOutOfRange means the time map refers to a line or bar that
	// does not exist.
	ErrBarOutOfRange = errors.New("bar out of range")
)

// Renderer renders elements to text; abc.Printer implements it.
type Renderer interface {
	Render(elements ...abc.Element) string
}

// AlignBars pads voice lines with whitespace so that elements starting
// at the same time stamp print at the same column, and closed bars end
// at the same column. The input splits are not modified.
func AlignBars(splits []VoiceSplit, bars []BarAlignment, r Renderer, gen *abc.IDGen) ([]VoiceSplit, error) {
	a := &aligner{
		splits:   make([]VoiceSplit, len(splits)),
		renderer: r,
		gen:      gen,
	}
	for i, split := range splits {
		a.splits[i] = split
		a.splits[i].Content = slices.Clone(split.Content)
	}

	for _, bar := range bars {
		if err := a.alignBar(bar); err != nil {
			return splits, err
		}
	}
	return a.splits, nil
}

type aligner struct {
	splits   []VoiceSplit
	renderer Renderer
	gen      *abc.IDGen

	// starts of the bar being aligned, keyed by split; padding inserted
	// at the start of a bar becomes the new start.
	starts map[int]abc.ID
	barNum int
}

func (a *aligner) alignBar(bar BarAlignment) error {
	a.barNum = bar.Bar
	a.starts = maps.Clone(bar.Starts)

	for _, stamp := range bar.Stamps {
		locs := bar.Map[stamp]
		if len(locs) < 2 {
			continue
		}

		widths := make([]int, len(locs))
		longest := 0
		for i, loc := range locs {
			w, err := a.width(loc.Split, loc.ID, false)
			if err != nil {
				return errors.Wrapf(err, "time %v", stamp)
			}
			widths[i] = w
			if w > longest {
				longest = w
			}
		}
		for i, loc := range locs {
			if widths[i] < longest {
				if err := a.pad(loc.Split, loc.ID, longest-widths[i]); err != nil {
					return err
				}
			}
		}
	}

	return a.equalize(bar)
}

// equalize pads closed bars so that their closing barlines end at the
// same column. Unclosed bars at the end of a line are left alone.
func (a *aligner) equalize(bar BarAlignment) error {
	if len(bar.Ends) < 2 {
		return nil
	}

	order := maps.Keys(bar.Ends)
	slices.Sort(order)

	widths := make([]int, len(order))
	longest := 0
	for i, split := range order {
		w, err := a.width(split, bar.Ends[split], true)
		if err != nil {
			return errors.Wrap(err, "bar end")
		}
		widths[i] = w
		if w > longest {
			longest = w
		}
	}
	for i, split := range order {
		if widths[i] < longest {
			if err := a.pad(split, bar.Ends[split], longest-widths[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *aligner) locate(split int, id abc.ID) (int, error) {
	if split < 0 || split >= len(a.splits) {
		return -1, errors.Wrapf(ErrBarOutOfRange, "bar %d: line %d", a.barNum, split)
	}
	content := a.splits[split].Content
	for i, e := range content {
		if e.ElementID() == id {
			return i, nil
		}
	}
	return -1, errors.Wrapf(ErrNodeNotFound, "bar %d, voice %q: element %d", a.barNum, a.splits[split].Voice, id)
}

// width measures the text from the bar start up to target, excluding
// target unless inclusive is set.
func (a *aligner) width(split int, target abc.ID, inclusive bool) (int, error) {
	start, ok := a.starts[split]
	if !ok {
		return 0, errors.Wrapf(ErrBarOutOfRange, "bar %d: no start for line %d", a.barNum, split)
	}
	from, err := a.locate(split, start)
	if err != nil {
		return 0, err
	}
	to, err := a.locate(split, target)
	if err != nil {
		return 0, err
	}
	if inclusive {
		to++
	}
	if to < from {
		return 0, errors.Wrapf(ErrNodeNotFound, "bar %d, voice %q: element %d before bar start", a.barNum, a.splits[split].Voice, target)
	}
	return utf8.RuneCountInString(a.renderer.Render(a.splits[split].Content[from:to]...)), nil
}

// pad inserts n spaces in front of target. When whitespace precedes
// target, the padding goes before that whitespace instead. The search
// stops at the previous time-bearing element or barline so earlier
// aligned elements stay in place.
func (a *aligner) pad(split int, target abc.ID, n int) error {
	from, err := a.locate(split, a.starts[split])
	if err != nil {
		return err
	}
	at, err := a.locate(split, target)
	if err != nil {
		return err
	}

	content := a.splits[split].Content
	pos := at
	for j := at - 1; j >= from; j-- {
		e := content[j]
		if _, bar := e.(*abc.BarLine); bar || abc.IsTimed(e) {
			break
		}
		if abc.IsWhitespace(e) {
			pos = j
			break
		}
	}

	space := a.gen.Token(abc.TokenWhitespace, strings.Repeat(" ", n))
	a.splits[split].Content = slices.Insert(content, pos, abc.Element(space))
	if pos == from {
		a.starts[split] = space.ID
	}
	return nil
}
