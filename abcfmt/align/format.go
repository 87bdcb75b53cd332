package align

import (
	"github.com/egonelbre/abctools/abcfmt/abc"
)

// Formatter composes the per-system passes: spacing normalization,
// multi-measure rest expansion, time mapping and alignment.
type Formatter struct {
	// Align enables vertical alignment of multi-voice systems.
	Align bool
	// Normalize collapses whitespace in music lines before aligning.
	Normalize bool
	// Renderer measures text; defaults to abc.Printer.
	Renderer Renderer
}

func (f *Formatter) renderer() Renderer {
	if f.Renderer == nil {
		return abc.Printer{}
	}
	return f.Renderer
}

// FormatTune formats every system of tune in place.
func (f *Formatter) FormatTune(tune *abc.Tune, gen *abc.IDGen) []abc.Warning {
	var warnings []abc.Warning

	vt := TuneTiming(tune)
	for i, sys := range tune.Body.Systems {
		formatted, warns := f.FormatSystem(sys, tune.Voices, vt, gen)
		warnings = append(warnings, warns...)
		tune.Body.Systems[i] = formatted

		// body fields change the meter and unit length of later systems
		vt.Apply(sys)
	}
	return warnings
}

// FormatSystem returns the formatted system. sys itself is not modified;
// when alignment fails the system is returned without alignment and the
// failure is reported as a warning.
func (f *Formatter) FormatSystem(sys abc.System, voices []string, vt *VoiceTiming, gen *abc.IDGen) (abc.System, []abc.Warning) {
	work := sys
	if f.Normalize {
		work = NormalizeSpacing(work, gen)
	}
	if !f.Align || len(voices) < 2 {
		return work, nil
	}

	expanded := ExpandMultiMeasureRests(work, gen)
	splits := SplitVoices(expanded, voices)
	if Voices(splits) < 2 {
		return work, nil
	}

	bars, warnings := MapTimePoints(splits, vt)
	aligned, err := AlignBars(splits, bars, f.renderer(), gen)
	if err != nil {
		w := abc.Warning{Message: "alignment skipped: " + err.Error()}
		if t := firstToken(sys.Elements); t != nil {
			w.Line, w.Column = t.Line, t.Column
		}
		return work, append(warnings, w)
	}
	return Join(aligned, sys.Voice), warnings
}

// FormatString parses src, formats every tune and prints the result.
func FormatString(src string, f Formatter) (string, []abc.Warning) {
	gen := abc.NewIDGen()
	book, warnings := abc.ParseWith(src, gen)
	for _, tune := range book.Tunes {
		warnings = append(warnings, f.FormatTune(tune, gen)...)
	}
	return book.String(), warnings
}

func firstToken(elements []abc.Element) *abc.Token {
	for _, e := range elements {
		switch e := e.(type) {
		case *abc.Token:
			if e.Line > 0 {
				return e
			}
		case *abc.InfoLine:
			return e.Header
		}
	}
	return nil
}
