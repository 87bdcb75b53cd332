package align

import (
	"github.com/egonelbre/abctools/abcfmt/abc"
	"github.com/egonelbre/abctools/abcfmt/timing"
)

// VoiceTiming tracks the unit note length and meter of every voice while
// walking the systems of a tune. Fields outside any voice apply to all
// voices.
type VoiceTiming struct {
	base   *timing.Calculator
	voices map[string]*timing.Calculator
}

func NewVoiceTiming(base *timing.Calculator) *VoiceTiming {
	return &VoiceTiming{base: base.Clone(), voices: map[string]*timing.Calculator{}}
}

// TuneTiming starts from the tune header.
func TuneTiming(tune *abc.Tune) *VoiceTiming {
	return NewVoiceTiming(timing.ForTune(tune))
}

// Clone returns an independent copy with fresh duration contexts.
func (vt *VoiceTiming) Clone() *VoiceTiming {
	clone := &VoiceTiming{base: vt.base.Clone(), voices: map[string]*timing.Calculator{}}
	for voice, calc := range vt.voices {
		clone.voices[voice] = calc.Clone()
	}
	return clone
}

// Calculator returns the calculator of voice. Repeated calls return the
// same calculator.
func (vt *VoiceTiming) Calculator(voice string) *timing.Calculator {
	if voice == "" {
		return vt.base
	}
	calc, ok := vt.voices[voice]
	if !ok {
		calc = vt.base.Clone()
		vt.voices[voice] = calc
	}
	return calc
}

// Field applies an `L:` or `M:` field of voice.
func (vt *VoiceTiming) Field(voice, tag, value string) {
	if voice != "" {
		applyField(vt.Calculator(voice), tag, value)
		return
	}
	applyField(vt.base, tag, value)
	for _, calc := range vt.voices {
		applyField(calc, tag, value)
	}
}

// Apply records the fields of a system, attributing every line to the
// voice selected by the latest voice marker.
func (vt *VoiceTiming) Apply(sys abc.System) {
	voice := sys.Voice
	for _, line := range abc.SplitLines(sys.Elements) {
		if id, _, ok := abc.LineVoice(line); ok {
			voice = id
		}
		vt.fields(voice, line)
	}
}

func (vt *VoiceTiming) fields(voice string, line []abc.Element) {
	for _, e := range line {
		switch e := e.(type) {
		case *abc.InfoLine:
			vt.Field(voice, e.Tag(), e.Text())
		case *abc.InlineField:
			vt.Field(voice, e.Tag(), e.Text())
		}
	}
}

// applyField updates the calculator for `L:` and `M:` fields.
func applyField(calc *timing.Calculator, tag, value string) {
	switch tag {
	case abc.FieldUnitNoteLength.Tag:
		if n, err := abc.ParseNoteLength(value); err == nil {
			calc.Unit = n
		}
	case abc.FieldMeter.Tag:
		if m, err := abc.ParseMeter(value); err == nil {
			calc.Bar = m.BarLength()
		}
	}
}
