package abc

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

type Fields []Field

type Field struct {
	Tag   string
	Value string
}

func (fields Fields) ByTag(tag string) (Field, bool) {
	for _, f := range fields {
		if f.Tag == tag {
			return f, true
		}
	}
	return Field{}, false
}

type FieldDef struct {
	Tag   string
	Full  string
	Flags FieldFlags
}

// FieldFlags lists the places where a field may occur.
type FieldFlags byte

const (
	FieldInFileHeader = FieldFlags(1)
	FieldInTuneHeader = FieldFlags(2)
	FieldInTuneBody   = FieldFlags(4)
	FieldInline       = FieldFlags(8)
)

func (f FieldFlags) String() string {
	var places []string
	for _, place := range []struct {
		flag FieldFlags
		name string
	}{
		{FieldInFileHeader, "file header"},
		{FieldInTuneHeader, "tune header"},
		{FieldInTuneBody, "tune body"},
		{FieldInline, "inline field"},
	} {
		if f&place.flag != 0 {
			places = append(places, place.name)
		}
	}
	return strings.Join(places, ", ")
}

var FieldDefs = []FieldDef{
	{"A", "area", FieldInFileHeader | FieldInTuneHeader}, // outdated information field syntax
	{"B", "book", FieldInFileHeader | FieldInTuneHeader},
	{"C", "composer", FieldInFileHeader | FieldInTuneHeader},
	{"D", "discography", FieldInFileHeader | FieldInTuneHeader},
	{"F", "file url", FieldInFileHeader | FieldInTuneHeader},
	{"G", "group", FieldInFileHeader | FieldInTuneHeader},
	{"H", "history", FieldInFileHeader | FieldInTuneHeader},
	{"I", "instruction", FieldInFileHeader | FieldInTuneHeader | FieldInTuneBody | FieldInline},
	{"K", "key", FieldInTuneHeader | FieldInTuneBody | FieldInline},
	{"L", "unit note length", FieldInFileHeader | FieldInTuneHeader | FieldInTuneBody | FieldInline},
	{"M", "meter", FieldInFileHeader | FieldInTuneHeader | FieldInTuneBody | FieldInline},
	{"m", "macro", FieldInFileHeader | FieldInTuneHeader | FieldInTuneBody | FieldInline},
	{"N", "notes", FieldInFileHeader | FieldInTuneHeader | FieldInTuneBody | FieldInline},
	{"O", "origin", FieldInFileHeader | FieldInTuneHeader},
	{"P", "parts", FieldInTuneHeader | FieldInTuneBody | FieldInline},
	{"Q", "tempo", FieldInTuneHeader | FieldInTuneBody | FieldInline},
	{"R", "rhythm", FieldInFileHeader | FieldInTuneHeader | FieldInTuneBody | FieldInline},
	{"r", "remark", FieldInFileHeader | FieldInTuneHeader | FieldInTuneBody | FieldInline},
	{"S", "source", FieldInFileHeader | FieldInTuneHeader},
	{"s", "symbol line", FieldInTuneBody},
	{"T", "tune title", FieldInTuneHeader | FieldInTuneBody},
	{"U", "user defined", FieldInFileHeader | FieldInTuneHeader | FieldInTuneBody | FieldInline},
	{"V", "voice", FieldInTuneHeader | FieldInTuneBody | FieldInline},
	{"W", "words", FieldInTuneHeader | FieldInTuneBody},
	{"w", "words", FieldInTuneBody},
	{"X", "reference number", FieldInTuneHeader},
	{"Z", "transcription", FieldInFileHeader | FieldInTuneHeader},
}

func lookupField(tag string) FieldDef {
	def, ok := DefByTag(tag)
	if !ok {
		panic("unknown field " + tag)
	}
	return def
}

var (
	FieldComposer       = lookupField("C")
	FieldHistory        = lookupField("H")
	FieldKey            = lookupField("K")
	FieldUnitNoteLength = lookupField("L")
	FieldMeter          = lookupField("M")
	FieldTempo          = lookupField("Q")
	FieldTitle          = lookupField("T")
	FieldVoice          = lookupField("V")
	FieldReference      = lookupField("X")
)

// DefByTag returns the definition of a field tag. Tags outside the
// standard set are not found.
func DefByTag(tag string) (FieldDef, bool) {
	for _, def := range FieldDefs {
		if def.Tag == tag {
			return def, true
		}
	}
	return FieldDef{}, false
}

type Meter struct {
	BeatsPerMeasure int
	BeatLength      int
}

// BarLength returns the length of a bar as a fraction of a whole note;
// zero for free meter.
func (m Meter) BarLength() big.Rat {
	if m.BeatsPerMeasure <= 0 || m.BeatLength <= 0 {
		return big.Rat{}
	}
	return *big.NewRat(int64(m.BeatsPerMeasure), int64(m.BeatLength))
}

// ParseMeter handles `6/8`, `C`, `C|`, `none` and additive numerators
// such as `2+3/8`.
func ParseMeter(s string) (m Meter, err error) {
	s = strings.TrimSpace(s)
	switch s {
	case "C":
		return Meter{4, 4}, nil
	case "C|":
		return Meter{2, 2}, nil
	case "none", "":
		return Meter{}, nil
	}

	beatsPerMeasure, beatLength, ok := strings.Cut(s, "/")
	if !ok {
		return Meter{}, fmt.Errorf("invalid meter %q", s)
	}

	for _, part := range strings.Split(strings.Trim(beatsPerMeasure, "()"), "+") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return Meter{}, fmt.Errorf("invalid meter %q: %w", s, err)
		}
		m.BeatsPerMeasure += n
	}
	m.BeatLength, err = strconv.Atoi(strings.TrimSpace(beatLength))
	if err != nil || m.BeatLength <= 0 {
		return Meter{}, fmt.Errorf("invalid meter %q", s)
	}
	return m, nil
}

func ParseNoteLength(s string) (n big.Rat, err error) {
	as, bs, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		bs = "1"
	}

	a, err1 := strconv.Atoi(strings.TrimSpace(as))
	b, err2 := strconv.Atoi(strings.TrimSpace(bs))
	if err1 != nil || err2 != nil || a <= 0 || b <= 0 {
		return big.Rat{}, fmt.Errorf("invalid note length %q", s)
	}

	return *big.NewRat(int64(a), int64(b)), nil
}

// DefaultNoteLength is 1/16 for meters below 3/4 and 1/8 otherwise.
func DefaultNoteLength(m Meter) big.Rat {
	bar := m.BarLength()
	if bar.Sign() > 0 && bar.Cmp(big.NewRat(3, 4)) < 0 {
		return *big.NewRat(1, 16)
	}
	return *big.NewRat(1, 8)
}
