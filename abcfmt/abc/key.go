package abc

import (
	"fmt"
	"strconv"
	"strings"
)

// KeySignature is a parsed `K:` value.
type KeySignature struct {
	// Name is the lowercased tonic and mode, e.g. "f#m", "amix".
	Name string
	// Accidentals maps lowercase note letters to semitone alterations.
	Accidentals map[byte]int
	// Octave is the `octave=` transposition.
	Octave int
}

var keyModes = map[string]string{
	"":    "",
	"maj": "",
	"ion": "",
	"m":   "m",
	"min": "m",
	"aeo": "m",
	"mix": "mix",
	"dor": "dor",
	"phr": "phr",
	"lyd": "lyd",
	"loc": "loc",
}

func ParseKey(value string) (KeySignature, error) {
	key := KeySignature{Accidentals: map[byte]int{}}

	fields := strings.Fields(value)
	if len(fields) == 0 {
		return key, nil
	}

	rest := fields[1:]
	switch tonic := fields[0]; {
	case strings.EqualFold(tonic, "none"):
	case strings.EqualFold(tonic, "hp"):
		// highland pipes are written without signature
	case strings.HasPrefix(tonic, "clef=") || strings.Contains(tonic, "="):
		rest = fields
	default:
		name := strings.ToLower(tonic[:1])
		mode := strings.ToLower(tonic[1:])
		if mode != "" && (mode[0] == '#' || mode[0] == 'b') {
			name += mode[:1]
			mode = mode[1:]
		}
		if mode == "" && len(rest) > 0 {
			if _, ok := modeOf(rest[0]); ok {
				mode, rest = rest[0], rest[1:]
			}
		}
		m, ok := modeOf(mode)
		if !ok {
			return key, fmt.Errorf("unknown mode %q in key %q", mode, value)
		}
		key.Name = name + m

		acc, ok := lookupAccidentals(key.Name)
		if !ok {
			return key, fmt.Errorf("unknown key %q", value)
		}
		key.Accidentals = acc
	}

	for _, f := range rest {
		switch {
		case strings.HasPrefix(f, "octave="):
			n, err := strconv.Atoi(strings.TrimPrefix(f, "octave="))
			if err != nil {
				return key, fmt.Errorf("invalid octave in key %q", value)
			}
			key.Octave = n
		case len(f) >= 2 && strings.IndexByte("^_=", f[0]) >= 0:
			letter := f[len(f)-1] | 0x20
			if letter < 'a' || letter > 'g' {
				continue
			}
			switch f[:len(f)-1] {
			case "^":
				key.Accidentals[letter] = 1
			case "^^":
				key.Accidentals[letter] = 2
			case "_":
				key.Accidentals[letter] = -1
			case "__":
				key.Accidentals[letter] = -2
			case "=":
				delete(key.Accidentals, letter)
			}
		}
	}

	return key, nil
}

func modeOf(s string) (string, bool) {
	s = strings.ToLower(s)
	if len(s) > 3 {
		s = s[:3]
	}
	m, ok := keyModes[s]
	return m, ok
}

func lookupAccidentals(k string) (map[byte]int, bool) {
	const sh = "fcgdaeb"
	const fl = "beadgcf"
	// F♯, C♯, G♯, D♯, A♯, E♯, B♯
	// B♭, E♭, A♭, D♭, G♭, C♭, F♭

	switch k {
	case "c#", "a#m", "g#mix", "d#dor", "e#phr", "f#lyd", "b#loc":
		return makeAccidentalMap(sh[:7], 1), true
	case "f#", "d#m", "c#mix", "g#dor", "a#phr", "blyd", "e#loc":
		return makeAccidentalMap(sh[:6], 1), true
	case "b", "g#m", "f#mix", "c#dor", "d#phr", "elyd", "a#loc":
		return makeAccidentalMap(sh[:5], 1), true
	case "e", "c#m", "bmix", "f#dor", "g#phr", "alyd", "d#loc":
		return makeAccidentalMap(sh[:4], 1), true
	case "a", "f#m", "emix", "bdor", "c#phr", "dlyd", "g#loc":
		return makeAccidentalMap(sh[:3], 1), true
	case "d", "bm", "amix", "edor", "f#phr", "glyd", "c#loc":
		return makeAccidentalMap(sh[:2], 1), true
	case "g", "em", "dmix", "ador", "bphr", "clyd", "f#loc":
		return makeAccidentalMap(sh[:1], 1), true
	case "c", "am", "gmix", "ddor", "ephr", "flyd", "bloc":
		return map[byte]int{}, true
	case "f", "dm", "cmix", "gdor", "aphr", "bblyd", "eloc":
		return makeAccidentalMap(fl[:1], -1), true
	case "bb", "gm", "fmix", "cdor", "dphr", "eblyd", "aloc":
		return makeAccidentalMap(fl[:2], -1), true
	case "eb", "cm", "bbmix", "fdor", "gphr", "ablyd", "dloc":
		return makeAccidentalMap(fl[:3], -1), true
	case "ab", "fm", "ebmix", "bbdor", "cphr", "dblyd", "gloc":
		return makeAccidentalMap(fl[:4], -1), true
	case "db", "bbm", "abmix", "ebdor", "fphr", "gblyd", "cloc":
		return makeAccidentalMap(fl[:5], -1), true
	case "gb", "ebm", "dbmix", "abdor", "bbphr", "cblyd", "floc":
		return makeAccidentalMap(fl[:6], -1), true
	case "cb", "abm", "gbmix", "dbdor", "ebphr", "fblyd", "bbloc":
		return makeAccidentalMap(fl[:7], -1), true
	}
	return nil, false
}

func makeAccidentalMap(letters string, alter int) map[byte]int {
	acc := make(map[byte]int)
	for i := 0; i < len(letters); i++ {
		acc[letters[i]] += alter
	}
	return acc
}

// Alteration returns the semitones of an explicit accidental. Quarter
// tone accidentals round towards natural.
func (p *Pitch) Alteration() (int, bool) {
	if p == nil || p.Accidental == nil {
		return 0, false
	}
	switch p.Accidental.Text {
	case "^":
		return 1, true
	case "^^":
		return 2, true
	case "_":
		return -1, true
	case "__":
		return -2, true
	}
	return 0, true
}

// Step returns the lowercase note letter.
func (p *Pitch) Step() byte {
	return p.Letter.Text[0] | 0x20
}

// OctaveNumber is 0 for `C`..`B`, 1 for `c`..`b`, shifted by `'` and `,`.
func (p *Pitch) OctaveNumber() int {
	oct := 0
	if c := p.Letter.Text[0]; 'a' <= c && c <= 'z' {
		oct = 1
	}
	if p.Octave != nil {
		oct += strings.Count(p.Octave.Text, "'")
		oct -= strings.Count(p.Octave.Text, ",")
	}
	return oct
}

var stepSemitones = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

// MIDI returns the MIDI key number with `C` as middle C (60).
func (p *Pitch) MIDI(alter int) int {
	return 60 + 12*p.OctaveNumber() + stepSemitones[p.Step()] + alter
}
