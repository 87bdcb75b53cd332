package abc

import (
	"strconv"
	"strings"
)

// Element is either a *Token or one of the node types below.
// Passes switch over the concrete types.
type Element interface {
	ElementID() ID
	element()
}

func (t *Token) ElementID() ID { return t.ID }
func (*Token) element()        {}

// Rhythm is the optional length suffix of a note, rest or chord:
// numerator, slashes, denominator and broken rhythm marker.
type Rhythm struct {
	ID ID

	Numerator   *Token
	Separator   *Token
	Denominator *Token
	Broken      *Token
}

// Fraction returns the length multiplier. ok is false when the rhythm
// is degenerate: a zero length, a zero denominator or an overflow.
func (r *Rhythm) Fraction() (num, den int64, ok bool) {
	if r == nil {
		return 1, 1, true
	}
	num, den = 1, 1
	if r.Numerator != nil {
		n, err := strconv.ParseInt(r.Numerator.Text, 10, 32)
		if err != nil {
			return 1, 1, false
		}
		num = n
	}
	if r.Separator != nil {
		if r.Denominator != nil {
			d, err := strconv.ParseInt(r.Denominator.Text, 10, 32)
			if err != nil {
				return 1, 1, false
			}
			den = d
		} else {
			slashes := len(r.Separator.Text)
			if slashes > 30 {
				return 1, 1, false
			}
			den = 1 << slashes
		}
	}
	if den <= 0 || num <= 0 {
		return 1, 1, false
	}
	return num, den, true
}

// BrokenCount is positive for `>` markers and negative for `<` markers.
func (r *Rhythm) BrokenCount() int {
	if r == nil || r.Broken == nil {
		return 0
	}
	n := len(r.Broken.Text)
	if strings.HasPrefix(r.Broken.Text, "<") {
		return -n
	}
	return n
}

type Pitch struct {
	ID ID

	Accidental *Token
	Letter     *Token
	Octave     *Token
}

type Note struct {
	ID ID

	Pitch  *Pitch
	Rhythm *Rhythm
	Tie    *Token
}

type Rest struct {
	ID ID

	Rest   *Token
	Rhythm *Rhythm
}

// MultiMeasureRest is `Z` or the invisible `X`, optionally followed by
// the number of bars it lasts.
type MultiMeasureRest struct {
	ID ID

	Rest   *Token
	Length *Token
}

// Bars returns how many bars the rest lasts.
func (r *MultiMeasureRest) Bars() int {
	if r.Length == nil {
		return 1
	}
	n, err := strconv.Atoi(r.Length.Text)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

type Chord struct {
	ID ID

	Left     *Token
	Contents []Element
	Right    *Token
	Rhythm   *Rhythm
	Tie      *Token
}

// Beam groups notes and chords written without whitespace between them,
// together with the decorations, annotations, grace groups and slurs
// attached to them.
type Beam struct {
	ID ID

	Contents []Element
}

// BarLine holds the barline token and any repeat numbers that follow it.
type BarLine struct {
	ID ID

	Tokens []*Token
}

func (b *BarLine) Text() string {
	var s strings.Builder
	for _, t := range b.Tokens {
		if t.Kind == TokenBarLine {
			s.WriteString(t.Text)
		}
	}
	return s.String()
}

func (b *BarLine) Volta() string {
	var s strings.Builder
	for _, t := range b.Tokens {
		if t.Kind == TokenRepeatNumber {
			s.WriteString(t.Text)
		}
	}
	return s.String()
}

// Tuplet is `(p:q:r`.
type Tuplet struct {
	ID ID

	LParen *Token
	P      *Token
	ColonQ *Token
	Q      *Token
	ColonR *Token
	R      *Token
}

// Values returns p and the explicitly given q and r; zero means absent.
func (t *Tuplet) Values() (p, q, r int) {
	atoi := func(tok *Token) int {
		if tok == nil {
			return 0
		}
		n, err := strconv.Atoi(tok.Text)
		if err != nil {
			return 0
		}
		return n
	}
	return atoi(t.P), atoi(t.Q), atoi(t.R)
}

type GraceGroup struct {
	ID ID

	Left  *Token
	Slash *Token
	Notes []Element
	Right *Token
}

type Decoration struct {
	ID ID

	Token *Token
}

type Annotation struct {
	ID ID

	Token *Token
}

// InfoLine is a whole-line field such as `V:1 clef=treble`.
// Value contains the info strings, whitespace and a trailing comment.
type InfoLine struct {
	ID ID

	Header *Token
	Value  []*Token
}

func (l *InfoLine) Tag() string { return fieldTag(l.Header) }

func (l *InfoLine) Text() string { return tokensText(l.Value) }

// InlineField is a bracketed field inside a music line, `[K:G]`.
type InlineField struct {
	ID ID

	Left   *Token
	Header *Token
	Value  []*Token
	Right  *Token
}

func (f *InlineField) Tag() string { return fieldTag(f.Header) }

func (f *InlineField) Text() string { return tokensText(f.Value) }

type Comment struct {
	ID ID

	Token *Token
}

type Directive struct {
	ID ID

	Token *Token
}

// ErrorExpr keeps tokens the parser could not make sense of, so they
// still print.
type ErrorExpr struct {
	ID ID

	Tokens  []*Token
	Message string
}

func (n *Note) ElementID() ID             { return n.ID }
func (n *Rest) ElementID() ID             { return n.ID }
func (n *MultiMeasureRest) ElementID() ID { return n.ID }
func (n *Chord) ElementID() ID            { return n.ID }
func (n *Beam) ElementID() ID             { return n.ID }
func (n *BarLine) ElementID() ID          { return n.ID }
func (n *Tuplet) ElementID() ID           { return n.ID }
func (n *GraceGroup) ElementID() ID       { return n.ID }
func (n *Decoration) ElementID() ID       { return n.ID }
func (n *Annotation) ElementID() ID       { return n.ID }
func (n *InfoLine) ElementID() ID         { return n.ID }
func (n *InlineField) ElementID() ID      { return n.ID }
func (n *Comment) ElementID() ID          { return n.ID }
func (n *Directive) ElementID() ID        { return n.ID }
func (n *ErrorExpr) ElementID() ID        { return n.ID }

func (*Note) element()             {}
func (*Rest) element()             {}
func (*MultiMeasureRest) element() {}
func (*Chord) element()            {}
func (*Beam) element()             {}
func (*BarLine) element()          {}
func (*Tuplet) element()           {}
func (*GraceGroup) element()       {}
func (*Decoration) element()       {}
func (*Annotation) element()       {}
func (*InfoLine) element()         {}
func (*InlineField) element()      {}
func (*Comment) element()          {}
func (*Directive) element()        {}
func (*ErrorExpr) element()        {}

// IsTimed reports whether e occupies musical time within a bar.
func IsTimed(e Element) bool {
	switch e.(type) {
	case *Note, *Rest, *Chord, *Beam, *MultiMeasureRest:
		return true
	}
	return false
}

// IsWhitespace reports whether e is a whitespace token.
func IsWhitespace(e Element) bool {
	t, ok := e.(*Token)
	return ok && t.Kind == TokenWhitespace
}

// IsEOL reports whether e is an end-of-line token.
func IsEOL(e Element) bool {
	t, ok := e.(*Token)
	return ok && t.Kind == TokenEOL
}

// VoiceID returns the voice of a `V:` info line or inline field.
// The id is the first word of the value; `clef=` and other properties
// are ignored.
func VoiceID(e Element) (string, bool) {
	var value []*Token
	switch e := e.(type) {
	case *InfoLine:
		if e.Tag() != FieldVoice.Tag {
			return "", false
		}
		value = e.Value
	case *InlineField:
		if e.Tag() != FieldVoice.Tag {
			return "", false
		}
		value = e.Value
	default:
		return "", false
	}
	for _, t := range value {
		if t.Kind == TokenInfoString {
			return t.Text, true
		}
	}
	return "", true
}

func fieldTag(header *Token) string {
	if header == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(header.Text, ":"))
}

func tokensText(tokens []*Token) string {
	var s strings.Builder
	for _, t := range tokens {
		if t.Kind == TokenComment {
			break
		}
		s.WriteString(t.Text)
	}
	return strings.TrimSpace(s.String())
}
