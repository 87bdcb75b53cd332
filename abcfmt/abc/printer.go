package abc

import (
	"io"
	"strings"
)

// Printer renders elements back to ABC text.
type Printer struct{}

// Render implements the stringify capability used by the aligner.
func (Printer) Render(elements ...Element) string {
	return String(elements...)
}

func String(elements ...Element) string {
	var s strings.Builder
	for _, e := range elements {
		writeElement(&s, e)
	}
	return s.String()
}

func (book *TuneBook) String() string {
	var s strings.Builder
	_, _ = book.WriteTo(&s)
	return s.String()
}

func (book *TuneBook) WriteTo(w io.Writer) (int64, error) {
	var s strings.Builder
	for _, e := range book.Header {
		writeElement(&s, e)
	}
	for _, tune := range book.Tunes {
		tune.write(&s)
	}
	n, err := io.WriteString(w, s.String())
	return int64(n), err
}

func (tune *Tune) String() string {
	var s strings.Builder
	tune.write(&s)
	return s.String()
}

func (tune *Tune) write(s *strings.Builder) {
	for _, e := range tune.Header {
		writeElement(s, e)
	}
	for _, sys := range tune.Body.Systems {
		for _, e := range sys.Elements {
			writeElement(s, e)
		}
	}
}

func (sys System) String() string { return String(sys.Elements...) }

func writeTokens(s *strings.Builder, tokens ...*Token) {
	for _, t := range tokens {
		if t != nil {
			s.WriteString(t.Text)
		}
	}
}

func writeRhythm(s *strings.Builder, r *Rhythm) {
	if r != nil {
		writeTokens(s, r.Numerator, r.Separator, r.Denominator, r.Broken)
	}
}

func writeElement(s *strings.Builder, e Element) {
	switch e := e.(type) {
	case nil:
	case *Token:
		writeTokens(s, e)
	case *Note:
		if e.Pitch != nil {
			writeTokens(s, e.Pitch.Accidental, e.Pitch.Letter, e.Pitch.Octave)
		}
		writeRhythm(s, e.Rhythm)
		writeTokens(s, e.Tie)
	case *Rest:
		writeTokens(s, e.Rest)
		writeRhythm(s, e.Rhythm)
	case *MultiMeasureRest:
		writeTokens(s, e.Rest, e.Length)
	case *Chord:
		writeTokens(s, e.Left)
		for _, c := range e.Contents {
			writeElement(s, c)
		}
		writeTokens(s, e.Right)
		writeRhythm(s, e.Rhythm)
		writeTokens(s, e.Tie)
	case *Beam:
		for _, c := range e.Contents {
			writeElement(s, c)
		}
	case *BarLine:
		writeTokens(s, e.Tokens...)
	case *Tuplet:
		writeTokens(s, e.LParen, e.P, e.ColonQ, e.Q, e.ColonR, e.R)
	case *GraceGroup:
		writeTokens(s, e.Left, e.Slash)
		for _, c := range e.Notes {
			writeElement(s, c)
		}
		writeTokens(s, e.Right)
	case *Decoration:
		writeTokens(s, e.Token)
	case *Annotation:
		writeTokens(s, e.Token)
	case *InfoLine:
		writeTokens(s, e.Header)
		writeTokens(s, e.Value...)
	case *InlineField:
		writeTokens(s, e.Left, e.Header)
		writeTokens(s, e.Value...)
		writeTokens(s, e.Right)
	case *Comment:
		writeTokens(s, e.Token)
	case *Directive:
		writeTokens(s, e.Token)
	case *ErrorExpr:
		writeTokens(s, e.Tokens...)
	default:
		panic("unhandled element")
	}
}
