package abc

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var rxNewTune = regexp.MustCompile(`(?m)^X:`)

type Parser struct {
	Book     *TuneBook
	Warnings []Warning

	gen  *IDGen
	line int
}

// NewParser creates a parser drawing identities from gen.
func NewParser(gen *IDGen) *Parser {
	return &Parser{
		Book: &TuneBook{},
		gen:  gen,
		line: 1,
	}
}

type Warning struct {
	Line, Column int
	Message      string
}

func (w Warning) String() string {
	if w.Line == 0 {
		return w.Message
	}
	return fmt.Sprintf("%d:%d: %s", w.Line, w.Column, w.Message)
}

func Parse(content string) (*TuneBook, []Warning) {
	return ParseWith(content, NewIDGen())
}

func ParseWith(content string, gen *IDGen) (*TuneBook, []Warning) {
	p := NewParser(gen)
	p.ParseBook(content)
	return p.Book, p.Warnings
}

// SplitTuneBook splits s in front of every `X:` line. The first chunk is
// the file header when s does not start with a tune. Joining the chunks
// gives back s.
func SplitTuneBook(s string) []string {
	var chunks []string

	start := 0
	for _, loc := range rxNewTune.FindAllStringIndex(s, -1) {
		if chunk := s[start:loc[0]]; chunk != "" {
			chunks = append(chunks, chunk)
		}
		start = loc[0]
	}
	if chunk := s[start:]; chunk != "" {
		chunks = append(chunks, chunk)
	}

	return chunks
}

func (p *Parser) ParseBook(content string) {
	for _, chunk := range SplitTuneBook(content) {
		if strings.HasPrefix(chunk, "X:") {
			p.ParseTune(chunk)
		} else {
			p.parseFileHeader(chunk)
		}
		p.line += strings.Count(chunk, "\n")
	}
}

func (p *Parser) scan(content string, freeText bool) [][]*Token {
	s := NewScanner(p.gen)
	s.FreeText = freeText
	lines := s.Scan(content, p.line)
	p.Warnings = append(p.Warnings, s.Warnings...)
	return lines
}

func (p *Parser) parseFileHeader(content string) {
	for _, line := range p.scan(content, true) {
		elements := p.fieldLine(line)
		p.checkFields(elements, FieldInFileHeader)
		p.Book.Header = append(p.Book.Header, elements...)
	}
}

func (p *Parser) ParseTune(content string) *Tune {
	tune := &Tune{Raw: content}

	inheader := true
	noteLengthSet := false

	var body []Element
	for _, line := range p.scan(content, false) {
		if inheader {
			switch first := firstToken(line); {
			case first == nil, first.Kind == TokenComment, first.Kind == TokenDirective:
				tune.Header = append(tune.Header, p.fieldLine(line)...)
				continue
			case first.Kind == TokenInfoHeader:
				elements := p.fieldLine(line)
				tune.Header = append(tune.Header, elements...)

				info := elements[0].(*InfoLine)
				p.checkField(info.Header, info.Tag(), FieldInTuneHeader)
				value := info.Text()
				switch info.Tag() {
				case FieldReference.Tag:
					tune.ID = value
				case FieldTitle.Tag:
					if tune.Title == "" {
						tune.Title = value
					}
				case FieldUnitNoteLength.Tag:
					n, err := ParseNoteLength(value)
					if err != nil {
						p.warnAt(info.Header, "%v", err)
						break
					}
					tune.NoteLength = n
					noteLengthSet = true
				case FieldMeter.Tag:
					m, err := ParseMeter(value)
					if err != nil {
						p.warnAt(info.Header, "%v", err)
						break
					}
					tune.Meter = m
				case FieldVoice.Tag:
					if id, ok := VoiceID(info); ok && id != "" {
						tune.addVoice(id)
					}
				case FieldKey.Tag:
					tune.Key = value
					inheader = false
				}

				tune.Fields = append(tune.Fields, Field{
					Tag:   info.Tag(),
					Value: value,
				})
				continue
			}

			// unknown line without detecting `K:` header
			inheader = false
		}

		body = append(body, p.bodyLine(line)...)
	}

	if !noteLengthSet {
		tune.NoteLength = DefaultNoteLength(tune.Meter)
	}

	// voices missing from a multi-voice header are reported while
	// partitioning
	if len(tune.Voices) < 2 {
		for _, id := range DiscoverVoices(body) {
			tune.addVoice(id)
		}
	}

	systems, voices, warnings := PartitionSystems(body, tune.Voices)
	tune.Body.Systems = systems
	tune.Voices = voices
	p.Warnings = append(p.Warnings, warnings...)

	p.Book.Tunes = append(p.Book.Tunes, tune)
	return tune
}

func firstToken(line []*Token) *Token {
	for _, t := range line {
		if t.Kind != TokenWhitespace && t.Kind != TokenEOL {
			return t
		}
	}
	return nil
}

func (p *Parser) warnAt(t *Token, format string, args ...any) {
	w := Warning{Message: fmt.Sprintf(format, args...)}
	if t != nil {
		w.Line, w.Column = t.Line, t.Column
	}
	p.Warnings = append(p.Warnings, w)
}

// checkField warns when a standard field is used outside the places
// where it is allowed.
func (p *Parser) checkField(header *Token, tag string, at FieldFlags) {
	def, ok := DefByTag(tag)
	if !ok || def.Flags&at != 0 {
		return
	}
	p.warnAt(header, "%q field (%s) not allowed in %v", tag, def.Full, at)
}

func (p *Parser) checkFields(elements []Element, at FieldFlags) {
	for _, e := range elements {
		if info, ok := e.(*InfoLine); ok {
			p.checkField(info.Header, info.Tag(), at)
		}
	}
}

// fieldLine converts a header line into elements.
func (p *Parser) fieldLine(line []*Token) []Element {
	line, eol := splitEOL(line)

	var elements []Element
	switch first := firstToken(line); {
	case first == nil:
		for _, t := range line {
			elements = append(elements, t)
		}
	case first.Kind == TokenInfoHeader && line[0] == first:
		elements = append(elements, &InfoLine{
			ID:     p.gen.Next(),
			Header: line[0],
			Value:  line[1:],
		})
	case first.Kind == TokenComment && len(line) == 1:
		elements = append(elements, &Comment{ID: p.gen.Next(), Token: first})
	case first.Kind == TokenDirective && len(line) == 1:
		elements = append(elements, &Directive{ID: p.gen.Next(), Token: first})
	default:
		for _, t := range line {
			elements = append(elements, t)
		}
	}
	if eol != nil {
		elements = append(elements, eol)
	}
	return elements
}

func (p *Parser) bodyLine(line []*Token) []Element {
	if first := firstToken(line); first != nil && first.Kind != TokenInfoHeader &&
		first.Kind != TokenComment && first.Kind != TokenDirective {
		rest, eol := splitEOL(line)
		elements := p.music(rest)
		if eol != nil {
			elements = append(elements, eol)
		}
		return elements
	}
	elements := p.fieldLine(line)
	p.checkFields(elements, FieldInTuneBody)
	return elements
}

func splitEOL(line []*Token) ([]*Token, *Token) {
	if n := len(line); n > 0 && line[n-1].Kind == TokenEOL {
		return line[:n-1], line[n-1]
	}
	return line, nil
}

// music parses the tokens of one music line.
func (p *Parser) music(tokens []*Token) []Element {
	m := &musicParser{p: p, tokens: tokens}
	var items []Element
	for m.pos < len(m.tokens) {
		items = append(items, m.atom())
	}
	return p.beams(items)
}

type musicParser struct {
	p      *Parser
	tokens []*Token
	pos    int
}

func (m *musicParser) peek() *Token {
	if m.pos < len(m.tokens) {
		return m.tokens[m.pos]
	}
	return nil
}

func (m *musicParser) next() *Token {
	t := m.peek()
	if t != nil {
		m.pos++
	}
	return t
}

func (m *musicParser) accept(kind TokenKind) *Token {
	if t := m.peek(); t.Is(kind) {
		m.pos++
		return t
	}
	return nil
}

func (m *musicParser) atom() Element {
	gen := m.p.gen
	t := m.peek()
	switch t.Kind {
	case TokenAccidental, TokenNoteLetter:
		return m.note()
	case TokenRest:
		return &Rest{ID: gen.Next(), Rest: m.next(), Rhythm: m.rhythm()}
	case TokenMultiRest:
		return &MultiMeasureRest{ID: gen.Next(), Rest: m.next(), Length: m.accept(TokenNumber)}
	case TokenChordLeft:
		return m.chord()
	case TokenGraceLeft:
		return m.grace()
	case TokenTupletLParen:
		tuplet := &Tuplet{ID: gen.Next(), LParen: m.next(), P: m.accept(TokenTupletP)}
		if tuplet.ColonQ = m.accept(TokenTupletColon); tuplet.ColonQ != nil {
			tuplet.Q = m.accept(TokenTupletQ)
			if tuplet.ColonR = m.accept(TokenTupletColon); tuplet.ColonR != nil {
				tuplet.R = m.accept(TokenTupletR)
			}
		}
		return tuplet
	case TokenBarLine:
		bar := &BarLine{ID: gen.Next(), Tokens: []*Token{m.next()}}
		if n := m.accept(TokenRepeatNumber); n != nil {
			bar.Tokens = append(bar.Tokens, n)
		}
		return bar
	case TokenDecoration:
		return &Decoration{ID: gen.Next(), Token: m.next()}
	case TokenAnnotation:
		return &Annotation{ID: gen.Next(), Token: m.next()}
	case TokenComment:
		return &Comment{ID: gen.Next(), Token: m.next()}
	case TokenInlineFieldLeft:
		return m.inlineField()
	case TokenInvalid:
		return m.next()
	case TokenChordRight, TokenGraceRight, TokenRhythmBroken, TokenGraceSlash:
		m.p.warnAt(t, "unexpected %q", t.Text)
		return m.next()
	}
	return m.next()
}

func (m *musicParser) note() Element {
	gen := m.p.gen
	pitch := &Pitch{ID: gen.Next(), Accidental: m.accept(TokenAccidental)}
	if pitch.Letter = m.accept(TokenNoteLetter); pitch.Letter == nil {
		m.p.warnAt(pitch.Accidental, "accidental without note")
		return &ErrorExpr{
			ID:      gen.Next(),
			Tokens:  []*Token{pitch.Accidental},
			Message: "accidental without note",
		}
	}
	pitch.Octave = m.accept(TokenOctave)
	return &Note{
		ID:     gen.Next(),
		Pitch:  pitch,
		Rhythm: m.rhythm(),
		Tie:    m.accept(TokenTie),
	}
}

func (m *musicParser) rhythm() *Rhythm {
	r := &Rhythm{
		Numerator:   m.accept(TokenRhythmNumer),
		Separator:   m.accept(TokenRhythmSep),
		Denominator: m.accept(TokenRhythmDenom),
		Broken:      m.accept(TokenRhythmBroken),
	}
	if r.Numerator == nil && r.Separator == nil && r.Denominator == nil && r.Broken == nil {
		return nil
	}
	r.ID = m.p.gen.Next()
	return r
}

// inside collects atoms until closing or a token that cannot appear
// inside brackets.
func (m *musicParser) inside(closing TokenKind) ([]Element, *Token) {
	var contents []Element
	for {
		t := m.peek()
		switch {
		case t == nil, t.Is(TokenBarLine, TokenChordLeft, TokenGraceLeft, TokenInlineFieldLeft, TokenComment):
			return contents, nil
		case t.Kind == closing:
			return contents, m.next()
		}
		contents = append(contents, m.atom())
	}
}

func (m *musicParser) chord() Element {
	chord := &Chord{ID: m.p.gen.Next(), Left: m.next()}
	chord.Contents, chord.Right = m.inside(TokenChordRight)
	if chord.Right == nil {
		m.p.warnAt(chord.Left, "unterminated chord")
		return chord
	}
	chord.Rhythm = m.rhythm()
	chord.Tie = m.accept(TokenTie)
	return chord
}

func (m *musicParser) grace() Element {
	grace := &GraceGroup{ID: m.p.gen.Next(), Left: m.next(), Slash: m.accept(TokenGraceSlash)}
	grace.Notes, grace.Right = m.inside(TokenGraceRight)
	if grace.Right == nil {
		m.p.warnAt(grace.Left, "unterminated grace group")
	}
	return grace
}

func (m *musicParser) inlineField() Element {
	field := &InlineField{ID: m.p.gen.Next(), Left: m.next(), Header: m.accept(TokenInfoHeader)}
	for t := m.peek(); t.Is(TokenInfoString, TokenWhitespace); t = m.peek() {
		field.Value = append(field.Value, m.next())
	}
	field.Right = m.accept(TokenInlineFieldRight)
	if field.Header != nil {
		m.p.checkField(field.Header, field.Tag(), FieldInline)
	}
	return field
}

// beams wraps runs of notes and chords written without whitespace into
// Beam nodes. A run needs at least two notes or chords.
func (p *Parser) beams(items []Element) []Element {
	var result []Element
	for i := 0; i < len(items); {
		if !beamable(items[i]) {
			result = append(result, items[i])
			i++
			continue
		}

		end, last, notes := i, -1, 0
		for ; end < len(items) && beamable(items[end]); end++ {
			switch items[end].(type) {
			case *Note, *Chord:
				notes++
				last = end
			}
		}
		if notes < 2 {
			result = append(result, items[i:end]...)
			i = end
			continue
		}

		stop := last + 1
		for stop < end && isSlur(items[stop]) {
			stop++
		}
		result = append(result, &Beam{
			ID:       p.gen.Next(),
			Contents: append([]Element(nil), items[i:stop]...),
		})
		result = append(result, items[stop:end]...)
		i = end
	}
	return result
}

func beamable(e Element) bool {
	switch e := e.(type) {
	case *Note, *Chord, *Decoration, *Annotation, *GraceGroup:
		return true
	case *Token:
		return e.Is(TokenSlur, TokenBacktick, TokenTie)
	}
	return false
}

func isSlur(e Element) bool {
	t, ok := e.(*Token)
	return ok && t.Kind == TokenSlur
}

type TuneBook struct {
	Header []Element
	Tunes  []*Tune
}

type Tune struct {
	ID     string
	Title  string
	Key    string
	Fields Fields

	NoteLength big.Rat
	Meter      Meter

	// Voices lists voice ids in discovery order: header first, then body.
	Voices []string

	Header []Element
	Body   TuneBody

	Raw string
}

func (tune *Tune) addVoice(id string) {
	for _, v := range tune.Voices {
		if v == id {
			return
		}
	}
	tune.Voices = append(tune.Voices, id)
}

type TuneBody struct {
	Systems []System
}

// System is one printed line group. Voice is the voice that owns the
// unmarked lines at the start of the system.
type System struct {
	Elements []Element
	Voice    string
}
