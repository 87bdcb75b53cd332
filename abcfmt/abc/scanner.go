package abc

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Scanner splits ABC text into lines of tokens. Every scan loop only
// moves forward, so scanning is linear in the input length.
type Scanner struct {
	// FreeText makes lines that are not fields, comments or directives
	// scan as a single free text token, as in the file header.
	FreeText bool

	Warnings []Warning

	gen *IDGen

	line  int
	src   string
	pos   int
	start int

	tokens []*Token
}

func NewScanner(gen *IDGen) *Scanner {
	return &Scanner{gen: gen}
}

// Scan returns the tokens of content grouped by line; each line except
// possibly the last ends with an EOL token. firstLine is the 1-based
// line number of the first line.
func (s *Scanner) Scan(content string, firstLine int) [][]*Token {
	var lines [][]*Token
	s.line = firstLine
	for len(content) > 0 {
		text, eol := content, ""
		if i := strings.IndexByte(content, '\n'); i >= 0 {
			text, eol = content[:i], "\n"
			content = content[i+1:]
			if strings.HasSuffix(text, "\r") {
				text, eol = text[:len(text)-1], "\r\n"
			}
		} else {
			content = ""
		}

		s.tokens = nil
		s.scanLine(text)
		if eol != "" {
			s.tokens = append(s.tokens, &Token{
				Kind:   TokenEOL,
				Text:   eol,
				Line:   s.line,
				Column: len(text) + 1,
				ID:     s.gen.Next(),
			})
		}
		lines = append(lines, s.tokens)
		s.line++
	}
	return lines
}

func (s *Scanner) warn(column int, format string, args ...any) {
	s.Warnings = append(s.Warnings, Warning{
		Line:    s.line,
		Column:  column,
		Message: fmt.Sprintf(format, args...),
	})
}

func (s *Scanner) emit(kind TokenKind) {
	if s.pos <= s.start {
		return
	}
	s.tokens = append(s.tokens, &Token{
		Kind:   kind,
		Text:   s.src[s.start:s.pos],
		Line:   s.line,
		Column: s.start + 1,
		ID:     s.gen.Next(),
	})
	s.start = s.pos
}

func (s *Scanner) emitN(kind TokenKind, n int) {
	s.pos += n
	if s.pos > len(s.src) {
		s.pos = len(s.src)
	}
	s.emit(kind)
}

func (s *Scanner) peek(offset int) byte {
	if s.pos+offset < len(s.src) {
		return s.src[s.pos+offset]
	}
	return 0
}

func (s *Scanner) skip(accept func(c byte) bool) {
	for s.pos < len(s.src) && accept(s.src[s.pos]) {
		s.pos++
	}
}

func (s *Scanner) scanLine(text string) {
	s.src, s.pos, s.start = text, 0, 0
	switch {
	case text == "":
	case strings.HasPrefix(text, "%%"):
		s.pos = len(text)
		s.emit(TokenDirective)
	case text[0] == '%':
		s.pos = len(text)
		s.emit(TokenComment)
	case isInfoLine(text):
		s.emitN(TokenInfoHeader, 2)
		s.infoValue(len(text), true)
	case s.FreeText:
		s.pos = len(text)
		s.emit(TokenFreeText)
	default:
		s.music()
	}
}

func isInfoLine(text string) bool {
	return len(text) >= 2 && text[1] == ':' && (isLetter(text[0]) || text[0] == '+')
}

// infoValue scans field content up to end as info strings separated by
// whitespace, with an optional trailing comment.
func (s *Scanner) infoValue(end int, comments bool) {
	for s.pos < end {
		c := s.src[s.pos]
		switch {
		case isSpace(c):
			for s.pos < end && isSpace(s.src[s.pos]) {
				s.pos++
			}
			s.emit(TokenWhitespace)
		case c == '%' && comments:
			s.pos = end
			s.emit(TokenComment)
		default:
			for s.pos < end {
				c := s.src[s.pos]
				if isSpace(c) || (c == '%' && comments) {
					break
				}
				if c == '\\' && s.pos+1 < end {
					s.pos++
				}
				s.pos++
			}
			s.emit(TokenInfoString)
		}
	}
}

func (s *Scanner) music() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case isSpace(c):
			s.skip(isSpace)
			s.emit(TokenWhitespace)
		case c == '%':
			s.pos = len(s.src)
			s.emit(TokenComment)
		case c == '\\':
			s.emitN(TokenLineContinuation, 1)
		case c == '"':
			s.annotation()
		case c == '!' || c == '+':
			s.symbol(c)
		case c == '[':
			s.bracket()
		case c == ']':
			s.emitN(TokenChordRight, 1)
			s.rhythm()
		case c == '|' || c == ':':
			s.barline()
		case c == '{':
			s.emitN(TokenGraceLeft, 1)
			if s.peek(0) == '/' {
				s.emitN(TokenGraceSlash, 1)
			}
		case c == '}':
			s.emitN(TokenGraceRight, 1)
		case c == '(':
			if isDigit(s.peek(1)) {
				s.tuplet()
			} else {
				s.emitN(TokenSlur, 1)
			}
		case c == ')':
			s.emitN(TokenSlur, 1)
		case c == '^' || c == '_' || c == '=':
			s.accidental()
		case isNoteLetter(c):
			s.emitN(TokenNoteLetter, 1)
			s.skip(func(c byte) bool { return c == '\'' || c == ',' })
			s.emit(TokenOctave)
			s.rhythm()
		case c == 'z' || c == 'x':
			s.emitN(TokenRest, 1)
			s.rhythm()
		case c == 'Z' || c == 'X':
			s.emitN(TokenMultiRest, 1)
			s.skip(isDigit)
			s.emit(TokenNumber)
		case c == '-':
			s.emitN(TokenTie, 1)
		case c == '<' || c == '>':
			s.skip(isBroken)
			s.emit(TokenRhythmBroken)
		case strings.IndexByte(".~HLMOPRSTuv", c) >= 0:
			s.emitN(TokenDecoration, 1)
		case c == 'y':
			s.emitN(TokenSpacer, 1)
		case c == '`':
			s.skip(func(c byte) bool { return c == '`' })
			s.emit(TokenBacktick)
		case c == '&':
			s.emitN(TokenVoiceOverlay, 1)
		case c == '$':
			s.emitN(TokenSystemBreak, 1)
		case isDigit(c):
			s.skip(isDigit)
			s.emit(TokenNumber)
		default:
			_, size := utf8.DecodeRuneInString(s.src[s.pos:])
			s.warn(s.pos+1, "unexpected %q", s.src[s.pos:s.pos+size])
			s.emitN(TokenInvalid, size)
		}
	}
}

func (s *Scanner) rhythm() {
	s.skip(isDigit)
	s.emit(TokenRhythmNumer)
	if s.peek(0) == '/' {
		s.skip(func(c byte) bool { return c == '/' })
		s.emit(TokenRhythmSep)
		s.skip(isDigit)
		s.emit(TokenRhythmDenom)
	}
	s.skip(isBroken)
	s.emit(TokenRhythmBroken)
}

func (s *Scanner) accidental() {
	c := s.src[s.pos]
	s.pos++
	switch next := s.peek(0); {
	case c != '=' && next == c:
		s.pos++
	case c != '=' && next == '/':
		s.pos++
	}
	s.emit(TokenAccidental)
}

func (s *Scanner) annotation() {
	s.pos++
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case '\\':
			s.pos += 2
			continue
		case '"':
			s.pos++
			s.emit(TokenAnnotation)
			return
		}
		s.pos++
	}
	if s.pos > len(s.src) {
		s.pos = len(s.src)
	}
	s.warn(s.start+1, "unterminated annotation")
	s.emit(TokenAnnotation)
}

func (s *Scanner) symbol(delim byte) {
	end := strings.IndexByte(s.src[s.pos+1:], delim)
	if end < 0 {
		s.warn(s.pos+1, "unterminated decoration %q", string(delim))
		s.emitN(TokenInvalid, 1)
		return
	}
	s.emitN(TokenDecoration, end+2)
}

func (s *Scanner) bracket() {
	next := s.peek(1)
	switch {
	case next == '|':
		s.barline()
	case isDigit(next):
		s.emitN(TokenBarLine, 1)
		s.repeatNumbers()
	case isLetter(next) && s.peek(2) == ':':
		s.emitN(TokenInlineFieldLeft, 1)
		s.emitN(TokenInfoHeader, 2)
		end := strings.IndexByte(s.src[s.pos:], ']')
		if end < 0 {
			s.warn(s.start+1, "unterminated inline field")
			s.infoValue(len(s.src), false)
			return
		}
		s.infoValue(s.pos+end, false)
		s.emitN(TokenInlineFieldRight, 1)
	default:
		s.emitN(TokenChordLeft, 1)
	}
}

func (s *Scanner) barline() {
scan:
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == ':' || c == '|':
		case c == '[' && s.peek(1) == '|':
		case c == ']' && s.pos > s.start && s.src[s.pos-1] == '|':
		default:
			break scan
		}
		s.pos++
	}
	if s.src[s.start:s.pos] == ":" {
		s.warn(s.start+1, "unexpected %q", ":")
		s.emit(TokenInvalid)
		return
	}
	s.emit(TokenBarLine)
	s.repeatNumbers()
}

func (s *Scanner) repeatNumbers() {
	if !isDigit(s.peek(0)) {
		return
	}
	s.skip(func(c byte) bool { return isDigit(c) || c == ',' || c == '-' })
	s.emit(TokenRepeatNumber)
}

func (s *Scanner) tuplet() {
	s.emitN(TokenTupletLParen, 1)
	s.skip(isDigit)
	s.emit(TokenTupletP)
	if s.peek(0) != ':' {
		return
	}
	s.emitN(TokenTupletColon, 1)
	s.skip(isDigit)
	s.emit(TokenTupletQ)
	if s.peek(0) != ':' {
		return
	}
	s.emitN(TokenTupletColon, 1)
	s.skip(isDigit)
	s.emit(TokenTupletR)
}

func isSpace(c byte) bool      { return c == ' ' || c == '\t' }
func isDigit(c byte) bool      { return '0' <= c && c <= '9' }
func isLetter(c byte) bool     { return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') }
func isNoteLetter(c byte) bool { return ('a' <= c && c <= 'g') || ('A' <= c && c <= 'G') }
func isBroken(c byte) bool     { return c == '<' || c == '>' }
