package abc

import "fmt"

type TokenKind byte

const (
	TokenInvalid = TokenKind(iota)

	// pitch and music
	TokenAccidental
	TokenNoteLetter
	TokenOctave
	TokenRest
	TokenMultiRest
	TokenTie
	TokenDecoration
	TokenSlur
	TokenBarLine
	TokenRepeatNumber

	// rhythm
	TokenRhythmNumer
	TokenRhythmSep
	TokenRhythmDenom
	TokenRhythmBroken

	// tuplets
	TokenTupletLParen
	TokenTupletP
	TokenTupletColon
	TokenTupletQ
	TokenTupletR

	// brackets
	TokenChordLeft
	TokenChordRight
	TokenGraceLeft
	TokenGraceSlash
	TokenGraceRight
	TokenInlineFieldLeft
	TokenInlineFieldRight

	// fields
	TokenAnnotation
	TokenInfoHeader
	TokenInfoString
	TokenVoiceOverlay
	TokenLineContinuation

	// spacing
	TokenSpacer
	TokenBacktick
	TokenSystemBreak
	TokenNumber

	// structure
	TokenComment
	TokenDirective
	TokenWhitespace
	TokenEOL
	TokenFreeText
)

var tokenKindNames = [...]string{
	TokenInvalid:          "invalid",
	TokenAccidental:       "accidental",
	TokenNoteLetter:       "note-letter",
	TokenOctave:           "octave",
	TokenRest:             "rest",
	TokenMultiRest:        "multi-rest",
	TokenTie:              "tie",
	TokenDecoration:       "decoration",
	TokenSlur:             "slur",
	TokenBarLine:          "barline",
	TokenRepeatNumber:     "repeat-number",
	TokenRhythmNumer:      "rhythm-numerator",
	TokenRhythmSep:        "rhythm-separator",
	TokenRhythmDenom:      "rhythm-denominator",
	TokenRhythmBroken:     "broken-rhythm",
	TokenTupletLParen:     "tuplet-lparen",
	TokenTupletP:          "tuplet-p",
	TokenTupletColon:      "tuplet-colon",
	TokenTupletQ:          "tuplet-q",
	TokenTupletR:          "tuplet-r",
	TokenChordLeft:        "chord-left",
	TokenChordRight:       "chord-right",
	TokenGraceLeft:        "grace-left",
	TokenGraceSlash:       "grace-slash",
	TokenGraceRight:       "grace-right",
	TokenInlineFieldLeft:  "inline-field-left",
	TokenInlineFieldRight: "inline-field-right",
	TokenAnnotation:       "annotation",
	TokenInfoHeader:       "info-header",
	TokenInfoString:       "info-string",
	TokenVoiceOverlay:     "voice-overlay",
	TokenLineContinuation: "line-continuation",
	TokenSpacer:           "spacer",
	TokenBacktick:         "backtick",
	TokenSystemBreak:      "system-break",
	TokenNumber:           "number",
	TokenComment:          "comment",
	TokenDirective:        "directive",
	TokenWhitespace:       "whitespace",
	TokenEOL:              "eol",
	TokenFreeText:         "free-text",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) && tokenKindNames[k] != "" {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", byte(k))
}

// Token is the smallest lexical unit. Line and Column are 1-based and
// zero for synthesized tokens.
type Token struct {
	Kind TokenKind
	Text string

	Line, Column int

	ID ID
}

func (t *Token) String() string {
	return fmt.Sprintf("%v %q", t.Kind, t.Text)
}

func (t *Token) Is(kinds ...TokenKind) bool {
	if t == nil {
		return false
	}
	for _, k := range kinds {
		if t.Kind == k {
			return true
		}
	}
	return false
}
