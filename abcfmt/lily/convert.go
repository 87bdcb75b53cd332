package lily

import (
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/egonelbre/abctools/abcfmt/abc"
	"github.com/egonelbre/abctools/abcfmt/timing"
)

// Convert writes LilyPond scores. Only the first voice of a multi-voice
// tune is converted. Constructs without a LilyPond counterpart are
// skipped and reported in Warnings.
type Convert struct {
	Output   io.Writer
	Warnings []abc.Warning
}

func (c *Convert) pf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.Output, format, args...)
}

func (c *Convert) warn(t *abc.Token, format string, args ...any) {
	w := abc.Warning{Message: fmt.Sprintf(format, args...)}
	if t != nil {
		w.Line, w.Column = t.Line, t.Column
	}
	c.Warnings = append(c.Warnings, w)
}

func (c *Convert) Tune(tune *abc.Tune) {
	c.Score(tune)
}

func (c *Convert) Score(tune *abc.Tune) {
	c.pf("\\score {\n")
	defer c.pf("}\n")

	c.Header(tune)

	c.pf("  \\new Staff{\n")
	c.pf("  \\configureStaff\n")
	defer c.pf("  }\n")

	s := &staff{
		c:           c,
		calc:        timing.ForTune(tune),
		accidentals: map[byte]int{},
	}

	if m := tune.Meter; m.BeatsPerMeasure > 0 {
		c.pf("    \\time %d/%d", m.BeatsPerMeasure, m.BeatLength)
	}
	s.setKey(tune.Key, headerToken(tune, abc.FieldKey.Tag))

	c.pf("\n")
	first := true
	for _, line := range voiceLines(tune) {
		if abc.HasMusic(line) {
			if !first {
				c.pf(" \\break\n")
			}
			c.pf("   ")
			first = false
		}
		for _, e := range line {
			s.element(e)
		}
	}
	s.closeTuplet()
	if s.insideRepeat {
		c.warn(nil, "tune %q: unclosed repeat", tune.ID)
	}
	c.pf("\n")
}

func (c *Convert) Header(tune *abc.Tune) {
	c.pf("  \\header {\n")
	defer c.pf("  }\n")

	c.pf("      piece = %q\n", tune.Title)
	for _, field := range tune.Fields {
		switch field.Tag {
		case abc.FieldComposer.Tag:
			c.pf("      composer = %q\n", field.Value)
		case abc.FieldHistory.Tag:
			c.pf("      history = %q\n", field.Value)
		}
	}
}

// voiceLines returns the body lines of the first voice.
func voiceLines(tune *abc.Tune) [][]abc.Element {
	first := ""
	if len(tune.Voices) > 0 {
		first = tune.Voices[0]
	}

	var lines [][]abc.Element
	for _, sys := range tune.Body.Systems {
		voice := sys.Voice
		for _, line := range abc.SplitLines(sys.Elements) {
			if id, _, ok := abc.LineVoice(line); ok {
				voice = id
			}
			if voice == first {
				lines = append(lines, line)
			}
		}
	}
	return lines
}

func headerToken(tune *abc.Tune, tag string) *abc.Token {
	for _, e := range tune.Header {
		if info, ok := e.(*abc.InfoLine); ok && info.Tag() == tag {
			return info.Header
		}
	}
	return nil
}

// staff is the conversion state of one voice.
type staff struct {
	c    *Convert
	calc *timing.Calculator

	key         abc.KeySignature
	accidentals map[byte]int

	tied string
	post []string

	tuplet int

	insideRepeat bool
	insideVolta  bool
}

func (s *staff) element(e abc.Element) {
	switch e := e.(type) {
	case *abc.Note:
		pitch := s.pitch(e.Pitch)
		if s.tied != "" {
			pitch, s.tied = s.tied, ""
		}
		s.emit(pitch, s.calc.BaseDuration(e.Rhythm), e.Tie)
	case *abc.Chord:
		var notes []string
		for _, x := range e.Contents {
			if n, ok := x.(*abc.Note); ok {
				notes = append(notes, s.pitch(n.Pitch))
			}
		}
		if len(notes) == 0 {
			s.c.warn(e.Left, "empty chord")
			return
		}
		pitch := "<" + strings.Join(notes, " ") + ">"
		if s.tied != "" {
			pitch, s.tied = s.tied, ""
		}
		s.emit(pitch, s.calc.BaseDuration(e.Rhythm), e.Tie)
	case *abc.Rest:
		s.tied = ""
		value := "r"
		if e.Rest.Text == "x" {
			value = "s"
		}
		s.emit(value, s.calc.BaseDuration(e.Rhythm), nil)
	case *abc.MultiMeasureRest:
		s.tied = ""
		bar := new(big.Rat).Set(&s.calc.Bar)
		if bar.Sign() == 0 {
			s.c.warn(e.Rest, "bar rest without meter")
			bar.SetInt64(1)
		}
		value := "R"
		if e.Rest.Text == "X" {
			value = "s"
		}
		value += durationString(bar)
		if n := e.Bars(); n > 1 {
			value += "*" + strconv.Itoa(n)
		}
		s.c.pf(" %s%s", value, strings.Join(s.post, ""))
		s.post = nil
	case *abc.Beam:
		for _, x := range e.Contents {
			s.element(x)
		}
	case *abc.GraceGroup:
		s.grace(e)
	case *abc.Tuplet:
		s.openTuplet(e)
	case *abc.BarLine:
		s.bar(e)
	case *abc.Decoration:
		s.decoration(e.Token)
	case *abc.Annotation:
		s.annotation(e.Token)
	case *abc.InfoLine:
		s.field(e.Header, e.Tag(), e.Text())
	case *abc.InlineField:
		s.field(e.Header, e.Tag(), e.Text())
	case *abc.Token:
		switch {
		case e.Kind == abc.TokenSlur && e.Text == "(":
			s.post = append(s.post, "(")
		case e.Kind == abc.TokenSlur:
			s.c.pf(")")
		case e.Kind == abc.TokenVoiceOverlay:
			s.c.warn(e, "voice overlay is not supported")
		}
	}
}

// emit prints a note, chord or rest with the pending post events.
func (s *staff) emit(pitch string, dur *big.Rat, tie *abc.Token) {
	text := pitch + durationString(dur)
	if tie != nil {
		text += "~"
		s.tied = pitch
	}
	s.c.pf(" %s%s", text, strings.Join(s.post, ""))
	s.post = nil

	if s.tuplet > 0 {
		s.tuplet--
		if s.tuplet == 0 {
			s.c.pf(" }")
		}
	}
}

// pitch returns the absolute LilyPond pitch, updating the accidentals
// of the current bar.
func (s *staff) pitch(p *abc.Pitch) string {
	step := p.Step()
	alter, explicit := p.Alteration()
	if explicit {
		s.accidentals[step] = alter
	} else {
		alter = s.accidentals[step]
	}

	n := string(step) + accidentalSuffix(alter)

	oct := p.OctaveNumber() + 1 + s.key.Octave
	for range iter(oct) {
		n += "'"
	}
	for range iter(-oct) {
		n += ","
	}
	return n
}

func accidentalSuffix(alter int) string {
	switch alter {
	case 1:
		return "is"
	case 2:
		return "isis"
	case -1:
		return "es"
	case -2:
		return "eses"
	}
	return ""
}

func (s *staff) grace(g *abc.GraceGroup) {
	command := `\grace`
	if g.Slash != nil {
		command = `\acciaccatura`
	}

	calc := timing.NewCalculator(s.calc.Unit, s.calc.Bar)
	var notes []string
	for _, x := range g.Notes {
		if n, ok := x.(*abc.Note); ok {
			notes = append(notes, s.pitch(n.Pitch)+durationString(calc.BaseDuration(n.Rhythm)))
		}
	}
	s.c.Warnings = append(s.c.Warnings, calc.Warnings...)
	if len(notes) > 0 {
		s.c.pf(" %s { %s }", command, strings.Join(notes, " "))
	}
}

func (s *staff) openTuplet(t *abc.Tuplet) {
	calc := timing.NewCalculator(s.calc.Unit, s.calc.Bar)
	calc.EnterTuplet(t)
	s.c.Warnings = append(s.c.Warnings, calc.Warnings...)

	ctx := calc.Tuplet()
	if ctx == nil {
		return
	}
	s.closeTuplet()
	s.c.pf(" \\tuplet %d/%d {", ctx.P, ctx.Q)
	s.tuplet = ctx.R
}

func (s *staff) closeTuplet() {
	if s.tuplet > 0 {
		s.c.pf(" }")
		s.tuplet = 0
	}
}

var decorations = map[string]string{
	".":            "-.",
	"!staccato!":   "-.",
	"!marcato!":    "-^",
	"!accent!":     "->",
	"!>!":          "->",
	"L":            "->",
	"!tenuto!":     "--",
	"!fermata!":    `\fermata`,
	"H":            `\fermata`,
	"!trill!":      `\trill`,
	"T":            `\trill`,
	"~":            `\turn`,
	"!roll!":       `\turn`,
	"!turn!":       `\turn`,
	"!mordent!":    `\mordent`,
	"M":            `\mordent`,
	"!upbow!":      `\upbow`,
	"u":            `\upbow`,
	"!downbow!":    `\downbow`,
	"v":            `\downbow`,
	"!breath!":     `\breathe`,
	"!p!":          `\p`,
	"!mp!":         `\mp`,
	"!mf!":         `\mf`,
	"!f!":          `\f`,
	"!ff!":         `\ff`,
	"!crescendo(!": `\<`,
	"!crescendo)!": `\!`,
	"!<(!":         `\<`,
	"!<)!":         `\!`,
}

func (s *staff) decoration(t *abc.Token) {
	switch t.Text {
	case "!segno!", "S":
		s.c.pf(` \segnoMark 1`)
		return
	case "!coda!", "O":
		s.c.pf(` \codaMark 1`)
		return
	}

	if post, ok := decorations[t.Text]; ok {
		s.post = append(s.post, post)
		return
	}
	s.c.warn(t, "unhandled decoration %s", t.Text)
}

func (s *staff) annotation(t *abc.Token) {
	text := strings.TrimSuffix(strings.TrimPrefix(t.Text, `"`), `"`)
	place := "^"
	if text != "" {
		switch text[0] {
		case '_':
			place, text = "_", text[1:]
		case '^', '<', '>', '@':
			text = text[1:]
		}
	}
	s.post = append(s.post, fmt.Sprintf("%s%q", place, text))
}

func (s *staff) field(header *abc.Token, tag, value string) {
	switch tag {
	case abc.FieldKey.Tag:
		s.setKey(value, header)
	case abc.FieldUnitNoteLength.Tag:
		n, err := abc.ParseNoteLength(value)
		if err != nil {
			s.c.warn(header, "%v", err)
			return
		}
		s.calc.Unit = n
	case abc.FieldMeter.Tag:
		m, err := abc.ParseMeter(value)
		if err != nil {
			s.c.warn(header, "%v", err)
			return
		}
		s.calc.Bar = m.BarLength()
		if m.BeatsPerMeasure > 0 {
			s.c.pf(" \\time %d/%d", m.BeatsPerMeasure, m.BeatLength)
		}
	}
}

func (s *staff) setKey(value string, header *abc.Token) {
	key, err := abc.ParseKey(value)
	if err != nil {
		s.c.warn(header, "%v", err)
		return
	}
	s.key = key
	s.accidentals = maps.Clone(key.Accidentals)

	if decl, ok := keyDeclaration(key.Name); ok {
		s.c.pf(" %s", decl)
	}
}

var modes = map[string]string{
	"":    `\major`,
	"m":   `\minor`,
	"mix": `\mixolydian`,
	"dor": `\dorian`,
	"phr": `\phrygian`,
	"lyd": `\lydian`,
	"loc": `\locrian`,
}

// keyDeclaration converts a normalized key name such as "f#m" or "bbmix".
func keyDeclaration(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	tonic, mode := name[:1], name[1:]
	if mode != "" {
		switch mode[0] {
		case '#':
			tonic, mode = tonic+"is", mode[1:]
		case 'b':
			tonic, mode = tonic+"es", mode[1:]
		}
	}
	decl, ok := modes[mode]
	if !ok {
		return "", false
	}
	return fmt.Sprintf(`\key %s %s`, tonic, decl), true
}

func (s *staff) bar(b *abc.BarLine) {
	s.accidentals = maps.Clone(s.key.Accidentals)
	s.calc.ResetBar()

	volta := b.Volta()
	switch text := b.Text(); text {
	case "|":
		s.c.pf(` |`)
		s.repeat(nil, volta, false)
	case "[":
		s.repeat(nil, volta, false)
	case "||":
		s.c.pf(` \bar "||"`)
		s.repeat(nil, volta, true)
	case "[|":
		s.c.pf(` \bar ".|"`)
		s.repeat(nil, volta, true)
	case "|]":
		if s.insideRepeat {
			s.c.warn(b.Tokens[0], "final bar inside repeat")
			s.insideRepeat = false
		}
		s.repeat(nil, volta, true)
		s.c.pf(` \bar "|."`)
	case "::", ":|:", ":||:":
		s.insideRepeat = true
		s.repeat([]string{"end-repeat", "start-repeat"}, volta, true)
	case "|:", "||:", "[|:":
		var commands []string
		if s.insideRepeat {
			commands = append(commands, "end-repeat")
		}
		s.insideRepeat = true
		s.repeat(append(commands, "start-repeat"), volta, true)
	case ":|", ":||", ":|]", ":]", "::|":
		s.insideRepeat = false
		s.repeat([]string{"end-repeat"}, volta, true)
	default:
		s.c.warn(b.Tokens[0], "unhandled bar %s", text)
		s.c.pf(` |`)
	}
}

// repeat prints repeat commands together with the volta changes.
func (s *staff) repeat(commands []string, volta string, closeVolta bool) {
	switch {
	case volta != "":
		if s.insideVolta {
			commands = append(commands, "(volta #f)")
		}
		commands = append(commands, fmt.Sprintf("(volta %q)", volta))
		s.insideVolta = true
	case s.insideVolta && closeVolta:
		commands = append(commands, "(volta #f)")
		s.insideVolta = false
	}
	if len(commands) > 0 {
		s.c.pf(` \set Score.repeatCommands = #'(%s)`, strings.Join(commands, " "))
	}
}

func iter(n int) []struct{} {
	if n > 0 {
		return make([]struct{}, n)
	}
	return nil
}

// durationString formats a duration given as a fraction of a whole
// note. Lengths without a plain or dotted form use a multiplier.
func durationString(dur *big.Rat) string {
	num := dur.Num().Int64()
	denom := dur.Denom().Int64()

	if denom&(denom-1) != 0 {
		return fmt.Sprintf("1*%d/%d", num, denom)
	}
	switch {
	case num == 1:
		return strconv.FormatInt(denom, 10)
	case num == 3 && denom >= 2:
		return strconv.FormatInt(denom/2, 10) + "."
	case num == 7 && denom >= 4:
		return strconv.FormatInt(denom/4, 10) + ".."
	case num == 2 && denom == 1:
		return `\breve`
	}
	return fmt.Sprintf("%d*%d", denom, num)
}
