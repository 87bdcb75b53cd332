package midi

import (
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/egonelbre/abctools/abcfmt/abc"
	"github.com/egonelbre/abctools/abcfmt/timing"
)

const (
	DefaultTempo           = 120
	DefaultTicksPerQuarter = 480
	DefaultVelocity        = 80
)

// Options configures the export. Zero values use the defaults.
type Options struct {
	// Tempo is in quarter notes per minute; the tune's Q: field wins.
	Tempo           int
	TicksPerQuarter int
	Velocity        uint8
}

func (opts *Options) defaults() {
	if opts.Tempo <= 0 {
		opts.Tempo = DefaultTempo
	}
	if opts.TicksPerQuarter <= 0 {
		opts.TicksPerQuarter = DefaultTicksPerQuarter
	}
	if opts.Velocity == 0 {
		opts.Velocity = DefaultVelocity
	}
}

// Export converts a tune into a format 1 file. The first track carries
// tempo and meter; every voice gets its own track and channel.
func Export(tune *abc.Tune, opts Options) (*smf.SMF, []abc.Warning) {
	opts.defaults()

	ex := &exporter{opts: opts}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(opts.TicksPerQuarter)

	tempo := float64(opts.Tempo)
	if field, ok := tune.Fields.ByTag(abc.FieldTempo.Tag); ok {
		bpm, err := ParseTempo(field.Value)
		if err != nil {
			ex.warn(headerToken(tune, abc.FieldTempo.Tag), "%v", err)
		} else {
			tempo = bpm
		}
	}

	conductor := &track{}
	conductor.add(0, 0, smf.MetaTrackSequenceName(tune.Title))
	conductor.add(0, 0, smf.MetaTempo(tempo))
	if m := tune.Meter; m.BeatsPerMeasure > 0 {
		conductor.add(0, 0, smf.MetaMeter(uint8(m.BeatsPerMeasure), uint8(m.BeatLength)))
	}

	ids, lines := voiceLines(tune)
	var tracks []*track
	for i, id := range ids {
		v := ex.newVoice(tune, uint8(i%16))
		if i == 0 {
			v.conductor = conductor
		}
		v.track.add(0, 0, smf.MetaTrackSequenceName(trackName(tune, id)))
		for _, line := range lines[id] {
			for _, e := range line {
				v.element(e)
			}
		}
		v.releaseTied()
		ex.warnings = append(ex.warnings, v.calc.Warnings...)
		tracks = append(tracks, v.track)
	}

	for _, t := range append([]*track{conductor}, tracks...) {
		s.Tracks = append(s.Tracks, t.build())
	}
	return s, ex.warnings
}

// Write serializes the file.
func Write(w io.Writer, s *smf.SMF) error {
	_, err := s.WriteTo(w)
	return errors.Wrap(err, "failed to write midi")
}

// ParseTempo returns quarter notes per minute from a Q: value such as
// "120", "1/4=120" or `"Allegro" 3/8=60`.
func ParseTempo(value string) (float64, error) {
	text := value
	for strings.Count(text, `"`) >= 2 {
		start := strings.Index(text, `"`)
		end := strings.Index(text[start+1:], `"`) + start + 1
		text = text[:start] + text[end+1:]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, errors.Errorf("tempo %q has no beats per minute", value)
	}

	beat := big.NewRat(1, 4)
	if before, after, ok := strings.Cut(text, "="); ok {
		beat = new(big.Rat)
		for _, part := range strings.Fields(before) {
			var r big.Rat
			if _, ok := r.SetString(part); !ok || r.Sign() <= 0 {
				return 0, errors.Errorf("invalid tempo beat %q", part)
			}
			beat.Add(beat, &r)
		}
		if beat.Sign() == 0 {
			beat.SetFrac64(1, 4)
		}
		text = strings.TrimSpace(after)
	}

	bpm, err := strconv.Atoi(text)
	if err != nil || bpm <= 0 {
		return 0, errors.Errorf("invalid tempo %q", value)
	}

	quarters := new(big.Rat).Mul(big.NewRat(int64(bpm), 1), beat)
	quarters.Mul(quarters, big.NewRat(4, 1))
	f, _ := quarters.Float64()
	return f, nil
}

// voiceLines groups the body lines by voice in declaration order. Lines
// before the first voice marker belong to the first voice.
func voiceLines(tune *abc.Tune) ([]string, map[string][][]abc.Element) {
	ids := slices.Clone(tune.Voices)
	if len(ids) == 0 {
		ids = []string{""}
	}

	lines := map[string][][]abc.Element{}
	for _, sys := range tune.Body.Systems {
		voice := sys.Voice
		for _, line := range abc.SplitLines(sys.Elements) {
			if id, _, ok := abc.LineVoice(line); ok {
				voice = id
			}
			target := voice
			if !slices.Contains(ids, target) {
				target = ids[0]
			}
			lines[target] = append(lines[target], line)
		}
	}
	return ids, lines
}

func trackName(tune *abc.Tune, id string) string {
	if id == "" {
		return tune.Title
	}
	return id
}

func headerToken(tune *abc.Tune, tag string) *abc.Token {
	for _, e := range tune.Header {
		if info, ok := e.(*abc.InfoLine); ok && info.Tag() == tag {
			return info.Header
		}
	}
	return nil
}

type exporter struct {
	opts     Options
	warnings []abc.Warning
}

func (ex *exporter) warn(t *abc.Token, format string, args ...any) {
	w := abc.Warning{Message: fmt.Sprintf(format, args...)}
	if t != nil {
		w.Line, w.Column = t.Line, t.Column
	}
	ex.warnings = append(ex.warnings, w)
}

// ticks converts a position in whole notes to ticks, rounding to nearest.
func (ex *exporter) ticks(at *big.Rat) int64 {
	t := new(big.Rat).Mul(at, big.NewRat(int64(4*ex.opts.TicksPerQuarter), 1))
	t.Add(t, big.NewRat(1, 2))
	return new(big.Int).Quo(t.Num(), t.Denom()).Int64()
}

// event is a message at an absolute tick. Lower order sorts first at the
// same tick so that note offs precede note ons.
type event struct {
	tick  int64
	order int
	msg   []byte
}

type track struct {
	events []event
}

func (t *track) add(tick int64, order int, msg []byte) {
	t.events = append(t.events, event{tick: tick, order: order, msg: msg})
}

func (t *track) build() smf.Track {
	slices.SortStableFunc(t.events, func(a, b event) bool {
		if a.tick != b.tick {
			return a.tick < b.tick
		}
		return a.order < b.order
	})

	var tr smf.Track
	var last int64
	for _, ev := range t.events {
		tr.Add(uint32(ev.tick-last), ev.msg)
		last = ev.tick
	}
	tr.Close(0)
	return tr
}

const (
	orderMeta = iota
	orderNoteOff
	orderNoteOn
)

// voice is the export state of one voice.
type voice struct {
	ex        *exporter
	track     *track
	conductor *track
	channel   uint8

	calc        *timing.Calculator
	key         abc.KeySignature
	accidentals map[byte]int

	now  big.Rat
	tied map[int]bool
}

func (ex *exporter) newVoice(tune *abc.Tune, channel uint8) *voice {
	v := &voice{
		ex:      ex,
		track:   &track{},
		channel: channel,
		calc:    timing.ForTune(tune),
		tied:    map[int]bool{},
	}
	v.setKey(tune.Key, headerToken(tune, abc.FieldKey.Tag))
	return v
}

func (v *voice) element(e abc.Element) {
	switch e := e.(type) {
	case *abc.Note:
		dur := v.calc.Duration(e)
		v.sound(dur, []*abc.Note{e}, e.Tie != nil)
	case *abc.Chord:
		dur := v.calc.Duration(e)
		var notes []*abc.Note
		for _, x := range e.Contents {
			if n, ok := x.(*abc.Note); ok {
				notes = append(notes, n)
			}
		}
		v.sound(dur, notes, e.Tie != nil)
	case *abc.Rest:
		dur := v.calc.Duration(e)
		v.releaseTied()
		v.advance(dur)
	case *abc.MultiMeasureRest:
		v.calc.Duration(e)
		v.releaseTied()
		bar := new(big.Rat).Set(&v.calc.Bar)
		if bar.Sign() == 0 {
			v.ex.warn(e.Rest, "bar rest without meter")
			bar.SetInt64(1)
		}
		bar.Mul(bar, big.NewRat(int64(e.Bars()), 1))
		v.now.Add(&v.now, bar)
	case *abc.Beam:
		for _, x := range e.Contents {
			v.element(x)
		}
	case *abc.Tuplet:
		v.calc.Duration(e)
	case *abc.BarLine:
		v.calc.Duration(e)
		v.accidentals = maps.Clone(v.key.Accidentals)
	case *abc.InfoLine:
		v.field(e.Header, e.Tag(), e.Text())
	case *abc.InlineField:
		v.field(e.Header, e.Tag(), e.Text())
	}
}

// sound plays notes together for dur. Tied notes that continue are not
// struck again; tied notes that do not continue are released first.
func (v *voice) sound(dur timing.TimeStamp, notes []*abc.Note, chordTie bool) {
	if dur.IsInfinite() {
		return
	}
	start := v.ex.ticks(&v.now)

	keys := map[int]bool{}
	for _, n := range notes {
		keys[v.key0(n.Pitch)] = true
	}
	for k := range v.tied {
		if !keys[k] {
			v.track.add(start, orderNoteOff, midi.NoteOff(v.channel, uint8(k)))
			delete(v.tied, k)
		}
	}

	v.now.Add(&v.now, dur.Rat())
	end := v.ex.ticks(&v.now)

	for _, n := range notes {
		k := v.pitch(n.Pitch)
		if k < 0 || k > 127 {
			v.ex.warn(n.Pitch.Letter, "note %s out of range", abc.String(n))
			continue
		}
		if v.tied[k] {
			delete(v.tied, k)
		} else {
			v.track.add(start, orderNoteOn, midi.NoteOn(v.channel, uint8(k), v.ex.opts.Velocity))
		}
		if chordTie || n.Tie != nil {
			v.tied[k] = true
			continue
		}
		v.track.add(end, orderNoteOff, midi.NoteOff(v.channel, uint8(k)))
	}
}

func (v *voice) advance(dur timing.TimeStamp) {
	if dur.IsInfinite() {
		return
	}
	v.now.Add(&v.now, dur.Rat())
}

func (v *voice) releaseTied() {
	tick := v.ex.ticks(&v.now)
	keys := maps.Keys(v.tied)
	slices.Sort(keys)
	for _, k := range keys {
		v.track.add(tick, orderNoteOff, midi.NoteOff(v.channel, uint8(k)))
	}
	v.tied = map[int]bool{}
}

// key0 returns the key number without recording the accidental.
func (v *voice) key0(p *abc.Pitch) int {
	alter, explicit := p.Alteration()
	if !explicit {
		alter = v.accidentals[p.Step()]
	}
	return p.MIDI(alter) + 12*v.key.Octave
}

// pitch returns the key number, updating the accidentals of the bar.
func (v *voice) pitch(p *abc.Pitch) int {
	if alter, explicit := p.Alteration(); explicit {
		v.accidentals[p.Step()] = alter
	}
	return v.key0(p)
}

func (v *voice) field(header *abc.Token, tag, value string) {
	switch tag {
	case abc.FieldKey.Tag:
		v.setKey(value, header)
	case abc.FieldUnitNoteLength.Tag:
		n, err := abc.ParseNoteLength(value)
		if err != nil {
			v.ex.warn(header, "%v", err)
			return
		}
		v.calc.Unit = n
	case abc.FieldMeter.Tag:
		m, err := abc.ParseMeter(value)
		if err != nil {
			v.ex.warn(header, "%v", err)
			return
		}
		v.calc.Bar = m.BarLength()
		if v.conductor != nil && m.BeatsPerMeasure > 0 {
			v.conductor.add(v.ex.ticks(&v.now), orderMeta, smf.MetaMeter(uint8(m.BeatsPerMeasure), uint8(m.BeatLength)))
		}
	case abc.FieldTempo.Tag:
		if v.conductor == nil {
			return
		}
		bpm, err := ParseTempo(value)
		if err != nil {
			v.ex.warn(header, "%v", err)
			return
		}
		v.conductor.add(v.ex.ticks(&v.now), orderMeta, smf.MetaTempo(bpm))
	}
}

func (v *voice) setKey(value string, header *abc.Token) {
	key, err := abc.ParseKey(value)
	if err != nil {
		v.ex.warn(header, "%v", err)
		return
	}
	v.key = key
	v.accidentals = maps.Clone(key.Accidentals)
}
