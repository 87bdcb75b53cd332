package abc

import "fmt"

// SplitLines splits elements after every EOL token.
func SplitLines(elements []Element) [][]Element {
	var lines [][]Element
	start := 0
	for i, e := range elements {
		if IsEOL(e) {
			lines = append(lines, elements[start:i+1])
			start = i + 1
		}
	}
	if start < len(elements) {
		lines = append(lines, elements[start:])
	}
	return lines
}

// LineVoice returns the voice selected by a line that starts with a
// `V:` info line or a `[V:]` inline field.
func LineVoice(line []Element) (id string, marker Element, ok bool) {
	for _, e := range line {
		if IsWhitespace(e) {
			continue
		}
		id, ok := VoiceID(e)
		if !ok {
			return "", nil, false
		}
		return id, e, true
	}
	return "", nil, false
}

// HasMusic reports whether the line contains notes, rests or barlines.
func HasMusic(line []Element) bool {
	for _, e := range line {
		if _, ok := e.(*BarLine); ok || IsTimed(e) {
			return true
		}
	}
	return false
}

// DiscoverVoices lists the voices selected in the body in first-seen
// order.
func DiscoverVoices(elements []Element) []string {
	var voices []string
	seen := map[string]bool{}
	for _, line := range SplitLines(elements) {
		id, _, ok := LineVoice(line)
		if !ok || id == "" || seen[id] {
			continue
		}
		seen[id] = true
		voices = append(voices, id)
	}
	return voices
}

// BarRange is the inclusive range of bar numbers a voice line covers.
type BarRange struct {
	First, Last int
}

func (r BarRange) Overlaps(o BarRange) bool {
	return r.First <= o.Last && o.First <= r.Last
}

// LineBars returns the bar range of a line starting at bar counter and
// the counter for the following line.
func LineBars(line []Element, counter int) (BarRange, int) {
	bars := 0
	closed := false
	for _, e := range line {
		switch e.(type) {
		case *BarLine:
			bars++
			closed = true
		case *Note, *Rest, *Chord, *Beam, *MultiMeasureRest:
			closed = false
		}
	}
	last := counter + bars
	if closed && bars > 0 {
		last--
	}
	return BarRange{First: counter, Last: last}, counter + bars
}

// PartitionSystems groups the body of a tune into systems.
//
// With fewer than two voices every line is a system. Otherwise a new
// system starts when a voice marker refers back to a voice at or before
// the previous marker, when a voice gets a second music line, when an
// undeclared voice appears or when a voice line's bar range does not
// overlap the ranges already in the system. Voices that are not in
// voices are appended to the returned list.
func PartitionSystems(elements []Element, voices []string) ([]System, []string, []Warning) {
	lines := SplitLines(elements)
	voices = append([]string(nil), voices...)

	if len(voices) < 2 {
		var systems []System
		voice := ""
		if len(voices) == 1 {
			voice = voices[0]
		}
		for _, line := range lines {
			systems = append(systems, System{Elements: line, Voice: voice})
		}
		return systems, voices, nil
	}

	p := &partitioner{
		voices:    voices,
		index:     map[string]int{},
		ranges:    map[string]BarRange{},
		counters:  map[string]int{},
		lastIndex: -1,
	}
	for i, v := range voices {
		p.index[v] = i
	}

	for _, line := range lines {
		if id, marker, ok := LineVoice(line); ok {
			p.marker(id, marker)
			p.pending = append(p.pending, line...)
			if HasMusic(line) {
				p.music(line)
			}
			continue
		}
		if HasMusic(line) && p.voice != "" {
			p.pending = append(p.pending, line...)
			p.music(line)
			continue
		}
		if p.inPending {
			p.pending = append(p.pending, line...)
		} else {
			p.current.Elements = append(p.current.Elements, line...)
		}
	}
	p.finish()

	return p.systems, p.voices, p.warnings
}

type partitioner struct {
	voices []string
	index  map[string]int

	systems  []System
	current  System
	hasMusic bool
	ranges   map[string]BarRange

	counters  map[string]int
	lastIndex int
	voice     string
	forced    bool

	// pending holds a voice marker and the lines after it until the
	// voice's first music line decides which system they belong to.
	pending   []Element
	inPending bool

	warnings []Warning
}

func (p *partitioner) marker(id string, marker Element) {
	p.flushPending()

	idx, known := p.index[id]
	if !known {
		idx = len(p.voices)
		p.voices = append(p.voices, id)
		p.index[id] = idx
		p.forced = true

		w := Warning{Message: fmt.Sprintf("undeclared voice %q", id)}
		if t := firstElementToken(marker); t != nil {
			w.Line, w.Column = t.Line, t.Column
		}
		p.warnings = append(p.warnings, w)
	}

	if p.hasMusic && idx <= p.lastIndex {
		p.breakSystem()
	}
	p.lastIndex = idx
	p.voice = id
	p.inPending = true
}

func (p *partitioner) music(line []Element) {
	r, next := LineBars(line, p.counters[p.voice])

	if p.hasMusic {
		_, again := p.ranges[p.voice]
		if p.forced || again || !p.overlapsAny(r) {
			p.breakSystem()
		}
	}
	if len(p.current.Elements) == 0 && !p.hasMusic {
		p.current.Voice = p.voice
	}

	p.current.Elements = append(p.current.Elements, p.pending...)
	p.pending, p.inPending = nil, false

	p.ranges[p.voice] = r
	p.counters[p.voice] = next
	p.hasMusic = true
	p.forced = false
}

func (p *partitioner) overlapsAny(r BarRange) bool {
	if len(p.ranges) == 0 {
		return true
	}
	for _, other := range p.ranges {
		if r.Overlaps(other) {
			return true
		}
	}
	return false
}

func (p *partitioner) flushPending() {
	p.current.Elements = append(p.current.Elements, p.pending...)
	p.pending, p.inPending = nil, false
}

func (p *partitioner) breakSystem() {
	p.systems = append(p.systems, p.current)
	p.current = System{Voice: p.voice}
	p.hasMusic = false
	p.ranges = map[string]BarRange{}
}

func (p *partitioner) finish() {
	p.flushPending()
	if len(p.current.Elements) == 0 {
		return
	}
	if !p.hasMusic && len(p.systems) > 0 {
		last := &p.systems[len(p.systems)-1]
		last.Elements = append(last.Elements, p.current.Elements...)
		return
	}
	p.systems = append(p.systems, p.current)
}

func firstElementToken(e Element) *Token {
	switch e := e.(type) {
	case *Token:
		return e
	case *InfoLine:
		return e.Header
	case *InlineField:
		return e.Left
	}
	return nil
}
