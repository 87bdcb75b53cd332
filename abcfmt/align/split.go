package align

import (
	"github.com/egonelbre/abctools/abcfmt/abc"
)

type SplitKind byte

const (
	// NoFormat lines carry no music (comments, directives, fields) and
	// are left alone.
	NoFormat = SplitKind(0)
	// Formatted lines are music lines owned by a voice.
	Formatted = SplitKind(1)
)

func (k SplitKind) String() string {
	if k == Formatted {
		return "format"
	}
	return "noformat"
}

// VoiceSplit is one line of a system.
type VoiceSplit struct {
	Kind  SplitKind
	// Voice is the voice selected when the line starts.
	Voice string
	// VoiceIndex is the position of Voice in the tune's voice list;
	// -1 for NoFormat lines.
	VoiceIndex int
	Content    []abc.Element
}

// SplitVoices splits a system into lines and assigns each music line
// to the voice selected by the latest voice marker.
func SplitVoices(sys abc.System, voices []string) []VoiceSplit {
	index := map[string]int{}
	for i, v := range voices {
		index[v] = i
	}

	var splits []VoiceSplit
	voice := sys.Voice
	for _, line := range abc.SplitLines(sys.Elements) {
		if id, _, ok := abc.LineVoice(line); ok {
			voice = id
		}

		split := VoiceSplit{Kind: NoFormat, Voice: voice, VoiceIndex: -1, Content: line}
		if idx, known := index[voice]; known && abc.HasMusic(line) {
			split.Kind = Formatted
			split.VoiceIndex = idx
		}
		splits = append(splits, split)
	}
	return splits
}

// Join concatenates the splits back into a system.
func Join(splits []VoiceSplit, voice string) abc.System {
	sys := abc.System{Voice: voice}
	for _, split := range splits {
		sys.Elements = append(sys.Elements, split.Content...)
	}
	return sys
}

// Voices returns the number of distinct voices among formatted splits.
func Voices(splits []VoiceSplit) int {
	seen := map[int]bool{}
	for _, split := range splits {
		if split.Kind == Formatted {
			seen[split.VoiceIndex] = true
		}
	}
	return len(seen)
}
