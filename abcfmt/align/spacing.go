package align

import (
	"github.com/egonelbre/abctools/abcfmt/abc"
)

// NormalizeSpacing collapses every run of whitespace in music lines to a
// single space and drops whitespace at the end of those lines. Padding
// from an earlier alignment is removed the same way, so formatting an
// already formatted system starts from the same text.
func NormalizeSpacing(sys abc.System, gen *abc.IDGen) abc.System {
	out := abc.System{Voice: sys.Voice}
	for _, line := range abc.SplitLines(sys.Elements) {
		if !abc.HasMusic(line) {
			out.Elements = append(out.Elements, line...)
			continue
		}

		var normalized []abc.Element
		for i := 0; i < len(line); i++ {
			if !abc.IsWhitespace(line[i]) {
				normalized = append(normalized, line[i])
				continue
			}

			end := i
			for end+1 < len(line) && abc.IsWhitespace(line[end+1]) {
				end++
			}
			trailing := end+1 == len(line) || abc.IsEOL(line[end+1])
			switch {
			case trailing:
			case i == end && line[i].(*abc.Token).Text == " ":
				normalized = append(normalized, line[i])
			default:
				normalized = append(normalized, gen.Token(abc.TokenWhitespace, " "))
			}
			i = end
		}
		out.Elements = append(out.Elements, normalized...)
	}
	return out
}
