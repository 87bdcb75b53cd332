package align

import (
	"github.com/egonelbre/abctools/abcfmt/abc"
)

// ExpandMultiMeasureRests replaces every rest lasting N > 1 bars with N
// single bar rests separated by N-1 barlines, keeping the glyph (`Z` is
// visible, `X` invisible). `Z4` becomes `Z|Z|Z|Z`.
func ExpandMultiMeasureRests(sys abc.System, gen *abc.IDGen) abc.System {
	expanded := abc.System{Voice: sys.Voice}
	for _, e := range sys.Elements {
		rest, ok := e.(*abc.MultiMeasureRest)
		if !ok || rest.Bars() <= 1 {
			expanded.Elements = append(expanded.Elements, e)
			continue
		}

		for i := 0; i < rest.Bars(); i++ {
			if i > 0 {
				expanded.Elements = append(expanded.Elements, &abc.BarLine{
					ID:     gen.Next(),
					Tokens: []*abc.Token{gen.Token(abc.TokenBarLine, "|")},
				})
			}
			expanded.Elements = append(expanded.Elements, &abc.MultiMeasureRest{
				ID:   gen.Next(),
				Rest: gen.Token(abc.TokenMultiRest, rest.Rest.Text),
			})
		}
	}
	return expanded
}
