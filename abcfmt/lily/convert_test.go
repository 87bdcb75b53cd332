package lily

import (
	"bytes"
	"flag"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egonelbre/abctools/abcfmt/abc"
)

var update = flag.Bool("update", false, "update expected output")

func TestConvert(t *testing.T) {
	matches, err := filepath.Glob("testdata/*.abc")
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	for _, abcpath := range matches {
		t.Run(filepath.Base(abcpath), func(t *testing.T) {
			lypath := strings.TrimSuffix(abcpath, ".abc") + ".ly"

			abcdata, err := os.ReadFile(abcpath)
			require.NoError(t, err)

			book, warnings := abc.Parse(string(abcdata))
			for _, warn := range warnings {
				t.Error(warn)
			}

			var out bytes.Buffer
			convert := &Convert{Output: &out}
			for _, tune := range book.Tunes {
				convert.Tune(tune)
			}
			for _, warn := range convert.Warnings {
				t.Error(warn)
			}

			converted := out.String()

			lydata, err := os.ReadFile(lypath)
			diff := ""
			if err != nil {
				t.Error(err)
				diff = "<LILYPOND MISSING>"
			} else {
				diff = cmp.Diff(string(lydata), converted)
			}

			if diff != "" {
				t.Error(diff)
				if *update {
					_ = os.WriteFile(lypath, out.Bytes(), 0644)
				}
				t.Log("LILYPOND OUTPUT:\n", converted)
			}
		})
	}
}

func TestConvertWarnings(t *testing.T) {
	book, _ := abc.Parse("X:1\nM:none\nK:C\n!wobble!C Z|\n")

	var out bytes.Buffer
	convert := &Convert{Output: &out}
	convert.Tune(book.Tunes[0])

	var messages []string
	for _, w := range convert.Warnings {
		messages = append(messages, w.String())
	}
	assert.Equal(t, []string{
		"4:1: unhandled decoration !wobble!",
		"4:11: bar rest without meter",
	}, messages)
	assert.Contains(t, out.String(), " c'8 R1 |")
}

func TestDurationString(t *testing.T) {
	tests := []struct {
		num, den int64
		expect   string
	}{
		{1, 1, "1"},
		{1, 4, "4"},
		{3, 8, "4."},
		{3, 2, "1."},
		{7, 16, "4.."},
		{2, 1, `\breve`},
		{5, 8, "8*5"},
		{1, 12, "1*1/12"},
	}
	for _, test := range tests {
		assert.Equal(t, test.expect, durationString(big.NewRat(test.num, test.den)), "%d/%d", test.num, test.den)
	}
}

func TestKeyDeclaration(t *testing.T) {
	tests := map[string]string{
		"c":     `\key c \major`,
		"f#m":   `\key fis \minor`,
		"bb":    `\key bes \major`,
		"bm":    `\key b \minor`,
		"ebmix": `\key ees \mixolydian`,
		"edor":  `\key e \dorian`,
	}
	for name, expect := range tests {
		decl, ok := keyDeclaration(name)
		assert.True(t, ok, name)
		assert.Equal(t, expect, decl, name)
	}

	_, ok := keyDeclaration("")
	assert.False(t, ok)
}
