package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"
)

const tunebook = `X:1
T:Duet
M:4/4
L:1/8
V:1
V:2
K:C
V:1
C2 D2|GABc|
V:2
C D E F|GABc|
V:1
CDEF|
V:2
CDEF|

X:2
T:Solo
M:3/4
L:1/4
K:G
G A B|d3|]
`

// run executes the command line and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	clearEnv(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func writeBook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.abc")
	require.NoError(t, os.WriteFile(path, []byte(tunebook), 0o644))
	return path
}

func TestFormatCommand(t *testing.T) {
	path := writeBook(t)
	t.Cleanup(func() { formatWrite = false })

	_, err := run(t, "format", "-w", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	expect := strings.Replace(tunebook, "C2 D2|GABc|", "C2  D2 |GABc|", 1)
	assert.Equal(t, expect, string(data))
}

func TestSystemsCommand(t *testing.T) {
	out, err := run(t, "systems", writeBook(t))
	require.NoError(t, err)

	line := func(voice string, first, last int) string {
		return fmt.Sprintf("    %-8s bars %d-%d\n", voice, first, last)
	}
	expect := "X:1 Duet\n" +
		"  system 1\n" + line("1", 0, 1) + line("2", 0, 1) +
		"  system 2\n" + line("1", 2, 2) + line("2", 2, 2) +
		"X:2 Solo\n" +
		"  system 1\n" + line("-", 0, 1)
	assert.Equal(t, expect, out)
}

func TestLyCommand(t *testing.T) {
	outdir := t.TempDir()
	t.Cleanup(func() { lyFlags.filePerTune, lyFlags.outdir = false, "" })

	_, err := run(t, "ly", "--file-per-tune", "--out", outdir, writeBook(t))
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(outdir, "_index.ly"))
	require.NoError(t, err)
	assert.Equal(t, "\\include \"1.ly\"\n\\include \"2.ly\"\n", string(index))

	solo, err := os.ReadFile(filepath.Join(outdir, "2.ly"))
	require.NoError(t, err)
	assert.Contains(t, string(solo), `piece = "Solo"`)
	assert.Contains(t, string(solo), `\key g \major`)
}

func TestLyCommandRequiresOut(t *testing.T) {
	t.Cleanup(func() { lyFlags.filePerTune = false })
	_, err := run(t, "ly", "--file-per-tune", writeBook(t))
	assert.Error(t, err)
}

func TestMidiCommand(t *testing.T) {
	output := filepath.Join(t.TempDir(), "solo.mid")
	t.Cleanup(func() { midiFlags.output, midiFlags.tune = "", "" })

	_, err := run(t, "midi", "--tune", "2", "-o", output, writeBook(t))
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	s, err := smf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, s.Tracks, 2)

	_, err = run(t, "midi", "--tune", "7", "-o", output, writeBook(t))
	assert.Error(t, err)
}
