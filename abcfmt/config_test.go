package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{"ABCFMT_ADDR", "ABCFMT_NORMALIZE", "ABCFMT_ALIGN", "ABCFMT_TEMPO", "ABCFMT_VERBOSE"}

// clearEnv unsets the configuration variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(writeEnv(t, "ABCFMT_ADDR=:9000\nABCFMT_NORMALIZE=true\nABCFMT_ALIGN=false\nABCFMT_TEMPO=90\n"))
	require.NoError(t, err)
	assert.Equal(t, Config{
		Addr:      ":9000",
		Normalize: true,
		Align:     false,
		Tempo:     90,
	}, cfg)
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(writeEnv(t, "# nothing set\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigInvalid(t *testing.T) {
	clearEnv(t)
	_, err := LoadConfig(writeEnv(t, "ABCFMT_ALIGN=maybe\n"))
	assert.Error(t, err)

	clearEnv(t)
	_, err = LoadConfig(writeEnv(t, "ABCFMT_TEMPO=fast\n"))
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestConfigOverride(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("normalize", false, "")
	flags.Bool("align", true, "")
	flags.Int("tempo", 120, "")
	flags.String("addr", ":8080", "")
	require.NoError(t, flags.Parse([]string{"--normalize", "--tempo", "100"}))

	cfg := Config{Addr: ":9000", Align: false, Tempo: 90}
	cfg.Override(flags)
	assert.Equal(t, Config{Addr: ":9000", Normalize: true, Align: false, Tempo: 100}, cfg)
}
