package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/egonelbre/abctools/abcfmt/midi"
)

// Config contains the resolved settings of a command.
type Config struct {
	Addr      string // listen address of serve
	Normalize bool   // collapse whitespace in music lines
	Align     bool   // align multi-voice systems
	Tempo     int    // MIDI tempo when the tune has no Q:
	Verbose   bool
}

func DefaultConfig() Config {
	return Config{
		Addr:  ":8080",
		Align: true,
		Tempo: midi.DefaultTempo,
	}
}

// LoadConfig reads the environment after loading envfile. Without an
// explicit envfile a missing .env is ignored.
func LoadConfig(envfile string) (Config, error) {
	cfg := DefaultConfig()

	if envfile != "" {
		if err := godotenv.Load(envfile); err != nil {
			return cfg, errors.Wrapf(err, "failed to load %s", envfile)
		}
	} else if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("no .env loaded")
	}

	if v, ok := os.LookupEnv("ABCFMT_ADDR"); ok && v != "" {
		cfg.Addr = v
	}
	if err := envBool("ABCFMT_NORMALIZE", &cfg.Normalize); err != nil {
		return cfg, err
	}
	if err := envBool("ABCFMT_ALIGN", &cfg.Align); err != nil {
		return cfg, err
	}
	if err := envBool("ABCFMT_VERBOSE", &cfg.Verbose); err != nil {
		return cfg, err
	}
	if v, ok := os.LookupEnv("ABCFMT_TEMPO"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, errors.Errorf("invalid ABCFMT_TEMPO %q", v)
		}
		cfg.Tempo = n
	}
	return cfg, nil
}

func envBool(name string, target *bool) error {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return errors.Wrapf(err, "invalid %s", name)
	}
	*target = b
	return nil
}

// Override replaces settings with the flags given on the command line.
func (cfg *Config) Override(flags *pflag.FlagSet) {
	if f := flags.Lookup("addr"); f != nil && f.Changed {
		cfg.Addr = f.Value.String()
	}
	overrideBool(flags, "normalize", &cfg.Normalize)
	overrideBool(flags, "align", &cfg.Align)
	overrideBool(flags, "verbose", &cfg.Verbose)
	if f := flags.Lookup("tempo"); f != nil && f.Changed {
		if n, err := strconv.Atoi(f.Value.String()); err == nil {
			cfg.Tempo = n
		}
	}
}

func overrideBool(flags *pflag.FlagSet, name string, target *bool) {
	f := flags.Lookup(name)
	if f == nil || !f.Changed {
		return
	}
	if b, err := strconv.ParseBool(f.Value.String()); err == nil {
		*target = b
	}
}
