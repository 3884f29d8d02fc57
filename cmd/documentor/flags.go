package main

import (
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/akannigil/oxygen-documentor-sub000/internal/config"
)

// Command-level errors.
var (
	ErrUsage       = errors.New("invalid usage")
	ErrReadInput   = errors.New("reading input")
	ErrWriteOutput = errors.New("writing output")
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	verbose bool
}

func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "Config file name or path")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Log at debug level")
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name string, env *Environment) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	return fs
}

// parseFlags parses args and wraps parse failures as usage errors.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

// loadConfig loads the named config, or the defaults plus environment
// overrides when no name is given.
func loadConfig(f commonFlags) (*config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}
	if f.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}
