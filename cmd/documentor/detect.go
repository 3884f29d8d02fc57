package main

import (
	"fmt"
	"os"

	"github.com/akannigil/oxygen-documentor-sub000/internal/docx"
)

func runDetect(args []string, env *Environment) error {
	fs := newFlagSet("detect", env)
	fs.Usage = func() { printDetectUsage(env.Stderr) }
	asJSON := fs.Bool("json", false, "Print a JSON array")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: expected one template file", ErrUsage)
	}

	data, err := os.ReadFile(fs.Arg(0)) // #nosec G304 -- user-provided path
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadInput, err)
	}
	a, err := docx.Open(data)
	if err != nil {
		return err
	}
	vars := docx.DetectVariables(a)

	if *asJSON {
		if vars == nil {
			vars = []string{}
		}
		return printJSON(env, vars)
	}
	for _, v := range vars {
		fmt.Fprintln(env.Stdout, v)
	}
	return nil
}
