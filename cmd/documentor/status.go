package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akannigil/oxygen-documentor-sub000/internal/config"
	"github.com/akannigil/oxygen-documentor-sub000/internal/log"
	"github.com/akannigil/oxygen-documentor-sub000/internal/queue"
)

func runStatus(ctx context.Context, args []string, env *Environment) error {
	fs := newFlagSet("status", env)
	fs.Usage = func() { printStatusUsage(env.Stderr) }
	var common commonFlags
	addCommonFlags(fs, &common)
	cancel := fs.Bool("cancel", false, "Cancel the job if it has not started")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: expected one job ID", ErrUsage)
	}
	id := fs.Arg(0)

	cfg, err := loadConfig(common)
	if err != nil {
		return err
	}
	rt, err := connectClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

	if *cancel {
		if err := rt.Cancel(ctx, id); err != nil {
			return err
		}
	}
	st, err := rt.Status(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(env, st)
}

// connectClient connects a worker-less runtime. Inline jobs live only in
// the process that ran them, so a broker is required.
func connectClient(ctx context.Context, cfg *config.Config) (*queue.Runtime, error) {
	logger, err := log.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	qcfg := cfg.QueueOptions()
	qcfg.ClientOnly = true
	if qcfg.Disabled {
		return nil, fmt.Errorf("%w: queue is disabled", queue.ErrUnavailable)
	}
	rt := queue.NewRuntime(qcfg, nil, nil, queue.WithLogger(logger), queue.WithInlineFallback(false))
	if err := rt.Connect(ctx); err != nil {
		return nil, err
	}
	return rt, nil
}

func printJSON(env *Environment, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(env.Stdout, string(data))
	return err
}
