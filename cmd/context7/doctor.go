package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nordeim/context7-agent-v2-sub001/internal/config"
	"github.com/nordeim/context7-agent-v2-sub001/internal/mcp"
)

// runDoctor probes the environment the agent depends on: configuration,
// the tool-server launcher, and a live server handshake. Probes run
// concurrently and every one reports, even when another fails.
func runDoctor(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	cfg, cfgErr := config.Load()
	if cfg == nil {
		// Environment probes still run with the built-in launcher.
		cfg = config.Default()
	}

	type probe struct {
		name string
		err  error
	}
	results := make([]probe, 3)
	results[0] = probe{name: "configuration", err: cfgErr}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path, err := mcp.ResolveLauncher(cfg.MCPCommand)
		if err == nil {
			results[1] = probe{name: fmt.Sprintf("launcher (%s)", path)}
		} else {
			results[1] = probe{name: "launcher", err: err}
		}
		return nil
	})
	g.Go(func() error {
		results[2] = probe{name: "tool server", err: probeServer(ctx, cfg)}
		return nil
	})
	_ = g.Wait()

	failed := false
	for _, p := range results {
		if p.err != nil {
			failed = true
			fmt.Fprintf(os.Stdout, "FAIL  %s: %v\n", p.name, p.err)
		} else {
			fmt.Fprintf(os.Stdout, "ok    %s\n", p.name)
		}
	}
	if failed {
		return fmt.Errorf("doctor found problems")
	}
	fmt.Println("All checks passed.")
	return nil
}

// probeServer starts a real tool-server subprocess, lists its tools, and
// tears it down.
func probeServer(ctx context.Context, cfg *config.Config) error {
	client := mcp.NewClient(cfg.MCPCommand, cfg.MCPArgs, zap.NewNop())
	return mcp.WithServer(ctx, client, func(ctx context.Context) error {
		tools, err := client.ListTools(ctx)
		if err != nil {
			return err
		}
		if len(tools) == 0 {
			return fmt.Errorf("server reported no tools")
		}
		return nil
	})
}
