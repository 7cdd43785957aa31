package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/nordeim/context7-agent-v2-sub001/internal/agent"
	"github.com/nordeim/context7-agent-v2-sub001/internal/chat"
	"github.com/nordeim/context7-agent-v2-sub001/internal/config"
	"github.com/nordeim/context7-agent-v2-sub001/internal/history"
	"github.com/nordeim/context7-agent-v2-sub001/internal/llm"
	"github.com/nordeim/context7-agent-v2-sub001/internal/logging"
)

// runChat wires the full stack and hands control to the interactive
// loop until /exit, EOF, or an interrupt.
func runChat(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store := history.New(cfg.HistoryFile, cfg.MaxHistory, logger)
	if err := store.Load(); err != nil {
		return err
	}

	model := llm.New(cfg.APIKey, cfg.BaseURL, cfg.Model)
	runner := &agent.SupervisorRunner{Command: cfg.MCPCommand, Args: cfg.MCPArgs, Logger: logger}
	ag := agent.New(cfg, model, runner, store, logger)

	dispatcher := chat.NewDispatcher(store, cfg.Theme, ag.LastResults, chat.MarkdownRenderer(), os.Stdout)
	loop := chat.NewLoop(cfg, ag, dispatcher, os.Stdin, os.Stdout, logger)

	logger.Info("session starting",
		zap.String("model", cfg.Model),
		zap.String("theme", string(cfg.Theme)),
		zap.String("history_file", cfg.HistoryFile))

	return loop.Run(ctx)
}
