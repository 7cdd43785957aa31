package chat

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nordeim/context7-agent-v2-sub001/internal/agent"
	"github.com/nordeim/context7-agent-v2-sub001/internal/config"
	"github.com/nordeim/context7-agent-v2-sub001/internal/history"
	"github.com/nordeim/context7-agent-v2-sub001/internal/mcp"
	"github.com/nordeim/context7-agent-v2-sub001/internal/ui"
)

type fakeOrchestrator struct {
	calls  []string
	answer string
	err    error
}

func (f *fakeOrchestrator) Stream(ctx context.Context, userText, conversationID string) <-chan agent.Event {
	f.calls = append(f.calls, userText)
	events := make(chan agent.Event, 4)
	go func() {
		defer close(events)
		if f.err != nil {
			events <- agent.Error{Err: f.err}
			return
		}
		events <- agent.ContentChunk{Text: f.answer}
		events <- agent.Complete{Text: f.answer}
	}()
	return events
}

func (f *fakeOrchestrator) LastResults() []mcp.Result { return nil }

func newTestLoop(t *testing.T, orch Orchestrator, in io.Reader) (*Loop, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.APIKey = "test-key"
	store := history.New(filepath.Join(t.TempDir(), "history.json"), 100, zap.NewNop())
	out := &bytes.Buffer{}
	d := NewDispatcher(store, ui.ThemeForest, orch.LastResults, nil, out)
	return NewLoop(cfg, orch, d, in, out, zap.NewNop()), out
}

func TestLoopProcessesAllInputUntilExit(t *testing.T) {
	input := strings.Join([]string{
		"/help",
		"first question",
		"/unknown-directive",
		"/bookmark 1", // fails: no results yet
		"second question",
		"/exit",
		"never reached",
	}, "\n")

	orch := &fakeOrchestrator{answer: "an answer"}
	loop, out := newTestLoop(t, orch, strings.NewReader(input))

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(orch.calls) != 2 {
		t.Fatalf("expected 2 chat calls, got %d: %v", len(orch.calls), orch.calls)
	}
	if orch.calls[0] != "first question" || orch.calls[1] != "second question" {
		t.Fatalf("unexpected chat inputs: %v", orch.calls)
	}
	if !strings.Contains(out.String(), "Goodbye!") {
		t.Fatal("missing farewell")
	}
}

func TestLoopSurvivesRequestFailures(t *testing.T) {
	input := "doomed question\nnext question\n/exit\n"
	orch := &fakeOrchestrator{err: errors.New("model exploded")}
	loop, out := newTestLoop(t, orch, strings.NewReader(input))

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(orch.calls) != 2 {
		t.Fatalf("a failed request must not end the loop; got %d calls", len(orch.calls))
	}
	if !strings.Contains(out.String(), "Chat error") {
		t.Fatalf("error not reported inline: %s", out.String())
	}
}

func TestLoopEndsOnInputEOF(t *testing.T) {
	orch := &fakeOrchestrator{answer: "x"}
	loop, out := newTestLoop(t, orch, strings.NewReader("only question\n"))

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(out.String(), "Goodbye!") {
		t.Fatal("missing farewell on EOF")
	}
}

func TestLoopUnwindsOnCancellation(t *testing.T) {
	orch := &fakeOrchestrator{answer: "x"}
	// A reader that never delivers a line, like an idle terminal.
	blocked, _ := io.Pipe()
	loop, out := newTestLoop(t, orch, blocked)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run should unwind cleanly on interrupt, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not unwind after cancellation")
	}
	if !strings.Contains(out.String(), "Goodbye!") {
		t.Fatal("missing farewell after interrupt")
	}
}

func TestDependencyMissingGuidance(t *testing.T) {
	orch := &fakeOrchestrator{err: &mcp.DependencyMissingError{Command: "npx"}}
	loop, out := newTestLoop(t, orch, strings.NewReader("question\n/exit\n"))

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(out.String(), "nodejs.org") {
		t.Fatalf("missing install guidance: %s", out.String())
	}
}
