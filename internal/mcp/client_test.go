package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	if os.Getenv("GO_WANT_FAKE_MCP_SERVER") == "1" {
		runFakeServer()
		os.Exit(0)
	}
	goleak.VerifyTestMain(m)
}

// runFakeServer speaks just enough line-delimited JSON-RPC to stand in
// for the Context7 tool server. FAKE_MCP_MODE selects a failure mode.
func runFakeServer() {
	mode := os.Getenv("FAKE_MCP_MODE")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	out := bufio.NewWriter(os.Stdout)

	reply := func(id int, result any) {
		raw, _ := json.Marshal(result)
		resp, _ := json.Marshal(map[string]any{
			"jsonrpc": "2.0",
			"id":      id,
			"result":  json.RawMessage(raw),
		})
		out.Write(append(resp, '\n'))
		out.Flush()
	}

	for scanner.Scan() {
		var req struct {
			ID     int    `json:"id"`
			Method string `json:"method"`
			Params struct {
				Name      string         `json:"name"`
				Arguments map[string]any `json:"arguments"`
			} `json:"params"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}

		switch req.Method {
		case "initialize":
			reply(req.ID, map[string]any{
				"protocolVersion": protocolVersion,
				"capabilities":    map[string]any{"tools": map[string]any{}},
				"serverInfo":      map[string]string{"name": "fake-context7", "version": "0.0.1"},
			})
			if mode == "exit-after-init" {
				return
			}
		case "notifications/initialized":
			// one-way, no reply
		case "tools/list":
			reply(req.ID, map[string]any{
				"tools": []map[string]any{
					{"name": "resolve-library-id", "description": "resolve", "inputSchema": map[string]any{"type": "object"}},
					{"name": "get-library-docs", "description": "docs", "inputSchema": map[string]any{"type": "object"}},
				},
			})
		case "tools/call":
			var text string
			switch req.Params.Name {
			case "resolve-library-id":
				if mode == "no-match" {
					text = ""
				} else {
					text = "Library ID: /ctx7/protocol-docs (best match)"
				}
			case "get-library-docs":
				text = "It is a stdio-based request/response protocol."
			default:
				text = "unknown tool"
			}
			reply(req.ID, map[string]any{
				"content": []map[string]any{{"type": "text", "text": text}},
			})
		}
	}
}

func newFakeClient(t *testing.T, mode string) *Client {
	t.Helper()
	t.Setenv("GO_WANT_FAKE_MCP_SERVER", "1")
	t.Setenv("FAKE_MCP_MODE", mode)
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	return NewClient(exe, nil, zap.NewNop())
}

func TestResolveLauncherMissing(t *testing.T) {
	_, err := ResolveLauncher("context7-no-such-launcher-binary")
	if err == nil {
		t.Fatal("expected error for missing launcher")
	}
	var dep *DependencyMissingError
	if !errors.As(err, &dep) {
		t.Fatalf("expected DependencyMissingError, got %T: %v", err, err)
	}
	if dep.Command != "context7-no-such-launcher-binary" {
		t.Fatalf("wrong command in error: %q", dep.Command)
	}
}

func TestStartHandshakeAndListTools(t *testing.T) {
	c := newFakeClient(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	tools, err := c.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	if len(tools) != 2 || tools[0].Name != "resolve-library-id" {
		t.Fatalf("unexpected tools: %+v", tools)
	}
}

func TestSearchReturnsDocuments(t *testing.T) {
	c := newFakeClient(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var results []Result
	err := WithServer(ctx, c, func(ctx context.Context) error {
		var err error
		results, err = c.Search(ctx, "What is the retrieval protocol?")
		return err
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one document, got %d", len(results))
	}
	if results[0].Content != "It is a stdio-based request/response protocol." {
		t.Fatalf("unexpected content: %q", results[0].Content)
	}
	if results[0].Source != "/ctx7/protocol-docs" {
		t.Fatalf("unexpected source: %q", results[0].Source)
	}
}

func TestSearchNoMatchIsEmptyNotError(t *testing.T) {
	c := newFakeClient(t, "no-match")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var results []Result
	err := WithServer(ctx, c, func(ctx context.Context) error {
		var err error
		results, err = c.Search(ctx, "nonexistent library")
		return err
	})
	if err != nil {
		t.Fatalf("expected no error for empty retrieval, got %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no documents, got %+v", results)
	}
}

func TestScopeStopsSubprocessOnSuccess(t *testing.T) {
	c := newFakeClient(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := WithServer(ctx, c, func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("WithServer failed: %v", err)
	}
	if c.Running() {
		t.Fatal("subprocess still running after scope exit")
	}
}

func TestScopeStopsSubprocessOnError(t *testing.T) {
	c := newFakeClient(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wantErr := fmt.Errorf("pipeline blew up")
	err := WithServer(ctx, c, func(ctx context.Context) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected pipeline error back, got %v", err)
	}
	if c.Running() {
		t.Fatal("subprocess still running after error exit")
	}
}

func TestScopeStopsSubprocessOnCancellation(t *testing.T) {
	c := newFakeClient(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := WithServer(ctx, c, func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// Stop runs in the cancellation watcher; give it a beat.
	deadline := time.After(3 * time.Second)
	for c.Running() {
		select {
		case <-deadline:
			t.Fatal("subprocess still running after cancellation")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestCallAfterServerExitFailsLoudly(t *testing.T) {
	c := newFakeClient(t, "exit-after-init")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	// The fake server exits right after the handshake; the next call
	// must surface ToolUnavailable, never hang or succeed silently.
	_, err := c.CallTool(ctx, "resolve-library-id", map[string]any{"libraryName": "x"})
	var unavailable *ToolUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ToolUnavailableError, got %T: %v", err, err)
	}
}
