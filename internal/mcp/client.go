package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

const protocolVersion = "2024-11-05"

// Client runs one tool-server subprocess and serializes tool calls to it
// over stdin/stdout. One logical call is in flight at a time.
type Client struct {
	command string
	args    []string
	logger  *zap.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	running bool

	pending map[int]chan *rpcResponse
	nextID  int

	callMu sync.Mutex // serializes logical tool calls
	wg     sync.WaitGroup
}

// NewClient builds a client for the given launcher command. Nothing is
// spawned until Start.
func NewClient(command string, args []string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		command: command,
		args:    args,
		logger:  logger,
		pending: make(map[int]chan *rpcResponse),
		nextID:  1,
	}
}

// ResolveLauncher checks that the launcher binary exists on PATH and
// returns its resolved path. Absence is a DependencyMissingError, not an
// opaque OS error.
func ResolveLauncher(command string) (string, error) {
	path, err := exec.LookPath(command)
	if err != nil {
		return "", &DependencyMissingError{Command: command}
	}
	return path, nil
}

// Start spawns the subprocess, wires its pipes, and performs the MCP
// initialize handshake. The context bounds the handshake only; the
// process lives until Stop.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}

	if _, err := ResolveLauncher(c.command); err != nil {
		c.mu.Unlock()
		return err
	}

	cmd := exec.Command(c.command, c.args...)

	var err error
	if c.stdin, err = cmd.StdinPipe(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	if c.stdout, err = cmd.StdoutPipe(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if c.stderr, err = cmd.StderrPipe(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		c.mu.Unlock()
		return &ToolUnavailableError{Reason: "failed to start " + c.command, Err: err}
	}

	c.cmd = cmd
	c.running = true

	c.wg.Add(2)
	go c.readStderr()
	go c.readStdout()
	c.mu.Unlock()

	if err := c.initialize(ctx); err != nil {
		_ = c.Stop()
		return err
	}
	return nil
}

// Stop terminates the subprocess and releases the pipes. It is safe on
// every exit path and may be called more than once.
func (c *Client) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false

	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	c.failPendingLocked()
	cmd := c.cmd
	c.mu.Unlock()

	// Readers drain to EOF once the process is dead; reap afterwards.
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		c.logger.Warn("timeout waiting for tool server reader goroutines")
	}
	if cmd != nil {
		_ = cmd.Wait()
	}

	c.logger.Debug("tool server stopped", zap.String("command", c.command))
	return nil
}

// Running reports whether the subprocess is alive.
func (c *Client) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// WithServer is the scoped acquisition helper: it starts the server,
// runs fn, and guarantees the subprocess is stopped on every exit path,
// including errors and cancellation.
func WithServer(ctx context.Context, c *Client, fn func(ctx context.Context) error) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = c.Stop() }()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Stop()
		case <-stop:
		}
	}()

	return fn(ctx)
}

func (c *Client) readStderr() {
	defer c.wg.Done()
	scanner := bufio.NewScanner(c.stderr)
	for scanner.Scan() {
		c.logger.Debug("tool server stderr", zap.String("line", scanner.Text()))
	}
}

// readStdout dispatches JSON-RPC responses to their waiting callers.
// When the stream closes the client is marked down and pending calls
// fail rather than hang.
func (c *Client) readStdout() {
	defer c.wg.Done()
	scanner := bufio.NewScanner(c.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			c.logger.Warn("unparseable line from tool server", zap.Error(err))
			continue
		}
		if resp.Result == nil && resp.Error == nil {
			// Server-side notification; nothing waits on it.
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- &resp
		} else {
			c.logger.Warn("response for unknown request id", zap.Int("id", resp.ID))
		}
	}

	c.mu.Lock()
	wasRunning := c.running
	c.running = false
	c.failPendingLocked()
	c.mu.Unlock()
	if wasRunning {
		c.logger.Warn("tool server exited unexpectedly", zap.String("command", c.command))
	}
}

func (c *Client) failPendingLocked() {
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
}

// call sends one request and waits for its response.
func (c *Client) call(ctx context.Context, method string, params any) (*rpcResponse, error) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil, &ToolUnavailableError{Reason: "not connected"}
	}
	id := c.nextID
	c.nextID++

	ch := make(chan *rpcResponse, 1)
	c.pending[id] = ch

	data, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if _, err := c.stdin.Write(append(data, '\n')); err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, &ToolUnavailableError{Reason: "failed to write to tool server", Err: err}
	}
	c.mu.Unlock()

	select {
	case resp, ok := <-ch:
		if !ok || resp == nil {
			return nil, &ToolUnavailableError{Reason: "tool server closed before responding"}
		}
		if resp.Error != nil {
			return nil, &ToolUnavailableError{Reason: fmt.Sprintf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)}
		}
		return resp, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// notify sends a one-way notification.
func (c *Client) notify(method string, params any) {
	data, err := json.Marshal(rpcNotification{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return
	}
	c.mu.Lock()
	if c.running && c.stdin != nil {
		_, _ = c.stdin.Write(append(data, '\n'))
	}
	c.mu.Unlock()
}

// initialize performs the MCP handshake.
func (c *Client) initialize(ctx context.Context) error {
	_, err := c.call(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]string{
			"name":    "context7-agent",
			"version": "2.0.0",
		},
	})
	if err != nil {
		return err
	}
	c.notify("notifications/initialized", nil)
	return nil
}

// ListTools retrieves the tools advertised by the server.
func (c *Client) ListTools(ctx context.Context) ([]ToolSchema, error) {
	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Tools []ToolSchema `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, &ToolUnavailableError{Reason: "malformed tools/list response", Err: err}
	}
	return result.Tools, nil
}

// CallTool invokes one tool and returns its concatenated text output.
// Calls are serialized; overlapping calls within one scope queue here.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	resp, err := c.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return "", err
	}

	var result toolCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return "", &ToolUnavailableError{Reason: "malformed tools/call response", Err: err}
	}

	var text string
	for _, block := range result.Content {
		if block.Type == "text" {
			if text != "" {
				text += "\n"
			}
			text += block.Text
		}
	}
	if result.IsError {
		return "", &ToolUnavailableError{Reason: "tool reported an error: " + firstLine(text)}
	}
	return text, nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
