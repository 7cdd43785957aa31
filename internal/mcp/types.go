// Package mcp supervises the Context7 MCP (Model Context Protocol) tool
// server as a child process and speaks JSON-RPC 2.0 to it over the
// process's standard input and output streams.
package mcp

import (
	"encoding/json"
	"fmt"
)

// DependencyMissingError reports that the launcher binary for the tool
// server is not installed. Retrieval is unusable until it is; the rest
// of the UI keeps working.
type DependencyMissingError struct {
	Command string
}

func (e *DependencyMissingError) Error() string {
	return fmt.Sprintf("%s not found on PATH: the Context7 tool server needs Node.js 18+ (install from https://nodejs.org/)", e.Command)
}

// ToolUnavailableError reports that the tool server failed to answer:
// it exited, its output closed, or it returned a protocol error. It is
// recoverable per request.
type ToolUnavailableError struct {
	Reason string
	Err    error
}

func (e *ToolUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tool server unavailable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("tool server unavailable: %s", e.Reason)
}

func (e *ToolUnavailableError) Unwrap() error { return e.Err }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ToolSchema is the raw tool description advertised by the server.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// toolCallResult is the payload of a tools/call response.
type toolCallResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Result is one retrieved document. The tool boundary is opaque text;
// richer structure is carried when the server provides it.
type Result struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
	Source  string `json:"source,omitempty"`
}
