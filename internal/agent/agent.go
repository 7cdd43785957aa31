// Package agent implements the retrieval pipeline: formulate a query,
// fetch grounding documents from the Context7 tool server, synthesize an
// answer confined to what was retrieved, and stream progress as events.
package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nordeim/context7-agent-v2-sub001/internal/config"
	"github.com/nordeim/context7-agent-v2-sub001/internal/history"
	"github.com/nordeim/context7-agent-v2-sub001/internal/llm"
	"github.com/nordeim/context7-agent-v2-sub001/internal/mcp"
)

// formulationPrompt turns the user's utterance into a short retrieval
// query. NONE means no lookup can help (small talk, empty input).
const formulationPrompt = `You turn a user's question into a short search query for a software
documentation knowledge base. Reply with ONLY the query text, at most a
few words. If the input is small talk or cannot be answered from
documentation, reply with exactly NONE.`

// greetingReply is deterministic; greetings never reach the model or the
// tool server.
const greetingReply = "Hello! Ask me anything about a library or framework and I'll look it up in the Context7 knowledge base."

var greetings = map[string]bool{
	"hi": true, "hello": true, "hey": true, "yo": true,
	"good morning": true, "good afternoon": true, "good evening": true,
}

// ToolSession is one live connection to the tool server.
type ToolSession interface {
	Search(ctx context.Context, query string) ([]mcp.Result, error)
}

// ToolRunner scopes a tool-server session around fn: the subprocess is
// started on entry and guaranteed stopped on every exit path.
type ToolRunner interface {
	WithSession(ctx context.Context, fn func(ctx context.Context, s ToolSession) error) error
}

// SupervisorRunner is the production ToolRunner: one subprocess per
// request. A crashed server never outlives the request that hit it; the
// price is launcher startup latency on every question.
type SupervisorRunner struct {
	Command string
	Args    []string
	Logger  *zap.Logger
}

func (r *SupervisorRunner) WithSession(ctx context.Context, fn func(ctx context.Context, s ToolSession) error) error {
	client := mcp.NewClient(r.Command, r.Args, r.Logger)
	return mcp.WithServer(ctx, client, func(ctx context.Context) error {
		return fn(ctx, client)
	})
}

// Agent orchestrates the pipeline. It is driven by the single
// interactive task; it is not safe for concurrent Stream calls.
type Agent struct {
	cfg    *config.Config
	model  llm.Completer
	tools  ToolRunner
	store  *history.Store
	logger *zap.Logger

	lastResults []mcp.Result
}

// New builds an orchestrator over explicit collaborators.
func New(cfg *config.Config, model llm.Completer, tools ToolRunner, store *history.Store, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{cfg: cfg, model: model, tools: tools, store: store, logger: logger}
}

// LastResults returns the documents retrieved by the most recent
// successful request, for /bookmark and /preview.
func (a *Agent) LastResults() []mcp.Result {
	out := make([]mcp.Result, len(a.lastResults))
	copy(out, a.lastResults)
	return out
}

// Stream runs the pipeline for one utterance. Events arrive on the
// returned bounded channel as they happen; the channel closes after the
// terminal event. On success exactly two turns (user, assistant) are
// appended to the conversation and persisted before Complete is emitted.
func (a *Agent) Stream(ctx context.Context, userText, conversationID string) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		a.run(ctx, strings.TrimSpace(userText), conversationID, events)
	}()
	return events
}

func (a *Agent) run(ctx context.Context, userText, conversationID string, events chan<- Event) {
	fail := func(stage string, err error) {
		a.logger.Warn("retrieval pipeline failed", zap.String("stage", stage), zap.Error(err))
		events <- Error{Err: fmt.Errorf("%s: %w", stage, err)}
	}

	if greetings[strings.ToLower(strings.TrimRight(userText, "!. "))] {
		a.deliver(ctx, userText, conversationID, greetingReply, events)
		return
	}

	query, err := a.formulateQuery(ctx, userText, conversationID)
	if err != nil {
		fail("query formulation", err)
		return
	}

	if query == "" {
		// Nothing to retrieve; the grounding rule forbids improvising.
		a.deliver(ctx, userText, conversationID, a.cfg.FallbackAnswer, events)
		return
	}

	var results []mcp.Result
	err = a.tools.WithSession(ctx, func(ctx context.Context, s ToolSession) error {
		var err error
		results, err = s.Search(ctx, query)
		return err
	})
	if err != nil {
		fail("retrieval", err)
		return
	}

	if len(results) == 0 {
		a.logger.Info("retrieval returned nothing usable", zap.String("query", query))
		a.deliver(ctx, userText, conversationID, a.cfg.FallbackAnswer, events)
		return
	}
	a.lastResults = results

	a.synthesize(ctx, userText, conversationID, results, events)
}

// formulateQuery is the narrow first model call. An empty return means
// the model declined ("NONE").
func (a *Agent) formulateQuery(ctx context.Context, userText, conversationID string) (string, error) {
	recent := a.recentHistory(conversationID, 6)
	query, err := a.model.Complete(ctx, formulationPrompt, recent, userText)
	if err != nil {
		return "", err
	}
	query = strings.TrimSpace(query)
	if strings.EqualFold(query, "NONE") {
		return "", nil
	}
	return query, nil
}

// synthesize is the second model call: a streaming completion whose
// system prompt confines the model to the retrieved text.
func (a *Agent) synthesize(ctx context.Context, userText, conversationID string, results []mcp.Result, events chan<- Event) {
	var docs strings.Builder
	for i, r := range results {
		fmt.Fprintf(&docs, "--- document %d", i+1)
		if r.Source != "" {
			fmt.Fprintf(&docs, " (%s)", r.Source)
		}
		docs.WriteString(" ---\n")
		docs.WriteString(r.Content)
		docs.WriteString("\n")
	}

	system := a.cfg.SystemPrompt + "\n\nRetrieved documentation:\n" + docs.String() +
		"\nAnswer using only the documentation above."

	chunks, err := a.model.Stream(ctx, system, a.recentHistory(conversationID, 6), userText)
	if err != nil {
		events <- Error{Err: fmt.Errorf("synthesis: %w", err)}
		return
	}

	var full strings.Builder
	for chunk := range chunks {
		switch {
		case chunk.Err != nil:
			a.logger.Warn("synthesis stream failed", zap.Error(chunk.Err))
			events <- Error{Err: fmt.Errorf("synthesis: %w", chunk.Err)}
			return
		case chunk.Done:
			a.complete(ctx, userText, conversationID, full.String(), events)
			return
		default:
			full.WriteString(chunk.Content)
			events <- ContentChunk{Text: chunk.Content}
		}
	}
	// Channel closed without a terminal chunk.
	events <- Error{Err: fmt.Errorf("synthesis: stream ended without completing")}
}

// deliver emits a deterministic answer as a single chunk and completes.
func (a *Agent) deliver(ctx context.Context, userText, conversationID, answer string, events chan<- Event) {
	events <- ContentChunk{Text: answer}
	a.complete(ctx, userText, conversationID, answer, events)
}

// complete appends the two turns, persists them, then emits Complete.
func (a *Agent) complete(ctx context.Context, userText, conversationID, answer string, events chan<- Event) {
	a.store.Append(conversationID, history.Turn{Role: history.RoleUser, Content: userText})
	a.store.Append(conversationID, history.Turn{Role: history.RoleAssistant, Content: answer})

	select {
	case err := <-a.store.SaveAsync():
		if err != nil {
			// Already logged by the store; the answer still stands.
			a.logger.Warn("history not durable for this turn", zap.Error(err))
		}
	case <-ctx.Done():
	}

	events <- Complete{Text: answer}
}

func (a *Agent) recentHistory(conversationID string, n int) []history.Turn {
	turns := a.store.History(conversationID)
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns
}
