package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/nordeim/context7-agent-v2-sub001/internal/agent"
	"github.com/nordeim/context7-agent-v2-sub001/internal/config"
	"github.com/nordeim/context7-agent-v2-sub001/internal/mcp"
	uipkg "github.com/nordeim/context7-agent-v2-sub001/internal/ui"
)

// Orchestrator is the retrieval pipeline surface the loop drives.
type Orchestrator interface {
	Stream(ctx context.Context, userText, conversationID string) <-chan agent.Event
	LastResults() []mcp.Result
}

// Loop runs the interactive session. Console reads happen on a worker
// goroutine; the loop task only ever selects on channels, so an
// interrupt unwinds it cleanly mid-input or mid-request.
type Loop struct {
	cfg        *config.Config
	orch       Orchestrator
	dispatcher *Dispatcher
	in         io.Reader
	out        io.Writer
	logger     *zap.Logger
}

// NewLoop wires the interactive session.
func NewLoop(cfg *config.Config, orch Orchestrator, dispatcher *Dispatcher, in io.Reader, out io.Writer, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{cfg: cfg, orch: orch, dispatcher: dispatcher, in: in, out: out, logger: logger}
}

// MarkdownRenderer returns a glamour-backed preview renderer, or nil if
// glamour cannot initialize (previews then print raw).
func MarkdownRenderer() func(content, kind string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return nil
	}
	return func(content, kind string) string {
		if kind != "md" {
			return content
		}
		out, err := r.Render(content)
		if err != nil {
			return content
		}
		return out
	}
}

// Run drives the session until /exit, end of input, or cancellation.
// One request runs to its terminal event before the next line is read.
func (l *Loop) Run(ctx context.Context) error {
	styles := l.dispatcher.Styles()
	fmt.Fprintln(l.out, styles.Banner.Render(uipkg.Banner(styles.Theme)))
	fmt.Fprintf(l.out, "%s\n", styles.Header.Render("Welcome to the Context7 agent! (model: "+l.cfg.Model+", theme: "+string(styles.Theme)+")"))
	l.dispatcher.printHelp()

	// Console reads block and cannot be interrupted portably, so the
	// pump runs detached. On cancellation the loop returns and the
	// process exits out from under the pending read.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(l.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	defer l.farewell()
	for {
		fmt.Fprint(l.out, l.dispatcher.Styles().Prompt.Render("You> "))
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch l.dispatcher.Dispatch(line) {
			case ActionExit:
				return nil
			case ActionChat:
				l.chat(ctx, strings.TrimSpace(line))
			}
		}
	}
}

func (l *Loop) farewell() {
	fmt.Fprintln(l.out)
	fmt.Fprintln(l.out, l.dispatcher.Styles().Header.Render("Goodbye!"))
}

// chat forwards free text to the orchestrator and renders its event
// stream. A failed request is reported and the loop carries on.
func (l *Loop) chat(ctx context.Context, text string) {
	styles := l.dispatcher.Styles()

	for ev := range l.orch.Stream(ctx, text, DefaultConversation) {
		switch ev := ev.(type) {
		case agent.ContentChunk:
			fmt.Fprint(l.out, styles.UserInput.Render(ev.Text))
		case agent.Complete:
			fmt.Fprintln(l.out)
		case agent.Error:
			l.reportError(ev.Err)
		}
	}
}

func (l *Loop) reportError(err error) {
	styles := l.dispatcher.Styles()
	fmt.Fprintln(l.out, styles.Error.Render("Chat error: "+err.Error()))

	var dep *mcp.DependencyMissingError
	if errors.As(err, &dep) {
		fmt.Fprintln(l.out, styles.Warning.Render("Retrieval needs Node.js 18+ with npx on PATH."))
		fmt.Fprintln(l.out, styles.Muted.Render("Install from https://nodejs.org/ — history and themes keep working meanwhile."))
		return
	}
	fmt.Fprintln(l.out, styles.Muted.Render("Check your API key and connectivity, then try again."))
}
