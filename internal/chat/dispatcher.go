// Package chat implements the interactive loop: slash directives are
// dispatched locally, free text goes to the retrieval pipeline. No
// single command failure may take the session down.
package chat

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nordeim/context7-agent-v2-sub001/internal/history"
	"github.com/nordeim/context7-agent-v2-sub001/internal/mcp"
	"github.com/nordeim/context7-agent-v2-sub001/internal/ui"
)

// Action tells the loop what to do after a line was handled.
type Action int

const (
	// ActionContinue keeps the loop running.
	ActionContinue Action = iota
	// ActionExit ends the session gracefully.
	ActionExit
	// ActionChat forwards the line to the orchestrator verbatim.
	ActionChat
)

// Dispatcher classifies input lines and executes directives against the
// store and theme state.
type Dispatcher struct {
	store   *history.Store
	results func() []mcp.Result
	preview func(content, kind string) string
	out     io.Writer

	styles ui.Styles
}

// NewDispatcher builds a dispatcher. results supplies the documents of
// the most recent retrieval; preview renders document content (may be
// nil for raw output).
func NewDispatcher(store *history.Store, theme ui.Theme, results func() []mcp.Result, preview func(content, kind string) string, out io.Writer) *Dispatcher {
	if preview == nil {
		preview = func(content, _ string) string { return content }
	}
	return &Dispatcher{
		store:   store,
		results: results,
		preview: preview,
		out:     out,
		styles:  ui.NewStyles(theme),
	}
}

// Styles returns the style bundle for the active theme.
func (d *Dispatcher) Styles() ui.Styles { return d.styles }

// Dispatch handles one raw input line. Directive failures are reported
// inline and return ActionContinue; they never terminate the loop.
func (d *Dispatcher) Dispatch(line string) Action {
	line = strings.TrimSpace(line)
	if line == "" {
		return ActionContinue
	}
	if !strings.HasPrefix(line, "/") {
		return ActionChat
	}

	parts := strings.Fields(line)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "/exit", "/quit", "/q":
		return ActionExit
	case "/help":
		d.printHelp()
	case "/theme":
		d.switchTheme(args)
	case "/history":
		d.showHistory()
	case "/bookmark":
		d.bookmark(args)
	case "/preview":
		d.previewDoc(args)
	case "/sessions":
		d.showSessions()
	case "/save-session":
		d.saveSession(args)
	case "/clear":
		d.store.Clear(DefaultConversation)
		fmt.Fprintln(d.out, d.styles.Success.Render("History cleared."))
	case "/analytics":
		d.showAnalytics()
	default:
		d.errorf("Unknown command %s. Try /help.", cmd)
	}
	return ActionContinue
}

// DefaultConversation is the conversation the interactive loop writes to.
const DefaultConversation = "default"

func (d *Dispatcher) errorf(format string, args ...any) {
	fmt.Fprintln(d.out, d.styles.Error.Render("Error: "+fmt.Sprintf(format, args...)))
}

func (d *Dispatcher) printHelp() {
	help := `
/help            Show this help screen
/theme THEME     Switch theme (` + strings.Join(ui.ThemeNames(), ", ") + `)
/history         Show chat history
/bookmark N      Bookmark document N from the last results
/preview N       Preview document N from the last results
/sessions        List saved sessions
/save-session    Save a snapshot of this session
/clear           Clear chat history
/analytics       Show usage counters
/exit            Exit the agent
`
	fmt.Fprintln(d.out, d.styles.Muted.Render(help))
}

func (d *Dispatcher) switchTheme(args []string) {
	if len(args) == 0 {
		d.errorf("usage: /theme NAME (valid: %s)", strings.Join(ui.ThemeNames(), ", "))
		return
	}
	theme, err := ui.ParseTheme(args[0])
	if err != nil {
		// Active theme stays unchanged on invalid input.
		d.errorf("%v", err)
		return
	}
	d.styles = ui.NewStyles(theme)
	fmt.Fprintln(d.out, d.styles.Banner.Render(ui.Banner(theme)))
	fmt.Fprintln(d.out, d.styles.Success.Render("Theme switched to "+string(theme)))
}

func (d *Dispatcher) showHistory() {
	turns := d.store.History(DefaultConversation)
	if len(turns) == 0 {
		fmt.Fprintln(d.out, d.styles.Muted.Render("No history yet."))
		return
	}
	for _, t := range turns {
		content := t.Content
		if len(content) > 100 {
			content = content[:100] + "..."
		}
		role := d.styles.Prompt.Render(string(t.Role))
		fmt.Fprintf(d.out, "%s  %s\n", role, content)
	}
}

// resultAt resolves a one-based index argument against the last results.
func (d *Dispatcher) resultAt(args []string, verb string) (mcp.Result, bool) {
	if len(args) == 0 {
		d.errorf("usage: /%s N", verb)
		return mcp.Result{}, false
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		d.errorf("invalid index %q", args[0])
		return mcp.Result{}, false
	}
	results := d.results()
	if len(results) == 0 {
		d.errorf("no results to %s; ask a question first", verb)
		return mcp.Result{}, false
	}
	if idx < 1 || idx > len(results) {
		d.errorf("index %d out of range (1-%d)", idx, len(results))
		return mcp.Result{}, false
	}
	return results[idx-1], true
}

func (d *Dispatcher) bookmark(args []string) {
	doc, ok := d.resultAt(args, "bookmark")
	if !ok {
		return
	}
	err := d.store.AddBookmark(history.Document{
		"title":   doc.Title,
		"content": doc.Content,
		"type":    doc.Type,
		"source":  doc.Source,
	})
	if err != nil {
		d.errorf("failed to save bookmark: %v", err)
		return
	}
	fmt.Fprintln(d.out, d.styles.Success.Render("Bookmarked!"))
}

func (d *Dispatcher) previewDoc(args []string) {
	doc, ok := d.resultAt(args, "preview")
	if !ok {
		return
	}
	if doc.Title != "" {
		fmt.Fprintln(d.out, d.styles.Header.Render(doc.Title))
	}
	fmt.Fprintln(d.out, d.preview(doc.Content, doc.Type))
}

func (d *Dispatcher) showSessions() {
	sessions := d.store.Sessions()
	if len(sessions) == 0 {
		fmt.Fprintln(d.out, d.styles.Muted.Render("No saved sessions."))
		return
	}
	for i, s := range sessions {
		name, _ := s["name"].(string)
		if name == "" {
			name, _ = s["id"].(string)
		}
		fmt.Fprintf(d.out, "%2d. %s\n", i+1, name)
	}
}

func (d *Dispatcher) saveSession(args []string) {
	name := strings.Join(args, " ")
	if name == "" {
		name = "session " + time.Now().Format("2006-01-02 15:04")
	}
	rec := history.SessionRecord{
		"id":       uuid.NewString(),
		"name":     name,
		"saved_at": time.Now().UTC().Format(time.RFC3339),
		"turns":    len(d.store.History(DefaultConversation)),
	}
	if err := d.store.AddSession(rec); err != nil {
		d.errorf("failed to save session: %v", err)
		return
	}
	fmt.Fprintln(d.out, d.styles.Success.Render("Session saved: "+name))
}

func (d *Dispatcher) showAnalytics() {
	fmt.Fprintf(d.out, "turns: %d\nbookmarks: %d\nsessions: %d\nlast results: %d\n",
		len(d.store.History(DefaultConversation)),
		len(d.store.Bookmarks()),
		len(d.store.Sessions()),
		len(d.results()))
}
