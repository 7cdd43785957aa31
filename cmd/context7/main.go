// Command context7 is an interactive terminal agent that answers
// questions from the Context7 documentation knowledge base.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nordeim/context7-agent-v2-sub001/internal/config"
)

var version = "2.0.0"

func main() {
	root := &cobra.Command{
		Use:          "context7",
		Short:        "Chat with the Context7 documentation knowledge base",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "chat",
			Short: "Start the interactive chat session (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runChat(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "doctor",
			Short: "Check that the tool server and its launcher are usable",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDoctor(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println("context7 " + version)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		reportFatal(err)
		os.Exit(1)
	}
}

// reportFatal prints startup failures. Configuration errors carry their
// own remediation text for the operator.
func reportFatal(err error) {
	var cerr *config.Error
	if errors.As(err, &cerr) {
		fmt.Fprintf(os.Stderr, "configuration error: %s\n  fix: %s\n", cerr.Reason, cerr.Remediation)
		return
	}
	fmt.Fprintln(os.Stderr, "error:", err)
}
