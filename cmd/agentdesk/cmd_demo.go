package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/agentdesk/internal/agents"
	"github.com/user/agentdesk/internal/backend"
	"github.com/user/agentdesk/internal/gateway"
	"github.com/user/agentdesk/internal/registry"
	"github.com/user/agentdesk/internal/sidebar"
	"github.com/user/agentdesk/internal/transcript"
	"github.com/user/agentdesk/internal/types"
)

func init() {
	rootCmd.AddCommand(demoCmd)
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted conversation in-process and print the sidebar",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(cmd.Context(), cmd.OutOrStdout())
	},
}

type demoStep struct {
	agentID string
	text    string
}

var demoScript = []demoStep{
	{agents.AutoID, "Redesign the dashboard for better engagement"},
	{"seo-agent", "Keyword research for our spring collection blog"},
	{"", "What is our ROAS on the summer ads?"},
	{"merchandising-agent", "Which products are low on stock?"},
}

func runDemo(ctx context.Context, out io.Writer) error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(registry.WithLogger(logger))
	tc := transcript.New(reg)
	gw := gateway.New(reg, tc, backend.NewCanned(0), 2, gateway.WithLogger(logger))
	gw.Start(ctx)
	defer gw.Stop()

	var changes atomic.Int64
	view := sidebar.New(reg, sidebar.OnChange(func([]sidebar.Entry) { changes.Add(1) }))
	defer view.Close()

	picker := agents.NewPicker(reg)
	var ids []types.SessionID
	for _, step := range demoScript {
		id, err := picker.Start(step.agentID)
		if err != nil {
			return err
		}
		if _, err := gw.HandleTurn(ctx, id, step.text); err != nil {
			return fmt.Errorf("send %q: %w", step.text, err)
		}
		ids = append(ids, id)
	}
	if !gw.Queue.WaitIdle(10 * time.Second) {
		return fmt.Errorf("demo turns did not finish")
	}

	// an explicit name survives later messages
	reg.RenameSession(ids[1], "Spring SEO plan")
	tc.Append(ids[1], types.Message{Role: types.RoleUser, Content: "Also check backlinks"})

	fmt.Fprintln(out, "Sidebar")
	fmt.Fprintln(out, "-------")
	printGroups(out, view.Groups())

	reg.DeleteSession(ids[3])
	gw.Discard(ids[3])
	fmt.Fprintf(out, "\nDeleted %q; %d sessions remain.\n", demoScript[3].text, len(view.Entries()))

	first, err := tc.Open(ids[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	printTranscript(out, first)
	fmt.Fprintf(out, "(%d sidebar refreshes)\n", changes.Load())
	return nil
}
