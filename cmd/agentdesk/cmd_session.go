package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/agentdesk/internal/api"
	"github.com/user/agentdesk/internal/sidebar"
	"github.com/user/agentdesk/internal/types"
)

var serverAddr string

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.PersistentFlags().StringVar(&serverAddr, "addr", "", "server address (defaults to the configured listen address)")
	sessionCmd.AddCommand(sessionListCmd, sessionNewCmd, sessionShowCmd, sessionRenameCmd,
		sessionAssignCmd, sessionDeleteCmd, sessionSendCmd)

	sessionListCmd.Flags().String("agent", "", "only sessions assigned to this agent name")
	sessionListCmd.Flags().Bool("grouped", false, "group sessions by agent")
	sessionNewCmd.Flags().String("agent", "", "agent id from 'agentdesk agents' (default: auto)")
	sessionSendCmd.Flags().Duration("wait", 0, "wait up to this long for the agent's reply")
}

func client() *api.Client {
	addr := serverAddr
	if addr == "" {
		addr = loadConfig().Listen
	}
	return api.NewClient(addr)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions on a running server",
}

func printEntries(out io.Writer, entries []sidebar.Entry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAGENT\tMESSAGES\tACTIVE")
	for _, e := range entries {
		agent := e.Agent
		if agent == "" {
			agent = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", e.ID, e.Title, agent, e.Messages, e.Ago)
	}
	return w.Flush()
}

func printGroups(out io.Writer, groups []sidebar.Group) {
	for _, g := range groups {
		fmt.Fprintf(out, "%s (%d)\n", g.Agent, len(g.Entries))
		for _, e := range g.Entries {
			fmt.Fprintf(out, "  %-40s %3d msgs  %s\n", e.Title, e.Messages, e.Ago)
		}
	}
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, _ := cmd.Flags().GetString("agent")
		grouped, _ := cmd.Flags().GetBool("grouped")

		resp, err := client().ListSessions(cmd.Context(), agent, grouped)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(resp.Sessions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
			return nil
		}
		if grouped {
			printGroups(cmd.OutOrStdout(), resp.Groups)
			return nil
		}
		return printEntries(cmd.OutOrStdout(), resp.Sessions)
	},
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, _ := cmd.Flags().GetString("agent")
		sess, err := client().CreateSession(cmd.Context(), agent)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", sess.ID, sess.Name)
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a session's transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := client().GetSession(cmd.Context(), types.SessionID(args[0]))
		if err != nil {
			return err
		}
		printTranscript(cmd.OutOrStdout(), sess)
		return nil
	},
}

func printTranscript(out io.Writer, sess *types.Session) {
	agent := sess.Agent
	if agent == "" {
		agent = "unassigned"
	}
	fmt.Fprintf(out, "%s [%s]\n\n", sess.Name, agent)
	for _, m := range sess.Messages {
		who := m.Role
		if m.Agent != "" && m.Role != types.RoleUser {
			who = m.Agent
		}
		fmt.Fprintf(out, "%s:\n%s\n\n", who, strings.TrimSpace(m.Content))
	}
}

var sessionRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a session",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args[1:], " ")
		if err := client().RenameSession(cmd.Context(), types.SessionID(args[0]), name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s renamed to %q.\n", args[0], name)
		return nil
	},
}

var sessionAssignCmd = &cobra.Command{
	Use:   "assign <id> <agent-id>",
	Short: "Assign a session to an agent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client().AssignAgent(cmd.Context(), types.SessionID(args[0]), args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s assigned to %s.\n", args[0], args[1])
		return nil
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client().DeleteSession(cmd.Context(), types.SessionID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s deleted.\n", args[0])
		return nil
	},
}

var sessionSendCmd = &cobra.Command{
	Use:   "send <id> <message>",
	Short: "Send a message to a session's agent",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetDuration("wait")
		id := types.SessionID(args[0])
		c := client()

		before, err := c.GetSession(cmd.Context(), id)
		if err != nil {
			return err
		}
		run, err := c.Send(cmd.Context(), id, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Queued run %s for %s.\n", run.RunID, run.Agent)
		if wait <= 0 {
			return nil
		}

		reply, err := waitForReply(cmd.Context(), c, id, len(before.Messages)+1, wait)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n%s\n", reply.Agent, strings.TrimSpace(reply.Content))
		return nil
	},
}

// waitForReply polls until the session holds more than after messages and
// returns the newest one.
func waitForReply(ctx context.Context, c *api.Client, id types.SessionID, after int, timeout time.Duration) (*types.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		sess, err := c.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(sess.Messages) > after {
			return &sess.Messages[len(sess.Messages)-1], nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("no reply within %s", timeout)
		case <-ticker.C:
		}
	}
}
