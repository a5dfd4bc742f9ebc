package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/agentdesk/internal/agents"
)

func init() {
	rootCmd.AddCommand(agentsCmd)
	agentsCmd.Flags().BoolP("verbose", "v", false, "show descriptions and capabilities")
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the agent catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTAG\tSUBSCRIBED")
		for _, a := range agents.All() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", a.ID, a.Name, a.Tag, a.Subscribed)
			if verbose {
				fmt.Fprintf(w, "\t%s\t\t\n", a.Description)
				fmt.Fprintf(w, "\t%s\t\t\n", strings.Join(a.Capabilities, "; "))
			}
		}
		fmt.Fprintf(w, "%s\t(routes the first message)\t\t\n", agents.AutoID)
		return w.Flush()
	},
}
