package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/chroma/internal/store"
	"github.com/andresmejia3/chroma/internal/types"
	"github.com/andresmejia3/chroma/internal/utils"
	"github.com/spf13/cobra"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list [session_id]",
	Short: "List recent scan sessions, or the codes found in one session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if err := requireDB(); err != nil {
			return err
		}
		if len(args) == 1 {
			return runListResults(cmd, args[0])
		}
		return runListSessions(cmd)
	},
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum number of sessions to show")
	rootCmd.AddCommand(listCmd)
}

func runListSessions(cmd *cobra.Command) error {
	sessions, err := DB.ListSessions(cmd.Context(), listLimit)
	if err != nil {
		utils.ShowError("Failed to list sessions", err, nil)
		return err
	}
	writeSessions(os.Stdout, sessions)
	return nil
}

func writeSessions(out io.Writer, sessions []store.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No scan sessions found in database.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tOUTCOME\tFOUND")
	fmt.Fprintln(w, "--\t-------\t--------\t-------\t-----")
	for _, s := range sessions {
		duration := "-"
		if s.FinishedAt != nil {
			duration = utils.FmtTime(s.FinishedAt.Sub(s.StartedAt))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\n", s.ID[:min(8, len(s.ID))], s.StartedAt.Local().Format("2006-01-02 15:04"), duration, s.Outcome, s.Found, len(types.Channels))
	}
	w.Flush()
}

func runListResults(cmd *cobra.Command, prefix string) error {
	id, err := DB.ResolveSession(cmd.Context(), prefix)
	if err != nil {
		utils.ShowError("Unknown session", err, nil)
		return err
	}
	results, err := DB.ListResults(cmd.Context(), id)
	if err != nil {
		utils.ShowError("Failed to list results", err, nil)
		return err
	}
	writeResults(os.Stdout, id, results)
	return nil
}

func writeResults(out io.Writer, id string, results []types.FoundResult) {
	fmt.Fprintf(out, "Session %s\n", id)
	if len(results) == 0 {
		fmt.Fprintln(out, "No codes were found in this session.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "CHANNEL\tMETHOD\tDISPLAY\tPAYLOAD\tFOUND AT")
	fmt.Fprintln(w, "-------\t------\t-------\t-------\t--------")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Channel, r.Method, r.DisplayText, r.RawPayload, r.FoundAt.Local().Format("15:04:05"))
	}
	w.Flush()
}
