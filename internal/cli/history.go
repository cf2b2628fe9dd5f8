package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/encapt"
	"github.com/hupe1980/encapt/journal"
)

func newHistoryCmd(g *globals) *cobra.Command {
	var (
		filter  journal.Filter
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded task transitions from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.cfg.Journal.Driver != "sqlite" {
				return fmt.Errorf("journal driver %q keeps no history between runs; set journal.driver to sqlite", g.cfg.Journal.Driver)
			}

			store, err := encapt.OpenJournal(g.cfg.Journal, g.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No journal entries.")
				return nil
			}

			for _, e := range entries {
				from := e.From
				if from == "" {
					from = "user"
				}
				fmt.Fprintf(out, "%s  %-8s %-14s %s -> %s  task=%s run=%s\n",
					e.At.Local().Format(time.DateTime), e.State, e.Kind, from, e.To, e.TaskID, e.RunID)
				if e.Error != "" {
					fmt.Fprintf(out, "    error: %s\n", e.Error)
				}
				if verbose && e.Result != "" {
					fmt.Fprintf(out, "    result: %s\n", indent(e.Result))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.RunID, "run", "", "only entries of this run")
	cmd.Flags().StringVar(&filter.TaskID, "task", "", "only entries of this task")
	cmd.Flags().StringVar(&filter.Agent, "agent", "", "only entries sent by or to this agent")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 50, "show at most this many recent entries (0 for all)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "include task results")
	return cmd
}

func indent(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n    ")
}
