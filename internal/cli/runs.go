package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/plagiscan/internal/report"
	"github.com/ppiankov/plagiscan/internal/store"
)

var (
	runsStorePath string
	runsLimit     int
	runsJSON      bool
	runsFormat    string
)

// runsCmd groups commands that read the run store
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded checks",
	Long: `Every check is recorded in a local SQLite run store keyed by run ID
(default: $HOME/.plagiscan/runs.db). These commands read it back.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openRunStore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		runs, err := s.List(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}

		if runsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tSTARTED\tSTATUS\tSIMILARITY\tMATCHES\tDOCUMENT")
		for _, r := range runs {
			started := "-"
			if !r.StartedAt.IsZero() {
				started = r.StartedAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f%%\t%d\t%s\n",
				r.ID, started, r.Status, r.OverallPercentage, r.TotalMatches, r.SourceLabel)
		}
		return w.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the report of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openRunStore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		rep, status, err := s.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Run %s: %s\n", rep.RunID, status)

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		format := runsFormat
		if format == "" {
			format = cfg.Output.Format
		}
		return report.NewRenderer(cfg.Output.IncludeFooter).Render(cmd.OutOrStdout(), rep, format)
	},
}

var runsSourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the source URLs matched most often across all runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openRunStore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		counts, err := s.SourceCounts(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}

		urls := make([]string, 0, len(counts))
		for u := range counts {
			urls = append(urls, u)
		}
		sort.Slice(urls, func(i, j int) bool {
			if counts[urls[i]] != counts[urls[j]] {
				return counts[urls[i]] > counts[urls[j]]
			}
			return urls[i] < urls[j]
		})

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MATCHES\tSOURCE")
		for _, u := range urls {
			fmt.Fprintf(w, "%d\t%s\n", counts[u], u)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsSourcesCmd)

	runsCmd.PersistentFlags().StringVar(&runsStorePath, "store", "", "run store path (default: $HOME/.plagiscan/runs.db)")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list (0 for all)")
	runsListCmd.Flags().BoolVar(&runsJSON, "json", false, "print runs as JSON")
	runsShowCmd.Flags().StringVar(&runsFormat, "format", "", "output format (text, json, yaml, md)")
	runsSourcesCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum sources to list (0 for all)")
}

// openRunStore opens the configured store; it must already exist
func openRunStore(cmd *cobra.Command) (*store.Store, error) {
	path := runsStorePath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Store.Path
	}
	if path == "" {
		return nil, fmt.Errorf("no run store configured")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("run store %s: %w", path, err)
	}
	return openStore(path)
}
