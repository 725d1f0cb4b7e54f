package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hailam/chessponder/internal/storage"
)

var (
	recentOutcomes int
	statsJSON      bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show persisted ponder statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVarP(&recentOutcomes, "recent", "n", 10, "number of recent sessions to list")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setupLogging(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := storage.Open(storage.Options{
		Dir:      cfg.Storage.Dir,
		InMemory: cfg.Storage.InMemory,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	s, err := store.LoadStats()
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	recent, err := store.Outcomes(recentOutcomes)
	if err != nil {
		return fmt.Errorf("load outcomes: %w", err)
	}

	out := cmd.OutOrStdout()
	if statsJSON {
		b, err := json.MarshalIndent(struct {
			Stats  *storage.PonderStats `json:"stats"`
			Recent []storage.Outcome    `json:"recent"`
		}{s, recent}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil
	}

	fmt.Fprintf(out, "Sessions:     %d\n", s.Sessions)
	fmt.Fprintf(out, "Hits:         %d (%.1f%%)\n", s.Hits, s.HitRate())
	fmt.Fprintf(out, "Misses:       %d\n", s.Misses)
	fmt.Fprintf(out, "Completed:    %d\n", s.Completed)
	fmt.Fprintf(out, "Aborted:      %d\n", s.Aborted)
	fmt.Fprintf(out, "Hit streak:   %d (longest %d)\n", s.CurrentHitStreak, s.LongestHitStreak)
	fmt.Fprintf(out, "Nodes:        %d\n", s.Nodes)
	fmt.Fprintf(out, "Ponder time:  %s\n", s.TotalPonderTime)

	sources := make([]string, 0, len(s.BySource))
	for src := range s.BySource {
		sources = append(sources, src)
	}
	slices.Sort(sources)
	for _, src := range sources {
		fmt.Fprintf(out, "  %-12s %d\n", src, s.BySource[src])
	}

	if len(recent) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tMOVE\tSOURCE\tHIT\tCOMPLETED\tNODES")
	for _, o := range recent {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%d\n",
			o.At.Format("2006-01-02 15:04:05"), o.Move, o.Source, o.Hit, o.Completed, o.Nodes)
	}
	return tw.Flush()
}
