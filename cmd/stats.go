package cmd

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/scipunch/feedwiki/entry"
	"github.com/scipunch/feedwiki/store"
)

var flagLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many entries are stored and the latest ones",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVarP(&flagLimit, "limit", "n", 10, "number of recent entries to list")
}

func runStats(cmd *cobra.Command, args []string) error {
	conf, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to read config with %w", err)
	}

	st, err := store.Open(cmd.Context(), conf.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	total, err := st.Count(cmd.Context())
	if err != nil {
		return err
	}
	rows, err := st.Recent(cmd.Context(), flagLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d entries in %s\n\n", total, conf.DatabasePath)

	table := tablewriter.NewWriter(out)
	table.Header([]string{"Fetched", "Source", "Title", "Link"})
	if err := table.Bulk(lo.Map(rows, func(r store.Row, _ int) []string {
		return []string{
			r.FetchedAt.Format(entry.TimestampLayout),
			entry.Truncate(r.Source, 24),
			entry.Truncate(r.Title, 60),
			r.Link,
		}
	})); err != nil {
		return err
	}
	return table.Render()
}
