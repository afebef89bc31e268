package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/textsearch/internal/output"
	"github.com/Aman-CERP/textsearch/internal/telemetry"
)

// latencyOrder lists latency buckets from fastest to slowest.
var latencyOrder = []telemetry.LatencyBucket{
	telemetry.BucketP10, telemetry.BucketP50, telemetry.BucketP100,
	telemetry.BucketP500, telemetry.BucketP1000,
}

func newStatsCmd() *cobra.Command {
	var (
		days  int
		limit int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show query telemetry",
		Long: `Display the query telemetry recorded by the CLI and the MCP server:
  - Operation counts (search, find, aggregate)
  - Top query terms
  - Zero-result queries
  - Latency distribution

Telemetry is off by default. Enable it with "telemetry.enabled: true" in
the config file or TEXTSEARCH_TELEMETRY=true.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), output.New(cmd.OutOrStdout()), days, limit)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Number of days to include")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of terms and zero-result queries to show")

	return cmd
}

func runStats(ctx context.Context, out *output.Writer, days, limit int) error {
	if days <= 0 {
		return fmt.Errorf("--days must be positive, got %d", days)
	}
	path := currentConfig().Telemetry.Path
	if _, err := os.Stat(path); err != nil {
		if jsonOutput {
			return out.JSON(emptySummary())
		}
		out.Warning("No telemetry recorded yet")
		out.Dim(fmt.Sprintf("Expected at: %s", path))
		return nil
	}

	store, err := telemetry.OpenStore(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	now := time.Now()
	summary, err := store.Summary(ctx, now.AddDate(0, 0, -(days-1)), now, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		return out.JSON(summary)
	}
	printSummary(out, summary, days)
	return nil
}

func emptySummary() *telemetry.Summary {
	return &telemetry.Summary{
		OperationCounts:     map[telemetry.Operation]int64{},
		TopTerms:            []telemetry.TermCount{},
		ZeroResultQueries:   []telemetry.ZeroResultQuery{},
		LatencyDistribution: map[telemetry.LatencyBucket]int64{},
	}
}

func printSummary(out *output.Writer, s *telemetry.Summary, days int) {
	out.Header(fmt.Sprintf("Query Statistics (last %d days)", days))
	out.KeyValue("total", s.TotalQueries)
	out.Newline()

	if len(s.OperationCounts) > 0 {
		out.Header("Operations")
		ops := make([]string, 0, len(s.OperationCounts))
		for op := range s.OperationCounts {
			ops = append(ops, string(op))
		}
		sort.Strings(ops)
		for _, op := range ops {
			out.KeyValue(op, s.OperationCounts[telemetry.Operation(op)])
		}
		out.Newline()
	}

	out.Header("Top Query Terms")
	if len(s.TopTerms) == 0 {
		out.Dim("  (none recorded yet)")
	}
	for i, tc := range s.TopTerms {
		out.Status("", fmt.Sprintf("%d. %s (%d)", i+1, tc.Term, tc.Count))
	}
	out.Newline()

	out.Header("Recent Zero-Result Queries")
	if len(s.ZeroResultQueries) == 0 {
		out.Dim("  (none)")
	}
	for _, z := range s.ZeroResultQueries {
		out.Status("", fmt.Sprintf("%s %q on %s", z.Operation, z.Query, z.Index))
	}
	out.Newline()

	if len(s.LatencyDistribution) > 0 {
		out.Header("Latency")
		for _, b := range latencyOrder {
			if n, ok := s.LatencyDistribution[b]; ok {
				out.KeyValue(string(b), n)
			}
		}
	}
}
