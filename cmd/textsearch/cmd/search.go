package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/textsearch/internal/output"
	"github.com/Aman-CERP/textsearch/pkg/textsearch"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit  int
	fields []string
	ret    []string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <path> <query>",
		Short: "Search an index",
		Long: `Run a free-text query over the index's search fields and print the
stored fields of each hit, best first.

Query syntax: bare words match any search field, field:value restricts a
clause (data.key1:awesome for json fields), "quoted phrases", +required
and -excluded clauses, and numeric ranges like gid:>10.`,
		Example: `  textsearch search ./idx hello
  textsearch search ./idx 'data.key1:awesome' --return gid
  textsearch search ./idx hello --fields title --limit 3`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args[1:], " ")
			return withApp(cmd, func(ctx context.Context, a *app, out *output.Writer) error {
				res, err := a.registry.Search(ctx, args[0], textsearch.SearchInput{
					SearchFields: opts.fields,
					Query:        query,
					ReturnFields: opts.ret,
					Limit:        opts.limit,
				})
				if err != nil {
					return err
				}
				return printDocuments(out, res)
			})
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringSliceVar(&opts.fields, "fields", nil, "Fields to search instead of the declared search fields")
	cmd.Flags().StringSliceVar(&opts.ret, "return", nil, "Stored fields to print (default all)")

	return cmd
}

func newFindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <path> <id>",
		Short: "Look up documents by identifier",
		Long: `Match the query against the index's identifier field and print the
return field of each hit.`,
		Example: `  textsearch find ./idx 42`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args[1:], " ")
			return withApp(cmd, func(ctx context.Context, a *app, out *output.Writer) error {
				res, err := a.registry.Find(ctx, args[0], query)
				if err != nil {
					return err
				}
				return printDocuments(out, res)
			})
		},
	}
}

func printDocuments(out *output.Writer, res *textsearch.SearchOutput) error {
	if jsonOutput {
		return out.JSON(res)
	}
	if len(res.Docs) == 0 {
		out.Dim("No results.")
		return nil
	}
	for i, d := range res.Docs {
		out.Document(i+1, d.Data)
	}
	return nil
}

func newAggregateCmd() *cobra.Command {
	var aggs string

	cmd := &cobra.Command{
		Use:   "aggregate <path> <query>",
		Short: "Aggregate over matching documents",
		Long: `Run an aggregation request over the documents matching query.

Metric aggregations: value_count, sum, avg, min, max, stats.
Bucket aggregations (fast fields only): terms, range.`,
		Example: `  textsearch aggregate ./idx awesome --aggs '{"count":{"value_count":{"field":"metadata.txid"}}}'
  textsearch aggregate ./idx hello --aggs '{"by_tag":{"terms":{"field":"tag","size":5}}}'`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args[1:], " ")
			return withApp(cmd, func(ctx context.Context, a *app, out *output.Writer) error {
				res, err := a.registry.Aggregate(ctx, args[0], query, aggs)
				if err != nil {
					return err
				}
				return printAggregation(out, res)
			})
		},
	}

	cmd.Flags().StringVar(&aggs, "aggs", "", "Aggregation request as JSON")
	_ = cmd.MarkFlagRequired("aggs")

	return cmd
}

func printAggregation(out *output.Writer, res *textsearch.AggregateOutput) error {
	if jsonOutput {
		return out.JSON(res)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(res.Data), "", "  "); err != nil {
		out.Code(res.Data)
		return nil
	}
	out.Code(pretty.String())
	return nil
}
