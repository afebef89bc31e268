package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/textsearch/internal/ingest"
	"github.com/Aman-CERP/textsearch/internal/mcp"
	"github.com/Aman-CERP/textsearch/internal/output"
	"github.com/Aman-CERP/textsearch/pkg/textsearch"
)

func newCreateCmd() *cobra.Command {
	var mapping mappingFlags

	cmd := &cobra.Command{
		Use:   "create <path>",
		Short: "Create or open an index",
		Long: `Create the index at path from a mapping, or open it when it exists.

Opening an existing index with a different mapping fails with a schema
mismatch. The mapping file may contain comments and trailing commas.`,
		Example: `  textsearch create ./idx --mapping '{"properties":{"data":{"type":"text","text":true,"stored":true}}}'
  textsearch create ./idx --mapping-file mapping.jsonc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !mapping.set() {
				return fmt.Errorf("a mapping is required: use --mapping or --mapping-file")
			}
			return withApp(cmd, func(ctx context.Context, a *app, out *output.Writer) error {
				sess, err := a.session(ctx, args[0], &mapping)
				if err != nil {
					return err
				}
				return printSchema(out, sess)
			})
		},
	}

	mapping.register(cmd)
	return cmd
}

func printSchema(out *output.Writer, sess *textsearch.Session) error {
	info, err := mcp.Describe(sess)
	if err != nil {
		return err
	}
	if jsonOutput {
		return out.JSON(info)
	}

	out.Success(fmt.Sprintf("Index ready at %s", info.Path))
	out.Newline()
	out.Header("Fields")
	for _, f := range info.Fields {
		out.KeyValue(f.Name, strings.TrimSpace(f.Type+" "+f.Options))
	}
	out.Newline()
	out.Header("Roles")
	out.KeyValue("search", strings.Join(info.Search, ", "))
	out.KeyValue("id", orNone(info.ID))
	out.KeyValue("return", orNone(info.Return))
	out.KeyValue("documents", info.Documents)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func newDropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <path>",
		Short: "Remove an index",
		Long: `Remove the index directory at path. Dropping a missing index succeeds.
Fails while another process has the index open.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(_ context.Context, a *app, out *output.Writer) error {
				if err := a.registry.Drop(args[0]); err != nil {
					return err
				}
				if jsonOutput {
					return out.JSON(map[string]string{"dropped": args[0]})
				}
				out.Successf("Dropped %s", args[0])
				return nil
			})
		},
	}
}

func newAddCmd() *cobra.Command {
	var (
		file    string
		batch   bool
		mapping mappingFlags
	)

	cmd := &cobra.Command{
		Use:   "add <path> [document...]",
		Short: "Add JSON documents to an index",
		Long: `Add documents given as arguments or, with --file, one per line of a
JSONL file ("-" reads stdin).

All documents are validated before any is added. Each document is
committed on its own unless --batch is set, which stages them and
commits once at the end.`,
		Example: `  textsearch add ./idx '{"data":"hello world"}'
  textsearch add ./idx --file docs.jsonl --batch
  cat docs.jsonl | textsearch add ./idx --file -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readDocuments(cmd, file, args[1:])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app, out *output.Writer) error {
				sess, err := a.session(ctx, args[0], &mapping)
				if err != nil {
					return err
				}
				res, err := ingest.Load(ctx, sess, docs, batch)
				if err != nil {
					return err
				}
				if jsonOutput {
					return out.JSON(res)
				}
				out.Successf("Added %d documents (%d commits)", res.Added, res.Commits)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSONL file to read documents from (- for stdin)")
	cmd.Flags().BoolVar(&batch, "batch", false, "Stage all documents and commit once")
	mapping.register(cmd)

	return cmd
}

func readDocuments(cmd *cobra.Command, file string, args []string) ([]ingest.Document, error) {
	if file != "" && len(args) > 0 {
		return nil, fmt.Errorf("give documents as arguments or with --file, not both")
	}

	switch file {
	case "":
		docs := make([]ingest.Document, 0, len(args))
		for i, arg := range args {
			docs = append(docs, ingest.Document{Line: i + 1, Raw: []byte(arg)})
		}
		if len(docs) == 0 {
			return nil, fmt.Errorf("no documents given")
		}
		return docs, nil
	case "-":
		return ingest.ReadLines(cmd.InOrStdin())
	default:
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open documents: %w", err)
		}
		defer func() { _ = f.Close() }()
		return ingest.ReadLines(f)
	}
}
