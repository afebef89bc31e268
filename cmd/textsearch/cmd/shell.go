package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/textsearch/internal/logging"
	"github.com/Aman-CERP/textsearch/internal/output"
	"github.com/Aman-CERP/textsearch/pkg/textsearch"
)

const shellPrompt = "textsearch> "

var shellHelp = map[string]string{
	"add":      "add <json>          add a document and commit",
	"add!":     "add! <json>         stage a document without committing",
	"commit":   "commit              make staged documents searchable",
	"rollback": "rollback            discard staged documents",
	"search":   "search <query>      search the search fields",
	"find":     "find <id>           look up by identifier",
	"agg":      "agg <json> <query>  aggregate over matching documents",
	"count":    "count               number of committed documents",
	"pending":  "pending             number of staged documents",
	"schema":   "schema              show fields and roles",
	"help":     "help                show this help",
	"quit":     "quit                leave; staged documents are discarded",
}

func newShellCmd() *cobra.Command {
	var mapping mappingFlags

	cmd := &cobra.Command{
		Use:   "shell <path>",
		Short: "Interactive session on one index",
		Long: `Open an index and run commands against one long-lived session.

Documents added with add! stay pending until commit, so several can be
staged and committed together. Leaving the shell discards anything still
pending.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app, out *output.Writer) error {
				sess, err := a.session(ctx, args[0], &mapping)
				if err != nil {
					return err
				}
				sh := &shell{path: args[0], app: a, sess: sess, out: out, w: cmd.OutOrStdout()}
				return sh.run(ctx)
			})
		},
	}

	mapping.register(cmd)
	return cmd
}

// shell executes interactive commands against one session.
type shell struct {
	path string
	app  *app
	sess *textsearch.Session
	out  *output.Writer
	w    io.Writer
}

func (s *shell) run(ctx context.Context) error {
	line := liner.NewLiner()
	defer func() { _ = line.Close() }()

	line.SetCtrlCAborts(true)
	line.SetCompleter(completeCommand)

	historyPath := filepath.Join(filepath.Dir(logging.DefaultLogDir()), "shell_history")
	if f, err := os.Open(historyPath); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath); err == nil {
			_, _ = line.WriteHistory(f)
			_ = f.Close()
		}
	}()

	s.out.Dim(`Type "help" for commands.`)
	for {
		input, err := line.Prompt(shellPrompt)
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		if s.exec(ctx, input) {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	if pending := s.sess.Pending(); pending > 0 {
		s.out.Warningf("Discarding %d pending documents", pending)
	}
	return nil
}

func completeCommand(line string) []string {
	var out []string
	for name := range shellHelp {
		if strings.HasPrefix(name, line) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// exec runs one command line and reports whether the shell should exit.
// Command errors are printed, not returned.
func (s *shell) exec(ctx context.Context, input string) (quit bool) {
	name, rest, _ := strings.Cut(strings.TrimSpace(input), " ")
	rest = strings.TrimSpace(rest)

	var err error
	switch name {
	case "quit", "exit":
		return true
	case "help":
		s.help()
	case "add", "add!":
		if err = s.sess.Add(ctx, []byte(rest), name == "add!"); err == nil {
			s.out.Successf("Added (%d pending)", s.sess.Pending())
		}
	case "commit":
		pending := s.sess.Pending()
		if err = s.sess.Commit(ctx); err == nil {
			s.out.Successf("Committed %d documents", pending)
		}
	case "rollback":
		pending := s.sess.Pending()
		if err = s.sess.Rollback(ctx); err == nil {
			s.out.Successf("Discarded %d documents", pending)
		}
	case "search":
		var res *textsearch.SearchOutput
		if res, err = s.app.registry.Search(ctx, s.path, textsearch.SearchInput{Query: rest}); err == nil {
			err = printDocuments(s.out, res)
		}
	case "find":
		var res *textsearch.SearchOutput
		if res, err = s.app.registry.Find(ctx, s.path, rest); err == nil {
			err = printDocuments(s.out, res)
		}
	case "agg":
		err = s.aggregate(ctx, rest)
	case "count":
		var n uint64
		if n, err = s.sess.DocCount(); err == nil {
			_, _ = fmt.Fprintln(s.w, n)
		}
	case "pending":
		_, _ = fmt.Fprintln(s.w, s.sess.Pending())
	case "schema":
		err = printSchema(s.out, s.sess)
	default:
		s.out.Errorf("Unknown command %q. Type \"help\" for commands.", name)
		return false
	}

	if err != nil {
		slog.Debug("shell_command_failed", slog.String("command", name), slog.String("error", err.Error()))
		s.out.Error(strings.TrimSpace(firstLine(err)))
	}
	return false
}

// aggregate splits "<json> <query>" at the end of the leading JSON value.
func (s *shell) aggregate(ctx context.Context, rest string) error {
	dec := json.NewDecoder(strings.NewReader(rest))
	var aggs json.RawMessage
	if err := dec.Decode(&aggs); err != nil {
		return fmt.Errorf("usage: %s", shellHelp["agg"])
	}
	query := strings.TrimSpace(rest[dec.InputOffset():])

	res, err := s.app.registry.Aggregate(ctx, s.path, query, string(aggs))
	if err != nil {
		return err
	}
	return printAggregation(s.out, res)
}

func (s *shell) help() {
	names := make([]string, 0, len(shellHelp))
	for name := range shellHelp {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.out.Status("", shellHelp[name])
	}
}

func firstLine(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
