// Package ingest loads batches of JSON documents into an index session.
// Documents are validated against the schema concurrently before any of
// them is staged, so a bad line never leaves a half-written batch.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
	"github.com/Aman-CERP/textsearch/internal/schema"
	"github.com/Aman-CERP/textsearch/pkg/textsearch"
)

// maxLineBytes bounds a single JSONL line.
const maxLineBytes = 16 << 20

// Document is one input document and the line it came from.
type Document struct {
	Line int
	Raw  []byte
}

// Result summarizes a load.
type Result struct {
	Added   int `json:"added"`
	Commits int `json:"commits"`
}

// ReadLines reads one JSON document per non-blank line.
func ReadLines(r io.Reader) ([]Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var docs []Document
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		docs = append(docs, Document{Line: line, Raw: bytes.Clone(raw)})
	}
	if err := scanner.Err(); err != nil {
		return nil, tserrors.New(tserrors.ErrCodeDocumentInvalid, "failed to read documents", err).
			WithDetail("line", strconv.Itoa(line+1))
	}
	return docs, nil
}

// Validate parses every document against s using up to workers
// goroutines. It returns the error of the earliest invalid line.
func Validate(ctx context.Context, s *schema.Schema, docs []Document, workers int) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	errs := make([]error, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, err := s.ParseDocument(docs[i].Raw); err != nil {
				errs[i] = withLine(err, docs[i].Line)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func withLine(err error, line int) error {
	var te *tserrors.Error
	if errors.As(err, &te) {
		return te.WithDetail("line", strconv.Itoa(line))
	}
	return err
}

// Load validates docs and adds them to sess. With batch set every
// document is staged and committed once at the end, committing early
// only when the write buffer fills. Without batch each add commits.
func Load(ctx context.Context, sess *textsearch.Session, docs []Document, batch bool) (Result, error) {
	var res Result
	start := time.Now()

	if err := Validate(ctx, sess.Schema(), docs, 0); err != nil {
		return res, err
	}

	for _, d := range docs {
		err := sess.Add(ctx, d.Raw, batch)
		if batch && errors.Is(err, textsearch.ErrBufferFull) {
			if err := sess.Commit(ctx); err != nil {
				return res, err
			}
			res.Commits++
			err = sess.Add(ctx, d.Raw, true)
		}
		if err != nil {
			return res, withLine(err, d.Line)
		}
		res.Added++
		if !batch {
			res.Commits++
		}
	}

	if batch && sess.Pending() > 0 {
		if err := sess.Commit(ctx); err != nil {
			return res, err
		}
		res.Commits++
	}

	slog.Debug("documents_loaded",
		slog.String("index", sess.Path()),
		slog.Int("added", res.Added),
		slog.Int("commits", res.Commits),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}
