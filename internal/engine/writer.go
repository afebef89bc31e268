package engine

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/blevesearch/bleve/v2"

	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
	"github.com/Aman-CERP/textsearch/internal/schema"
)

// nextDocKey stores the next document id in bleve's internal key space.
// It is written in the same batch as the documents it numbers.
var nextDocKey = []byte("_next_doc")

// Writer stages documents in a bleve batch and applies them on Commit.
// Nothing staged is visible to readers until Commit succeeds.
type Writer struct {
	idx           *Index
	batch         *bleve.Batch
	staged        int
	stagedBytes   int
	nextDoc       uint64
	committedNext uint64
}

func newWriter(idx *Index) (*Writer, error) {
	next, err := loadNextDoc(idx.bleve)
	if err != nil {
		return nil, err
	}
	return &Writer{
		idx:           idx,
		batch:         idx.bleve.NewBatch(),
		nextDoc:       next,
		committedNext: next,
	}, nil
}

func loadNextDoc(bi bleve.Index) (uint64, error) {
	raw, err := bi.GetInternal(nextDocKey)
	if err != nil {
		return 0, tserrors.New(tserrors.ErrCodeIndexOpen, "failed to read document counter", err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, tserrors.New(tserrors.ErrCodeCorruptIndex, "document counter is corrupt", err)
	}
	return n, nil
}

// Add stages a parsed document. It fails with ErrCodeBufferFull, staging
// nothing, when the document would push staged input past
// WriterMemoryBudget.
func (w *Writer) Add(doc *schema.Document) error {
	if w.stagedBytes+doc.Size > WriterMemoryBudget {
		return tserrors.Newf(tserrors.ErrCodeBufferFull, "write buffer full: %d staged bytes, document is %d bytes", w.stagedBytes, doc.Size).
			WithDetail("budget_bytes", strconv.Itoa(WriterMemoryBudget)).
			WithSuggestion("commit staged documents, then add again")
	}

	id := strconv.FormatUint(w.nextDoc, 10)
	if err := w.batch.Index(id, doc.Fields); err != nil {
		return tserrors.New(tserrors.ErrCodeDocumentInvalid, "failed to map document", err)
	}
	w.nextDoc++
	w.staged++
	w.stagedBytes += doc.Size
	return nil
}

// Pending returns the number of staged documents.
func (w *Writer) Pending() int { return w.staged }

// Commit applies every staged document and the document counter in one
// batch. On failure the staged batch is left as bleve left it and is not
// retried.
func (w *Writer) Commit(ctx context.Context) error {
	if w.staged == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return tserrors.New(tserrors.ErrCodeCommitFailed, "commit cancelled", err)
	}

	start := time.Now()
	w.batch.SetInternal(nextDocKey, []byte(strconv.FormatUint(w.nextDoc, 10)))
	if err := w.idx.bleve.Batch(w.batch); err != nil {
		return tserrors.New(tserrors.ErrCodeCommitFailed, "failed to commit staged documents", err).
			WithDetail("staged", strconv.Itoa(w.staged))
	}

	w.idx.logger.Debug("commit_applied",
		slog.String("path", w.idx.path),
		slog.Int("documents", w.staged),
		slog.Duration("duration", time.Since(start)))

	w.batch.Reset()
	w.committedNext = w.nextDoc
	w.staged = 0
	w.stagedBytes = 0
	w.idx.epoch.Add(1)
	return nil
}

// Rollback discards staged documents and restores the document counter.
// It returns how many documents were discarded.
func (w *Writer) Rollback() int {
	discarded := w.staged
	w.batch.Reset()
	w.nextDoc = w.committedNext
	w.staged = 0
	w.stagedBytes = 0
	return discarded
}
