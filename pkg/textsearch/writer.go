package textsearch

import (
	"context"
	"log/slog"

	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
)

// Add parses doc against the schema and stages it. With skipCommit false
// the document is committed immediately; with skipCommit true it stays
// staged until Commit or Rollback.
//
// A document that does not match the schema fails with
// ErrDocumentInvalid and nothing is staged. A full write buffer fails
// with ErrBufferFull; commit and add again.
func (s *Session) Add(ctx context.Context, doc []byte, skipCommit bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed()
	}

	parsed, err := s.schema.ParseDocument(doc)
	if err != nil {
		return err
	}
	if err := s.index.Writer().Add(parsed); err != nil {
		return err
	}
	if skipCommit {
		return nil
	}
	return s.commitLocked(ctx)
}

// Commit makes every staged document durable and visible to reads.
// Committing with nothing staged succeeds without touching the index.
// Failures are returned as ErrCommitFailed and never retried here.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed()
	}
	return s.commitLocked(ctx)
}

func (s *Session) commitLocked(ctx context.Context) error {
	if err := s.index.Writer().Commit(ctx); err != nil {
		s.logger.Error("commit_failed", tserrors.LogAttrs(err)...)
		return err
	}
	return nil
}

// Rollback discards every staged document. Committed data is untouched.
func (s *Session) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed()
	}
	if err := ctx.Err(); err != nil {
		return tserrors.New(tserrors.ErrCodeRollbackFailed, "rollback cancelled", err)
	}

	if discarded := s.index.Writer().Rollback(); discarded > 0 {
		s.logger.Debug("rollback_applied", slog.Int("discarded", discarded))
	}
	return nil
}
