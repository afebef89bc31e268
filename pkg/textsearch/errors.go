package textsearch

import (
	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
)

// Error is the structured error returned by every operation.
type Error = tserrors.Error

// Sentinels for errors.Is. Matching is by error code.
var (
	ErrMappingInvalid     = tserrors.Sentinel(tserrors.ErrCodeMappingMalformed)
	ErrSchemaMismatch     = tserrors.Sentinel(tserrors.ErrCodeSchemaMismatch)
	ErrIndexLocked        = tserrors.Sentinel(tserrors.ErrCodeIndexLocked)
	ErrCorruptIndex       = tserrors.Sentinel(tserrors.ErrCodeCorruptIndex)
	ErrSessionClosed      = tserrors.Sentinel(tserrors.ErrCodeSessionClosed)
	ErrDocumentInvalid    = tserrors.Sentinel(tserrors.ErrCodeDocumentInvalid)
	ErrCommitFailed       = tserrors.Sentinel(tserrors.ErrCodeCommitFailed)
	ErrBufferFull         = tserrors.Sentinel(tserrors.ErrCodeBufferFull)
	ErrQueryParse         = tserrors.Sentinel(tserrors.ErrCodeQueryParse)
	ErrQueryExecution     = tserrors.Sentinel(tserrors.ErrCodeQueryExecution)
	ErrAggregationInvalid = tserrors.Sentinel(tserrors.ErrCodeAggregationInvalid)
	ErrNoTargetField      = tserrors.Sentinel(tserrors.ErrCodeNoTargetField)
	ErrProjection         = tserrors.Sentinel(tserrors.ErrCodeProjection)
)

// IsRetryable reports whether repeating the failed call may succeed.
func IsRetryable(err error) bool { return tserrors.IsRetryable(err) }

// Code returns the error code of err, or "" for foreign errors.
func Code(err error) string { return tserrors.GetCode(err) }
