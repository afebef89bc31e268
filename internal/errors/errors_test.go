package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TS01: Error wrapping preserves original error
func TestError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("permission denied")

	// When: wrapping with Error
	err := New(ErrCodeDirectoryCreate, "cannot create index directory", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, err)
	assert.Equal(t, originalErr, errors.Unwrap(err))
	assert.True(t, errors.Is(err, originalErr))
}

func TestError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		cause    error
		expected string
	}{
		{
			name:     "mapping error",
			code:     ErrCodeMissingProperties,
			message:  "mapping has no properties",
			expected: "[ERR_101_MAPPING_MISSING_PROPERTIES] mapping has no properties",
		},
		{
			name:     "with cause",
			code:     ErrCodeCommitFailed,
			message:  "commit failed",
			cause:    errors.New("disk full"),
			expected: "[ERR_403_COMMIT_FAILED] commit failed: disk full",
		},
		{
			name:     "cause equal to message",
			code:     ErrCodeInternal,
			message:  "boom",
			cause:    errors.New("boom"),
			expected: "[ERR_602_INTERNAL] boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.cause)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestError_Is_MatchesByCode(t *testing.T) {
	// Given: a sentinel and a concrete error with the same code
	sentinel := Sentinel(ErrCodeSchemaMismatch)
	err := New(ErrCodeSchemaMismatch, "field data changed type", nil)

	// Then: they match by code, also through fmt wrapping
	assert.True(t, errors.Is(err, sentinel))
	assert.True(t, errors.Is(fmt.Errorf("open: %w", err), sentinel))
	assert.False(t, errors.Is(err, Sentinel(ErrCodeIndexLocked)))
}

func TestError_WithDetail_AddsContext(t *testing.T) {
	err := New(ErrCodeSchemaMismatch, "schema mismatch", nil).
		WithDetail("path", "/tmp/idx").
		WithDetail("field", "gid")

	assert.Equal(t, "/tmp/idx", err.Details["path"])
	assert.Equal(t, "gid", err.Details["field"])
}

func TestError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeMissingProperties, CategoryConfig},
		{ErrCodeInvalidFlag, CategoryConfig},
		{ErrCodeDirectoryCreate, CategoryIO},
		{ErrCodeIndexLocked, CategoryIO},
		{ErrCodeSchemaMismatch, CategorySchema},
		{ErrCodeDocumentInvalid, CategoryWrite},
		{ErrCodeCommitFailed, CategoryWrite},
		{ErrCodeQueryParse, CategoryQuery},
		{ErrCodeProjection, CategoryInternal},
		{"bad", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestError_SeverityAndRetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantSeverity  Severity
		wantRetryable bool
	}{
		{ErrCodeSchemaMismatch, SeverityFatal, false},
		{ErrCodeCorruptIndex, SeverityFatal, false},
		{ErrCodeCommitFailed, SeverityWarning, true},
		{ErrCodeBufferFull, SeverityWarning, true},
		{ErrCodeQueryExecution, SeverityWarning, true},
		{ErrCodeQueryParse, SeverityError, false},
		{ErrCodeDocumentInvalid, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestHelpers_WorkThroughWrapping(t *testing.T) {
	// Given: an Error wrapped by fmt.Errorf
	err := fmt.Errorf("add: %w", New(ErrCodeBufferFull, "write buffer full", nil))

	// Then: helpers see through the wrapping
	assert.True(t, IsRetryable(err))
	assert.False(t, IsFatal(err))
	assert.Equal(t, ErrCodeBufferFull, GetCode(err))
	assert.Equal(t, CategoryWrite, GetCategory(err))

	// And: plain errors yield zero values
	plain := errors.New("plain")
	assert.False(t, IsRetryable(plain))
	assert.Equal(t, "", GetCode(plain))
	assert.Equal(t, Category(""), GetCategory(plain))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestFormatForCLI_IncludesDetailsAndHint(t *testing.T) {
	err := New(ErrCodeIndexLocked, "index is locked", nil).
		WithDetail("path", "/data/idx").
		WithSuggestion("close the other session first")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: index is locked")
	assert.Contains(t, out, "path: /data/idx")
	assert.Contains(t, out, "Hint: close the other session first")
	assert.Contains(t, out, "Code: ERR_203_INDEX_LOCKED")
}

func TestFormatJSON_PlainErrorBecomesInternal(t *testing.T) {
	data, err := FormatJSON(errors.New("unexpected"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ErrCodeInternal, decoded["code"])
	assert.Equal(t, "unexpected", decoded["message"])
	assert.Equal(t, string(CategoryInternal), decoded["category"])
}

func TestLogAttrs_IncludesCode(t *testing.T) {
	attrs := LogAttrs(New(ErrCodeQueryParse, "bad query", nil).WithDetail("query", "a:("))

	assert.NotEmpty(t, attrs)
	assert.Len(t, attrs, 5)
	assert.Nil(t, LogAttrs(nil))
}
