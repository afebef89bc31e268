// Package errors provides structured error handling for textsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Mapping and configuration errors
//   - 2XX: IO errors (directories, locks, corrupt index files)
//   - 3XX: Schema mismatch errors
//   - 4XX: Write errors (documents, commit, rollback)
//   - 5XX: Query errors (parse, execution, aggregation)
//   - 6XX: Internal and projection errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates a malformed mapping or configuration.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates directory, lock, or index file errors.
	CategoryIO Category = "IO"
	// CategorySchema indicates an on-disk schema that differs from the requested one.
	CategorySchema Category = "SCHEMA"
	// CategoryWrite indicates document, commit, or rollback failures.
	CategoryWrite Category = "WRITE"
	// CategoryQuery indicates query parse or execution failures.
	CategoryQuery Category = "QUERY"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable condition for the index.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the session is usable.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates a transient failure the caller may retry.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Mapping and config errors (100-199)
	ErrCodeMappingMalformed    = "ERR_100_MAPPING_MALFORMED"
	ErrCodeMissingProperties   = "ERR_101_MAPPING_MISSING_PROPERTIES"
	ErrCodePropertiesNotObject = "ERR_102_PROPERTIES_NOT_OBJECT"
	ErrCodeMissingFieldType    = "ERR_103_FIELD_TYPE_MISSING"
	ErrCodeInvalidFieldType    = "ERR_104_FIELD_TYPE_INVALID"
	ErrCodeInvalidFlag         = "ERR_105_FIELD_FLAG_INVALID"
	ErrCodeDuplicateField      = "ERR_106_FIELD_DUPLICATE"
	ErrCodeReservedFieldName   = "ERR_107_FIELD_NAME_RESERVED"
	ErrCodeRoleUnknownField    = "ERR_108_ROLE_UNKNOWN_FIELD"
	ErrCodeRoleInvalid         = "ERR_109_ROLE_INVALID"
	ErrCodeConfigInvalid       = "ERR_110_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeDirectoryCreate = "ERR_201_DIRECTORY_CREATE"
	ErrCodeDirectoryRemove = "ERR_202_DIRECTORY_REMOVE"
	ErrCodeIndexLocked     = "ERR_203_INDEX_LOCKED"
	ErrCodeCorruptIndex    = "ERR_204_CORRUPT_INDEX"
	ErrCodeIndexOpen       = "ERR_205_INDEX_OPEN"

	// Schema errors (300-399)
	ErrCodeSchemaMismatch = "ERR_301_SCHEMA_MISMATCH"

	// Write errors (400-499)
	ErrCodeDocumentInvalid = "ERR_401_DOCUMENT_INVALID"
	ErrCodeSessionClosed   = "ERR_402_SESSION_CLOSED"
	ErrCodeCommitFailed    = "ERR_403_COMMIT_FAILED"
	ErrCodeBufferFull      = "ERR_404_WRITE_BUFFER_FULL"
	ErrCodeRollbackFailed  = "ERR_405_ROLLBACK_FAILED"

	// Query errors (500-599)
	ErrCodeQueryParse         = "ERR_501_QUERY_PARSE_FAILED"
	ErrCodeQueryExecution     = "ERR_502_QUERY_EXECUTION_FAILED"
	ErrCodeAggregationInvalid = "ERR_503_AGGREGATION_INVALID"
	ErrCodeNoTargetField      = "ERR_504_NO_TARGET_FIELD"

	// Internal errors (600-699)
	ErrCodeProjection = "ERR_601_PROJECTION_FAILED"
	ErrCodeInternal   = "ERR_602_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "301" from "ERR_301_SCHEMA_MISMATCH"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategorySchema
	case '4':
		return CategoryWrite
	case '5':
		return CategoryQuery
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeSchemaMismatch:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode reports whether the caller may retry the same call unchanged.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeCommitFailed, ErrCodeRollbackFailed, ErrCodeBufferFull,
		ErrCodeQueryExecution, ErrCodeIndexLocked:
		return true
	default:
		return false
	}
}
