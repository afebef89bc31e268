package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// FormatForCLI formats an error for terminal output.
// Details are printed in key order so output is stable.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	te := asError(err)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", te.Message))
	if te.Cause != nil && te.Cause.Error() != te.Message {
		sb.WriteString(fmt.Sprintf("  Cause: %s\n", te.Cause.Error()))
	}
	for _, k := range sortedKeys(te.Details) {
		sb.WriteString(fmt.Sprintf("  %s: %s\n", k, te.Details[k]))
	}
	if te.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", te.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", te.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error.
// Suitable for machine consumption (CLI --json, MCP error payloads).
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	te := asError(err)
	je := jsonError{
		Code:       te.Code,
		Message:    te.Message,
		Category:   string(te.Category),
		Severity:   string(te.Severity),
		Details:    te.Details,
		Suggestion: te.Suggestion,
		Retryable:  te.Retryable,
	}
	if te.Cause != nil {
		je.Cause = te.Cause.Error()
	}

	return json.Marshal(je)
}

// LogAttrs returns slog attributes describing err.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	var te *Error
	if !stderrors.As(err, &te) {
		return []any{slog.String("error", err.Error())}
	}

	attrs := []any{
		slog.String("error_code", te.Code),
		slog.String("error", te.Message),
		slog.String("category", string(te.Category)),
		slog.Bool("retryable", te.Retryable),
	}
	if te.Cause != nil {
		attrs = append(attrs, slog.String("cause", te.Cause.Error()))
	}
	for _, k := range sortedKeys(te.Details) {
		attrs = append(attrs, slog.String("detail_"+k, te.Details[k]))
	}
	return attrs
}

// asError returns the Error in err's chain, wrapping plain errors as internal.
func asError(err error) *Error {
	var te *Error
	if stderrors.As(err, &te) {
		return te
	}
	return Wrap(ErrCodeInternal, err)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
