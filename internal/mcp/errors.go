// Package mcp implements the Model Context Protocol (MCP) server for
// textsearch. Every index operation of the library is exposed as a tool.
package mcp

import (
	"context"
	"errors"
	"fmt"

	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
)

// Custom MCP error codes for textsearch.
const (
	// ErrCodeIndexUnavailable indicates the index could not be opened.
	ErrCodeIndexUnavailable = -32001

	// ErrCodeSchemaMismatch indicates the mapping differs from the index.
	ErrCodeSchemaMismatch = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeRetryable indicates a transient failure worth retrying.
	ErrCodeRetryable = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var te *tserrors.Error
	if errors.As(err, &te) {
		return mapIndexError(te)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown methods/tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// mapIndexError converts a structured index error by category. The error
// code is kept in the message so clients can branch on it.
func mapIndexError(te *tserrors.Error) *MCPError {
	message := fmt.Sprintf("%s: %s", te.Code, te.Message)
	if te.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", message, te.Suggestion)
	}

	if te.Retryable {
		return &MCPError{Code: ErrCodeRetryable, Message: message}
	}

	switch te.Category {
	case tserrors.CategoryConfig, tserrors.CategoryQuery:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case tserrors.CategoryWrite:
		if te.Code == tserrors.ErrCodeSessionClosed {
			return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
		}
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case tserrors.CategorySchema:
		return &MCPError{Code: ErrCodeSchemaMismatch, Message: message}
	case tserrors.CategoryIO:
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
