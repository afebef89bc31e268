// Package logging provides structured JSON logging with optional size-based
// file rotation for textsearch.
//
// Library code logs through an injected *slog.Logger. The CLI and the MCP
// server call Setup once to route the default logger to
// ~/.textsearch/logs/textsearch.log; in MCP mode nothing is written to
// stderr or stdout because stdout carries the protocol stream.
package logging
