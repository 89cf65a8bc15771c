// Package mcp exposes the SorobAI pipeline as Model Context Protocol tools so
// editors and assistants can ask for Soroban code and validate contracts.
package mcp

import "errors"

// ErrMissingAsker is returned when the question-answering service is not provided.
var ErrMissingAsker = errors.New("mcp: ask service is required")

// ErrMissingValidator is returned when the contract validator is not provided.
var ErrMissingValidator = errors.New("mcp: contract validator is required")
