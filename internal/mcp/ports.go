package mcp

import (
	"context"

	"github.com/upb/sorobai/backend/internal/codecheck"
	"github.com/upb/sorobai/backend/services/inference"
)

// Asker answers one question through the retrieval pipeline.
type Asker interface {
	Ask(ctx context.Context, req *inference.AskRequest) (*inference.AskResponse, error)
}

// ContractValidator checks Soroban code without generating anything.
type ContractValidator interface {
	ValidateCode(req *inference.ValidateRequest) (codecheck.Report, error)
}

// Ports aggregates the services the MCP server drives.
type Ports struct {
	Ask       Asker
	Contracts ContractValidator
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Ask == nil {
		return ErrMissingAsker
	}
	if p.Contracts == nil {
		return ErrMissingValidator
	}
	return nil
}
