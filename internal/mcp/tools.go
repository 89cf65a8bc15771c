package mcp

import (
	"context"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/services/inference"
)

// AskInput is the input schema for the ask_soroban tool.
type AskInput struct {
	Query    string `json:"query" jsonschema:"the question about Soroban or Stellar smart contracts"`
	Mode     string `json:"mode,omitempty" jsonschema:"code to get a contract or explain to get prose (default code)"`
	K        int    `json:"k,omitempty" jsonschema:"number of documentation fragments to use as context, 1 to 20 (default 5)"`
	Language string `json:"language,omitempty" jsonschema:"answer language, es or en (detected from the query when empty)"`
	CodeOnly bool   `json:"code_only,omitempty" jsonschema:"return only the code block without explanation"`
}

// AskOutput is the output schema for the ask_soroban tool.
type AskOutput struct {
	Answer      string            `json:"answer"`
	Language    string            `json:"language"`
	Model       string            `json:"model,omitempty"`
	ContextUsed int               `json:"context_used"`
	Sources     []SourceOutput    `json:"sources"`
	Validation  *ValidationOutput `json:"validation,omitempty"`
}

// SourceOutput cites one documentation fragment.
type SourceOutput struct {
	File    string  `json:"file"`
	Section string  `json:"section"`
	Topic   string  `json:"topic"`
	Score   float64 `json:"score"`
}

// ValidationOutput is the validator verdict on a generated answer.
type ValidationOutput struct {
	IsValid     bool     `json:"is_valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Regenerated bool     `json:"regenerated"`
}

// ValidateInput is the input schema for the validate_contract tool.
type ValidateInput struct {
	Code         string `json:"code" jsonschema:"Soroban contract source, raw Rust or markdown with a rust code block"`
	ContractType string `json:"contract_type,omitempty" jsonschema:"optional hint such as token"`
}

// ValidateOutput is the output schema for the validate_contract tool.
type ValidateOutput struct {
	IsValid  bool     `json:"is_valid"`
	Strategy string   `json:"strategy"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Message  string   `json:"message"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_soroban",
		Description: "Answer a Soroban smart contract question using the indexed documentation. Code answers are validated against known antipatterns.",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "validate_contract",
		Description: "Check Soroban contract code for security and SDK antipatterns",
	}, s.handleValidate)
}

// handleAsk handles the ask_soroban tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	req := &inference.AskRequest{
		RequestID: uuid.NewString(),
		Query:     input.Query,
		Mode:      inference.Mode(input.Mode),
		K:         input.K,
		CodeOnly:  input.CodeOnly,
		Language:  models.Language(input.Language),
		UserAgent: "mcp",
	}

	resp, err := s.ports.Ask.Ask(ctx, req)
	if err != nil {
		s.logger.Warn("ask_soroban failed", zap.String("request_id", req.RequestID), zap.Error(err))
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Answer:      resp.Answer,
		Language:    string(resp.Language),
		Model:       resp.Model,
		ContextUsed: resp.ContextUsed,
		Sources:     make([]SourceOutput, len(resp.Sources)),
	}
	for i, src := range resp.Sources {
		output.Sources[i] = SourceOutput{
			File:    src.File,
			Section: src.Section,
			Topic:   src.Topic,
			Score:   src.Score,
		}
	}
	if v := resp.Validation; v != nil {
		output.Validation = &ValidationOutput{
			IsValid:     v.IsValid,
			Errors:      orEmpty(v.Errors),
			Warnings:    orEmpty(v.Warnings),
			Regenerated: v.Regenerated,
		}
	}

	return nil, output, nil
}

// handleValidate handles the validate_contract tool invocation.
func (s *Server) handleValidate(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ValidateInput,
) (*mcp.CallToolResult, ValidateOutput, error) {
	report, err := s.ports.Contracts.ValidateCode(&inference.ValidateRequest{
		Code:         input.Code,
		ContractType: input.ContractType,
	})
	if err != nil {
		return nil, ValidateOutput{}, err
	}

	return nil, ValidateOutput{
		IsValid:  report.IsValid,
		Strategy: string(report.Strategy),
		Errors:   orEmpty(report.Errors),
		Warnings: orEmpty(report.Warnings),
		Message:  report.Message,
	}, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
