package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/sorobai/backend/internal/codecheck"
	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/services"
	"github.com/upb/sorobai/backend/services/inference"
)

const unauthorizedMint = "```rust\n" + `#![no_std]
use soroban_sdk::{contract, contractimpl, Address, Env};

#[contract]
pub struct Token;

#[contractimpl]
impl Token {
    pub fn mint(env: Env, to: Address, amount: i128) {
        let balance: i128 = env.storage().persistent().get(&to).unwrap_or(0);
        env.storage().persistent().set(&to, &(balance + amount));
    }
}
` + "```"

func newTestServer(t *testing.T, asker Asker, validator ContractValidator) *Server {
	t.Helper()
	server, err := NewServer(&Ports{Ask: asker, Contracts: validator}, "test", nil)
	require.NoError(t, err)
	return server
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("maps the pipeline answer", func(t *testing.T) {
		asker := &fakeAsker{resp: &inference.AskResponse{
			Answer:      "use env.storage().instance()",
			Language:    models.LanguageEnglish,
			Model:       "deepseek/deepseek-chat",
			ContextUsed: 1,
			Sources: []inference.Source{
				{File: "storage.md", Section: "Instance", Topic: "storage", Score: 0.91},
			},
			Validation: &inference.ValidationSummary{IsValid: true, Regenerated: true},
		}}
		server := newTestServer(t, asker, fakeValidator{})

		input := AskInput{Query: "how do I store a counter?", Mode: "explain", K: 3, Language: "en", CodeOnly: true}
		_, output, err := server.handleAsk(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, "use env.storage().instance()", output.Answer)
		assert.Equal(t, "en", output.Language)
		assert.Equal(t, 1, output.ContextUsed)
		require.Len(t, output.Sources, 1)
		assert.Equal(t, "storage.md", output.Sources[0].File)
		assert.Equal(t, 0.91, output.Sources[0].Score)

		require.NotNil(t, output.Validation)
		assert.True(t, output.Validation.Regenerated)
		assert.Equal(t, []string{}, output.Validation.Errors)

		require.NotNil(t, asker.seen)
		assert.Equal(t, inference.ModeExplain, asker.seen.Mode)
		assert.Equal(t, 3, asker.seen.K)
		assert.Equal(t, models.LanguageEnglish, asker.seen.Language)
		assert.True(t, asker.seen.CodeOnly)
		assert.Equal(t, "mcp", asker.seen.UserAgent)
		assert.NotEmpty(t, asker.seen.RequestID)
	})

	t.Run("no context answer has empty sources", func(t *testing.T) {
		asker := &fakeAsker{resp: &inference.AskResponse{Answer: "No relevant information", Language: models.LanguageEnglish}}
		server := newTestServer(t, asker, fakeValidator{})

		_, output, err := server.handleAsk(ctx, nil, AskInput{Query: "weather?"})

		require.NoError(t, err)
		assert.Empty(t, output.Sources)
		assert.NotNil(t, output.Sources)
		assert.Nil(t, output.Validation)
	})

	t.Run("returns the pipeline error", func(t *testing.T) {
		asker := &fakeAsker{err: services.ErrInvalidMode}
		server := newTestServer(t, asker, fakeValidator{})

		_, _, err := server.handleAsk(ctx, nil, AskInput{Query: "q", Mode: "poem"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "mode must be code or explain")
	})
}

func TestServer_handleValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("reports a missing require_auth", func(t *testing.T) {
		server := newTestServer(t, &fakeAsker{}, codecheckValidator{v: codecheck.NewValidator()})

		_, output, err := server.handleValidate(ctx, nil, ValidateInput{Code: unauthorizedMint, ContractType: "token"})

		require.NoError(t, err)
		assert.False(t, output.IsValid)
		require.NotEmpty(t, output.Errors)

		found := false
		for _, e := range output.Errors {
			if strings.Contains(e, "'mint'") {
				found = true
			}
		}
		assert.True(t, found, "errors: %v", output.Errors)
	})

	t.Run("clean report keeps empty lists", func(t *testing.T) {
		server := newTestServer(t, &fakeAsker{}, fakeValidator{report: codecheck.Report{IsValid: true, Message: "ok"}})

		_, output, err := server.handleValidate(ctx, nil, ValidateInput{Code: "fn main() {}"})

		require.NoError(t, err)
		assert.True(t, output.IsValid)
		assert.Equal(t, []string{}, output.Errors)
		assert.Equal(t, []string{}, output.Warnings)
		assert.Equal(t, "ok", output.Message)
	})

	t.Run("returns the validator error", func(t *testing.T) {
		server := newTestServer(t, &fakeAsker{}, fakeValidator{err: errors.New("code cannot be empty")})

		_, _, err := server.handleValidate(ctx, nil, ValidateInput{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "code cannot be empty")
	})
}
