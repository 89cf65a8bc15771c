package mcp

import (
	"context"

	"github.com/upb/sorobai/backend/internal/codecheck"
	"github.com/upb/sorobai/backend/services/inference"
)

// fakeAsker is a fake implementation of Asker.
type fakeAsker struct {
	resp *inference.AskResponse
	err  error
	seen *inference.AskRequest
}

func (f *fakeAsker) Ask(_ context.Context, req *inference.AskRequest) (*inference.AskResponse, error) {
	f.seen = req
	return f.resp, f.err
}

// codecheckValidator runs the real antipattern validator.
type codecheckValidator struct {
	v *codecheck.Validator
}

func (c codecheckValidator) ValidateCode(req *inference.ValidateRequest) (codecheck.Report, error) {
	return codecheck.BuildReport(c.v.Validate(req.Code, req.ContractType)), nil
}

// fakeValidator returns a fixed report.
type fakeValidator struct {
	report codecheck.Report
	err    error
}

func (f fakeValidator) ValidateCode(_ *inference.ValidateRequest) (codecheck.Report, error) {
	return f.report, f.err
}
