package inference

import (
	"context"
	"fmt"

	"github.com/upb/sorobai/backend/internal/codecheck"
	"github.com/upb/sorobai/backend/internal/prompt"
	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/services/providers"
	"go.uber.org/zap"
)

// State is a step of the validate-and-correct loop
type State string

const (
	StateGenerated   State = "generated"
	StateValidated   State = "validated"
	StateCorrecting  State = "correcting"
	StateRegenerated State = "regenerated"
	StateRevalidated State = "revalidated"
	StateAccepted    State = "accepted"
)

// transitions lists the legal moves of the loop
var transitions = map[State][]State{
	StateGenerated:   {StateValidated},
	StateValidated:   {StateAccepted, StateCorrecting},
	StateCorrecting:  {StateRegenerated},
	StateRegenerated: {StateRevalidated},
	StateRevalidated: {StateAccepted},
}

// generateFunc performs one completion over the given messages
type generateFunc func(ctx context.Context, messages []providers.Message) (*providers.ChatResponse, error)

// regenerationInput is what the controller needs about the first answer
type regenerationInput struct {
	Language     models.Language
	Query        string
	Context      string
	ContractHint string
	// Messages are the system and user messages of the first generation
	Messages []providers.Message
	First    *providers.ChatResponse
}

// regenerationOutcome is the accepted answer and how it was reached
type regenerationOutcome struct {
	Answer      string
	Model       string
	Result      codecheck.Result
	Regenerated bool
	Usage       providers.Usage
	Trail       []State
}

// regenerator validates a generated answer and, when it fails, asks the model
// to correct it at most maxCorrections times (one, or zero when disabled)
type regenerator struct {
	maxCorrections int
	validator      *codecheck.Validator
	prompts        *prompt.Builder
	generate       generateFunc
	logger         *zap.Logger
}

type machine struct {
	state State
	trail []State
}

func newMachine() *machine {
	return &machine{state: StateGenerated, trail: []State{StateGenerated}}
}

func (m *machine) to(next State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			m.trail = append(m.trail, next)
			return nil
		}
	}
	return fmt.Errorf("illegal regeneration transition %s -> %s", m.state, next)
}

func (r *regenerator) validate(answer, hint string) codecheck.Result {
	return r.validator.Validate(codecheck.ExtractCode(answer), hint)
}

// Run drives the loop to Accepted. A failed correction call is returned as an
// error; a still-invalid corrected answer is not.
func (r *regenerator) Run(ctx context.Context, in regenerationInput) (*regenerationOutcome, error) {
	m := newMachine()
	out := &regenerationOutcome{
		Answer: in.First.Content(),
		Model:  in.First.Model,
		Usage:  in.First.Usage,
	}

	out.Result = r.validate(out.Answer, in.ContractHint)
	if err := m.to(StateValidated); err != nil {
		return nil, err
	}

	corrections := 0
	for !out.Result.IsValid() && corrections < r.maxCorrections {
		if err := m.to(StateCorrecting); err != nil {
			return nil, err
		}
		corrections++

		r.logger.Info("generated code failed validation, requesting correction",
			zap.Int("errors", len(out.Result.Errors)),
			zap.Int("warnings", len(out.Result.Warnings)))

		correction, err := r.prompts.Correction(in.Language, codecheck.FormatMessage(out.Result), in.Query, in.Context)
		if err != nil {
			return nil, err
		}

		messages := make([]providers.Message, 0, len(in.Messages)+2)
		messages = append(messages, in.Messages...)
		messages = append(messages,
			providers.Message{Role: providers.RoleAssistant, Content: out.Answer},
			providers.Message{Role: providers.RoleUser, Content: correction},
		)

		resp, err := r.generate(ctx, messages)
		if err != nil {
			return nil, err
		}
		if err := m.to(StateRegenerated); err != nil {
			return nil, err
		}

		out.Answer = resp.Content()
		if resp.Model != "" {
			out.Model = resp.Model
		}
		out.Usage = out.Usage.Add(resp.Usage)
		out.Regenerated = true

		out.Result = r.validate(out.Answer, in.ContractHint)
		if err := m.to(StateRevalidated); err != nil {
			return nil, err
		}
	}

	if err := m.to(StateAccepted); err != nil {
		return nil, err
	}
	out.Trail = m.trail

	r.logger.Debug("answer accepted",
		zap.Bool("valid", out.Result.IsValid()),
		zap.Bool("regenerated", out.Regenerated),
		zap.Any("trail", out.Trail))

	return out, nil
}

// annotate appends the validation message when findings remain
func annotate(answer string, l models.Language, result codecheck.Result) string {
	if result.Clean() {
		return answer
	}
	return prompt.Annotate(answer, l, codecheck.FormatMessage(result), result.IsValid())
}
