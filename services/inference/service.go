package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/upb/sorobai/backend/internal/codecheck"
	"github.com/upb/sorobai/backend/internal/observability"
	"github.com/upb/sorobai/backend/internal/prompt"
	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/services"
	"github.com/upb/sorobai/backend/services/providers"
	"github.com/upb/sorobai/backend/services/retrieval"
	"go.uber.org/zap"
)

// Retriever selects the context fragments for a query
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Result, error)
}

// Recorder persists request logs without blocking
type Recorder interface {
	Record(req *models.ChatRequest) error
}

// Config tunes the pipeline
type Config struct {
	// Timeout bounds a whole request, generation and correction included
	Timeout time.Duration
	// Model overrides the provider's default model
	Model     string
	MaxTokens int
	// ValidateAnswers runs the code validator over code answers
	ValidateAnswers bool
	// RegenerateOnFail allows the one correction attempt
	RegenerateOnFail bool
	// DefaultK and Temperature apply when an ask request leaves them unset
	DefaultK    int
	Temperature float64
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Timeout:          3 * time.Minute,
		MaxTokens:        4096,
		ValidateAnswers:  true,
		RegenerateOnFail: true,
		DefaultK:         DefaultK,
		Temperature:      DefaultTemperature,
	}
}

// InferenceService orchestrates retrieval, generation, validation and correction
type InferenceService struct {
	retriever Retriever
	provider  providers.Provider
	prompts   *prompt.Builder
	validator *codecheck.Validator
	recorder  Recorder
	metrics   observability.Metrics
	cfg       Config
	logger    *zap.Logger
}

// NewInferenceService creates a new inference service with all dependencies.
// recorder and metrics may be nil.
func NewInferenceService(
	retriever Retriever,
	provider providers.Provider,
	prompts *prompt.Builder,
	validator *codecheck.Validator,
	recorder Recorder,
	metrics observability.Metrics,
	cfg Config,
	logger *zap.Logger,
) *InferenceService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.DefaultK < 1 || cfg.DefaultK > MaxK {
		cfg.DefaultK = DefaultK
	}
	if metrics == nil {
		metrics = observability.NewInMemoryMetrics()
	}
	return &InferenceService{
		retriever: retriever,
		provider:  provider,
		prompts:   prompts,
		validator: validator,
		recorder:  recorder,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// Model is the generation model requests are sent to
func (s *InferenceService) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return s.provider.DefaultModel()
}

// Metrics exposes the collector for the status endpoint
func (s *InferenceService) Metrics() observability.Metrics {
	return s.metrics
}

// Ask answers a question through the full pipeline
func (s *InferenceService) Ask(ctx context.Context, req *AskRequest) (*AskResponse, error) {
	if err := s.normalizeAsk(req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	pc := s.newPipeline(req.RequestID, req.Query, string(req.Mode), req.Language, req.K, req.IPAddress, req.UserAgent)
	pc.Mode = req.Mode
	pc.Temperature = *req.Temperature

	s.logger.Info("starting inference pipeline",
		zap.String("inference_id", pc.ID.String()),
		zap.String("request_id", pc.Record.RequestID),
		zap.String("mode", string(req.Mode)),
		zap.Int("k", req.K))

	// Step 1: retrieve context
	s.logger.Debug("step 1: retrieving context", zap.String("inference_id", pc.ID.String()))
	res, err := s.retriever.Retrieve(ctx, retrieval.Request{Query: req.Query, K: req.K, Language: req.Language})
	if err != nil {
		return nil, s.fail(pc, "retrieval", err)
	}
	pc.Intent = res.Intent
	pc.Fragments = res.Fragments
	lang := res.Intent.Language
	sources := buildSources(res.Fragments)

	if len(res.Fragments) == 0 {
		s.logger.Info("no context found", zap.String("inference_id", pc.ID.String()))
		return s.noContext(pc, lang), nil
	}

	// Step 2: assemble the prompt
	s.logger.Debug("step 2: building prompt", zap.String("inference_id", pc.ID.String()))
	pc.Context = prompt.FormatContext(res.Fragments, lang)
	messages, err := s.buildMessages(req, lang, pc.Context)
	if err != nil {
		return nil, s.fail(pc, "prompt", services.WrapInternal("failed to build prompt", err))
	}
	pc.Messages = messages

	// Step 3: generate
	s.logger.Debug("step 3: invoking LLM",
		zap.String("inference_id", pc.ID.String()),
		zap.String("provider", s.provider.Name()))
	first, err := s.complete(ctx, pc.Messages, pc.Temperature)
	if err != nil {
		return nil, s.fail(pc, "generation", err)
	}
	pc.Response = first
	pc.Usage = first.Usage
	answer := first.Content()
	model := first.Model
	if model == "" {
		model = s.Model()
	}

	// Step 4: validate, and correct once if needed
	var validation *ValidationSummary
	if s.shouldValidate(req) {
		s.logger.Debug("step 4: validating generated code", zap.String("inference_id", pc.ID.String()))
		outcome, err := s.regenerator(pc.Temperature).Run(ctx, regenerationInput{
			Language: lang,
			Query:    req.Query,
			Context:  pc.Context,
			Messages: pc.Messages,
			First:    first,
		})
		if err != nil {
			return nil, s.fail(pc, "regeneration", err)
		}
		pc.Validation = &outcome.Result
		pc.Regenerated = outcome.Regenerated
		pc.Usage = outcome.Usage
		if outcome.Model != "" {
			model = outcome.Model
		}

		answer = annotate(outcome.Answer, lang, outcome.Result)
		validation = &ValidationSummary{
			IsValid:     outcome.Result.IsValid(),
			Errors:      outcome.Result.Errors,
			Warnings:    outcome.Result.Warnings,
			Regenerated: outcome.Regenerated,
		}
		if !outcome.Result.Clean() {
			validation.Message = codecheck.FormatMessage(outcome.Result)
		}
		s.metrics.RecordValidation(outcome.Result.IsValid(), outcome.Regenerated)
		pc.Record.SetValidation(outcome.Result.IsValid(), len(outcome.Result.Errors), len(outcome.Result.Warnings), outcome.Regenerated)
	}

	latency := time.Since(pc.StartTime)
	resp := &AskResponse{
		ID:          pc.ID,
		RequestID:   pc.Record.RequestID,
		Answer:      answer,
		Sources:     sources,
		ContextUsed: len(res.Fragments),
		Model:       model,
		Language:    lang,
		Validation:  validation,
		Tokens:      usageFrom(pc.Usage),
		LatencyMs:   int(latency.Milliseconds()),
	}

	pc.Record.Language = lang
	pc.Record.SetSources(sources)
	pc.Record.MarkAsCompleted(model, len(res.Fragments), pc.Usage.PromptTokens, pc.Usage.CompletionTokens, resp.LatencyMs)
	s.finish(pc, model, latency)

	s.logger.Info("inference pipeline completed",
		zap.String("inference_id", pc.ID.String()),
		zap.Int("latency_ms", resp.LatencyMs),
		zap.Int("context_used", resp.ContextUsed),
		zap.Int("tokens", pc.Usage.TotalTokens),
		zap.Bool("regenerated", pc.Regenerated))

	return resp, nil
}

// AskStream answers a question as a stream of events: sources first, then
// tokens, then done. Streamed answers are not validated. Errors returned
// before the first event leave the caller free to answer with a plain error.
func (s *InferenceService) AskStream(ctx context.Context, req *AskRequest, emit StreamFunc) error {
	if err := s.normalizeAsk(req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	pc := s.newPipeline(req.RequestID, req.Query, string(req.Mode), req.Language, req.K, req.IPAddress, req.UserAgent)
	pc.Mode = req.Mode
	pc.Temperature = *req.Temperature

	res, err := s.retriever.Retrieve(ctx, retrieval.Request{Query: req.Query, K: req.K, Language: req.Language})
	if err != nil {
		return s.fail(pc, "retrieval", err)
	}
	lang := res.Intent.Language
	sources := buildSources(res.Fragments)
	notValidated := false

	if err := emit(StreamEvent{Type: EventSources, ID: pc.ID, Sources: sources, ContextUsed: len(res.Fragments), Language: lang}); err != nil {
		return s.fail(pc, "stream", err)
	}

	if len(res.Fragments) == 0 {
		r := s.noContext(pc, lang)
		if err := emit(StreamEvent{Type: EventToken, Token: r.Answer}); err != nil {
			return err
		}
		return emit(StreamEvent{Type: EventDone, ID: pc.ID, Tokens: &Usage{}, Validated: &notValidated})
	}

	pc.Context = prompt.FormatContext(res.Fragments, lang)
	messages, err := s.buildMessages(req, lang, pc.Context)
	if err != nil {
		return s.fail(pc, "prompt", services.WrapInternal("failed to build prompt", err))
	}

	chatReq := s.chatRequest(messages, pc.Temperature)
	model := s.Model()
	var usage providers.Usage

	streamer, ok := s.provider.(providers.StreamingProvider)
	if !ok {
		// Non-streaming provider: deliver the whole answer as one token
		resp, err := s.complete(ctx, messages, pc.Temperature)
		if err != nil {
			return s.fail(pc, "generation", err)
		}
		if resp.Model != "" {
			model = resp.Model
		}
		usage = resp.Usage
		if err := emit(StreamEvent{Type: EventToken, Token: resp.Content()}); err != nil {
			return s.fail(pc, "stream", err)
		}
	} else {
		var sinkErr error
		err = streamer.ChatCompletionStream(ctx, chatReq, func(chunk *providers.ChatResponse) error {
			if chunk.Model != "" {
				model = chunk.Model
			}
			if chunk.Usage.TotalTokens > 0 {
				usage = chunk.Usage
			}
			if text := chunk.Content(); text != "" {
				sinkErr = emit(StreamEvent{Type: EventToken, Token: text})
				return sinkErr
			}
			return nil
		})
		if sinkErr != nil {
			return s.fail(pc, "stream", sinkErr)
		}
		if err != nil {
			return s.fail(pc, "generation", s.providerError(ctx, "generation", err))
		}
	}

	latency := time.Since(pc.StartTime)
	pc.Record.Language = lang
	pc.Record.SetSources(sources)
	pc.Record.MarkAsCompleted(model, len(res.Fragments), usage.PromptTokens, usage.CompletionTokens, int(latency.Milliseconds()))
	s.finish(pc, model, latency)

	u := usageFrom(usage)
	return emit(StreamEvent{Type: EventDone, ID: pc.ID, Model: model, Tokens: &u, Validated: &notValidated})
}

// Chat continues a conversation grounded on freshly retrieved context
func (s *InferenceService) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, services.ErrEmptyQuery
	}
	if req.K == 0 {
		req.K = DefaultChatK
	}
	if req.K < 1 || req.K > MaxK {
		return nil, services.ErrInvalidK
	}
	if req.Temperature == nil {
		t := DefaultChatTemperature
		req.Temperature = &t
	}
	if err := checkTemperature(*req.Temperature); err != nil {
		return nil, err
	}
	if err := guard(req.Message); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	pc := s.newPipeline(req.RequestID, req.Message, "chat", "", req.K, req.IPAddress, req.UserAgent)

	res, err := s.retriever.Retrieve(ctx, retrieval.Request{Query: req.Message, K: req.K})
	if err != nil {
		return nil, s.fail(pc, "retrieval", err)
	}
	lang := res.Intent.Language

	system, err := s.prompts.ChatSystem(lang, prompt.JoinContents(res.Fragments))
	if err != nil {
		return nil, s.fail(pc, "prompt", services.WrapInternal("failed to build prompt", err))
	}

	messages := make([]providers.Message, 0, len(req.History)+2)
	messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: system})
	for _, m := range req.History {
		// The system message is ours; callers only replay the dialogue
		if m.Role == providers.RoleUser || m.Role == providers.RoleAssistant {
			messages = append(messages, m)
		}
	}
	messages = append(messages, providers.Message{Role: providers.RoleUser, Content: req.Message})

	resp, err := s.complete(ctx, messages, *req.Temperature)
	if err != nil {
		return nil, s.fail(pc, "generation", err)
	}
	model := resp.Model
	if model == "" {
		model = s.Model()
	}

	latency := time.Since(pc.StartTime)
	sources := buildSources(res.Fragments)
	pc.Record.Language = lang
	pc.Record.SetSources(sources)
	pc.Record.MarkAsCompleted(model, len(res.Fragments), resp.Usage.PromptTokens, resp.Usage.CompletionTokens, int(latency.Milliseconds()))
	s.finish(pc, model, latency)

	return &ChatResponse{
		ID:          pc.ID,
		Answer:      resp.Content(),
		Sources:     sources,
		ContextUsed: len(res.Fragments),
		Model:       model,
		Tokens:      usageFrom(resp.Usage),
		LatencyMs:   int(latency.Milliseconds()),
	}, nil
}

// ValidateCode checks code against the antipattern catalogue without generating anything
func (s *InferenceService) ValidateCode(req *ValidateRequest) (codecheck.Report, error) {
	if strings.TrimSpace(req.Code) == "" {
		return codecheck.Report{}, services.ErrEmptyCode
	}
	result := s.validator.Validate(req.Code, req.ContractType)
	return codecheck.BuildReport(result), nil
}

func (s *InferenceService) normalizeAsk(req *AskRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return services.ErrEmptyQuery
	}
	if req.Mode == "" {
		req.Mode = ModeCode
	}
	if !req.Mode.Valid() {
		return services.ErrInvalidMode
	}
	if req.K == 0 {
		req.K = s.cfg.DefaultK
	}
	if req.K < 1 || req.K > MaxK {
		return services.ErrInvalidK
	}
	if req.Language != "" && !req.Language.Valid() {
		return services.ErrInvalidLanguage
	}
	if req.Temperature == nil {
		t := s.cfg.Temperature
		req.Temperature = &t
	}
	if err := checkTemperature(*req.Temperature); err != nil {
		return err
	}
	return guard(req.Query)
}

func checkTemperature(t float64) error {
	if t < 0 || t > 2 {
		return services.NewValidationError("temperature must be between 0 and 2")
	}
	return nil
}

func guard(query string) error {
	if err := prompt.GuardQuery(query); err != nil {
		return services.NewDomainError(services.ErrorTypeValidation, services.ErrInjectionDetected.Message, err)
	}
	return nil
}

func (s *InferenceService) shouldValidate(req *AskRequest) bool {
	return s.cfg.ValidateAnswers && req.Mode == ModeCode && codecheck.ShouldValidate(req.Query)
}

func (s *InferenceService) regenerator(temperature float64) *regenerator {
	corrections := 0
	if s.cfg.RegenerateOnFail {
		corrections = 1
	}
	return &regenerator{
		maxCorrections: corrections,
		validator:      s.validator,
		prompts:        s.prompts,
		generate: func(ctx context.Context, messages []providers.Message) (*providers.ChatResponse, error) {
			return s.complete(ctx, messages, temperature)
		},
		logger: s.logger,
	}
}

func (s *InferenceService) buildMessages(req *AskRequest, lang models.Language, context string) ([]providers.Message, error) {
	var (
		p   prompt.Prompt
		err error
	)
	if req.Mode == ModeCode {
		p, err = s.prompts.Code(lang, req.Query, context, req.CodeOnly)
	} else {
		p, err = s.prompts.Explain(lang, req.Query, context)
	}
	if err != nil {
		return nil, err
	}
	return []providers.Message{
		{Role: providers.RoleSystem, Content: p.System},
		{Role: providers.RoleUser, Content: p.User},
	}, nil
}

func (s *InferenceService) chatRequest(messages []providers.Message, temperature float64) *providers.ChatRequest {
	return &providers.ChatRequest{
		Model:       s.Model(),
		Messages:    messages,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: temperature,
	}
}

// complete calls the provider and maps its failure onto the error taxonomy
func (s *InferenceService) complete(ctx context.Context, messages []providers.Message, temperature float64) (*providers.ChatResponse, error) {
	resp, err := s.provider.ChatCompletion(ctx, s.chatRequest(messages, temperature))
	if err != nil {
		return nil, s.providerError(ctx, "generation", err)
	}
	return resp, nil
}

func (s *InferenceService) providerError(ctx context.Context, stage string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.NewTimeoutError(stage, err)
	}
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return services.NewDomainError(services.ErrorTypeExternal, services.ErrProviderError.Message, err).
		WithDetail("provider", s.provider.Name()).
		WithDetail("retryable", providers.IsRetryable(err))
}

func (s *InferenceService) newPipeline(requestID, query, mode string, lang models.Language, k int, ip, ua string) *PipelineContext {
	record := models.NewChatRequest(requestID, query, mode, lang, k)
	record.SetRequestMetadata(ip, ua)
	record.MarkAsProcessing()
	return &PipelineContext{
		ID:        record.ID,
		StartTime: time.Now(),
		Record:    record,
	}
}

func (s *InferenceService) noContext(pc *PipelineContext, lang models.Language) *AskResponse {
	latency := time.Since(pc.StartTime)
	pc.Record.Language = lang
	pc.Record.SetSources([]Source{})
	pc.Record.MarkAsCompleted("", 0, 0, 0, int(latency.Milliseconds()))
	s.finish(pc, "", latency)

	return &AskResponse{
		ID:          pc.ID,
		RequestID:   pc.Record.RequestID,
		Answer:      prompt.NoContextAnswer(lang),
		Sources:     []Source{},
		ContextUsed: 0,
		Language:    lang,
		LatencyMs:   int(latency.Milliseconds()),
	}
}

// fail records a failed request and returns err, with deadline expiry
// reported as a timeout
func (s *InferenceService) fail(pc *PipelineContext, stage string, err error) error {
	if !services.IsTimeoutError(err) && errors.Is(err, context.DeadlineExceeded) {
		err = services.NewTimeoutError(stage, err)
	}

	msg := fmt.Sprintf("%s: %v", stage, err)
	if services.IsTimeoutError(err) {
		pc.Record.MarkAsTimedOut(msg)
	} else {
		pc.Record.MarkAsFailed(msg)
	}
	s.finish(pc, s.Model(), time.Since(pc.StartTime))

	s.logger.Error("inference pipeline failed",
		zap.String("inference_id", pc.ID.String()),
		zap.String("stage", stage),
		zap.String("error_type", string(services.GetErrorType(err))),
		zap.Error(err))
	return err
}

// finish records metrics and queues the request log
func (s *InferenceService) finish(pc *PipelineContext, model string, latency time.Duration) {
	labels := observability.RequestLabels{
		Mode:   pc.Record.Mode,
		Model:  model,
		Status: string(pc.Record.Status),
	}
	s.metrics.RecordRequest(labels)
	s.metrics.RecordLatency(latency, labels)
	s.metrics.RecordTokens(pc.Record.PromptTokens, pc.Record.CompletionTokens, labels)

	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(pc.Record); err != nil {
		s.logger.Warn("failed to queue request log",
			zap.String("inference_id", pc.ID.String()),
			zap.Error(err))
	}
}

func buildSources(fragments []*models.Fragment) []Source {
	sources := make([]Source, 0, len(fragments))
	for _, f := range fragments {
		score := f.AdjustedScore
		if score == 0 {
			score = f.Similarity
		}
		sources = append(sources, Source{
			File:    orUnknown(f.Metadata.File),
			Section: orUnknown(f.Metadata.Section),
			Topic:   orUnknown(f.Metadata.Topic),
			HasCode: f.Metadata.HasCode,
			Score:   score,
		})
	}
	return sources
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
