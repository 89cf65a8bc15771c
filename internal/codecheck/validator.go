package codecheck

// Result is the verdict of one validation pass. It is built once and not
// changed afterwards; a regeneration produces a new Result.
type Result struct {
	Strategy  Strategy  `json:"strategy"`
	TokenCode bool      `json:"token_code"`
	Errors    []string  `json:"errors"`
	Warnings  []string  `json:"warnings"`
	Findings  []Finding `json:"findings"`
}

// IsValid is true iff there are no errors
func (r Result) IsValid() bool {
	return len(r.Errors) == 0
}

// HasWarnings reports whether any warning was raised
func (r Result) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Clean reports a result with neither errors nor warnings
func (r Result) Clean() bool {
	return r.IsValid() && !r.HasWarnings()
}

// Validator runs the antipattern registry over source text.
type Validator struct {
	registry []Antipattern
}

// NewValidator creates a validator over the default registry
func NewValidator() *Validator {
	return &Validator{registry: Registry}
}

// NewValidatorWithRegistry creates a validator over a custom registry
func NewValidatorWithRegistry(registry []Antipattern) *Validator {
	return &Validator{registry: registry}
}

// Validate checks code. hint is the declared contract type ("token", "nft", ...)
// or empty to detect it. Any input, however malformed, yields a Result.
func (v *Validator) Validate(code, hint string) Result {
	src := NewSource(code)
	token := IsTokenCode(code, hint)

	res := Result{
		Strategy:  src.Strategy,
		TokenCode: token,
		Errors:    []string{},
		Warnings:  []string{},
		Findings:  []Finding{},
	}

	for _, ap := range v.registry {
		if !inScope(ap.Scope, token, src.Strategy) {
			continue
		}
		for _, args := range ap.Detect(src) {
			f := ap.finding(args)
			res.Findings = append(res.Findings, f)
			if f.Severity == SeverityError {
				res.Errors = append(res.Errors, f.Message)
			} else {
				res.Warnings = append(res.Warnings, f.Message)
			}
		}
	}
	return res
}

func inScope(scope Scope, token bool, strategy Strategy) bool {
	switch scope {
	case ScopeToken:
		return token
	case ScopeStandardInterface:
		return token && strategy == StrategyStandardInterface
	case ScopeCustom:
		return token && strategy == StrategyCustom
	case ScopeGeneral:
		return !token
	}
	return false
}

var defaultValidator = NewValidator()

// Validate checks code with the default registry
func Validate(code, hint string) Result {
	return defaultValidator.Validate(code, hint)
}
