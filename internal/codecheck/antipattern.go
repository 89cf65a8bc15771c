package codecheck

import "fmt"

// Severity decides whether a finding blocks acceptance.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Scope selects which source an antipattern is checked against.
type Scope int

const (
	// ScopeToken applies to all token code
	ScopeToken Scope = iota
	// ScopeStandardInterface applies to token code implementing TokenInterface
	ScopeStandardInterface
	// ScopeCustom applies to token code with its own structure
	ScopeCustom
	// ScopeGeneral applies to non-token contracts
	ScopeGeneral
)

// AntipatternKind names a known-bad pattern.
type AntipatternKind string

const (
	KindSelfClient             AntipatternKind = "self_client"
	KindMassiveSelfRecursion   AntipatternKind = "massive_self_recursion"
	KindSelfRecursion          AntipatternKind = "self_recursion"
	KindNonFunctionalProxy     AntipatternKind = "non_functional_proxy"
	KindDelegatingProxy        AntipatternKind = "delegating_proxy"
	KindClientUsage            AntipatternKind = "client_usage"
	KindZombieStorageWrite     AntipatternKind = "zombie_storage_write"
	KindZombieStorageRead      AntipatternKind = "zombie_storage_read"
	KindFakeAuth               AntipatternKind = "fake_auth"
	KindMissingAuth            AntipatternKind = "missing_auth"
	KindPanicEverywhere        AntipatternKind = "panic_everywhere"
	KindPanicMessage           AntipatternKind = "panic_message"
	KindDelegatedInitializer   AntipatternKind = "delegated_initializer"
	KindOpenInitialization     AntipatternKind = "open_initialization"
	KindInitializerWithoutAuth AntipatternKind = "initializer_without_auth"
	KindGasGriefing            AntipatternKind = "gas_griefing"
	KindCustomBalanceFunction  AntipatternKind = "custom_balance_function"
	KindManualBalanceStorage   AntipatternKind = "manual_balance_storage"
	KindSymbolParameter        AntipatternKind = "symbol_parameter"
	KindCustomToken            AntipatternKind = "custom_token"
	KindMissingNoStd           AntipatternKind = "missing_no_std"
	KindMissingContractAttr    AntipatternKind = "missing_contract_attr"
	KindMissingContractImpl    AntipatternKind = "missing_contractimpl_attr"
	KindUnprotectedSensitiveOp AntipatternKind = "unprotected_sensitive_op"
)

// Detector returns one argument list per occurrence; each becomes a finding
// rendered through the antipattern's template. No occurrences means nil.
type Detector func(src *Source) [][]interface{}

// Antipattern is one entry of the registry.
type Antipattern struct {
	Kind     AntipatternKind
	Rule     int // catalogue number, 0 for general hygiene
	Scope    Scope
	Severity Severity
	Template string
	Detect   Detector
}

// Finding is one detected occurrence of an antipattern.
type Finding struct {
	Kind     AntipatternKind `json:"kind"`
	Rule     int             `json:"rule"`
	Severity Severity        `json:"severity"`
	Message  string          `json:"message"`
}

func (a Antipattern) finding(args []interface{}) Finding {
	msg := a.Template
	if len(args) > 0 {
		msg = fmt.Sprintf(a.Template, args...)
	}
	switch {
	case a.Scope == ScopeStandardInterface:
		msg = "[CASE A] " + msg
	case a.Scope == ScopeCustom:
		msg = "[CASE B] " + msg
	case a.Rule >= 1 && a.Rule <= 6:
		msg = fmt.Sprintf("[ANTIPATTERN #%d] %s", a.Rule, msg)
	}
	return Finding{Kind: a.Kind, Rule: a.Rule, Severity: a.Severity, Message: msg}
}

// once reports a single occurrence when cond holds
func once(cond bool, args ...interface{}) [][]interface{} {
	if !cond {
		return nil
	}
	return [][]interface{}{args}
}

// Registry is the ordered antipattern catalogue. Findings are reported in this order.
var Registry = []Antipattern{
	{
		Kind: KindSelfClient, Rule: 1, Scope: ScopeToken, Severity: SeverityError,
		Template: "token::Client is used to call the contract's own address. This wastes gas and can recurse. Access storage or internal functions directly.",
		Detect:   detectSelfClient,
	},
	{
		Kind: KindMassiveSelfRecursion, Rule: 1, Scope: ScopeToken, Severity: SeverityError,
		Template: "Infinite recursion: the TokenInterface implementation makes %d calls to TokenInterface:: across %d functions, so every method calls itself. Implement the real storage and balance logic instead of delegating.",
		Detect:   detectMassiveSelfRecursion,
	},
	{
		Kind: KindSelfRecursion, Rule: 1, Scope: ScopeToken, Severity: SeverityError,
		Template: "Infinite recursion: the TokenInterface implementation makes %d recursive calls to TokenInterface::. Write the real logic rather than delegating to the interface you are implementing.",
		Detect:   detectSelfRecursion,
	},
	{
		Kind: KindNonFunctionalProxy, Rule: 1, Scope: ScopeToken, Severity: SeverityError,
		Template: "Non-functional proxy: every function of the TokenInterface implementation only calls TokenInterface::<method>(), which recurses forever. Use #[contract(impl = TokenInterface)] or implement the storage logic.",
		Detect:   detectNonFunctionalProxy,
	},
	{
		Kind: KindDelegatingProxy, Rule: 1, Scope: ScopeToken, Severity: SeverityError,
		Template: "The TokenInterface implementation only delegates without adding logic. Balances and storage must actually be implemented.",
		Detect:   detectDelegatingProxy,
	},
	{
		Kind: KindClientUsage, Rule: 1, Scope: ScopeToken, Severity: SeverityWarning,
		Template: "token::Client usage detected. Make sure it does not call the contract itself.",
		Detect:   detectClientUsage,
	},
	{
		Kind: KindZombieStorageWrite, Rule: 2, Scope: ScopeToken, Severity: SeverityError,
		Template: "Zombie storage: storage set() without extend_ttl() in the same function. The entry can expire and be archived. Call extend_ttl() after writing.",
		Detect:   detectZombieWrite,
	},
	{
		Kind: KindZombieStorageRead, Rule: 2, Scope: ScopeToken, Severity: SeverityWarning,
		Template: "persistent().get() without extend_ttl(). Consider extending the TTL when reading critical data.",
		Detect:   detectZombieRead,
	},
	{
		Kind: KindFakeAuth, Rule: 3, Scope: ScopeToken, Severity: SeverityError,
		Template: "Fake auth: an Address is compared manually without require_auth(). Comparison does not verify signatures; use address.require_auth().",
		Detect:   detectFakeAuth,
	},
	{
		Kind: KindMissingAuth, Rule: 3, Scope: ScopeToken, Severity: SeverityError,
		Template: "Function '%s' changes state but never calls require_auth(), so anyone can call it. Add address.require_auth() at the start.",
		Detect:   detectMissingAuth,
	},
	{
		Kind: KindPanicEverywhere, Rule: 4, Scope: ScopeToken, Severity: SeverityError,
		Template: "%d panic!() calls without structured errors. Callers get generic failures. Define a #[contracterror] enum and return Result<T, Error>.",
		Detect:   detectPanicEverywhere,
	},
	{
		Kind: KindPanicMessage, Rule: 4, Scope: ScopeToken, Severity: SeverityWarning,
		Template: "panic!() used for '%s'. Prefer a #[contracterror] variant with a specific error code.",
		Detect:   detectPanicMessages,
	},
	{
		Kind: KindDelegatedInitializer, Rule: 5, Scope: ScopeToken, Severity: SeverityWarning,
		Template: "%s() delegates to TokenInterface::initialize without a prior check. Make sure front-running is prevented.",
		Detect:   detectDelegatedInitializer,
	},
	{
		Kind: KindOpenInitialization, Rule: 5, Scope: ScopeToken, Severity: SeverityError,
		Template: "Open initialization: %s() writes state without checking it was already initialized, so it can be front-run. Check storage.has(&key) before set().",
		Detect:   detectOpenInitialization,
	},
	{
		Kind: KindInitializerWithoutAuth, Rule: 5, Scope: ScopeToken, Severity: SeverityWarning,
		Template: "%s() does not call require_auth(). Consider requiring the deployer's or admin's authorization.",
		Detect:   detectInitializerWithoutAuth,
	},
	{
		Kind: KindGasGriefing, Rule: 6, Scope: ScopeToken, Severity: SeverityWarning,
		Template: "Gas griefing: require_auth() comes about %d lines into the function. Expensive work before authorization wastes resources; call it first.",
		Detect:   detectGasGriefing,
	},
	{
		Kind: KindCustomBalanceFunction, Rule: 7, Scope: ScopeStandardInterface, Severity: SeverityError,
		Template: "Custom balance function '%s'. TokenInterface manages balances itself; do not write balance helpers.",
		Detect:   detectCustomBalanceFunctions,
	},
	{
		Kind: KindManualBalanceStorage, Rule: 7, Scope: ScopeStandardInterface, Severity: SeverityError,
		Template: "Balances are stored manually through DataKey::Balance. TokenInterface owns balance storage; do not access it directly.",
		Detect:   detectManualBalanceStorage,
	},
	{
		Kind: KindSymbolParameter, Rule: 7, Scope: ScopeStandardInterface, Severity: SeverityError,
		Template: "initialize() takes '%[1]s' as Symbol. TokenInterface requires String: change %[1]s: Symbol to %[1]s: String.",
		Detect:   detectSymbolParameters,
	},
	{
		Kind: KindCustomToken, Rule: 8, Scope: ScopeCustom, Severity: SeverityWarning,
		Template: "Custom token without TokenInterface. Make sure the extra complexity is needed; standard tokens should use TokenInterface.",
		Detect:   detectCustomToken,
	},
	{
		Kind: KindMissingNoStd, Rule: 9, Scope: ScopeToken, Severity: SeverityWarning,
		Template: "Missing #![no_std] at the top of the file. Soroban contracts must be no_std.",
		Detect:   detectMissingNoStd,
	},
	{
		Kind: KindMissingContractAttr, Scope: ScopeGeneral, Severity: SeverityError,
		Template: "Missing #[contract] attribute on the contract struct.",
		Detect:   detectMissingContractAttr,
	},
	{
		Kind: KindMissingContractImpl, Scope: ScopeGeneral, Severity: SeverityError,
		Template: "Missing #[contractimpl] attribute on the implementation.",
		Detect:   detectMissingContractImpl,
	},
	{
		Kind: KindUnprotectedSensitiveOp, Scope: ScopeGeneral, Severity: SeverityWarning,
		Template: "No require_auth() found around sensitive operations. Review the contract's authorization.",
		Detect:   detectUnprotectedSensitiveOps,
	},
}

// Lookup returns the registry entry for a kind
func Lookup(kind AntipatternKind) (Antipattern, bool) {
	for _, a := range Registry {
		if a.Kind == kind {
			return a, true
		}
	}
	return Antipattern{}, false
}
