package codecheck

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(r Result) []AntipatternKind {
	out := make([]AntipatternKind, 0, len(r.Findings))
	for _, f := range r.Findings {
		out = append(out, f.Kind)
	}
	return out
}

func countKind(r Result, kind AntipatternKind) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

func TestValidate_CleanSources(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		strategy Strategy
		token    bool
	}{
		{"counter contract", cleanCounter, StrategyCustom, false},
		{"standard interface token", cleanStandardToken, StrategyStandardInterface, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.code, "")
			assert.True(t, res.IsValid())
			assert.Empty(t, res.Errors)
			assert.Empty(t, res.Warnings)
			assert.Equal(t, tt.strategy, res.Strategy)
			assert.Equal(t, tt.token, res.TokenCode)
		})
	}
}

func TestValidate_NonFunctionalProxy(t *testing.T) {
	res := Validate(proxyToken, "")

	assert.False(t, res.IsValid())
	assert.Equal(t, 1, countKind(res, KindNonFunctionalProxy))
	assert.Equal(t, 1, countKind(res, KindMassiveSelfRecursion))
	assert.Equal(t, 0, countKind(res, KindDelegatingProxy))
	assert.Equal(t, 0, countKind(res, KindMissingAuth), "delegating bodies are reported as recursion")

	var proxy string
	for _, e := range res.Errors {
		if strings.Contains(e, "Non-functional proxy") {
			proxy = e
		}
	}
	assert.Contains(t, proxy, "[ANTIPATTERN #1]")
}

func TestValidate_SelfRecursionWording(t *testing.T) {
	code := `impl TokenInterface for Token {
    fn balance(e: Env, id: Address) -> i128 {
        let b = read(&e, &id);
        b
    }
    fn decimals(e: Env) -> u32 {
        let d = 7;
        d
    }
    fn name(e: Env) -> String {
        let n = TokenInterface::name(e.clone());
        n
    }
}`
	res := Validate(code, "")
	assert.Equal(t, 1, countKind(res, KindSelfRecursion))
	assert.Equal(t, 0, countKind(res, KindMassiveSelfRecursion))
	assert.Contains(t, res.Errors[0], "1 recursive calls")
}

func TestValidate_DelegatingProxy(t *testing.T) {
	code := `impl TokenInterface for Token {
    fn balance(e: Env, id: Address) -> i128 { read_balance(&e, id) }
    fn decimals(e: Env) -> u32 { 7 }
    fn name(e: Env) -> String { read_name(&e) }
    fn symbol(e: Env) -> String { read_symbol(&e) }
    fn allowance(e: Env, from: Address, spender: Address) -> i128 { 0 }
}`
	res := Validate(code, "")
	assert.Equal(t, 1, countKind(res, KindDelegatingProxy))
	assert.Equal(t, 0, countKind(res, KindNonFunctionalProxy))
}

func TestValidate_MissingAuthNamesTheFunction(t *testing.T) {
	res := Validate(unauthorizedTransfer, "")

	require.False(t, res.IsValid())
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "'transfer'")
	assert.Equal(t, StrategyCustom, res.Strategy)
	assert.Equal(t, 1, countKind(res, KindCustomToken))
}

func TestValidate_MissingAuthIgnoresOneLiners(t *testing.T) {
	code := `pub fn mint(e: Env, to: Address, amount: i128) { write(&e, to, amount) }`
	res := Validate(code, "token")
	assert.Equal(t, 0, countKind(res, KindMissingAuth))
}

func TestValidate_ZombieStorage(t *testing.T) {
	code := `#![no_std]
pub fn set_admin(e: Env, admin: Address) {
    admin.require_auth();
    e.storage().persistent().set(&DataKey::Admin, &admin);
}
pub fn save(e: Env, v: u32) {
    e.storage().temporary().set(&DataKey::Value, &v);
}
pub fn admin(e: Env) -> Address {
    e.storage().persistent().get(&DataKey::Admin).unwrap()
}`
	res := Validate(code, "token")

	assert.Equal(t, []AntipatternKind{KindZombieStorageWrite, KindZombieStorageRead}, kinds(res))
	assert.Len(t, res.Errors, 1)
	assert.Len(t, res.Warnings, 1)
}

func TestValidate_ZombieStorageSatisfiedByExtendTTL(t *testing.T) {
	code := `pub fn save(e: Env, v: u32) {
    e.storage().persistent().set(&DataKey::Value, &v);
    e.storage().persistent().extend_ttl(&DataKey::Value, 100, 200);
}`
	res := Validate(code, "token")
	assert.Equal(t, 0, countKind(res, KindZombieStorageWrite))
}

func TestValidate_FakeAuth(t *testing.T) {
	code := `pub fn withdraw(e: Env, caller: Address) {
    if caller == admin { let _: Address = caller; }
}`
	res := Validate(code, "token")
	assert.Equal(t, 1, countKind(res, KindFakeAuth))

	withAuth := strings.Replace(code, "let _: Address = caller;", "caller.require_auth();  // Address", 1)
	assert.Equal(t, 0, countKind(Validate(withAuth, "token"), KindFakeAuth))
}

func TestValidate_Panics(t *testing.T) {
	code := `#![no_std]
fn check(a: i128, b: i128) {
    if a < 0 { panic!("negative amount"); }
    if b < a { panic!("Insufficient balance"); }
    if a > 10 { panic!("zero"); }
    if b > 10 { panic!("overflow"); }
}`
	res := Validate(code, "token")

	assert.Equal(t, 1, countKind(res, KindPanicEverywhere))
	assert.Contains(t, res.Errors[0], "4 panic!() calls")
	assert.Equal(t, 2, countKind(res, KindPanicMessage))

	structured := "#[contracterror]\n" + code
	assert.Equal(t, 0, countKind(Validate(structured, "token"), KindPanicEverywhere))
}

func TestValidate_Initialization(t *testing.T) {
	t.Run("open initializer", func(t *testing.T) {
		code := `pub fn initialize(e: Env, admin: Address) {
    e.storage().instance().set(&DataKey::Admin, &admin);
    e.storage().instance().extend_ttl(100, 200);
}`
		res := Validate(code, "token")
		assert.Equal(t, 1, countKind(res, KindOpenInitialization))
		assert.Equal(t, 1, countKind(res, KindInitializerWithoutAuth))
		assert.Contains(t, res.Errors[0], "initialize()")
	})

	t.Run("guarded initializer", func(t *testing.T) {
		code := `pub fn __constructor(e: Env, admin: Address) {
    if e.storage().instance().has(&DataKey::Admin) { panic!("already initialized"); }
    admin.require_auth();
    e.storage().instance().set(&DataKey::Admin, &admin);
    e.storage().instance().extend_ttl(100, 200);
}`
		res := Validate(code, "token")
		assert.Equal(t, 0, countKind(res, KindOpenInitialization))
		assert.Equal(t, 0, countKind(res, KindInitializerWithoutAuth))
	})

	t.Run("delegating initializer downgrades to a warning", func(t *testing.T) {
		code := `fn initialize(e: Env, admin: Address) {
    TokenInterface::initialize(e, admin)
}`
		res := Validate(code, "token")
		assert.Equal(t, 1, countKind(res, KindDelegatedInitializer))
		assert.Equal(t, 0, countKind(res, KindOpenInitialization))
		assert.True(t, res.IsValid())
	})
}

func TestValidate_MissingAuthIsTokenScoped(t *testing.T) {
	res := Validate(unauthorizedTransfer, "nft")

	assert.True(t, res.IsValid(), "non-token code only gets the general checks")
	assert.Empty(t, res.Errors)
	assert.Equal(t, 0, countKind(res, KindMissingAuth))
	assert.Equal(t, 1, countKind(res, KindUnprotectedSensitiveOp))
	assert.Len(t, res.Warnings, 1)
}

func TestValidate_GasGriefing(t *testing.T) {
	code := `pub fn transfer(e: Env, from: Address, to: Address, amount: i128) {
    let a = compute_one(&e);
    let b = compute_two(&e);
    let c = compute_three(&e);
    let d = compute_four(&e);
    let f = compute_five(&e);
    let g = compute_six(&e);
    from.require_auth();
    move_balance(&e, &from, &to, amount + a + b + c + d + f + g);
}`
	res := Validate(code, "token")
	assert.Equal(t, 1, countKind(res, KindGasGriefing))
	assert.Equal(t, 0, countKind(res, KindMissingAuth))
	assert.True(t, res.IsValid())
}

const standardTokenExtras = `#![no_std]
impl TokenInterface for Token {
    fn balance(e: Env, id: Address) -> i128 {
        let key = DataKey::Balance(id);
        e.storage().persistent().get(&key).unwrap_or(0)
    }
}
fn spend_balance(e: &Env, addr: Address, amount: i128) {
    let b = read_balance(e, addr.clone());
    write_balance(e, addr, b - amount);
}
fn write_balance(e: &Env, addr: Address, amount: i128) {
    e.storage().persistent().set(&DataKey::Balance(addr), &amount);
    e.storage().persistent().extend_ttl(&DataKey::Balance(addr), 100, 200);
}
pub fn initialize(e: Env, admin: Address, decimal: u32, name: Symbol, symbol: Symbol) {
    admin.require_auth();
}`

func TestValidate_StandardInterfaceRules(t *testing.T) {
	res := Validate(standardTokenExtras, "")

	assert.Equal(t, StrategyStandardInterface, res.Strategy)
	assert.Equal(t, 2, countKind(res, KindCustomBalanceFunction))
	assert.Equal(t, 1, countKind(res, KindManualBalanceStorage))
	assert.Equal(t, 2, countKind(res, KindSymbolParameter))
	assert.Equal(t, 0, countKind(res, KindCustomToken))

	var joined string
	for _, e := range res.Errors {
		joined += e + "\n"
	}
	assert.Contains(t, joined, "'spend_balance'")
	assert.Contains(t, joined, "'write_balance'")
	assert.Contains(t, joined, "name: Symbol to name: String")
	assert.Contains(t, joined, "symbol: Symbol to symbol: String")
	assert.Contains(t, joined, "[CASE A]")
}

func TestValidate_StandardInterfaceRulesSkippedForCustomTokens(t *testing.T) {
	custom := strings.Replace(standardTokenExtras, "impl TokenInterface for Token", "impl Token", 1)
	res := Validate(custom, "")

	assert.Equal(t, StrategyCustom, res.Strategy)
	assert.Equal(t, 0, countKind(res, KindCustomBalanceFunction))
	assert.Equal(t, 0, countKind(res, KindManualBalanceStorage))
	assert.Equal(t, 1, countKind(res, KindCustomToken))
}

func TestValidate_MissingNoStd(t *testing.T) {
	res := Validate("#[contract]\npub struct Token;", "")
	assert.Equal(t, 1, countKind(res, KindMissingNoStd))
	assert.True(t, res.IsValid())
}

func TestValidate_GeneralContracts(t *testing.T) {
	code := `pub struct Counter;
impl Counter {
    pub fn transfer(e: Env) {}
}
// counter contract`

	res := Validate(code, "")
	assert.False(t, res.TokenCode)
	assert.Equal(t,
		[]AntipatternKind{KindMissingContractAttr, KindMissingContractImpl, KindUnprotectedSensitiveOp},
		kinds(res))

	t.Run("hint overrides detection", func(t *testing.T) {
		res := Validate(cleanStandardToken, "nft")
		assert.False(t, res.TokenCode)
		assert.Equal(t, 0, countKind(res, KindMissingAuth))
	})
}

func TestValidate_IsTotalAndDeterministic(t *testing.T) {
	inputs := []string{
		"",
		"hello world",
		"{{{{{{",
		"}}}}}}",
		"fn",
		"fn x(",
		"fn x<T",
		"fn initialize(e: Env { set(",
		"impl TokenInterface for X {",
		"impl TokenInterface for X { fn transfer(e: Env) { TokenInterface::transfer(",
		"```rust\nfn a() {",
		`fn a() { let s = "unterminated { `,
		`fn a() { let c = '`,
		"fn a() { /* never closed",
		"fn __constructor() { '\\'' }",
		strings.Repeat("fn a(e: Address) { panic!(\"negative\"); ", 50),
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			var first, second Result
			require.NotPanics(t, func() {
				first = Validate(in, "")
				_ = Validate(in, "token")
				second = Validate(in, "")
			})
			assert.Equal(t, first, second)
			assert.Equal(t, len(first.Errors) == 0, first.IsValid())
		})
	}
}

func TestValidator_CustomRegistry(t *testing.T) {
	only := []Antipattern{{
		Kind:     "todo_left",
		Scope:    ScopeGeneral,
		Severity: SeverityWarning,
		Template: "todo!() left in %s",
		Detect: func(src *Source) [][]interface{} {
			return once(strings.Contains(src.Text, "todo!()"), "code")
		},
	}}
	res := NewValidatorWithRegistry(only).Validate("fn a() { todo!() }", "custom")

	assert.Equal(t, []string{"todo!() left in code"}, res.Warnings)
	assert.True(t, res.IsValid())
}

func TestLookup(t *testing.T) {
	ap, ok := Lookup(KindMissingAuth)
	require.True(t, ok)
	assert.Equal(t, 3, ap.Rule)
	assert.Equal(t, SeverityError, ap.Severity)

	_, ok = Lookup("unknown")
	assert.False(t, ok)
}
