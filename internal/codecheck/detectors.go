package codecheck

import (
	"regexp"
	"strings"
)

var (
	selfClientPattern      = regexp.MustCompile(`token::Client::new\([^)]*current_contract_address`)
	clientBindingPattern   = regexp.MustCompile(`let\s+client\s*=\s*token::Client::new`)
	recursionPattern       = regexp.MustCompile(`TokenInterface::(transfer|mint|burn|balance|approve|allowance|decimals|name|symbol)\b`)
	recursiveCallPattern   = regexp.MustCompile(`TokenInterface::(transfer|mint|burn|balance|approve|allowance|decimals|name|symbol|initialize)\b`)
	fnDefinitionPattern    = regexp.MustCompile(`fn\s+\w+\s*\(`)
	storageSetPattern      = regexp.MustCompile(`(persistent|temporary|instance)\(\)\.set\(`)
	persistentGetPattern   = regexp.MustCompile(`persistent\(\)\.get\(`)
	addressCompare         = regexp.MustCompile(`if\s+\w+\s*==\s*\w+.*Address`)
	panicPattern           = regexp.MustCompile(`\bpanic!\(`)
	resultTypePattern      = regexp.MustCompile(`Result<`)
	contractErrorPattern   = regexp.MustCompile(`#\[contracterror\]`)
	balanceKeyPattern      = regexp.MustCompile(`DataKey::Balance\(`)
)

// authRequiredOps are the state-mutating token operations that must authorize.
var authRequiredOps = []string{"transfer", "transfer_from", "approve", "mint", "burn", "burn_from"}

// panicMessages maps abort message prefixes to what they signal.
var panicMessages = []struct {
	pattern *regexp.Regexp
	label   string
}{
	{regexp.MustCompile(`(?i)panic!\([^)]*"negative`), "negative amount"},
	{regexp.MustCompile(`(?i)panic!\([^)]*"insufficient`), "insufficient balance"},
	{regexp.MustCompile(`(?i)panic!\([^)]*"unauthorized`), "unauthorized"},
}

var customBalanceFunctions = []string{
	"spend_balance", "receive_balance", "get_balance", "set_balance",
	"add_balance", "subtract_balance", "read_balance", "write_balance",
}

func detectSelfClient(src *Source) [][]interface{} {
	return once(selfClientPattern.MatchString(src.Text))
}

// recursionCounts returns the interface calls and fn definitions inside the
// TokenInterface block, and whether any call is a recursive method call.
func recursionCounts(src *Source) (calls, fns int, recursive bool) {
	if src.TokenImpl == nil {
		return 0, 0, false
	}
	body := src.TokenImpl.Body
	recursive = recursionPattern.MatchString(body)
	calls = len(recursiveCallPattern.FindAllStringIndex(body, -1))
	fns = len(fnDefinitionPattern.FindAllStringIndex(body, -1))
	return calls, fns, recursive
}

func detectMassiveSelfRecursion(src *Source) [][]interface{} {
	calls, fns, recursive := recursionCounts(src)
	return once(recursive && fns > 0 && calls >= fns, calls, fns)
}

func detectSelfRecursion(src *Source) [][]interface{} {
	calls, fns, recursive := recursionCounts(src)
	return once(recursive && !(fns > 0 && calls >= fns), calls)
}

// proxyCounts classifies the bodies of the TokenInterface implementation:
// single-statement bodies, and single-statement bodies delegating to the interface.
func proxyCounts(src *Source) (total, single, delegating int) {
	for _, fn := range src.ImplFunctions {
		if !fn.HasBody() {
			continue
		}
		total++
		if len(statementLines(fn.Body.Body)) <= 1 {
			single++
			if strings.Contains(fn.Body.Body, "TokenInterface::") {
				delegating++
			}
		}
	}
	return total, single, delegating
}

func detectNonFunctionalProxy(src *Source) [][]interface{} {
	total, _, delegating := proxyCounts(src)
	return once(delegating > 0 && delegating == total)
}

func detectDelegatingProxy(src *Source) [][]interface{} {
	total, single, delegating := proxyCounts(src)
	if delegating > 0 && delegating == total {
		return nil
	}
	return once(total > 0 && float64(single) > float64(total)*0.8)
}

func detectClientUsage(src *Source) [][]interface{} {
	return once(clientBindingPattern.MatchString(src.Text) && src.Contains("current_contract_address"))
}

func detectZombieWrite(src *Source) [][]interface{} {
	for _, fn := range src.Functions {
		body := fn.Body.Body
		if fn.HasBody() && storageSetPattern.MatchString(body) && !strings.Contains(body, "extend_ttl") {
			return once(true)
		}
	}
	return nil
}

func detectZombieRead(src *Source) [][]interface{} {
	for _, fn := range src.Functions {
		body := fn.Body.Body
		if fn.HasBody() && persistentGetPattern.MatchString(body) && !strings.Contains(body, "extend_ttl") {
			return once(true)
		}
	}
	return nil
}

func detectFakeAuth(src *Source) [][]interface{} {
	return once(addressCompare.MatchString(src.Text) && !src.Contains("require_auth"))
}

func detectMissingAuth(src *Source) [][]interface{} {
	var out [][]interface{}
	for _, op := range authRequiredOps {
		for _, fn := range src.FunctionsNamed(op) {
			body := fn.Body.Body
			if strings.Contains(body, "TokenInterface::"+op) {
				continue
			}
			multiline := strings.Contains(strings.TrimRight(body, " \t"), "\n")
			if multiline && len(statementLines(body)) > 0 && !strings.Contains(body, "require_auth") {
				out = append(out, []interface{}{op})
				break
			}
		}
	}
	return out
}

func detectPanicEverywhere(src *Source) [][]interface{} {
	count := len(panicPattern.FindAllStringIndex(src.Text, -1))
	structured := resultTypePattern.MatchString(src.Text) || contractErrorPattern.MatchString(src.Text)
	return once(count > 3 && !structured, count)
}

func detectPanicMessages(src *Source) [][]interface{} {
	var out [][]interface{}
	for _, pm := range panicMessages {
		if pm.pattern.MatchString(src.Text) {
			out = append(out, []interface{}{pm.label})
		}
	}
	return out
}

func initializers(src *Source) []Function {
	return src.FunctionsNamed("initialize", "__constructor")
}

func delegatesInitialize(fn Function) bool {
	return strings.Contains(fn.Body.Body, "TokenInterface::initialize")
}

func detectDelegatedInitializer(src *Source) [][]interface{} {
	var out [][]interface{}
	for _, fn := range initializers(src) {
		body := fn.Body.Body
		if delegatesInitialize(fn) && !strings.Contains(body, "has(") && !strings.Contains(body, "require_auth") {
			out = append(out, []interface{}{fn.Name})
		}
	}
	return out
}

func detectOpenInitialization(src *Source) [][]interface{} {
	var out [][]interface{}
	for _, fn := range initializers(src) {
		body := fn.Body.Body
		if !delegatesInitialize(fn) && strings.Contains(body, "set(") && !strings.Contains(body, "has(") {
			out = append(out, []interface{}{fn.Name})
		}
	}
	return out
}

func detectInitializerWithoutAuth(src *Source) [][]interface{} {
	var out [][]interface{}
	for _, fn := range initializers(src) {
		body := fn.Body.Body
		if !delegatesInitialize(fn) && strings.Contains(body, "set(") && !strings.Contains(body, "require_auth") {
			out = append(out, []interface{}{fn.Name})
		}
	}
	return out
}

const (
	lateAuthMinOffset = 50
	lateAuthMinLines  = 5
)

func detectGasGriefing(src *Source) [][]interface{} {
	for _, fn := range src.Functions {
		if !fn.HasBody() || !strings.Contains(fn.Params, "Address") {
			continue
		}
		idx := strings.Index(fn.Body.Body, "require_auth")
		if idx < lateAuthMinOffset {
			continue
		}
		if lines := strings.Count(fn.Body.Body[:idx], "\n"); lines > lateAuthMinLines {
			return once(true, lines)
		}
	}
	return nil
}

func detectCustomBalanceFunctions(src *Source) [][]interface{} {
	var out [][]interface{}
	for _, name := range customBalanceFunctions {
		for _, fn := range src.Functions {
			if fn.Name == name {
				out = append(out, []interface{}{name})
				break
			}
		}
	}
	return out
}

func detectManualBalanceStorage(src *Source) [][]interface{} {
	return once(balanceKeyPattern.MatchString(src.Text))
}

func detectSymbolParameters(src *Source) [][]interface{} {
	var out [][]interface{}
	for _, param := range []string{"name", "symbol"} {
		for _, fn := range src.Functions {
			if fn.Name != "initialize" {
				continue
			}
			if symbolParam(fn.Params, param) {
				out = append(out, []interface{}{param})
				break
			}
		}
	}
	return out
}

// symbolParam reports whether the parameter list declares `param: Symbol`.
func symbolParam(params, param string) bool {
	for _, p := range strings.Split(params, ",") {
		name, typ, ok := strings.Cut(p, ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(name) == param && strings.TrimSpace(typ) == "Symbol" {
			return true
		}
	}
	return false
}

func detectCustomToken(src *Source) [][]interface{} {
	return once(strings.Contains(src.Lower, "token") || strings.Contains(src.Lower, "balance"))
}

func detectMissingNoStd(src *Source) [][]interface{} {
	return once(!src.Contains("#![no_std]") && strings.Contains(src.Lower, "contract"))
}

func detectMissingContractAttr(src *Source) [][]interface{} {
	return once(!src.Contains("#[contract]") && src.Contains("pub struct"))
}

func detectMissingContractImpl(src *Source) [][]interface{} {
	return once(!src.Contains("#[contractimpl]") && src.Contains("impl") && strings.Contains(src.Lower, "contract"))
}

func detectUnprotectedSensitiveOps(src *Source) [][]interface{} {
	sensitive := strings.Contains(src.Lower, "transfer") || strings.Contains(src.Lower, "spend")
	return once(!src.Contains("require_auth") && sensitive)
}
