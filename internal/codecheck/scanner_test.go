package codecheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanBlock(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		body   string
		closed bool
	}{
		{"nested braces", "{ a { b } c }", " a { b } c ", true},
		{"brace in string", `{ let s = "}"; }`, ` let s = "}"; `, true},
		{"escaped quote in string", `{ let s = "\"}"; }`, ` let s = "\"}"; `, true},
		{"line comment", "{ // }\n x }", " // }\n x ", true},
		{"block comment", "{ /* } */ x }", " /* } */ x ", true},
		{"char literal", "{ let c = '}'; }", " let c = '}'; ", true},
		{"escaped char literal", `{ let c = '\''; }`, ` let c = '\''; `, true},
		{"lifetime", "{ fn f<'a>(x: &'a str) { } }", " fn f<'a>(x: &'a str) { } ", true},
		{"unclosed", "{ a { b }", " a { b }", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := scanBlock(tt.text, 0)
			assert.Equal(t, tt.body, b.Body)
			assert.Equal(t, tt.closed, b.Closed)
			assert.Equal(t, 0, b.Start)
		})
	}
}

func TestScanBlock_NotABrace(t *testing.T) {
	b := scanBlock("abc", 1)
	assert.Equal(t, -1, b.Start)
	assert.False(t, b.Closed)

	b = scanBlock("abc", 10)
	assert.Equal(t, -1, b.Start)
}

func TestScanFunctions(t *testing.T) {
	code := `fn a(x: u32) -> u32 { x }
fn b();
fn c<T: Into<u32>>(t: T) { let _ = t; }
fn d(f: impl Fn() -> u32) -> Option<u32> { Some(f()) }`

	fns := scanFunctions(code)
	require.Len(t, fns, 4)

	assert.Equal(t, "a", fns[0].Name)
	assert.Equal(t, "x: u32", fns[0].Params)
	assert.Equal(t, " x ", fns[0].Body.Body)

	assert.Equal(t, "b", fns[1].Name)
	assert.False(t, fns[1].HasBody())

	assert.Equal(t, "c", fns[2].Name)
	assert.Equal(t, "t: T", fns[2].Params)
	assert.True(t, fns[2].HasBody())

	assert.Equal(t, "f: impl Fn() -> u32", fns[3].Params)
	assert.Equal(t, " Some(f()) ", fns[3].Body.Body)
}

func TestStatementLines(t *testing.T) {
	body := `
        // comment

        let a = 1;
        a
    `
	assert.Equal(t, []string{"let a = 1;", "a"}, statementLines(body))
	assert.Empty(t, statementLines("   \n  // only\n"))
}

func TestNewSource_TokenImpl(t *testing.T) {
	code := `fn outside() {}
impl TokenInterface for Token {
    fn inside(e: Env) { }
}
fn after() {}`

	src := NewSource(code)
	require.NotNil(t, src.TokenImpl)
	require.Len(t, src.ImplFunctions, 1)
	assert.Equal(t, "inside", src.ImplFunctions[0].Name)
	assert.Equal(t, StrategyStandardInterface, src.Strategy)
	assert.Len(t, src.FunctionsNamed("outside", "after"), 2)
}

func TestIsTokenCode(t *testing.T) {
	assert.True(t, IsTokenCode("impl TokenInterface for X {}", ""))
	assert.True(t, IsTokenCode("pub struct MyToken;", ""))
	assert.False(t, IsTokenCode("pub struct Counter;", ""))
	assert.True(t, IsTokenCode("pub struct Counter;", "Token"))
	assert.False(t, IsTokenCode("pub struct MyToken;", "nft"))
}
