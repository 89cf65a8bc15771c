package codecheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   string
	}{
		{
			name:   "rust block wins over earlier generic block",
			answer: "Setup:\n```\ncargo new x\n```\nCode:\n```rust\nfn main() {}\n```\n",
			want:   "fn main() {}\n",
		},
		{
			name:   "generic block",
			answer: "Here:\n```\nfn main() {}\n```",
			want:   "fn main() {}\n",
		},
		{
			name:   "no block",
			answer: "fn main() {}",
			want:   "fn main() {}",
		},
		{
			name:   "unterminated block",
			answer: "```rust\nfn main() {}",
			want:   "```rust\nfn main() {}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCode(tt.answer))
		})
	}
}

func TestShouldValidate(t *testing.T) {
	assert.True(t, ShouldValidate("Crear un token fungible"))
	assert.True(t, ShouldValidate("write a counter CONTRACT"))
	assert.False(t, ShouldValidate("what is the ledger ttl?"))
}
