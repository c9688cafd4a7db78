package repair

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "fenced with language tag",
			response: "Here is the fix:\n```python\ndef add(a,b): return a+b\n```\nHope that helps.",
			want:     "def add(a,b): return a+b",
		},
		{
			name:     "fenced without language tag",
			response: "```\nx = 1\ny = 2\n```",
			want:     "x = 1\ny = 2",
		},
		{
			name:     "no fence falls back to verbatim",
			response: "def add(a,b): return a+b",
			want:     "def add(a,b): return a+b",
		},
		{
			name:     "unterminated fence falls back to verbatim",
			response: "```python\ndef broken(",
			want:     "```python\ndef broken(",
		},
		{
			name:     "first block wins",
			response: "```go\nfirst()\n```\nand then\n```go\nsecond()\n```",
			want:     "first()",
		},
		{
			name:     "single line block without tag",
			response: "```return x + y```",
			want:     "return x + y",
		},
		{
			name:     "surrounding whitespace trimmed",
			response: "  \n```python\n\ncode()\n\n```\n  ",
			want:     "code()",
		},
		{
			name:     "empty response",
			response: "",
			want:     "",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ExtractCode(tc.response))
		})
	}
}
