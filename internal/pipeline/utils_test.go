package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkupText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain   text\n here", "plain text here"},
		{"CD8<sup>+</sup> T cells in <i>vivo</i>", "CD8+ T cells in vivo"},
		{"A &amp; B", "A & B"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, markupText(tt.in), tt.in)
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "Hello...", truncateString("Hello World", 8))
	assert.Equal(t, "short", truncateString("short", 80))
	assert.Equal(t, "免疫療...", truncateString("免疫療法の新展開", 6), "rune aware")
	assert.Equal(t, "ab", truncateString("abcdef", 2))
}

func TestUniqStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, uniqStrings([]string{"a", "", "b", "a"}))
	assert.Equal(t, []string{"a", "b"}, uniqStrings(trimAll([]string{" a", "b ", "a"})))
}
