package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want []string
	}{
		{"empty", "", 4, nil},
		{"shorter than size", "abc", 4, []string{"abc"}},
		{"exact multiple", "abcdefgh", 4, []string{"abcd", "efgh"}},
		{"remainder", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"multibyte runes", "ééééé", 2, []string{"éé", "éé", "é"}},
		{"default size", strings.Repeat("x", 501), 0, []string{strings.Repeat("x", 500), "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.text, tt.size))
		})
	}
}

func TestSplitReconstructs(t *testing.T) {
	text := strings.Repeat("Lorem ipsum dolor sit amet, ünïcödé. ", 97)
	chunks := Split(text, 500)

	assert.Equal(t, text, strings.Join(chunks, ""))
	for i, c := range chunks[:len(chunks)-1] {
		assert.Equal(t, 500, utf8.RuneCountInString(c), "chunk %d", i)
	}
	assert.LessOrEqual(t, utf8.RuneCountInString(chunks[len(chunks)-1]), 500)
}

func TestAllBlank(t *testing.T) {
	assert.True(t, AllBlank(nil))
	assert.True(t, AllBlank([]string{" ", "\n\t"}))
	assert.False(t, AllBlank([]string{" ", "a"}))
}
