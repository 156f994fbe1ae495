package handler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeShout(t *testing.T) {
	// Combining acute accent folds into the precomposed form.
	assert.Equal(t, "café", normalizeShout("café"))

	// Control characters, newlines and tabs included, are stripped.
	assert.Equal(t, "ab", normalizeShout("a\x00b"))
	assert.Equal(t, "onetwo", normalizeShout("one\ntwo\r"))
	assert.Equal(t, "onetwo", normalizeShout("one\ttwo"))

	// Interior spaces survive; edges are trimmed.
	assert.Equal(t, "hello world", normalizeShout("  hello world  "))
	assert.Equal(t, "", normalizeShout("   \n\t  "))
}

func TestCapRunes(t *testing.T) {
	assert.Equal(t, "abc", capRunes("abc", 5))
	assert.Equal(t, "abc", capRunes("abcdef", 3))
	assert.Equal(t, "", capRunes("abc", 0))

	// Multibyte runes are never split.
	assert.Equal(t, "日本", capRunes("日本語", 2))
	long := strings.Repeat("é", 600)
	capped := capRunes(long, 500)
	assert.Equal(t, 500, len([]rune(capped)))
}
