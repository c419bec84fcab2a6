package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNickname_TruncatesBase(t *testing.T) {
	got, err := FormatNickname("Alexandra Smith", "Alex", 32)
	require.NoError(t, err)
	assert.Equal(t, "Alexandra Sm | Alex", got)
}

func TestFormatNickname_ShortBaseKept(t *testing.T) {
	got, err := FormatNickname("Bo", "Robert", 32)
	require.NoError(t, err)
	assert.Equal(t, "Bo | Robert", got)
}

func TestFormatNickname_NameTooLong(t *testing.T) {
	name := strings.Repeat("x", 30)

	_, err := FormatNickname("anything", name, 32)
	require.ErrorIs(t, err, ErrNameTooLong)
}

func TestFormatNickname_ExactFit(t *testing.T) {
	name := strings.Repeat("n", 29) // 3 + 29 = 32

	got, err := FormatNickname("base", name, 32)
	require.NoError(t, err)
	assert.Equal(t, " | "+name, got)
}

func TestFormatNickname_EmptyBase(t *testing.T) {
	got, err := FormatNickname("", "Alex", 32)
	require.NoError(t, err)
	assert.Equal(t, " | Alex", got)
}

func TestFormatNickname_CountsRunes(t *testing.T) {
	got, err := FormatNickname("张三丰张三丰张三丰", "李四", 8)
	require.NoError(t, err)
	assert.Equal(t, "张三丰 | 李四", got)
	assert.Equal(t, 8, utf8.RuneCountInString(got))
}

func TestFormatNickname_Properties(t *testing.T) {
	bases := []string{"", "a", "Alexandra Smith", strings.Repeat("long base ", 10), "émilie"}
	names := []string{"A", "Alex", "Jean-Baptiste", strings.Repeat("z", 29)}

	for _, base := range bases {
		for _, name := range names {
			got, err := FormatNickname(base, name, 32)
			require.NoError(t, err, "base=%q name=%q", base, name)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), 32)
			assert.True(t, strings.HasSuffix(got, LabelSeparator+name), "got %q", got)
		}
	}

	for n := 30; n < 40; n++ {
		_, err := FormatNickname("base", strings.Repeat("q", n), 32)
		assert.ErrorIs(t, err, ErrNameTooLong, "len=%d", n)
	}
}

func TestBaseLabel(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"Alexandra", "Alexandra"},
		{"Alexandra Sm | Alex", "Alexandra Sm"},
		{"a | b | c", "a"},
		{" | Alex", ""},
		{"no|spaces", "no|spaces"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BaseLabel(tt.label), "label %q", tt.label)
	}
}

func TestBaseLabel_PreventsStacking(t *testing.T) {
	first, err := FormatNickname("Alexandra", "Alex", 32)
	require.NoError(t, err)

	second, err := FormatNickname(BaseLabel(first), "Alex", 32)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSuffixName(t *testing.T) {
	name, ok := SuffixName("Alexandra | Alex ")
	assert.True(t, ok)
	assert.Equal(t, "Alex", name)

	name, ok = SuffixName("a | b | c")
	assert.True(t, ok)
	assert.Equal(t, "b", name)

	_, ok = SuffixName("Alexandra")
	assert.False(t, ok)

	_, ok = SuffixName("Alexandra |  ")
	assert.False(t, ok)
}
