package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"case", "Jane DOE", "jane doe"},
		{"whitespace", "  Jane \t  Doe \n", "jane doe"},
		{"fullwidth", "Ｊａｎｅ", "jane"},
		{"nbsp", "Jane Doe", "jane doe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.in))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.com "))
	assert.Equal(t, "a@x.com", NormalizeEmail("a @x.com"))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestMergeEmails(t *testing.T) {
	t.Run("union keeps first spelling", func(t *testing.T) {
		got := MergeEmails([]string{"A@X.com"}, "a@x.com", "b@x.com")
		assert.Equal(t, []string{"A@X.com", "b@x.com"}, got)
	})

	t.Run("drops blanks", func(t *testing.T) {
		got := MergeEmails(nil, "", "  ", "c@x.com")
		assert.Equal(t, []string{"c@x.com"}, got)
	})

	t.Run("never shrinks", func(t *testing.T) {
		existing := []string{"a@x.com", "b@x.com"}
		got := MergeEmails(existing)
		assert.Equal(t, existing, got)
	})

	t.Run("dedups existing", func(t *testing.T) {
		got := MergeEmails([]string{"a@x.com", " A@x.com"})
		assert.Equal(t, []string{"a@x.com"}, got)
	})
}

func TestEmailKeys(t *testing.T) {
	assert.Equal(t, []string{"a@x.com", "b@y.org"}, EmailKeys([]string{"A@X.com", "", " b@Y.org"}))
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in, first, last string
	}{
		{"", "", ""},
		{"Cher", "Cher", ""},
		{"Jane Doe", "Jane", "Doe"},
		{"  Mary   Ann  van Buren ", "Mary", "Ann van Buren"},
	}
	for _, tt := range tests {
		first, last := SplitName(tt.in)
		assert.Equal(t, tt.first, first, tt.in)
		assert.Equal(t, tt.last, last, tt.in)
	}
}

func TestJoinName(t *testing.T) {
	assert.Equal(t, "Jane Doe", JoinName(" Jane", "Doe "))
	assert.Equal(t, "Jane", JoinName("Jane", ""))
	assert.Equal(t, "", JoinName("", ""))
}
