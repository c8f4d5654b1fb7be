package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPseudonym(t *testing.T) {
	a := Pseudonym("Maria@Example.com")
	b := Pseudonym("  maria@example.com ")

	assert.Len(t, a, 12)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Pseudonym("joao@example.com"))
	assert.Empty(t, Pseudonym("   "))
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{in: "maria@example.com", expected: "m***@example.com"},
		{in: "é@example.com", expected: "é***@example.com"},
		{in: "@example.com", expected: "***"},
		{in: "not-an-email", expected: "***"},
		{in: "", expected: "***"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskEmail(tt.in))
		})
	}
}
