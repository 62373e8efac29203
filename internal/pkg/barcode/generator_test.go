package barcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGenerateLength проверяет фиксированную длину идентификатора
func TestGenerateLength(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := Generate()
		require.Len(t, code, IdentifierLength)
	}
}

// TestGenerateCharset проверяет, что идентификатор состоит только из
// заглавных шестнадцатеричных символов
func TestGenerateCharset(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := Generate()
		for _, r := range code {
			valid := (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F')
			assert.True(t, valid, "unexpected character %q in barcode %s", r, code)
		}
	}
}

// TestGenerateUniqueness проверяет отсутствие коллизий на выборке
func TestGenerateUniqueness(t *testing.T) {
	const draws = 10000

	seen := make(map[string]struct{}, draws)
	for i := 0; i < draws; i++ {
		code := Generate()
		_, exists := seen[code]
		require.False(t, exists, "barcode collision on %s after %d draws", code, i)
		seen[code] = struct{}{}
	}
}
