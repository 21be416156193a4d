package identity

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLuhnCheckDigitKnownValue(t *testing.T) {
	digit, err := LuhnCheckDigit("7992739871")
	require.NoError(t, err)
	assert.Equal(t, 3, digit)
	assert.True(t, LuhnValid("79927398713"))
}

func TestLuhnCheckDigitIgnoresSeparators(t *testing.T) {
	plain, err := LuhnCheckDigit("35123456000007")
	require.NoError(t, err)
	dashed, err := LuhnCheckDigit("35-123456-000007")
	require.NoError(t, err)
	assert.Equal(t, plain, dashed)
}

func TestLuhnCheckDigitEmpty(t *testing.T) {
	_, err := LuhnCheckDigit("--")
	assert.ErrorIs(t, err, ErrEmptyDigits)
}

func TestLuhnAppendedDigitAlwaysValidates(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		n := rng.Intn(18) + 1
		digits := make([]byte, n)
		for j := range digits {
			digits[j] = byte('0' + rng.Intn(10))
		}
		check, err := LuhnCheckDigit(string(digits))
		require.NoError(t, err)
		full := string(digits) + strconv.Itoa(check)
		assert.True(t, LuhnValid(full), "sequence %s", full)
	}
}

func TestLuhnValidRejectsAlteredDigit(t *testing.T) {
	assert.False(t, LuhnValid("79927398710"))
	assert.False(t, LuhnValid("7"))
}
