package identity

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeIMEI(t *testing.T) {
	cfg := IMEIConfig{BodyID: "35", Mark: 1234, FAC: "56"}

	imei, err := ComposeIMEI(cfg, 7)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[0-9]{2}-[0-9]{6}-[0-9]{6}-[0-9]$`), imei)
	assert.Equal(t, "35-123456-000007-", imei[:len(imei)-1])
	assert.True(t, LuhnValid(imei))
	assert.Len(t, StripIMEI(imei), 15)

	again, err := ComposeIMEI(cfg, 7)
	require.NoError(t, err)
	assert.Equal(t, imei, again)
}

func TestComposeIMEIPadsMarkAndDefaultsFAC(t *testing.T) {
	imei, err := ComposeIMEI(IMEIConfig{BodyID: "35", Mark: 42}, 123)
	require.NoError(t, err)
	assert.Equal(t, "35-004200-000123-", imei[:len(imei)-1])
}

func TestComposeIMEIValidation(t *testing.T) {
	_, err := ComposeIMEI(IMEIConfig{BodyID: "3", Mark: 1}, 1)
	assert.ErrorIs(t, err, ErrInvalidBodyID)

	_, err = ComposeIMEI(IMEIConfig{BodyID: "35", Mark: 10000}, 1)
	assert.ErrorIs(t, err, ErrInvalidMark)

	_, err = ComposeIMEI(IMEIConfig{BodyID: "35", Mark: 1, FAC: "5a"}, 1)
	assert.ErrorIs(t, err, ErrInvalidFAC)

	_, err = ComposeIMEI(IMEIConfig{BodyID: "35", Mark: 1}, 1_000_000)
	assert.ErrorIs(t, err, ErrSerialRange)
}

func TestComposeSerialDisplay(t *testing.T) {
	assert.Equal(t, "P-0012", ComposeSerialDisplay("P-{serial:4}", 12))
	assert.Equal(t, "12", ComposeSerialDisplay("", 12))
	assert.Equal(t, "SN12/12", ComposeSerialDisplay("SN{serial}/{serial}", 12))
	assert.Equal(t, "X-123456", ComposeSerialDisplay("X-{serial:3}", 123456))
}

func TestValidateMask(t *testing.T) {
	assert.NoError(t, ValidateMask("P-{serial:4}"))
	assert.NoError(t, ValidateMask("{serial}"))
	assert.ErrorIs(t, ValidateMask("P-0000"), ErrInvalidMask)
	assert.ErrorIs(t, ValidateMask("{serial:x}"), ErrInvalidMask)
}

func TestMacRangeAddress(t *testing.T) {
	r := MacRange{OUI: "001b77", Start: "000010", End: "0000ff", Quantity: 2}
	require.NoError(t, r.Validate())

	addr, err := r.Address(1)
	require.NoError(t, err)
	assert.Equal(t, "00-1B-77-00-00-11", addr)

	again, err := r.Address(1)
	require.NoError(t, err)
	assert.Equal(t, addr, again)

	addr, err = r.Address(0x20)
	require.NoError(t, err)
	assert.Equal(t, "00-1B-77-00-00-30", addr)
}

func TestMacRangeOverflow(t *testing.T) {
	r := MacRange{OUI: "001b77", Start: "fffffe", End: "ffffff", Quantity: 1}
	_, err := r.Address(2)
	assert.ErrorIs(t, err, ErrMacOverflow)

	exhausted, err := r.Exhausted(2)
	require.NoError(t, err)
	assert.True(t, exhausted)
}

func TestMacRangeExhausted(t *testing.T) {
	r := MacRange{OUI: "001b77", Start: "000010", End: "000014", Quantity: 1}

	exhausted, err := r.Exhausted(3)
	require.NoError(t, err)
	assert.False(t, exhausted)

	exhausted, err = r.Exhausted(4)
	require.NoError(t, err)
	assert.True(t, exhausted)

	zero := MacRange{OUI: "001b77", Start: "000010", End: "000010", Quantity: 1}
	exhausted, err = zero.Exhausted(1)
	require.NoError(t, err)
	assert.True(t, exhausted)
}

func TestMacRangeValidate(t *testing.T) {
	assert.ErrorIs(t, MacRange{OUI: "zz0000", Start: "000000", End: "000001"}.Validate(), ErrInvalidOUI)
	assert.ErrorIs(t, MacRange{OUI: "001b77", Start: "00000", End: "000001"}.Validate(), ErrInvalidMacStart)
	assert.ErrorIs(t, MacRange{OUI: "001b77", Start: "000000", End: "0000011"}.Validate(), ErrInvalidMacEnd)
	assert.ErrorIs(t, MacRange{OUI: "001b77", Start: "000002", End: "000001"}.Validate(), ErrInvalidMacRange)
	assert.ErrorIs(t, MacRange{OUI: "001b77", Start: "000000", End: "000001", Quantity: -1}.Validate(), ErrInvalidQuantity)
}

func TestMacRangeContains(t *testing.T) {
	r := MacRange{OUI: "001b77", Start: "000010", End: "000014", Quantity: 2}

	in, err := r.Contains(4)
	require.NoError(t, err)
	assert.True(t, in)

	in, err = r.Contains(5)
	require.NoError(t, err)
	assert.False(t, in)

	top := MacRange{OUI: "001b77", Start: "FFFFFE", End: "FFFFFF", Quantity: 1}
	in, err = top.Contains(2)
	require.NoError(t, err)
	assert.False(t, in)
}
