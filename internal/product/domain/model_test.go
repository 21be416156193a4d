package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductOptionalSections(t *testing.T) {
	p := Product{Name: "cable", Mark: 1}
	_, ok := p.Identity()
	assert.False(t, ok)
	_, ok = p.MacConfig()
	assert.False(t, ok)

	imei, ok, err := p.IMEI(7)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, imei)
	assert.Equal(t, "7", p.SerialDisplay(7))
}

func TestProductIMEI(t *testing.T) {
	p := Product{BodyID: "35", Mark: 1234, FAC: "56", SerialMask: "P-{serial:4}"}

	imei, ok, err := p.IMEI(7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Regexp(t, `^35-123456-000007-[0-9]$`, imei)
	assert.Equal(t, "P-0007", p.SerialDisplay(7))
}

func TestProductMacConfig(t *testing.T) {
	p := Product{OUI: "001B77", MacStart: "000010", MacEnd: "0000FF", MacQuantity: 0}

	r, ok := p.MacConfig()
	assert.True(t, ok)
	assert.False(t, r.Enabled())
}
