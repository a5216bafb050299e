package chain

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int32
		want     string
	}{
		{"usdc whole", "100", 6, "100000000"},
		{"usdc fraction", "100.5", 6, "100500000"},
		{"truncates below precision", "1.0000019", 6, "1000001"},
		{"eighteen decimals", "1.5", 18, "1500000000000000000"},
		{"zero", "0", 6, "0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tc.amount)
			assert.Equal(t, tc.want, ToBaseUnits(amount, tc.decimals).String())
		})
	}
}

func TestFromBaseUnits(t *testing.T) {
	got := FromBaseUnits(big.NewInt(100500000), 6)
	assert.True(t, got.Equal(decimal.RequireFromString("100.5")))

	assert.True(t, FromBaseUnits(nil, 6).IsZero())
}

func TestBaseUnitsRoundTrip(t *testing.T) {
	amount := decimal.RequireFromString("1234.567891")
	back := FromBaseUnits(ToBaseUnits(amount, 6), 6)
	assert.True(t, amount.Equal(back))
}

func TestParseOfferID(t *testing.T) {
	n, err := ParseOfferID("12345")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), n.Int64())

	n, err = ParseOfferID("0xff")
	require.NoError(t, err)
	assert.Equal(t, int64(255), n.Int64())

	_, err = ParseOfferID("")
	assert.Error(t, err)

	_, err = ParseOfferID("not-a-number")
	assert.Error(t, err)
}
