package units

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals uint8
		expected string
	}{
		{"1.5", 18, "1500000000000000000"},
		{"10", 6, "10000000"},
		{"0.000001", 6, "1"},
		{"123456789.123456789123456789", 18, "123456789123456789123456789"},
		{"0", 18, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			d, err := ParseAmount(tt.amount)
			require.NoError(t, err)
			result, err := ToBaseUnits(d, tt.decimals)
			require.NoError(t, err)
			require.Equal(t, tt.expected, result.String())
		})
	}
}

func TestToBaseUnits_TooPrecise(t *testing.T) {
	d := decimal.RequireFromString("0.0000001")
	_, err := ToBaseUnits(d, 6)
	require.Error(t, err)
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{"", "  ", "abc", "1.2.3"} {
		_, err := ParseAmount(in)
		require.Error(t, err, "input %q", in)
	}
}

func TestFromBaseUnits(t *testing.T) {
	v, _ := new(big.Int).SetString("1500000000000000000", 10)
	require.Equal(t, "1.5", FromBaseUnits(v, 18))
	require.Equal(t, "10", FromBaseUnits(big.NewInt(10000000), 6))
	require.Equal(t, "0.000001", FromBaseUnits(big.NewInt(1), 6))
	require.Equal(t, "0", FromBaseUnits(nil, 6))
}
