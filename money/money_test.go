package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentRoundsHalfUp(t *testing.T) {
	base := MustParse("0.05")
	assert.Equal(t, "0.03", base.Percent(decimal.NewFromInt(50)).String())

	assert.Equal(t, "200.00", FromInt(1000).Percent(decimal.NewFromInt(20)).String())
	assert.Equal(t, "33.33", FromInt(100).Percent(decimal.RequireFromString("33.333")).String())
}

func TestSumDoesNotDrift(t *testing.T) {
	var parts []Money
	for i := 0; i < 10; i++ {
		parts = append(parts, MustParse("0.10"))
	}
	assert.True(t, Sum(parts...).Equal(FromInt(1)))
	assert.True(t, Sum().IsZero())
}

func TestSubClamped(t *testing.T) {
	assert.True(t, FromInt(100).SubClamped(FromInt(300)).IsZero())
	assert.Equal(t, "50.00", FromInt(100).SubClamped(FromInt(50)).String())
	assert.Equal(t, "-200.00", FromInt(100).Sub(FromInt(300)).String())
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(123456), MustParse("1234.56").MinorUnits())
	assert.True(t, FromMinor(1999).Equal(MustParse("19.99")))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("twelve")
	assert.Error(t, err)
}

func TestJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Amount: MustParse("12.5")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"12.50"}`, string(out))

	var in struct {
		Amount Money `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount": 99.999}`), &in))
	assert.Equal(t, "100.00", in.Amount.String())

	require.NoError(t, json.Unmarshal([]byte(`{"amount": "7.25"}`), &in))
	assert.Equal(t, "7.25", in.Amount.String())
}

func TestScanAndValue(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("450.10"))
	assert.Equal(t, "450.10", m.String())

	require.NoError(t, m.Scan(int64(3)))
	v, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, "3.00", v)
}

func TestMinMax(t *testing.T) {
	a, b := FromInt(1), FromInt(2)
	assert.True(t, Min(a, b).Equal(a))
	assert.True(t, Max(a, b).Equal(b))
}
