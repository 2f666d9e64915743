package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		text    string
		value   string
		wantErr bool
	}{
		{name: "empty is zero", in: "", text: "0", value: "0"},
		{name: "blank is zero", in: "   ", text: "0", value: "0"},
		{name: "integer", in: "10000", text: "10000", value: "10000"},
		{name: "decimal point", in: "1234.50", text: "1234.50", value: "1234.5"},
		{name: "decimal comma", in: "99,90", text: "99,90", value: "99.9"},
		{name: "negative", in: "-1", wantErr: true},
		{name: "garbage", in: "dez", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAmount(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.text, a.Text)
			assert.True(t, decimal.RequireFromString(tt.value).Equal(a.Value), "got %s", a.Value)
		})
	}
}

func TestAmountFromValue(t *testing.T) {
	assert.Equal(t, "12000", AmountFromValue("12000").Text)
	assert.True(t, AmountFromValue(float64(500)).Value.Equal(decimal.NewFromInt(500)))
	assert.True(t, AmountFromValue(int64(7)).Value.Equal(decimal.NewFromInt(7)))
	assert.True(t, AmountFromValue(nil).Value.IsZero())
	assert.True(t, AmountFromValue("abc").Value.IsZero())
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 1.234,50", FormatBRL(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "R$ 0,00", FormatBRL(decimal.Zero))
	assert.Equal(t, "R$ 12.000,00", FormatBRL(decimal.NewFromInt(12000)))
	assert.Equal(t, "R$ 0,05", FormatBRL(decimal.RequireFromString("0.049")))

	t.Run("large amounts keep every cent", func(t *testing.T) {
		assert.Equal(t, "R$ 12.345.678.901.234.567,89", FormatBRL(decimal.RequireFromString("12345678901234567.89")))
		assert.Equal(t, "R$ 123.456.789.012.345.678.901,05", FormatBRL(decimal.RequireFromString("123456789012345678901.05")))
	})
}

func TestSum(t *testing.T) {
	a, _ := ParseAmount("2000")
	b, _ := ParseAmount("500")
	assert.True(t, Sum(a, b).Equal(decimal.NewFromInt(2500)))
}
