package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParseCurrency(t *testing.T) {
	t.Run("normalises case and whitespace", func(t *testing.T) {
		c, err := ParseCurrency(" eur ")
		require.NoError(t, err)
		assert.Equal(t, EUR, c)
	})

	t.Run("rejects empty code", func(t *testing.T) {
		_, err := ParseCurrency("")
		assert.Error(t, err)
	})

	t.Run("rejects unknown code", func(t *testing.T) {
		_, err := ParseCurrency("XYZQ")
		assert.Error(t, err)
	})

	t.Run("rejects non-monetary codes", func(t *testing.T) {
		for _, code := range []string{"XXX", "xts", "XAU", "XAG", "XPT", "XPD"} {
			_, err := ParseCurrency(code)
			assert.Error(t, err, "code %s", code)
		}
	})
}

func TestNewMoney(t *testing.T) {
	m, err := NewMoney(d("100.50"), USD)
	require.NoError(t, err)
	assert.Equal(t, USD, m.Currency())
	assert.True(t, m.Amount().Equal(d("100.5")))

	_, err = NewMoney(d("1"), "")
	assert.Error(t, err)
}

func TestMoney_Min(t *testing.T) {
	a := MustMoney(d("10.25"), USD)
	b := MustMoney(d("4.75"), USD)

	m, err := a.Min(b)
	require.NoError(t, err)
	assert.True(t, m.Amount().Equal(d("4.75")))

	m, err = b.Min(a)
	require.NoError(t, err)
	assert.True(t, m.Amount().Equal(d("4.75")))

	_, err = a.Min(MustMoney(d("1"), EUR))
	assert.Error(t, err)
}

func TestMoney_ToleranceComparisons(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		cmp  int
	}{
		{"exact", "215", "215", 0},
		{"one cent above", "215.01", "215", 0},
		{"one cent below", "214.99", "215", 0},
		{"beyond tolerance above", "215.02", "215", 1},
		{"beyond tolerance below", "214.98", "215", -1},
		{"far apart", "216", "215", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := MustMoney(d(tt.a), USD)
			b := MustMoney(d(tt.b), USD)
			got, err := a.Compare(b)
			require.NoError(t, err)
			assert.Equal(t, tt.cmp, got)
		})
	}

	_, err := MustMoney(d("1"), USD).Compare(MustMoney(d("1"), GBP))
	assert.Error(t, err)
}

func TestMaxZero(t *testing.T) {
	assert.True(t, MaxZero(d("-3")).IsZero())
	assert.True(t, MaxZero(d("3")).Equal(d("3")))
}
