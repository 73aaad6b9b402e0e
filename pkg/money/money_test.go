package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     string
	}{
		{"two places half up", "2.245", "INR", "2.25"},
		{"two places down", "2.244", "INR", "2.24"},
		{"exact", "2.5", "USD", "2.5"},
		{"zero places", "10.5", "JPY", "11"},
		{"three places", "1.0005", "KWD", "1.001"},
		{"lowercase currency", "0.125", "inr", "0.13"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Round(MustParse(tt.amount), tt.currency)
			assert.True(t, got.Equal(MustParse(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestPercent(t *testing.T) {
	got := Percent(decimal.NewFromInt(100), MustParse("2.5"))
	assert.Equal(t, "2.5", got.String())
}

func TestValidPercentage(t *testing.T) {
	assert.True(t, ValidPercentage(decimal.Zero))
	assert.True(t, ValidPercentage(decimal.NewFromInt(100)))
	assert.False(t, ValidPercentage(MustParse("100.01")))
	assert.False(t, ValidPercentage(MustParse("-1")))
}

func TestParse(t *testing.T) {
	d, err := Parse("")
	assert.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = Parse("abc")
	assert.Error(t, err)
}
