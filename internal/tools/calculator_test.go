package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatorExecute(t *testing.T) {
	calc := NewCalculator()
	ctx := context.Background()

	tests := []struct {
		expr string
		want string
	}{
		{"2 + 3 * 4", "14"},
		{"(2 + 3) * 4", "20"},
		{"10 / 4", "2.5"},
		{"-3 + 5", "2"},
		{"2 * -3", "-6"},
		{"1.5 + 1.5", "3"},
		{"((1))", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			res, err := calc.Execute(ctx, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Content)
		})
	}
}

func TestCalculatorErrors(t *testing.T) {
	calc := NewCalculator()
	ctx := context.Background()

	for _, expr := range []string{"", "1 / 0", "2 +", "(1 + 2", "abc", "1 + x"} {
		t.Run(expr, func(t *testing.T) {
			_, err := calc.Execute(ctx, expr)
			assert.Error(t, err)
		})
	}
}

func TestCalculatorHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCalculator().Execute(ctx, "1+1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractExpression(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"what is 2 + 3 * 4", "2 + 3 * 4"},
		{"calculate (10 - 4) / 2 please", "(10 - 4) / 2"},
		{"no math here", ""},
		{"the year 1999", "1999"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractExpression(tt.text))
		})
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "14", formatNumber(14))
	assert.Equal(t, "2.5", formatNumber(2.5))
	assert.Equal(t, "-6", formatNumber(-6))
}
