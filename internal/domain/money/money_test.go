package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsNegative(t *testing.T) {
	_, err := New(-1)
	require.ErrorIs(t, err, ErrNegativeAmount)

	m, err := New(0)
	require.NoError(t, err)
	assert.True(t, m.IsZero())
}

func TestFromDecimal(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int64
		wantErr error
	}{
		{name: "whole", in: "1200", want: 1200},
		{name: "rounds half up", in: "4.5", want: 5},
		{name: "rounds down below half", in: "4.49", want: 4},
		{name: "negative", in: "-1", wantErr: ErrNegativeAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromDecimal(decimal.RequireFromString(tt.in))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestSub(t *testing.T) {
	got, err := MustNew(1000).Sub(MustNew(300))
	require.NoError(t, err)
	assert.Equal(t, int64(700), got.Int64())

	got, err = MustNew(300).Sub(MustNew(300))
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = MustNew(300).Sub(MustNew(301))
	require.ErrorIs(t, err, ErrInsufficientAmount)
}

func TestTimes(t *testing.T) {
	assert.Equal(t, int64(2000), MustNew(1000).Times(2).Int64())
	assert.True(t, MustNew(1000).Times(0).IsZero())
	assert.Panics(t, func() { MustNew(1).Times(-1) })
}

func TestSum(t *testing.T) {
	assert.True(t, Sum().Equal(Zero))
	assert.Equal(t, int64(60), Sum(MustNew(10), MustNew(20), MustNew(30)).Int64())
}

func TestOrdering(t *testing.T) {
	a, b := MustNew(10), MustNew(20)

	assert.Equal(t, -1, a.Cmp(b))
	assert.Equal(t, 1, b.Cmp(a))
	assert.True(t, a.LessThan(b))
	assert.True(t, a.Equal(MustNew(10)))
	assert.Equal(t, a, a.Min(b))
	assert.Equal(t, "10", a.String())
}
