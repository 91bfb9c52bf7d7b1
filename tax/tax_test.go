package tax

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_ExclusiveOf(t *testing.T) {
	req := require.New(t)
	cases := []struct {
		in   float64
		want int64
	}{
		{35200, 32000},
		{8800, 8000},
		{11000, 10000},
		{0, 0},
		{1.1, 1},
		{10, 9},
	}
	for _, c := range cases {
		got, err := ExclusiveOf(c.in)
		req.NoError(err)
		req.Equal(c.want, got, "ExclusiveOf(%v)", c.in)
	}
}

func Test_ExclusiveOf_Negative(t *testing.T) {
	_, err := ExclusiveOf(-100)
	require.ErrorIs(t, err, ErrNegativePrice)
}

func Test_ExclusiveOf_Out_Of_Range(t *testing.T) {
	req := require.New(t)
	for _, in := range []float64{1e20, math.Inf(1), math.MaxInt64} {
		_, err := ExclusiveOf(in)
		req.ErrorIs(err, ErrPriceOutOfRange, "ExclusiveOf(%v)", in)
	}

	_, err := ExclusiveOf(math.NaN())
	req.ErrorIs(err, ErrNegativePrice)
}

func Test_Yen(t *testing.T) {
	req := require.New(t)

	got, err := Yen(4000)
	req.NoError(err)
	req.Equal(int64(4000), got)

	got, err = Yen(2.5)
	req.NoError(err)
	req.Equal(int64(2), got)

	_, err = Yen(-1)
	req.ErrorIs(err, ErrNegativePrice)

	_, err = Yen(1e19)
	req.ErrorIs(err, ErrPriceOutOfRange)
}

func Test_Subtotals(t *testing.T) {
	req := require.New(t)
	req.Equal(int64(35200), InclusiveSubtotal(1, 32000))
	req.Equal(int64(3200), Consumption(1, 32000))
	req.Equal(int64(1600), Consumption(2, 8000))
}
