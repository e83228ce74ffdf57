package numeric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		in     float64
		places int32
		want   float64
	}{
		{0.123456789, 8, 0.12345678},
		{1.0, 2, 1.0},
		{0.29, 2, 0.29},
		{0.99999999999, 8, 0.99999999},
		{-1.23456789, 3, -1.234},
		{1e-9, 8, 0},
		{12345.6789, 0, 12345},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Truncate(c.in, c.places), "truncate(%v, %d)", c.in, c.places)
	}
}

func TestTruncateNeverRoundsUp(t *testing.T) {
	for _, v := range []float64{0.1, 0.7, 3.14159265358979, 99.999999999, 0.000000019} {
		assert.LessOrEqual(t, Truncate(v, 8), v)
	}
}
