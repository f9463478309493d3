package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDither_RangeAndDeterminism(t *testing.T) {
	first := make([]float32, 0, 64*64)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := Dither(float32(x)+0.5, float32(y)+0.5)
			require.GreaterOrEqual(t, v, float32(0))
			require.Less(t, v, float32(1))
			first = append(first, v)
		}
	}

	i := 0
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			assert.Equal(t, first[i], Dither(float32(x)+0.5, float32(y)+0.5))
			i++
		}
	}
}

func TestDither_VariesAcrossPixels(t *testing.T) {
	distinct := map[float32]bool{}
	for x := 0; x < 32; x++ {
		distinct[Dither(float32(x), 7)] = true
	}
	assert.Greater(t, len(distinct), 16)
}

func TestDither_CustomConstants(t *testing.T) {
	d := DitherConstants{A: 1, B: 1, C: 1}
	// sin(0) * 1 = 0
	assert.Equal(t, float32(0), d.At(0, 0))
}
