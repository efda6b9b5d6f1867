package interop

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedGrid(t *testing.T) {
	const n = 64
	points := SeedGrid(n)
	require.Len(t, points, n*n)

	for _, tt := range []struct{ i, j int }{{0, 0}, {0, 63}, {63, 0}, {31, 17}, {63, 63}} {
		p := points[tt.i*n+tt.j]
		assert.Equal(t, float32(tt.i)/n-0.5, p[0])
		assert.Equal(t, float32(0), p[1])
		assert.Equal(t, float32(tt.j)/n-0.5, p[2])
		assert.Equal(t, float32(1), p[3])
	}

	assert.Equal(t, Point{-0.5, 0, -0.5, 1}, points[0])
	assert.Equal(t, Point{-0.5, 0, 0.484375, 1}, points[n-1])
}

func TestSeedGridNonPositive(t *testing.T) {
	assert.Nil(t, SeedGrid(0))
	assert.Nil(t, SeedGrid(-3))
}

func TestBufferSize(t *testing.T) {
	assert.Equal(t, uint64(65536), BufferSize(64))
	assert.Equal(t, uint64(len(PointsBytes(SeedGrid(64)))), BufferSize(64))
}

func TestPointsBytes(t *testing.T) {
	b := PointsBytes([]Point{{1, 2, 3, 4}, {-1, 0, 0.5, 1}})
	require.Len(t, b, 2*PointSize)

	want := []float32{1, 2, 3, 4, -1, 0, 0.5, 1}
	for i, v := range want {
		assert.Equal(t, math.Float32bits(v), binary.LittleEndian.Uint32(b[i*4:]), "float %d", i)
	}
}
