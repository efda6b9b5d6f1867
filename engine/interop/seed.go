package interop

import "github.com/Carmen-Shannon/oxy-surface/common"

// Point is one homogeneous grid position.
type Point [4]float32

// PointSize is the byte size of one Point in a buffer.
const PointSize = 16

// SeedGrid lays out an n×n grid of points on the y=0 plane centered on the origin. Point (i, j) is
// stored at row-major index i*n+j with x = i/n - 0.5, z = j/n - 0.5 and w = 1.
//
// Parameters:
//   - n: the grid side
//
// Returns:
//   - []Point: n*n points, or nil if n is not positive
func SeedGrid(n int) []Point {
	if n <= 0 {
		return nil
	}
	points := make([]Point, n*n)
	side := float32(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			points[i*n+j] = Point{float32(i)/side - 0.5, 0, float32(j)/side - 0.5, 1}
		}
	}
	return points
}

// BufferSize returns the byte size of a buffer holding an n×n grid.
func BufferSize(n int) uint64 {
	return uint64(n) * uint64(n) * PointSize
}

// PointsBytes encodes points as consecutive little-endian float32 quadruples.
func PointsBytes(points []Point) []byte {
	out := make([]byte, 0, len(points)*PointSize)
	for _, p := range points {
		out = common.AppendFloat32s(out, p[:]...)
	}
	return out
}
