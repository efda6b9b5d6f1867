// Package common holds the small amount of matrix algebra shared by the camera and the graphics pipeline.
// All matrices are 4x4, float32, column-major (WebGPU convention).
package common

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
)

// Identity resets a 4x4 matrix (flat slice) to the identity matrix.
//
// Parameters:
//   - m: destination slice (must be at least 16 elements)
func Identity(m []float32) {
	for i := range m {
		m[i] = 0
	}
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
}

// IdentityMatrix returns a new identity matrix.
func IdentityMatrix() [16]float32 {
	var m [16]float32
	Identity(m[:])
	return m
}

// Mul4 multiplies two 4x4 matrices and stores the result in out.
// Result: out = a * b. out may alias a or b.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - a: left-hand matrix (16 elements)
//   - b: right-hand matrix (16 elements)
func Mul4(out, a, b []float32) {
	var buf [16]float32
	for i := 0; i < 4; i++ { // column of B
		for j := 0; j < 4; j++ { // row of A
			sum := float32(0)
			for k := 0; k < 4; k++ {
				sum += a[k*4+j] * b[i*4+k]
			}
			buf[i*4+j] = sum
		}
	}
	copy(out, buf[:])
}

// Radians converts degrees to radians.
func Radians(deg float32) float32 {
	return deg * (math32.Pi / 180)
}

// Perspective creates a perspective projection matrix mapping depth into the WebGPU clip range [0, 1].
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
func Perspective(out []float32, fovY, aspect, near, far float32) {
	f := 1.0 / math32.Tan(fovY/2.0)
	Identity(out)

	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	out[15] = 0.0
}

// LookAt creates a view matrix that positions and orients the camera.
// The resulting matrix transforms world coordinates to view/camera space.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - eye: camera position in world space
//   - center: target point the camera looks at
//   - up: up vector defining camera orientation (typically 0,1,0)
func LookAt(out []float32, eye, center, up [3]float32) {
	z := normalize([3]float32{eye[0] - center[0], eye[1] - center[1], eye[2] - center[2]})
	x := normalize(cross(up, z))
	y := cross(z, x)

	out[0], out[4], out[8], out[12] = x[0], x[1], x[2], -dot(x, eye)
	out[1], out[5], out[9], out[13] = y[0], y[1], y[2], -dot(y, eye)
	out[2], out[6], out[10], out[14] = z[0], z[1], z[2], -dot(z, eye)
	out[3], out[7], out[11], out[15] = 0, 0, 0, 1
}

// Rotation writes the matrix rotating by angle radians about axis (right-handed).
// A zero axis produces the identity.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - angle: rotation angle in radians
//   - axis: rotation axis, need not be normalized
func Rotation(out []float32, angle float32, axis [3]float32) {
	Identity(out)
	if axis == [3]float32{} {
		return
	}
	a := normalize(axis)
	s, c := math32.Sincos(angle)
	t := 1 - c

	out[0] = t*a[0]*a[0] + c
	out[1] = t*a[0]*a[1] + s*a[2]
	out[2] = t*a[0]*a[2] - s*a[1]

	out[4] = t*a[0]*a[1] - s*a[2]
	out[5] = t*a[1]*a[1] + c
	out[6] = t*a[1]*a[2] + s*a[0]

	out[8] = t*a[0]*a[2] + s*a[1]
	out[9] = t*a[1]*a[2] - s*a[0]
	out[10] = t*a[2]*a[2] + c
}

// Rotate post-multiplies m by a rotation of angle radians about axis, in place: m = m * R.
//
// Parameters:
//   - m: the matrix to rotate (16 elements)
//   - angle: rotation angle in radians
//   - axis: rotation axis
func Rotate(m []float32, angle float32, axis [3]float32) {
	var r [16]float32
	Rotation(r[:], angle, axis)
	Mul4(m, m, r[:])
}

// AppendFloat32s appends the little-endian encoding of vs to dst, the layout WGSL expects for f32 data.
func AppendFloat32s(dst []byte, vs ...float32) []byte {
	for _, v := range vs {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// RoundUp16 rounds n up to the next multiple of 16, the granularity of uniform buffer sizes.
func RoundUp16(n uint64) uint64 {
	return (n + 15) &^ 15
}

func cross(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func normalize(v [3]float32) [3]float32 {
	l := math32.Sqrt(dot(v, v))
	if l == 0 {
		return v
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}
