package camera

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Carmen-Shannon/oxy-surface/common"
)

const eps = 1e-5

func TestNewCameraDefaults(t *testing.T) {
	c := NewCamera()

	assert.Equal(t, [3]float32{1, 1, 1}, c.Eye())
	assert.Equal(t, [3]float32{0, 0, 0}, c.Center())
	assert.Equal(t, [3]float32{0, 1, 0}, c.Up())
	assert.Equal(t, float32(45), c.Fov())
	assert.Equal(t, float32(0.1), c.Near())
	assert.Equal(t, float32(30), c.Far())
	assert.Equal(t, float32(1), c.Aspect())

	var want [16]float32
	common.LookAt(want[:], [3]float32{1, 1, 1}, [3]float32{}, [3]float32{0, 1, 0})
	assert.Equal(t, want, c.ViewMatrix())

	p := c.ProjectionMatrix()
	f := 1 / math.Tan(math.Pi/8)
	assert.InDelta(t, f, p[0], eps)
	assert.InDelta(t, f, p[5], eps)
}

func TestOptions(t *testing.T) {
	c := NewCamera(
		WithEye([3]float32{0, 0, 5}),
		WithCenter([3]float32{0, 0, 0}),
		WithUp([3]float32{0, 1, 0}),
		WithFov(90),
		WithAspect(2),
		WithNear(1),
		WithFar(10),
	)
	assert.Equal(t, [3]float32{0, 0, 5}, c.Eye())

	v := c.ViewMatrix()
	assert.InDelta(t, -5, v[14], eps)

	p := c.ProjectionMatrix()
	assert.InDelta(t, 0.5, p[0], eps)
	assert.InDelta(t, 1, p[5], eps)
}

func TestResize(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		want          float32
	}{
		{"square", 500, 500, 1},
		{"wide", 1000, 500, 2},
		{"zero height", 640, 0, 640},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCamera()
			c.Resize(tt.width, tt.height)
			assert.Equal(t, tt.want, c.Aspect())

			p := c.ProjectionMatrix()
			assert.InDelta(t, p[5]/tt.want, p[0], eps)
		})
	}
}

func TestResizeZeroWidthKeepsProjection(t *testing.T) {
	c := NewCamera()
	c.Resize(1000, 500)
	before := c.ProjectionMatrix()

	c.Resize(0, 500)
	assert.Equal(t, float32(2), c.Aspect())
	after := c.ProjectionMatrix()
	assert.Equal(t, before, after)
	for i, v := range after {
		assert.False(t, math.IsInf(float64(v), 0) || math.IsNaN(float64(v)), "element %d is %v", i, v)
	}

	c.Resize(0, 0)
	assert.Equal(t, float32(2), c.Aspect())
}

func TestRotateAccumulatesOnView(t *testing.T) {
	c := NewCamera()
	before := c.ViewMatrix()

	for range 100 {
		c.Rotate(0.01, [3]float32{0, 1, 0})
	}

	want := before
	common.Rotate(want[:], common.Radians(1), [3]float32{0, 1, 0})
	got := c.ViewMatrix()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4, "element %d", i)
	}

	// the eye stays on its orbit, so distance to the origin is preserved
	// the view-space z of the origin is the translation column
	assert.InDelta(t, -math.Sqrt(3), got[14], 1e-4)
}

func TestLookAtDiscardsRotation(t *testing.T) {
	c := NewCamera()
	fresh := c.ViewMatrix()

	c.Rotate(45, [3]float32{0, 1, 0})
	assert.NotEqual(t, fresh, c.ViewMatrix())

	c.LookAt([3]float32{1, 1, 1}, [3]float32{}, [3]float32{0, 1, 0})
	assert.Equal(t, fresh, c.ViewMatrix())
}

func TestSettersRecomputeProjection(t *testing.T) {
	c := NewCamera()
	before := c.ProjectionMatrix()

	c.SetFov(60)
	assert.NotEqual(t, before, c.ProjectionMatrix())

	c.SetFov(45)
	c.SetNear(0.5)
	c.SetFar(100)
	assert.Equal(t, float32(0.5), c.Near())
	assert.Equal(t, float32(100), c.Far())
	assert.Equal(t, before[0], c.ProjectionMatrix()[0])
}
