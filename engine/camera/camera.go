package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-surface/common"
)

type cameraImpl struct {
	mu *sync.Mutex

	eye    [3]float32
	center [3]float32
	up     [3]float32

	fovDeg float32
	aspect float32
	near   float32
	far    float32

	viewMatrix       [16]float32
	projectionMatrix [16]float32
}

// Camera holds a look-at view matrix and a perspective projection. The view is reset by LookAt and
// accumulates rotations from Rotate; the projection is recomputed whenever a perspective parameter changes.
type Camera interface {
	// Eye returns the eye position of the last LookAt.
	Eye() [3]float32

	// Center returns the point the camera looked at in the last LookAt.
	Center() [3]float32

	// Up returns the up vector of the last LookAt.
	Up() [3]float32

	// Fov returns the vertical field of view in degrees.
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	Near() float32
	Far() float32

	// LookAt resets the view matrix, discarding accumulated rotations.
	//
	// Parameters:
	//   - eye: the camera position
	//   - center: the point looked at
	//   - up: the up direction
	LookAt(eye, center, up [3]float32)

	// Rotate post-multiplies the view matrix by a rotation, so the world turns about axis in model space.
	//
	// Parameters:
	//   - angleDeg: the rotation angle in degrees
	//   - axis: the rotation axis, need not be normalized
	Rotate(angleDeg float32, axis [3]float32)

	// Resize sets the aspect ratio from a framebuffer size and recomputes the projection. A zero
	// width leaves the projection unchanged and a zero height is treated as 1.
	//
	// Parameters:
	//   - width, height: the framebuffer size in pixels
	Resize(width, height int)

	// SetFov sets the vertical field of view in degrees and recomputes the projection.
	SetFov(fovDeg float32)

	// SetNear sets the near clipping plane distance and recomputes the projection.
	SetNear(near float32)

	// SetFar sets the far clipping plane distance and recomputes the projection.
	SetFar(far float32)

	// ViewMatrix returns the current 4x4 view matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the view matrix
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the current 4x4 projection matrix as 16 floats (column-major),
	// mapping depth onto [0, 1].
	//
	// Returns:
	//   - [16]float32: the projection matrix
	ProjectionMatrix() [16]float32
}

var _ Camera = &cameraImpl{}

// NewCamera creates a Camera looking from (1, 1, 1) at the origin with a 45 degree field of view,
// near 0.1, far 30 and a square aspect.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		eye:    [3]float32{1, 1, 1},
		center: [3]float32{0, 0, 0},
		up:     [3]float32{0, 1, 0},
		fovDeg: 45,
		aspect: 1,
		near:   0.1,
		far:    30,
	}
	for _, option := range options {
		option(c)
	}
	common.LookAt(c.viewMatrix[:], c.eye, c.center, c.up)
	c.updateProjection()
	return c
}

func (c *cameraImpl) Eye() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eye
}

func (c *cameraImpl) Center() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.center
}

func (c *cameraImpl) Up() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fovDeg
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) LookAt(eye, center, up [3]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eye, c.center, c.up = eye, center, up
	common.LookAt(c.viewMatrix[:], eye, center, up)
}

func (c *cameraImpl) Rotate(angleDeg float32, axis [3]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	common.Rotate(c.viewMatrix[:], common.Radians(angleDeg), axis)
}

func (c *cameraImpl) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// a minimized window reports zero width; keep the last projection
	if width <= 0 {
		return
	}
	if height <= 0 {
		height = 1
	}
	c.aspect = float32(width) / float32(height)
	c.updateProjection()
}

func (c *cameraImpl) SetFov(fovDeg float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fovDeg = fovDeg
	c.updateProjection()
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.updateProjection()
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
	c.updateProjection()
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

// updateProjection recalculates the projection matrix. Caller must hold the mutex.
func (c *cameraImpl) updateProjection() {
	common.Perspective(c.projectionMatrix[:], common.Radians(c.fovDeg), c.aspect, c.near, c.far)
}
