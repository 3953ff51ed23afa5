package renderer

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// Camera is the runtime view of a scene camera. It is shared between the
// input handling and the render pass, so every accessor takes the lock. The
// render pass holds the read lock only while extracting matrices, never
// across a GPU submission.
type Camera struct {
	mu sync.RWMutex

	eye    mgl32.Vec3
	lookAt mgl32.Vec3
	up     mgl32.Vec3

	fovY  float32 // radians
	zNear float32
	zFar  float32

	focalLength  float32
	apertureSize float32

	view mgl32.Mat4
	proj mgl32.Mat4
}

// NewCamera builds the runtime camera from its scene description for the
// given image size. Field of view converts from degrees here, once.
func NewCamera(c *scene.PerspectiveCamera, imageWidth, imageHeight uint32) *Camera {
	cam := &Camera{
		eye:          mgl32.Vec3(c.Eye),
		lookAt:       mgl32.Vec3(c.LookAt),
		up:           mgl32.Vec3(c.Up),
		fovY:         mgl32.DegToRad(c.FovY),
		zNear:        c.ZNear,
		zFar:         c.ZFar,
		focalLength:  c.FocalLength,
		apertureSize: c.ApertureSize,
	}
	cam.updateMatrices(imageWidth, imageHeight)
	return cam
}

func (c *Camera) updateMatrices(imageWidth, imageHeight uint32) {
	aspect := float32(imageWidth) / float32(imageHeight)
	c.proj = mgl32.Perspective(c.fovY, aspect, c.zNear, c.zFar)
	c.view = mgl32.LookAtV(c.eye, c.lookAt, c.up)
}

// UpdateImageSize recomputes the projection for a new drawable size.
func (c *Camera) UpdateImageSize(imageWidth, imageHeight uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateMatrices(imageWidth, imageHeight)
}

// ShaderData snapshots the camera into the per-batch uniform block.
func (c *Camera) ShaderData() shaders.Camera {
	c.mu.RLock()
	defer c.mu.RUnlock()

	viewProj := c.proj.Mul4(c.view)
	return shaders.Camera{
		ViewProj:     [16]float32(viewProj),
		ViewInverse:  [16]float32(c.view.Inv()),
		ProjInverse:  [16]float32(c.proj.Inv()),
		FocalLength:  c.focalLength,
		ApertureSize: c.apertureSize,
	}
}
