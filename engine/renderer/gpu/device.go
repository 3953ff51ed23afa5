package gpu

import (
	"image"
)

// Buffer is a device-visible buffer created from host data.
type Buffer interface {
	// Name returns the debug label the buffer was created with.
	Name() string
	// Size returns the buffer size in bytes.
	Size() uint64
	Destroy()
}

// Texture is a sampled image uploaded from host pixels.
type Texture interface {
	Name() string
	Destroy()
}

// AccelerationStructure owns the top-level structure and every bottom-level
// structure referenced by it. The bottom levels must stay alive for as long
// as the top level is bound, so ownership is never split.
type AccelerationStructure interface {
	Destroy()
}

// MeshGeometry is the tessellated geometry of one mesh, already in the
// byte layout the acceleration structure build and the hit shaders consume.
type MeshGeometry struct {
	Vertices    []byte
	Indices     []byte
	VertexCount uint32
	IndexCount  uint32
}

// InstanceRecord places a mesh into the top-level structure with a
// row-major 3x4 object-to-world matrix.
type InstanceRecord struct {
	MeshIndex uint32
	Transform [3][4]float32
}

// SceneBindings collects every scene-lifetime resource bound once after
// compilation. Field names follow the descriptor set order.
type SceneBindings struct {
	Acceleration   AccelerationStructure
	MeshVertices   Buffer
	MeshIndices    Buffer
	MeshRecords    Buffer
	ImageTextures  []Texture
	ConstantColour Buffer
	Lambertian     Buffer
	Metal          Buffer
	Dielectric     Buffer
	DiffuseLight   Buffer
	Checker        Buffer
	Noise          Buffer
	Sky            Buffer
	LightAlias     Buffer
}

// BatchParams is everything a single trace-and-resolve pass needs. Camera is
// the marshalled per-batch uniform block, PushConstants the marshalled
// aggregate for both ray-tracing stages.
type BatchParams struct {
	Camera        []byte
	PushConstants []byte
}

// Device abstracts the GPU backend the render engine drives. The production
// implementation sits on Vulkan; tests substitute a recording fake.
//
// All methods must be called from the render thread. Resize and scene
// (re)binding wait for device idle internally, so callers never observe a
// binding change racing an in-flight batch.
type Device interface {
	// SurfaceSize returns the current drawable size in pixels.
	SurfaceSize() (uint32, uint32)

	CreateStorageBuffer(name string, data []byte) (Buffer, error)
	CreateUniformBuffer(name string, data []byte) (Buffer, error)
	CreateTexture(name string, img *image.RGBA) (Texture, error)

	// BuildAccelerationStructures builds one bottom-level structure per mesh
	// and a top-level structure over the instance records. The build is
	// synchronous; the returned handle is ready for binding.
	BuildAccelerationStructures(meshes []MeshGeometry, instances []InstanceRecord) (AccelerationStructure, error)

	// BindScene (re)creates the scene-lifetime descriptor sets. Previous
	// bindings are released.
	BindScene(b *SceneBindings) error

	// Resize recreates the swapchain and the accumulation image for the new
	// drawable size. Returns the actual size granted by the surface.
	Resize(width, height uint32) (uint32, uint32, error)

	// RenderBatch records and submits one trace pass over the full
	// resolution followed by a resolve pass into the presentation image,
	// then presents. Returns core.ErrSwapchainOutOfDate when the surface
	// needs to be rebuilt; that is the only recoverable failure.
	RenderBatch(p *BatchParams) error

	WaitIdle() error
	Destroy()
}
