package renderer

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
	"github.com/spaghettifunk/lumen/engine/scene"
)

func engineTestScene() *scene.Scene {
	return &scene.Scene{
		Cameras: []scene.Camera{
			{Perspective: &scene.PerspectiveCamera{
				Name: "main", Eye: [3]float32{0, 1, 3}, LookAt: [3]float32{0, 0, 0},
				Up: [3]float32{0, 1, 0}, FovY: 45, ZNear: 0.1, ZFar: 100,
				FocalLength: 3,
			}},
		},
		Textures: []scene.Texture{
			{Constant: &scene.ConstantTexture{Name: "grey", RGB: [3]float32{0.5, 0.5, 0.5}}},
			{Constant: &scene.ConstantTexture{Name: "bright", RGB: [3]float32{4, 4, 4}}},
		},
		Materials: []scene.Material{
			{Lambertian: &scene.LambertianMaterial{Name: "matte", Albedo: "grey"}},
			{DiffuseLight: &scene.DiffuseLightMaterial{Name: "lamp", Emit: "bright"}},
		},
		Primitives: []scene.Primitive{
			{UvSphere: &scene.UvSpherePrimitive{
				Name: "ball", Center: [3]float32{0, 0.5, 0}, Radius: 0.5,
				Rings: 4, Segments: 8, Material: "matte",
			}},
			{Quad: &scene.QuadPrimitive{
				Name:     "ceiling-light",
				Points:   [4][3]float32{{-1, 2, -1}, {1, 2, -1}, {1, 2, 1}, {-1, 2, 1}},
				Normal:   [3]float32{0, -1, 0},
				UV:       [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
				Material: "lamp",
			}},
		},
		Render: scene.RenderSettings{
			Camera:          "main",
			SamplesPerPixel: 4,
			SampleBatches:   3,
			MaxRayDepth:     5,
		},
	}
}

func TestEngineCompilesSceneResources(t *testing.T) {
	device := gputest.NewFakeDevice(320, 200)

	e, err := NewEngine(device, engineTestScene())
	require.NoError(t, err)
	defer e.Destroy()

	assert.Equal(t, StateReady, e.State())
	assert.Equal(t, 1, device.BindCount)
	require.NotNil(t, device.Acceleration)
	assert.Len(t, device.Acceleration.Meshes, 2)
	assert.Len(t, device.Acceleration.Instances, 2)

	for _, name := range []string{
		"mesh-vertices", "mesh-indices", "mesh-records", "constant-colours",
		"materials-lambertian", "materials-metal", "materials-dielectric",
		"materials-diffuse-light", "textures-checker", "textures-noise",
		"sky", "light-alias-table",
	} {
		assert.NotNil(t, device.BufferByName(name), "missing buffer %q", name)
	}

	// The quad light contributes two triangles to the alias table.
	assert.Equal(t, uint32(2), e.lights.triangleCount)
	assert.InDelta(t, 4.0, float64(e.lights.totalArea), 1e-4)
}

func TestEngineStateMachine(t *testing.T) {
	device := gputest.NewFakeDevice(320, 200)
	e, err := NewEngine(device, engineTestScene())
	require.NoError(t, err)
	defer e.Destroy()

	require.NoError(t, e.Render())
	assert.Equal(t, StateAccumulating, e.State())
	assert.Equal(t, uint32(1), e.CurrentBatch())

	require.NoError(t, e.Render())
	require.NoError(t, e.Render())
	assert.Equal(t, StateComplete, e.State())
	assert.Len(t, device.Batches, 3)

	// Complete is absorbing: further calls do not submit work.
	require.NoError(t, e.Render())
	assert.Len(t, device.Batches, 3)
	assert.Equal(t, uint32(3), e.CurrentBatch())
}

func TestEngineBatchIndexInPushConstants(t *testing.T) {
	device := gputest.NewFakeDevice(320, 200)
	e, err := NewEngine(device, engineTestScene())
	require.NoError(t, err)
	defer e.Destroy()

	require.NoError(t, e.Render())
	require.NoError(t, e.Render())

	for i, batch := range device.Batches {
		require.Len(t, batch.PushConstants, shaders.PushConstantsSize)
		assert.Equal(t, uint32(320), binary.LittleEndian.Uint32(batch.PushConstants[0:]))
		assert.Equal(t, uint32(i), binary.LittleEndian.Uint32(batch.PushConstants[16:]))
		// Light statistics ride in the ray-gen block.
		assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(batch.PushConstants[24:]))
		require.Len(t, batch.Camera, shaders.CameraSize)
	}
}

func TestEngineResizeResetsAccumulation(t *testing.T) {
	device := gputest.NewFakeDevice(320, 200)
	e, err := NewEngine(device, engineTestScene())
	require.NoError(t, err)
	defer e.Destroy()

	for i := 0; i < 3; i++ {
		require.NoError(t, e.Render())
	}
	require.Equal(t, StateComplete, e.State())

	require.NoError(t, e.Resize(640, 480))
	assert.Equal(t, StateReady, e.State())
	assert.Equal(t, uint32(0), e.CurrentBatch())
	assert.Equal(t, 1, device.ResizeCount)

	// Rendering restarts from batch zero at the new resolution.
	require.NoError(t, e.Render())
	last := device.Batches[len(device.Batches)-1]
	assert.Equal(t, uint32(640), binary.LittleEndian.Uint32(last.PushConstants[0:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(last.PushConstants[16:]))
}

func TestEngineUnknownMeshMaterialResolvesToNone(t *testing.T) {
	device := gputest.NewFakeDevice(64, 64)
	s := engineTestScene()
	s.Primitives[0].UvSphere.Material = "not-defined"

	e, err := NewEngine(device, s)
	require.NoError(t, err)
	defer e.Destroy()

	records := device.BufferByName("mesh-records")
	require.NotNil(t, records)
	// First record: material type tag sits at byte 8.
	assert.Equal(t, shaders.MatTypeNone, binary.LittleEndian.Uint32(records.Data[8:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(records.Data[12:]))
}

func TestEngineRejectsEmptyScene(t *testing.T) {
	device := gputest.NewFakeDevice(64, 64)
	s := engineTestScene()
	s.Primitives = nil

	_, err := NewEngine(device, s)
	assert.ErrorContains(t, err, "no primitives")
}

func TestEngineFailedBuildIsFatal(t *testing.T) {
	device := gputest.NewFakeDevice(64, 64)
	device.FailBuild = assert.AnError

	_, err := NewEngine(device, engineTestScene())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestEngineDestroyReleasesResources(t *testing.T) {
	device := gputest.NewFakeDevice(64, 64)
	e, err := NewEngine(device, engineTestScene())
	require.NoError(t, err)

	e.Destroy()
	assert.Equal(t, StateUnbuilt, e.State())
	for _, b := range device.Buffers {
		assert.True(t, b.Destroyed, "buffer %q leaked", b.Label)
	}
	assert.True(t, device.Acceleration.Destroyed)
}
