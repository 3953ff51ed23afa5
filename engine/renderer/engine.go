package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// State describes where the progressive accumulation currently stands.
type State int

const (
	// StateUnbuilt means the scene has not been compiled yet.
	StateUnbuilt State = iota
	// StateReady means resources are bound and no batch has run.
	StateReady
	// StateAccumulating means some but not all batches have run.
	StateAccumulating
	// StateComplete means every batch has run; Render becomes a no-op
	// until a resize resets the accumulation.
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateUnbuilt:
		return "unbuilt"
	case StateReady:
		return "ready"
	case StateAccumulating:
		return "accumulating"
	case StateComplete:
		return "complete"
	}
	return "unknown"
}

// Engine compiles a scene into GPU resources and drives the progressive
// trace-and-accumulate loop. One Engine owns one compiled scene; loading a
// new scene means building a new Engine.
type Engine struct {
	device gpu.Device

	camera   *Camera
	settings scene.RenderSettings

	lights *lightAliasTable
	counts shaders.ClosestHitPushConstants

	bindings gpu.SceneBindings

	width  uint32
	height uint32

	built       bool
	sampleBatch uint32
}

// NewEngine compiles the scene and binds every scene-lifetime resource.
// Any failure here is fatal for the load; there are no partial scenes.
func NewEngine(device gpu.Device, s *scene.Scene) (*Engine, error) {
	width, height := device.SurfaceSize()

	e := &Engine{
		device:   device,
		settings: s.Render,
		width:    width,
		height:   height,
	}

	// Resolve the camera before compiling so a bad reference never leaves
	// the device bound to resources that are about to be destroyed.
	sceneCam, err := s.ActiveCamera()
	if err != nil {
		return nil, err
	}

	if err := e.compile(s); err != nil {
		e.Destroy()
		return nil, err
	}
	e.camera = NewCamera(sceneCam.Perspective, width, height)

	e.built = true
	core.LogInfo("renderer: scene compiled, %d batches of %d samples at %dx%d",
		e.settings.SampleBatches, e.settings.SamplesPerPixel, width, height)

	return e, nil
}

func (e *Engine) compile(s *scene.Scene) error {
	textures, err := newTextureSet(e.device, s)
	if err != nil {
		return err
	}

	materials, err := newMaterialSet(s.Materials, textures)
	if err != nil {
		return err
	}

	meshes, meshIndices, err := compileMeshes(s)
	if err != nil {
		return err
	}
	if len(meshes) == 0 {
		return fmt.Errorf("renderer: scene has no primitives")
	}

	instances, err := compileInstances(s, meshIndices)
	if err != nil {
		return err
	}

	e.lights, err = buildLightAliasTable(instances, meshes, materials)
	if err != nil {
		return err
	}

	b := &e.bindings

	if b.MeshVertices, err = e.device.CreateStorageBuffer("mesh-vertices", packVertices(meshes)); err != nil {
		return err
	}
	if b.MeshIndices, err = e.device.CreateStorageBuffer("mesh-indices", packIndices(meshes)); err != nil {
		return err
	}
	if b.MeshRecords, err = e.device.CreateStorageBuffer("mesh-records", meshRecordData(meshes, materials)); err != nil {
		return err
	}
	if b.ConstantColour, err = e.device.CreateStorageBuffer("constant-colours", textures.constantColourData()); err != nil {
		return err
	}
	if b.Lambertian, err = e.device.CreateStorageBuffer("materials-lambertian", materials.lambertianData()); err != nil {
		return err
	}
	if b.Metal, err = e.device.CreateStorageBuffer("materials-metal", materials.metalData()); err != nil {
		return err
	}
	if b.Dielectric, err = e.device.CreateStorageBuffer("materials-dielectric", materials.dielectricData()); err != nil {
		return err
	}
	if b.DiffuseLight, err = e.device.CreateStorageBuffer("materials-diffuse-light", materials.diffuseLightData()); err != nil {
		return err
	}
	if b.Checker, err = e.device.CreateStorageBuffer("textures-checker", textures.checkerData()); err != nil {
		return err
	}
	if b.Noise, err = e.device.CreateStorageBuffer("textures-noise", textures.noiseData()); err != nil {
		return err
	}
	if b.Sky, err = e.device.CreateUniformBuffer("sky", skyData(s.Sky)); err != nil {
		return err
	}
	if b.LightAlias, err = e.device.CreateStorageBuffer("light-alias-table", e.lights.data()); err != nil {
		return err
	}
	b.ImageTextures = textures.images

	if b.Acceleration, err = e.device.BuildAccelerationStructures(deviceGeometry(meshes), instanceRecords(instances)); err != nil {
		return err
	}

	if err = e.device.BindScene(b); err != nil {
		return err
	}

	e.counts = shaders.ClosestHitPushConstants{
		MeshCount:                 uint32(len(meshes)),
		ImageTextureCount:         uint32(len(textures.images)),
		ConstantColourCount:       uint32(len(textures.colours)),
		CheckerTextureCount:       uint32(len(textures.checkers)),
		NoiseTextureCount:         uint32(len(textures.noises)),
		LambertianMaterialCount:   uint32(len(materials.lambertians)),
		MetalMaterialCount:        uint32(len(materials.metals)),
		DielectricMaterialCount:   uint32(len(materials.dielectrics)),
		DiffuseLightMaterialCount: uint32(len(materials.diffuseLight)),
	}

	return nil
}

func skyData(s *scene.Sky) []byte {
	var sky shaders.Sky
	switch {
	case s == nil:
		sky = shaders.SkyNone()
	case s.Solid != nil:
		sky = shaders.SkySolid(s.Solid.RGB)
	case s.VerticalGradient != nil:
		sky = shaders.SkyVerticalGradient(s.VerticalGradient.Factor,
			s.VerticalGradient.Top, s.VerticalGradient.Bottom)
	default:
		sky = shaders.SkyNone()
	}
	out := make([]byte, shaders.SkySize)
	sky.Marshal(out)
	return out
}

// State reports the accumulation state.
func (e *Engine) State() State {
	switch {
	case !e.built:
		return StateUnbuilt
	case e.sampleBatch == 0:
		return StateReady
	case e.sampleBatch < e.settings.SampleBatches:
		return StateAccumulating
	}
	return StateComplete
}

// CurrentBatch returns how many batches have accumulated so far.
func (e *Engine) CurrentBatch() uint32 { return e.sampleBatch }

// Camera returns the shared camera for input handling.
func (e *Engine) Camera() *Camera { return e.camera }

// Render runs one sample batch. Once every batch has accumulated it does
// nothing; the completed image keeps being presented by the display layer.
func (e *Engine) Render() error {
	if e.State() == StateComplete {
		return nil
	}

	cam := e.camera.ShaderData()
	camBytes := make([]byte, shaders.CameraSize)
	cam.Marshal(camBytes)

	pc := shaders.PushConstants{
		RayGen: shaders.RayGenPushConstants{
			Resolution:         [2]uint32{e.width, e.height},
			SamplesPerPixel:    e.settings.SamplesPerPixel,
			SampleBatches:      e.settings.SampleBatches,
			SampleBatch:        e.sampleBatch,
			MaxRayDepth:        e.settings.MaxRayDepth,
			LightTriangleCount: e.lights.triangleCount,
			LightTotalArea:     e.lights.totalArea,
		},
		ClosestHit: e.counts,
	}

	err := e.device.RenderBatch(&gpu.BatchParams{
		Camera:        camBytes,
		PushConstants: pc.Marshal(),
	})
	if err != nil {
		return err
	}

	e.sampleBatch++
	if e.State() == StateComplete {
		core.LogInfo("renderer: accumulation complete after %d batches", e.sampleBatch)
	}
	return nil
}

// Resize rebuilds the drawable-sized resources and resets the accumulation
// to batch zero. Any batch still in flight against the old image completes
// harmlessly and is never displayed.
func (e *Engine) Resize(width, height uint32) error {
	w, h, err := e.device.Resize(width, height)
	if err != nil {
		return err
	}
	e.width, e.height = w, h
	e.camera.UpdateImageSize(w, h)
	e.sampleBatch = 0
	core.LogDebug("renderer: resized to %dx%d, accumulation reset", w, h)
	return nil
}

// Destroy releases every scene-lifetime resource.
func (e *Engine) Destroy() {
	_ = e.device.WaitIdle()

	b := &e.bindings
	for _, t := range b.ImageTextures {
		t.Destroy()
	}
	for _, buf := range []gpu.Buffer{
		b.MeshVertices, b.MeshIndices, b.MeshRecords, b.ConstantColour,
		b.Lambertian, b.Metal, b.Dielectric, b.DiffuseLight,
		b.Checker, b.Noise, b.Sky, b.LightAlias,
	} {
		if buf != nil {
			buf.Destroy()
		}
	}
	if b.Acceleration != nil {
		b.Acceleration.Destroy()
	}
	e.bindings = gpu.SceneBindings{}
	e.built = false
}
