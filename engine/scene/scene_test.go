package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScene() *Scene {
	return &Scene{
		Cameras: []Camera{
			{Perspective: &PerspectiveCamera{
				Name: "main", Eye: [3]float32{0, 1, 3}, LookAt: [3]float32{0, 0, 0},
				Up: [3]float32{0, 1, 0}, FovY: 45, ZNear: 0.1, ZFar: 100,
				FocalLength: 3, ApertureSize: 0,
			}},
		},
		Textures: []Texture{
			{Constant: &ConstantTexture{Name: "white", RGB: [3]float32{1, 1, 1}}},
			{Constant: &ConstantTexture{Name: "grey", RGB: [3]float32{0.5, 0.5, 0.5}}},
			{Checker: &CheckerTexture{Name: "floor", Scale: 4, Odd: "white", Even: "grey"}},
		},
		Materials: []Material{
			{Lambertian: &LambertianMaterial{Name: "matte", Albedo: "floor"}},
		},
		Primitives: []Primitive{
			{UvSphere: &UvSpherePrimitive{
				Name: "ball", Center: [3]float32{0, 0.5, 0}, Radius: 0.5,
				Rings: 16, Segments: 32, Material: "matte",
			}},
		},
		Instances: []Instance{
			{Name: "ball-0", Primitive: "ball"},
		},
		Sky: &Sky{Solid: &SolidSky{RGB: [3]float32{0.2, 0.3, 0.8}}},
		Render: RenderSettings{
			Camera:          "main",
			SamplesPerPixel: 8,
			SampleBatches:   4,
			MaxRayDepth:     10,
		},
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.json")
	require.NoError(t, testScene().Save(path))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, s.Cameras, 1)
	assert.Equal(t, "main", s.Cameras[0].Name())
	assert.Len(t, s.Textures, 3)
	assert.Equal(t, "floor", s.Textures[2].Name())
	assert.Equal(t, uint32(8), s.Render.SamplesPerPixel)
	require.NotNil(t, s.Sky)
	assert.NotNil(t, s.Sky.Solid)
}

func TestLoadClampsRenderLimits(t *testing.T) {
	sc := testScene()
	sc.Render.SamplesPerPixel = 4096
	sc.Render.SampleBatches = 1000

	path := filepath.Join(t.TempDir(), "scene.json")
	require.NoError(t, sc.Save(path))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, MaxSamplesPerPixel, s.Render.SamplesPerPixel)
	assert.Equal(t, MaxSampleBatches, s.Render.SampleBatches)
}

func TestLoadResolvesImagePaths(t *testing.T) {
	sc := testScene()
	sc.Textures = append(sc.Textures,
		Texture{Image: &ImageTexture{Name: "earth", Path: "images/earth.png"}})

	dir := t.TempDir()
	path := filepath.Join(dir, "scene.json")
	require.NoError(t, sc.Save(path))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "images", "earth.png"), s.Textures[3].Image.Path)
}

func TestLoadRejectsUnparsableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestTextureMapKeepsFirstDuplicate(t *testing.T) {
	sc := testScene()
	sc.Textures = append(sc.Textures,
		Texture{Constant: &ConstantTexture{Name: "white", RGB: [3]float32{0, 0, 0}}})

	m := sc.TextureMap()
	require.Contains(t, m, "white")
	assert.Equal(t, [3]float32{1, 1, 1}, m["white"].Constant.RGB)
}

func TestCheckerValidation(t *testing.T) {
	sc := testScene()

	t.Run("unknown reference", func(t *testing.T) {
		sc.Textures[2].Checker.Odd = "missing"
		err := sc.Validate()
		assert.ErrorContains(t, err, "unknown texture")
		sc.Textures[2].Checker.Odd = "white"
	})

	t.Run("checker referencing checker", func(t *testing.T) {
		sc.Textures = append(sc.Textures,
			Texture{Checker: &CheckerTexture{Name: "nested", Scale: 1, Odd: "floor", Even: "white"}})
		err := sc.Validate()
		assert.ErrorContains(t, err, "references checker texture")
		sc.Textures = sc.Textures[:3]
	})
}

func TestValidateInstanceReferences(t *testing.T) {
	sc := testScene()
	sc.Instances = append(sc.Instances, Instance{Name: "ghost", Primitive: "missing"})
	err := sc.Validate()
	assert.ErrorContains(t, err, "unknown primitive")
}

func TestMissingRenderCameraIsLoadError(t *testing.T) {
	sc := testScene()
	sc.Render.Camera = "does-not-exist"

	path := filepath.Join(t.TempDir(), "scene.json")
	require.NoError(t, sc.Save(path))

	_, err := Load(path)
	assert.ErrorContains(t, err, `camera "does-not-exist"`)
}

func TestActiveCameraNoCameras(t *testing.T) {
	sc := testScene()
	sc.Cameras = nil
	_, err := sc.ActiveCamera()
	assert.Error(t, err)
}
