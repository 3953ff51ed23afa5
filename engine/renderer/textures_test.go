package renderer

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
	"github.com/spaghettifunk/lumen/engine/scene"
)

func writeTestPNG(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 2))))
	return path
}

func TestConstantColourDedupByBitPattern(t *testing.T) {
	device := gputest.NewFakeDevice(64, 64)
	s := &scene.Scene{Textures: []scene.Texture{
		{Constant: &scene.ConstantTexture{Name: "white", RGB: [3]float32{1, 1, 1}}},
		{Constant: &scene.ConstantTexture{Name: "also-white", RGB: [3]float32{1, 1, 1}}},
		{Constant: &scene.ConstantTexture{Name: "nearly-white", RGB: [3]float32{1, 1, 0.9999999}}},
	}}

	ts, err := newTextureSet(device, s)
	require.NoError(t, err)

	// Identical bit patterns share a slot; a nearly-equal value does not.
	assert.Len(t, ts.colours, 2)

	white, ok := ts.resolve("white")
	require.True(t, ok)
	alsoWhite, ok := ts.resolve("also-white")
	require.True(t, ok)
	assert.Equal(t, white, alsoWhite)

	nearly, ok := ts.resolve("nearly-white")
	require.True(t, ok)
	assert.NotEqual(t, white.Index, nearly.Index)
}

func TestImageTexturesDedupByPath(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, "shared.png")

	device := gputest.NewFakeDevice(64, 64)
	s := &scene.Scene{Textures: []scene.Texture{
		{Image: &scene.ImageTexture{Name: "earth", Path: path}},
		{Image: &scene.ImageTexture{Name: "earth-again", Path: path}},
	}}

	ts, err := newTextureSet(device, s)
	require.NoError(t, err)

	// One upload, two names onto the same slot.
	assert.Len(t, device.Textures, 1)
	a, _ := ts.resolve("earth")
	b, _ := ts.resolve("earth-again")
	assert.Equal(t, a, b)
	assert.Equal(t, shaders.MatPropValueTypeImage, a.PropValueType)
}

func TestImageTextureMissingFile(t *testing.T) {
	device := gputest.NewFakeDevice(64, 64)
	s := &scene.Scene{Textures: []scene.Texture{
		{Image: &scene.ImageTexture{Name: "ghost", Path: "/does/not/exist.png"}},
	}}

	_, err := newTextureSet(device, s)
	assert.Error(t, err)
}

func TestCheckerResolvesReferencedTextures(t *testing.T) {
	device := gputest.NewFakeDevice(64, 64)
	s := &scene.Scene{Textures: []scene.Texture{
		{Constant: &scene.ConstantTexture{Name: "odd", RGB: [3]float32{0, 0, 0}}},
		{Constant: &scene.ConstantTexture{Name: "even", RGB: [3]float32{1, 1, 1}}},
		{Checker: &scene.CheckerTexture{Name: "board", Scale: 8, Odd: "odd", Even: "even"}},
		{Noise: &scene.NoiseTexture{Name: "marble", Scale: 3}},
	}}

	ts, err := newTextureSet(device, s)
	require.NoError(t, err)

	require.Len(t, ts.checkers, 1)
	assert.Equal(t, shaders.MatPropValueTypeRGB, ts.checkers[0].Odd.PropValueType)
	assert.Equal(t, float32(8), ts.checkers[0].Scale)

	v, ok := ts.resolve("board")
	require.True(t, ok)
	assert.Equal(t, shaders.MatPropValueTypeChecker, v.PropValueType)

	v, ok = ts.resolve("marble")
	require.True(t, ok)
	assert.Equal(t, shaders.MatPropValueTypeNoise, v.PropValueType)
}

func TestEmptyTablesGetPlaceholderData(t *testing.T) {
	device := gputest.NewFakeDevice(64, 64)
	ts, err := newTextureSet(device, &scene.Scene{})
	require.NoError(t, err)

	// Buffers cannot be empty even when the scene defines nothing; the
	// shader-side counts stay zero so placeholders are never read.
	assert.Len(t, ts.constantColourData(), 16)
	assert.Len(t, ts.checkerData(), shaders.CheckerTextureSize)
	assert.Len(t, ts.noiseData(), shaders.NoiseTextureSize)
}

func TestMaterialLookupFallsBackToNone(t *testing.T) {
	ms := lightMaterialSet(t)

	matType, idx := ms.lookup("matte")
	assert.Equal(t, shaders.MatTypeLambertian, matType)
	assert.Equal(t, uint32(0), idx)

	matType, idx = ms.lookup("metal-that-does-not-exist")
	assert.Equal(t, shaders.MatTypeNone, matType)
	assert.Equal(t, uint32(0), idx)
}

func TestMaterialSetRejectsUnknownTexture(t *testing.T) {
	ts := &textureSet{
		colourIndices:  make(map[rgbKey]uint32),
		namedColours:   make(map[string]uint32),
		imageIndices:   make(map[string]uint32),
		checkerIndices: make(map[string]uint32),
		noiseIndices:   make(map[string]uint32),
	}
	_, err := newMaterialSet([]scene.Material{
		{Lambertian: &scene.LambertianMaterial{Name: "matte", Albedo: "missing"}},
	}, ts)
	assert.ErrorContains(t, err, "unknown texture")
}
