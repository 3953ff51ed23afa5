package renderer

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// rgbKey identifies a colour by the exact bit pattern of its components so
// deduplication never merges colours that only compare equal after rounding.
type rgbKey [3]uint32

func makeRGBKey(rgb [3]float32) rgbKey {
	return rgbKey{
		math.Float32bits(rgb[0]),
		math.Float32bits(rgb[1]),
		math.Float32bits(rgb[2]),
	}
}

// textureSet indexes every texture in the scene into the typed tables the
// shader reads. Constant colours deduplicate by value, image textures by
// path; checker and noise textures keep one slot per name.
type textureSet struct {
	colours       [][3]float32
	colourIndices map[rgbKey]uint32
	namedColours  map[string]uint32

	images       []gpu.Texture
	imageIndices map[string]uint32

	checkers       []shaders.CheckerTexture
	checkerIndices map[string]uint32

	noises       []shaders.NoiseTexture
	noiseIndices map[string]uint32

	// checker odd/even references resolve after every other table exists,
	// so the source definitions are kept until then
	checkerSources []*scene.CheckerTexture
}

func newTextureSet(device gpu.Device, s *scene.Scene) (*textureSet, error) {
	ts := &textureSet{
		colourIndices:  make(map[rgbKey]uint32),
		namedColours:   make(map[string]uint32),
		imageIndices:   make(map[string]uint32),
		checkerIndices: make(map[string]uint32),
		noiseIndices:   make(map[string]uint32),
	}

	// Iterate the declaration list, not the map, to keep indices stable
	// across loads of the same scene.
	seen := make(map[string]bool)
	for i := range s.Textures {
		t := &s.Textures[i]
		if seen[t.Name()] {
			continue
		}
		seen[t.Name()] = true

		switch {
		case t.Constant != nil:
			ts.addColour(t.Constant.Name, t.Constant.RGB)

		case t.Image != nil:
			if err := ts.loadImage(device, t.Image); err != nil {
				return nil, err
			}

		case t.Checker != nil:
			ts.checkerIndices[t.Checker.Name] = uint32(len(ts.checkerSources))
			ts.checkerSources = append(ts.checkerSources, t.Checker)

		case t.Noise != nil:
			ts.noiseIndices[t.Noise.Name] = uint32(len(ts.noises))
			ts.noises = append(ts.noises, shaders.NoiseTexture{Scale: t.Noise.Scale})
		}
	}

	if err := ts.resolveCheckers(); err != nil {
		return nil, err
	}

	core.LogDebug("renderer: texture set has %d colours, %d images, %d checkers, %d noises",
		len(ts.colours), len(ts.images), len(ts.checkers), len(ts.noises))

	return ts, nil
}

// addColour interns an RGB value and maps the texture name onto its slot.
func (ts *textureSet) addColour(name string, rgb [3]float32) uint32 {
	key := makeRGBKey(rgb)
	idx, ok := ts.colourIndices[key]
	if !ok {
		idx = uint32(len(ts.colours))
		ts.colourIndices[key] = idx
		ts.colours = append(ts.colours, rgb)
	}
	ts.namedColours[name] = idx
	return idx
}

func (ts *textureSet) loadImage(device gpu.Device, tex *scene.ImageTexture) error {
	if idx, ok := ts.imageIndices[tex.Path]; ok {
		// Same file referenced under a second name shares the upload.
		ts.imageIndices[tex.Name] = idx
		return nil
	}

	core.LogInfo("renderer: loading texture %s", tex.Path)

	f, err := os.Open(tex.Path)
	if err != nil {
		return fmt.Errorf("renderer: opening texture %s: %w", tex.Path, err)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("renderer: decoding texture %s: %w", tex.Path, err)
	}

	bounds := src.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, src, bounds.Min, draw.Src)

	core.LogInfo("renderer: loaded texture %s: %dx%d (%s)",
		tex.Path, bounds.Dx(), bounds.Dy(), format)

	uploaded, err := device.CreateTexture(tex.Name, rgba)
	if err != nil {
		return err
	}

	idx := uint32(len(ts.images))
	ts.images = append(ts.images, uploaded)
	ts.imageIndices[tex.Path] = idx
	ts.imageIndices[tex.Name] = idx
	return nil
}

func (ts *textureSet) resolveCheckers() error {
	for _, src := range ts.checkerSources {
		odd, ok := ts.resolve(src.Odd)
		if !ok {
			return fmt.Errorf("renderer: checker %q references unknown texture %q", src.Name, src.Odd)
		}
		even, ok := ts.resolve(src.Even)
		if !ok {
			return fmt.Errorf("renderer: checker %q references unknown texture %q", src.Name, src.Even)
		}
		ts.checkers = append(ts.checkers, shaders.CheckerTexture{
			Scale: src.Scale,
			Odd:   odd,
			Even:  even,
		})
	}
	return nil
}

// resolve maps a texture name to the typed slot the shader indexes.
// Texture names are unique across all variants, so the first hit wins.
func (ts *textureSet) resolve(name string) (shaders.MaterialPropertyValue, bool) {
	if idx, ok := ts.namedColours[name]; ok {
		return shaders.MaterialPropertyValue{PropValueType: shaders.MatPropValueTypeRGB, Index: idx}, true
	}
	if idx, ok := ts.imageIndices[name]; ok {
		return shaders.MaterialPropertyValue{PropValueType: shaders.MatPropValueTypeImage, Index: idx}, true
	}
	if idx, ok := ts.checkerIndices[name]; ok {
		return shaders.MaterialPropertyValue{PropValueType: shaders.MatPropValueTypeChecker, Index: idx}, true
	}
	if idx, ok := ts.noiseIndices[name]; ok {
		return shaders.MaterialPropertyValue{PropValueType: shaders.MatPropValueTypeNoise, Index: idx}, true
	}
	return shaders.MaterialPropertyValue{}, false
}

// constantColourData packs the interned colours as 16-byte rows.
func (ts *textureSet) constantColourData() []byte {
	colours := ts.colours
	if len(colours) == 0 {
		// Buffers cannot be empty; push constants report a count of zero so
		// the shader never reads the placeholder.
		colours = [][3]float32{{0, 0, 0}}
	}
	out := make([]byte, len(colours)*16)
	for i, c := range colours {
		putColour(out[i*16:], c)
	}
	return out
}

func putColour(dst []byte, c [3]float32) {
	for i, v := range c {
		bits := math.Float32bits(v)
		dst[i*4+0] = byte(bits)
		dst[i*4+1] = byte(bits >> 8)
		dst[i*4+2] = byte(bits >> 16)
		dst[i*4+3] = byte(bits >> 24)
	}
}

func (ts *textureSet) checkerData() []byte {
	checkers := ts.checkers
	if len(checkers) == 0 {
		checkers = []shaders.CheckerTexture{{
			Scale: 1,
			Odd:   shaders.MaterialPropertyValue{PropValueType: shaders.MatPropValueTypeRGB, Index: 0},
			Even:  shaders.MaterialPropertyValue{PropValueType: shaders.MatPropValueTypeRGB, Index: 0},
		}}
	}
	return shaders.MarshalSlice(checkers, shaders.CheckerTextureSize, (*shaders.CheckerTexture).Marshal)
}

func (ts *textureSet) noiseData() []byte {
	noises := ts.noises
	if len(noises) == 0 {
		noises = []shaders.NoiseTexture{{Scale: 1}}
	}
	return shaders.MarshalSlice(noises, shaders.NoiseTextureSize, (*shaders.NoiseTexture).Marshal)
}
