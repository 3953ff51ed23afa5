package shaders

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeshVertexLayout(t *testing.T) {
	v := MeshVertex{
		P: [3]float32{1, 2, 3},
		U: 0.25,
		N: [3]float32{0.6, 0.8, 0},
		V: 0.75,
	}
	buf := make([]byte, MeshVertexSize)
	v.Marshal(buf)

	// Texture coordinates sit in the 4th float of each 16-byte row.
	assert.Equal(t, float32(0.25), math.Float32frombits(binary.LittleEndian.Uint32(buf[12:])))
	assert.Equal(t, float32(0.75), math.Float32frombits(binary.LittleEndian.Uint32(buf[28:])))
	assert.Equal(t, float32(3), math.Float32frombits(binary.LittleEndian.Uint32(buf[8:])))
	assert.Equal(t, float32(0.6), math.Float32frombits(binary.LittleEndian.Uint32(buf[16:])))
	assert.Equal(t, float32(0.8), math.Float32frombits(binary.LittleEndian.Uint32(buf[20:])))
}

func TestPushConstantsLayout(t *testing.T) {
	pc := PushConstants{
		RayGen: RayGenPushConstants{
			Resolution:         [2]uint32{1920, 1080},
			SamplesPerPixel:    16,
			SampleBatches:      8,
			SampleBatch:        3,
			MaxRayDepth:        10,
			LightTriangleCount: 42,
			LightTotalArea:     12.5,
		},
		ClosestHit: ClosestHitPushConstants{
			MeshCount:                 5,
			ImageTextureCount:         1,
			ConstantColourCount:       7,
			CheckerTextureCount:       2,
			NoiseTextureCount:         1,
			LambertianMaterialCount:   3,
			MetalMaterialCount:        2,
			DielectricMaterialCount:   1,
			DiffuseLightMaterialCount: 1,
		},
	}

	buf := pc.Marshal()
	require.Len(t, buf, PushConstantsSize)

	// Ray-gen block at offset 0.
	assert.Equal(t, uint32(1920), binary.LittleEndian.Uint32(buf[0:]))
	assert.Equal(t, uint32(1080), binary.LittleEndian.Uint32(buf[4:]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(buf[16:]))
	assert.Equal(t, uint32(42), binary.LittleEndian.Uint32(buf[24:]))
	assert.Equal(t, float32(12.5), math.Float32frombits(binary.LittleEndian.Uint32(buf[28:])))

	// Closest-hit block starts right after.
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(buf[ClosestHitPushConstantsOffset:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[ClosestHitPushConstantsOffset+32:]))
}

func TestSkyVariants(t *testing.T) {
	solid := SkySolid([3]float32{1, 0.5, 0})
	buf := make([]byte, SkySize)
	solid.Marshal(buf)
	assert.Equal(t, SkyTypeSolid, binary.LittleEndian.Uint32(buf[12:]))
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(buf[4:])))

	grad := SkyVerticalGradient(0.7, [3]float32{0.2, 0.4, 0.9}, [3]float32{1, 1, 1})
	grad.Marshal(buf)
	assert.Equal(t, SkyTypeVerticalGradient, binary.LittleEndian.Uint32(buf[12:]))
	assert.Equal(t, float32(0.7), math.Float32frombits(binary.LittleEndian.Uint32(buf[28:])))
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(buf[32:])))

	none := SkyNone()
	none.Marshal(buf)
	assert.Equal(t, SkyTypeNone, binary.LittleEndian.Uint32(buf[12:]))
}

func TestMarshalSlicePacksContiguously(t *testing.T) {
	entries := []LightAliasEntry{
		{Probability: 0.5, Alias: 1, MeshID: 2, PrimitiveID: 3},
		{Probability: 1.0, Alias: 0, MeshID: 4, PrimitiveID: 5},
	}
	buf := MarshalSlice(entries, LightAliasEntrySize, (*LightAliasEntry).Marshal)
	require.Len(t, buf, 2*LightAliasEntrySize)

	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(buf[12:]))
	assert.Equal(t, float32(1.0), math.Float32frombits(binary.LittleEndian.Uint32(buf[16:])))
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(buf[28:]))
}

func TestLoadProgramValidatesMagic(t *testing.T) {
	dir := t.TempDir()

	spv := make([]byte, 8)
	binary.LittleEndian.PutUint32(spv, spirvMagic)
	for _, name := range []string{"ray_gen.spv", "ray_miss.spv", "closest_hit.spv", "resolve_vert.spv", "resolve_frag.spv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), spv, 0o644))
	}

	p, err := LoadProgram(dir)
	require.NoError(t, err)
	assert.Len(t, p.RayGen, 8)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ray_gen.spv"), []byte{1, 2, 3, 4}, 0o644))
	_, err = LoadProgram(dir)
	assert.Error(t, err)
}
