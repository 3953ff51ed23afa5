package renderer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/geometry"
	"github.com/spaghettifunk/lumen/engine/scene"
)

func lightMaterialSet(t *testing.T) *materialSet {
	t.Helper()
	textures := &textureSet{
		colourIndices:  make(map[rgbKey]uint32),
		namedColours:   make(map[string]uint32),
		imageIndices:   make(map[string]uint32),
		checkerIndices: make(map[string]uint32),
		noiseIndices:   make(map[string]uint32),
	}
	textures.addColour("white", [3]float32{1, 1, 1})
	ms, err := newMaterialSet([]scene.Material{
		{DiffuseLight: &scene.DiffuseLightMaterial{Name: "lamp", Emit: "white"}},
		{Lambertian: &scene.LambertianMaterial{Name: "matte", Albedo: "white"}},
	}, textures)
	require.NoError(t, err)
	return ms
}

func quadMesh(t *testing.T, name, material string, points [4][3]float32) *geometry.Mesh {
	t.Helper()
	m, err := geometry.FromPrimitive(&scene.Primitive{Quad: &scene.QuadPrimitive{
		Name:     name,
		Points:   points,
		Normal:   [3]float32{0, 0, 1},
		UV:       [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		Material: material,
	}})
	require.NoError(t, err)
	return m
}

func staticInstance(meshIndex uint32) MeshInstance {
	id := geometry.IdentityTransform()
	return MeshInstance{MeshIndex: meshIndex, ObjectToWorld: ObjectTransform{Static: &id}}
}

func TestAliasTableZeroLightsSentinel(t *testing.T) {
	materials := lightMaterialSet(t)
	mesh := quadMesh(t, "floor", "matte", [4][3]float32{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	})

	table, err := buildLightAliasTable([]MeshInstance{staticInstance(0)}, []*geometry.Mesh{mesh}, materials)
	require.NoError(t, err)

	assert.Equal(t, uint32(0), table.triangleCount)
	assert.Equal(t, float32(0), table.totalArea)
	require.Len(t, table.entries, 1)
	assert.Zero(t, table.entries[0])
}

func TestAliasTableFiltersDegenerateTriangles(t *testing.T) {
	materials := lightMaterialSet(t)

	// First triangle of the quad is collinear, the second has area.
	mesh := quadMesh(t, "lamp-panel", "lamp", [4][3]float32{
		{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {0, 1, 0},
	})

	table, err := buildLightAliasTable([]MeshInstance{staticInstance(0)}, []*geometry.Mesh{mesh}, materials)
	require.NoError(t, err)

	require.Equal(t, uint32(1), table.triangleCount)
	for _, e := range table.entries {
		assert.Equal(t, uint32(1), e.PrimitiveID, "degenerate triangle leaked into the table")
	}
}

func TestAliasTableRejectsAnimatedLight(t *testing.T) {
	materials := lightMaterialSet(t)
	mesh := quadMesh(t, "lamp-panel", "lamp", [4][3]float32{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	})

	inst := MeshInstance{
		MeshIndex: 0,
		ObjectToWorld: ObjectTransform{Animated: &AnimatedTransform{
			Start: geometry.IdentityTransform(),
			End:   geometry.IdentityTransform(),
		}},
	}

	_, err := buildLightAliasTable([]MeshInstance{inst}, []*geometry.Mesh{mesh}, materials)
	assert.ErrorContains(t, err, "animated transform")
}

func TestAliasTableAppliesInstanceTransform(t *testing.T) {
	materials := lightMaterialSet(t)
	mesh := quadMesh(t, "lamp-panel", "lamp", [4][3]float32{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	})

	st := geometry.DecomposeSceneTransform(&scene.Transform{Scale: &[3]float32{2, 2, 1}})
	inst := MeshInstance{MeshIndex: 0, ObjectToWorld: ObjectTransform{Static: &st}}

	table, err := buildLightAliasTable([]MeshInstance{inst}, []*geometry.Mesh{mesh}, materials)
	require.NoError(t, err)

	// Unit quad scaled by 2x2 has world-space area 4.
	assert.InDelta(t, 4.0, float64(table.totalArea), 1e-4)
	assert.Equal(t, uint32(2), table.triangleCount)
}

func TestAliasTableSamplesProportionallyToArea(t *testing.T) {
	// Three triangles with areas 1, 2 and 5.
	areas := []triangleArea{
		{value: 1, meshIndex: 0, primitiveIndex: 0},
		{value: 2, meshIndex: 0, primitiveIndex: 1},
		{value: 5, meshIndex: 0, primitiveIndex: 2},
	}

	entries, total := buildAliasEntries(areas)
	require.Len(t, entries, 3)
	assert.InDelta(t, 8.0, float64(total), 1e-6)

	// Sample the table the way the shader does and compare frequencies
	// against the area weights.
	rng := rand.New(rand.NewSource(7))
	const samples = 200000
	counts := make(map[uint32]int)
	for i := 0; i < samples; i++ {
		slot := rng.Intn(len(entries))
		e := entries[slot]
		picked := e.PrimitiveID
		if rng.Float32() >= e.Probability {
			picked = entries[e.Alias].PrimitiveID
		}
		counts[picked]++
	}

	for i, want := range []float64{1.0 / 8, 2.0 / 8, 5.0 / 8} {
		got := float64(counts[uint32(i)]) / samples
		assert.InDelta(t, want, got, 0.01, "triangle %d frequency", i)
	}
}

func TestAliasEntriesConserveProbabilityMass(t *testing.T) {
	areas := []triangleArea{
		{value: 0.25}, {value: 0.25}, {value: 1.5}, {value: 3.0}, {value: 1.0},
	}
	entries, total := buildAliasEntries(areas)

	// Each column's selection mass (own probability plus alias spill-over)
	// must equal area * n / total.
	n := float64(len(areas))
	mass := make([]float64, len(areas))
	for i, e := range entries {
		mass[i] += float64(e.Probability)
		mass[e.Alias] += 1 - float64(e.Probability)
	}
	for i, a := range areas {
		want := float64(a.value) * n / float64(total)
		assert.InDelta(t, want, mass[i], 1e-4, "column %d", i)
	}
}
