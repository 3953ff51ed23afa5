package geometry

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/scene"
)

func TestUVSphereVerticesOnSurface(t *testing.T) {
	center := [3]float32{1, 2, 3}
	const radius = float32(2.5)

	vertices, indices := generateUVSphere(center, radius, 8, 16)

	c := mgl32.Vec3(center)
	for i, v := range vertices {
		d := mgl32.Vec3(v.Position).Sub(c).Len()
		assert.InDelta(t, radius, d, 1e-4, "vertex %d not on sphere surface", i)

		n := mgl32.Vec3(v.Normal)
		assert.InDelta(t, 1.0, n.Len(), 1e-4, "vertex %d normal not unit length", i)

		// Normal points from the centre through the vertex.
		outward := mgl32.Vec3(v.Position).Sub(c).Normalize()
		assert.InDelta(t, 1.0, outward.Dot(n), 1e-4, "vertex %d normal not radial", i)
	}

	require.Zero(t, len(indices)%3)
	for _, idx := range indices {
		assert.Less(t, int(idx), len(vertices))
	}
}

func TestUVSphereCounts(t *testing.T) {
	const rings, segments = 4, 8

	vertices, indices := generateUVSphere([3]float32{}, 1, rings, segments)

	// Pole rows have `segments` vertices, interior rows one more.
	wantVertices := 2*segments + (rings-1)*(segments+1)
	assert.Equal(t, wantVertices, len(vertices))

	// Pole rings contribute one triangle per segment, interior rings two.
	wantTriangles := 2*segments + (rings-2)*segments*2
	assert.Equal(t, wantTriangles*3, len(indices))
}

func TestBoxGeneration(t *testing.T) {
	// Corners deliberately given in mixed order.
	vertices, indices := generateBox([2][3]float32{{1, -1, 2}, {-1, 1, 0}})

	require.Len(t, vertices, 24)
	require.Len(t, indices, 36)

	for i, v := range vertices {
		n := mgl32.Vec3(v.Normal)
		assert.InDelta(t, 1.0, n.Len(), 1e-6, "vertex %d", i)

		// Every normal is axis aligned.
		nonZero := 0
		for _, c := range v.Normal {
			if c != 0 {
				nonZero++
				assert.InDelta(t, 1.0, math.Abs(float64(c)), 1e-6)
			}
		}
		assert.Equal(t, 1, nonZero, "vertex %d", i)

		// Positions stay on the normalized corner bounds.
		for axis := 0; axis < 3; axis++ {
			assert.GreaterOrEqual(t, v.Position[axis], float32(-1))
			assert.LessOrEqual(t, v.Position[axis], float32(2))
		}
	}

	for _, idx := range indices {
		assert.Less(t, int(idx), 24)
	}
}

func TestBoxUVAtlas(t *testing.T) {
	r := uvRect(1, 0, 4, 3)

	// Cell (1, 0): u in [0.25, 0.5], v in [2/3, 1], corners ordered
	// BL, BR, TR, TL with V flipped.
	assert.InDelta(t, 0.25, float64(r[0][0]), 1e-6)
	assert.InDelta(t, 1.0, float64(r[0][1]), 1e-6)
	assert.InDelta(t, 0.5, float64(r[1][0]), 1e-6)
	assert.InDelta(t, 2.0/3.0, float64(r[2][1]), 1e-6)
}

func TestFromPrimitiveQuadSplitsIntoTwoTriangles(t *testing.T) {
	m, err := FromPrimitive(&scene.Primitive{Quad: &scene.QuadPrimitive{
		Name: "panel",
		Points: [4][3]float32{
			{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		},
		Normal:   [3]float32{0, 0, 1},
		UV:       [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		Material: "matte",
	}})
	require.NoError(t, err)

	assert.Equal(t, "panel", m.Name)
	assert.Equal(t, "matte", m.Material)
	assert.Len(t, m.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, m.Indices)
}

func TestFromPrimitiveTriangle(t *testing.T) {
	m, err := FromPrimitive(&scene.Primitive{Triangle: &scene.TrianglePrimitive{
		Name:     "tri",
		Points:   [3][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Normal:   [3]float32{0, 0, 1},
		UV:       [3][2]float32{{0, 0}, {1, 0}, {0, 1}},
		Material: "matte",
	}})
	require.NoError(t, err)

	assert.Equal(t, []uint32{0, 1, 2}, m.Indices)
	for _, v := range m.Vertices {
		assert.Equal(t, [3]float32{0, 0, 1}, v.Normal)
	}
}

func TestFromPrimitiveEmptyVariant(t *testing.T) {
	_, err := FromPrimitive(&scene.Primitive{})
	assert.Error(t, err)
}
