package renderer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/geometry"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
)

// Triangles below this world-space area never make it into the table.
const minLightTriangleArea = 1e-8

type triangleArea struct {
	value          float32
	meshIndex      uint32
	primitiveIndex uint32
}

// lightAliasTable holds the alias entries for sampling light-emitting
// triangles proportionally to their world-space area, plus the scalar
// statistics the ray-generation shader needs alongside.
type lightAliasTable struct {
	entries       []shaders.LightAliasEntry
	triangleCount uint32
	totalArea     float32
}

// buildLightAliasTable scans the instances whose material emits light,
// measures every triangle in world space and runs Vose's alias-method
// construction over the areas. See
// https://en.wikipedia.org/wiki/Alias_method.
//
// Animated transforms on light sources are rejected: a moving light would
// need its areas re-measured per frame, which the once-per-scene table
// cannot express.
func buildLightAliasTable(instances []MeshInstance, meshes []*geometry.Mesh, materials *materialSet) (*lightAliasTable, error) {
	lightCount := 0
	var areas []triangleArea

	for i := range instances {
		inst := &instances[i]
		mesh := meshes[inst.MeshIndex]
		if !materials.isDiffuseLight(mesh.Material) {
			continue
		}
		lightCount++

		if inst.ObjectToWorld.Animated != nil {
			return nil, fmt.Errorf("renderer: animated transform on light source %q is not supported", mesh.Name)
		}
		objectToWorld := inst.ObjectToWorld.Static.Mat4()

		for t := 0; t+2 < len(mesh.Indices); t += 3 {
			p := worldTriangle(mesh, objectToWorld, t)

			v0 := p[1].Sub(p[0])
			v1 := p[2].Sub(p[0])
			area := 0.5 * v0.Cross(v1).Len()

			if area > minLightTriangleArea {
				areas = append(areas, triangleArea{
					value:          area,
					meshIndex:      inst.MeshIndex,
					primitiveIndex: uint32(t / 3),
				})
			}
		}
	}

	table := &lightAliasTable{}
	if len(areas) > 0 {
		table.entries, table.totalArea = buildAliasEntries(areas)
		table.triangleCount = uint32(len(areas))
	} else {
		// Sentinel entry so the descriptor set can always be built. The
		// zero triangle count tells the shader to skip light sampling.
		table.entries = []shaders.LightAliasEntry{{}}
	}

	core.LogDebug("renderer: light alias table: %d lights, total area %f, %d triangles with non-zero area",
		lightCount, table.totalArea, table.triangleCount)

	return table, nil
}

func worldTriangle(mesh *geometry.Mesh, objectToWorld mgl32.Mat4, firstIndex int) [3]mgl32.Vec3 {
	var out [3]mgl32.Vec3
	for i := 0; i < 3; i++ {
		v := mesh.Vertices[mesh.Indices[firstIndex+i]].Position
		w := objectToWorld.Mul4x1(mgl32.Vec4{v[0], v[1], v[2], 1})
		out[i] = mgl32.Vec3{w.X(), w.Y(), w.Z()}
	}
	return out
}

// buildAliasEntries runs Vose's O(n) construction. The total area
// accumulates in double precision so error does not pile up across many
// small triangles before the final cast down to single.
func buildAliasEntries(areas []triangleArea) ([]shaders.LightAliasEntry, float32) {
	n := len(areas)

	var totalArea64 float64
	for i := range areas {
		totalArea64 += float64(areas[i].value)
	}
	totalArea := float32(totalArea64)

	q := make([]float32, n)
	for i := range areas {
		q[i] = areas[i].value * float32(n) / totalArea
	}

	var small, large []int
	for i, v := range q {
		if v < 1 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	probabilities := make([]float32, n)
	aliases := make([]uint32, n)

	for len(small) > 0 && len(large) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		l := large[len(large)-1]
		large = large[:len(large)-1]

		probabilities[s] = q[s]
		aliases[s] = uint32(l)

		q[l] -= 1 - q[s]

		if q[l] < 1 {
			small = append(small, l)
		} else {
			large = append(large, l)
		}
	}

	// Leftovers on either stack take probability 1 and alias to themselves.
	for _, i := range small {
		probabilities[i] = 1
		aliases[i] = uint32(i)
	}
	for _, i := range large {
		probabilities[i] = 1
		aliases[i] = uint32(i)
	}

	entries := make([]shaders.LightAliasEntry, n)
	for i := range entries {
		entries[i] = shaders.LightAliasEntry{
			Probability: probabilities[i],
			Alias:       aliases[i],
			MeshID:      areas[i].meshIndex,
			PrimitiveID: areas[i].primitiveIndex,
		}
	}

	return entries, totalArea
}

func (t *lightAliasTable) data() []byte {
	return shaders.MarshalSlice(t.entries, shaders.LightAliasEntrySize, (*shaders.LightAliasEntry).Marshal)
}
