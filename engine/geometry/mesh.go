package geometry

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// Vertex holds the attributes every tessellated triangle vertex carries.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
}

// Mesh is an indexed triangle mesh produced from a scene primitive. Indices
// reference the mesh's own vertex slice, three per triangle.
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
	Material string
}

// FromPrimitive tessellates a scene primitive into a mesh.
func FromPrimitive(p *scene.Primitive) (*Mesh, error) {
	switch {
	case p.UvSphere != nil:
		sp := p.UvSphere
		vertices, indices := generateUVSphere(sp.Center, sp.Radius, sp.Rings, sp.Segments)
		return &Mesh{Name: sp.Name, Vertices: vertices, Indices: indices, Material: sp.Material}, nil

	case p.Triangle != nil:
		tr := p.Triangle
		vertices := make([]Vertex, 3)
		for i, pt := range tr.Points {
			vertices[i] = Vertex{Position: pt, Normal: tr.Normal, UV: tr.UV[i]}
		}
		return &Mesh{Name: tr.Name, Vertices: vertices, Indices: []uint32{0, 1, 2}, Material: tr.Material}, nil

	case p.Quad != nil:
		q := p.Quad
		vertices := make([]Vertex, 4)
		for i, pt := range q.Points {
			vertices[i] = Vertex{Position: pt, Normal: q.Normal, UV: q.UV[i]}
		}
		return &Mesh{Name: q.Name, Vertices: vertices, Indices: []uint32{0, 1, 2, 0, 2, 3}, Material: q.Material}, nil

	case p.Box != nil:
		b := p.Box
		vertices, indices := generateBox(b.Corners)
		return &Mesh{Name: b.Name, Vertices: vertices, Indices: indices, Material: b.Material}, nil
	}
	return nil, fmt.Errorf("geometry: primitive %q has no variant set", p.Name())
}

func uvSphereVertex(center mgl32.Vec3, radius float32, ring, segment uint32, du, dv float32, topOrBottom bool) Vertex {
	var shiftU float32
	if topOrBottom {
		shiftU = du / 2
	}
	u := float32(segment)*du + shiftU
	v := float32(ring) * dv

	theta := 2 * math.Pi * float64(u)
	phi := math.Pi * float64(v)

	n := mgl32.Vec3{
		float32(-math.Sin(phi) * math.Cos(theta)),
		float32(-math.Cos(phi)),
		float32(math.Sin(phi) * math.Sin(theta)),
	}
	p := center.Add(n.Mul(radius))

	return Vertex{Position: p, Normal: n, UV: [2]float32{u, v}}
}

// generateUVSphere builds a latitude/longitude sphere. The pole rows have one
// vertex fewer than the interior rows and shift u by half a segment so the
// pole triangles get sensible texture coordinates.
func generateUVSphere(center [3]float32, radius float32, rings, segments uint32) ([]Vertex, []uint32) {
	c := mgl32.Vec3(center)
	du := 1 / float32(segments)
	dv := 1 / float32(rings)

	var vertices []Vertex
	for r := uint32(0); r <= rings; r++ {
		topOrBottom := r == 0 || r == rings
		n := segments
		if topOrBottom {
			n = segments - 1
		}
		for s := uint32(0); s <= n; s++ {
			vertices = append(vertices, uvSphereVertex(c, radius, r, s, du, dv, topOrBottom))
		}
	}

	var indices []uint32

	o1 := uint32(0)
	o2 := segments // top row has one vertex fewer, single triangles only

	for r := uint32(0); r < rings; r++ {
		for s := uint32(0); s < segments; s++ {
			switch {
			case r == 0:
				indices = append(indices, o1+s, o2+s, o2+s+1)
			case r < rings-1:
				indices = append(indices, o1+s, o2+s, o2+s+1)
				indices = append(indices, o1+s+1, o1+s, o2+s+1)
			default:
				indices = append(indices, o1+s+1, o1+s, o2+s)
			}
		}

		if r == 0 {
			o1 += segments
		} else {
			o1 += segments + 1
		}
		o2 = o1 + segments + 1
	}

	core.LogDebug("geometry: sphere tessellated to %d vertices, %d indices", len(vertices), len(indices))

	return vertices, indices
}

// uvRect returns the four texture corners of a cell in a cols x rows atlas,
// ordered bottom-left, bottom-right, top-right, top-left. V is flipped so
// row 0 sits at the top of the image.
func uvRect(col, row, cols, rows int) [4][2]float32 {
	cellW := 1 / float32(cols)
	cellH := 1 / float32(rows)

	u0 := float32(col) * cellW
	v0 := 1 - float32(row+1)*cellH
	u1 := u0 + cellW
	v1 := v0 + cellH

	return [4][2]float32{
		{u0, v1},
		{u1, v1},
		{u1, v0},
		{u0, v0},
	}
}

// generateBox builds an axis-aligned box from two opposite corners, given in
// any order. Each face has its own four vertices so normals stay flat, and
// texture coordinates map onto a 4x3 cross atlas. The coordinate convention
// here treats -Y as up, so the "top" face normal points down the Y axis.
func generateBox(corners [2][3]float32) ([]Vertex, []uint32) {
	a := mgl32.Vec3(corners[0])
	b := mgl32.Vec3(corners[1])

	lx, hx := minMax(a.X(), b.X())
	ly, hy := minMax(a.Y(), b.Y())
	lz, hz := minMax(a.Z(), b.Z())

	uvFront := uvRect(1, 1, 4, 3)
	uvBack := uvRect(3, 1, 4, 3)
	uvLeft := uvRect(0, 1, 4, 3)
	uvRight := uvRect(2, 1, 4, 3)
	uvTop := uvRect(1, 0, 4, 3)
	uvBottom := uvRect(1, 2, 4, 3)

	vertices := []Vertex{
		// Front (+Z)
		{Position: [3]float32{lx, ly, hz}, Normal: [3]float32{0, 0, 1}, UV: uvFront[0]},
		{Position: [3]float32{hx, ly, hz}, Normal: [3]float32{0, 0, 1}, UV: uvFront[1]},
		{Position: [3]float32{hx, hy, hz}, Normal: [3]float32{0, 0, 1}, UV: uvFront[2]},
		{Position: [3]float32{lx, hy, hz}, Normal: [3]float32{0, 0, 1}, UV: uvFront[3]},

		// Back (-Z)
		{Position: [3]float32{hx, ly, lz}, Normal: [3]float32{0, 0, -1}, UV: uvBack[0]},
		{Position: [3]float32{lx, ly, lz}, Normal: [3]float32{0, 0, -1}, UV: uvBack[1]},
		{Position: [3]float32{lx, hy, lz}, Normal: [3]float32{0, 0, -1}, UV: uvBack[2]},
		{Position: [3]float32{hx, hy, lz}, Normal: [3]float32{0, 0, -1}, UV: uvBack[3]},

		// Left (-X)
		{Position: [3]float32{lx, ly, lz}, Normal: [3]float32{-1, 0, 0}, UV: uvLeft[0]},
		{Position: [3]float32{lx, ly, hz}, Normal: [3]float32{-1, 0, 0}, UV: uvLeft[1]},
		{Position: [3]float32{lx, hy, hz}, Normal: [3]float32{-1, 0, 0}, UV: uvLeft[2]},
		{Position: [3]float32{lx, hy, lz}, Normal: [3]float32{-1, 0, 0}, UV: uvLeft[3]},

		// Right (+X)
		{Position: [3]float32{hx, ly, hz}, Normal: [3]float32{1, 0, 0}, UV: uvRight[0]},
		{Position: [3]float32{hx, ly, lz}, Normal: [3]float32{1, 0, 0}, UV: uvRight[1]},
		{Position: [3]float32{hx, hy, lz}, Normal: [3]float32{1, 0, 0}, UV: uvRight[2]},
		{Position: [3]float32{hx, hy, hz}, Normal: [3]float32{1, 0, 0}, UV: uvRight[3]},

		// Top (-Y)
		{Position: [3]float32{lx, hy, hz}, Normal: [3]float32{0, -1, 0}, UV: uvTop[0]},
		{Position: [3]float32{hx, hy, hz}, Normal: [3]float32{0, -1, 0}, UV: uvTop[1]},
		{Position: [3]float32{hx, hy, lz}, Normal: [3]float32{0, -1, 0}, UV: uvTop[2]},
		{Position: [3]float32{lx, hy, lz}, Normal: [3]float32{0, -1, 0}, UV: uvTop[3]},

		// Bottom (+Y)
		{Position: [3]float32{lx, ly, lz}, Normal: [3]float32{0, 1, 0}, UV: uvBottom[0]},
		{Position: [3]float32{hx, ly, lz}, Normal: [3]float32{0, 1, 0}, UV: uvBottom[1]},
		{Position: [3]float32{hx, ly, hz}, Normal: [3]float32{0, 1, 0}, UV: uvBottom[2]},
		{Position: [3]float32{lx, ly, hz}, Normal: [3]float32{0, 1, 0}, UV: uvBottom[3]},
	}

	indices := []uint32{
		0, 1, 2, 2, 3, 0, // front
		4, 5, 6, 6, 7, 4, // back
		8, 9, 10, 10, 11, 8, // left
		12, 13, 14, 14, 15, 12, // right
		16, 17, 18, 18, 19, 16, // top
		20, 21, 22, 22, 23, 20, // bottom
	}

	return vertices, indices
}

func minMax(a, b float32) (float32, float32) {
	if a < b {
		return a, b
	}
	return b, a
}
