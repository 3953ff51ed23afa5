package scene

type UvSpherePrimitive struct {
	Name     string     `json:"name"`
	Center   [3]float32 `json:"center"`
	Radius   float32    `json:"radius"`
	Rings    uint32     `json:"rings"`
	Segments uint32     `json:"segments"`
	Material string     `json:"material"`
}

// Flat primitives share a single normal across their points.
type TrianglePrimitive struct {
	Name     string        `json:"name"`
	Points   [3][3]float32 `json:"points"`
	Normal   [3]float32    `json:"normal"`
	UV       [3][2]float32 `json:"uv"`
	Material string        `json:"material"`
}

type QuadPrimitive struct {
	Name     string        `json:"name"`
	Points   [4][3]float32 `json:"points"`
	Normal   [3]float32    `json:"normal"`
	UV       [4][2]float32 `json:"uv"`
	Material string        `json:"material"`
}

type BoxPrimitive struct {
	Name     string        `json:"name"`
	Corners  [2][3]float32 `json:"corners"`
	Material string        `json:"material"`
}

// Primitive is a tagged union of the supported source geometry kinds. Each
// kind tessellates to an indexed triangle mesh at compile time.
type Primitive struct {
	UvSphere *UvSpherePrimitive `json:"uv_sphere,omitempty"`
	Triangle *TrianglePrimitive `json:"triangle,omitempty"`
	Quad     *QuadPrimitive     `json:"quad,omitempty"`
	Box      *BoxPrimitive      `json:"box,omitempty"`
}

func (p *Primitive) Name() string {
	switch {
	case p.UvSphere != nil:
		return p.UvSphere.Name
	case p.Triangle != nil:
		return p.Triangle.Name
	case p.Quad != nil:
		return p.Quad.Name
	case p.Box != nil:
		return p.Box.Name
	}
	return ""
}

func (p *Primitive) Material() string {
	switch {
	case p.UvSphere != nil:
		return p.UvSphere.Material
	case p.Triangle != nil:
		return p.Triangle.Material
	case p.Quad != nil:
		return p.Quad.Material
	case p.Box != nil:
		return p.Box.Material
	}
	return ""
}
