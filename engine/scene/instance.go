package scene

type Rotation struct {
	Axis    [3]float32 `json:"axis"`
	Degrees float32    `json:"degrees"`
}

// Transform describes an affine placement. Missing fields fall back to the
// identity for that component.
type Transform struct {
	Translate *[3]float32 `json:"translate,omitempty"`
	Rotate    *Rotation   `json:"rotate,omitempty"`
	Scale     *[3]float32 `json:"scale,omitempty"`
}

// Instance places a named primitive into the acceleration structure. A nil
// transform means identity placement.
type Instance struct {
	Name      string     `json:"name"`
	Primitive string     `json:"primitive"`
	Transform *Transform `json:"transform,omitempty"`
}
