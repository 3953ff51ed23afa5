package scene

// PerspectiveCamera is the only camera variant currently supported by the
// scene format.
type PerspectiveCamera struct {
	Name         string     `json:"name"`
	Eye          [3]float32 `json:"eye"`
	LookAt       [3]float32 `json:"look_at"`
	Up           [3]float32 `json:"up"`
	FovY         float32    `json:"fov_y"` // Vertical FOV in degrees.
	ZNear        float32    `json:"z_near"`
	ZFar         float32    `json:"z_far"`
	FocalLength  float32    `json:"focal_length"`
	ApertureSize float32    `json:"aperture_size"`
}

// Camera is a tagged union. Exactly one variant is set.
type Camera struct {
	Perspective *PerspectiveCamera `json:"perspective,omitempty"`
}

func (c *Camera) Name() string {
	if c.Perspective != nil {
		return c.Perspective.Name
	}
	return ""
}
