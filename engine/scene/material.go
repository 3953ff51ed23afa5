package scene

// Material property values reference textures by name. A missing reference
// resolves to the "none" sentinel at compile time and is logged, not fatal.

type LambertianMaterial struct {
	Name   string `json:"name"`
	Albedo string `json:"albedo"`
}

type MetalMaterial struct {
	Name   string `json:"name"`
	Albedo string `json:"albedo"`
	Fuzz   string `json:"fuzz"`
}

type DielectricMaterial struct {
	Name            string  `json:"name"`
	RefractionIndex float32 `json:"refraction_index"`
}

type DiffuseLightMaterial struct {
	Name string `json:"name"`
	Emit string `json:"emit"`
}

// Material is a tagged union. Exactly one variant is set. Material names are
// unique within their own variant's table.
type Material struct {
	Lambertian   *LambertianMaterial   `json:"lambertian,omitempty"`
	Metal        *MetalMaterial        `json:"metal,omitempty"`
	Dielectric   *DielectricMaterial   `json:"dielectric,omitempty"`
	DiffuseLight *DiffuseLightMaterial `json:"diffuse_light,omitempty"`
}

func (m *Material) Name() string {
	switch {
	case m.Lambertian != nil:
		return m.Lambertian.Name
	case m.Metal != nil:
		return m.Metal.Name
	case m.Dielectric != nil:
		return m.Dielectric.Name
	case m.DiffuseLight != nil:
		return m.DiffuseLight.Name
	}
	return ""
}
