package scene

import (
	"fmt"
	"path/filepath"
)

type ConstantTexture struct {
	Name string     `json:"name"`
	RGB  [3]float32 `json:"rgb"`
}

type ImageTexture struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// CheckerTexture alternates between two other textures referenced by name.
// Referencing another checker is not allowed.
type CheckerTexture struct {
	Name  string  `json:"name"`
	Scale float32 `json:"scale"`
	Odd   string  `json:"odd"`
	Even  string  `json:"even"`
}

type NoiseTexture struct {
	Name  string  `json:"name"`
	Scale float32 `json:"scale"`
}

// Texture is a tagged union. Exactly one variant is set. Texture names are
// unique across all variants.
type Texture struct {
	Constant *ConstantTexture `json:"constant,omitempty"`
	Image    *ImageTexture    `json:"image,omitempty"`
	Checker  *CheckerTexture  `json:"checker,omitempty"`
	Noise    *NoiseTexture    `json:"noise,omitempty"`
}

func (t *Texture) Name() string {
	switch {
	case t.Constant != nil:
		return t.Constant.Name
	case t.Image != nil:
		return t.Image.Name
	case t.Checker != nil:
		return t.Checker.Name
	case t.Noise != nil:
		return t.Noise.Name
	}
	return ""
}

// Validate checks checker references against the full texture table. Checker
// textures must reference existing textures and must not reference another
// checker, directly or not, so the shader never has to recurse.
func (t *Texture) Validate(all map[string]*Texture) error {
	if t.Checker == nil {
		return nil
	}

	for _, ref := range []string{t.Checker.Odd, t.Checker.Even} {
		other, ok := all[ref]
		if !ok {
			return fmt.Errorf("checker texture '%s' references unknown texture '%s'", t.Checker.Name, ref)
		}
		if other.Checker != nil {
			return fmt.Errorf("checker texture '%s' references checker texture '%s'", t.Checker.Name, ref)
		}
	}

	return nil
}

func (t *Texture) adjustRelativePath(relativeTo string) {
	if t.Image != nil && !filepath.IsAbs(t.Image.Path) {
		t.Image.Path = filepath.Join(relativeTo, t.Image.Path)
	}
}
