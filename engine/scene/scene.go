package scene

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/lumen/engine/core"
)

const (
	MaxSamplesPerPixel uint32 = 64
	MaxSampleBatches   uint32 = 32
)

// RenderSettings selects the active camera and the progressive sampling
// parameters. Values above the caps are clamped at load time, not rejected.
type RenderSettings struct {
	Camera          string `json:"camera"`
	SamplesPerPixel uint32 `json:"samples_per_pixel"`
	SampleBatches   uint32 `json:"sample_batches"`
	MaxRayDepth     uint32 `json:"max_ray_depth"`
	// AspectRatio sizes the initial window. Zero leaves the window at the
	// configured size.
	AspectRatio float32 `json:"aspect_ratio,omitempty"`
}

// Scene is the top-level declarative description loaded from a JSON file.
type Scene struct {
	Cameras    []Camera       `json:"cameras"`
	Textures   []Texture      `json:"textures"`
	Materials  []Material     `json:"materials"`
	Primitives []Primitive    `json:"primitives"`
	Instances  []Instance     `json:"instances"`
	Sky        *Sky           `json:"sky,omitempty"`
	Render     RenderSettings `json:"render"`
}

// Load reads and validates a scene file. Relative texture paths are resolved
// against the scene file's own directory so a scene can be moved together
// with its assets.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scene: reading %s: %w", path, err)
	}
	var s Scene
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("scene: parsing %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range s.Textures {
		s.Textures[i].adjustRelativePath(dir)
	}
	s.enforceRenderLimits()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes the scene as indented JSON. Used by the generation tooling.
func (s *Scene) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("scene: encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("scene: writing %s: %w", path, err)
	}
	return nil
}

func (s *Scene) enforceRenderLimits() {
	if s.Render.SamplesPerPixel > MaxSamplesPerPixel {
		core.LogInfo("scene: samples_per_pixel %d exceeds limit, clamping to %d",
			s.Render.SamplesPerPixel, MaxSamplesPerPixel)
		s.Render.SamplesPerPixel = MaxSamplesPerPixel
	}
	if s.Render.SampleBatches > MaxSampleBatches {
		core.LogInfo("scene: sample_batches %d exceeds limit, clamping to %d",
			s.Render.SampleBatches, MaxSampleBatches)
		s.Render.SampleBatches = MaxSampleBatches
	}
}

// TextureMap returns textures keyed by name. Duplicate names keep the first
// occurrence and log a warning.
func (s *Scene) TextureMap() map[string]*Texture {
	m := make(map[string]*Texture, len(s.Textures))
	for i := range s.Textures {
		t := &s.Textures[i]
		name := t.Name()
		if _, ok := m[name]; ok {
			core.LogWarn("scene: duplicate texture name %q, keeping first definition", name)
			continue
		}
		m[name] = t
	}
	return m
}

// PrimitiveMap returns primitives keyed by name, first occurrence wins.
func (s *Scene) PrimitiveMap() map[string]*Primitive {
	m := make(map[string]*Primitive, len(s.Primitives))
	for i := range s.Primitives {
		p := &s.Primitives[i]
		if _, ok := m[p.Name()]; ok {
			core.LogWarn("scene: duplicate primitive name %q, keeping first definition", p.Name())
			continue
		}
		m[p.Name()] = p
	}
	return m
}

// ActiveCamera resolves the camera named by the render settings. A missing
// camera is a content error, not something to fall back from.
func (s *Scene) ActiveCamera() (*Camera, error) {
	if len(s.Cameras) == 0 {
		return nil, fmt.Errorf("scene: no cameras defined")
	}
	for i := range s.Cameras {
		if s.Cameras[i].Name() == s.Render.Camera {
			return &s.Cameras[i], nil
		}
	}
	return nil, fmt.Errorf("scene: camera %q is not specified in cameras", s.Render.Camera)
}

// Validate checks cross references between the scene tables.
func (s *Scene) Validate() error {
	textures := s.TextureMap()
	for i := range s.Textures {
		if err := s.Textures[i].Validate(textures); err != nil {
			return err
		}
	}
	primitives := s.PrimitiveMap()
	for _, inst := range s.Instances {
		if _, ok := primitives[inst.Primitive]; !ok {
			return fmt.Errorf("scene: instance %q references unknown primitive %q", inst.Name, inst.Primitive)
		}
	}
	if _, err := s.ActiveCamera(); err != nil {
		return err
	}
	return nil
}
