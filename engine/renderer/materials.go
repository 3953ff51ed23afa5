package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// materialSet holds one table and one name index per material subtype. A
// mesh stores (type tag, index within type); the shader picks the matching
// table at hit time.
type materialSet struct {
	lambertians  []shaders.LambertianMaterial
	metals       []shaders.MetalMaterial
	dielectrics  []shaders.DielectricMaterial
	diffuseLight []shaders.DiffuseLightMaterial

	lambertianIndices   map[string]uint32
	metalIndices        map[string]uint32
	dielectricIndices   map[string]uint32
	diffuseLightIndices map[string]uint32
}

func newMaterialSet(materials []scene.Material, textures *textureSet) (*materialSet, error) {
	ms := &materialSet{
		lambertianIndices:   make(map[string]uint32),
		metalIndices:        make(map[string]uint32),
		dielectricIndices:   make(map[string]uint32),
		diffuseLightIndices: make(map[string]uint32),
	}

	resolve := func(material, property, texture string) (shaders.MaterialPropertyValue, error) {
		v, ok := textures.resolve(texture)
		if !ok {
			return v, fmt.Errorf("renderer: material %q %s references unknown texture %q",
				material, property, texture)
		}
		return v, nil
	}

	for i := range materials {
		m := &materials[i]
		switch {
		case m.Lambertian != nil:
			albedo, err := resolve(m.Lambertian.Name, "albedo", m.Lambertian.Albedo)
			if err != nil {
				return nil, err
			}
			ms.lambertianIndices[m.Lambertian.Name] = uint32(len(ms.lambertians))
			ms.lambertians = append(ms.lambertians, shaders.LambertianMaterial{Albedo: albedo})

		case m.Metal != nil:
			albedo, err := resolve(m.Metal.Name, "albedo", m.Metal.Albedo)
			if err != nil {
				return nil, err
			}
			fuzz, err := resolve(m.Metal.Name, "fuzz", m.Metal.Fuzz)
			if err != nil {
				return nil, err
			}
			ms.metalIndices[m.Metal.Name] = uint32(len(ms.metals))
			ms.metals = append(ms.metals, shaders.MetalMaterial{Albedo: albedo, Fuzz: fuzz})

		case m.Dielectric != nil:
			ms.dielectricIndices[m.Dielectric.Name] = uint32(len(ms.dielectrics))
			ms.dielectrics = append(ms.dielectrics, shaders.DielectricMaterial{
				RefractionIndex: m.Dielectric.RefractionIndex,
			})

		case m.DiffuseLight != nil:
			emit, err := resolve(m.DiffuseLight.Name, "emit", m.DiffuseLight.Emit)
			if err != nil {
				return nil, err
			}
			ms.diffuseLightIndices[m.DiffuseLight.Name] = uint32(len(ms.diffuseLight))
			ms.diffuseLight = append(ms.diffuseLight, shaders.DiffuseLightMaterial{Emit: emit})
		}
	}

	return ms, nil
}

// lookup resolves a material name to its (type tag, index) pair. An unknown
// name resolves to the none sentinel; content can legitimately reference
// materials that are still being authored.
func (ms *materialSet) lookup(name string) (uint32, uint32) {
	if idx, ok := ms.lambertianIndices[name]; ok {
		return shaders.MatTypeLambertian, idx
	}
	if idx, ok := ms.metalIndices[name]; ok {
		return shaders.MatTypeMetal, idx
	}
	if idx, ok := ms.dielectricIndices[name]; ok {
		return shaders.MatTypeDielectric, idx
	}
	if idx, ok := ms.diffuseLightIndices[name]; ok {
		return shaders.MatTypeDiffuseLight, idx
	}
	return shaders.MatTypeNone, 0
}

// isDiffuseLight reports whether the named material emits light.
func (ms *materialSet) isDiffuseLight(name string) bool {
	_, ok := ms.diffuseLightIndices[name]
	return ok
}

// resolveMesh looks up a mesh's material and logs when it falls back to the
// none sentinel.
func (ms *materialSet) resolveMesh(meshName, materialName string) (uint32, uint32) {
	matType, matIndex := ms.lookup(materialName)
	if matType == shaders.MatTypeNone {
		core.LogInfo("renderer: mesh %q material %q not found", meshName, materialName)
	}
	return matType, matIndex
}

// The typed buffers may never be empty; each gets a placeholder record when
// its table has no entries and the push-constant count stays zero.

func (ms *materialSet) lambertianData() []byte {
	items := ms.lambertians
	if len(items) == 0 {
		items = []shaders.LambertianMaterial{{}}
	}
	return shaders.MarshalSlice(items, shaders.LambertianMaterialSize, (*shaders.LambertianMaterial).Marshal)
}

func (ms *materialSet) metalData() []byte {
	items := ms.metals
	if len(items) == 0 {
		items = []shaders.MetalMaterial{{}}
	}
	return shaders.MarshalSlice(items, shaders.MetalMaterialSize, (*shaders.MetalMaterial).Marshal)
}

func (ms *materialSet) dielectricData() []byte {
	items := ms.dielectrics
	if len(items) == 0 {
		items = []shaders.DielectricMaterial{{RefractionIndex: 1}}
	}
	return shaders.MarshalSlice(items, shaders.DielectricMaterialSize, (*shaders.DielectricMaterial).Marshal)
}

func (ms *materialSet) diffuseLightData() []byte {
	items := ms.diffuseLight
	if len(items) == 0 {
		items = []shaders.DiffuseLightMaterial{{}}
	}
	return shaders.MarshalSlice(items, shaders.DiffuseLightMaterialSize, (*shaders.DiffuseLightMaterial).Marshal)
}
