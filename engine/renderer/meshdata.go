package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/geometry"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// AnimatedTransform interpolates between two keyframe placements.
type AnimatedTransform struct {
	Start geometry.DecomposedTransform
	End   geometry.DecomposedTransform
}

// At returns the placement at time t in [0, 1].
func (a *AnimatedTransform) At(t float32) geometry.DecomposedTransform {
	return a.Start.Lerp(a.End, t)
}

// ObjectTransform is either a static placement or an animated one. Exactly
// one field is set.
type ObjectTransform struct {
	Static   *geometry.DecomposedTransform
	Animated *AnimatedTransform
}

// MeshInstance places a mesh into the world.
type MeshInstance struct {
	MeshIndex     uint32
	ObjectToWorld ObjectTransform
}

// matrix returns the 3x4 placement for the acceleration structure. Animated
// instances are placed at their first keyframe; motion blur over the
// structure itself is not modelled.
func (mi *MeshInstance) matrix() [3][4]float32 {
	if mi.ObjectToWorld.Animated != nil {
		return mi.ObjectToWorld.Animated.Start.AccelerationMatrix()
	}
	return mi.ObjectToWorld.Static.AccelerationMatrix()
}

// compileMeshes tessellates every primitive in declaration order and returns
// the meshes together with a name-to-index map. Duplicate names keep the
// first definition.
func compileMeshes(s *scene.Scene) ([]*geometry.Mesh, map[string]uint32, error) {
	meshes := make([]*geometry.Mesh, 0, len(s.Primitives))
	indices := make(map[string]uint32, len(s.Primitives))

	for i := range s.Primitives {
		p := &s.Primitives[i]
		if _, ok := indices[p.Name()]; ok {
			continue
		}
		mesh, err := geometry.FromPrimitive(p)
		if err != nil {
			return nil, nil, err
		}
		indices[p.Name()] = uint32(len(meshes))
		meshes = append(meshes, mesh)
	}

	return meshes, indices, nil
}

// compileInstances resolves the scene's instance list against the mesh
// table. A scene without instances places every mesh once at the identity,
// which keeps simple scenes free of instance boilerplate.
func compileInstances(s *scene.Scene, meshIndices map[string]uint32) ([]MeshInstance, error) {
	if len(s.Instances) == 0 {
		instances := make([]MeshInstance, len(meshIndices))
		for i := range instances {
			t := geometry.IdentityTransform()
			instances[i] = MeshInstance{
				MeshIndex:     uint32(i),
				ObjectToWorld: ObjectTransform{Static: &t},
			}
		}
		return instances, nil
	}

	instances := make([]MeshInstance, 0, len(s.Instances))
	for i := range s.Instances {
		inst := &s.Instances[i]
		meshIndex, ok := meshIndices[inst.Primitive]
		if !ok {
			return nil, fmt.Errorf("renderer: instance %q references unknown primitive %q",
				inst.Name, inst.Primitive)
		}
		t := geometry.DecomposeSceneTransform(inst.Transform)
		instances = append(instances, MeshInstance{
			MeshIndex:     meshIndex,
			ObjectToWorld: ObjectTransform{Static: &t},
		})
	}
	return instances, nil
}

// packVertices concatenates every mesh's vertices in mesh order into the
// shader vertex layout. The shader walks this with per-mesh offsets summed
// from the mesh records.
func packVertices(meshes []*geometry.Mesh) []byte {
	total := 0
	for _, m := range meshes {
		total += len(m.Vertices)
	}
	out := make([]byte, total*shaders.MeshVertexSize)
	off := 0
	for _, m := range meshes {
		for i := range m.Vertices {
			v := &m.Vertices[i]
			sv := shaders.MeshVertex{P: v.Position, U: v.UV[0], N: v.Normal, V: v.UV[1]}
			sv.Marshal(out[off:])
			off += shaders.MeshVertexSize
		}
	}
	return out
}

// packIndices concatenates every mesh's indices in mesh order. Indices stay
// mesh-local; the shader rebases them with the vertex buffer sizes.
func packIndices(meshes []*geometry.Mesh) []byte {
	total := 0
	for _, m := range meshes {
		total += len(m.Indices)
	}
	out := make([]byte, total*4)
	off := 0
	for _, m := range meshes {
		for _, idx := range m.Indices {
			out[off] = byte(idx)
			out[off+1] = byte(idx >> 8)
			out[off+2] = byte(idx >> 16)
			out[off+3] = byte(idx >> 24)
			off += 4
		}
	}
	return out
}

// meshRecordData builds one record per mesh with its buffer spans and the
// resolved material.
func meshRecordData(meshes []*geometry.Mesh, materials *materialSet) []byte {
	records := make([]shaders.MeshRecord, len(meshes))
	for i, m := range meshes {
		matType, matIndex := materials.resolveMesh(m.Name, m.Material)
		records[i] = shaders.MeshRecord{
			VertexBufferSize: uint32(len(m.Vertices)),
			IndexBufferSize:  uint32(len(m.Indices)),
			MaterialType:     matType,
			MaterialIndex:    matIndex,
		}
	}
	core.LogDebug("renderer: %d mesh records", len(records))
	return shaders.MarshalSlice(records, shaders.MeshRecordSize, (*shaders.MeshRecord).Marshal)
}

// deviceGeometry converts the meshes into per-mesh byte blobs for the
// bottom-level acceleration structure builds.
func deviceGeometry(meshes []*geometry.Mesh) []gpu.MeshGeometry {
	out := make([]gpu.MeshGeometry, len(meshes))
	for i, m := range meshes {
		out[i] = gpu.MeshGeometry{
			Vertices:    packVertices([]*geometry.Mesh{m}),
			Indices:     packIndices([]*geometry.Mesh{m}),
			VertexCount: uint32(len(m.Vertices)),
			IndexCount:  uint32(len(m.Indices)),
		}
	}
	return out
}

// instanceRecords flattens instances for the top-level structure build.
func instanceRecords(instances []MeshInstance) []gpu.InstanceRecord {
	out := make([]gpu.InstanceRecord, len(instances))
	for i := range instances {
		out[i] = gpu.InstanceRecord{
			MeshIndex: instances[i].MeshIndex,
			Transform: instances[i].matrix(),
		}
	}
	return out
}
