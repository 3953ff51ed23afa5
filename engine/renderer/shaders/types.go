package shaders

import (
	"encoding/binary"
	"math"
)

// The structs in this file mirror std430 blocks in the shader sources field
// for field. Marshal methods produce the exact byte layout the GPU reads;
// field order must never change without rebuilding the shader program.

// MeshVertex packs position and normal with the texture coordinates in the
// padding slots so the struct stays 32 bytes.
type MeshVertex struct {
	P [3]float32
	U float32
	N [3]float32
	V float32
}

const MeshVertexSize = 32

func (m *MeshVertex) Marshal(dst []byte) {
	putFloat32s(dst[0:], m.P[:])
	putFloat32(dst[12:], m.U)
	putFloat32s(dst[16:], m.N[:])
	putFloat32(dst[28:], m.V)
}

// MeshRecord describes one mesh's slice of the packed vertex and index
// buffers plus its resolved material.
type MeshRecord struct {
	VertexBufferSize uint32
	IndexBufferSize  uint32
	MaterialType     uint32
	MaterialIndex    uint32
}

const MeshRecordSize = 16

func (m *MeshRecord) Marshal(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:], m.VertexBufferSize)
	binary.LittleEndian.PutUint32(dst[4:], m.IndexBufferSize)
	binary.LittleEndian.PutUint32(dst[8:], m.MaterialType)
	binary.LittleEndian.PutUint32(dst[12:], m.MaterialIndex)
}

// Camera is the per-batch uniform block.
type Camera struct {
	ViewProj     [16]float32
	ViewInverse  [16]float32
	ProjInverse  [16]float32
	FocalLength  float32
	ApertureSize float32
}

const CameraSize = 3*64 + 8

func (c *Camera) Marshal(dst []byte) {
	putFloat32s(dst[0:], c.ViewProj[:])
	putFloat32s(dst[64:], c.ViewInverse[:])
	putFloat32s(dst[128:], c.ProjInverse[:])
	putFloat32(dst[192:], c.FocalLength)
	putFloat32(dst[196:], c.ApertureSize)
}

// MaterialPropertyValue resolves a material property to a typed table slot.
type MaterialPropertyValue struct {
	PropValueType uint32
	Index         uint32
}

const MaterialPropertyValueSize = 8

func (v *MaterialPropertyValue) Marshal(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:], v.PropValueType)
	binary.LittleEndian.PutUint32(dst[4:], v.Index)
}

type LambertianMaterial struct {
	Albedo MaterialPropertyValue
}

const LambertianMaterialSize = MaterialPropertyValueSize

func (m *LambertianMaterial) Marshal(dst []byte) {
	m.Albedo.Marshal(dst)
}

type MetalMaterial struct {
	Albedo MaterialPropertyValue
	Fuzz   MaterialPropertyValue
}

const MetalMaterialSize = 2 * MaterialPropertyValueSize

func (m *MetalMaterial) Marshal(dst []byte) {
	m.Albedo.Marshal(dst[0:])
	m.Fuzz.Marshal(dst[8:])
}

type DielectricMaterial struct {
	RefractionIndex float32
}

const DielectricMaterialSize = 4

func (m *DielectricMaterial) Marshal(dst []byte) {
	putFloat32(dst, m.RefractionIndex)
}

type DiffuseLightMaterial struct {
	Emit MaterialPropertyValue
}

const DiffuseLightMaterialSize = MaterialPropertyValueSize

func (m *DiffuseLightMaterial) Marshal(dst []byte) {
	m.Emit.Marshal(dst)
}

type CheckerTexture struct {
	Scale float32
	Odd   MaterialPropertyValue
	Even  MaterialPropertyValue
}

const CheckerTextureSize = 4 + 2*MaterialPropertyValueSize

func (t *CheckerTexture) Marshal(dst []byte) {
	putFloat32(dst[0:], t.Scale)
	t.Odd.Marshal(dst[4:])
	t.Even.Marshal(dst[12:])
}

type NoiseTexture struct {
	Scale float32
}

const NoiseTextureSize = 4

func (t *NoiseTexture) Marshal(dst []byte) {
	putFloat32(dst, t.Scale)
}

// Sky is the miss-shader uniform block. The gradient fields sit in the
// vec3 padding slots to keep the block at two 16-byte rows plus one.
type Sky struct {
	Solid   [3]float32
	SkyType uint32
	VTop    [3]float32
	VFactor float32
	VBottom [3]float32
	padding uint32
}

const SkySize = 48

func (s *Sky) Marshal(dst []byte) {
	putFloat32s(dst[0:], s.Solid[:])
	binary.LittleEndian.PutUint32(dst[12:], s.SkyType)
	putFloat32s(dst[16:], s.VTop[:])
	putFloat32(dst[28:], s.VFactor)
	putFloat32s(dst[32:], s.VBottom[:])
	binary.LittleEndian.PutUint32(dst[44:], s.padding)
}

func SkyNone() Sky {
	return Sky{SkyType: SkyTypeNone}
}

func SkySolid(rgb [3]float32) Sky {
	return Sky{SkyType: SkyTypeSolid, Solid: rgb}
}

func SkyVerticalGradient(factor float32, top, bottom [3]float32) Sky {
	return Sky{SkyType: SkyTypeVerticalGradient, VTop: top, VFactor: factor, VBottom: bottom}
}

// LightAliasEntry is one slot of the light-sampling alias table.
type LightAliasEntry struct {
	Probability float32
	Alias       uint32
	MeshID      uint32
	PrimitiveID uint32
}

const LightAliasEntrySize = 16

func (e *LightAliasEntry) Marshal(dst []byte) {
	putFloat32(dst[0:], e.Probability)
	binary.LittleEndian.PutUint32(dst[4:], e.Alias)
	binary.LittleEndian.PutUint32(dst[8:], e.MeshID)
	binary.LittleEndian.PutUint32(dst[12:], e.PrimitiveID)
}

// MarshalSlice encodes a slice of marshallable records into one buffer.
func MarshalSlice[T any](items []T, size int, marshal func(*T, []byte)) []byte {
	out := make([]byte, len(items)*size)
	for i := range items {
		marshal(&items[i], out[i*size:])
	}
	return out
}

func putFloat32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}

func putFloat32s(dst []byte, vs []float32) {
	for i, v := range vs {
		putFloat32(dst[i*4:], v)
	}
}
