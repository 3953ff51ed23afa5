package shaders

import (
	"encoding/binary"
)

// RayGenPushConstants drive the ray-generation stage. The light sampling
// statistics ride along here because ray generation owns the light sampling
// loop.
type RayGenPushConstants struct {
	Resolution         [2]uint32
	SamplesPerPixel    uint32
	SampleBatches      uint32
	SampleBatch        uint32
	MaxRayDepth        uint32
	LightTriangleCount uint32
	LightTotalArea     float32
}

const RayGenPushConstantsSize = 32

func (p *RayGenPushConstants) Marshal(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:], p.Resolution[0])
	binary.LittleEndian.PutUint32(dst[4:], p.Resolution[1])
	binary.LittleEndian.PutUint32(dst[8:], p.SamplesPerPixel)
	binary.LittleEndian.PutUint32(dst[12:], p.SampleBatches)
	binary.LittleEndian.PutUint32(dst[16:], p.SampleBatch)
	binary.LittleEndian.PutUint32(dst[20:], p.MaxRayDepth)
	binary.LittleEndian.PutUint32(dst[24:], p.LightTriangleCount)
	putFloat32(dst[28:], p.LightTotalArea)
}

// ClosestHitPushConstants hand the closest-hit stage the sizes of every
// resource table it indexes.
type ClosestHitPushConstants struct {
	MeshCount                 uint32
	ImageTextureCount         uint32
	ConstantColourCount       uint32
	CheckerTextureCount       uint32
	NoiseTextureCount         uint32
	LambertianMaterialCount   uint32
	MetalMaterialCount        uint32
	DielectricMaterialCount   uint32
	DiffuseLightMaterialCount uint32
}

const ClosestHitPushConstantsSize = 36

func (p *ClosestHitPushConstants) Marshal(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:], p.MeshCount)
	binary.LittleEndian.PutUint32(dst[4:], p.ImageTextureCount)
	binary.LittleEndian.PutUint32(dst[8:], p.ConstantColourCount)
	binary.LittleEndian.PutUint32(dst[12:], p.CheckerTextureCount)
	binary.LittleEndian.PutUint32(dst[16:], p.NoiseTextureCount)
	binary.LittleEndian.PutUint32(dst[20:], p.LambertianMaterialCount)
	binary.LittleEndian.PutUint32(dst[24:], p.MetalMaterialCount)
	binary.LittleEndian.PutUint32(dst[28:], p.DielectricMaterialCount)
	binary.LittleEndian.PutUint32(dst[32:], p.DiffuseLightMaterialCount)
}

// PushConstants aggregates both stage blocks. The ray-gen block always comes
// first; offsets are byte exact against the pipeline layout.
type PushConstants struct {
	RayGen     RayGenPushConstants
	ClosestHit ClosestHitPushConstants
}

const (
	RayGenPushConstantsOffset     = 0
	ClosestHitPushConstantsOffset = RayGenPushConstantsSize
	PushConstantsSize             = RayGenPushConstantsSize + ClosestHitPushConstantsSize
)

func (p *PushConstants) Marshal() []byte {
	out := make([]byte, PushConstantsSize)
	p.RayGen.Marshal(out[RayGenPushConstantsOffset:])
	p.ClosestHit.Marshal(out[ClosestHitPushConstantsOffset:])
	return out
}
