package shaders

// Descriptor set indices. The order is a binary contract with the compiled
// shader program and must match set qualifiers in the GLSL sources.
const (
	SetAccelerationStructure = 0
	SetCamera                = 1
	SetStorageImage          = 2
	SetMeshData              = 3
	SetImageTextures         = 4
	SetConstantColours       = 5
	SetMaterials             = 6
	SetProceduralTextures    = 7
	SetSky                   = 8
	SetLightAliasTable       = 9

	SetCount = 10
)

// Material type tags as the closest-hit shader reads them.
const (
	MatTypeNone         uint32 = 0
	MatTypeLambertian   uint32 = 1
	MatTypeMetal        uint32 = 2
	MatTypeDielectric   uint32 = 3
	MatTypeDiffuseLight uint32 = 4
)

// Material property value type tags.
const (
	MatPropValueTypeRGB     uint32 = 0
	MatPropValueTypeImage   uint32 = 1
	MatPropValueTypeChecker uint32 = 2
	MatPropValueTypeNoise   uint32 = 3
)

// Sky type tags as the miss shader reads them.
const (
	SkyTypeNone             uint32 = 0
	SkyTypeSolid            uint32 = 1
	SkyTypeVerticalGradient uint32 = 2
)
