package material

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUMaterialParams is the GPU-aligned uniform read by the geometry fragment shader at set 2, binding 0.
// Size: 80 bytes (five vec4 rows, std140 aligned).
type GPUMaterialParams struct {
	BaseColor [4]float32 // offset  0: base colour factor (16 bytes)
	Emissive  [4]float32 // offset 16: emissive factor, w unused (16 bytes)
	Factors   [4]float32 // offset 32: metallic, roughness, alpha cutoff, unused (16 bytes)
	Textures  [4]uint32  // offset 48: base colour, metallic-roughness, normal, occlusion presence (16 bytes)
	Flags     [4]uint32  // offset 64: emissive presence, alpha mode, double sided, unused (16 bytes)
}

// NewGPUMaterialParams packs material data and texture presence into the uniform layout.
//
// Parameters:
//   - d: the material data
//   - present: which texture slots have a real image bound
//
// Returns:
//   - GPUMaterialParams: the packed uniform
func NewGPUMaterialParams(d Data, present [SlotCount]bool) GPUMaterialParams {
	flag := func(b bool) uint32 {
		if b {
			return 1
		}
		return 0
	}
	return GPUMaterialParams{
		BaseColor: [4]float32(d.BaseColorFactor),
		Emissive:  [4]float32{d.EmissiveFactor[0], d.EmissiveFactor[1], d.EmissiveFactor[2], 0},
		Factors:   [4]float32{d.MetallicFactor, d.RoughnessFactor, d.AlphaCutoff, 0},
		Textures: [4]uint32{
			flag(present[SlotBaseColor]),
			flag(present[SlotMetallicRoughness]),
			flag(present[SlotNormal]),
			flag(present[SlotOcclusion]),
		},
		Flags: [4]uint32{flag(present[SlotEmissive]), uint32(d.AlphaMode), flag(d.DoubleSided), 0},
	}
}

// Size returns the size of the GPUMaterialParams struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUMaterialParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMaterialParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload.
func (g *GPUMaterialParams) Marshal() []byte {
	buf := make([]byte, 80)
	for i, v := range g.BaseColor {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	for i, v := range g.Emissive {
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(v))
	}
	for i, v := range g.Factors {
		binary.LittleEndian.PutUint32(buf[32+i*4:], math.Float32bits(v))
	}
	for i, v := range g.Textures {
		binary.LittleEndian.PutUint32(buf[48+i*4:], v)
	}
	for i, v := range g.Flags {
		binary.LittleEndian.PutUint32(buf[64+i*4:], v)
	}
	return buf
}
