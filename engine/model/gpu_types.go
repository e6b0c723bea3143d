package model

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
)

// GPUVertex is the GPU-aligned representation of a single mesh vertex. Static and skinned meshes share
// the layout; static vertices carry zero weights, which the vertex shader treats as the identity skin.
// Size: 80 bytes (tightly packed, 4-byte aligned).
type GPUVertex struct {
	Position [3]float32 // offset  0: vertex position in model space (12 bytes)
	Normal   [3]float32 // offset 12: vertex normal (12 bytes)
	TexCoord [2]float32 // offset 24: UV texture coordinate (8 bytes)
	Tangent  [4]float32 // offset 32: tangent vector (xyz) + handedness (w) (16 bytes)
	Joints   [4]uint32  // offset 48: indices into the skin's joint list (16 bytes)
	Weights  [4]float32 // offset 64: blend weights for each joint (16 bytes)
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload.
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, 80)
	g.put(buf)
	return buf
}

func (g *GPUVertex) put(buf []byte) {
	f := func(off int, v float32) { binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v)) }
	for i := 0; i < 3; i++ {
		f(i*4, g.Position[i])
		f(12+i*4, g.Normal[i])
	}
	f(24, g.TexCoord[0])
	f(28, g.TexCoord[1])
	for i := 0; i < 4; i++ {
		f(32+i*4, g.Tangent[i])
		binary.LittleEndian.PutUint32(buf[48+i*4:], g.Joints[i])
		f(64+i*4, g.Weights[i])
	}
}

// MarshalVertices serializes a vertex slice back to back.
//
// Parameters:
//   - vertices: the vertices to serialize
//
// Returns:
//   - []byte: 80 bytes per vertex
func MarshalVertices(vertices []GPUVertex) []byte {
	buf := make([]byte, 80*len(vertices))
	for i := range vertices {
		vertices[i].put(buf[i*80:])
	}
	return buf
}

// MarshalIndices serializes uint32 indices little-endian.
//
// Parameters:
//   - indices: the indices to serialize
//
// Returns:
//   - []byte: 4 bytes per index
func MarshalIndices(indices []uint32) []byte {
	buf := make([]byte, 4*len(indices))
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}

// VertexBinding describes GPUVertex as vertex input binding 0.
//
// Returns:
//   - gpu.VertexBinding: the per-vertex binding with locations 0 through 5
func VertexBinding() gpu.VertexBinding {
	return gpu.VertexBinding{
		Binding: 0,
		Stride:  80,
		Attributes: []gpu.VertexAttribute{
			{Location: 0, Format: gpu.VertexFloat32x3, Offset: 0},
			{Location: 1, Format: gpu.VertexFloat32x3, Offset: 12},
			{Location: 2, Format: gpu.VertexFloat32x2, Offset: 24},
			{Location: 3, Format: gpu.VertexFloat32x4, Offset: 32},
			{Location: 4, Format: gpu.VertexUint32x4, Offset: 48},
			{Location: 5, Format: gpu.VertexFloat32x4, Offset: 64},
		},
	}
}

// GPUInstance is the per-instance payload of the instanced geometry pipeline, read from vertex binding 1.
// Size: 112 bytes (tightly packed, 4-byte aligned).
type GPUInstance struct {
	Model    [16]float32 // offset  0: instance model matrix, column-major (64 bytes)
	Rotation [4]float32  // offset 64: instance rotation quaternion (x, y, z, w) (16 bytes)
	Color    [4]float32  // offset 80: RGBA tint multiplied into the base colour (16 bytes)
	Hologram [4]float32  // offset 96: x is 1 for hologram shading, yzw unused (16 bytes)
}

// Size returns the size of the GPUInstance struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUInstance) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUInstance struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 112-byte buffer ready for GPU upload.
func (g *GPUInstance) Marshal() []byte {
	buf := make([]byte, 112)
	g.put(buf)
	return buf
}

func (g *GPUInstance) put(buf []byte) {
	for i, v := range g.Model {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.Rotation[i]))
		binary.LittleEndian.PutUint32(buf[80+i*4:], math.Float32bits(g.Color[i]))
		binary.LittleEndian.PutUint32(buf[96+i*4:], math.Float32bits(g.Hologram[i]))
	}
}

// MarshalInstances serializes an instance slice back to back.
//
// Parameters:
//   - instances: the instances to serialize
//
// Returns:
//   - []byte: 112 bytes per instance
func MarshalInstances(instances []GPUInstance) []byte {
	buf := make([]byte, 112*len(instances))
	for i := range instances {
		instances[i].put(buf[i*112:])
	}
	return buf
}

// InstanceBinding describes GPUInstance as per-instance vertex input binding 1.
//
// Returns:
//   - gpu.VertexBinding: the per-instance binding with locations 6 through 12
func InstanceBinding() gpu.VertexBinding {
	return gpu.VertexBinding{
		Binding:     1,
		Stride:      112,
		PerInstance: true,
		Attributes: []gpu.VertexAttribute{
			{Location: 6, Format: gpu.VertexFloat32x4, Offset: 0},
			{Location: 7, Format: gpu.VertexFloat32x4, Offset: 16},
			{Location: 8, Format: gpu.VertexFloat32x4, Offset: 32},
			{Location: 9, Format: gpu.VertexFloat32x4, Offset: 48},
			{Location: 10, Format: gpu.VertexFloat32x4, Offset: 64},
			{Location: 11, Format: gpu.VertexFloat32x4, Offset: 80},
			{Location: 12, Format: gpu.VertexFloat32x4, Offset: 96},
		},
	}
}
