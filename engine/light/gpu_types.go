package light

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// MaxGPULights is the number of lights the lighting subpass evaluates. Enabled lights beyond it are
// dropped in list order.
const MaxGPULights = 8

// GPULight is the GPU-aligned representation of a single light source. Size: 48 bytes.
type GPULight struct {
	// Position is the direction for directional lights or the position for point lights. W is 0 or 1.
	Position [4]float32
	// Color is the RGB colour with the intensity in W.
	Color [4]float32
	// Params holds the point light range in X.
	Params [4]float32
}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (48)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

func (g *GPULight) put(buf []byte) {
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.Position[i]))
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.Color[i]))
		binary.LittleEndian.PutUint32(buf[32+i*4:], math.Float32bits(g.Params[i]))
	}
}

// GPULights is the lights uniform bound at set 1 of the lighting subpass. Size: 432 bytes.
type GPULights struct {
	Ambient        [4]float32             // offset  0
	CameraPosition [4]float32             // offset 16
	Count          [4]uint32              // offset 32: x holds the light count
	Lights         [MaxGPULights]GPULight // offset 48
}

// Size returns the size of the GPULights struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (432)
func (g *GPULights) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULights struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 432-byte buffer ready for GPU upload
func (g *GPULights) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.Ambient[i]))
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.CameraPosition[i]))
		binary.LittleEndian.PutUint32(buf[32+i*4:], g.Count[i])
	}
	lightSize := (&GPULight{}).Size()
	for i := range g.Lights {
		g.Lights[i].put(buf[48+i*lightSize:])
	}
	return buf
}

// ToGPULight converts a Light to its GPU-aligned representation.
//
// Parameters:
//   - l: the Light to convert
//
// Returns:
//   - GPULight: the GPU-aligned representation
func ToGPULight(l Light) GPULight {
	g := GPULight{
		Color:  [4]float32{l.Color[0], l.Color[1], l.Color[2], l.Intensity},
		Params: [4]float32{l.Range, 0, 0, 0},
	}
	switch l.Type {
	case LightTypePoint:
		g.Position = l.Position.Vec4(1)
	default:
		g.Position = l.Direction.Vec4(0)
	}
	return g
}

// NewGPULights packs the enabled lights, up to MaxGPULights, together with the ambient colour and the
// camera position.
//
// Parameters:
//   - lights: the lights to pack (only enabled lights are included)
//   - ambient: the ambient colour as RGB
//   - cameraPosition: the world-space eye position used for specular terms
//
// Returns:
//   - GPULights: the uniform contents
func NewGPULights(lights []Light, ambient, cameraPosition [3]float32) GPULights {
	g := GPULights{
		Ambient:        [4]float32{ambient[0], ambient[1], ambient[2], 1},
		CameraPosition: [4]float32{cameraPosition[0], cameraPosition[1], cameraPosition[2], 1},
	}
	n := 0
	for _, l := range lights {
		if !l.Enabled() {
			continue
		}
		if n == MaxGPULights {
			break
		}
		g.Lights[n] = ToGPULight(l)
		n++
	}
	g.Count[0] = uint32(n)
	return g
}
