package loader

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// errAccessorType is returned when an accessor holds a component layout the stream cannot use.
var errAccessorType = errors.New("unexpected accessor layout")

// readAccessor reads accessor index of doc into its natural Go slice type, e.g. [][3]float32 for a
// float VEC3 or []uint16 for an unsigned short SCALAR.
func readAccessor(doc *gltf.Document, index int) (any, bool, error) {
	if index < 0 || index >= len(doc.Accessors) {
		return nil, false, fmt.Errorf("accessor %d out of range", index)
	}
	acc := doc.Accessors[index]
	data, err := modeler.ReadAccessor(doc, acc, nil)
	if err != nil {
		return nil, false, fmt.Errorf("accessor %d: %w", index, err)
	}
	return data, acc.Normalized, nil
}

func readVec3s(doc *gltf.Document, index int) ([]mgl32.Vec3, error) {
	data, _, err := readAccessor(doc, index)
	if err != nil {
		return nil, err
	}
	src, ok := data.([][3]float32)
	if !ok {
		return nil, fmt.Errorf("accessor %d: %w: %T", index, errAccessorType, data)
	}
	out := make([]mgl32.Vec3, len(src))
	for i, v := range src {
		out[i] = mgl32.Vec3(v)
	}
	return out, nil
}

func readVec2s(doc *gltf.Document, index int) ([]mgl32.Vec2, error) {
	data, normalized, err := readAccessor(doc, index)
	if err != nil {
		return nil, err
	}
	switch src := data.(type) {
	case [][2]float32:
		out := make([]mgl32.Vec2, len(src))
		for i, v := range src {
			out[i] = mgl32.Vec2(v)
		}
		return out, nil
	case [][2]uint8:
		if normalized {
			out := make([]mgl32.Vec2, len(src))
			for i, v := range src {
				out[i] = mgl32.Vec2{float32(v[0]) / 255, float32(v[1]) / 255}
			}
			return out, nil
		}
	case [][2]uint16:
		if normalized {
			out := make([]mgl32.Vec2, len(src))
			for i, v := range src {
				out[i] = mgl32.Vec2{float32(v[0]) / 65535, float32(v[1]) / 65535}
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("accessor %d: %w: %T", index, errAccessorType, data)
}

// readVec4s reads float VEC4 data, or normalized unsigned VEC4 data such as packed weights.
func readVec4s(doc *gltf.Document, index int) ([]mgl32.Vec4, error) {
	data, normalized, err := readAccessor(doc, index)
	if err != nil {
		return nil, err
	}
	switch src := data.(type) {
	case [][4]float32:
		out := make([]mgl32.Vec4, len(src))
		for i, v := range src {
			out[i] = mgl32.Vec4(v)
		}
		return out, nil
	case [][4]uint8:
		if normalized {
			out := make([]mgl32.Vec4, len(src))
			for i, v := range src {
				out[i] = mgl32.Vec4{float32(v[0]) / 255, float32(v[1]) / 255, float32(v[2]) / 255, float32(v[3]) / 255}
			}
			return out, nil
		}
	case [][4]uint16:
		if normalized {
			out := make([]mgl32.Vec4, len(src))
			for i, v := range src {
				out[i] = mgl32.Vec4{float32(v[0]) / 65535, float32(v[1]) / 65535, float32(v[2]) / 65535, float32(v[3]) / 65535}
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("accessor %d: %w: %T", index, errAccessorType, data)
}

func readJoints(doc *gltf.Document, index int) ([][4]uint32, error) {
	data, _, err := readAccessor(doc, index)
	if err != nil {
		return nil, err
	}
	switch src := data.(type) {
	case [][4]uint8:
		out := make([][4]uint32, len(src))
		for i, v := range src {
			out[i] = [4]uint32{uint32(v[0]), uint32(v[1]), uint32(v[2]), uint32(v[3])}
		}
		return out, nil
	case [][4]uint16:
		out := make([][4]uint32, len(src))
		for i, v := range src {
			out[i] = [4]uint32{uint32(v[0]), uint32(v[1]), uint32(v[2]), uint32(v[3])}
		}
		return out, nil
	}
	return nil, fmt.Errorf("accessor %d: %w: %T", index, errAccessorType, data)
}

func readIndices(doc *gltf.Document, index int) ([]uint32, error) {
	data, _, err := readAccessor(doc, index)
	if err != nil {
		return nil, err
	}
	switch src := data.(type) {
	case []uint8:
		out := make([]uint32, len(src))
		for i, v := range src {
			out[i] = uint32(v)
		}
		return out, nil
	case []uint16:
		out := make([]uint32, len(src))
		for i, v := range src {
			out[i] = uint32(v)
		}
		return out, nil
	case []uint32:
		return src, nil
	}
	return nil, fmt.Errorf("accessor %d: %w: %T", index, errAccessorType, data)
}

func readFloats(doc *gltf.Document, index int) ([]float32, error) {
	data, _, err := readAccessor(doc, index)
	if err != nil {
		return nil, err
	}
	src, ok := data.([]float32)
	if !ok {
		return nil, fmt.Errorf("accessor %d: %w: %T", index, errAccessorType, data)
	}
	return src, nil
}

// readMat4s reads MAT4 data. Accessor matrices are column-major, as is mgl32.Mat4.
func readMat4s(doc *gltf.Document, index int) ([]mgl32.Mat4, error) {
	data, _, err := readAccessor(doc, index)
	if err != nil {
		return nil, err
	}
	src, ok := data.([][4][4]float32)
	if !ok {
		return nil, fmt.Errorf("accessor %d: %w: %T", index, errAccessorType, data)
	}
	out := make([]mgl32.Mat4, len(src))
	for i, m := range src {
		for c := 0; c < 4; c++ {
			for r := 0; r < 4; r++ {
				out[i][c*4+r] = m[c][r]
			}
		}
	}
	return out, nil
}

// readKeyframes reads animation sampler output as Vec4s: VEC3 leaves w at zero, VEC4 and SCALAR are
// taken as-is with SCALAR in x.
func readKeyframes(doc *gltf.Document, index int) ([]mgl32.Vec4, error) {
	data, normalized, err := readAccessor(doc, index)
	if err != nil {
		return nil, err
	}
	switch src := data.(type) {
	case [][3]float32:
		out := make([]mgl32.Vec4, len(src))
		for i, v := range src {
			out[i] = mgl32.Vec4{v[0], v[1], v[2], 0}
		}
		return out, nil
	case []float32:
		out := make([]mgl32.Vec4, len(src))
		for i, v := range src {
			out[i] = mgl32.Vec4{v, 0, 0, 0}
		}
		return out, nil
	case [][4]float32:
		return readVec4s(doc, index)
	case [][4]int8:
		if normalized {
			out := make([]mgl32.Vec4, len(src))
			for i, v := range src {
				for c := range v {
					out[i][c] = max(float32(v[c])/127, -1)
				}
			}
			return out, nil
		}
	case [][4]int16:
		if normalized {
			out := make([]mgl32.Vec4, len(src))
			for i, v := range src {
				for c := range v {
					out[i][c] = max(float32(v[c])/32767, -1)
				}
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("accessor %d: %w: %T", index, errAccessorType, data)
}
