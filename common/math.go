package common

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// PutMat4 writes a column-major 4x4 matrix into buf as 64 little-endian float32 bytes.
//
// Parameters:
//   - buf: destination slice (must be at least 64 bytes)
//   - m: the matrix to write
func PutMat4(buf []byte, m mgl32.Mat4) {
	for i, v := range m {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}

// Mat4Bytes packs matrices back to back into a freshly allocated byte slice.
//
// Parameters:
//   - mats: the matrices to pack
//
// Returns:
//   - []byte: 64 bytes per matrix
func Mat4Bytes(mats ...mgl32.Mat4) []byte {
	buf := make([]byte, 64*len(mats))
	for i, m := range mats {
		PutMat4(buf[i*64:], m)
	}
	return buf
}

// Perspective creates a right-handed perspective projection mapping depth to the [0, 1] clip range
// used by both WebGPU and Vulkan. Vulkan's clip space points Y down, so flipY negates the Y scale.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//   - flipY: true to flip the Y axis for Vulkan clip space
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func Perspective(fovY, aspect, near, far float32, flipY bool) mgl32.Mat4 {
	f := 1.0 / float32(math.Tan(float64(fovY)/2.0))
	var out mgl32.Mat4
	out[0] = f / aspect
	out[5] = f
	if flipY {
		out[5] = -f
	}
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	return out
}

// Lerp3 linearly interpolates between two vectors as v0*(1-a) + v1*a, which returns v0 and v1 exactly at a=0 and a=1.
//
// Parameters:
//   - v0: the value at a=0
//   - v1: the value at a=1
//   - a: the blend factor
//
// Returns:
//   - mgl32.Vec3: the interpolated vector
func Lerp3(v0, v1 mgl32.Vec3, a float32) mgl32.Vec3 {
	return v0.Mul(1 - a).Add(v1.Mul(a))
}

// Vec4ToQuat converts an (x, y, z, w) vector to a quaternion.
func Vec4ToQuat(v mgl32.Vec4) mgl32.Quat {
	return mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}
}

// QuatToVec4 converts a quaternion to an (x, y, z, w) vector, the layout glTF and the shaders use.
func QuatToVec4(q mgl32.Quat) mgl32.Vec4 {
	return mgl32.Vec4{q.V[0], q.V[1], q.V[2], q.W}
}
