package model

import (
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/descriptor_provider"
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a decomposed translation, rotation and scale.
type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

// IdentityTransform returns the transform with no translation, no rotation and unit scale.
func IdentityTransform() Transform {
	return Transform{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
}

// Matrix builds the T·R·S matrix of the transform.
//
// Returns:
//   - mgl32.Mat4: the composed matrix
func (t Transform) Matrix() mgl32.Mat4 {
	return mgl32.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2]).
		Mul4(t.Rotation.Mat4()).
		Mul4(mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Primitive is one indexed draw range of a node's mesh inside the renderer's shared vertex and index buffers.
type Primitive struct {
	FirstIndex   uint32
	IndexCount   uint32
	VertexOffset int32
	// Material indexes Model.Materials.
	Material int
	Bounds   Bounds
}

// Node is one entry of a model's node arena. Relationships are indices into the same arena.
type Node struct {
	ID   int
	Name string
	Mesh []Primitive
	// Skin indexes Model.Skins, or -1.
	Skin int
	// Parent is the parent node index, or -1 for roots.
	Parent   int
	Children []int
	Local    Transform
	// Global is only valid after UpdateGlobalTransforms has run following the last change to any Local.
	Global Transform
}

// GlobalMatrix returns the T·R·S matrix of the node's global transform.
//
// Returns:
//   - mgl32.Mat4: the node's model-to-world matrix
func (n *Node) GlobalMatrix() mgl32.Mat4 {
	return n.Global.Matrix()
}

// Skin binds a set of joint nodes to the vertices of a skinned mesh.
type Skin struct {
	Name string
	// Joints are node indices, one per joint slot referenced by GPUVertex.Joints.
	Joints              []int
	InverseBindMatrices []mgl32.Mat4
	// SkeletonRoot is the common root node of the joints, or -1.
	SkeletonRoot int
	// SkinnedNode is the node whose mesh uses this skin, or -1 when no node references it.
	SkinnedNode int
	// Provider holds the joint storage buffer and its descriptor set once the model is loaded.
	Provider descriptor_provider.Provider
}

// Path is the node property an animation channel writes.
type Path int

const (
	PathTranslation Path = iota
	PathRotation
	PathScale
	PathWeights
)

// String returns the glTF name of the path.
func (p Path) String() string {
	switch p {
	case PathTranslation:
		return "translation"
	case PathRotation:
		return "rotation"
	case PathScale:
		return "scale"
	case PathWeights:
		return "weights"
	default:
		return "unknown"
	}
}

// Interpolation is the keyframe interpolation mode of a sampler.
type Interpolation int

const (
	InterpolationLinear Interpolation = iota
	InterpolationStep
	InterpolationCubicSpline
)

// String returns the glTF name of the interpolation.
func (i Interpolation) String() string {
	switch i {
	case InterpolationLinear:
		return "LINEAR"
	case InterpolationStep:
		return "STEP"
	case InterpolationCubicSpline:
		return "CUBICSPLINE"
	default:
		return "UNKNOWN"
	}
}

// AnimationChannel connects a sampler to one property of one node.
type AnimationChannel struct {
	Node    int
	Path    Path
	Sampler int
}

// AnimationSampler holds the keyframes of one channel.
type AnimationSampler struct {
	Interpolation Interpolation
	// Inputs are keyframe times in seconds, ascending.
	Inputs []float32
	// Outputs are keyframe values. Vec3 values leave w at zero; rotations are (x, y, z, w).
	Outputs []mgl32.Vec4
}

// Animation is a named set of channels played on a model's nodes.
type Animation struct {
	Name     string
	Samplers []AnimationSampler
	Channels []AnimationChannel
	// Start and End bound the keyframe times of every sampler.
	Start float32
	End   float32
	// CurrentTime is the playback position in seconds.
	CurrentTime float32
	// Playing gates time advance. Looping is always on.
	Playing bool
}

// NewAnimation builds an animation and derives Start and End from the sampler inputs. Playback
// begins at Start.
//
// Parameters:
//   - name: the animation name
//   - samplers: the keyframe samplers
//   - channels: the channels driving node properties
//
// Returns:
//   - Animation: the playing animation
func NewAnimation(name string, samplers []AnimationSampler, channels []AnimationChannel) Animation {
	a := Animation{Name: name, Samplers: samplers, Channels: channels, Playing: true}
	first := true
	for _, s := range samplers {
		if len(s.Inputs) == 0 {
			continue
		}
		lo, hi := s.Inputs[0], s.Inputs[len(s.Inputs)-1]
		if first || lo < a.Start {
			a.Start = lo
		}
		if first || hi > a.End {
			a.End = hi
		}
		first = false
	}
	a.CurrentTime = a.Start
	return a
}
