package animator

import (
	"fmt"
	"sync"

	"github.com/Owlkaline/Maat-Graphics-sub000/common"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/model"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/descriptor_provider"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// DefaultMaxJoints is the joint limit per skin used when WithMaxJoints is not given.
const DefaultMaxJoints = 256

// samplerKey identifies one sampler of one animation of one model.
type samplerKey struct {
	model     *model.Model
	animation int
	sampler   int
}

// animator is the implementation of the Animator interface.
type animator struct {
	logger    *zap.Logger
	maxJoints int

	mu     *sync.Mutex
	staged []descriptor_provider.BufferWrite
	warned map[samplerKey]struct{}
}

// Animator defines the public interface for the animation system.
//
// The Animator samples the active animation of a model on the CPU, writes the sampled values into the
// nodes' local transforms and recomputes the hierarchy. Joint matrices are evaluated per skin and staged
// as GPU buffer writes, which Flush applies before the frame that reads them is submitted.
type Animator interface {
	// Update advances the model's active animation by dt seconds and applies every channel to the node
	// arena, then recomputes global transforms. When the time passes End, End is subtracted once.
	// Channels whose sampler is not linear are skipped with a single warning per sampler.
	//
	// Parameters:
	//   - m: the model to animate
	//   - dt: elapsed time in seconds
	Update(m *model.Model, dt float32)

	// UpdateJoints evaluates the final joint matrices of one skin and stages them for the skin's joint
	// buffer. Each matrix is inverse(global(skinned node)) · global(joint) · inverseBind(joint).
	//
	// Parameters:
	//   - m: the model owning the skin
	//   - skinIndex: the index into m.Skins
	//
	// Returns:
	//   - []mgl32.Mat4: the joint matrices, or nil if skinIndex is out of range
	UpdateJoints(m *model.Model, skinIndex int) []mgl32.Mat4

	// Flush writes and clears every staged joint buffer write.
	//
	// Parameters:
	//   - device: the device to write through
	//
	// Returns:
	//   - error: the first write error
	Flush(device gpu.Device) error

	// Pending returns the number of staged writes not yet flushed.
	//
	// Returns:
	//   - int: the staged write count
	Pending() int

	// MaxJoints returns the joint limit per skin. Joints past the limit are dropped with a warning.
	//
	// Returns:
	//   - int: the joint limit
	MaxJoints() int

	// SetActiveAnimation selects and rewinds the animation a model plays.
	//
	// Parameters:
	//   - m: the model
	//   - index: the animation index
	//
	// Returns:
	//   - error: an error if index is out of range
	SetActiveAnimation(m *model.Model, index int) error

	// Animations lists the animation names of a model.
	//
	// Parameters:
	//   - m: the model
	//
	// Returns:
	//   - []string: the animation names in order
	Animations(m *model.Model) []string

	// Forget drops the per-sampler warning state held for a released model.
	//
	// Parameters:
	//   - m: the model
	Forget(m *model.Model)
}

var _ Animator = &animator{}

// NewAnimator creates a new Animator instance with the specified options applied.
//
// Parameters:
//   - options: a variadic list of AnimatorBuilderOption functions to configure the Animator
//
// Returns:
//   - Animator: a new instance of Animator configured with the provided options
func NewAnimator(options ...AnimatorBuilderOption) Animator {
	a := &animator{
		logger:    zap.NewNop(),
		maxJoints: DefaultMaxJoints,
		mu:        &sync.Mutex{},
		warned:    make(map[samplerKey]struct{}),
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

func (a *animator) Update(m *model.Model, dt float32) {
	anim := m.ActiveAnimation()
	if anim == nil || !anim.Playing {
		return
	}

	anim.CurrentTime += dt
	if anim.CurrentTime > anim.End {
		anim.CurrentTime -= anim.End
	}
	t := anim.CurrentTime

	for _, ch := range anim.Channels {
		sampler := &anim.Samplers[ch.Sampler]
		if sampler.Interpolation != model.InterpolationLinear {
			a.warnOnce(m, ch.Sampler, "unsupported interpolation, channel skipped",
				zap.String("interpolation", sampler.Interpolation.String()))
			continue
		}
		if ch.Path == model.PathWeights {
			a.warnOnce(m, ch.Sampler, "morph target weights are not animated, channel skipped")
			continue
		}

		j, blend, ok := keyframe(sampler.Inputs, t)
		if !ok {
			continue
		}
		v0, v1 := sampler.Outputs[j], sampler.Outputs[j+1]
		local := &m.Nodes[ch.Node].Local
		switch ch.Path {
		case model.PathTranslation:
			local.Translation = common.Lerp3(v0.Vec3(), v1.Vec3(), blend)
		case model.PathScale:
			local.Scale = common.Lerp3(v0.Vec3(), v1.Vec3(), blend)
		case model.PathRotation:
			local.Rotation = slerp(common.Vec4ToQuat(v0), common.Vec4ToQuat(v1), blend)
		}
	}

	model.UpdateGlobalTransforms(m.Nodes)
}

// keyframe finds the keyframe pair enclosing t and the blend factor between them.
// ok is false when t lies outside every pair.
func keyframe(inputs []float32, t float32) (j int, blend float32, ok bool) {
	for j = 0; j+1 < len(inputs); j++ {
		t0, t1 := inputs[j], inputs[j+1]
		if t0 <= t && t <= t1 {
			if t1 > t0 {
				blend = (t - t0) / (t1 - t0)
			}
			return j, blend, true
		}
	}
	return 0, 0, false
}

// slerp interpolates rotations along the shorter arc and returns the keyframe values exactly at the endpoints.
func slerp(q0, q1 mgl32.Quat, blend float32) mgl32.Quat {
	if blend <= 0 {
		return q0
	}
	if blend >= 1 {
		return q1
	}
	return mgl32.QuatSlerp(q0, q1, blend)
}

func (a *animator) warnOnce(m *model.Model, sampler int, msg string, fields ...zap.Field) {
	key := samplerKey{model: m, animation: m.ActiveAnimationIndex(), sampler: sampler}
	a.mu.Lock()
	_, seen := a.warned[key]
	a.warned[key] = struct{}{}
	a.mu.Unlock()
	if seen {
		return
	}
	fields = append(fields,
		zap.String("model", m.Name()),
		zap.String("animation", m.ActiveAnimation().Name),
		zap.Int("sampler", sampler))
	a.logger.Warn(msg, fields...)
}

func (a *animator) UpdateJoints(m *model.Model, skinIndex int) []mgl32.Mat4 {
	if skinIndex < 0 || skinIndex >= len(m.Skins) {
		return nil
	}
	skin := &m.Skins[skinIndex]

	inverseRoot := mgl32.Ident4()
	if skin.SkinnedNode >= 0 {
		inverseRoot = m.Nodes[skin.SkinnedNode].GlobalMatrix().Inv()
	}

	count := len(skin.Joints)
	if count > a.maxJoints {
		a.logger.Warn("skin exceeds the joint limit, extra joints dropped",
			zap.String("model", m.Name()),
			zap.String("skin", skin.Name),
			zap.Int("joints", count),
			zap.Int("max_joints", a.maxJoints))
		count = a.maxJoints
	}

	finals := make([]mgl32.Mat4, count)
	for i := 0; i < count; i++ {
		joint := m.Nodes[skin.Joints[i]].GlobalMatrix()
		finals[i] = inverseRoot.Mul4(joint).Mul4(skin.InverseBindMatrices[i])
	}

	if skin.Provider != nil {
		a.mu.Lock()
		a.staged = append(a.staged, descriptor_provider.BufferWrite{
			Provider: skin.Provider,
			Binding:  0,
			Data:     common.Mat4Bytes(finals...),
		})
		a.mu.Unlock()
	}
	return finals
}

func (a *animator) Flush(device gpu.Device) error {
	a.mu.Lock()
	writes := a.staged
	a.staged = nil
	a.mu.Unlock()
	if len(writes) == 0 {
		return nil
	}
	if err := descriptor_provider.WriteBuffers(device, writes); err != nil {
		return fmt.Errorf("failed to flush joint buffers: %w", err)
	}
	return nil
}

func (a *animator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.staged)
}

func (a *animator) MaxJoints() int {
	return a.maxJoints
}

func (a *animator) SetActiveAnimation(m *model.Model, index int) error {
	return m.SetActiveAnimation(index)
}

func (a *animator) Animations(m *model.Model) []string {
	return m.AnimationNames()
}

func (a *animator) Forget(m *model.Model) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key := range a.warned {
		if key.model == m {
			delete(a.warned, key)
		}
	}
}
