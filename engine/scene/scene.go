package scene

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Owlkaline/Maat-Graphics-sub000/common"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/camera"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/light"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/model"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// ErrNotInScene is returned when an operation names a model the scene does not hold.
var ErrNotInScene = errors.New("model is not in the scene")

// Entry is one model in the scene. With no instances the model is drawn once through its node
// hierarchy; with instances it is staged once per instance for the instanced pipeline.
type Entry struct {
	Model     *model.Model
	Instances []model.GPUInstance
	// Animate advances the model's active animation on every Update.
	Animate bool
	Hidden  bool
}

// Scene is an ordered list of models with the camera and lights they are viewed with.
// Entries are drawn in insertion order. Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Active returns whether this scene is drawn.
	Active() bool

	// SetActive sets whether this scene is drawn.
	SetActive(active bool)

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// SetCamera replaces the scene's camera.
	//
	// Parameters:
	//   - cam: the new camera
	SetCamera(cam camera.Camera)

	// Lights returns the scene's lights and ambient colour.
	Lights() ([]light.Light, [3]float32)

	// SetLights replaces the scene's lights and ambient colour.
	//
	// Parameters:
	//   - lights: the lights
	//   - ambient: the ambient colour
	SetLights(lights []light.Light, ambient [3]float32)

	// Add appends a model to the scene. Adding a model already present replaces its instances.
	//
	// Parameters:
	//   - m: the model
	//   - instances: per-instance payloads, none to draw the model once
	Add(m *model.Model, instances ...model.GPUInstance)

	// Remove drops a model from the scene. The model itself is not released.
	//
	// Parameters:
	//   - m: the model to drop
	Remove(m *model.Model)

	// SetInstances replaces the instances of a model already in the scene.
	//
	// Parameters:
	//   - m: the model
	//   - instances: the new instances
	//
	// Returns:
	//   - error: ErrNotInScene if m was never added
	SetInstances(m *model.Model, instances []model.GPUInstance) error

	// SetAnimate selects whether Update advances m's animation.
	//
	// Parameters:
	//   - m: the model
	//   - animate: whether to animate
	//
	// Returns:
	//   - error: ErrNotInScene if m was never added
	SetAnimate(m *model.Model, animate bool) error

	// SetHidden hides or shows a model without removing it.
	//
	// Parameters:
	//   - m: the model
	//   - hidden: whether to skip drawing it
	//
	// Returns:
	//   - error: ErrNotInScene if m was never added
	SetHidden(m *model.Model, hidden bool) error

	// Entries returns a copy of the entries in draw order.
	Entries() []Entry

	// Update advances every animated model by dt seconds and refreshes the camera from its controller.
	//
	// Parameters:
	//   - r: the renderer that owns the models
	//   - dt: elapsed seconds
	Update(r renderer.Renderer, dt float32)

	// Prepare hands the camera and lights to the renderer. Call it before StartRender.
	//
	// Parameters:
	//   - r: the renderer
	Prepare(r renderer.Renderer)

	// Draw records every visible entry into the frame begun by StartRender.
	//
	// Parameters:
	//   - r: the renderer
	//
	// Returns:
	//   - error: the first draw error, wrapped with the model name
	Draw(r renderer.Renderer) error
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu     sync.RWMutex
	logger *zap.Logger

	name   string
	active bool

	camera  camera.Camera
	lights  []light.Light
	ambient [3]float32

	entries []Entry
}

var _ Scene = &scene{}

// NewScene creates an empty active scene.
//
// Parameters:
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(options ...SceneBuilderOption) Scene {
	s := &scene{
		logger:  zap.NewNop(),
		name:    "scene",
		active:  true,
		ambient: [3]float32{0.05, 0.05, 0.05},
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.camera
}

func (s *scene) SetCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = cam
}

func (s *scene) Lights() ([]light.Light, [3]float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]light.Light(nil), s.lights...), s.ambient
}

func (s *scene) SetLights(lights []light.Light, ambient [3]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights = append(s.lights[:0], lights...)
	s.ambient = ambient
}

func (s *scene) Add(m *model.Model, instances ...model.GPUInstance) {
	if m == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.find(m); i >= 0 {
		s.entries[i].Instances = append([]model.GPUInstance(nil), instances...)
		return
	}
	s.entries = append(s.entries, Entry{
		Model:     m,
		Instances: append([]model.GPUInstance(nil), instances...),
		Animate:   len(m.Animations) > 0,
	})
	s.logger.Debug("added model",
		zap.String("scene", s.name),
		zap.String("model", m.Name()),
		zap.Int("instances", len(instances)))
}

func (s *scene) Remove(m *model.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.find(m); i >= 0 {
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
	}
}

func (s *scene) SetInstances(m *model.Model, instances []model.GPUInstance) error {
	return s.modify(m, func(e *Entry) {
		e.Instances = append(e.Instances[:0], instances...)
	})
}

func (s *scene) SetAnimate(m *model.Model, animate bool) error {
	return s.modify(m, func(e *Entry) { e.Animate = animate })
}

func (s *scene) SetHidden(m *model.Model, hidden bool) error {
	return s.modify(m, func(e *Entry) { e.Hidden = hidden })
}

func (s *scene) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		e.Instances = append([]model.GPUInstance(nil), e.Instances...)
		out[i] = e
	}
	return out
}

func (s *scene) Update(r renderer.Renderer, dt float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.Animate && !e.Model.Released() {
			r.UpdateAnimation(e.Model, dt)
		}
	}
	if s.camera != nil {
		s.camera.Update()
	}
}

func (s *scene) Prepare(r renderer.Renderer) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.camera != nil {
		r.SetCamera(s.camera)
	}
	r.SetLights(s.lights, s.ambient)
}

func (s *scene) Draw(r renderer.Renderer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.Hidden || e.Model.Released() {
			continue
		}
		if len(e.Instances) == 0 {
			if err := r.DrawModel(e.Model); err != nil {
				return fmt.Errorf("failed to draw %s: %w", e.Model.Name(), err)
			}
			continue
		}
		for _, inst := range e.Instances {
			if err := r.DrawInstanced(e.Model, inst); err != nil {
				return fmt.Errorf("failed to stage instance of %s: %w", e.Model.Name(), err)
			}
		}
	}
	return nil
}

// find returns the entry index of m, or -1. Callers hold the lock.
func (s *scene) find(m *model.Model) int {
	for i := range s.entries {
		if s.entries[i].Model == m {
			return i
		}
	}
	return -1
}

func (s *scene) modify(m *model.Model, fn func(e *Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(m)
	if i < 0 {
		return ErrNotInScene
	}
	fn(&s.entries[i])
	return nil
}

// NewInstance builds an instance payload from a translation, rotation, uniform scale and tint.
//
// Parameters:
//   - translation: the instance position
//   - rotation: the instance orientation
//   - scale: the uniform scale
//   - color: the RGBA tint multiplied into the base colour
//
// Returns:
//   - model.GPUInstance: the payload for Renderer.DrawInstanced
func NewInstance(translation mgl32.Vec3, rotation mgl32.Quat, scale float32, color mgl32.Vec4) model.GPUInstance {
	rotation = rotation.Normalize()
	m := mgl32.Translate3D(translation.X(), translation.Y(), translation.Z()).
		Mul4(rotation.Mat4()).
		Mul4(mgl32.Scale3D(scale, scale, scale))
	return model.GPUInstance{
		Model:    m,
		Rotation: common.QuatToVec4(rotation),
		Color:    color,
	}
}

// Grid lays count instances out on a square grid in the XZ plane centred on the origin, each
// turned a little further about Y than the last.
//
// Parameters:
//   - count: the number of instances
//   - spacing: the distance between neighbours
//
// Returns:
//   - []model.GPUInstance: count instances in row-major order
func Grid(count int, spacing float32) []model.GPUInstance {
	if count <= 0 {
		return nil
	}
	side := 1
	for side*side < count {
		side++
	}
	offset := float32(side-1) * spacing / 2
	out := make([]model.GPUInstance, 0, count)
	for i := 0; i < count; i++ {
		row, col := i/side, i%side
		pos := mgl32.Vec3{float32(col)*spacing - offset, 0, float32(row)*spacing - offset}
		rot := mgl32.QuatRotate(float32(i)*0.3, mgl32.Vec3{0, 1, 0})
		out = append(out, NewInstance(pos, rot, 1, mgl32.Vec4{1, 1, 1, 1}))
	}
	return out
}
