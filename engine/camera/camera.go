package camera

import (
	"math"
	"sync"

	"github.com/Owlkaline/Maat-Graphics-sub000/common"
	"github.com/go-gl/mathgl/mgl32"
)

type cameraImpl struct {
	mu *sync.Mutex

	up mgl32.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32
	// flipY negates the projection's Y scale for Vulkan clip space.
	flipY bool

	position   mgl32.Vec3
	target     mgl32.Vec3
	view       mgl32.Mat4
	projection mgl32.Mat4

	controller OrbitController
}

// Camera defines the interface for the camera system.
// The camera holds perspective settings and computes view/projection matrices, either from an
// explicit eye and target or from an attached OrbitController each frame via Update().
type Camera interface {
	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// Position returns the world-space eye position.
	Position() mgl32.Vec3

	// View returns the current view matrix.
	View() mgl32.Mat4

	// Projection returns the current projection matrix.
	Projection() mgl32.Mat4

	// Uniform returns the camera state laid out for the GPU.
	//
	// Returns:
	//   - GPUCameraUniform: the camera uniform
	Uniform() GPUCameraUniform

	// Controller returns the attached OrbitController, or nil.
	Controller() OrbitController

	// Update reads the eye and target from the controller and recomputes the matrices.
	// If no controller is attached, this method does nothing.
	Update()

	// LookAt places the eye and target explicitly and recomputes the matrices.
	//
	// Parameters:
	//   - eye: the world-space eye position
	//   - target: the world-space point looked at
	LookAt(eye, target mgl32.Vec3)

	// SetAspect sets the aspect ratio (width / height) and recomputes the projection.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetFlipY selects the Vulkan clip space convention.
	//
	// Parameters:
	//   - flip: true to negate the projection's Y scale
	SetFlipY(flip bool)

	// SetController attaches an OrbitController to the camera.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl OrbitController)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with default perspective settings looking from (0, 0, 5) at the origin.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:       &sync.Mutex{},
		up:       mgl32.Vec3{0, 1, 0},
		fov:      45.0 * (math.Pi / 180.0),
		aspect:   1.0,
		near:     0.1,
		far:      100.0,
		position: mgl32.Vec3{0, 0, 5},
	}
	for _, option := range options {
		option(c)
	}
	if c.controller != nil {
		c.position, c.target = c.controller.Position(), c.controller.Target()
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) View() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *cameraImpl) Projection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection
}

func (c *cameraImpl) Uniform() GPUCameraUniform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return GPUCameraUniform{
		View:       c.view,
		Projection: c.projection,
		Position:   [4]float32{c.position[0], c.position[1], c.position[2], 1},
	}
}

func (c *cameraImpl) Controller() OrbitController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return
	}
	c.position, c.target = c.controller.Position(), c.controller.Target()
	c.updateMatrices()
}

func (c *cameraImpl) LookAt(eye, target mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position, c.target = eye, target
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if aspect <= 0 {
		return
	}
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetFlipY(flip bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flipY = flip
	c.updateMatrices()
}

func (c *cameraImpl) SetController(ctrl OrbitController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
}

// updateMatrices recalculates the view and projection matrices. Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	c.view = mgl32.LookAtV(c.position, c.target, c.up)
	c.projection = common.Perspective(c.fov, c.aspect, c.near, c.far, c.flipY)
}
