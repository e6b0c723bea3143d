package camera

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// orbitController is the implementation of OrbitController. The eye position is derived from
// spherical coordinates around the target.
type orbitController struct {
	mu *sync.Mutex

	position mgl32.Vec3
	target   mgl32.Vec3

	radius    float32
	azimuth   float32 // horizontal angle around Y
	elevation float32 // vertical angle from the horizontal plane

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	sensitivity float32
	zoomSpeed   float32
}

// OrbitController moves the camera eye on a sphere around a target point. The viewer drives it from
// mouse drags and scroll input.
type OrbitController interface {
	// Position returns the eye position.
	Position() mgl32.Vec3

	// Target returns the point the eye orbits and looks at.
	Target() mgl32.Vec3

	// SetTarget moves the orbit centre, keeping radius and angles.
	//
	// Parameters:
	//   - target: the new orbit centre
	SetTarget(target mgl32.Vec3)

	// Orbit rotates the eye by pointer deltas scaled by the mouse sensitivity. The elevation is clamped.
	//
	// Parameters:
	//   - dx: horizontal pointer delta in pixels
	//   - dy: vertical pointer delta in pixels
	Orbit(dx, dy float32)

	// Zoom moves the eye towards the target by delta times the zoom speed, clamped to the radius bounds.
	//
	// Parameters:
	//   - delta: scroll delta, positive zooms in
	Zoom(delta float32)

	// Radius returns the distance from the eye to the target.
	Radius() float32

	// SetRadius sets the distance from the eye to the target, clamped to the radius bounds.
	SetRadius(radius float32)

	// Azimuth returns the horizontal orbit angle in radians.
	Azimuth() float32

	// Elevation returns the vertical orbit angle in radians.
	Elevation() float32
}

var _ OrbitController = &orbitController{}

// NewOrbitController creates an OrbitController around the origin.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - OrbitController: the newly created controller
func NewOrbitController(options ...OrbitControllerOption) OrbitController {
	oc := &orbitController{
		mu:        &sync.Mutex{},
		radius:    5.0,
		elevation: float32(math.Pi / 6),

		minRadius:    0.1,
		maxRadius:    1000.0,
		minElevation: float32(-math.Pi/2 + 0.05),
		maxElevation: float32(math.Pi/2 - 0.05),

		sensitivity: 0.005,
		zoomSpeed:   0.5,
	}
	for _, option := range options {
		option(oc)
	}
	oc.radius = clamp(oc.radius, oc.minRadius, oc.maxRadius)
	oc.elevation = clamp(oc.elevation, oc.minElevation, oc.maxElevation)
	oc.updatePosition()
	return oc
}

func clamp(v, lo, hi float32) float32 {
	return max(lo, min(v, hi))
}

// updatePosition recomputes the eye from the spherical coordinates. Caller must hold the mutex.
func (oc *orbitController) updatePosition() {
	cosElev := float32(math.Cos(float64(oc.elevation)))
	sinElev := float32(math.Sin(float64(oc.elevation)))
	cosAzim := float32(math.Cos(float64(oc.azimuth)))
	sinAzim := float32(math.Sin(float64(oc.azimuth)))

	oc.position = oc.target.Add(mgl32.Vec3{
		oc.radius * cosElev * sinAzim,
		oc.radius * sinElev,
		oc.radius * cosElev * cosAzim,
	})
}

func (oc *orbitController) Position() mgl32.Vec3 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.position
}

func (oc *orbitController) Target() mgl32.Vec3 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.target
}

func (oc *orbitController) SetTarget(target mgl32.Vec3) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.target = target
	oc.updatePosition()
}

func (oc *orbitController) Orbit(dx, dy float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.azimuth -= dx * oc.sensitivity
	oc.elevation = clamp(oc.elevation+dy*oc.sensitivity, oc.minElevation, oc.maxElevation)
	oc.updatePosition()
}

func (oc *orbitController) Zoom(delta float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.radius = clamp(oc.radius-delta*oc.zoomSpeed, oc.minRadius, oc.maxRadius)
	oc.updatePosition()
}

func (oc *orbitController) Radius() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.radius
}

func (oc *orbitController) SetRadius(radius float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.radius = clamp(radius, oc.minRadius, oc.maxRadius)
	oc.updatePosition()
}

func (oc *orbitController) Azimuth() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.azimuth
}

func (oc *orbitController) Elevation() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.elevation
}
