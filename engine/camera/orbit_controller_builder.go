package camera

import "github.com/go-gl/mathgl/mgl32"

// OrbitControllerOption is a functional option applied to an orbit controller during construction.
type OrbitControllerOption func(*orbitController)

// WithRadius sets the initial distance from the eye to the target.
//
// Parameters:
//   - radius: the orbit radius
//
// Returns:
//   - OrbitControllerOption: a function that sets the radius
func WithRadius(radius float32) OrbitControllerOption {
	return func(oc *orbitController) {
		oc.radius = radius
	}
}

// WithAngles sets the initial azimuth and elevation in radians.
//
// Parameters:
//   - azimuth: horizontal angle around Y
//   - elevation: vertical angle from the horizontal plane
//
// Returns:
//   - OrbitControllerOption: a function that sets the angles
func WithAngles(azimuth, elevation float32) OrbitControllerOption {
	return func(oc *orbitController) {
		oc.azimuth = azimuth
		oc.elevation = elevation
	}
}

// WithTarget sets the orbit centre.
func WithTarget(target mgl32.Vec3) OrbitControllerOption {
	return func(oc *orbitController) {
		oc.target = target
	}
}

// WithRadiusBounds sets the zoom limits.
//
// Parameters:
//   - min: the smallest radius
//   - max: the largest radius
//
// Returns:
//   - OrbitControllerOption: a function that sets the radius bounds
func WithRadiusBounds(min, max float32) OrbitControllerOption {
	return func(oc *orbitController) {
		oc.minRadius = min
		oc.maxRadius = max
	}
}

// WithSensitivity sets the radians turned per pixel of pointer movement.
func WithSensitivity(sensitivity float32) OrbitControllerOption {
	return func(oc *orbitController) {
		oc.sensitivity = sensitivity
	}
}

// WithZoomSpeed sets the radius change per unit of scroll.
func WithZoomSpeed(speed float32) OrbitControllerOption {
	return func(oc *orbitController) {
		oc.zoomSpeed = speed
	}
}
