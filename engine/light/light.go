package light

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional lights every fragment from one direction with no attenuation, like the sun.
	LightTypeDirectional LightType = iota

	// LightTypePoint emits in all directions from a position and fades out at its range.
	LightTypePoint
)

// String returns the lower-case name of the light type.
func (t LightType) String() string {
	switch t {
	case LightTypePoint:
		return "point"
	default:
		return "directional"
	}
}

// Light is a light source evaluated by the lighting subpass. Lights are plain values: scenes keep
// them in slices and the renderer packs the enabled ones into the lights uniform each frame.
type Light struct {
	Type LightType
	// Position is the world-space position of a point light.
	Position mgl32.Vec3
	// Direction is the unit direction a directional light travels in.
	Direction mgl32.Vec3
	Color     mgl32.Vec3
	Intensity float32
	// Range is the distance at which a point light's contribution reaches zero.
	Range    float32
	Disabled bool
}

// Directional returns a directional light travelling along dir.
//
// Parameters:
//   - dir: the direction, normalised here
//   - color: the RGB colour
//   - intensity: the scalar intensity multiplier
//
// Returns:
//   - Light: the light
func Directional(dir, color mgl32.Vec3, intensity float32) Light {
	return Light{
		Type:      LightTypeDirectional,
		Direction: normalize(dir),
		Color:     color,
		Intensity: intensity,
	}
}

// Point returns a point light at pos that reaches zero at lightRange.
//
// Parameters:
//   - pos: the world-space position
//   - color: the RGB colour
//   - intensity: the scalar intensity multiplier
//   - lightRange: the attenuation distance
//
// Returns:
//   - Light: the light
func Point(pos, color mgl32.Vec3, intensity, lightRange float32) Light {
	return Light{
		Type:      LightTypePoint,
		Position:  pos,
		Color:     color,
		Intensity: intensity,
		Range:     lightRange,
	}
}

// Enabled reports whether the light is packed into the lights uniform.
func (l Light) Enabled() bool {
	return !l.Disabled
}

// Validate reports lights the lighting subpass cannot evaluate: a directional light with no direction
// or a point light with no range.
func (l Light) Validate() error {
	switch l.Type {
	case LightTypeDirectional:
		if l.Direction.Len() == 0 {
			return fmt.Errorf("directional light has a zero direction")
		}
	case LightTypePoint:
		if l.Range <= 0 {
			return fmt.Errorf("point light at %v has range %v", l.Position, l.Range)
		}
	default:
		return fmt.Errorf("unknown light type %d", int(l.Type))
	}
	return nil
}

func normalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() == 0 {
		return mgl32.Vec3{}
	}
	return v.Normalize()
}
