package camera

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestUniformLayout(t *testing.T) {
	c := NewCamera(WithEye(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{}))
	u := c.Uniform()
	if u.Size() != 144 {
		t.Fatalf("uniform size = %d, want 144", u.Size())
	}
	buf := u.Marshal()
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[128:])); got != 1 {
		t.Errorf("position.x = %v", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[140:])); got != 1 {
		t.Errorf("position.w = %v, want 1", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[64+5*4:])); got != c.Projection()[5] {
		t.Errorf("projection[5] = %v", got)
	}
}

func TestViewMapsTargetOntoNegativeZ(t *testing.T) {
	c := NewCamera(WithEye(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}))
	p := c.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !p.ApproxEqual(mgl32.Vec4{0, 0, -5, 1}) {
		t.Errorf("target in view space = %v", p)
	}
}

func TestFlipY(t *testing.T) {
	c := NewCamera()
	y := c.Projection()[5]
	c.SetFlipY(true)
	if c.Projection()[5] != -y {
		t.Errorf("flipped y scale = %v, want %v", c.Projection()[5], -y)
	}
}

func TestSetAspectIgnoresNonPositive(t *testing.T) {
	c := NewCamera(WithAspect(2))
	c.SetAspect(0)
	if c.Aspect() != 2 {
		t.Errorf("aspect = %v", c.Aspect())
	}
}

func TestOrbitControllerDrivesCamera(t *testing.T) {
	oc := NewOrbitController(WithRadius(10), WithAngles(0, 0), WithTarget(mgl32.Vec3{1, 0, 0}))
	if !oc.Position().ApproxEqual(mgl32.Vec3{1, 0, 10}) {
		t.Fatalf("eye = %v", oc.Position())
	}
	c := NewCamera(WithController(oc))
	if !c.Position().ApproxEqual(mgl32.Vec3{1, 0, 10}) {
		t.Errorf("camera did not take the controller eye: %v", c.Position())
	}

	oc.Zoom(4)
	c.Update()
	if oc.Radius() != 8 || !c.Position().ApproxEqual(mgl32.Vec3{1, 0, 8}) {
		t.Errorf("radius %v eye %v after zoom", oc.Radius(), c.Position())
	}

	oc.Orbit(0, 1e6)
	if oc.Elevation() >= math.Pi/2 {
		t.Errorf("elevation %v not clamped", oc.Elevation())
	}
	oc.SetRadius(1e9)
	if oc.Radius() != 1000 {
		t.Errorf("radius %v not clamped", oc.Radius())
	}
}
