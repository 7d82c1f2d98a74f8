package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestPoseIdentity(t *testing.T) {
	p := NewZeroPose()
	pt := r3.Vector{X: 1, Y: -2, Z: 3}
	test.That(t, p.TransformPoint(pt), test.ShouldResemble, pt)
}

func TestPoseTransformPoint(t *testing.T) {
	// quarter turn about Z maps +X onto +Y
	p := NewPoseFromAxisAngle(r3.Vector{X: 1}, r3.Vector{Z: 1}, math.Pi/2)
	got := p.TransformPoint(r3.Vector{X: 1})
	test.That(t, got.X, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, got.Y, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, got.Z, test.ShouldAlmostEqual, 0, 1e-9)
}

func TestPoseComposeInvert(t *testing.T) {
	a := NewPoseFromAxisAngle(r3.Vector{X: 2, Y: -1, Z: 0.5}, r3.Vector{X: 1, Y: 1, Z: 0}, 0.7)
	b := NewPoseFromAxisAngle(r3.Vector{X: -3, Z: 4}, r3.Vector{Y: 1}, -1.2)

	pt := r3.Vector{X: 0.3, Y: 5, Z: -2}
	composed := Compose(a, b)
	direct := a.TransformPoint(b.TransformPoint(pt))
	viaCompose := composed.TransformPoint(pt)
	test.That(t, viaCompose.Sub(direct).Norm(), test.ShouldBeLessThan, 1e-9)

	roundTrip := Compose(Invert(a), a)
	test.That(t, AlmostEqual(roundTrip, NewZeroPose(), 1e-9), test.ShouldBeTrue)
	back := Invert(a).TransformPoint(a.TransformPoint(pt))
	test.That(t, back.Sub(pt).Norm(), test.ShouldBeLessThan, 1e-9)
}

func TestRotateVectorIgnoresTranslation(t *testing.T) {
	p := NewPoseFromAxisAngle(r3.Vector{X: 100}, r3.Vector{Z: 1}, math.Pi)
	v := p.RotateVector(r3.Vector{X: 1})
	test.That(t, v.X, test.ShouldAlmostEqual, -1, 1e-9)
	test.That(t, v.Y, test.ShouldAlmostEqual, 0, 1e-9)
}
