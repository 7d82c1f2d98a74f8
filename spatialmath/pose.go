// Package spatialmath defines the rigid 3D transforms shared by the mapping
// packages. A Pose is a rotation (unit quaternion) followed by a translation.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a rigid transform in 3D space. The zero value is not a
// valid pose; use NewZeroPose for the identity.
type Pose struct {
	rot   quat.Number
	trans r3.Vector
}

// NewZeroPose returns the identity pose.
func NewZeroPose() *Pose {
	return &Pose{rot: quat.Number{Real: 1}}
}

// NewPose returns a pose with the given translation and rotation. The
// rotation quaternion is normalized before being stored.
func NewPose(trans r3.Vector, rot quat.Number) *Pose {
	return &Pose{rot: normalize(rot), trans: trans}
}

// NewPoseFromPoint returns a pure translation pose.
func NewPoseFromPoint(trans r3.Vector) *Pose {
	return &Pose{rot: quat.Number{Real: 1}, trans: trans}
}

// NewPoseFromAxisAngle returns a pose rotating by theta radians about the
// given axis and translating by trans.
func NewPoseFromAxisAngle(trans, axis r3.Vector, theta float64) *Pose {
	axis = axis.Normalize()
	s := math.Sin(theta / 2)
	return &Pose{
		rot:   quat.Number{Real: math.Cos(theta / 2), Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s},
		trans: trans,
	}
}

// Translation returns the translation component.
func (p *Pose) Translation() r3.Vector {
	return p.trans
}

// Rotation returns the rotation component as a unit quaternion.
func (p *Pose) Rotation() quat.Number {
	return p.rot
}

// TransformPoint applies the pose to a point: R*pt + t.
func (p *Pose) TransformPoint(pt r3.Vector) r3.Vector {
	return rotateVector(p.rot, pt).Add(p.trans)
}

// RotateVector applies only the rotation component to a vector, leaving the
// translation out. Used for directions and surface normals.
func (p *Pose) RotateVector(v r3.Vector) r3.Vector {
	return rotateVector(p.rot, v)
}

// Compose returns the pose equivalent to applying o first and then p.
func Compose(p, o *Pose) *Pose {
	return &Pose{
		rot:   normalize(quat.Mul(p.rot, o.rot)),
		trans: p.TransformPoint(o.trans),
	}
}

// Invert returns the inverse pose, such that Compose(p, Invert(p)) is the
// identity up to floating point error.
func Invert(p *Pose) *Pose {
	inv := quat.Conj(p.rot)
	return &Pose{
		rot:   inv,
		trans: rotateVector(inv, p.trans.Mul(-1)),
	}
}

// AlmostEqual reports whether two poses agree to within tol on every
// translation component and on the rotation applied to the basis vectors.
func AlmostEqual(a, b *Pose, tol float64) bool {
	if a.trans.Sub(b.trans).Norm() > tol {
		return false
	}
	for _, v := range []r3.Vector{{X: 1}, {Y: 1}, {Z: 1}} {
		if rotateVector(a.rot, v).Sub(rotateVector(b.rot, v)).Norm() > tol {
			return false
		}
	}
	return true
}

func rotateVector(q quat.Number, v r3.Vector) r3.Vector {
	qv := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, qv), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

func normalize(q quat.Number) quat.Number {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}
