package geometry

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/scene"
)

// DecomposedTransform stores translation, rotation and scale separately so
// they can be interpolated independently and recombined into a matrix.
// Rotation is a unit quaternion.
type DecomposedTransform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

func IdentityTransform() DecomposedTransform {
	return DecomposedTransform{
		Translation: mgl32.Vec3{0, 0, 0},
		Rotation:    mgl32.QuatIdent(),
		Scale:       mgl32.Vec3{1, 1, 1},
	}
}

// DecomposeSceneTransform converts a scene placement into its decomposed
// form. Missing components fall back to the identity.
func DecomposeSceneTransform(t *scene.Transform) DecomposedTransform {
	d := IdentityTransform()
	if t == nil {
		return d
	}
	if t.Translate != nil {
		d.Translation = mgl32.Vec3(*t.Translate)
	}
	if t.Scale != nil {
		d.Scale = mgl32.Vec3(*t.Scale)
	}
	if t.Rotate != nil {
		axis := mgl32.Vec3(t.Rotate.Axis)
		if axis.Len() > 0 {
			axis = axis.Normalize()
		}
		d.Rotation = mgl32.QuatRotate(mgl32.DegToRad(t.Rotate.Degrees), axis)
	}
	return d
}

// Lerp interpolates at time t in [0, 1] between d at t=0 and other at t=1.
// Rotation uses spherical interpolation.
func (d DecomposedTransform) Lerp(other DecomposedTransform, t float32) DecomposedTransform {
	return DecomposedTransform{
		Translation: lerpVec3(d.Translation, other.Translation, t),
		Rotation:    mgl32.QuatSlerp(d.Rotation, other.Rotation, t),
		Scale:       lerpVec3(d.Scale, other.Scale, t),
	}
}

// Mat4 recombines the components into a single object-to-world matrix,
// applying scale, then rotation, then translation.
func (d DecomposedTransform) Mat4() mgl32.Mat4 {
	t := mgl32.Translate3D(d.Translation.X(), d.Translation.Y(), d.Translation.Z())
	r := d.Rotation.Mat4()
	s := mgl32.Scale3D(d.Scale.X(), d.Scale.Y(), d.Scale.Z())
	return t.Mul4(r).Mul4(s)
}

// AccelerationMatrix converts to the row-major 3x4 layout acceleration
// structure instance records expect.
func (d DecomposedTransform) AccelerationMatrix() [3][4]float32 {
	m := d.Mat4()
	var out [3][4]float32
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			out[row][col] = m.At(row, col)
		}
	}
	return out
}

func lerpVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}
