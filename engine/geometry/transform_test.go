package geometry

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/lumen/engine/scene"
)

func TestDecomposeNilTransformIsIdentity(t *testing.T) {
	d := DecomposeSceneTransform(nil)
	m := d.Mat4()
	assert.True(t, m.ApproxEqual(mgl32.Ident4()))
}

func TestDecomposeAppliesScaleRotateTranslateOrder(t *testing.T) {
	d := DecomposeSceneTransform(&scene.Transform{
		Translate: &[3]float32{10, 0, 0},
		Rotate:    &scene.Rotation{Axis: [3]float32{0, 1, 0}, Degrees: 90},
		Scale:     &[3]float32{2, 2, 2},
	})

	// Point (1,0,0): scaled to (2,0,0), rotated about Y to (0,0,-2),
	// translated to (10,0,-2).
	p := d.Mat4().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 10, float64(p.X()), 1e-5)
	assert.InDelta(t, 0, float64(p.Y()), 1e-5)
	assert.InDelta(t, -2, float64(p.Z()), 1e-5)
}

func TestLerpEndpoints(t *testing.T) {
	a := DecomposeSceneTransform(&scene.Transform{Translate: &[3]float32{0, 0, 0}})
	b := DecomposeSceneTransform(&scene.Transform{Translate: &[3]float32{4, 2, 0}})

	assert.Equal(t, a.Translation, a.Lerp(b, 0).Translation)
	assert.Equal(t, b.Translation, a.Lerp(b, 1).Translation)

	mid := a.Lerp(b, 0.5)
	assert.InDelta(t, 2, float64(mid.Translation.X()), 1e-6)
	assert.InDelta(t, 1, float64(mid.Translation.Y()), 1e-6)
}

func TestAccelerationMatrixLayout(t *testing.T) {
	d := DecomposeSceneTransform(&scene.Transform{Translate: &[3]float32{1, 2, 3}})
	m := d.AccelerationMatrix()

	// Row-major 3x4: translation lives in the last column.
	assert.Equal(t, float32(1), m[0][3])
	assert.Equal(t, float32(2), m[1][3])
	assert.Equal(t, float32(3), m[2][3])
	assert.Equal(t, float32(1), m[0][0])
	assert.Equal(t, float32(1), m[1][1])
	assert.Equal(t, float32(1), m[2][2])
}
