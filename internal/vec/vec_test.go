package vec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookRotationFacesTarget(t *testing.T) {
	from := Vec3{X: 10, Y: 0.5, Z: 0}
	to := Vec3{}

	rot := LookRotation(from, to)
	fwd := rot.Forward()

	assert.InDelta(t, -1.0, fwd.X, 1e-9)
	assert.InDelta(t, 0.0, fwd.Z, 1e-9)
	assert.Equal(t, Rotation{}, LookRotation(to, to))
}

func TestPolarRoundTrip(t *testing.T) {
	v := FromPolar(math.Pi/2, 4)
	assert.InDelta(t, 0, v.X, 1e-9)
	assert.InDelta(t, 4, v.Y, 1e-9)
	assert.InDelta(t, 4, v.Length(), 1e-9)

	p := v.ToVec3(0.5)
	assert.Equal(t, 0.5, p.Y)
	assert.InDelta(t, 4, p.Z, 1e-9)
	assert.InDelta(t, 1, v.Normalized().Length(), 1e-9)
}

func TestVec3Arithmetic(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 2}
	assert.Equal(t, 3.0, a.Length())
	assert.Equal(t, Vec3{X: 2, Y: 4, Z: 4}, a.Add(a))
	assert.Equal(t, Vec3{}, a.Sub(a))
	assert.Equal(t, Vec3{X: 0.5, Y: 1, Z: 1}, a.Mul(0.5))
	assert.Equal(t, 3.0, a.DistanceTo(Vec3{}))
	assert.Equal(t, Vec2{X: 1, Y: 2}, a.Horizontal())
}
