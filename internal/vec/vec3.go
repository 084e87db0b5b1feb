package vec

import "math"

// Vec3 представляет точку или смещение в мире арены (Y — вертикаль)
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Mul умножает вектор на скаляр
func (v Vec3) Mul(scalar float64) Vec3 {
	return Vec3{X: v.X * scalar, Y: v.Y * scalar, Z: v.Z * scalar}
}

// Length возвращает длину вектора
func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// DistanceTo возвращает расстояние до другой точки
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Length()
}

// Horizontal возвращает проекцию на плоскость XZ
func (v Vec3) Horizontal() Vec2 {
	return Vec2{X: v.X, Y: v.Z}
}

// Rotation описывает ориентацию актора. Повороты по крену и тангажу
// движку волн не нужны, поэтому хранится только рыскание (радианы, вокруг Y,
// 0 смотрит вдоль +Z).
type Rotation struct {
	Yaw float64 `json:"yaw"`
}

// LookRotation возвращает поворот, направленный из from в to по плоскости XZ.
// Совпадающие точки дают нулевой поворот.
func LookRotation(from, to Vec3) Rotation {
	d := to.Sub(from)
	if d.X == 0 && d.Z == 0 {
		return Rotation{}
	}
	return Rotation{Yaw: math.Atan2(d.X, d.Z)}
}

// Forward возвращает единичный горизонтальный вектор взгляда
func (r Rotation) Forward() Vec3 {
	return Vec3{X: math.Sin(r.Yaw), Z: math.Cos(r.Yaw)}
}
