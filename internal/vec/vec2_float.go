package vec

import "math"

// Vec2 представляет смещение на горизонтальной плоскости арены (X, Z мира)
type Vec2 struct {
	X, Y float64
}

// FromPolar строит вектор по углу (радианы) и радиусу
func FromPolar(angle, radius float64) Vec2 {
	return Vec2{X: math.Cos(angle) * radius, Y: math.Sin(angle) * radius}
}

// ToVec3 поднимает вектор в 3D, подставляя высоту y
func (v Vec2) ToVec3(y float64) Vec3 {
	return Vec3{X: v.X, Y: y, Z: v.Y}
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Mul умножает вектор на скаляр
func (v Vec2) Mul(scalar float64) Vec2 {
	return Vec2{X: v.X * scalar, Y: v.Y * scalar}
}

// Normalized возвращает нормализованный вектор
func (v Vec2) Normalized() Vec2 {
	length := v.Length()
	if length == 0 {
		return Vec2{}
	}
	return Vec2{X: v.X / length, Y: v.Y / length}
}

// Length возвращает длину вектора
func (v Vec2) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}
