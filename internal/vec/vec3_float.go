package vec

import "math"

// Vec3Float: позиция или скорость сущности.
type Vec3Float struct {
	X, Y, Z float64
}

// Sub вычитает вектор
func (v Vec3Float) Sub(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Mul умножает вектор на скаляр
func (v Vec3Float) Mul(scalar float64) Vec3Float {
	return Vec3Float{X: v.X * scalar, Y: v.Y * scalar, Z: v.Z * scalar}
}

// Length возвращает длину вектора
func (v Vec3Float) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Block возвращает блок, в котором находится точка.
func (v Vec3Float) Block() Vec3 {
	return Vec3{X: int(math.Floor(v.X)), Y: int(math.Floor(v.Y)), Z: int(math.Floor(v.Z))}
}

// Chunk возвращает чанк, в котором находится точка.
func (v Vec3Float) Chunk() Vec2 {
	return v.Block().Chunk()
}
