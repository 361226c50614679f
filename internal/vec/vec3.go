package vec

// Vec3: координаты блока.
type Vec3 struct {
	X int
	Y int
	Z int
}

// Chunk возвращает координаты чанка, содержащего блок.
func (v Vec3) Chunk() Vec2 {
	return Vec2{X: v.X, Z: v.Z}.ToChunkCoords()
}

// Local возвращает координаты внутри чанка по X и Z; Y не меняется.
func (v Vec3) Local() Vec3 {
	return Vec3{X: v.X & 0xF, Y: v.Y, Z: v.Z & 0xF}
}

// Center возвращает середину верхней грани блока.
func (v Vec3) Center() Vec3Float {
	return Vec3Float{X: float64(v.X) + 0.5, Y: float64(v.Y), Z: float64(v.Z) + 0.5}
}
