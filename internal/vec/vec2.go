package vec

// Vec2: координаты на горизонтальной плоскости (X, Z). Используется для чанков.
type Vec2 struct {
	X, Z int
}

// ToChunkCoords преобразует координаты блока в координаты чанка
func (v Vec2) ToChunkCoords() Vec2 {
	return Vec2{X: v.X >> 4, Z: v.Z >> 4} // Деление на 16 с округлением вниз
}

// ChebyshevDistance: расстояние в шагах по квадратной сетке.
// Им определяется, попадает ли чанк в зону видимости.
func (v Vec2) ChebyshevDistance(other Vec2) int {
	dx := v.X - other.X
	if dx < 0 {
		dx = -dx
	}
	dz := v.Z - other.Z
	if dz < 0 {
		dz = -dz
	}
	if dx > dz {
		return dx
	}
	return dz
}

// DistanceSq: квадрат евклидова расстояния.
func (v Vec2) DistanceSq(other Vec2) int {
	dx := v.X - other.X
	dz := v.Z - other.Z
	return dx*dx + dz*dz
}
