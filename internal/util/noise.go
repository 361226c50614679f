package util

import (
	"github.com/aquilax/go-perlin"
)

// Noise: двумерный шум Перлина с фиксированным сидом.
// Значения детерминированы: один сид всегда даёт один и тот же ландшафт.
type Noise struct {
	p *perlin.Perlin
}

// NewNoise создаёт генератор шума с указанным сидом
func NewNoise(seed int64) *Noise {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &Noise{p: perlin.NewPerlin(alpha, beta, n, seed)}
}

// At возвращает значение шума для указанных координат (от 0 до 1)
func (n *Noise) At(x, y float64) float64 {
	v := n.p.Noise2D(x, y)
	// Преобразуем из -1..1 в 0..1 с отсечением выбросов
	v = (v + 1.0) / 2.0
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
