package world

import (
	"math/rand"

	"github.com/annel0/voxelgate/internal/registry"
	"github.com/annel0/voxelgate/internal/util"
	"github.com/annel0/voxelgate/internal/vec"
)

// Generator заполняет новые чанки.
type Generator interface {
	// Generate заполняет пустой чанк блоками и биомом.
	Generate(c *Chunk)
	// SurfaceY возвращает высоту верхнего твёрдого блока столбца.
	SurfaceY(x, z int) int
}

// NewGenerator создаёт генератор по имени из конфигурации (flat | noise).
func NewGenerator(name string, seed int64, reg *registry.Registry) Generator {
	if name == "noise" {
		return NewNoiseGenerator(seed, reg)
	}
	return NewFlatGenerator(reg)
}

// FlatGenerator строит суперплоский мир: бедрок, два слоя земли, трава.
type FlatGenerator struct {
	minY   int
	layers []int32
	biome  int32
}

// NewFlatGenerator создаёт плоский генератор
func NewFlatGenerator(reg *registry.Registry) *FlatGenerator {
	return &FlatGenerator{
		minY: reg.Dimension().MinY,
		layers: []int32{
			reg.MustBlockState("bedrock"),
			reg.MustBlockState("dirt"),
			reg.MustBlockState("dirt"),
			reg.MustBlockState("grass_block"),
		},
		biome: reg.SpawnBiome(),
	}
}

func (g *FlatGenerator) Generate(c *Chunk) {
	c.Biome = g.biome
	for i, state := range g.layers {
		y := g.minY + i
		for x := 0; x < 16; x++ {
			for z := 0; z < 16; z++ {
				c.SetBlock(x, y, z, state)
			}
		}
	}
}

func (g *FlatGenerator) SurfaceY(x, z int) int {
	return g.minY + len(g.layers) - 1
}

// Константы высот для генерации
const (
	SeaLevel      = 63
	BaseHeight    = 48   // Высота поверхности при нулевом шуме
	HeightRange   = 48   // Разброс высоты поверхности
	DesertValue   = 0.35 // Ниже - пустыня
	ForestValue   = 0.65 // Выше - лес
	MountainStart = 0.80 // Выше - горы
	DeepWaterMax  = 0.20 // Ниже - глубокий океан
)

// NoiseGenerator генерирует ландшафт по шуму Перлина
type NoiseGenerator struct {
	Seed       int64   // Сид для генерации шума
	NoiseScale float64 // Масштаб основного шума (высота)
	BiomeScale float64 // Масштаб шума биомов

	height *util.Noise
	biomes *util.Noise
	minY   int

	bedrock, stone, dirt, grass, sand, water, gravel int32

	biomePlains, biomeDesert, biomeForest, biomeHills, biomeOcean, biomeDeepOcean int32
}

// NewNoiseGenerator создаёт новый генератор мира
func NewNoiseGenerator(seed int64, reg *registry.Registry) *NoiseGenerator {
	biome := func(name string) int32 {
		id, ok := reg.RegistryID("worldgen/biome", name)
		if !ok {
			return reg.SpawnBiome()
		}
		return id
	}
	return &NoiseGenerator{
		Seed:       seed,
		NoiseScale: 0.01, // Настройка сглаженности ландшафта
		BiomeScale: 0.004,
		height:     util.NewNoise(seed),
		biomes:     util.NewNoise(seed + 42),
		minY:       reg.Dimension().MinY,

		bedrock: reg.MustBlockState("bedrock"),
		stone:   reg.MustBlockState("stone"),
		dirt:    reg.MustBlockState("dirt"),
		grass:   reg.MustBlockState("grass_block"),
		sand:    reg.MustBlockState("sand"),
		water:   reg.MustBlockState("water"),
		gravel:  reg.MustBlockState("gravel"),

		biomePlains:    biome("plains"),
		biomeDesert:    biome("desert"),
		biomeForest:    biome("forest"),
		biomeHills:     biome("windswept_hills"),
		biomeOcean:     biome("ocean"),
		biomeDeepOcean: biome("deep_ocean"),
	}
}

func (g *NoiseGenerator) noiseAt(x, z int) (height, biomeValue float64) {
	height = g.height.At(float64(x)*g.NoiseScale, float64(z)*g.NoiseScale)
	biomeValue = g.biomes.At(float64(x)*g.BiomeScale, float64(z)*g.BiomeScale)
	return height, biomeValue
}

func (g *NoiseGenerator) SurfaceY(x, z int) int {
	h, _ := g.noiseAt(x, z)
	return BaseHeight + int(h*HeightRange)
}

// Generate генерирует чанк по его координатам
func (g *NoiseGenerator) Generate(c *Chunk) {
	// Для каждого чанка создаем уникальный сид на основе глобального сида и координат
	chunkSeed := g.Seed + int64(c.Pos.X*31) + int64(c.Pos.Z*17)
	rng := rand.New(rand.NewSource(chunkSeed))

	base := vec.Vec2{X: c.Pos.X << 4, Z: c.Pos.Z << 4}

	// Один биом на колонну, по центру чанка
	ch, cb := g.noiseAt(base.X+8, base.Z+8)
	c.Biome = g.getBiomeType(ch, cb)

	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			h, b := g.noiseAt(base.X+x, base.Z+z)
			surface := BaseHeight + int(h*HeightRange)
			top, filler := g.getBlocksForColumn(surface, b)

			c.SetBlock(x, g.minY, z, g.bedrock)
			for y := g.minY + 1; y <= surface; y++ {
				switch {
				case y == surface:
					c.SetBlock(x, y, z, top)
				case y >= surface-3:
					c.SetBlock(x, y, z, filler)
				case y <= g.minY+4 && rng.Intn(y-g.minY+1) == 0:
					c.SetBlock(x, y, z, g.bedrock)
				default:
					c.SetBlock(x, y, z, g.stone)
				}
			}
			for y := surface + 1; y <= SeaLevel; y++ {
				c.SetBlock(x, y, z, g.water)
			}
		}
	}
}

// getBlocksForColumn возвращает верхний блок и подстилающий слой
func (g *NoiseGenerator) getBlocksForColumn(surface int, biomeValue float64) (top, filler int32) {
	switch {
	case surface < SeaLevel-8:
		return g.gravel, g.gravel
	case surface <= SeaLevel+1:
		return g.sand, g.sand
	case biomeValue < DesertValue:
		return g.sand, g.sand
	case float64(surface) > BaseHeight+MountainStart*HeightRange:
		return g.stone, g.stone
	default:
		return g.grass, g.dirt
	}
}

// getBiomeType определяет биом на основе значений шума
func (g *NoiseGenerator) getBiomeType(height, biomeValue float64) int32 {
	surface := BaseHeight + int(height*HeightRange)
	// Водные биомы в низинах
	if height < DeepWaterMax {
		return g.biomeDeepOcean
	}
	if surface < SeaLevel {
		return g.biomeOcean
	}
	// Горные биомы на возвышенностях
	if height > MountainStart {
		return g.biomeHills
	}
	if biomeValue < DesertValue {
		return g.biomeDesert
	} else if biomeValue > ForestValue {
		return g.biomeForest
	}
	return g.biomePlains
}
