// Package registry содержит статические данные версии: типы сущностей,
// состояния блоков, синхронизируемые реестры и параметры измерения.
package registry

import (
	_ "embed"
	"fmt"
	"math/bits"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/annel0/voxelgate/internal/protocol"
)

//go:embed registries.yaml
var registriesYAML []byte

// Dimension: параметры единственного измерения сервера.
type Dimension struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	MinY       int    `yaml:"min_y"`
	Height     int    `yaml:"height"`
	SpawnBiome string `yaml:"spawn_biome"`
}

// Sections: число секций по 16 блоков в колонне чанка.
func (d Dimension) Sections() int { return d.Height / 16 }

// MaxY: первая высота над миром.
func (d Dimension) MaxY() int { return d.MinY + d.Height }

type knownPack struct {
	Namespace string `yaml:"namespace"`
	ID        string `yaml:"id"`
	Version   string `yaml:"version"`
}

type syncedRegistry struct {
	Name    string   `yaml:"name"`
	Entries []string `yaml:"entries"`
}

type document struct {
	Dimension       Dimension   `yaml:"dimension"`
	KnownPacks      []knownPack `yaml:"known_packs"`
	EnabledFeatures []string    `yaml:"enabled_features"`
	BlockStates     struct {
		Total  int32            `yaml:"total"`
		States map[string]int32 `yaml:"states"`
	} `yaml:"block_states"`
	EntityTypes []string         `yaml:"entity_types"`
	Registries  []syncedRegistry `yaml:"registries"`
}

// Registry: разобранные данные версии. Неизменяем после загрузки.
type Registry struct {
	doc         document
	entityTypes map[string]int32
	blockNames  map[int32]string
	entries     map[string]map[string]int32
}

var defaultRegistry = mustLoad(registriesYAML)

// Default возвращает встроенные данные 1.21.
func Default() *Registry { return defaultRegistry }

func mustLoad(data []byte) *Registry {
	r, err := Load(data)
	if err != nil {
		panic(fmt.Sprintf("registry: %v", err))
	}
	return r
}

// Load разбирает документ реестров и проверяет его целостность.
func Load(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("registries.yaml: %w", err)
	}
	if doc.Dimension.Height <= 0 || doc.Dimension.Height%16 != 0 {
		return nil, fmt.Errorf("dimension height %d is not a positive multiple of 16", doc.Dimension.Height)
	}

	r := &Registry{
		doc:         doc,
		entityTypes: make(map[string]int32, len(doc.EntityTypes)),
		blockNames:  make(map[int32]string, len(doc.BlockStates.States)),
		entries:     make(map[string]map[string]int32, len(doc.Registries)),
	}
	for i, name := range doc.EntityTypes {
		if _, dup := r.entityTypes[name]; dup {
			return nil, fmt.Errorf("entity type %s listed twice", name)
		}
		r.entityTypes[name] = int32(i)
	}
	for name, id := range doc.BlockStates.States {
		if id < 0 || id >= doc.BlockStates.Total {
			return nil, fmt.Errorf("block state %s=%d outside 0..%d", name, id, doc.BlockStates.Total-1)
		}
		if other, dup := r.blockNames[id]; dup {
			return nil, fmt.Errorf("block states %s and %s share id %d", name, other, id)
		}
		r.blockNames[id] = name
	}
	for _, reg := range doc.Registries {
		ids := make(map[string]int32, len(reg.Entries))
		for i, e := range reg.Entries {
			ids[qualify(e)] = int32(i)
		}
		r.entries[reg.Name] = ids
	}
	return r, nil
}

// qualify добавляет пространство имён minecraft, если его нет.
func qualify(name string) string {
	if strings.Contains(name, ":") {
		return name
	}
	return "minecraft:" + name
}

// Dimension возвращает параметры измерения.
func (r *Registry) Dimension() Dimension { return r.doc.Dimension }

// Sections: число секций в колонне чанка.
func (r *Registry) Sections() int { return r.doc.Dimension.Sections() }

// EntityType возвращает сетевой идентификатор типа сущности.
func (r *Registry) EntityType(name string) (int32, bool) {
	id, ok := r.entityTypes[strings.TrimPrefix(name, "minecraft:")]
	return id, ok
}

// EntityTypeName: обратное преобразование EntityType.
func (r *Registry) EntityTypeName(id int32) (string, bool) {
	if id < 0 || int(id) >= len(r.doc.EntityTypes) {
		return "", false
	}
	return r.doc.EntityTypes[id], true
}

// BlockState возвращает глобальный идентификатор состояния блока по имени.
func (r *Registry) BlockState(name string) (int32, bool) {
	id, ok := r.doc.BlockStates.States[strings.TrimPrefix(name, "minecraft:")]
	return id, ok
}

// MustBlockState паникует на неизвестном имени. Для констант генераторов.
func (r *Registry) MustBlockState(name string) int32 {
	id, ok := r.BlockState(name)
	if !ok {
		panic("registry: unknown block state " + name)
	}
	return id
}

// BlockStateName возвращает имя состояния, если оно перечислено в данных.
func (r *Registry) BlockStateName(id int32) (string, bool) {
	name, ok := r.blockNames[id]
	return name, ok
}

// TotalBlockStates: число глобальных состояний блоков.
func (r *Registry) TotalBlockStates() int32 { return r.doc.BlockStates.Total }

// DirectBits возвращает ширину записи прямой палитры блоков, ceil(log2(total)).
func (r *Registry) DirectBits() uint8 {
	return uint8(bits.Len32(uint32(r.doc.BlockStates.Total - 1)))
}

// RegistryID возвращает позицию элемента в синхронизируемом реестре.
func (r *Registry) RegistryID(registry, entry string) (int32, bool) {
	ids, ok := r.entries[qualify(registry)]
	if !ok {
		return 0, false
	}
	id, ok := ids[qualify(entry)]
	return id, ok
}

// SpawnBiome: идентификатор биома, которым заполняются сгенерированные чанки.
func (r *Registry) SpawnBiome() int32 {
	id, _ := r.RegistryID("worldgen/biome", r.doc.Dimension.SpawnBiome)
	return id
}

// DimensionType: идентификатор типа измерения для пакета login.
func (r *Registry) DimensionType() int32 {
	id, _ := r.RegistryID("dimension_type", r.doc.Dimension.Type)
	return id
}

// KnownPacks: пакеты данных, которые сервер предлагает клиенту.
func (r *Registry) KnownPacks() []protocol.KnownPack {
	out := make([]protocol.KnownPack, len(r.doc.KnownPacks))
	for i, p := range r.doc.KnownPacks {
		out[i] = protocol.KnownPack{Namespace: p.Namespace, ID: p.ID, Version: p.Version}
	}
	return out
}

// KnowsCore сообщает, подтвердил ли клиент все предложенные пакеты.
func (r *Registry) KnowsCore(client []protocol.KnownPack) bool {
	for _, want := range r.doc.KnownPacks {
		found := false
		for _, p := range client {
			if p.Namespace == want.Namespace && p.ID == want.ID && p.Version == want.Version {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// EnabledFeatures: наборы возможностей для update_enabled_features.
func (r *Registry) EnabledFeatures() []string {
	return append([]string(nil), r.doc.EnabledFeatures...)
}

// RegistryPackets строит registry_data для всех реестров без встроенных данных.
func (r *Registry) RegistryPackets() []protocol.RegistryData {
	out := make([]protocol.RegistryData, 0, len(r.doc.Registries))
	for _, reg := range r.doc.Registries {
		entries := make([]protocol.RegistryEntry, len(reg.Entries))
		for i, e := range reg.Entries {
			entries[i] = protocol.RegistryEntry{ID: qualify(e)}
		}
		out = append(out, protocol.RegistryData{Registry: reg.Name, Entries: entries})
	}
	return out
}
