package protocol

import (
	_ "embed"
	"fmt"
	"reflect"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/annel0/voxelgate/internal/codec"
)

// Ошибки каталога.
var (
	// ErrUnknownPacket: идентификатора нет в таблице для данного состояния и направления.
	ErrUnknownPacket = errors.New("unknown packet id")
	// ErrUnhandledPacket: пакет известен по таблице, но его схема не объявлена.
	ErrUnhandledPacket = errors.New("recognized but unhandled packet")
)

//go:embed packets.yaml
var packetsYAML []byte

type idTable struct {
	Protocol int32                                   `yaml:"protocol"`
	Version  string                                  `yaml:"version"`
	States   map[string]map[string]map[string]int32 `yaml:"states"`
}

type scope struct {
	state State
	dir   Direction
}

type tableEntry struct {
	name   string
	schema Descriptor
}

// Catalog: неизменяемый набор схем всех состояний, собирается один раз при инициализации пакета.
type Catalog struct {
	protocol int32
	version  string
	ids      map[scope]map[string]int32
	byID     map[scope]map[int32]*tableEntry
	byType   map[scope]map[reflect.Type]Descriptor
}

var catalog = loadCatalog(packetsYAML)

func loadCatalog(data []byte) *Catalog {
	var t idTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		panic(fmt.Sprintf("protocol: packets.yaml: %v", err))
	}
	c := &Catalog{
		protocol: t.Protocol,
		version:  t.Version,
		ids:      make(map[scope]map[string]int32),
		byID:     make(map[scope]map[int32]*tableEntry),
		byType:   make(map[scope]map[reflect.Type]Descriptor),
	}
	for stateName, dirs := range t.States {
		st, ok := ParseState(stateName)
		if !ok {
			panic(fmt.Sprintf("protocol: packets.yaml: unknown state %q", stateName))
		}
		for dirName, names := range dirs {
			d, ok := ParseDirection(dirName)
			if !ok {
				panic(fmt.Sprintf("protocol: packets.yaml: unknown direction %q", dirName))
			}
			sc := scope{st, d}
			c.ids[sc] = make(map[string]int32, len(names))
			c.byID[sc] = make(map[int32]*tableEntry, len(names))
			c.byType[sc] = make(map[reflect.Type]Descriptor)
			for name, id := range names {
				if prev, dup := c.byID[sc][id]; dup {
					panic(fmt.Sprintf("protocol: %s/%s: id %#x shared by %s and %s", st, d, id, prev.name, name))
				}
				c.ids[sc][name] = id
				c.byID[sc][id] = &tableEntry{name: name}
			}
		}
	}
	return c
}

// define объявляет схему и связывает её с идентификатором из таблицы.
// Отсутствующий идентификатор или повторное объявление, ошибка сборки каталога.
func define[T any](st State, d Direction, name string, fields codec.Codec[T]) *Schema[T] {
	sc := scope{st, d}
	id, ok := catalog.ids[sc][name]
	if !ok {
		panic(fmt.Sprintf("protocol: %s/%s/%s has no id in packets.yaml", st, d, name))
	}
	e := catalog.byID[sc][id]
	if e.schema != nil {
		panic(fmt.Sprintf("protocol: %s/%s/%s declared twice", st, d, name))
	}
	s := &Schema[T]{state: st, dir: d, name: name, id: id, fields: fields}
	if _, dup := catalog.byType[sc][s.Type()]; dup {
		panic(fmt.Sprintf("protocol: %s/%s: type %s bound to two packets", st, d, s.Type()))
	}
	e.schema = s
	catalog.byType[sc][s.Type()] = s
	return s
}

// Default возвращает каталог протокола.
func Default() *Catalog { return catalog }

// Version: номер протокола из таблицы.
func (c *Catalog) Version() int32 { return c.protocol }

// VersionName: человекочитаемое имя версии.
func (c *Catalog) VersionName() string { return c.version }

// Decode читает идентификатор пакета и его поля из буфера без внешней длины.
func (c *Catalog) Decode(st State, d Direction, payload []byte) (Packet, error) {
	id, _, err := codec.VarInt.Decode(payload)
	if err != nil {
		return nil, err
	}
	e, ok := c.byID[scope{st, d}][id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPacket, "%s/%s id %#x", st, d, id)
	}
	if e.schema == nil {
		return nil, errors.Wrapf(ErrUnhandledPacket, "%s/%s/%s", st, d, e.name)
	}
	return e.schema.ReadPacket(payload)
}

// Marshal кодирует идентификатор и поля пакета. Схема выбирается по типу значения.
func (c *Catalog) Marshal(st State, d Direction, p Packet) ([]byte, error) {
	s, err := c.schemaFor(st, d, p)
	if err != nil {
		return nil, err
	}
	return s.MarshalPacket(p)
}

// Name возвращает имя пакета для значения p или пустую строку.
func (c *Catalog) Name(st State, d Direction, p Packet) string {
	if s, err := c.schemaFor(st, d, p); err == nil {
		return s.Name()
	}
	return ""
}

// NameOf возвращает имя пакета по идентификатору.
func (c *Catalog) NameOf(st State, d Direction, id int32) (string, bool) {
	e, ok := c.byID[scope{st, d}][id]
	if !ok {
		return "", false
	}
	return e.name, true
}

// Lookup ищет объявленную схему по имени.
func (c *Catalog) Lookup(st State, d Direction, name string) (Descriptor, bool) {
	id, ok := c.ids[scope{st, d}][name]
	if !ok {
		return nil, false
	}
	e := c.byID[scope{st, d}][id]
	if e.schema == nil {
		return nil, false
	}
	return e.schema, true
}

// Schemas перечисляет объявленные схемы состояния и направления в порядке идентификаторов.
func (c *Catalog) Schemas(st State, d Direction) []Descriptor {
	var out []Descriptor
	for _, e := range c.byID[scope{st, d}] {
		if e.schema != nil {
			out = append(out, e.schema)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (c *Catalog) schemaFor(st State, d Direction, p Packet) (Descriptor, error) {
	s, ok := c.byType[scope{st, d}][reflect.TypeOf(p)]
	if !ok {
		return nil, errors.Wrapf(codec.ErrInvalidValue, "%s/%s: no schema for %T", st, d, p)
	}
	return s, nil
}

// Decode декодирует пакет каталогом по умолчанию.
func Decode(st State, d Direction, payload []byte) (Packet, error) {
	return catalog.Decode(st, d, payload)
}

// Marshal кодирует пакет каталогом по умолчанию.
func Marshal(st State, d Direction, p Packet) ([]byte, error) {
	return catalog.Marshal(st, d, p)
}

// Lookup ищет схему в каталоге по умолчанию.
func Lookup(st State, d Direction, name string) (Descriptor, bool) {
	return catalog.Lookup(st, d, name)
}

// NameOf возвращает имя пакета значения p в каталоге по умолчанию.
func NameOf(st State, d Direction, p Packet) string {
	return catalog.Name(st, d, p)
}
