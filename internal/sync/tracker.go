package sync

import (
	"bytes"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/annel0/voxelgate/internal/protocol"
	"github.com/annel0/voxelgate/internal/vec"
	"github.com/annel0/voxelgate/internal/world"
)

// Tracker хранит, какие сущности и в каком виде уже отправлены клиенту.
// Не потокобезопасен: принадлежит одному соединению.
type Tracker struct {
	alloc  *Allocator
	last   map[uuid.UUID]*world.Entity
	self   uuid.UUID
	selfID int32
}

// Option настраивает Tracker.
type Option func(*Tracker)

// WithSelf резервирует идентификатор под собственную сущность игрока.
// Она получает первый номер и никогда не попадает в проходы синхронизации.
func WithSelf(id uuid.UUID) Option {
	return func(t *Tracker) { t.self = id }
}

// NewTracker создаёт трекер для нового соединения.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		alloc: NewAllocator(),
		last:  make(map[uuid.UUID]*world.Entity),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.self != uuid.Nil {
		// Пустой аллокатор всегда выдаёт 1
		t.selfID, _ = t.alloc.Allocate(t.self)
	}
	return t
}

// SelfID: идентификатор собственной сущности или 0.
func (t *Tracker) SelfID() int32 { return t.selfID }

// WireID возвращает идентификатор, под которым клиент знает сущность.
func (t *Tracker) WireID(id uuid.UUID) (int32, bool) { return t.alloc.Lookup(id) }

// Len: число сущностей, известных клиенту (без собственной).
func (t *Tracker) Len() int { return len(t.last) }

type entityPackets struct {
	wire    int32
	packets []protocol.Packet
}

// Sync сравнивает current с последним отправленным состоянием и возвращает
// пакеты в порядке: удаления, появления, изменения. Смена типа даёт удаление
// и появление под новым идентификатором. Внутри групп сущности
// идут по возрастанию идентификатора. При ошибке состояние не меняется.
func (t *Tracker) Sync(current map[uuid.UUID]*world.Entity) ([]protocol.Packet, error) {
	alloc := t.alloc.clone()

	var removed []int32
	// Сменившие тип пересоздаются: клиент не умеет менять тип сущности
	respawn := make(map[uuid.UUID]bool)
	for id, prev := range t.last {
		if cur, ok := current[id]; ok {
			if cur.Type == prev.Type {
				continue
			}
			respawn[id] = true
		}
		wire, ok := alloc.Lookup(id)
		if !ok {
			return nil, errors.Wrapf(ErrInvariant, "tracked entity %s has no wire id", id)
		}
		removed = append(removed, wire)
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	for _, wire := range removed {
		if err := alloc.Release(wire); err != nil {
			return nil, err
		}
	}

	// Новые идентификаторы выдаются в порядке UUID, чтобы проход был детерминирован
	ids := make([]uuid.UUID, 0, len(current))
	for id := range current {
		if id != t.self || t.self == uuid.Nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	var added, updated []entityPackets
	for _, id := range ids {
		e := current[id]
		prev, known := t.last[id]
		if !known || respawn[id] {
			wire, err := alloc.Allocate(id)
			if err != nil {
				return nil, err
			}
			pk, err := spawnPackets(wire, e)
			if err != nil {
				return nil, errors.Wrapf(err, "spawn entity %s", id)
			}
			added = append(added, entityPackets{wire, pk})
			continue
		}
		if prev == e {
			continue
		}
		wire, ok := alloc.Lookup(id)
		if !ok {
			return nil, errors.Wrapf(ErrInvariant, "tracked entity %s has no wire id", id)
		}
		pk, err := updatePackets(wire, prev, e)
		if err != nil {
			return nil, errors.Wrapf(err, "update entity %s", id)
		}
		if len(pk) > 0 {
			updated = append(updated, entityPackets{wire, pk})
		}
	}

	var out []protocol.Packet
	if len(removed) > 0 {
		out = append(out, protocol.RemoveEntities{IDs: removed})
	}
	for _, group := range [][]entityPackets{added, updated} {
		sort.Slice(group, func(i, j int) bool { return group[i].wire < group[j].wire })
		for _, g := range group {
			out = appendBundle(out, g.packets)
		}
	}

	last := make(map[uuid.UUID]*world.Entity, len(ids))
	for _, id := range ids {
		last[id] = current[id]
	}
	t.alloc = alloc
	t.last = last
	return out, nil
}

// appendBundle оборачивает последовательность из нескольких пакетов в
// bundle_delimiter, чтобы клиент применил её за один кадр.
func appendBundle(out []protocol.Packet, packets []protocol.Packet) []protocol.Packet {
	if len(packets) < 2 {
		return append(out, packets...)
	}
	out = append(out, protocol.BundleDelimiter{})
	out = append(out, packets...)
	return append(out, protocol.BundleDelimiter{})
}

func spawnPackets(wire int32, e *world.Entity) ([]protocol.Packet, error) {
	vx, vy, vz := encodeVelocity(e.Velocity)
	out := []protocol.Packet{protocol.AddEntity{
		ID:      wire,
		UUID:    e.UUID,
		Type:    e.Type,
		X:       e.Position.X,
		Y:       e.Position.Y,
		Z:       e.Position.Z,
		Pitch:   protocol.AngleOf(e.Pitch),
		Yaw:     protocol.AngleOf(e.Yaw),
		HeadYaw: protocol.AngleOf(e.HeadYaw),
		Data:    e.Data,
		VelX:    vx,
		VelY:    vy,
		VelZ:    vz,
	}}
	if len(e.Metadata) > 0 {
		out = append(out, protocol.SetEntityData{ID: wire, Metadata: e.Metadata})
	}
	if eq := nonEmptyEquipment(e.Equipment); len(eq) > 0 {
		out = append(out, protocol.SetEquipment{ID: wire, Equipment: eq})
	}
	return out, nil
}

func updatePackets(wire int32, prev, cur *world.Entity) ([]protocol.Packet, error) {
	var out []protocol.Packet
	if p := movePacket(wire, prev, cur); p != nil {
		out = append(out, p)
	}
	if head := protocol.AngleOf(cur.HeadYaw); head != protocol.AngleOf(prev.HeadYaw) {
		out = append(out, protocol.RotateHead{ID: wire, HeadYaw: head})
	}
	meta, err := diffMetadata(prev.Metadata, cur.Metadata)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		out = append(out, protocol.SetEntityData{ID: wire, Metadata: meta})
	}
	if eq := diffEquipment(prev.Equipment, cur.Equipment); len(eq) > 0 {
		out = append(out, protocol.SetEquipment{ID: wire, Equipment: eq})
	}
	px, py, pz := encodeVelocity(prev.Velocity)
	vx, vy, vz := encodeVelocity(cur.Velocity)
	if px != vx || py != vy || pz != vz {
		out = append(out, protocol.SetEntityMotion{ID: wire, VelX: vx, VelY: vy, VelZ: vz})
	}
	return out, nil
}

// fixed: позиция в единицах 1/4096 блока.
func fixed(v float64) int64 { return int64(math.Round(v * 4096)) }

func fitsDelta(d int64) bool { return d >= math.MinInt16 && d <= math.MaxInt16 }

// movePacket выбирает пакет перемещения. Смещение считается между
// закодированными позициями, поэтому ошибка округления не накапливается.
func movePacket(wire int32, prev, cur *world.Entity) protocol.Packet {
	dx := fixed(cur.Position.X) - fixed(prev.Position.X)
	dy := fixed(cur.Position.Y) - fixed(prev.Position.Y)
	dz := fixed(cur.Position.Z) - fixed(prev.Position.Z)
	yaw, pitch := protocol.AngleOf(cur.Yaw), protocol.AngleOf(cur.Pitch)

	moved := dx != 0 || dy != 0 || dz != 0
	rotated := yaw != protocol.AngleOf(prev.Yaw) || pitch != protocol.AngleOf(prev.Pitch)
	grounded := cur.OnGround != prev.OnGround

	switch {
	case !moved && !rotated && !grounded:
		return nil
	case !fitsDelta(dx) || !fitsDelta(dy) || !fitsDelta(dz):
		return protocol.TeleportEntity{
			ID:       wire,
			X:        cur.Position.X,
			Y:        cur.Position.Y,
			Z:        cur.Position.Z,
			Yaw:      yaw,
			Pitch:    pitch,
			OnGround: cur.OnGround,
		}
	case moved && rotated:
		return protocol.MoveEntityPosRot{
			ID:       wire,
			DX:       int16(dx),
			DY:       int16(dy),
			DZ:       int16(dz),
			Yaw:      yaw,
			Pitch:    pitch,
			OnGround: cur.OnGround,
		}
	case rotated:
		return protocol.MoveEntityRot{ID: wire, Yaw: yaw, Pitch: pitch, OnGround: cur.OnGround}
	default:
		// Смена только on_ground тоже передаётся нулевым смещением
		return protocol.MoveEntityPos{
			ID:       wire,
			DX:       int16(dx),
			DY:       int16(dy),
			DZ:       int16(dz),
			OnGround: cur.OnGround,
		}
	}
}

// encodeVelocity переводит скорость в 1/8000 блока за тик с насыщением.
// encodeVelocity переводит блоки за тик в единицы 1/8000 блока.
func encodeVelocity(v vec.Vec3Float) (x, y, z int16) {
	v = v.Mul(8000)
	return velocityComponent(v.X), velocityComponent(v.Y), velocityComponent(v.Z)
}

func velocityComponent(v float64) int16 {
	f := math.Round(v)
	switch {
	case math.IsNaN(f):
		return 0
	case f > math.MaxInt16:
		return math.MaxInt16
	case f < math.MinInt16:
		return math.MinInt16
	}
	return int16(f)
}

// diffMetadata возвращает добавленные и изменённые индексы. Значения
// сравниваются по закодированным байтам. Удалённые индексы не сбрасываются.
func diffMetadata(prev, cur protocol.Metadata) (protocol.Metadata, error) {
	var out protocol.Metadata
	for idx, v := range cur {
		enc, err := protocol.EncodeMetaValue(v)
		if err != nil {
			return nil, errors.Wrapf(err, "metadata index %d", idx)
		}
		if old, ok := prev[idx]; ok {
			oldEnc, err := protocol.EncodeMetaValue(old)
			if err == nil && bytes.Equal(enc, oldEnc) {
				continue
			}
		}
		if out == nil {
			out = protocol.Metadata{}
		}
		out[idx] = v
	}
	return out, nil
}

// diffEquipment сравнивает каждый слот с его прежним значением.
// Опустевший слот отправляется пустым предметом.
func diffEquipment(prev, cur protocol.Equipment) protocol.Equipment {
	var out protocol.Equipment
	mark := func(slot protocol.EquipmentSlot, v protocol.Slot) {
		if out == nil {
			out = protocol.Equipment{}
		}
		out[slot] = v
	}
	for slot, v := range cur {
		old := prev[slot]
		if normalizeSlot(old) != normalizeSlot(v) {
			mark(slot, normalizeSlot(v))
		}
	}
	for slot, old := range prev {
		if _, ok := cur[slot]; !ok && !old.Empty() {
			mark(slot, protocol.Slot{})
		}
	}
	return out
}

func normalizeSlot(s protocol.Slot) protocol.Slot {
	if s.Empty() {
		return protocol.Slot{}
	}
	return s
}

func nonEmptyEquipment(eq protocol.Equipment) protocol.Equipment {
	var out protocol.Equipment
	for slot, v := range eq {
		if v.Empty() {
			continue
		}
		if out == nil {
			out = protocol.Equipment{}
		}
		out[slot] = v
	}
	return out
}
