package sync

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxelgate/internal/protocol"
	"github.com/annel0/voxelgate/internal/vec"
	"github.com/annel0/voxelgate/internal/world"
)

func entity(id uuid.UUID, x, y, z float64) *world.Entity {
	return &world.Entity{UUID: id, Type: 77, Position: vec.Vec3Float{X: x, Y: y, Z: z}}
}

func with(e *world.Entity, fn func(*world.Entity)) *world.Entity {
	cp := e.Clone()
	fn(cp)
	return cp
}

func TestTrackerScenario(t *testing.T) {
	tr := NewTracker()
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")

	out, err := tr.Sync(map[uuid.UUID]*world.Entity{a: entity(a, 0, 64, 0)})
	require.NoError(t, err)
	require.Len(t, out, 1, "Без метаданных и экипировки пакет один и без bundle")
	add, ok := out[0].(protocol.AddEntity)
	require.True(t, ok)
	assert.Equal(t, int32(1), add.ID, "Первый идентификатор соединения — 1")
	assert.Equal(t, a, add.UUID)
	assert.Equal(t, 64.0, add.Y)

	out, err = tr.Sync(map[uuid.UUID]*world.Entity{a: entity(a, 0.5, 64, 0)})
	require.NoError(t, err)
	require.Equal(t, []protocol.Packet{protocol.MoveEntityPos{ID: 1, DX: 2048}}, out)

	out, err = tr.Sync(map[uuid.UUID]*world.Entity{})
	require.NoError(t, err)
	require.Equal(t, []protocol.Packet{protocol.RemoveEntities{IDs: []int32{1}}}, out)
	assert.Equal(t, 0, tr.Len())
}

func TestTrackerTypeChangeRespawns(t *testing.T) {
	tr := NewTracker()
	a := uuid.New()
	pig := entity(a, 0, 64, 0)

	_, err := tr.Sync(map[uuid.UUID]*world.Entity{a: pig})
	require.NoError(t, err)

	cow := with(pig, func(e *world.Entity) {
		e.Type = 78
		e.Position.X = 1
	})
	out, err := tr.Sync(map[uuid.UUID]*world.Entity{a: cow})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, protocol.RemoveEntities{IDs: []int32{1}}, out[0])
	add, ok := out[1].(protocol.AddEntity)
	require.True(t, ok, "После удаления сущность появляется заново")
	assert.Equal(t, int32(2), add.ID, "Освобождённый идентификатор не переиспользуется")
	assert.Equal(t, int32(78), add.Type)
	assert.Equal(t, 1.0, add.X)

	wire, ok := tr.WireID(a)
	require.True(t, ok)
	assert.Equal(t, int32(2), wire)
	assert.Equal(t, 1, tr.Len())

	out, err = tr.Sync(map[uuid.UUID]*world.Entity{a: cow})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTrackerIdempotent(t *testing.T) {
	tr := NewTracker()
	a := uuid.New()
	cur := map[uuid.UUID]*world.Entity{a: entity(a, 1, 2, 3)}

	_, err := tr.Sync(cur)
	require.NoError(t, err)
	out, err := tr.Sync(cur)
	require.NoError(t, err)
	assert.Empty(t, out, "Повторный проход без изменений ничего не отправляет")

	// Равное по значению, но новое состояние тоже ничего не отправляет
	out, err = tr.Sync(map[uuid.UUID]*world.Entity{a: entity(a, 1, 2, 3)})
	require.NoError(t, err)
	assert.Empty(t, out)

	// Изменение меньше 1/4096 блока не видно на проводе
	out, err = tr.Sync(map[uuid.UUID]*world.Entity{a: entity(a, 1+1e-5, 2, 3)})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTrackerMoveKinds(t *testing.T) {
	a := uuid.New()
	base := entity(a, 0, 64, 0)

	cases := []struct {
		name string
		next *world.Entity
		want protocol.Packet
	}{
		{"rotation only", with(base, func(e *world.Entity) { e.Yaw = 90 }),
			protocol.MoveEntityRot{ID: 1, Yaw: 64}},
		{"position and rotation", with(base, func(e *world.Entity) { e.Position.Z = -1; e.Pitch = 45 }),
			protocol.MoveEntityPosRot{ID: 1, DZ: -4096, Pitch: 32}},
		{"just under 8 blocks", with(base, func(e *world.Entity) { e.Position.X = 32767.0 / 4096 }),
			protocol.MoveEntityPos{ID: 1, DX: 32767}},
		{"8 blocks teleports", with(base, func(e *world.Entity) { e.Position.X = 8 }),
			protocol.TeleportEntity{ID: 1, X: 8, Y: 64}},
		{"negative limit", with(base, func(e *world.Entity) { e.Position.Y = 56 }),
			protocol.MoveEntityPos{ID: 1, DY: -32768}},
		{"on ground only", with(base, func(e *world.Entity) { e.OnGround = true }),
			protocol.MoveEntityPos{ID: 1, OnGround: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTracker()
			_, err := tr.Sync(map[uuid.UUID]*world.Entity{a: base})
			require.NoError(t, err)
			out, err := tr.Sync(map[uuid.UUID]*world.Entity{a: tc.next})
			require.NoError(t, err)
			assert.Equal(t, []protocol.Packet{tc.want}, out)
		})
	}
}

func TestTrackerNoDriftAcrossMoves(t *testing.T) {
	tr := NewTracker()
	a := uuid.New()
	var sum int64
	x := 0.0
	_, err := tr.Sync(map[uuid.UUID]*world.Entity{a: entity(a, x, 0, 0)})
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		x += 0.1 / 3
		out, err := tr.Sync(map[uuid.UUID]*world.Entity{a: entity(a, x, 0, 0)})
		require.NoError(t, err)
		for _, p := range out {
			sum += int64(p.(protocol.MoveEntityPos).DX)
		}
	}
	assert.Equal(t, int64(math.Round(x*4096)), sum, "Сумма смещений равна закодированной позиции")
}

func TestTrackerBundlesAndOrder(t *testing.T) {
	tr := NewTracker()
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	c := uuid.MustParse("00000000-0000-0000-0000-000000000003")

	ea := entity(a, 0, 0, 0)
	ea.Metadata = protocol.Metadata{0: protocol.MetaByte(0x20)}
	eb := entity(b, 5, 0, 0)
	eb.Equipment = protocol.Equipment{protocol.MainHand: {Count: 1, Item: 800}, protocol.Head: {}}

	out, err := tr.Sync(map[uuid.UUID]*world.Entity{a: ea, b: eb})
	require.NoError(t, err)
	require.Equal(t, []protocol.Packet{
		protocol.BundleDelimiter{},
		out[1],
		protocol.SetEntityData{ID: 1, Metadata: ea.Metadata},
		protocol.BundleDelimiter{},
		protocol.BundleDelimiter{},
		out[5],
		protocol.SetEquipment{ID: 2, Equipment: protocol.Equipment{protocol.MainHand: {Count: 1, Item: 800}}},
		protocol.BundleDelimiter{},
	}, out, "Пустые слоты при появлении не отправляются")

	// Удаление, появление и изменение в одном проходе
	out, err = tr.Sync(map[uuid.UUID]*world.Entity{
		b: with(eb, func(e *world.Entity) { e.HeadYaw = 180; e.Yaw = 180 }),
		c: entity(c, 1, 1, 1),
	})
	require.NoError(t, err)
	require.Len(t, out, 6)
	assert.Equal(t, protocol.RemoveEntities{IDs: []int32{1}}, out[0])
	assert.Equal(t, int32(3), out[1].(protocol.AddEntity).ID, "Освобождённый номер не переиспользуется")
	assert.Equal(t, protocol.BundleDelimiter{}, out[2])
	assert.Equal(t, protocol.MoveEntityRot{ID: 2, Yaw: 128}, out[3])
	assert.Equal(t, protocol.RotateHead{ID: 2, HeadYaw: 128}, out[4])
	assert.Equal(t, protocol.BundleDelimiter{}, out[5])
}

func TestTrackerMetadataDiff(t *testing.T) {
	tr := NewTracker()
	a := uuid.New()
	e := entity(a, 0, 0, 0)
	e.Metadata = protocol.Metadata{0: protocol.MetaByte(0), 2: protocol.MetaVarInt(5)}
	_, err := tr.Sync(map[uuid.UUID]*world.Entity{a: e})
	require.NoError(t, err)

	next := with(e, func(e *world.Entity) {
		e.Metadata[2] = protocol.MetaVarInt(6)
		e.Metadata[7] = protocol.MetaBool(true)
		delete(e.Metadata, 0)
	})
	out, err := tr.Sync(map[uuid.UUID]*world.Entity{a: next})
	require.NoError(t, err)
	require.Equal(t, []protocol.Packet{protocol.SetEntityData{ID: 1, Metadata: protocol.Metadata{
		2: protocol.MetaVarInt(6),
		7: protocol.MetaBool(true),
	}}}, out, "Только добавленные и изменённые индексы")
}

func TestTrackerEquipmentPerSlot(t *testing.T) {
	tr := NewTracker()
	a := uuid.New()
	e := entity(a, 0, 0, 0)
	e.Equipment = protocol.Equipment{
		protocol.MainHand: {Count: 1, Item: 10},
		protocol.OffHand:  {Count: 1, Item: 20},
		protocol.Chest:    {Count: 1, Item: 30},
	}
	_, err := tr.Sync(map[uuid.UUID]*world.Entity{a: e})
	require.NoError(t, err)

	next := with(e, func(e *world.Entity) {
		e.Equipment[protocol.OffHand] = protocol.Slot{Count: 2, Item: 20}
		delete(e.Equipment, protocol.Chest)
		e.Equipment[protocol.Feet] = protocol.Slot{}
	})
	out, err := tr.Sync(map[uuid.UUID]*world.Entity{a: next})
	require.NoError(t, err)
	require.Equal(t, []protocol.Packet{protocol.SetEquipment{ID: 1, Equipment: protocol.Equipment{
		protocol.OffHand: {Count: 2, Item: 20},
		protocol.Chest:   {},
	}}}, out, "Каждый слот сравнивается со своим прежним значением")
}

func TestTrackerVelocity(t *testing.T) {
	tr := NewTracker()
	a := uuid.New()
	e := entity(a, 0, 0, 0)
	e.Velocity = vec.Vec3Float{Y: -0.08}
	out, err := tr.Sync(map[uuid.UUID]*world.Entity{a: e})
	require.NoError(t, err)
	assert.Equal(t, int16(-640), out[0].(protocol.AddEntity).VelY)

	out, err = tr.Sync(map[uuid.UUID]*world.Entity{a: with(e, func(e *world.Entity) { e.Velocity.X = 100 })})
	require.NoError(t, err)
	assert.Equal(t, []protocol.Packet{protocol.SetEntityMotion{ID: 1, VelX: math.MaxInt16, VelY: -640}}, out, "Скорость насыщается")
}

func TestTrackerSelf(t *testing.T) {
	self := uuid.New()
	other := uuid.New()
	tr := NewTracker(WithSelf(self))
	assert.Equal(t, int32(1), tr.SelfID())

	out, err := tr.Sync(map[uuid.UUID]*world.Entity{self: entity(self, 0, 0, 0), other: entity(other, 1, 0, 0)})
	require.NoError(t, err)
	require.Len(t, out, 1, "Собственная сущность не отправляется")
	assert.Equal(t, int32(2), out[0].(protocol.AddEntity).ID)
	assert.Equal(t, 1, tr.Len())

	out, err = tr.Sync(map[uuid.UUID]*world.Entity{})
	require.NoError(t, err)
	assert.Equal(t, []protocol.Packet{protocol.RemoveEntities{IDs: []int32{2}}}, out)
	id, ok := tr.WireID(self)
	assert.True(t, ok)
	assert.Equal(t, int32(1), id)
}

func TestTrackerErrorKeepsState(t *testing.T) {
	tr := NewTracker()
	a, b := uuid.New(), uuid.New()
	_, err := tr.Sync(map[uuid.UUID]*world.Entity{a: entity(a, 0, 0, 0)})
	require.NoError(t, err)

	// Ломаем согласованность: сущность известна, но номер не выдан
	delete(tr.alloc.ids, a)
	_, err = tr.Sync(map[uuid.UUID]*world.Entity{b: entity(b, 0, 0, 0)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvariant))
	assert.Equal(t, 1, tr.Len(), "После ошибки last_sent не меняется")
	_, known := tr.WireID(b)
	assert.False(t, known, "Номер из прерванного прохода не сохраняется")

	alloc := NewAllocator()
	assert.True(t, errors.Is(alloc.Release(5), ErrInvariant))
	alloc.next = math.MaxInt32
	_, err = alloc.Allocate(a)
	assert.True(t, errors.Is(err, ErrInvariant), "Исчерпание номеров")
}

// mirror моделирует клиента и применяет пакеты, полученные через кодек.
type mirror struct {
	entities map[int32]*mirrorEntity
}

type mirrorEntity struct {
	x, y, z    int64
	yaw, pitch protocol.Angle
	head       protocol.Angle
	onGround   bool
	vel        [3]int16
	meta       protocol.Metadata
	equipment  protocol.Equipment
}

func (m *mirror) apply(t *testing.T, packets []protocol.Packet) {
	t.Helper()
	depth := 0
	for _, p := range packets {
		raw, err := protocol.Marshal(protocol.Play, protocol.Clientbound, p)
		require.NoError(t, err, "%T", p)
		p, err = protocol.Decode(protocol.Play, protocol.Clientbound, raw)
		require.NoError(t, err)

		switch p := p.(type) {
		case protocol.BundleDelimiter:
			depth ^= 1
		case protocol.AddEntity:
			require.NotContains(t, m.entities, p.ID)
			m.entities[p.ID] = &mirrorEntity{
				x: fixed(p.X), y: fixed(p.Y), z: fixed(p.Z),
				yaw: p.Yaw, pitch: p.Pitch, head: p.HeadYaw,
				vel:       [3]int16{p.VelX, p.VelY, p.VelZ},
				meta:      protocol.Metadata{},
				equipment: protocol.Equipment{},
			}
		case protocol.RemoveEntities:
			for _, id := range p.IDs {
				require.Contains(t, m.entities, id)
				delete(m.entities, id)
			}
		case protocol.MoveEntityPos:
			e := m.entities[p.ID]
			e.x += int64(p.DX)
			e.y += int64(p.DY)
			e.z += int64(p.DZ)
			e.onGround = p.OnGround
		case protocol.MoveEntityPosRot:
			e := m.entities[p.ID]
			e.x += int64(p.DX)
			e.y += int64(p.DY)
			e.z += int64(p.DZ)
			e.yaw, e.pitch, e.onGround = p.Yaw, p.Pitch, p.OnGround
		case protocol.MoveEntityRot:
			e := m.entities[p.ID]
			e.yaw, e.pitch, e.onGround = p.Yaw, p.Pitch, p.OnGround
		case protocol.TeleportEntity:
			e := m.entities[p.ID]
			e.x, e.y, e.z = fixed(p.X), fixed(p.Y), fixed(p.Z)
			e.yaw, e.pitch, e.onGround = p.Yaw, p.Pitch, p.OnGround
		case protocol.RotateHead:
			m.entities[p.ID].head = p.HeadYaw
		case protocol.SetEntityData:
			for k, v := range p.Metadata {
				m.entities[p.ID].meta[k] = v
			}
		case protocol.SetEquipment:
			for k, v := range p.Equipment {
				if v.Empty() {
					delete(m.entities[p.ID].equipment, k)
				} else {
					m.entities[p.ID].equipment[k] = v
				}
			}
		case protocol.SetEntityMotion:
			m.entities[p.ID].vel = [3]int16{p.VelX, p.VelY, p.VelZ}
		default:
			t.Fatalf("неожиданный пакет %T", p)
		}
	}
	assert.Equal(t, 0, depth, "bundle_delimiter парные")
}

func TestTrackerMirrorReplay(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ids := make([]uuid.UUID, 12)
	for i := range ids {
		ids[i] = uuid.New()
	}
	state := map[uuid.UUID]*world.Entity{}
	tr := NewTracker()
	m := &mirror{entities: map[int32]*mirrorEntity{}}

	for step := 0; step < 300; step++ {
		id := ids[rng.Intn(len(ids))]
		switch e, ok := state[id]; {
		case !ok:
			state[id] = entity(id, rng.Float64()*20, 64, rng.Float64()*20)
		case rng.Intn(6) == 0:
			delete(state, id)
		default:
			state[id] = with(e, func(e *world.Entity) {
				e.Position.X += (rng.Float64() - 0.5) * 20
				e.Yaw = rng.Float32() * 360
				e.HeadYaw = rng.Float32() * 360
				e.OnGround = rng.Intn(2) == 0
				e.Velocity.Y = rng.Float64() - 0.5
				if e.Metadata == nil {
					e.Metadata = protocol.Metadata{}
				}
				e.Metadata[uint8(rng.Intn(3))] = protocol.MetaVarInt(rng.Int31n(4))
				if e.Equipment == nil {
					e.Equipment = protocol.Equipment{}
				}
				slot := protocol.EquipmentSlot(rng.Intn(3))
				if rng.Intn(3) == 0 {
					delete(e.Equipment, slot)
				} else {
					e.Equipment[slot] = protocol.Slot{Count: 1, Item: rng.Int31n(3)}
				}
			})
		}

		cur := make(map[uuid.UUID]*world.Entity, len(state))
		for k, v := range state {
			cur[k] = v
		}
		out, err := tr.Sync(cur)
		require.NoError(t, err)
		m.apply(t, out)

		require.Len(t, m.entities, len(state), "шаг %d", step)
		for id, e := range state {
			wire, ok := tr.WireID(id)
			require.True(t, ok)
			me := m.entities[wire]
			require.NotNil(t, me)
			assert.Equal(t, fixed(e.Position.X), me.x, "шаг %d: x", step)
			assert.Equal(t, fixed(e.Position.Z), me.z)
			assert.Equal(t, protocol.AngleOf(e.Yaw), me.yaw)
			assert.Equal(t, protocol.AngleOf(e.HeadYaw), me.head)
			vx, vy, vz := encodeVelocity(e.Velocity)
			assert.Equal(t, [3]int16{vx, vy, vz}, me.vel)
			assert.Equal(t, nonEmptyEquipment(e.Equipment), nilIfEmpty(me.equipment))
			for k, v := range e.Metadata {
				assert.Equal(t, v, me.meta[k])
			}
		}
	}
}

func nilIfEmpty(e protocol.Equipment) protocol.Equipment {
	if len(e) == 0 {
		return nil
	}
	return e
}
