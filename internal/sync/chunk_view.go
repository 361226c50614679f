package sync

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/annel0/voxelgate/internal/protocol"
	"github.com/annel0/voxelgate/internal/vec"
	"github.com/annel0/voxelgate/internal/world"
)

// ChunkSource: то, что ChunkView читает из мира.
type ChunkSource interface {
	Chunk(ctx context.Context, pos vec.Vec2) (*world.Chunk, error)
	ChangesSince(cursor uint64) (changes []world.Change, head uint64, truncated bool)
}

// ChunkView: набор чанков, загруженных у клиента вокруг центрального.
// Не потокобезопасен: принадлежит одному соединению.
type ChunkView struct {
	src     ChunkSource
	enc     *ChunkEncoder
	radius  int
	center  vec.Vec2
	loaded  map[vec.Vec2]struct{}
	cursor  uint64
	started bool
}

// NewChunkView создаёт пустой вид. radius: дальность прорисовки в чанках.
func NewChunkView(src ChunkSource, enc *ChunkEncoder, radius int) *ChunkView {
	return &ChunkView{
		src:    src,
		enc:    enc,
		radius: radius,
		loaded: make(map[vec.Vec2]struct{}),
	}
}

// Center: текущий центральный чанк.
func (v *ChunkView) Center() vec.Vec2 { return v.center }

// Loaded: число загруженных у клиента чанков.
func (v *ChunkView) Loaded() int { return len(v.loaded) }

// IsLoaded сообщает, загружен ли чанк у клиента.
func (v *ChunkView) IsLoaded(pos vec.Vec2) bool {
	_, ok := v.loaded[pos]
	return ok
}

// Move переносит центр вида. Возвращает set_chunk_cache_center, выгрузку
// ушедших чанков и пачку новых, ближайшие первыми. Повторный вызов с тем же
// центром ничего не отправляет.
func (v *ChunkView) Move(ctx context.Context, center vec.Vec2) ([]protocol.Packet, error) {
	if v.started && center == v.center {
		return nil, nil
	}
	if !v.started {
		// Курсор берётся до загрузки: изменение между ними придёт повторно, но не потеряется
		_, v.cursor, _ = v.src.ChangesSince(^uint64(0))
		v.started = true
	}
	v.center = center

	out := []protocol.Packet{protocol.SetChunkCacheCenter{X: int32(center.X), Z: int32(center.Z)}}

	var leaving []vec.Vec2
	for pos := range v.loaded {
		if pos.ChebyshevDistance(center) > v.radius {
			leaving = append(leaving, pos)
		}
	}
	sortByDistance(leaving, center)
	for _, pos := range leaving {
		delete(v.loaded, pos)
		out = append(out, protocol.ForgetLevelChunk{X: int32(pos.X), Z: int32(pos.Z)})
	}

	var entering []vec.Vec2
	for x := center.X - v.radius; x <= center.X+v.radius; x++ {
		for z := center.Z - v.radius; z <= center.Z+v.radius; z++ {
			pos := vec.Vec2{X: x, Z: z}
			if _, ok := v.loaded[pos]; !ok {
				entering = append(entering, pos)
			}
		}
	}
	sortByDistance(entering, center)

	batch, err := v.batch(ctx, entering)
	if err != nil {
		return nil, err
	}
	return append(out, batch...), nil
}

// batch загружает чанки и оборачивает их в chunk_batch_start/finished.
func (v *ChunkView) batch(ctx context.Context, positions []vec.Vec2) ([]protocol.Packet, error) {
	if len(positions) == 0 {
		return nil, nil
	}
	out := make([]protocol.Packet, 0, len(positions)+2)
	out = append(out, protocol.ChunkBatchStart{})
	for _, pos := range positions {
		c, err := v.src.Chunk(ctx, pos)
		if err != nil {
			return nil, errors.Wrapf(err, "load chunk %d,%d", pos.X, pos.Z)
		}
		out = append(out, v.enc.Encode(c))
	}
	for _, pos := range positions {
		v.loaded[pos] = struct{}{}
	}
	return append(out, protocol.ChunkBatchFinished{BatchSize: int32(len(positions))}), nil
}

type sectionChanges struct {
	pos    protocol.SectionPos
	order  []protocol.BlockChange
	byCell map[[3]uint8]int
}

// Changes переводит журнал изменений мира в пакеты для загруженных чанков:
// одно изменение в секции: block_update, несколько, section_blocks_update.
// Если журнал переполнился, все загруженные чанки отправляются заново.
func (v *ChunkView) Changes(ctx context.Context) ([]protocol.Packet, error) {
	if !v.started {
		return nil, nil
	}
	changes, head, truncated := v.src.ChangesSince(v.cursor)
	if truncated {
		positions := make([]vec.Vec2, 0, len(v.loaded))
		for pos := range v.loaded {
			positions = append(positions, pos)
		}
		sortByDistance(positions, v.center)
		out, err := v.batch(ctx, positions)
		if err != nil {
			return nil, err
		}
		v.cursor = head
		return out, nil
	}

	sections := map[protocol.SectionPos]*sectionChanges{}
	var keys []protocol.SectionPos
	for _, ch := range changes {
		if ch.Kind != world.ChangeBlock {
			continue
		}
		if _, ok := v.loaded[ch.Block.Chunk()]; !ok {
			continue
		}
		sp := protocol.SectionPos{
			X: int32(ch.Block.X >> 4),
			Y: int32(ch.Block.Y >> 4),
			Z: int32(ch.Block.Z >> 4),
		}
		sc, ok := sections[sp]
		if !ok {
			sc = &sectionChanges{pos: sp, byCell: map[[3]uint8]int{}}
			sections[sp] = sc
			keys = append(keys, sp)
		}
		bc := protocol.BlockChange{
			X:     uint8(ch.Block.X & 0xf),
			Y:     uint8(ch.Block.Y & 0xf),
			Z:     uint8(ch.Block.Z & 0xf),
			State: ch.State,
		}
		cell := [3]uint8{bc.X, bc.Y, bc.Z}
		if i, seen := sc.byCell[cell]; seen {
			sc.order[i] = bc
			continue
		}
		sc.byCell[cell] = len(sc.order)
		sc.order = append(sc.order, bc)
	}
	v.cursor = head

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		return a.Y < b.Y
	})
	var out []protocol.Packet
	for _, k := range keys {
		sc := sections[k]
		if len(sc.order) == 1 {
			bc := sc.order[0]
			out = append(out, protocol.BlockUpdate{
				Pos: protocol.BlockPos{
					X: k.X<<4 | int32(bc.X),
					Y: k.Y<<4 | int32(bc.Y),
					Z: k.Z<<4 | int32(bc.Z),
				},
				State: bc.State,
			})
			continue
		}
		out = append(out, protocol.SectionBlocksUpdate{Section: k, Blocks: sc.order})
	}
	return out, nil
}

// sortByDistance упорядочивает чанки по удалённости от центра, затем по координатам.
func sortByDistance(ps []vec.Vec2, center vec.Vec2) {
	sort.Slice(ps, func(i, j int) bool {
		di, dj := ps[i].DistanceSq(center), ps[j].DistanceSq(center)
		if di != dj {
			return di < dj
		}
		if ps[i].X != ps[j].X {
			return ps[i].X < ps[j].X
		}
		return ps[i].Z < ps[j].Z
	})
}
