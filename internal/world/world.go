package world

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack"

	"github.com/annel0/voxelgate/internal/eventbus"
	"github.com/annel0/voxelgate/internal/logging"
	"github.com/annel0/voxelgate/internal/protocol"
	"github.com/annel0/voxelgate/internal/registry"
	"github.com/annel0/voxelgate/internal/storage"
	"github.com/annel0/voxelgate/internal/vec"
)

// Options параметры мира.
type Options struct {
	Registry      *registry.Registry
	Generator     Generator          // По умолчанию плоский
	Store         storage.ChunkStore // По умолчанию в памяти
	Bus           eventbus.EventBus  // nil: без уведомлений
	Source        string             // Идентификатор сервера в событиях
	ChangeLogSize int
	SaveInterval  time.Duration // 0: без автосохранения
}

// World: авторитетное состояние мира, разделяемое всеми соединениями.
// Мутации сериализуются мьютексом; читатели получают копии.
type World struct {
	reg    *registry.Registry
	gen    Generator
	store  storage.ChunkStore
	bus    eventbus.EventBus
	source string
	logger *logging.Logger

	mu       sync.RWMutex               // Мьютекс для общего доступа
	chunks   map[vec.Vec2]*Chunk        // Загруженные чанки
	entities map[uuid.UUID]*Entity      // Копии; заменяются целиком
	index    *spatialIndex              // Сущности по чанкам
	players  map[uuid.UUID]PlayerEntry  // Список игроков
	log      *changeLog                 // Журнал изменений
	loading  map[vec.Vec2]chan struct{} // Чанки, которые сейчас загружаются
	saveMu   sync.Mutex                 // Мьютекс для операций сохранения
	interval time.Duration              // Период автосохранения
	cancel   context.CancelFunc         // Останавливает autoSaveLoop
	done     chan struct{}              // Закрывается по завершении autoSaveLoop
}

// New создаёт мир. Чанки загружаются лениво при первом обращении.
func New(opts Options) *World {
	if opts.Registry == nil {
		opts.Registry = registry.Default()
	}
	if opts.Generator == nil {
		opts.Generator = NewFlatGenerator(opts.Registry)
	}
	if opts.Store == nil {
		opts.Store = storage.NewMemoryChunkStore()
	}
	return &World{
		reg:      opts.Registry,
		gen:      opts.Generator,
		store:    opts.Store,
		bus:      opts.Bus,
		source:   opts.Source,
		logger:   logging.GetGameLogger(),
		chunks:   make(map[vec.Vec2]*Chunk),
		entities: make(map[uuid.UUID]*Entity),
		index:    newSpatialIndex(),
		players:  make(map[uuid.UUID]PlayerEntry),
		log:      newChangeLog(opts.ChangeLogSize),
		loading:  make(map[vec.Vec2]chan struct{}),
		interval: opts.SaveInterval,
	}
}

// Registry возвращает данные версии, с которыми работает мир.
func (w *World) Registry() *registry.Registry { return w.reg }

// Dimension возвращает параметры измерения.
func (w *World) Dimension() registry.Dimension { return w.reg.Dimension() }

// Spawn возвращает точку появления, блок над поверхностью в начале координат.
func (w *World) Spawn() vec.Vec3 {
	return vec.Vec3{X: 0, Y: w.gen.SurfaceY(0, 0) + 1, Z: 0}
}

// Run запускает автосохранение. Останавливается отменой ctx или Close.
func (w *World) Run(ctx context.Context) {
	if w.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.autoSaveLoop(ctx)
}

// autoSaveLoop запускает периодическое сохранение мира
func (w *World) autoSaveLoop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := w.SaveDirty(ctx); err != nil {
				w.logger.Warn("Автосохранение прервано: %v", err)
			} else if n > 0 {
				w.logger.Debug("Автосохранение: %d чанков", n)
			}
		}
	}
}

// Close останавливает автосохранение и сохраняет изменённые чанки.
func (w *World) Close(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
	n, err := w.SaveDirty(ctx)
	if err != nil {
		return err
	}
	w.logger.Info("💾 Мир сохранён: %d чанков", n)
	return nil
}

// SaveDirty записывает изменённые чанки в хранилище и возвращает их число.
func (w *World) SaveDirty(ctx context.Context) (int, error) {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	w.mu.Lock()
	var records []*storage.ChunkRecord
	for _, c := range w.chunks {
		if c.dirty {
			records = append(records, c.Record())
			c.dirty = false
		}
	}
	w.mu.Unlock()

	for i, rec := range records {
		if err := w.store.Save(ctx, rec); err != nil {
			// Несохранённые чанки снова помечаются изменёнными
			w.mu.Lock()
			for _, r := range records[i:] {
				if c, ok := w.chunks[vec.Vec2{X: int(r.X), Z: int(r.Z)}]; ok {
					c.dirty = true
				}
			}
			w.mu.Unlock()
			return i, fmt.Errorf("сохранение чанка %d,%d: %w", rec.X, rec.Z, err)
		}
	}
	return len(records), nil
}

// ensureChunk загружает чанк из хранилища или генерирует его.
// Хранилище и генератор вызываются без удержания мьютекса мира.
func (w *World) ensureChunk(ctx context.Context, pos vec.Vec2) error {
	for {
		w.mu.Lock()
		if _, ok := w.chunks[pos]; ok {
			w.mu.Unlock()
			return nil
		}
		wait, busy := w.loading[pos]
		if !busy {
			w.loading[pos] = make(chan struct{})
		}
		w.mu.Unlock()

		if !busy {
			break
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c, err := w.loadChunk(ctx, pos)

	w.mu.Lock()
	if err == nil {
		w.chunks[pos] = c
	}
	close(w.loading[pos])
	delete(w.loading, pos)
	w.mu.Unlock()
	return err
}

func (w *World) loadChunk(ctx context.Context, pos vec.Vec2) (*Chunk, error) {
	rec, err := w.store.Load(ctx, int32(pos.X), int32(pos.Z))
	switch {
	case err == nil:
		return ChunkFromRecord(rec, w.reg.Dimension())
	case errors.Is(err, storage.ErrNotFound):
		c := NewChunk(pos, w.reg.Dimension(), w.reg.SpawnBiome())
		w.gen.Generate(c)
		c.dirty = true
		return c, nil
	default:
		return nil, fmt.Errorf("загрузка чанка %d,%d: %w", pos.X, pos.Z, err)
	}
}

// Chunk возвращает копию чанка, при необходимости загружая его.
func (w *World) Chunk(ctx context.Context, pos vec.Vec2) (*Chunk, error) {
	if err := w.ensureChunk(ctx, pos); err != nil {
		return nil, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chunks[pos].Clone(), nil
}

// Block возвращает состояние блока в мировых координатах.
func (w *World) Block(ctx context.Context, pos vec.Vec3) (int32, error) {
	cp := pos.Chunk()
	if err := w.ensureChunk(ctx, cp); err != nil {
		return Air, err
	}
	l := pos.Local()
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chunks[cp].Block(l.X, pos.Y, l.Z), nil
}

// SetBlock меняет блок и возвращает true, если состояние изменилось.
// Высота за пределами измерения молча игнорируется.
func (w *World) SetBlock(ctx context.Context, pos vec.Vec3, state int32) (bool, error) {
	if state < 0 || state >= w.reg.TotalBlockStates() {
		return false, fmt.Errorf("неизвестное состояние блока %d", state)
	}
	cp := pos.Chunk()
	if err := w.ensureChunk(ctx, cp); err != nil {
		return false, err
	}
	l := pos.Local()

	w.mu.Lock()
	if !w.chunks[cp].SetBlock(l.X, pos.Y, l.Z, state) {
		w.mu.Unlock()
		return false, nil
	}
	ch := w.log.append(Change{Kind: ChangeBlock, Block: pos, State: state})
	w.mu.Unlock()

	w.publish(ctx, ch)
	return true, nil
}

// PutEntity добавляет или заменяет сущность.
func (w *World) PutEntity(ctx context.Context, e *Entity) {
	cp := e.Clone()
	w.mu.Lock()
	w.entities[cp.UUID] = cp
	w.index.update(cp.UUID, cp.Position)
	ch := w.log.append(Change{Kind: ChangeEntity, Subject: cp.UUID})
	w.mu.Unlock()
	w.publish(ctx, ch)
}

// UpdateEntity применяет fn к копии сущности и сохраняет результат.
// Возвращает false, если сущности нет.
func (w *World) UpdateEntity(ctx context.Context, id uuid.UUID, fn func(e *Entity)) bool {
	w.mu.Lock()
	cur, ok := w.entities[id]
	if !ok {
		w.mu.Unlock()
		return false
	}
	cp := cur.Clone()
	fn(cp)
	cp.UUID = id
	w.entities[id] = cp
	w.index.update(id, cp.Position)
	ch := w.log.append(Change{Kind: ChangeEntity, Subject: id})
	w.mu.Unlock()
	w.publish(ctx, ch)
	return true
}

// Entity возвращает копию сущности.
func (w *World) Entity(id uuid.UUID) (*Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entities[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// RemoveEntity удаляет сущность и сообщает, была ли она.
func (w *World) RemoveEntity(ctx context.Context, id uuid.UUID) bool {
	w.mu.Lock()
	if _, ok := w.entities[id]; !ok {
		w.mu.Unlock()
		return false
	}
	delete(w.entities, id)
	w.index.remove(id)
	ch := w.log.append(Change{Kind: ChangeEntityRemoved, Subject: id})
	w.mu.Unlock()
	w.publish(ctx, ch)
	return true
}

// PutPlayer добавляет или заменяет запись списка игроков.
func (w *World) PutPlayer(ctx context.Context, p PlayerEntry) {
	p.Properties = append([]protocol.Property(nil), p.Properties...)
	w.mu.Lock()
	w.players[p.UUID] = p
	ch := w.log.append(Change{Kind: ChangePlayer, Subject: p.UUID})
	w.mu.Unlock()
	w.publish(ctx, ch)
}

// UpdatePlayer меняет запись списка игроков через fn. Возвращает false, если записи нет.
func (w *World) UpdatePlayer(ctx context.Context, id uuid.UUID, fn func(p *PlayerEntry)) bool {
	w.mu.Lock()
	p, ok := w.players[id]
	if !ok {
		w.mu.Unlock()
		return false
	}
	p.Properties = append([]protocol.Property(nil), p.Properties...)
	fn(&p)
	p.UUID = id
	w.players[id] = p
	ch := w.log.append(Change{Kind: ChangePlayer, Subject: id})
	w.mu.Unlock()
	w.publish(ctx, ch)
	return true
}

// Player возвращает запись списка игроков.
func (w *World) Player(id uuid.UUID) (PlayerEntry, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[id]
	return p, ok
}

// RemovePlayer удаляет запись списка игроков.
func (w *World) RemovePlayer(ctx context.Context, id uuid.UUID) bool {
	w.mu.Lock()
	if _, ok := w.players[id]; !ok {
		w.mu.Unlock()
		return false
	}
	delete(w.players, id)
	ch := w.log.append(Change{Kind: ChangePlayerRemoved, Subject: id})
	w.mu.Unlock()
	w.publish(ctx, ch)
	return true
}

// Snapshot: согласованный срез мира для прохода синхронизации.
type Snapshot struct {
	Entities map[uuid.UUID]*Entity // Значения неизменяемы
	Players  map[uuid.UUID]PlayerEntry
	Cursor   uint64 // Позиция журнала изменений на момент среза
}

// Snapshot атомарно копирует сущности, игроков и курсор журнала.
func (w *World) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s := Snapshot{
		Entities: make(map[uuid.UUID]*Entity, len(w.entities)),
		Players:  make(map[uuid.UUID]PlayerEntry, len(w.players)),
		Cursor:   w.log.head,
	}
	for id, e := range w.entities {
		s.Entities[id] = e
	}
	for id, p := range w.players {
		s.Players[id] = p
	}
	return s
}

// SnapshotNear как Snapshot, но только с сущностями в радиусе radius
// чанков от center. Список игроков не фильтруется.
func (w *World) SnapshotNear(center vec.Vec2, radius int) Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s := Snapshot{
		Entities: make(map[uuid.UUID]*Entity),
		Players:  make(map[uuid.UUID]PlayerEntry, len(w.players)),
		Cursor:   w.log.head,
	}
	w.index.queryRange(center, radius, func(id uuid.UUID) {
		s.Entities[id] = w.entities[id]
	})
	for id, p := range w.players {
		s.Players[id] = p
	}
	return s
}

// ChangesSince возвращает изменения блоков после cursor и новый курсор.
// Курсор общий для всех изменений мира.
// truncated: журнал переполнился и часть изменений потеряна.
func (w *World) ChangesSince(cursor uint64) (changes []Change, head uint64, truncated bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.log.since(cursor)
}

// EntityCount: число сущностей мира.
func (w *World) EntityCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entities)
}

// ChunkCount: число загруженных чанков.
func (w *World) ChunkCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chunks)
}

// publish уведомляет подписчиков шины об изменении. Вызывается без мьютекса.
func (w *World) publish(ctx context.Context, ch Change) {
	if w.bus == nil {
		return
	}
	payload, err := msgpack.Marshal(&ch)
	if err != nil {
		w.logger.Error("Ошибка сериализации изменения %d: %v", ch.Seq, err)
		return
	}
	ev := eventbus.NewEnvelope(w.source, EventWorldChanged, payload)
	ev.Metadata = map[string]string{"kind": ch.Kind.String()}
	if err := w.bus.Publish(ctx, ev); err != nil {
		w.logger.Warn("Не удалось опубликовать изменение %d: %v", ch.Seq, err)
	}
}

// DecodeChange разбирает полезную нагрузку события world.changed.
func DecodeChange(payload []byte) (Change, error) {
	var ch Change
	err := msgpack.Unmarshal(payload, &ch)
	return ch, err
}
