package world

import (
	"sort"

	"github.com/google/uuid"

	"github.com/annel0/voxelgate/internal/vec"
)

// ChangeKind определяет тип изменения мира
type ChangeKind uint8

const (
	ChangeBlock         ChangeKind = iota + 1 // Изменение блока
	ChangeEntity                              // Появление или изменение сущности
	ChangeEntityRemoved                       // Удаление сущности
	ChangePlayer                              // Изменение записи списка игроков
	ChangePlayerRemoved                       // Удаление записи списка игроков
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeBlock:
		return "block"
	case ChangeEntity:
		return "entity"
	case ChangeEntityRemoved:
		return "entity_removed"
	case ChangePlayer:
		return "player"
	case ChangePlayerRemoved:
		return "player_removed"
	}
	return "unknown"
}

// EventWorldChanged: тип события шины после любой мутации мира.
const EventWorldChanged = "world.changed"

// Change: запись журнала изменений мира.
type Change struct {
	Seq     uint64     `msgpack:"seq"`
	Kind    ChangeKind `msgpack:"kind"`
	Block   vec.Vec3   `msgpack:"block"`   // Для ChangeBlock
	State   int32      `msgpack:"state"`   // Новое состояние блока
	Subject uuid.UUID  `msgpack:"subject"` // Сущность или игрок
}

// changeLog: ограниченный журнал изменений блоков. Номера получают все
// изменения, в кольце хранятся только блоки: сущности и игроки читаются из
// снимков и не вытесняют блоки. Старые записи вытесняются.
type changeLog struct {
	entries []Change
	start   int    // индекс самой старой записи в entries
	size    int    // число записей
	head    uint64 // номер последнего изменения любого вида
	evicted uint64 // номер последней вытесненной записи
}

func newChangeLog(capacity int) *changeLog {
	if capacity <= 0 {
		capacity = 1024
	}
	return &changeLog{entries: make([]Change, capacity)}
}

func (l *changeLog) append(c Change) Change {
	l.head++
	c.Seq = l.head
	if c.Kind != ChangeBlock {
		return c
	}
	idx := (l.start + l.size) % len(l.entries)
	if l.size == len(l.entries) {
		l.evicted = l.entries[l.start].Seq
		l.start = (l.start + 1) % len(l.entries)
	} else {
		l.size++
	}
	l.entries[idx] = c
	return c
}

func (l *changeLog) at(i int) Change { return l.entries[(l.start+i)%len(l.entries)] }

// since возвращает изменения блоков после cursor. truncated означает, что часть
// записей уже вытеснена и читатель должен пересобрать состояние целиком.
func (l *changeLog) since(cursor uint64) (changes []Change, head uint64, truncated bool) {
	if cursor >= l.head {
		return nil, l.head, false
	}
	truncated = cursor < l.evicted
	first := sort.Search(l.size, func(i int) bool { return l.at(i).Seq > cursor })
	changes = make([]Change, 0, l.size-first)
	for i := first; i < l.size; i++ {
		changes = append(changes, l.at(i))
	}
	return changes, l.head, truncated
}
