// Package sync поддерживает представление клиента о мире в актуальном
// состоянии: вычисляет минимальный набор пакетов между тем, что клиент уже
// получил, и текущим снимком мира.
package sync

import (
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrInvariant: нарушение внутренней согласованности состояния синхронизации.
// Проход прерывается, состояние соединения не меняется.
var ErrInvariant = errors.New("sync invariant violated")

// Allocator выдаёт идентификаторы сущностей в пределах одного соединения.
// Идентификаторы растут монотонно с 1 и не переиспользуются.
type Allocator struct {
	next  int32
	ids   map[uuid.UUID]int32
	owner map[int32]uuid.UUID
}

// NewAllocator создаёт пустой аллокатор.
func NewAllocator() *Allocator {
	return &Allocator{
		next:  1,
		ids:   make(map[uuid.UUID]int32),
		owner: make(map[int32]uuid.UUID),
	}
}

// Allocate выдаёт новый идентификатор для id.
func (a *Allocator) Allocate(id uuid.UUID) (int32, error) {
	if wire, ok := a.ids[id]; ok {
		return 0, errors.Wrapf(ErrInvariant, "entity %s already has wire id %d", id, wire)
	}
	if a.next == math.MaxInt32 {
		return 0, errors.Wrap(ErrInvariant, "wire id space exhausted")
	}
	wire := a.next
	a.next++
	a.ids[id] = wire
	a.owner[wire] = id
	return wire, nil
}

// Release освобождает идентификатор. Сам номер больше не выдаётся.
func (a *Allocator) Release(wire int32) error {
	id, ok := a.owner[wire]
	if !ok {
		return errors.Wrapf(ErrInvariant, "release of unknown wire id %d", wire)
	}
	delete(a.owner, wire)
	delete(a.ids, id)
	return nil
}

// Lookup возвращает идентификатор сущности, если он выдан.
func (a *Allocator) Lookup(id uuid.UUID) (int32, bool) {
	wire, ok := a.ids[id]
	return wire, ok
}

// Len: число выданных и не освобождённых идентификаторов.
func (a *Allocator) Len() int { return len(a.ids) }

func (a *Allocator) clone() *Allocator {
	cp := &Allocator{
		next:  a.next,
		ids:   make(map[uuid.UUID]int32, len(a.ids)),
		owner: make(map[int32]uuid.UUID, len(a.owner)),
	}
	for k, v := range a.ids {
		cp.ids[k] = v
	}
	for k, v := range a.owner {
		cp.owner[k] = v
	}
	return cp
}
