// Package presence ведёт список игроков онлайн: для документа статуса и для
// соседних процессов, которые делят один мир через шину событий.
package presence

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Player: запись игрока онлайн.
type Player struct {
	UUID uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Registry: реестр игроков онлайн.
type Registry interface {
	Join(ctx context.Context, p Player) error
	Leave(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int, error)
	// Sample возвращает не больше n игроков в порядке входа.
	Sample(ctx context.Context, n int) ([]Player, error)
	Close() error
}

// MemoryRegistry хранит игроков в памяти процесса.
type MemoryRegistry struct {
	mu      sync.RWMutex
	players map[uuid.UUID]memberEntry
	seq     uint64
}

type memberEntry struct {
	Player
	order uint64
}

// NewMemoryRegistry создаёт пустой реестр.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{players: make(map[uuid.UUID]memberEntry)}
}

// Join добавляет игрока. Повторный вход сохраняет исходный порядок.
func (r *MemoryRegistry) Join(_ context.Context, p Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.players[p.UUID]; ok {
		e.Name = p.Name
		r.players[p.UUID] = e
		return nil
	}
	r.seq++
	r.players[p.UUID] = memberEntry{Player: p, order: r.seq}
	return nil
}

func (r *MemoryRegistry) Leave(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	delete(r.players, id)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) Count(context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players), nil
}

func (r *MemoryRegistry) Sample(_ context.Context, n int) ([]Player, error) {
	r.mu.RLock()
	entries := make([]memberEntry, 0, len(r.players))
	for _, e := range r.players {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })
	if n < len(entries) {
		entries = entries[:n]
	}
	out := make([]Player, len(entries))
	for i, e := range entries {
		out[i] = e.Player
	}
	return out, nil
}

func (r *MemoryRegistry) Close() error { return nil }
