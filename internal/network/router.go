package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/annel0/voxelgate/internal/protocol"
	"github.com/annel0/voxelgate/internal/vec"
)

// Handler обрабатывает входящий пакет Play. Ошибка закрывает соединение.
type Handler func(s *Session, p protocol.Packet) error

// Router раздаёт входящие пакеты Play обработчикам по имени пакета.
type Router struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewRouter создаёт пустой маршрутизатор.
func NewRouter() *Router {
	return &Router{handlers: make(map[string][]Handler)}
}

// On добавляет обработчик. Имя должно быть объявленным входящим пакетом Play.
func (r *Router) On(name string, h Handler) {
	if _, ok := protocol.Lookup(protocol.Play, protocol.Serverbound, name); !ok {
		panic(fmt.Sprintf("network: no serverbound play packet %q", name))
	}
	r.mu.Lock()
	r.handlers[name] = append(r.handlers[name], h)
	r.mu.Unlock()
}

// Dispatch вызывает обработчики пакета по порядку регистрации.
// handled = false, если обработчиков нет.
func (r *Router) Dispatch(s *Session, name string, p protocol.Packet) (handled bool, err error) {
	r.mu.RLock()
	hs := r.handlers[name]
	r.mu.RUnlock()
	for _, h := range hs {
		if err := h(s, p); err != nil {
			return true, err
		}
	}
	return len(hs) > 0, nil
}

// Spawn: куда и как игрок входит в мир.
type Spawn struct {
	Position vec.Vec3Float
	Yaw      float32
	Pitch    float32
	GameMode uint8
}

// Game: игровая логика над сервером. OpenSession вызывается после перехода
// в Play до первых пакетов мира; CloseSession, при закрытии соединения,
// когда сессия уже снята с учёта (Session.Replaced сообщает о повторном входе).
type Game interface {
	OpenSession(ctx context.Context, profile Profile, s *Session) (Spawn, error)
	CloseSession(ctx context.Context, s *Session)
}

type nopGame struct{}

func (nopGame) OpenSession(_ context.Context, _ Profile, s *Session) (Spawn, error) {
	return Spawn{Position: s.server.opts.World.Spawn().Center()}, nil
}

func (nopGame) CloseSession(context.Context, *Session) {}
