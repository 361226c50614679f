package network

import (
	"context"
	"encoding/base64"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/annel0/voxelgate/internal/codec"
	"github.com/annel0/voxelgate/internal/config"
	"github.com/annel0/voxelgate/internal/logging"
	"github.com/annel0/voxelgate/internal/observability"
	"github.com/annel0/voxelgate/internal/presence"
	"github.com/annel0/voxelgate/internal/protocol"
	syncpkg "github.com/annel0/voxelgate/internal/sync"
	"github.com/annel0/voxelgate/internal/world"
)

// Options: параметры сервера.
type Options struct {
	MOTD                 string
	MaxPlayers           int
	FaviconPath          string // PNG 64×64; пусто: без иконки
	CompressionThreshold int    // < 0: без сжатия
	Brand                string
	Links                []config.Link
	GameMode             uint8
	ViewDistance         int
	SimulationDistance   int
	SyncInterval         time.Duration
	KeepAliveInterval    time.Duration
	KeepAliveTimeout     time.Duration

	World    *world.World
	Game     Game
	Router   *Router
	Presence presence.Registry
	Notifier *syncpkg.Notifier // nil: только периодические проходы
	Metrics  *Metrics
}

// OptionsFromConfig переносит в Options значения из конфигурации.
// Зависимости (мир, игра, реестры) заполняет вызывающий.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MOTD:                 cfg.Server.MOTD,
		MaxPlayers:           cfg.Server.MaxPlayers,
		FaviconPath:          cfg.Server.FaviconPath,
		CompressionThreshold: cfg.Server.CompressionThreshold,
		Brand:                cfg.Server.Brand,
		Links:                cfg.Server.Links,
		GameMode:             config.ParseGameMode(cfg.World.GameMode),
		ViewDistance:         cfg.World.ViewDistance,
		SimulationDistance:   cfg.World.SimulationDistance,
		SyncInterval:         cfg.Sync.Interval(),
		KeepAliveInterval:    cfg.Server.KeepAliveInterval(),
		KeepAliveTimeout:     cfg.Server.KeepAliveDeadline(),
	}
}

// Server принимает TCP соединения и ведёт каждое в своей горутине.
type Server struct {
	opts     Options
	favicon  string
	listener net.Listener
	logger   *logging.Logger

	mu         sync.RWMutex
	conns      map[uint64]*Conn
	sessions   map[uuid.UUID]*Session
	nextConnID uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer проверяет параметры и читает иконку сервера.
func NewServer(opts Options) (*Server, error) {
	if opts.World == nil {
		return nil, errors.New("network: world is required")
	}
	if opts.Router == nil {
		opts.Router = NewRouter()
	}
	if opts.Presence == nil {
		opts.Presence = presence.NewMemoryRegistry()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Game == nil {
		opts.Game = nopGame{}
	}
	if opts.ViewDistance <= 0 {
		opts.ViewDistance = 8
	}
	if opts.SimulationDistance <= 0 {
		opts.SimulationDistance = opts.ViewDistance
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = 50 * time.Millisecond
	}
	if opts.KeepAliveInterval <= 0 {
		opts.KeepAliveInterval = 15 * time.Second
	}
	if opts.KeepAliveTimeout <= 0 {
		opts.KeepAliveTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:       opts,
		logger:     logging.GetNetworkLogger(),
		conns:      make(map[uint64]*Conn),
		sessions:   make(map[uuid.UUID]*Session),
		nextConnID: 1,
		ctx:        ctx,
		cancel:     cancel,
	}
	if opts.FaviconPath != "" {
		data, err := os.ReadFile(opts.FaviconPath)
		if err != nil {
			s.logger.Warn("⚠️ Иконка сервера не загружена: %v", err)
		} else {
			s.favicon = "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
		}
	}
	return s, nil
}

// Listen открывает TCP порт и запускает приём соединений.
func (s *Server) Listen(address string) error {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	s.listener = l
	s.wg.Add(1)
	go s.acceptLoop()
	s.logger.Info("🌐 Сервер слушает %s (протокол %d, %s)", l.Addr(), protocol.Default().Version(), protocol.Default().VersionName())
	return nil
}

// Addr: адрес слушающего сокета.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop закрывает порт и все соединения и ждёт их горутины.
func (s *Server) Stop() {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// acceptLoop принимает новые соединения
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		raw, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Error("Ошибка принятия соединения: %v", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(s.ctx, raw)
		}()
	}
}

// ServeConn ведёт одно соединение до закрытия. Возвращает причину закрытия;
// nil: клиент закрыл соединение штатно.
func (s *Server) ServeConn(ctx context.Context, raw net.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := newConn(raw, s.opts.Metrics)
	s.mu.Lock()
	id := s.nextConnID
	s.nextConnID++
	s.conns[id] = c
	s.mu.Unlock()
	s.opts.Metrics.Connections.Inc()

	go func() {
		<-ctx.Done()
		c.Close()
	}()

	defer func() {
		c.Close()
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		s.opts.Metrics.Connections.Dec()
	}()

	err := s.handle(ctx, c)
	switch {
	case err == nil, errors.Is(err, io.EOF), ctx.Err() != nil:
		s.logger.Debug("Соединение %d (%s) закрыто в %s", id, c.Remote(), c.State())
		return nil
	case errors.Is(err, codec.ErrMalformed):
		// Подробности уже записал Conn.ReadPacket
		s.logger.Warn("Соединение %d (%s): некорректные данные в %s", id, c.Remote(), c.State())
	case errors.Is(err, ErrProtocolState):
		s.logger.Warn("Соединение %d (%s): нарушение протокола в %s: %v", id, c.Remote(), c.State(), err)
	case errors.Is(err, syncpkg.ErrInvariant):
		s.logger.Error("Соединение %d (%s): %v", id, c.Remote(), err)
	default:
		s.logger.Info("Соединение %d (%s) закрыто: %v", id, c.Remote(), err)
	}
	return err
}

// handle ведёт соединение по состояниям: Handshake → Status | Login → Configuration → Play.
func (s *Server) handle(ctx context.Context, c *Conn) error {
	tracer := observability.Tracer()

	hctx, span := tracer.Start(ctx, "handshake")
	intent, err := s.handshake(hctx, c)
	span.End()
	if err != nil {
		return err
	}

	if intent == protocol.IntentStatus {
		return s.status(ctx, c)
	}

	lctx, span := tracer.Start(ctx, "login")
	profile, err := s.login(lctx, c)
	span.End()
	if err != nil || profile == nil {
		return err
	}

	cctx, span := tracer.Start(ctx, "configuration")
	err = s.configure(cctx, c)
	span.End()
	if err != nil {
		return err
	}

	return s.play(ctx, c, *profile)
}

// handshake читает intention и переводит соединение в запрошенное состояние.
func (s *Server) handshake(_ context.Context, c *Conn) (protocol.Intent, error) {
	p, name, err := c.ReadPacket()
	if err != nil {
		return 0, fatalRead(err, name)
	}
	in, ok := p.(protocol.Intention)
	if !ok {
		return 0, errors.Wrapf(ErrProtocolState, "unexpected %s in handshake", name)
	}
	c.version = in.ProtocolVersion

	switch in.Intent {
	case protocol.IntentStatus:
		return in.Intent, c.Transition(protocol.Status)
	case protocol.IntentLogin:
		return in.Intent, c.Transition(protocol.Login)
	}
	return 0, errors.Wrapf(ErrProtocolState, "unsupported intent %s", in.Intent)
}

// fatalRead переводит ошибки каталога до Configuration в нарушение протокола.
func fatalRead(err error, name string) error {
	if ignorable(err) {
		return errors.Wrapf(ErrProtocolState, "%s: %v", name, err)
	}
	return err
}

// ignorable: id вне каталога или пакет без схемы. В Configuration и Play такие
// пакеты пропускаются.
func ignorable(err error) bool {
	return errors.Is(err, protocol.ErrUnknownPacket) || errors.Is(err, protocol.ErrUnhandledPacket)
}

func (s *Server) register(sess *Session) {
	s.mu.Lock()
	old := s.sessions[sess.profile.UUID]
	s.sessions[sess.profile.UUID] = sess
	s.mu.Unlock()
	if old != nil {
		old.Disconnect(protocol.Plain("You logged in from another location"))
	}
}

// unregister снимает сессию с учёта. false, игрока уже заменила новая сессия.
func (s *Server) unregister(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sess.profile.UUID] != sess {
		return false
	}
	delete(s.sessions, sess.profile.UUID)
	return true
}

// Sessions возвращает открытые сессии Play.
func (s *Server) Sessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Session ищет сессию игрока.
func (s *Server) Session(id uuid.UUID) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Broadcast отправляет пакет всем сессиям Play. Ошибки отдельных сессий
// только логируются: сессия закроется сама.
func (s *Server) Broadcast(p protocol.Packet) {
	for _, sess := range s.Sessions() {
		if !sess.entered.Load() {
			// Пакеты входа в мир ещё не отправлены
			continue
		}
		if err := sess.Send(p); err != nil {
			s.logger.Debug("Broadcast %s: %v", sess.Profile().Name, err)
		}
	}
}

// Connections: число открытых соединений во всех состояниях.
func (s *Server) Connections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
