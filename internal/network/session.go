package network

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/annel0/voxelgate/internal/logging"
	"github.com/annel0/voxelgate/internal/observability"
	"github.com/annel0/voxelgate/internal/presence"
	"github.com/annel0/voxelgate/internal/protocol"
	syncpkg "github.com/annel0/voxelgate/internal/sync"
	"github.com/annel0/voxelgate/internal/vec"
	"github.com/annel0/voxelgate/internal/world"
)

// errKeepAliveTimeout: клиент не ответил на keep-alive вовремя.
var errKeepAliveTimeout = errors.New("keep-alive timeout")

// Session соединение в состоянии Play. Входящие пакеты идут в Router,
// отдельная горутина шлёт клиенту изменения мира.
type Session struct {
	server  *Server
	conn    *Conn
	profile Profile
	logger  *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	failOnce sync.Once
	failErr  error

	// Принадлежат горутине синхронизации
	tracker *syncpkg.Tracker
	players *syncpkg.PlayerList
	view    *syncpkg.ChunkView

	// Пакеты входа в мир отправлены, Broadcast может писать в сессию
	entered atomic.Bool

	teleportSeq     atomic.Int32
	pendingTeleport atomic.Int32

	keepAliveMu   sync.Mutex
	keepAliveID   int64
	keepAliveSent time.Time
	latency       atomic.Int64
}

func newSession(ctx context.Context, s *Server, c *Conn, profile Profile) *Session {
	ctx, cancel := context.WithCancel(ctx)
	w := s.opts.World
	return &Session{
		server:  s,
		conn:    c,
		profile: profile,
		logger:  logging.GetNetworkLogger().With("player", profile.Name),
		ctx:     ctx,
		cancel:  cancel,
		tracker: syncpkg.NewTracker(syncpkg.WithSelf(profile.UUID)),
		players: syncpkg.NewPlayerList(),
		view:    syncpkg.NewChunkView(w, syncpkg.NewChunkEncoder(w.Registry().DirectBits()), s.opts.ViewDistance),
	}
}

// Profile: профиль игрока.
func (s *Session) Profile() Profile { return s.profile }

// Remote: адрес клиента.
func (s *Session) Remote() string { return s.conn.Remote() }

// EntityID: сетевой идентификатор собственной сущности игрока.
func (s *Session) EntityID() int32 { return s.tracker.SelfID() }

// Server: сервер сессии.
func (s *Session) Server() *Server { return s.server }

// World: мир сервера.
func (s *Session) World() *world.World { return s.server.opts.World }

// Replaced сообщает, что игрок уже вошёл в другой сессии.
func (s *Session) Replaced() bool {
	cur, ok := s.server.Session(s.profile.UUID)
	return ok && cur != s
}

// Context отменяется при закрытии сессии.
func (s *Session) Context() context.Context { return s.ctx }

// Latency: последнее измеренное время ответа на keep-alive.
func (s *Session) Latency() time.Duration { return time.Duration(s.latency.Load()) }

// Send кодирует и отправляет пакет Play.
func (s *Session) Send(p protocol.Packet) error { return s.conn.WritePacket(p) }

// SendRaw отправляет уже закодированные id||поля.
func (s *Session) SendRaw(payload []byte) error { return s.conn.WriteRaw(payload) }

// Teleport переносит игрока; клиент подтверждает accept_teleportation.
func (s *Session) Teleport(pos vec.Vec3Float, yaw, pitch float32) (int32, error) {
	id := s.teleportSeq.Add(1)
	s.pendingTeleport.Store(id)
	return id, s.Send(protocol.PlayerPosition{
		X: pos.X, Y: pos.Y, Z: pos.Z,
		Yaw: yaw, Pitch: pitch,
		TeleportID: id,
	})
}

// AcceptTeleport сверяет подтверждение с последней телепортацией.
func (s *Session) AcceptTeleport(id int32) bool {
	return s.pendingTeleport.CompareAndSwap(id, 0)
}

// AwaitingTeleport сообщает, ждёт ли сессия подтверждения телепортации.
// Пока ждёт, движения клиента устарели.
func (s *Session) AwaitingTeleport() bool { return s.pendingTeleport.Load() != 0 }

// Disconnect отправляет причину и закрывает сессию.
func (s *Session) Disconnect(reason protocol.Text) {
	if err := s.Send(protocol.Disconnect{Reason: reason}); err != nil {
		s.logger.Debug("disconnect: %v", err)
	}
	s.cancel()
}

// fail закрывает сессию, запомнив первую причину.
func (s *Session) fail(err error) {
	s.failOnce.Do(func() { s.failErr = err })
	s.cancel()
}

// play ведёт соединение в Play до закрытия.
func (s *Server) play(ctx context.Context, c *Conn, profile Profile) error {
	sess := newSession(ctx, s, c, profile)
	defer sess.cancel()
	go func() {
		<-sess.ctx.Done()
		c.Close()
	}()

	// Сначала учёт: закрытие старой сессии того же игрока не должно
	// удалить то, что OpenSession добавит для новой
	s.register(sess)
	spawn, err := s.opts.Game.OpenSession(sess.ctx, profile, sess)
	if err != nil {
		s.unregister(sess)
		return errors.Wrap(err, "open session")
	}
	if err := s.opts.Presence.Join(sess.ctx, presence.Player{UUID: profile.UUID, Name: profile.Name}); err != nil {
		s.logger.Warn("⚠️ presence join %s: %v", profile.Name, err)
	}
	defer func() {
		// Контекст сессии уже отменён
		bg := context.Background()
		current := s.unregister(sess)
		s.opts.Game.CloseSession(bg, sess)
		if !current {
			// Игрок вошёл заново, присутствие принадлежит новой сессии
			return
		}
		if err := s.opts.Presence.Leave(bg, profile.UUID); err != nil {
			s.logger.Warn("⚠️ presence leave %s: %v", profile.Name, err)
		}
		s.logger.Info("👋 %s вышел", profile.Name)
	}()

	if err := sess.enter(spawn); err != nil {
		return err
	}
	sess.entered.Store(true)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sess.syncLoop(); err != nil {
			sess.fail(err)
		}
	}()

	err = sess.readLoop()
	closed := sess.ctx.Err() != nil
	sess.cancel()
	<-done
	switch {
	case errors.Is(err, io.EOF) && !closed:
		// Клиент ушёл; ошибка записи в синхронизации после этого не важна
		return nil
	case sess.failErr != nil:
		return sess.failErr
	case closed:
		// Сокет закрыли мы: kick, повторный вход или остановка сервера
		return nil
	}
	return err
}

// enter отправляет пакеты входа в мир: login, ожидание чанков, центр и первая
// пачка чанков, позиция игрока, точка возрождения и время.
func (s *Session) enter(spawn Spawn) error {
	w := s.World()
	reg := w.Registry()
	dim := w.Dimension()
	opts := s.server.opts

	if err := s.Send(protocol.PlayLogin{
		EntityID:            s.EntityID(),
		Dimensions:          []string{dim.Name},
		MaxPlayers:          int32(opts.MaxPlayers),
		ViewDistance:        int32(opts.ViewDistance),
		SimulationDistance:  int32(opts.SimulationDistance),
		EnableRespawnScreen: true,
		DimensionType:       reg.DimensionType(),
		DimensionName:       dim.Name,
		GameMode:            spawn.GameMode,
		PreviousGameMode:    -1,
	}); err != nil {
		return err
	}
	if err := s.Send(protocol.GameEvent{Event: protocol.GameEventStartWaitingChunks}); err != nil {
		return err
	}

	chunks, err := s.loadChunks(spawn.Position.Chunk())
	if err != nil {
		return err
	}
	for _, p := range chunks {
		if err := s.Send(p); err != nil {
			return err
		}
	}
	if _, err := s.Teleport(spawn.Position, spawn.Yaw, spawn.Pitch); err != nil {
		return err
	}

	sp := w.Spawn()
	if err := s.Send(protocol.SetDefaultSpawnPosition{
		Pos: protocol.BlockPos{X: int32(sp.X), Y: int32(sp.Y), Z: int32(sp.Z)},
	}); err != nil {
		return err
	}
	return s.Send(protocol.SetTime{TimeOfDay: 6000})
}

// loadChunks сдвигает вид на center; загрузка пачки попадает в трассировку.
func (s *Session) loadChunks(center vec.Vec2) ([]protocol.Packet, error) {
	if s.view.Loaded() > 0 && s.view.Center() == center {
		return nil, nil
	}
	ctx, span := observability.Tracer().Start(s.ctx, "chunk_batch")
	defer span.End()
	return s.view.Move(ctx, center)
}

// readLoop читает пакеты клиента по порядку и передаёт их в Router.
func (s *Session) readLoop() error {
	opts := s.server.opts
	// Молчащего клиента закрывает keep-alive; срок чтения только страхует
	idle := 2 * (opts.KeepAliveInterval + opts.KeepAliveTimeout)
	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(idle)); err != nil {
			return err
		}
		p, name, err := s.conn.ReadPacket()
		if ignorable(err) {
			s.logger.Debug("play: %v, пропущен", err)
			continue
		}
		if err != nil {
			return fatalRead(err, name)
		}

		if ka, ok := p.(protocol.KeepAlive); ok {
			s.keepAliveReply(ka.ID)
			continue
		}
		handled, err := opts.Router.Dispatch(s, name, p)
		if err != nil {
			return errors.Wrapf(err, "handle %s", name)
		}
		if !handled {
			s.logger.Trace("%s без обработчика", name)
		}
	}
}

// syncLoop проводит проходы синхронизации по сигналу шины и по таймеру
// и следит за keep-alive.
func (s *Session) syncLoop() error {
	opts := s.server.opts
	var wake <-chan struct{}
	if opts.Notifier != nil {
		ch, stop := opts.Notifier.Listen()
		defer stop()
		wake = ch
	}
	ticker := time.NewTicker(opts.SyncInterval)
	defer ticker.Stop()
	keepAlive := time.NewTicker(opts.KeepAliveInterval)
	defer keepAlive.Stop()

	if err := s.syncPass(); err != nil {
		return err
	}
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-keepAlive.C:
			if err := s.keepAlive(); err != nil {
				return err
			}
			continue
		case <-wake:
		case <-ticker.C:
		}
		if err := s.syncPass(); err != nil {
			return err
		}
	}
}

// syncPass отправляет клиенту разницу между его видом и миром: список
// игроков, чанки, изменения блоков, сущности.
func (s *Session) syncPass() error {
	start := time.Now()
	w := s.World()

	center := s.view.Center()
	if e, ok := w.Entity(s.profile.UUID); ok {
		center = e.Position.Chunk()
	}
	snap := w.SnapshotNear(center, s.server.opts.ViewDistance)

	out := s.players.Sync(snap.Players)
	chunks, err := s.loadChunks(center)
	if err != nil {
		return err
	}
	out = append(out, chunks...)
	blocks, err := s.view.Changes(s.ctx)
	if err != nil {
		return err
	}
	out = append(out, blocks...)
	entities, err := s.tracker.Sync(snap.Entities)
	if err != nil {
		return err
	}
	out = append(out, entities...)

	for _, p := range out {
		if err := s.Send(p); err != nil {
			return err
		}
	}
	m := s.server.opts.Metrics
	m.SyncDuration.Observe(time.Since(start).Seconds())
	m.SyncPackets.Observe(float64(len(out)))
	return nil
}

// keepAlive шлёт новый keep-alive или закрывает сессию, если на прошлый
// не ответили вовремя.
func (s *Session) keepAlive() error {
	s.keepAliveMu.Lock()
	if s.keepAliveID != 0 {
		late := time.Since(s.keepAliveSent) >= s.server.opts.KeepAliveTimeout
		s.keepAliveMu.Unlock()
		if late {
			s.Disconnect(protocol.Plain("Timed out"))
			return errKeepAliveTimeout
		}
		return nil
	}
	now := time.Now()
	s.keepAliveID = now.UnixMilli()
	s.keepAliveSent = now
	id := s.keepAliveID
	s.keepAliveMu.Unlock()
	return s.Send(protocol.KeepAlive{ID: id})
}

func (s *Session) keepAliveReply(id int64) {
	s.keepAliveMu.Lock()
	if id != s.keepAliveID || id == 0 {
		s.keepAliveMu.Unlock()
		s.logger.Debug("keep-alive %d без запроса", id)
		return
	}
	rtt := time.Since(s.keepAliveSent)
	s.keepAliveID = 0
	s.keepAliveMu.Unlock()

	s.latency.Store(int64(rtt))
	s.World().UpdatePlayer(s.ctx, s.profile.UUID, func(p *world.PlayerEntry) {
		p.Latency = int32(rtt.Milliseconds())
	})
}
