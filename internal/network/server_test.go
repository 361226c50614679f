package network

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxelgate/internal/codec"
	"github.com/annel0/voxelgate/internal/config"
	"github.com/annel0/voxelgate/internal/presence"
	"github.com/annel0/voxelgate/internal/protocol"
	"github.com/annel0/voxelgate/internal/registry"
	"github.com/annel0/voxelgate/internal/vec"
	"github.com/annel0/voxelgate/internal/world"
)

const ioTimeout = 5 * time.Second

// testClient: клиент протокола поверх net.Pipe.
type testClient struct {
	t     *testing.T
	conn  net.Conn
	r     *FrameReader
	w     *FrameWriter
	state protocol.State
}

// dial запускает ServeConn на одном конце канала и возвращает клиента
// на другом. Результат ServeConn приходит в канал.
func dial(t *testing.T, s *Server) (*testClient, <-chan error) {
	t.Helper()
	server, client := net.Pipe()
	done := make(chan error, 1)
	go func() { done <- s.ServeConn(context.Background(), server) }()
	t.Cleanup(func() { client.Close() })
	return &testClient{t: t, conn: client, r: NewFrameReader(client), w: NewFrameWriter(client)}, done
}

func (c *testClient) send(p protocol.Packet) {
	c.t.Helper()
	payload, err := protocol.Marshal(c.state, protocol.Serverbound, p)
	require.NoError(c.t, err)
	c.sendRaw(payload)
}

func (c *testClient) sendRaw(payload []byte) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(ioTimeout)))
	require.NoError(c.t, c.w.WriteFrame(payload))
}

// next читает следующий пакет и возвращает его имя и тело.
func (c *testClient) next() (string, []byte) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(ioTimeout)))
	payload, err := c.r.ReadFrame()
	require.NoError(c.t, err)
	id, _, err := codec.VarInt.Decode(payload)
	require.NoError(c.t, err)
	name, ok := protocol.Default().NameOf(c.state, protocol.Clientbound, id)
	require.True(c.t, ok, "Неизвестный пакет %#x в %s", id, c.state)
	return name, payload
}

// expect пропускает пакеты до первого пакета типа T.
func expect[T protocol.Packet](c *testClient) T {
	c.t.Helper()
	var zero T
	want := protocol.NameOf(c.state, protocol.Clientbound, zero)
	require.NotEmpty(c.t, want, "Нет схемы для %T в %s", zero, c.state)
	for {
		name, payload := c.next()
		if name != want {
			continue
		}
		p, err := protocol.Decode(c.state, protocol.Clientbound, payload)
		require.NoError(c.t, err)
		return p.(T)
	}
}

// closed ждёт закрытия соединения сервером.
func (c *testClient) closed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(ioTimeout)))
	for {
		if _, err := c.r.ReadFrame(); err != nil {
			return
		}
	}
}

func (c *testClient) handshake(version int32, intent protocol.Intent) {
	c.t.Helper()
	c.send(protocol.Intention{ProtocolVersion: version, Host: "localhost", Port: 25565, Intent: intent})
	switch intent {
	case protocol.IntentStatus:
		c.state = protocol.Status
	default:
		c.state = protocol.Login
	}
}

// join проходит вход и настройку до состояния Play.
func (c *testClient) join(name string) protocol.LoginFinished {
	c.t.Helper()
	c.handshake(protocol.Default().Version(), protocol.IntentLogin)
	c.send(protocol.Hello{Name: name, UUID: OfflineUUID(name)})

	var finished protocol.LoginFinished
	for done := false; !done; {
		nm, payload := c.next()
		p, err := protocol.Decode(c.state, protocol.Clientbound, payload)
		require.NoError(c.t, err, nm)
		switch p := p.(type) {
		case protocol.LoginCompression:
			c.r.SetThreshold(int(p.Threshold))
			c.w.SetThreshold(int(p.Threshold))
		case protocol.LoginFinished:
			finished = p
			done = true
		default:
			c.t.Fatalf("Неожиданный пакет входа %s", nm)
		}
	}
	c.send(protocol.LoginAcknowledged{})
	c.state = protocol.Configuration

	expect[protocol.SelectKnownPacks](c)
	c.send(protocol.SelectKnownPacks{Packs: registry.Default().KnownPacks()})
	expect[protocol.FinishConfiguration](c)
	c.send(protocol.FinishConfiguration{})
	c.state = protocol.Play
	return finished
}

// testGame ставит игрока в мир как сущность и запись списка.
type testGame struct {
	mu     sync.Mutex
	closed []uuid.UUID
}

func (g *testGame) OpenSession(ctx context.Context, profile Profile, s *Session) (Spawn, error) {
	w := s.World()
	typ, _ := w.Registry().EntityType("player")
	sp := w.Spawn()
	pos := vec.Vec3Float{X: float64(sp.X) + 0.5, Y: float64(sp.Y), Z: float64(sp.Z) + 0.5}
	w.PutPlayer(ctx, world.PlayerEntry{UUID: profile.UUID, Name: profile.Name, Listed: true, GameMode: 1})
	w.PutEntity(ctx, &world.Entity{UUID: profile.UUID, Type: typ, Position: pos})
	return Spawn{Position: pos, GameMode: 1}, nil
}

func (g *testGame) CloseSession(ctx context.Context, s *Session) {
	w := s.World()
	if !s.Replaced() {
		w.RemoveEntity(ctx, s.Profile().UUID)
		w.RemovePlayer(ctx, s.Profile().UUID)
	}
	g.mu.Lock()
	g.closed = append(g.closed, s.Profile().UUID)
	g.mu.Unlock()
}

func (g *testGame) closedSessions() []uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]uuid.UUID(nil), g.closed...)
}

func newTestServer(t *testing.T, mutate func(*Options)) *Server {
	t.Helper()
	opts := Options{
		MOTD:                 "Тестовый сервер",
		MaxPlayers:           10,
		CompressionThreshold: 256,
		Brand:                "voxelgate",
		ViewDistance:         2,
		SyncInterval:         10 * time.Millisecond,
		World:                world.New(world.Options{}),
	}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := NewServer(opts)
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(ioTimeout):
		t.Fatal("ServeConn не завершился")
		return nil
	}
}

func TestNewServerRequiresWorld(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)
}

func TestStatusExchange(t *testing.T) {
	reg := presence.NewMemoryRegistry()
	steve := presence.Player{UUID: OfflineUUID("Steve"), Name: "Steve"}
	require.NoError(t, reg.Join(context.Background(), steve))

	s := newTestServer(t, func(o *Options) { o.Presence = reg })
	c, done := dial(t, s)

	c.handshake(protocol.Default().Version(), protocol.IntentStatus)
	c.send(protocol.StatusRequest{})
	resp := expect[protocol.StatusResponse](c)

	var doc StatusDocument
	require.NoError(t, json.Unmarshal([]byte(resp.JSON), &doc))
	assert.Equal(t, protocol.Default().Version(), doc.Version.Protocol)
	assert.Equal(t, protocol.Default().VersionName(), doc.Version.Name)
	assert.Equal(t, "Тестовый сервер", doc.Description.Text)
	assert.Equal(t, 10, doc.Players.Max)
	assert.Equal(t, 1, doc.Players.Online)
	assert.Equal(t, []presence.Player{steve}, doc.Players.Sample)

	c.send(protocol.PingRequest{Payload: 42})
	pong := expect[protocol.PongResponse](c)
	assert.Equal(t, int64(42), pong.Payload)

	c.closed()
	assert.NoError(t, waitErr(t, done), "После pong соединение закрывается штатно")
}

func TestStatusIgnoresClientVersion(t *testing.T) {
	s := newTestServer(t, nil)
	c, done := dial(t, s)

	c.handshake(47, protocol.IntentStatus)
	c.send(protocol.StatusRequest{})
	resp := expect[protocol.StatusResponse](c)

	var doc StatusDocument
	require.NoError(t, json.Unmarshal([]byte(resp.JSON), &doc))
	assert.Equal(t, protocol.Default().Version(), doc.Version.Protocol, "Документ сообщает версию сервера")
	assert.Zero(t, doc.Players.Online)

	c.conn.Close()
	assert.NoError(t, waitErr(t, done))
}

func TestLoginVersionMismatch(t *testing.T) {
	for _, tc := range []struct {
		version int32
		reason  string
	}{
		{protocol.Default().Version() - 1, "Outdated client! Please use " + protocol.Default().VersionName()},
		{protocol.Default().Version() + 1, "Outdated server! I'm still on " + protocol.Default().VersionName()},
	} {
		s := newTestServer(t, nil)
		c, done := dial(t, s)

		c.send(protocol.Intention{ProtocolVersion: tc.version, Host: "localhost", Port: 25565, Intent: protocol.IntentLogin})
		c.state = protocol.Login
		c.send(protocol.Hello{Name: "Alex"})

		dc := expect[protocol.LoginDisconnect](c)
		assert.Equal(t, tc.reason, dc.Reason.String())
		c.closed()
		assert.NoError(t, waitErr(t, done))
	}
}

func TestProtocolViolations(t *testing.T) {
	t.Run("transfer", func(t *testing.T) {
		s := newTestServer(t, nil)
		c, done := dial(t, s)
		c.send(protocol.Intention{ProtocolVersion: protocol.Default().Version(), Intent: protocol.IntentTransfer})
		assert.ErrorIs(t, waitErr(t, done), ErrProtocolState)
	})

	t.Run("acknowledged before hello", func(t *testing.T) {
		s := newTestServer(t, nil)
		c, done := dial(t, s)
		c.handshake(protocol.Default().Version(), protocol.IntentLogin)
		c.send(protocol.LoginAcknowledged{})
		assert.ErrorIs(t, waitErr(t, done), ErrProtocolState)
	})

	t.Run("unknown id in handshake", func(t *testing.T) {
		s := newTestServer(t, nil)
		c, done := dial(t, s)
		c.sendRaw([]byte{0x7f})
		assert.ErrorIs(t, waitErr(t, done), ErrProtocolState)
	})

	t.Run("malformed intention", func(t *testing.T) {
		m := NewMetrics(prometheus.NewRegistry())
		s := newTestServer(t, func(o *Options) { o.Metrics = m })
		c, done := dial(t, s)
		c.sendRaw([]byte{0x00, 0x80})
		assert.ErrorIs(t, waitErr(t, done), codec.ErrMalformed)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeErrors.WithLabelValues("handshake")))
	})

	t.Run("finish before known packs", func(t *testing.T) {
		s := newTestServer(t, func(o *Options) { o.CompressionThreshold = -1 })
		c, done := dial(t, s)
		c.handshake(protocol.Default().Version(), protocol.IntentLogin)
		c.send(protocol.Hello{Name: "Alex"})
		expect[protocol.LoginFinished](c)
		c.send(protocol.LoginAcknowledged{})
		c.state = protocol.Configuration
		expect[protocol.SelectKnownPacks](c)
		c.send(protocol.FinishConfiguration{})
		assert.ErrorIs(t, waitErr(t, done), ErrProtocolState)
	})
}

func TestConfigurationSequence(t *testing.T) {
	s := newTestServer(t, func(o *Options) {
		o.CompressionThreshold = -1
		o.Links = []config.Link{{Label: "website", URL: "https://example.org"}}
	})
	c, _ := dial(t, s)

	c.handshake(protocol.Default().Version(), protocol.IntentLogin)
	c.send(protocol.Hello{Name: "Alex"})
	finished := expect[protocol.LoginFinished](c)
	assert.Equal(t, OfflineUUID("Alex"), finished.UUID)
	assert.Equal(t, "Alex", finished.Name)
	c.send(protocol.LoginAcknowledged{})
	c.state = protocol.Configuration

	brand := expect[protocol.CustomPayload](c)
	assert.Equal(t, "minecraft:brand", brand.Channel)
	want, err := codec.String(32767).Append(nil, "voxelgate")
	require.NoError(t, err)
	assert.Equal(t, want, brand.Data)

	features := expect[protocol.UpdateEnabledFeatures](c)
	assert.Equal(t, registry.Default().EnabledFeatures(), features.Features)
	packs := expect[protocol.SelectKnownPacks](c)
	assert.Equal(t, registry.Default().KnownPacks(), packs.Packs)

	c.send(protocol.ClientInformation{Locale: "ru_ru", ViewDistance: 10})
	c.send(protocol.SelectKnownPacks{Packs: packs.Packs})

	var registries []string
	for {
		name, payload := c.next()
		if name == "server_links" {
			break
		}
		require.Equal(t, "registry_data", name)
		p, err := protocol.Decode(c.state, protocol.Clientbound, payload)
		require.NoError(t, err)
		registries = append(registries, p.(protocol.RegistryData).Registry)
	}
	assert.Len(t, registries, len(registry.Default().RegistryPackets()))
	expect[protocol.FinishConfiguration](c)
}

func TestConfigurationSkipsUnhandledPackets(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.CompressionThreshold = -1 })
	c, _ := dial(t, s)
	c.handshake(protocol.Default().Version(), protocol.IntentLogin)
	c.send(protocol.Hello{Name: "Alex"})
	expect[protocol.LoginFinished](c)
	c.send(protocol.LoginAcknowledged{})
	c.state = protocol.Configuration
	packs := expect[protocol.SelectKnownPacks](c)

	// resource_pack: uuid и результат, схема не объявлена
	resourcePack := append([]byte{0x06}, make([]byte, 16)...)
	resourcePack = append(resourcePack, 0x00)
	c.sendRaw(resourcePack)
	// id вне каталога
	c.sendRaw([]byte{0x7f, 0x01, 0x02})

	c.send(protocol.SelectKnownPacks{Packs: packs.Packs})
	expect[protocol.FinishConfiguration](c)
	c.send(protocol.FinishConfiguration{})
	c.state = protocol.Play
	expect[protocol.PlayLogin](c)
}

func TestPlaySkipsUnhandledPackets(t *testing.T) {
	router := NewRouter()
	moves := make(chan protocol.MovePlayerPos, 1)
	router.On("move_player_pos", func(_ *Session, p protocol.Packet) error {
		moves <- p.(protocol.MovePlayerPos)
		return nil
	})
	s := newTestServer(t, func(o *Options) {
		o.Game = &testGame{}
		o.Router = router
	})
	c, done := dial(t, s)
	c.join("Alex")
	expect[protocol.SetTime](c)

	c.sendRaw([]byte{0x03, 0x05}) // chat_ack без схемы
	c.sendRaw([]byte{0x7f})       // id вне каталога
	c.send(protocol.Swing{})      // схема есть, обработчика нет
	c.send(protocol.MovePlayerPos{X: 0.5, Y: 1, Z: 0.5, OnGround: true})

	select {
	case mv := <-moves:
		assert.True(t, mv.OnGround)
	case err := <-done:
		t.Fatalf("Сессия закрылась: %v", err)
	case <-time.After(ioTimeout):
		t.Fatal("move_player_pos не дошёл до обработчика")
	}
}

func TestSendRawAndBroadcast(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.Game = &testGame{} })
	c, _ := dial(t, s)
	finished := c.join("Alex")
	expect[protocol.SetTime](c)

	sess, ok := s.Session(finished.UUID)
	require.True(t, ok)

	payload, err := protocol.Marshal(protocol.Play, protocol.Clientbound, protocol.SystemChat{Content: protocol.Plain("готово")})
	require.NoError(t, err)
	// net.Pipe без буфера: запись ждёт чтения клиентом
	sent := make(chan error, 1)
	go func() { sent <- sess.SendRaw(payload) }()
	chat := expect[protocol.SystemChat](c)
	require.NoError(t, <-sent)
	assert.Equal(t, "готово", chat.Content.String())
	assert.False(t, chat.Overlay)

	require.Eventually(t, sess.entered.Load, ioTimeout, 5*time.Millisecond)
	go s.Broadcast(protocol.SystemChat{Content: protocol.Plain("всем"), Overlay: true})
	chat = expect[protocol.SystemChat](c)
	assert.Equal(t, "всем", chat.Content.String())
	assert.True(t, chat.Overlay)
}

// orderGame проверяет, что сессия учтена до OpenSession.
type orderGame struct {
	testGame
	registered chan bool
	fail       error
}

func (g *orderGame) OpenSession(ctx context.Context, profile Profile, s *Session) (Spawn, error) {
	cur, ok := s.Server().Session(profile.UUID)
	g.registered <- ok && cur == s
	if g.fail != nil {
		return Spawn{}, g.fail
	}
	return g.testGame.OpenSession(ctx, profile, s)
}

func TestSessionRegisteredBeforeOpen(t *testing.T) {
	game := &orderGame{registered: make(chan bool, 1)}
	s := newTestServer(t, func(o *Options) { o.Game = game })
	c, _ := dial(t, s)
	c.join("Alex")
	expect[protocol.SetTime](c)
	assert.True(t, <-game.registered, "OpenSession видит свою сессию в учёте")
}

func TestOpenSessionFailureUnregisters(t *testing.T) {
	game := &orderGame{registered: make(chan bool, 1), fail: assert.AnError}
	s := newTestServer(t, func(o *Options) { o.Game = game })
	c, done := dial(t, s)
	c.join("Alex")

	assert.ErrorIs(t, waitErr(t, done), assert.AnError)
	assert.True(t, <-game.registered)
	_, ok := s.Session(OfflineUUID("Alex"))
	assert.False(t, ok, "Сессия снята с учёта после ошибки")
	c.closed()
}

func TestJoinAndSync(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	game := &testGame{}
	router := NewRouter()
	moves := make(chan protocol.MovePlayerPos, 1)
	router.On("move_player_pos", func(_ *Session, p protocol.Packet) error {
		moves <- p.(protocol.MovePlayerPos)
		return nil
	})

	s := newTestServer(t, func(o *Options) {
		o.Game = game
		o.Router = router
		o.Metrics = m
	})
	w := s.opts.World
	ctx := context.Background()

	c, done := dial(t, s)
	finished := c.join("Alex")

	// Вход в мир идёт в фиксированном порядке
	login := expect[protocol.PlayLogin](c)
	assert.Equal(t, int32(1), login.EntityID)
	assert.Equal(t, []string{w.Dimension().Name}, login.Dimensions)
	assert.Equal(t, uint8(1), login.GameMode)
	assert.Equal(t, int8(-1), login.PreviousGameMode)

	var names []string
	for {
		name, _ := c.next()
		if name == "level_chunk_with_light" {
			continue
		}
		names = append(names, name)
		if name == "set_time" {
			break
		}
	}
	assert.Equal(t, []string{
		"game_event", "set_chunk_cache_center", "chunk_batch_start", "chunk_batch_finished",
		"player_position", "set_default_spawn_position", "set_time",
	}, names)

	info := expect[protocol.PlayerInfoUpdate](c)
	require.Len(t, info.Entries, 1)
	assert.Equal(t, finished.UUID, info.Entries[0].UUID)
	assert.Equal(t, "Alex", info.Entries[0].Name)

	sess, ok := s.Session(finished.UUID)
	require.True(t, ok, "Сессия зарегистрирована")
	assert.True(t, sess.AwaitingTeleport())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("configuration", "play")))

	// Появление и движение другой сущности
	pigType, ok := w.Registry().EntityType("pig")
	require.True(t, ok)
	pig := uuid.New()
	sp := w.Spawn()
	w.PutEntity(ctx, &world.Entity{UUID: pig, Type: pigType, Position: vec.Vec3Float{X: 2, Y: float64(sp.Y), Z: 2}})
	add := expect[protocol.AddEntity](c)
	assert.Equal(t, int32(2), add.ID)
	assert.Equal(t, pig, add.UUID)
	assert.Equal(t, pigType, add.Type)

	w.UpdateEntity(ctx, pig, func(e *world.Entity) { e.Position.X++ })
	move := expect[protocol.MoveEntityPos](c)
	assert.Equal(t, int32(2), move.ID)
	assert.Equal(t, int16(4096), move.DX)
	assert.Zero(t, move.DZ)

	stone, ok := w.Registry().BlockState("stone")
	require.True(t, ok)
	pos := vec.Vec3{X: 1, Y: sp.Y, Z: 1}
	changed, err := w.SetBlock(ctx, pos, stone)
	require.NoError(t, err)
	require.True(t, changed)
	bu := expect[protocol.BlockUpdate](c)
	assert.Equal(t, protocol.BlockPos{X: 1, Y: int32(sp.Y), Z: 1}, bu.Pos)
	assert.Equal(t, stone, bu.State)

	// Входящие пакеты доходят до обработчиков
	c.send(protocol.MovePlayerPos{X: 0.5, Y: float64(sp.Y), Z: 0.5, OnGround: true})
	select {
	case mv := <-moves:
		assert.True(t, mv.OnGround)
	case <-time.After(ioTimeout):
		t.Fatal("move_player_pos не дошёл до обработчика")
	}

	c.conn.Close()
	assert.NoError(t, waitErr(t, done), "Клиент закрыл соединение штатно")
	assert.Equal(t, []uuid.UUID{finished.UUID}, game.closedSessions())
	_, ok = s.Session(finished.UUID)
	assert.False(t, ok, "Сессия снята с учёта")
	_, ok = w.Player(finished.UUID)
	assert.False(t, ok)
}

func TestDuplicateLoginKicksOldSession(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.Game = &testGame{} })

	first, firstDone := dial(t, s)
	first.join("Alex")
	expect[protocol.SetTime](first)

	second, _ := dial(t, s)
	second.join("Alex")

	dc := expect[protocol.Disconnect](first)
	assert.Equal(t, "You logged in from another location", dc.Reason.String())
	assert.NoError(t, waitErr(t, firstDone))

	expect[protocol.SetTime](second)
	_, ok := s.opts.World.Player(OfflineUUID("Alex"))
	assert.True(t, ok, "Старая сессия не удаляет игрока новой")
	n, err := s.opts.Presence.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestKeepAliveTimeout(t *testing.T) {
	s := newTestServer(t, func(o *Options) {
		o.KeepAliveInterval = 20 * time.Millisecond
		o.KeepAliveTimeout = 60 * time.Millisecond
	})
	c, done := dial(t, s)
	c.join("Alex")

	expect[protocol.KeepAlive](c)
	// Не отвечаем
	dc := expect[protocol.Disconnect](c)
	assert.Equal(t, "Timed out", dc.Reason.String())
	assert.ErrorIs(t, waitErr(t, done), errKeepAliveTimeout)
}

func TestKeepAliveReplyMeasuresLatency(t *testing.T) {
	s := newTestServer(t, func(o *Options) {
		o.Game = &testGame{}
		o.KeepAliveInterval = 20 * time.Millisecond
		o.KeepAliveTimeout = time.Second
	})
	c, _ := dial(t, s)
	finished := c.join("Alex")

	ka := expect[protocol.KeepAlive](c)
	c.send(protocol.KeepAlive{ID: ka.ID})

	sess, ok := s.Session(finished.UUID)
	require.True(t, ok)
	assert.Eventually(t, func() bool { return sess.Latency() > 0 }, ioTimeout, 5*time.Millisecond)
}

func TestConnTransitions(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	c := newConn(server, NewMetrics(nil))
	defer c.Close()

	assert.ErrorIs(t, c.Transition(protocol.Play), ErrProtocolState, "Handshake → Play запрещён")
	require.NoError(t, c.Transition(protocol.Login))
	assert.ErrorIs(t, c.Transition(protocol.Status), ErrProtocolState)
	require.NoError(t, c.Transition(protocol.Configuration))
	require.NoError(t, c.Transition(protocol.Play))
	assert.ErrorIs(t, c.Transition(protocol.Configuration), ErrProtocolState, "Play конечное")
	assert.Equal(t, protocol.Play, c.State())
}

func TestRouterRejectsUnknownPacket(t *testing.T) {
	r := NewRouter()
	assert.Panics(t, func() { r.On("no_such_packet", func(*Session, protocol.Packet) error { return nil }) })
	assert.Panics(t, func() { r.On("login", func(*Session, protocol.Packet) error { return nil }) }, "Исходящий пакет")
	assert.NotPanics(t, func() { r.On("chat", func(*Session, protocol.Packet) error { return nil }) })

	handled, err := r.Dispatch(nil, "swing", protocol.Swing{})
	assert.False(t, handled)
	assert.NoError(t, err)
}

func TestOfflineUUID(t *testing.T) {
	assert.Equal(t, "b50ad385-829d-3141-a216-7e7d7539ba7f", OfflineUUID("Notch").String())
	assert.Equal(t, uuid.Version(3), OfflineUUID("Alex").Version())
	assert.NotEqual(t, OfflineUUID("Alex"), OfflineUUID("alex"))
}

func TestServerLinks(t *testing.T) {
	links := serverLinks([]config.Link{
		{Label: "bug_report", URL: "https://example.org/bugs"},
		{Label: "Карта мира", URL: "https://example.org/map"},
	})
	require.Len(t, links.Links, 2)
	assert.Equal(t, protocol.LinkBugReport, links.Links[0].Label)
	assert.Equal(t, protocol.CustomLink{Text: protocol.Plain("Карта мира")}, links.Links[1].Label)
	assert.Equal(t, "https://example.org/map", links.Links[1].URL)
}
