package game

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxelgate/internal/codec"
	"github.com/annel0/voxelgate/internal/network"
	"github.com/annel0/voxelgate/internal/protocol"
	"github.com/annel0/voxelgate/internal/registry"
	"github.com/annel0/voxelgate/internal/storage"
	"github.com/annel0/voxelgate/internal/vec"
	"github.com/annel0/voxelgate/internal/world"
)

const ioTimeout = 5 * time.Second

type client struct {
	t     *testing.T
	conn  net.Conn
	r     *network.FrameReader
	w     *network.FrameWriter
	state protocol.State
}

type fixture struct {
	world     *world.World
	game      *Game
	positions *storage.MemoryPositionRepo
	server    *network.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w := world.New(world.Options{})
	positions := storage.NewMemoryPositionRepo()
	g := New(Options{World: w, Positions: positions, GameMode: 1})
	router := network.NewRouter()
	g.Register(router)

	s, err := network.NewServer(network.Options{
		MaxPlayers:           10,
		CompressionThreshold: -1,
		ViewDistance:         1,
		SyncInterval:         10 * time.Millisecond,
		World:                w,
		Game:                 g,
		Router:               router,
	})
	require.NoError(t, err)
	require.NoError(t, s.Listen("127.0.0.1:0"))
	t.Cleanup(s.Stop)
	return &fixture{world: w, game: g, positions: positions, server: s}
}

// join подключает клиента по TCP и проводит его до состояния Play.
func (f *fixture) join(t *testing.T, name string) *client {
	t.Helper()
	conn, err := net.DialTimeout("tcp", f.server.Addr().String(), ioTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &client{t: t, conn: conn, r: network.NewFrameReader(conn), w: network.NewFrameWriter(conn)}
	c.send(protocol.Intention{ProtocolVersion: protocol.Default().Version(), Host: "localhost", Port: 25565, Intent: protocol.IntentLogin})
	c.state = protocol.Login
	c.send(protocol.Hello{Name: name, UUID: network.OfflineUUID(name)})
	expect[protocol.LoginFinished](c)
	c.send(protocol.LoginAcknowledged{})
	c.state = protocol.Configuration
	expect[protocol.SelectKnownPacks](c)
	c.send(protocol.SelectKnownPacks{Packs: registry.Default().KnownPacks()})
	expect[protocol.FinishConfiguration](c)
	c.send(protocol.FinishConfiguration{})
	c.state = protocol.Play
	return c
}

func (c *client) send(p protocol.Packet) {
	c.t.Helper()
	payload, err := protocol.Marshal(c.state, protocol.Serverbound, p)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(ioTimeout)))
	require.NoError(c.t, c.w.WriteFrame(payload))
}

func expect[T protocol.Packet](c *client) T {
	c.t.Helper()
	var zero T
	want := protocol.NameOf(c.state, protocol.Clientbound, zero)
	require.NotEmpty(c.t, want)
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(ioTimeout)))
		payload, err := c.r.ReadFrame()
		require.NoError(c.t, err)
		id, _, err := codec.VarInt.Decode(payload)
		require.NoError(c.t, err)
		if name, _ := protocol.Default().NameOf(c.state, protocol.Clientbound, id); name != want {
			continue
		}
		p, err := protocol.Decode(c.state, protocol.Clientbound, payload)
		require.NoError(c.t, err)
		return p.(T)
	}
}

// closed ждёт, пока сервер закроет соединение.
func (c *client) closed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(ioTimeout)))
	for {
		if _, err := c.r.ReadFrame(); err != nil {
			return
		}
	}
}

func TestJoinPlacesPlayer(t *testing.T) {
	f := newFixture(t)
	c := f.join(t, "Alex")
	id := network.OfflineUUID("Alex")

	tp := expect[protocol.PlayerPosition](c)
	sp := f.world.Spawn()
	assert.Equal(t, float64(sp.X)+0.5, tp.X)
	assert.Equal(t, float64(sp.Y), tp.Y)

	info := expect[protocol.PlayerInfoUpdate](c)
	require.Len(t, info.Entries, 1)
	assert.Equal(t, "Alex", info.Entries[0].Name)
	assert.Equal(t, int32(1), info.Entries[0].GameMode)
	assert.True(t, info.Entries[0].Listed)

	e, ok := f.world.Entity(id)
	require.True(t, ok, "Сущность игрока в мире")
	typ, _ := registry.Default().EntityType("player")
	assert.Equal(t, typ, e.Type)
}

func TestMovementAfterTeleportAck(t *testing.T) {
	f := newFixture(t)
	c := f.join(t, "Alex")
	id := network.OfflineUUID("Alex")
	tp := expect[protocol.PlayerPosition](c)

	// До подтверждения телепортации движение пропускается
	c.send(protocol.MovePlayerPos{X: 5, Y: tp.Y, Z: 5, OnGround: true})
	c.send(protocol.AcceptTeleportation{TeleportID: tp.TeleportID})
	c.send(protocol.MovePlayerPosRot{X: 3.5, Y: tp.Y, Z: 4.5, Yaw: 90, Pitch: 10, OnGround: true})

	require.Eventually(t, func() bool {
		e, ok := f.world.Entity(id)
		return ok && e.Position.X == 3.5
	}, ioTimeout, 5*time.Millisecond)
	e, _ := f.world.Entity(id)
	assert.Equal(t, vec.Vec3Float{X: 3.5, Y: tp.Y, Z: 4.5}, e.Position)
	assert.Equal(t, float32(90), e.Yaw)
	assert.Equal(t, float32(90), e.HeadYaw)
	assert.Equal(t, float32(10), e.Pitch)
	assert.True(t, e.OnGround)

	c.send(protocol.MovePlayerStatusOnly{OnGround: false})
	require.Eventually(t, func() bool {
		e, _ := f.world.Entity(id)
		return !e.OnGround
	}, ioTimeout, 5*time.Millisecond)
}

func TestTooFastMoveIsRolledBack(t *testing.T) {
	f := newFixture(t)
	c := f.join(t, "Alex")
	id := network.OfflineUUID("Alex")
	tp := expect[protocol.PlayerPosition](c)
	c.send(protocol.AcceptTeleportation{TeleportID: tp.TeleportID})

	c.send(protocol.MovePlayerPos{X: tp.X + 50, Y: tp.Y, Z: tp.Z, OnGround: true})
	back := expect[protocol.PlayerPosition](c)
	assert.Equal(t, tp.X, back.X, "Игрок возвращён на прежнее место")
	assert.Equal(t, tp.Z, back.Z)
	assert.Greater(t, back.TeleportID, tp.TeleportID)

	e, ok := f.world.Entity(id)
	require.True(t, ok)
	assert.Equal(t, tp.X, e.Position.X)

	// Небольшое движение после подтверждения применяется
	c.send(protocol.AcceptTeleportation{TeleportID: back.TeleportID})
	c.send(protocol.MovePlayerPos{X: tp.X + 2, Y: tp.Y, Z: tp.Z, OnGround: true})
	require.Eventually(t, func() bool {
		e, _ := f.world.Entity(id)
		return e.Position.X == tp.X+2
	}, ioTimeout, 5*time.Millisecond)
}

func TestInvalidMoveKicks(t *testing.T) {
	f := newFixture(t)
	c := f.join(t, "Alex")
	tp := expect[protocol.PlayerPosition](c)
	c.send(protocol.AcceptTeleportation{TeleportID: tp.TeleportID})
	c.send(protocol.MovePlayerPos{X: 4e7, Y: 0, Z: 0})

	dc := expect[protocol.Disconnect](c)
	assert.Equal(t, "Invalid move player packet received", dc.Reason.String())
	c.closed()
}

func TestChatBroadcast(t *testing.T) {
	f := newFixture(t)
	alex := f.join(t, "Alex")
	expect[protocol.SetTime](alex)
	steve := f.join(t, "Steve")
	expect[protocol.SetTime](steve)

	steve.send(protocol.Chat{Message: "  привет  ", Acknowledged: make([]byte, 3)})
	for _, c := range []*client{alex, steve} {
		msg := expect[protocol.SystemChat](c)
		assert.Equal(t, "<Steve> привет", msg.Content.String())
		assert.False(t, msg.Overlay)
	}
}

func TestPlayerCommandMetadata(t *testing.T) {
	f := newFixture(t)
	c := f.join(t, "Alex")
	id := network.OfflineUUID("Alex")
	expect[protocol.SetTime](c)

	c.send(protocol.PlayerCommand{EntityID: 1, Action: protocol.PressShiftKey})
	require.Eventually(t, func() bool {
		e, _ := f.world.Entity(id)
		return e.Metadata[metaPose] == protocol.MetaPose(protocol.PoseCrouching)
	}, ioTimeout, 5*time.Millisecond)

	c.send(protocol.PlayerCommand{EntityID: 1, Action: protocol.StartSprinting})
	c.send(protocol.PlayerCommand{EntityID: 1, Action: protocol.ReleaseShiftKey})
	require.Eventually(t, func() bool {
		e, _ := f.world.Entity(id)
		return e.Metadata[metaFlags] == protocol.MetaByte(int8(flagSprinting))
	}, ioTimeout, 5*time.Millisecond)
	e, _ := f.world.Entity(id)
	assert.Equal(t, protocol.MetaPose(protocol.PoseStanding), e.Metadata[metaPose])
}

func TestPositionSurvivesReconnect(t *testing.T) {
	f := newFixture(t)
	id := network.OfflineUUID("Alex")

	c := f.join(t, "Alex")
	tp := expect[protocol.PlayerPosition](c)
	c.send(protocol.AcceptTeleportation{TeleportID: tp.TeleportID})
	c.send(protocol.MovePlayerPos{X: 7.25, Y: tp.Y + 1, Z: -3.5, OnGround: false})
	require.Eventually(t, func() bool {
		e, ok := f.world.Entity(id)
		return ok && e.Position.X == 7.25
	}, ioTimeout, 5*time.Millisecond)

	c.conn.Close()
	require.Eventually(t, func() bool {
		_, ok := f.world.Entity(id)
		return !ok
	}, ioTimeout, 5*time.Millisecond, "Сущность убрана после выхода")
	_, ok := f.world.Player(id)
	assert.False(t, ok)

	pose, found, err := f.positions.Load(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, vec.Vec3Float{X: 7.25, Y: tp.Y + 1, Z: -3.5}, pose.Position)

	again := f.join(t, "Alex")
	tp = expect[protocol.PlayerPosition](again)
	assert.Equal(t, 7.25, tp.X)
	assert.Equal(t, -3.5, tp.Z)
}

func TestValidation(t *testing.T) {
	assert.True(t, validPosition(0, -64, 0))
	assert.False(t, validPosition(3.1e7, 0, 0))
	assert.True(t, validPosition(0, 1e9, 0), "Высота не ограничена")
	assert.False(t, validRotation(float32(nanFloat()), 0))

	assert.True(t, allowedChat("привет, мир"))
	assert.False(t, allowedChat("§cкрасный"))
	assert.False(t, allowedChat("a\x07b"))
}

func nanFloat() float64 {
	zero := 0.0
	return zero / zero
}
