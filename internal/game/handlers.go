package game

import (
	"math"
	"strings"
	"unicode"

	"github.com/annel0/voxelgate/internal/network"
	"github.com/annel0/voxelgate/internal/protocol"
	"github.com/annel0/voxelgate/internal/vec"
	"github.com/annel0/voxelgate/internal/world"
)

// Предел координат по горизонтали, как у границы мира клиента.
const maxHorizontal = 3.0e7

// Дальше одним пакетом игрок не перемещается, такое движение откатывается.
const maxMoveDistance = 10.0

// Флаги метаданных сущности (индекс 0).
const (
	flagCrouching uint8 = 0x02
	flagSprinting uint8 = 0x08
)

// Индексы метаданных сущности.
const (
	metaFlags uint8 = 0
	metaPose  uint8 = 6
)

func (g *Game) acceptTeleportation(s *network.Session, p protocol.Packet) error {
	at := p.(protocol.AcceptTeleportation)
	if !s.AcceptTeleport(at.TeleportID) {
		g.logger.Debug("%s: подтверждение телепортации %d не ожидалось", s.Profile().Name, at.TeleportID)
	}
	return nil
}

// move применяет движение игрока к его сущности. До подтверждения последней
// телепортации движения клиента устарели и пропускаются.
func (g *Game) move(s *network.Session, p protocol.Packet) error {
	if s.AwaitingTeleport() {
		return nil
	}

	var apply func(e *world.Entity)
	switch m := p.(type) {
	case protocol.MovePlayerPos:
		if !validPosition(m.X, m.Y, m.Z) {
			return g.kickInvalidMove(s)
		}
		if g.tooFast(s, m.X, m.Y, m.Z) {
			return nil
		}
		apply = func(e *world.Entity) {
			e.Position.X, e.Position.Y, e.Position.Z = m.X, m.Y, m.Z
			e.OnGround = m.OnGround
		}
	case protocol.MovePlayerPosRot:
		if !validPosition(m.X, m.Y, m.Z) || !validRotation(m.Yaw, m.Pitch) {
			return g.kickInvalidMove(s)
		}
		if g.tooFast(s, m.X, m.Y, m.Z) {
			return nil
		}
		apply = func(e *world.Entity) {
			e.Position.X, e.Position.Y, e.Position.Z = m.X, m.Y, m.Z
			e.Yaw, e.HeadYaw, e.Pitch = m.Yaw, m.Yaw, m.Pitch
			e.OnGround = m.OnGround
		}
	case protocol.MovePlayerRot:
		if !validRotation(m.Yaw, m.Pitch) {
			return g.kickInvalidMove(s)
		}
		apply = func(e *world.Entity) {
			e.Yaw, e.HeadYaw, e.Pitch = m.Yaw, m.Yaw, m.Pitch
			e.OnGround = m.OnGround
		}
	case protocol.MovePlayerStatusOnly:
		apply = func(e *world.Entity) { e.OnGround = m.OnGround }
	default:
		return nil
	}

	if !g.world.UpdateEntity(s.Context(), s.Profile().UUID, apply) {
		g.logger.Debug("%s: движение без сущности", s.Profile().Name)
	}
	return nil
}

// tooFast возвращает игрока на последнюю известную позицию, если новая
// слишком далеко от неё.
func (g *Game) tooFast(s *network.Session, x, y, z float64) bool {
	e, ok := g.world.Entity(s.Profile().UUID)
	if !ok {
		return false
	}
	if (vec.Vec3Float{X: x, Y: y, Z: z}).Sub(e.Position).Length() <= maxMoveDistance {
		return false
	}
	g.logger.Warn("⚠️ %s двигался слишком быстро", s.Profile().Name)
	if _, err := s.Teleport(e.Position, e.Yaw, e.Pitch); err != nil {
		g.logger.Debug("%s: откат движения: %v", s.Profile().Name, err)
	}
	return true
}

func (g *Game) kickInvalidMove(s *network.Session) error {
	g.logger.Warn("⚠️ %s: недопустимое движение", s.Profile().Name)
	s.Disconnect(protocol.Plain("Invalid move player packet received"))
	return nil
}

func validPosition(x, y, z float64) bool {
	for _, v := range []float64{x, y, z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return math.Abs(x) <= maxHorizontal && math.Abs(z) <= maxHorizontal
}

func validRotation(yaw, pitch float32) bool {
	for _, v := range []float32{yaw, pitch} {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// playerCommand переносит присед и бег в метаданные сущности.
func (g *Game) playerCommand(s *network.Session, p protocol.Packet) error {
	cmd := p.(protocol.PlayerCommand)
	var set, clear uint8
	switch cmd.Action {
	case protocol.PressShiftKey:
		set = flagCrouching
	case protocol.ReleaseShiftKey:
		clear = flagCrouching
	case protocol.StartSprinting:
		set = flagSprinting
	case protocol.StopSprinting:
		clear = flagSprinting
	default:
		return nil
	}

	g.world.UpdateEntity(s.Context(), s.Profile().UUID, func(e *world.Entity) {
		if e.Metadata == nil {
			e.Metadata = protocol.Metadata{}
		}
		var flags uint8
		if v, ok := e.Metadata[metaFlags].(protocol.MetaByte); ok {
			flags = uint8(v)
		}
		flags = flags&^clear | set
		e.Metadata[metaFlags] = protocol.MetaByte(int8(flags))

		pose := protocol.PoseStanding
		if flags&flagCrouching != 0 {
			pose = protocol.PoseCrouching
		}
		e.Metadata[metaPose] = protocol.MetaPose(pose)
	})
	return nil
}

// chat рассылает сообщение всем игрокам системным чатом.
func (g *Game) chat(s *network.Session, p protocol.Packet) error {
	msg := strings.TrimSpace(p.(protocol.Chat).Message)
	if msg == "" {
		return nil
	}
	if !allowedChat(msg) {
		s.Disconnect(protocol.Plain("Illegal characters in chat"))
		return nil
	}

	name := s.Profile().Name
	g.logger.Info("💬 <%s> %s", name, msg)
	s.Server().Broadcast(protocol.SystemChat{Content: protocol.Text{
		Text:  "<" + name + "> ",
		Extra: []protocol.Text{protocol.Plain(msg)},
	}})
	return nil
}

// allowedChat запрещает управляющие символы и символ форматирования.
func allowedChat(msg string) bool {
	for _, r := range msg {
		if r == '§' || unicode.IsControl(r) {
			return false
		}
	}
	return true
}
