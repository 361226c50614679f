package network

import (
	"context"
	"crypto/md5"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/annel0/voxelgate/internal/protocol"
)

// Profile: подтверждённый профиль игрока.
type Profile struct {
	UUID       uuid.UUID
	Name       string
	Properties []protocol.Property
}

// OfflineUUID: UUID версии 3 от "OfflinePlayer:<имя>", как у серверов без
// проверки аккаунтов.
func OfflineUUID(name string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))
	sum[6] = sum[6]&0x0f | 0x30
	sum[8] = sum[8]&0x3f | 0x80
	return uuid.UUID(sum)
}

// login проводит вход: hello → [login_compression] → login_finished → login_acknowledged.
// Возвращает nil без ошибки, если вход отклонён.
func (s *Server) login(_ context.Context, c *Conn) (*Profile, error) {
	p, name, err := c.ReadPacket()
	if err != nil {
		return nil, fatalRead(err, name)
	}
	hello, ok := p.(protocol.Hello)
	if !ok {
		return nil, errors.Wrapf(ErrProtocolState, "unexpected %s before hello", name)
	}

	if want := protocol.Default().Version(); c.Version() != want {
		s.logger.Info("%s (%s): версия протокола %d, нужна %d", hello.Name, c.Remote(), c.Version(), want)
		reason := protocol.Plain(fmt.Sprintf("Outdated client! Please use %s", protocol.Default().VersionName()))
		if c.Version() > want {
			reason = protocol.Plain(fmt.Sprintf("Outdated server! I'm still on %s", protocol.Default().VersionName()))
		}
		return nil, c.WritePacket(protocol.LoginDisconnect{Reason: reason})
	}

	profile := &Profile{UUID: OfflineUUID(hello.Name), Name: hello.Name}

	if t := s.opts.CompressionThreshold; t >= 0 {
		if err := c.WritePacket(protocol.LoginCompression{Threshold: int32(t)}); err != nil {
			return nil, err
		}
		c.SetCompression(t)
	}
	if err := c.WritePacket(protocol.LoginFinished{
		UUID:       profile.UUID,
		Name:       profile.Name,
		Properties: profile.Properties,
	}); err != nil {
		return nil, err
	}

	p, name, err = c.ReadPacket()
	if err != nil {
		return nil, fatalRead(err, name)
	}
	if _, ok := p.(protocol.LoginAcknowledged); !ok {
		return nil, errors.Wrapf(ErrProtocolState, "unexpected %s before login_acknowledged", name)
	}
	s.logger.Info("👤 %s (%s) вошёл, UUID %s", profile.Name, c.Remote(), profile.UUID)
	return profile, c.Transition(protocol.Configuration)
}
