package network

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/annel0/voxelgate/internal/presence"
	"github.com/annel0/voxelgate/internal/protocol"
)

// Размер выборки игроков в документе статуса.
const statusSampleSize = 12

// StatusDocument: ответ на status_request.
type StatusDocument struct {
	Version            StatusVersion `json:"version"`
	Players            StatusPlayers `json:"players"`
	Description        protocol.Text `json:"description"`
	Favicon            string        `json:"favicon,omitempty"`
	EnforcesSecureChat bool          `json:"enforcesSecureChat"`
}

type StatusVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

type StatusPlayers struct {
	Max    int               `json:"max"`
	Online int               `json:"online"`
	Sample []presence.Player `json:"sample,omitempty"`
}

// StatusDocument собирает документ статуса. Ошибки реестра присутствия не
// фатальны: документ уходит с нулём игроков.
func (s *Server) StatusDocument(ctx context.Context) StatusDocument {
	doc := StatusDocument{
		Version: StatusVersion{
			Name:     protocol.Default().VersionName(),
			Protocol: protocol.Default().Version(),
		},
		Players:     StatusPlayers{Max: s.opts.MaxPlayers},
		Description: protocol.Plain(s.opts.MOTD),
		Favicon:     s.favicon,
	}
	online, err := s.opts.Presence.Count(ctx)
	if err != nil {
		s.logger.Warn("⚠️ Presence недоступен: %v", err)
		return doc
	}
	doc.Players.Online = online
	if sample, err := s.opts.Presence.Sample(ctx, statusSampleSize); err == nil {
		doc.Players.Sample = sample
	}
	return doc
}

// status отвечает на запросы статуса и закрывает соединение после pong.
func (s *Server) status(ctx context.Context, c *Conn) error {
	for {
		p, name, err := c.ReadPacket()
		if err != nil {
			return fatalRead(err, name)
		}
		switch p := p.(type) {
		case protocol.StatusRequest:
			data, err := json.Marshal(s.StatusDocument(ctx))
			if err != nil {
				return errors.Wrap(err, "encode status")
			}
			if err := c.WritePacket(protocol.StatusResponse{JSON: string(data)}); err != nil {
				return err
			}
		case protocol.PingRequest:
			return c.WritePacket(protocol.PongResponse{Payload: p.Payload})
		default:
			return errors.Wrapf(ErrProtocolState, "unexpected %s in status", name)
		}
	}
}
