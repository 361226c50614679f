package network

import (
	"context"

	"github.com/pkg/errors"

	"github.com/annel0/voxelgate/internal/codec"
	"github.com/annel0/voxelgate/internal/config"
	"github.com/annel0/voxelgate/internal/protocol"
)

var builtinLinks = map[string]protocol.BuiltinLink{
	"bug_report":           protocol.LinkBugReport,
	"community_guidelines": protocol.LinkCommunityGuidelines,
	"support":              protocol.LinkSupport,
	"status":               protocol.LinkStatus,
	"feedback":             protocol.LinkFeedback,
	"community":            protocol.LinkCommunity,
	"website":              protocol.LinkWebsite,
	"forums":               protocol.LinkForums,
	"news":                 protocol.LinkNews,
	"announcements":        protocol.LinkAnnouncements,
}

// serverLinks переводит ссылки из конфигурации: известные имена становятся
// встроенными подписями, остальные: текстом.
func serverLinks(links []config.Link) protocol.ServerLinks {
	out := protocol.ServerLinks{Links: make([]protocol.ServerLink, 0, len(links))}
	for _, l := range links {
		var label protocol.LinkLabel = protocol.CustomLink{Text: protocol.Plain(l.Label)}
		if b, ok := builtinLinks[l.Label]; ok {
			label = b
		}
		out.Links = append(out.Links, protocol.ServerLink{Label: label, URL: l.URL})
	}
	return out
}

// configure проводит Configuration: brand, возможности и известные пакеты,
// после ответа клиента: реестры, ссылки и finish_configuration.
func (s *Server) configure(_ context.Context, c *Conn) error {
	reg := s.opts.World.Registry()

	brand, err := codec.String(32767).Append(nil, s.opts.Brand)
	if err != nil {
		return err
	}
	for _, p := range []protocol.Packet{
		protocol.CustomPayload{Channel: "minecraft:brand", Data: brand},
		protocol.UpdateEnabledFeatures{Features: reg.EnabledFeatures()},
		protocol.SelectKnownPacks{Packs: reg.KnownPacks()},
	} {
		if err := c.WritePacket(p); err != nil {
			return err
		}
	}

	finished := false
	for {
		p, name, err := c.ReadPacket()
		if ignorable(err) {
			s.logger.Debug("%s: configuration: %v, пропущен", c.Remote(), err)
			continue
		}
		if err != nil {
			return fatalRead(err, name)
		}

		switch p := p.(type) {
		case protocol.SelectKnownPacks:
			if finished {
				return errors.Wrap(ErrProtocolState, "select_known_packs after finish_configuration")
			}
			if !reg.KnowsCore(p.Packs) {
				s.logger.Warn("⚠️ %s не знает пакет данных ядра, реестры отправлены без данных", c.Remote())
			}
			for _, rd := range reg.RegistryPackets() {
				if err := c.WritePacket(rd); err != nil {
					return err
				}
			}
			if len(s.opts.Links) > 0 {
				if err := c.WritePacket(serverLinks(s.opts.Links)); err != nil {
					return err
				}
			}
			if err := c.WritePacket(protocol.FinishConfiguration{}); err != nil {
				return err
			}
			finished = true
		case protocol.FinishConfiguration:
			if !finished {
				return errors.Wrap(ErrProtocolState, "finish_configuration before registries")
			}
			return c.Transition(protocol.Play)
		case protocol.ClientInformation:
			s.logger.Debug("%s: locale %s, view distance %d", c.Remote(), p.Locale, p.ViewDistance)
		default:
			s.logger.Debug("%s: %s в configuration пропущен", c.Remote(), name)
		}
	}
}
