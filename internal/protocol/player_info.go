package protocol

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/annel0/voxelgate/internal/codec"
)

// PlayerInfoAction: действие в пакете player_info_update. Порядок совпадает с битами маски.
type PlayerInfoAction uint8

const (
	AddPlayer PlayerInfoAction = iota
	InitializeChat
	UpdateGameMode
	UpdateListed
	UpdateLatency
	UpdateDisplayName
)

var playerInfoActionNames = [...]string{
	"add_player", "initialize_chat", "update_game_mode", "update_listed", "update_latency", "update_display_name",
}

func (a PlayerInfoAction) String() string {
	if int(a) < len(playerInfoActionNames) {
		return playerInfoActionNames[a]
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// ChatSession: открытый ключ подписи чата игрока.
type ChatSession struct {
	SessionID uuid.UUID
	ExpiresAt int64
	PublicKey []byte
	Signature []byte
}

// PlayerInfoEntry: запись списка игроков. Заполнены только поля действий пакета.
type PlayerInfoEntry struct {
	UUID        uuid.UUID
	Name        string
	Properties  []Property
	ChatSession *ChatSession
	GameMode    int32
	Listed      bool
	Latency     int32
	DisplayName *Text
}

// PlayerInfoUpdate: набор действий и записи, каждая из которых несёт данные всех действий набора.
type PlayerInfoUpdate struct {
	Actions []PlayerInfoAction
	Entries []PlayerInfoEntry
}

var playerInfoActions = codec.Bitmask(AddPlayer, InitializeChat, UpdateGameMode, UpdateListed, UpdateLatency, UpdateDisplayName)

var chatSessionCodec = codec.Struct(
	codec.Field("session_id", codec.UUID, func(s *ChatSession) *uuid.UUID { return &s.SessionID }),
	codec.Field("expires_at", codec.Int64, func(s *ChatSession) *int64 { return &s.ExpiresAt }),
	codec.Field("public_key", codec.Bytes, func(s *ChatSession) *[]byte { return &s.PublicKey }),
	codec.Field("key_signature", codec.Bytes, func(s *ChatSession) *[]byte { return &s.Signature }),
)

// actionParts возвращает поля записи для действия.
func actionParts(a PlayerInfoAction) []codec.Part[PlayerInfoEntry] {
	switch a {
	case AddPlayer:
		return []codec.Part[PlayerInfoEntry]{
			codec.Field("name", codec.String(16), func(e *PlayerInfoEntry) *string { return &e.Name }),
			codec.Field("properties", codec.List(propertyCodec), func(e *PlayerInfoEntry) *[]Property { return &e.Properties }),
		}
	case InitializeChat:
		return []codec.Part[PlayerInfoEntry]{
			codec.Field("chat_session", codec.Optional(chatSessionCodec), func(e *PlayerInfoEntry) **ChatSession { return &e.ChatSession }),
		}
	case UpdateGameMode:
		return []codec.Part[PlayerInfoEntry]{
			codec.Field("game_mode", codec.VarInt, func(e *PlayerInfoEntry) *int32 { return &e.GameMode }),
		}
	case UpdateListed:
		return []codec.Part[PlayerInfoEntry]{
			codec.Field("listed", codec.Bool, func(e *PlayerInfoEntry) *bool { return &e.Listed }),
		}
	case UpdateLatency:
		return []codec.Part[PlayerInfoEntry]{
			codec.Field("latency", codec.VarInt, func(e *PlayerInfoEntry) *int32 { return &e.Latency }),
		}
	case UpdateDisplayName:
		return []codec.Part[PlayerInfoEntry]{
			codec.Field("display_name", codec.Optional(TextCodec), func(e *PlayerInfoEntry) **Text { return &e.DisplayName }),
		}
	}
	return nil
}

// entryCodecs кэширует кодек записи для каждой из 64 масок действий.
var entryCodecs = func() [64]codec.Codec[[]PlayerInfoEntry] {
	var out [64]codec.Codec[[]PlayerInfoEntry]
	for mask := range out {
		parts := []codec.Part[PlayerInfoEntry]{
			codec.Field("uuid", codec.UUID, func(e *PlayerInfoEntry) *uuid.UUID { return &e.UUID }),
		}
		for a := AddPlayer; a <= UpdateDisplayName; a++ {
			if mask&(1<<a) != 0 {
				parts = append(parts, actionParts(a)...)
			}
		}
		out[mask] = codec.List(codec.Struct(parts...))
	}
	return out
}()

func maskOf(actions []PlayerInfoAction) int {
	m := 0
	for _, a := range actions {
		m |= 1 << a
	}
	return m
}

type playerInfoCodec struct{}

func (playerInfoCodec) Append(dst []byte, p PlayerInfoUpdate) ([]byte, error) {
	dst, err := playerInfoActions.Append(dst, p.Actions)
	if err != nil {
		return dst, err
	}
	return entryListCodec(p.Actions).Append(dst, p.Entries)
}

func (playerInfoCodec) Decode(src []byte) (PlayerInfoUpdate, int, error) {
	actions, n, err := playerInfoActions.Decode(src)
	if err != nil {
		return PlayerInfoUpdate{}, 0, codec.Nest(err, "actions", 0)
	}
	entries, m, err := entryListCodec(actions).Decode(src[n:])
	if err != nil {
		return PlayerInfoUpdate{}, 0, codec.Nest(err, "entries", n)
	}
	return PlayerInfoUpdate{Actions: actions, Entries: entries}, n + m, nil
}

func entryListCodec(actions []PlayerInfoAction) codec.Codec[[]PlayerInfoEntry] {
	return entryCodecs[maskOf(actions)&63]
}
