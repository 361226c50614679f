package sync

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxelgate/internal/protocol"
	"github.com/annel0/voxelgate/internal/world"
)

func TestPlayerListLifecycle(t *testing.T) {
	l := NewPlayerList()
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	pa := world.PlayerEntry{UUID: a, Name: "Alex", GameMode: 1, Listed: true, Latency: 10}
	pb := world.PlayerEntry{UUID: b, Name: "Steve", Listed: true}

	out := l.Sync(map[uuid.UUID]world.PlayerEntry{a: pa, b: pb})
	require.Len(t, out, 1)
	upd := out[0].(protocol.PlayerInfoUpdate)
	assert.Equal(t, addActions, upd.Actions)
	require.Len(t, upd.Entries, 2)
	assert.Equal(t, a, upd.Entries[0].UUID, "Записи упорядочены по UUID")
	assert.Equal(t, "Alex", upd.Entries[0].Name)
	assert.Equal(t, int32(1), upd.Entries[0].GameMode)

	assert.Empty(t, l.Sync(map[uuid.UUID]world.PlayerEntry{a: pa, b: pb}), "Без изменений пакетов нет")

	// a меняет задержку, b меняет режим и задержку: два разных набора действий
	pa.Latency = 50
	pb.GameMode = 3
	pb.Latency = 70
	out = l.Sync(map[uuid.UUID]world.PlayerEntry{a: pa, b: pb})
	require.Len(t, out, 2)
	first := out[0].(protocol.PlayerInfoUpdate)
	second := out[1].(protocol.PlayerInfoUpdate)
	assert.Equal(t, []protocol.PlayerInfoAction{protocol.UpdateLatency}, first.Actions, "Наборы идут по возрастанию маски")
	assert.Equal(t, a, first.Entries[0].UUID)
	assert.Equal(t, []protocol.PlayerInfoAction{protocol.UpdateGameMode, protocol.UpdateLatency}, second.Actions)
	assert.Equal(t, b, second.Entries[0].UUID)

	out = l.Sync(map[uuid.UUID]world.PlayerEntry{b: pb})
	assert.Equal(t, []protocol.Packet{protocol.PlayerInfoRemove{UUIDs: []uuid.UUID{a}}}, out)
	assert.Equal(t, 1, l.Len())
}

func TestPlayerListDisplayNameAndProfile(t *testing.T) {
	l := NewPlayerList()
	a := uuid.New()
	p := world.PlayerEntry{UUID: a, Name: "Alex", Listed: true}
	l.Sync(map[uuid.UUID]world.PlayerEntry{a: p})

	name := protocol.Plain("[admin] Alex")
	p.DisplayName = &name
	out := l.Sync(map[uuid.UUID]world.PlayerEntry{a: p})
	require.Len(t, out, 1)
	assert.Equal(t, []protocol.PlayerInfoAction{protocol.UpdateDisplayName}, out[0].(protocol.PlayerInfoUpdate).Actions)

	same := protocol.Plain("[admin] Alex")
	p.DisplayName = &same
	assert.Empty(t, l.Sync(map[uuid.UUID]world.PlayerEntry{a: p}), "Равный текст по другому указателю")

	// Смена свойств профиля пересоздаёт запись
	p.Properties = []protocol.Property{{Name: "textures", Value: "abc"}}
	out = l.Sync(map[uuid.UUID]world.PlayerEntry{a: p})
	require.Len(t, out, 2)
	assert.Equal(t, protocol.PlayerInfoRemove{UUIDs: []uuid.UUID{a}}, out[0])
	assert.Equal(t, addActions, out[1].(protocol.PlayerInfoUpdate).Actions)

	for _, pk := range out {
		_, err := protocol.Marshal(protocol.Play, protocol.Clientbound, pk)
		assert.NoError(t, err, "%T кодируется", pk)
	}
}
