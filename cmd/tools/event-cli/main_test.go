package main

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/annel0/voxelgate/internal/eventbus"
	"github.com/annel0/voxelgate/internal/vec"
	"github.com/annel0/voxelgate/internal/world"
)

func TestParseStringList(t *testing.T) {
	assert.Nil(t, parseStringList(""))
	assert.Equal(t, []string{"block", "entity"}, parseStringList(" block, ,entity "))
}

func TestKindFilter(t *testing.T) {
	opts := &TailOptions{Kinds: []string{"block"}}
	assert.True(t, opts.match(world.Change{Kind: world.ChangeBlock}))
	assert.False(t, opts.match(world.Change{Kind: world.ChangeEntity}))
	assert.True(t, (&TailOptions{}).match(world.Change{Kind: world.ChangePlayer}), "Пустой фильтр пропускает всё")

	f := (&TailOptions{Sources: []string{"a"}}).filter()
	assert.Equal(t, []string{world.EventWorldChanged}, f.Types)
	assert.Equal(t, []string{"a"}, f.Sources)
}

func TestFormatChange(t *testing.T) {
	ev := &eventbus.Envelope{Source: "voxelgate-1", Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}

	block := formatChange(ev, world.Change{Seq: 7, Kind: world.ChangeBlock, Block: vec.Vec3{X: 1, Y: -2, Z: 3}, State: 9})
	assert.Contains(t, block, "voxelgate-1 #7 [block] (1,-2,3) → 9")

	id := uuid.MustParse("b50ad385-829d-3141-a216-7e7d7539ba7f")
	ent := formatChange(ev, world.Change{Seq: 8, Kind: world.ChangeEntityRemoved, Subject: id})
	assert.Contains(t, ent, "[entity_removed] "+id.String())
}
