package sync

import (
	"bytes"
	"sort"

	"github.com/google/uuid"

	"github.com/annel0/voxelgate/internal/protocol"
	"github.com/annel0/voxelgate/internal/world"
)

// addActions: действия, с которыми запись появляется у клиента.
var addActions = []protocol.PlayerInfoAction{
	protocol.AddPlayer,
	protocol.UpdateGameMode,
	protocol.UpdateListed,
	protocol.UpdateLatency,
	protocol.UpdateDisplayName,
}

// PlayerList отслеживает отправленный клиенту список игроков.
type PlayerList struct {
	last map[uuid.UUID]world.PlayerEntry
}

// NewPlayerList создаёт пустой трекер списка игроков.
func NewPlayerList() *PlayerList {
	return &PlayerList{last: make(map[uuid.UUID]world.PlayerEntry)}
}

// Len: число записей, известных клиенту.
func (l *PlayerList) Len() int { return len(l.last) }

// Sync возвращает player_info_remove для ушедших, player_info_update с полным
// набором действий для новых и по одному пакету на каждый набор изменённых
// действий для остальных.
func (l *PlayerList) Sync(current map[uuid.UUID]world.PlayerEntry) []protocol.Packet {
	var (
		removed []uuid.UUID
		added   []protocol.PlayerInfoEntry
		changed = map[int][]protocol.PlayerInfoEntry{}
	)
	for id := range l.last {
		if _, ok := current[id]; !ok {
			removed = append(removed, id)
		}
	}
	for id, p := range current {
		prev, ok := l.last[id]
		if ok && !sameProfile(prev, p) {
			// Имя и свойства меняются только пересозданием записи
			removed = append(removed, id)
			ok = false
		}
		if !ok {
			added = append(added, infoEntry(p))
			continue
		}
		if mask := changedMask(prev, p); mask != 0 {
			changed[mask] = append(changed[mask], infoEntry(p))
		}
	}

	var out []protocol.Packet
	if len(removed) > 0 {
		sortUUIDs(removed)
		out = append(out, protocol.PlayerInfoRemove{UUIDs: removed})
	}
	if len(added) > 0 {
		sortEntries(added)
		out = append(out, protocol.PlayerInfoUpdate{Actions: addActions, Entries: added})
	}
	masks := make([]int, 0, len(changed))
	for m := range changed {
		masks = append(masks, m)
	}
	sort.Ints(masks)
	for _, m := range masks {
		entries := changed[m]
		sortEntries(entries)
		out = append(out, protocol.PlayerInfoUpdate{Actions: actionsOf(m), Entries: entries})
	}

	l.last = make(map[uuid.UUID]world.PlayerEntry, len(current))
	for id, p := range current {
		l.last[id] = p
	}
	return out
}

func infoEntry(p world.PlayerEntry) protocol.PlayerInfoEntry {
	return protocol.PlayerInfoEntry{
		UUID:        p.UUID,
		Name:        p.Name,
		Properties:  p.Properties,
		GameMode:    p.GameMode,
		Listed:      p.Listed,
		Latency:     p.Latency,
		DisplayName: p.DisplayName,
	}
}

func sameProfile(a, b world.PlayerEntry) bool {
	if a.Name != b.Name || len(a.Properties) != len(b.Properties) {
		return false
	}
	for i := range a.Properties {
		pa, pb := a.Properties[i], b.Properties[i]
		if pa.Name != pb.Name || pa.Value != pb.Value || !sameOptString(pa.Signature, pb.Signature) {
			return false
		}
	}
	return true
}

func sameOptString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func changedMask(prev, cur world.PlayerEntry) int {
	mask := 0
	if prev.GameMode != cur.GameMode {
		mask |= 1 << protocol.UpdateGameMode
	}
	if prev.Listed != cur.Listed {
		mask |= 1 << protocol.UpdateListed
	}
	if prev.Latency != cur.Latency {
		mask |= 1 << protocol.UpdateLatency
	}
	if !sameText(prev.DisplayName, cur.DisplayName) {
		mask |= 1 << protocol.UpdateDisplayName
	}
	return mask
}

func sameText(a, b *protocol.Text) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.JSON() == b.JSON()
}

func actionsOf(mask int) []protocol.PlayerInfoAction {
	var out []protocol.PlayerInfoAction
	for a := protocol.AddPlayer; a <= protocol.UpdateDisplayName; a++ {
		if mask&(1<<a) != 0 {
			out = append(out, a)
		}
	}
	return out
}

func sortUUIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
}

func sortEntries(e []protocol.PlayerInfoEntry) {
	sort.Slice(e, func(i, j int) bool { return bytes.Compare(e[i].UUID[:], e[j].UUID[:]) < 0 })
}
