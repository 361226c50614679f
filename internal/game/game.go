// Package game: игровая логика по умолчанию: вход игрока в мир, движение,
// чат и сохранение позиции между сессиями.
package game

import (
	"context"

	"github.com/annel0/voxelgate/internal/logging"
	"github.com/annel0/voxelgate/internal/network"
	"github.com/annel0/voxelgate/internal/storage"
	"github.com/annel0/voxelgate/internal/vec"
	"github.com/annel0/voxelgate/internal/world"
)

// Options параметры игры.
type Options struct {
	World     *world.World
	Positions storage.PositionRepo // nil: позиции только в памяти
	GameMode  uint8
}

// Game реализует network.Game: ставит игрока в мир как сущность и запись
// списка игроков и убирает при выходе.
type Game struct {
	world      *world.World
	positions  storage.PositionRepo
	gameMode   uint8
	playerType int32
	logger     *logging.Logger
}

// New создаёт игру над миром.
func New(opts Options) *Game {
	if opts.Positions == nil {
		opts.Positions = storage.NewMemoryPositionRepo()
	}
	typ, ok := opts.World.Registry().EntityType("player")
	if !ok {
		logging.GetGameLogger().Warn("⚠️ В реестре нет типа сущности player")
	}
	return &Game{
		world:      opts.World,
		positions:  opts.Positions,
		gameMode:   opts.GameMode,
		playerType: typ,
		logger:     logging.GetGameLogger(),
	}
}

// OpenSession восстанавливает позицию игрока или ставит его на точку появления.
func (g *Game) OpenSession(ctx context.Context, profile network.Profile, s *network.Session) (network.Spawn, error) {
	spawn := network.Spawn{Position: g.spawnPoint(), GameMode: g.gameMode}

	pose, found, err := g.positions.Load(ctx, profile.UUID)
	switch {
	case err != nil:
		g.logger.Warn("⚠️ Позиция %s не загружена: %v", profile.Name, err)
	case found:
		spawn.Position = pose.Position
		spawn.Yaw = pose.Yaw
		spawn.Pitch = pose.Pitch
		g.logger.Debug("Позиция %s восстановлена: %v", profile.Name, pose.Position)
	}

	g.world.PutPlayer(ctx, world.PlayerEntry{
		UUID:       profile.UUID,
		Name:       profile.Name,
		Properties: profile.Properties,
		GameMode:   int32(g.gameMode),
		Listed:     true,
	})
	g.world.PutEntity(ctx, &world.Entity{
		UUID:     profile.UUID,
		Type:     g.playerType,
		Position: spawn.Position,
		Yaw:      spawn.Yaw,
		Pitch:    spawn.Pitch,
		HeadYaw:  spawn.Yaw,
	})
	g.logger.Info("🎮 %s в мире на %v (%s)", profile.Name, spawn.Position, s.Remote())
	return spawn, nil
}

// CloseSession сохраняет позицию и убирает игрока из мира, если он не
// вошёл заново в другой сессии.
func (g *Game) CloseSession(ctx context.Context, s *network.Session) {
	id := s.Profile().UUID
	e, ok := g.world.Entity(id)
	if ok {
		pose := storage.PlayerPose{Position: e.Position, Yaw: e.Yaw, Pitch: e.Pitch}
		if err := g.positions.Save(ctx, id, pose); err != nil {
			g.logger.Warn("⚠️ Позиция %s не сохранена: %v", s.Profile().Name, err)
		}
	}
	if s.Replaced() {
		return
	}
	g.world.RemoveEntity(ctx, id)
	g.world.RemovePlayer(ctx, id)
}

// spawnPoint: центр блока точки появления.
func (g *Game) spawnPoint() vec.Vec3Float {
	return g.world.Spawn().Center()
}

// Register подключает обработчики входящих пакетов Play.
func (g *Game) Register(r *network.Router) {
	r.On("accept_teleportation", g.acceptTeleportation)
	r.On("move_player_pos", g.move)
	r.On("move_player_pos_rot", g.move)
	r.On("move_player_rot", g.move)
	r.On("move_player_status_only", g.move)
	r.On("player_command", g.playerCommand)
	r.On("chat", g.chat)
}
