package protocol

import (
	"github.com/google/uuid"

	"github.com/annel0/voxelgate/internal/codec"
)

// ---------------------------------------------------------------------------
// Сущности
// ---------------------------------------------------------------------------

// BundleDelimiter открывает и закрывает группу пакетов, которую клиент применяет атомарно.
type BundleDelimiter struct{}

// AddEntity создаёт сущность у клиента.
type AddEntity struct {
	ID                  int32
	UUID                uuid.UUID
	Type                int32
	X, Y, Z             float64
	Pitch, Yaw, HeadYaw Angle
	Data                int32
	VelX, VelY, VelZ    int16
}

// RemoveEntities удаляет сущности по идентификаторам соединения.
type RemoveEntities struct{ IDs []int32 }

// MoveEntityPos: относительное перемещение в 1/4096 блока.
type MoveEntityPos struct {
	ID         int32
	DX, DY, DZ int16
	OnGround   bool
}

// MoveEntityPosRot: относительное перемещение с поворотом.
type MoveEntityPosRot struct {
	ID         int32
	DX, DY, DZ int16
	Yaw, Pitch Angle
	OnGround   bool
}

// MoveEntityRot: только поворот.
type MoveEntityRot struct {
	ID         int32
	Yaw, Pitch Angle
	OnGround   bool
}

// TeleportEntity: абсолютная позиция, когда смещение не помещается в MoveEntityPos.
type TeleportEntity struct {
	ID         int32
	X, Y, Z    float64
	Yaw, Pitch Angle
	OnGround   bool
}

// RotateHead: поворот головы.
type RotateHead struct {
	ID      int32
	HeadYaw Angle
}

// SetEntityData: изменённые метаданные.
type SetEntityData struct {
	ID       int32
	Metadata Metadata
}

// SetEquipment: изменённые слоты экипировки.
type SetEquipment struct {
	ID        int32
	Equipment Equipment
}

// SetEntityMotion: скорость в 1/8000 блока за тик.
type SetEntityMotion struct {
	ID               int32
	VelX, VelY, VelZ int16
}

func entityID[P any](get func(*P) *int32) codec.Part[P] {
	return codec.Field("entity_id", codec.VarInt, get)
}

func delta[P any](name string, get func(*P) *int16) codec.Part[P] {
	return codec.Field(name, codec.Int16, get)
}

func angle[P any](name string, get func(*P) *Angle) codec.Part[P] {
	return codec.Field(name, AngleCodec, get)
}

func onGround[P any](get func(*P) *bool) codec.Part[P] {
	return codec.Field("on_ground", codec.Bool, get)
}

func f64[P any](name string, get func(*P) *float64) codec.Part[P] {
	return codec.Field(name, codec.Float64, get)
}

var (
	bundleDelimiterSchema = define(Play, Clientbound, "bundle_delimiter", codec.Empty[BundleDelimiter]())
	addEntitySchema       = define(Play, Clientbound, "add_entity", codec.Struct(
		entityID(func(p *AddEntity) *int32 { return &p.ID }),
		codec.Field("uuid", codec.UUID, func(p *AddEntity) *uuid.UUID { return &p.UUID }),
		codec.Field("type", codec.VarInt, func(p *AddEntity) *int32 { return &p.Type }),
		f64("x", func(p *AddEntity) *float64 { return &p.X }),
		f64("y", func(p *AddEntity) *float64 { return &p.Y }),
		f64("z", func(p *AddEntity) *float64 { return &p.Z }),
		angle("pitch", func(p *AddEntity) *Angle { return &p.Pitch }),
		angle("yaw", func(p *AddEntity) *Angle { return &p.Yaw }),
		angle("head_yaw", func(p *AddEntity) *Angle { return &p.HeadYaw }),
		codec.Field("data", codec.VarInt, func(p *AddEntity) *int32 { return &p.Data }),
		delta("velocity_x", func(p *AddEntity) *int16 { return &p.VelX }),
		delta("velocity_y", func(p *AddEntity) *int16 { return &p.VelY }),
		delta("velocity_z", func(p *AddEntity) *int16 { return &p.VelZ }),
	))
	removeEntitiesSchema = define(Play, Clientbound, "remove_entities", codec.Struct(
		codec.Field("entity_ids", codec.List(codec.VarInt), func(p *RemoveEntities) *[]int32 { return &p.IDs }),
	))
	moveEntityPosSchema = define(Play, Clientbound, "move_entity_pos", codec.Struct(
		entityID(func(p *MoveEntityPos) *int32 { return &p.ID }),
		delta("dx", func(p *MoveEntityPos) *int16 { return &p.DX }),
		delta("dy", func(p *MoveEntityPos) *int16 { return &p.DY }),
		delta("dz", func(p *MoveEntityPos) *int16 { return &p.DZ }),
		onGround(func(p *MoveEntityPos) *bool { return &p.OnGround }),
	))
	moveEntityPosRotSchema = define(Play, Clientbound, "move_entity_pos_rot", codec.Struct(
		entityID(func(p *MoveEntityPosRot) *int32 { return &p.ID }),
		delta("dx", func(p *MoveEntityPosRot) *int16 { return &p.DX }),
		delta("dy", func(p *MoveEntityPosRot) *int16 { return &p.DY }),
		delta("dz", func(p *MoveEntityPosRot) *int16 { return &p.DZ }),
		angle("yaw", func(p *MoveEntityPosRot) *Angle { return &p.Yaw }),
		angle("pitch", func(p *MoveEntityPosRot) *Angle { return &p.Pitch }),
		onGround(func(p *MoveEntityPosRot) *bool { return &p.OnGround }),
	))
	moveEntityRotSchema = define(Play, Clientbound, "move_entity_rot", codec.Struct(
		entityID(func(p *MoveEntityRot) *int32 { return &p.ID }),
		angle("yaw", func(p *MoveEntityRot) *Angle { return &p.Yaw }),
		angle("pitch", func(p *MoveEntityRot) *Angle { return &p.Pitch }),
		onGround(func(p *MoveEntityRot) *bool { return &p.OnGround }),
	))
	teleportEntitySchema = define(Play, Clientbound, "teleport_entity", codec.Struct(
		entityID(func(p *TeleportEntity) *int32 { return &p.ID }),
		f64("x", func(p *TeleportEntity) *float64 { return &p.X }),
		f64("y", func(p *TeleportEntity) *float64 { return &p.Y }),
		f64("z", func(p *TeleportEntity) *float64 { return &p.Z }),
		angle("yaw", func(p *TeleportEntity) *Angle { return &p.Yaw }),
		angle("pitch", func(p *TeleportEntity) *Angle { return &p.Pitch }),
		onGround(func(p *TeleportEntity) *bool { return &p.OnGround }),
	))
	rotateHeadSchema = define(Play, Clientbound, "rotate_head", codec.Struct(
		entityID(func(p *RotateHead) *int32 { return &p.ID }),
		angle("head_yaw", func(p *RotateHead) *Angle { return &p.HeadYaw }),
	))
	setEntityDataSchema = define(Play, Clientbound, "set_entity_data", codec.Struct(
		entityID(func(p *SetEntityData) *int32 { return &p.ID }),
		codec.Field("metadata", MetadataCodec, func(p *SetEntityData) *Metadata { return &p.Metadata }),
	))
	setEquipmentSchema = define(Play, Clientbound, "set_equipment", codec.Struct(
		entityID(func(p *SetEquipment) *int32 { return &p.ID }),
		codec.Field("equipment", EquipmentCodec, func(p *SetEquipment) *Equipment { return &p.Equipment }),
	))
	setEntityMotionSchema = define(Play, Clientbound, "set_entity_motion", codec.Struct(
		entityID(func(p *SetEntityMotion) *int32 { return &p.ID }),
		delta("velocity_x", func(p *SetEntityMotion) *int16 { return &p.VelX }),
		delta("velocity_y", func(p *SetEntityMotion) *int16 { return &p.VelY }),
		delta("velocity_z", func(p *SetEntityMotion) *int16 { return &p.VelZ }),
	))
)

// ---------------------------------------------------------------------------
// Сессия игрока
// ---------------------------------------------------------------------------

// GlobalPos: позиция в конкретном измерении.
type GlobalPos struct {
	Dimension string
	Pos       BlockPos
}

// PlayLogin первый пакет Play с параметрами мира и игрока.
type PlayLogin struct {
	EntityID            int32
	Hardcore            bool
	Dimensions          []string
	MaxPlayers          int32
	ViewDistance        int32
	SimulationDistance  int32
	ReducedDebugInfo    bool
	EnableRespawnScreen bool
	DoLimitedCrafting   bool
	DimensionType       int32
	DimensionName       string
	HashedSeed          int64
	GameMode            uint8
	PreviousGameMode    int8
	IsDebug             bool
	IsFlat              bool
	DeathLocation       *GlobalPos
	PortalCooldown      int32
	EnforcesSecureChat  bool
}

// RelativeFlag: координата PlayerPosition, заданная относительно текущей.
type RelativeFlag uint8

const (
	RelativeX RelativeFlag = iota
	RelativeY
	RelativeZ
	RelativeYaw
	RelativePitch
)

// PlayerPosition: позиция игрока, которую клиент должен подтвердить AcceptTeleportation.
type PlayerPosition struct {
	X, Y, Z    float64
	Yaw, Pitch float32
	Relative   []RelativeFlag
	TeleportID int32
}

// Коды GameEvent.
const (
	GameEventChangeGameMode     uint8 = 3
	GameEventStartWaitingChunks uint8 = 13
)

// GameEvent: событие игры с одним числовым параметром.
type GameEvent struct {
	Event uint8
	Value float32
}

// SystemChat: системное сообщение в чат или над панелью быстрого доступа.
type SystemChat struct {
	Content Text
	Overlay bool
}

// SetDefaultSpawnPosition: точка возрождения мира.
type SetDefaultSpawnPosition struct {
	Pos   BlockPos
	Angle float32
}

// SetTime: возраст мира и время суток в тиках.
type SetTime struct {
	WorldAge  int64
	TimeOfDay int64
}

// PlayerInfoRemove убирает игроков из списка.
type PlayerInfoRemove struct{ UUIDs []uuid.UUID }

var (
	playLoginSchema = define(Play, Clientbound, "login", codec.Struct(
		codec.Field("entity_id", codec.Int32, func(p *PlayLogin) *int32 { return &p.EntityID }),
		codec.Field("hardcore", codec.Bool, func(p *PlayLogin) *bool { return &p.Hardcore }),
		codec.Field("dimensions", codec.List(Identifier), func(p *PlayLogin) *[]string { return &p.Dimensions }),
		codec.Field("max_players", codec.VarInt, func(p *PlayLogin) *int32 { return &p.MaxPlayers }),
		codec.Field("view_distance", codec.VarInt, func(p *PlayLogin) *int32 { return &p.ViewDistance }),
		codec.Field("simulation_distance", codec.VarInt, func(p *PlayLogin) *int32 { return &p.SimulationDistance }),
		codec.Field("reduced_debug_info", codec.Bool, func(p *PlayLogin) *bool { return &p.ReducedDebugInfo }),
		codec.Field("enable_respawn_screen", codec.Bool, func(p *PlayLogin) *bool { return &p.EnableRespawnScreen }),
		codec.Field("do_limited_crafting", codec.Bool, func(p *PlayLogin) *bool { return &p.DoLimitedCrafting }),
		codec.Field("dimension_type", codec.VarInt, func(p *PlayLogin) *int32 { return &p.DimensionType }),
		codec.Field("dimension_name", Identifier, func(p *PlayLogin) *string { return &p.DimensionName }),
		codec.Field("hashed_seed", codec.Int64, func(p *PlayLogin) *int64 { return &p.HashedSeed }),
		codec.Field("game_mode", codec.Uint8, func(p *PlayLogin) *uint8 { return &p.GameMode }),
		codec.Field("previous_game_mode", codec.Int8, func(p *PlayLogin) *int8 { return &p.PreviousGameMode }),
		codec.Field("is_debug", codec.Bool, func(p *PlayLogin) *bool { return &p.IsDebug }),
		codec.Field("is_flat", codec.Bool, func(p *PlayLogin) *bool { return &p.IsFlat }),
		codec.Field("death_location", codec.Optional(codec.Struct(
			codec.Field("dimension", Identifier, func(g *GlobalPos) *string { return &g.Dimension }),
			codec.Field("pos", Position, func(g *GlobalPos) *BlockPos { return &g.Pos }),
		)), func(p *PlayLogin) **GlobalPos { return &p.DeathLocation }),
		codec.Field("portal_cooldown", codec.VarInt, func(p *PlayLogin) *int32 { return &p.PortalCooldown }),
		codec.Field("enforces_secure_chat", codec.Bool, func(p *PlayLogin) *bool { return &p.EnforcesSecureChat }),
	))
	playerPositionSchema = define(Play, Clientbound, "player_position", codec.Struct(
		f64("x", func(p *PlayerPosition) *float64 { return &p.X }),
		f64("y", func(p *PlayerPosition) *float64 { return &p.Y }),
		f64("z", func(p *PlayerPosition) *float64 { return &p.Z }),
		codec.Field("yaw", codec.Float32, func(p *PlayerPosition) *float32 { return &p.Yaw }),
		codec.Field("pitch", codec.Float32, func(p *PlayerPosition) *float32 { return &p.Pitch }),
		codec.Field("flags", codec.Bitmask(RelativeX, RelativeY, RelativeZ, RelativeYaw, RelativePitch),
			func(p *PlayerPosition) *[]RelativeFlag { return &p.Relative }),
		codec.Field("teleport_id", codec.VarInt, func(p *PlayerPosition) *int32 { return &p.TeleportID }),
	))
	gameEventSchema = define(Play, Clientbound, "game_event", codec.Struct(
		codec.Field("event", codec.Uint8, func(p *GameEvent) *uint8 { return &p.Event }),
		codec.Field("value", codec.Float32, func(p *GameEvent) *float32 { return &p.Value }),
	))
	playKeepAliveOutSchema = define(Play, Clientbound, "keep_alive", keepAliveCodec)
	systemChatSchema       = define(Play, Clientbound, "system_chat", codec.Struct(
		codec.Field("content", TextCodec, func(p *SystemChat) *Text { return &p.Content }),
		codec.Field("overlay", codec.Bool, func(p *SystemChat) *bool { return &p.Overlay }),
	))
	playDisconnectSchema   = define(Play, Clientbound, "disconnect", disconnectCodec)
	playerInfoUpdateSchema = define(Play, Clientbound, "player_info_update", codec.Codec[PlayerInfoUpdate](playerInfoCodec{}))
	playerInfoRemoveSchema = define(Play, Clientbound, "player_info_remove", codec.Struct(
		codec.Field("uuids", codec.List(codec.UUID), func(p *PlayerInfoRemove) *[]uuid.UUID { return &p.UUIDs }),
	))
	setDefaultSpawnSchema = define(Play, Clientbound, "set_default_spawn_position", codec.Struct(
		codec.Field("location", Position, func(p *SetDefaultSpawnPosition) *BlockPos { return &p.Pos }),
		codec.Field("angle", codec.Float32, func(p *SetDefaultSpawnPosition) *float32 { return &p.Angle }),
	))
	setTimeSchema = define(Play, Clientbound, "set_time", codec.Struct(
		codec.Field("world_age", codec.Int64, func(p *SetTime) *int64 { return &p.WorldAge }),
		codec.Field("time_of_day", codec.Int64, func(p *SetTime) *int64 { return &p.TimeOfDay }),
	))
	playPongSchema = define(Play, Clientbound, "pong_response", codec.Struct(
		codec.Field("payload", codec.Int64, func(p *PongResponse) *int64 { return &p.Payload }),
	))
)

// ---------------------------------------------------------------------------
// Полоса босса
// ---------------------------------------------------------------------------

// BossActionKind: вид действия boss_event.
type BossActionKind int32

const (
	BossAddKind BossActionKind = iota
	BossRemoveKind
	BossUpdateHealthKind
	BossUpdateTitleKind
	BossUpdateStyleKind
	BossUpdatePropertiesKind
)

// BossColor: цвет полосы.
type BossColor int32

const (
	BossPink BossColor = iota
	BossBlue
	BossRed
	BossGreen
	BossYellow
	BossPurple
	BossWhite
)

// BossOverlay: деление полосы на сегменты.
type BossOverlay int32

const (
	BossProgress BossOverlay = iota
	BossNotched6
	BossNotched10
	BossNotched12
	BossNotched20
)

// BossFlag: дополнительный эффект полосы.
type BossFlag uint8

const (
	BossDarkenScreen BossFlag = iota
	BossPlayMusic
	BossCreateFog
)

// BossAction: полезная нагрузка boss_event.
type BossAction interface{ Kind() BossActionKind }

// BossAdd создаёт полосу.
type BossAdd struct {
	Title   Text
	Health  float32
	Color   BossColor
	Overlay BossOverlay
	Flags   []BossFlag
}

// BossRemove убирает полосу.
type BossRemove struct{}

type BossUpdateHealth struct{ Health float32 }

type BossUpdateTitle struct{ Title Text }

type BossUpdateStyle struct {
	Color   BossColor
	Overlay BossOverlay
}

type BossUpdateProperties struct{ Flags []BossFlag }

func (BossAdd) Kind() BossActionKind              { return BossAddKind }
func (BossRemove) Kind() BossActionKind           { return BossRemoveKind }
func (BossUpdateHealth) Kind() BossActionKind     { return BossUpdateHealthKind }
func (BossUpdateTitle) Kind() BossActionKind      { return BossUpdateTitleKind }
func (BossUpdateStyle) Kind() BossActionKind      { return BossUpdateStyleKind }
func (BossUpdateProperties) Kind() BossActionKind { return BossUpdatePropertiesKind }

// BossEvent: изменение полосы босса с идентификатором ID.
type BossEvent struct {
	ID     uuid.UUID
	Action BossAction
}

var (
	bossColor   = codec.Enum(codec.VarInt, intLabels[BossColor](int(BossWhite)+1)...)
	bossOverlay = codec.Enum(codec.VarInt, intLabels[BossOverlay](int(BossNotched20)+1)...)
	bossFlags   = codec.Bitmask(BossDarkenScreen, BossPlayMusic, BossCreateFog)
)

var bossActionCodec = codec.Switch(
	codec.Enum(codec.VarInt, intLabels[BossActionKind](int(BossUpdatePropertiesKind)+1)...),
	BossAction.Kind,
	map[BossActionKind]codec.Codec[BossAction]{
		BossAddKind: codec.As[BossAction](codec.Struct(
			codec.Field("title", TextCodec, func(a *BossAdd) *Text { return &a.Title }),
			codec.Field("health", codec.Float32, func(a *BossAdd) *float32 { return &a.Health }),
			codec.Field("color", bossColor, func(a *BossAdd) *BossColor { return &a.Color }),
			codec.Field("division", bossOverlay, func(a *BossAdd) *BossOverlay { return &a.Overlay }),
			codec.Field("flags", bossFlags, func(a *BossAdd) *[]BossFlag { return &a.Flags }),
		)),
		BossRemoveKind: codec.As[BossAction](codec.Empty[BossRemove]()),
		BossUpdateHealthKind: codec.As[BossAction](codec.Struct(
			codec.Field("health", codec.Float32, func(a *BossUpdateHealth) *float32 { return &a.Health }),
		)),
		BossUpdateTitleKind: codec.As[BossAction](codec.Struct(
			codec.Field("title", TextCodec, func(a *BossUpdateTitle) *Text { return &a.Title }),
		)),
		BossUpdateStyleKind: codec.As[BossAction](codec.Struct(
			codec.Field("color", bossColor, func(a *BossUpdateStyle) *BossColor { return &a.Color }),
			codec.Field("division", bossOverlay, func(a *BossUpdateStyle) *BossOverlay { return &a.Overlay }),
		)),
		BossUpdatePropertiesKind: codec.As[BossAction](codec.Struct(
			codec.Field("flags", bossFlags, func(a *BossUpdateProperties) *[]BossFlag { return &a.Flags }),
		)),
	})

var bossEventSchema = define(Play, Clientbound, "boss_event", codec.Struct(
	codec.Field("uuid", codec.UUID, func(p *BossEvent) *uuid.UUID { return &p.ID }),
	codec.Field("action", bossActionCodec, func(p *BossEvent) *BossAction { return &p.Action }),
))

// ---------------------------------------------------------------------------
// Входящие пакеты Play
// ---------------------------------------------------------------------------

// AcceptTeleportation подтверждает PlayerPosition.
type AcceptTeleportation struct{ TeleportID int32 }

// Chat: сообщение игрока. Подпись и подтверждения не проверяются.
type Chat struct {
	Message      string
	Timestamp    int64
	Salt         int64
	Signature    *[]byte
	MessageCount int32
	Acknowledged []byte
}

// MovePlayerPos: новая позиция игрока.
type MovePlayerPos struct {
	X, Y, Z  float64
	OnGround bool
}

// MovePlayerPosRot: новая позиция и поворот игрока.
type MovePlayerPosRot struct {
	X, Y, Z    float64
	Yaw, Pitch float32
	OnGround   bool
}

// MovePlayerRot: новый поворот игрока.
type MovePlayerRot struct {
	Yaw, Pitch float32
	OnGround   bool
}

// MovePlayerStatusOnly: только признак касания земли.
type MovePlayerStatusOnly struct{ OnGround bool }

// ChunkBatchReceived: скорость приёма чанков клиентом.
type ChunkBatchReceived struct{ ChunksPerTick float32 }

// InteractionHand: рука действия.
type InteractionHand int32

const (
	MainHandUse InteractionHand = iota
	OffHandUse
)

// Swing: взмах рукой.
type Swing struct{ Hand InteractionHand }

// SetCarriedItem: выбранный слот панели быстрого доступа.
type SetCarriedItem struct{ Slot int16 }

// PlayerAction: действие из player_command.
type PlayerAction int32

const (
	PressShiftKey PlayerAction = iota
	ReleaseShiftKey
	StopSleeping
	StartSprinting
	StopSprinting
	StartRidingJump
	StopRidingJump
	OpenInventory
	StartFallFlying
)

// PlayerCommand: смена состояния игрока (присед, бег и т.п.).
type PlayerCommand struct {
	EntityID  int32
	Action    PlayerAction
	JumpBoost int32
}

var (
	acceptTeleportationSchema = define(Play, Serverbound, "accept_teleportation", codec.Struct(
		codec.Field("teleport_id", codec.VarInt, func(p *AcceptTeleportation) *int32 { return &p.TeleportID }),
	))
	chatSchema = define(Play, Serverbound, "chat", codec.Struct(
		codec.Field("message", codec.String(256), func(p *Chat) *string { return &p.Message }),
		codec.Field("timestamp", codec.Int64, func(p *Chat) *int64 { return &p.Timestamp }),
		codec.Field("salt", codec.Int64, func(p *Chat) *int64 { return &p.Salt }),
		codec.Field("signature", codec.Optional(codec.Fixed(256)), func(p *Chat) **[]byte { return &p.Signature }),
		codec.Field("message_count", codec.VarInt, func(p *Chat) *int32 { return &p.MessageCount }),
		codec.Field("acknowledged", codec.Fixed(3), func(p *Chat) *[]byte { return &p.Acknowledged }),
	))
	playClientInformationSchema = define(Play, Serverbound, "client_information", clientInformationCodec)
	playKeepAliveInSchema       = define(Play, Serverbound, "keep_alive", keepAliveCodec)
	movePlayerPosSchema         = define(Play, Serverbound, "move_player_pos", codec.Struct(
		f64("x", func(p *MovePlayerPos) *float64 { return &p.X }),
		f64("feet_y", func(p *MovePlayerPos) *float64 { return &p.Y }),
		f64("z", func(p *MovePlayerPos) *float64 { return &p.Z }),
		onGround(func(p *MovePlayerPos) *bool { return &p.OnGround }),
	))
	movePlayerPosRotSchema = define(Play, Serverbound, "move_player_pos_rot", codec.Struct(
		f64("x", func(p *MovePlayerPosRot) *float64 { return &p.X }),
		f64("feet_y", func(p *MovePlayerPosRot) *float64 { return &p.Y }),
		f64("z", func(p *MovePlayerPosRot) *float64 { return &p.Z }),
		codec.Field("yaw", codec.Float32, func(p *MovePlayerPosRot) *float32 { return &p.Yaw }),
		codec.Field("pitch", codec.Float32, func(p *MovePlayerPosRot) *float32 { return &p.Pitch }),
		onGround(func(p *MovePlayerPosRot) *bool { return &p.OnGround }),
	))
	movePlayerRotSchema = define(Play, Serverbound, "move_player_rot", codec.Struct(
		codec.Field("yaw", codec.Float32, func(p *MovePlayerRot) *float32 { return &p.Yaw }),
		codec.Field("pitch", codec.Float32, func(p *MovePlayerRot) *float32 { return &p.Pitch }),
		onGround(func(p *MovePlayerRot) *bool { return &p.OnGround }),
	))
	movePlayerStatusOnlySchema = define(Play, Serverbound, "move_player_status_only", codec.Struct(
		onGround(func(p *MovePlayerStatusOnly) *bool { return &p.OnGround }),
	))
	chunkBatchReceivedSchema = define(Play, Serverbound, "chunk_batch_received", codec.Struct(
		codec.Field("chunks_per_tick", codec.Float32, func(p *ChunkBatchReceived) *float32 { return &p.ChunksPerTick }),
	))
	swingSchema = define(Play, Serverbound, "swing", codec.Struct(
		codec.Field("hand", codec.Enum(codec.VarInt, MainHandUse, OffHandUse), func(p *Swing) *InteractionHand { return &p.Hand }),
	))
	setCarriedItemSchema = define(Play, Serverbound, "set_carried_item", codec.Struct(
		codec.Field("slot", codec.Int16, func(p *SetCarriedItem) *int16 { return &p.Slot }),
	))
	playerCommandSchema = define(Play, Serverbound, "player_command", codec.Struct(
		entityID(func(p *PlayerCommand) *int32 { return &p.EntityID }),
		codec.Field("action", codec.Enum(codec.VarInt, intLabels[PlayerAction](int(StartFallFlying)+1)...),
			func(p *PlayerCommand) *PlayerAction { return &p.Action }),
		codec.Field("jump_boost", codec.VarInt, func(p *PlayerCommand) *int32 { return &p.JumpBoost }),
	))
	playPingRequestSchema = define(Play, Serverbound, "ping_request", codec.Struct(
		codec.Field("payload", codec.Int64, func(p *PingRequest) *int64 { return &p.Payload }),
	))
)
