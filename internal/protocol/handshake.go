package protocol

import (
	"github.com/google/uuid"

	"github.com/annel0/voxelgate/internal/codec"
)

// ---------------------------------------------------------------------------
// Handshake
// ---------------------------------------------------------------------------

// Intention: единственный пакет рукопожатия.
type Intention struct {
	ProtocolVersion int32
	Host            string
	Port            uint16
	Intent          Intent
}

// На проводе намерение сдвинуто на единицу: 1, status, 2, login, 3, transfer.
var intentCodec = codec.Enum(codec.Offset(codec.VarInt, 1), IntentStatus, IntentLogin, IntentTransfer)

var intentionSchema = define(Handshake, Serverbound, "intention", codec.Struct(
	codec.Field("protocol_version", codec.VarInt, func(p *Intention) *int32 { return &p.ProtocolVersion }),
	codec.Field("host", codec.String(255), func(p *Intention) *string { return &p.Host }),
	codec.Field("port", codec.Uint16, func(p *Intention) *uint16 { return &p.Port }),
	codec.Field("intent", intentCodec, func(p *Intention) *Intent { return &p.Intent }),
))

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// StatusRequest: запрос статуса сервера.
type StatusRequest struct{}

// PingRequest: метка времени клиента, сервер возвращает её без изменений.
type PingRequest struct{ Payload int64 }

// StatusResponse: документ статуса в JSON.
type StatusResponse struct{ JSON string }

// PongResponse: ответ на PingRequest.
type PongResponse struct{ Payload int64 }

var (
	statusRequestSchema  = define(Status, Serverbound, "status_request", codec.Empty[StatusRequest]())
	pingRequestSchema    = define(Status, Serverbound, "ping_request", codec.Struct(
		codec.Field("payload", codec.Int64, func(p *PingRequest) *int64 { return &p.Payload }),
	))
	statusResponseSchema = define(Status, Clientbound, "status_response", codec.Struct(
		codec.Field("json", codec.String(32767), func(p *StatusResponse) *string { return &p.JSON }),
	))
	pongResponseSchema = define(Status, Clientbound, "pong_response", codec.Struct(
		codec.Field("payload", codec.Int64, func(p *PongResponse) *int64 { return &p.Payload }),
	))
)

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

// Hello начинает вход. Содержит имя и UUID, заявленные клиентом.
type Hello struct {
	Name string
	UUID uuid.UUID
}

// LoginAcknowledged подтверждает LoginFinished и переводит соединение в Configuration.
type LoginAcknowledged struct{}

// CustomQueryAnswer: ответ клиента на запрос плагина при входе.
type CustomQueryAnswer struct {
	MessageID int32
	Data      *[]byte
}

// LoginDisconnect: отказ во входе, причина строкой JSON.
type LoginDisconnect struct{ Reason Text }

// LoginCompression включает сжатие начиная с порога в байтах.
type LoginCompression struct{ Threshold int32 }

// LoginFinished: подтверждённый профиль игрока.
type LoginFinished struct {
	UUID                uuid.UUID
	Name                string
	Properties          []Property
	StrictErrorHandling bool
}

var (
	helloSchema = define(Login, Serverbound, "hello", codec.Struct(
		codec.Field("name", codec.String(16), func(p *Hello) *string { return &p.Name }),
		codec.Field("uuid", codec.UUID, func(p *Hello) *uuid.UUID { return &p.UUID }),
	))
	loginAcknowledgedSchema = define(Login, Serverbound, "login_acknowledged", codec.Empty[LoginAcknowledged]())
	customQueryAnswerSchema = define(Login, Serverbound, "custom_query_answer", codec.Struct(
		codec.Field("message_id", codec.VarInt, func(p *CustomQueryAnswer) *int32 { return &p.MessageID }),
		codec.Field("data", codec.Optional(codec.Rest), func(p *CustomQueryAnswer) **[]byte { return &p.Data }),
	))

	loginDisconnectSchema = define(Login, Clientbound, "login_disconnect", codec.Struct(
		codec.Field("reason", JSONText, func(p *LoginDisconnect) *Text { return &p.Reason }),
	))
	loginCompressionSchema = define(Login, Clientbound, "login_compression", codec.Struct(
		codec.Field("threshold", codec.VarInt, func(p *LoginCompression) *int32 { return &p.Threshold }),
	))
	loginFinishedSchema = define(Login, Clientbound, "login_finished", codec.Struct(
		codec.Field("uuid", codec.UUID, func(p *LoginFinished) *uuid.UUID { return &p.UUID }),
		codec.Field("name", codec.String(16), func(p *LoginFinished) *string { return &p.Name }),
		codec.Field("properties", codec.List(propertyCodec), func(p *LoginFinished) *[]Property { return &p.Properties }),
		codec.Field("strict_error_handling", codec.Bool, func(p *LoginFinished) *bool { return &p.StrictErrorHandling }),
	))
)
