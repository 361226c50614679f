package protocol

import (
	"github.com/annel0/voxelgate/internal/codec"
	"github.com/annel0/voxelgate/internal/nbt"
)

// ClientInformation: настройки клиента. Отправляется в Configuration и в Play.
type ClientInformation struct {
	Locale              string
	ViewDistance        int8
	ChatMode            ChatMode
	ChatColors          bool
	DisplayedSkinParts  uint8
	MainHand            Hand
	TextFiltering       bool
	AllowServerListings bool
}

// ChatMode: режим отображения чата у клиента.
type ChatMode int32

const (
	ChatEnabled ChatMode = iota
	ChatCommandsOnly
	ChatHidden
)

// Hand в настройках означает ведущую руку, в swing руку удара.
type Hand int32

const (
	LeftHand Hand = iota
	RightHand
)

var clientInformationCodec = codec.Struct(
	codec.Field("locale", codec.String(16), func(p *ClientInformation) *string { return &p.Locale }),
	codec.Field("view_distance", codec.Int8, func(p *ClientInformation) *int8 { return &p.ViewDistance }),
	codec.Field("chat_mode", codec.Enum(codec.VarInt, ChatEnabled, ChatCommandsOnly, ChatHidden), func(p *ClientInformation) *ChatMode { return &p.ChatMode }),
	codec.Field("chat_colors", codec.Bool, func(p *ClientInformation) *bool { return &p.ChatColors }),
	codec.Field("displayed_skin_parts", codec.Uint8, func(p *ClientInformation) *uint8 { return &p.DisplayedSkinParts }),
	codec.Field("main_hand", codec.Enum(codec.VarInt, LeftHand, RightHand), func(p *ClientInformation) *Hand { return &p.MainHand }),
	codec.Field("text_filtering", codec.Bool, func(p *ClientInformation) *bool { return &p.TextFiltering }),
	codec.Field("allow_server_listings", codec.Bool, func(p *ClientInformation) *bool { return &p.AllowServerListings }),
)

// CustomPayload: сообщение плагинного канала, данные не интерпретируются.
type CustomPayload struct {
	Channel string
	Data    []byte
}

var customPayloadCodec = codec.Struct(
	codec.Field("channel", Identifier, func(p *CustomPayload) *string { return &p.Channel }),
	codec.Field("data", codec.Rest, func(p *CustomPayload) *[]byte { return &p.Data }),
)

// KeepAlive: проверка соединения; клиент возвращает тот же идентификатор.
type KeepAlive struct{ ID int64 }

var keepAliveCodec = codec.Struct(
	codec.Field("id", codec.Int64, func(p *KeepAlive) *int64 { return &p.ID }),
)

// FinishConfiguration завершает Configuration; отправляется обеими сторонами.
type FinishConfiguration struct{}

// ConfigPong: ответ на ping в Configuration.
type ConfigPong struct{ ID int32 }

// KnownPack: пакет данных, который сервер предлагает, а клиент подтверждает.
type KnownPack struct {
	Namespace string
	ID        string
	Version   string
}

// SelectKnownPacks: список известных пакетов данных; используется в обе стороны.
type SelectKnownPacks struct{ Packs []KnownPack }

var selectKnownPacksCodec = codec.Struct(
	codec.Field("packs", codec.List(codec.Struct(
		codec.Field("namespace", longString, func(k *KnownPack) *string { return &k.Namespace }),
		codec.Field("id", longString, func(k *KnownPack) *string { return &k.ID }),
		codec.Field("version", longString, func(k *KnownPack) *string { return &k.Version }),
	)), func(p *SelectKnownPacks) *[]KnownPack { return &p.Packs }),
)

// Disconnect: разрыв с причиной; текстовый компонент в NBT.
type Disconnect struct{ Reason Text }

var disconnectCodec = codec.Struct(
	codec.Field("reason", TextCodec, func(p *Disconnect) *Text { return &p.Reason }),
)

// RegistryEntry: элемент синхронизируемого реестра. Data пуст, если клиент знает пакет данных.
type RegistryEntry struct {
	ID   string
	Data *nbt.Compound
}

// RegistryData: содержимое одного реестра.
type RegistryData struct {
	Registry string
	Entries  []RegistryEntry
}

// UpdateEnabledFeatures: включённые наборы возможностей.
type UpdateEnabledFeatures struct{ Features []string }

// LinkLabel подпись ссылки, встроенная метка или произвольный текст.
type LinkLabel interface{ isLinkLabel() }

// BuiltinLink: встроенная подпись ссылки, переводится клиентом.
type BuiltinLink int32

const (
	LinkBugReport BuiltinLink = iota
	LinkCommunityGuidelines
	LinkSupport
	LinkStatus
	LinkFeedback
	LinkCommunity
	LinkWebsite
	LinkForums
	LinkNews
	LinkAnnouncements
)

// CustomLink: подпись ссылки текстовым компонентом.
type CustomLink struct{ Text Text }

func (BuiltinLink) isLinkLabel() {}
func (CustomLink) isLinkLabel()  {}

// ServerLink: ссылка в меню паузы клиента.
type ServerLink struct {
	Label LinkLabel
	URL   string
}

// ServerLinks: набор ссылок сервера.
type ServerLinks struct{ Links []ServerLink }

var linkLabelCodec = codec.Switch(codec.Bool,
	func(l LinkLabel) bool {
		_, builtin := l.(BuiltinLink)
		return builtin
	},
	map[bool]codec.Codec[LinkLabel]{
		true: codec.As[LinkLabel](codec.Enum(codec.VarInt, intLabels[BuiltinLink](int(LinkAnnouncements)+1)...)),
		false: codec.As[LinkLabel](codec.Struct(
			codec.Field("text", TextCodec, func(c *CustomLink) *Text { return &c.Text }),
		)),
	})

var (
	configClientInformationSchema = define(Configuration, Serverbound, "client_information", clientInformationCodec)
	configCustomPayloadInSchema   = define(Configuration, Serverbound, "custom_payload", customPayloadCodec)
	configFinishInSchema          = define(Configuration, Serverbound, "finish_configuration", codec.Empty[FinishConfiguration]())
	configKeepAliveInSchema       = define(Configuration, Serverbound, "keep_alive", keepAliveCodec)
	configPongSchema              = define(Configuration, Serverbound, "pong", codec.Struct(
		codec.Field("id", codec.Int32, func(p *ConfigPong) *int32 { return &p.ID }),
	))
	configSelectKnownPacksInSchema = define(Configuration, Serverbound, "select_known_packs", selectKnownPacksCodec)

	configCustomPayloadOutSchema = define(Configuration, Clientbound, "custom_payload", customPayloadCodec)
	configDisconnectSchema       = define(Configuration, Clientbound, "disconnect", disconnectCodec)
	configFinishOutSchema        = define(Configuration, Clientbound, "finish_configuration", codec.Empty[FinishConfiguration]())
	configKeepAliveOutSchema     = define(Configuration, Clientbound, "keep_alive", keepAliveCodec)
	registryDataSchema           = define(Configuration, Clientbound, "registry_data", codec.Struct(
		codec.Field("registry", Identifier, func(p *RegistryData) *string { return &p.Registry }),
		codec.Field("entries", codec.List(codec.Struct(
			codec.Field("id", Identifier, func(e *RegistryEntry) *string { return &e.ID }),
			codec.Field("data", codec.Optional(nbt.Root), func(e *RegistryEntry) **nbt.Compound { return &e.Data }),
		)), func(p *RegistryData) *[]RegistryEntry { return &p.Entries }),
	))
	updateEnabledFeaturesSchema = define(Configuration, Clientbound, "update_enabled_features", codec.Struct(
		codec.Field("features", codec.List(Identifier), func(p *UpdateEnabledFeatures) *[]string { return &p.Features }),
	))
	configSelectKnownPacksOutSchema = define(Configuration, Clientbound, "select_known_packs", selectKnownPacksCodec)
	serverLinksSchema               = define(Configuration, Clientbound, "server_links", codec.Struct(
		codec.Field("links", codec.List(codec.Struct(
			codec.Field("label", linkLabelCodec, func(l *ServerLink) *LinkLabel { return &l.Label }),
			codec.Field("url", longString, func(l *ServerLink) *string { return &l.URL }),
		)), func(p *ServerLinks) *[]ServerLink { return &p.Links }),
	))
)
