package protocol

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"

	"github.com/annel0/voxelgate/internal/codec"
	"github.com/annel0/voxelgate/internal/nbt"
)

// Общие кодеки протокола.
var (
	Identifier = codec.String(32767)
	longString = codec.String(32767)
	jsonString = codec.String(262144)
)

// BlockPos: координаты блока, упакованные в одно 64-битное число.
type BlockPos struct {
	X, Y, Z int32
}

// PackBlockPos упаковывает позицию: x (26 бит), z (26 бит), y (12 бит).
func PackBlockPos(p BlockPos) int64 {
	return (int64(p.X)&0x3FFFFFF)<<38 | (int64(p.Z)&0x3FFFFFF)<<12 | int64(p.Y)&0xFFF
}

// UnpackBlockPos восстанавливает позицию со знаком.
func UnpackBlockPos(v int64) BlockPos {
	return BlockPos{
		X: int32(v >> 38),
		Y: int32(v << 52 >> 52),
		Z: int32(v << 26 >> 38),
	}
}

// Position: кодек BlockPos.
var Position = codec.Map(codec.Int64, PackBlockPos, UnpackBlockPos)

// Angle: угол в 1/256 оборота.
type Angle uint8

// AngleOf переводит градусы в шаг угла с округлением вниз.
func AngleOf(deg float32) Angle {
	return Angle(int64(math.Floor(float64(deg)*256/360)) & 0xff)
}

// Degrees возвращает угол в градусах.
func (a Angle) Degrees() float32 { return float32(a) * 360 / 256 }

// AngleCodec: угол как один байт.
var AngleCodec = codec.Map(codec.Uint8, func(a Angle) uint8 { return uint8(a) }, func(b uint8) Angle { return Angle(b) })

// Property: подписанное свойство профиля игрока (например, textures).
type Property struct {
	Name      string  `json:"name" msgpack:"name"`
	Value     string  `json:"value" msgpack:"value"`
	Signature *string `json:"signature,omitempty" msgpack:"signature,omitempty"`
}

var propertyCodec = codec.Struct(
	codec.Field("name", codec.String(64), func(p *Property) *string { return &p.Name }),
	codec.Field("value", longString, func(p *Property) *string { return &p.Value }),
	codec.Field("signature", codec.Optional(codec.String(1024)), func(p *Property) **string { return &p.Signature }),
)

// Text: текстовый компонент чата.
type Text struct {
	Text   string `json:"text"`
	Color  string `json:"color,omitempty"`
	Bold   bool   `json:"bold,omitempty"`
	Italic bool   `json:"italic,omitempty"`
	Extra  []Text `json:"extra,omitempty"`
}

// Plain создаёт компонент из простой строки.
func Plain(s string) Text { return Text{Text: s} }

// String склеивает текст компонента и всех вложенных.
func (t Text) String() string {
	s := t.Text
	for _, e := range t.Extra {
		s += e.String()
	}
	return s
}

// JSON кодирует компонент для пакетов, где он передаётся строкой JSON.
func (t Text) JSON() string {
	b, _ := json.Marshal(t)
	return string(b)
}

func (t Text) styled() bool {
	return t.Color != "" || t.Bold || t.Italic || len(t.Extra) > 0
}

func (t Text) compound() nbt.Compound {
	c := nbt.Compound{{Name: "text", Value: t.Text}}
	if t.Color != "" {
		c = append(c, nbt.Entry{Name: "color", Value: t.Color})
	}
	if t.Bold {
		c = append(c, nbt.Entry{Name: "bold", Value: int8(1)})
	}
	if t.Italic {
		c = append(c, nbt.Entry{Name: "italic", Value: int8(1)})
	}
	if len(t.Extra) > 0 {
		items := make([]any, len(t.Extra))
		for i, e := range t.Extra {
			items[i] = e.compound()
		}
		c = append(c, nbt.Entry{Name: "extra", Value: nbt.List{Type: nbt.TagCompound, Items: items}})
	}
	return c
}

func textToTag(t Text) (any, error) {
	if !t.styled() {
		return t.Text, nil
	}
	return t.compound(), nil
}

func textFromTag(v any) (Text, error) {
	switch x := v.(type) {
	case string:
		return Text{Text: x}, nil
	case nbt.Compound:
		var t Text
		for _, e := range x {
			switch e.Name {
			case "text":
				s, ok := e.Value.(string)
				if !ok {
					return Text{}, badText("text")
				}
				t.Text = s
			case "color":
				s, ok := e.Value.(string)
				if !ok {
					return Text{}, badText("color")
				}
				t.Color = s
			case "bold":
				t.Bold = e.Value == int8(1)
			case "italic":
				t.Italic = e.Value == int8(1)
			case "extra":
				l, ok := e.Value.(nbt.List)
				if !ok {
					return Text{}, badText("extra")
				}
				for _, it := range l.Items {
					sub, err := textFromTag(it)
					if err != nil {
						return Text{}, err
					}
					t.Extra = append(t.Extra, sub)
				}
			}
		}
		return t, nil
	}
	return Text{}, errors.Wrapf(codec.ErrUnknownCase, "text component tag %T", v)
}

func badText(field string) error {
	return errors.Wrapf(codec.ErrUnknownCase, "text component field %q has wrong tag", field)
}

// TextCodec: текстовый компонент в сетевой форме NBT.
var TextCodec = codec.TryMap(nbt.Tag, textToTag, textFromTag)

// JSONText: текстовый компонент строкой JSON (статус и отказ при входе).
var JSONText = codec.TryMap(jsonString,
	func(t Text) (string, error) { return t.JSON(), nil },
	func(s string) (Text, error) {
		var t Text
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			var plain string
			if json.Unmarshal([]byte(s), &plain) == nil {
				return Text{Text: plain}, nil
			}
			return Text{}, errors.Wrap(codec.ErrUnknownCase, err.Error())
		}
		return t, nil
	})

// Slot: стопка предметов. Пустая стопка имеет Count == 0.
type Slot struct {
	Count int32 `msgpack:"count"`
	Item  int32 `msgpack:"item"`
}

// Empty сообщает, пуста ли стопка.
func (s Slot) Empty() bool { return s.Count <= 0 }

type slotCodec struct{}

func (slotCodec) Append(dst []byte, v Slot) ([]byte, error) {
	if v.Empty() {
		return append(dst, 0), nil
	}
	dst = codec.AppendVarInt(dst, v.Count)
	dst = codec.AppendVarInt(dst, v.Item)
	// компоненты предмета не поддерживаются: ноль добавленных и ноль удалённых
	return append(dst, 0, 0), nil
}

func (slotCodec) Decode(src []byte) (Slot, int, error) {
	count, n, err := codec.VarInt.Decode(src)
	if err != nil || count <= 0 {
		return Slot{}, n, err
	}
	rest, m, err := slotBody.Decode(src[n:])
	if err != nil {
		return Slot{}, 0, codec.Nest(err, "item", n)
	}
	return Slot{Count: count, Item: rest}, n + m, nil
}

type slotItem struct{ Item int32 }

var slotBody = codec.Map(codec.Struct(
	codec.Field("id", codec.VarInt, func(s *slotItem) *int32 { return &s.Item }),
	codec.Anon[slotItem](codec.Const(codec.VarInt, 0)),
	codec.Anon[slotItem](codec.Const(codec.VarInt, 0)),
), func(v int32) slotItem { return slotItem{Item: v} }, func(s slotItem) int32 { return s.Item })

// SlotCodec: стопка предметов в формате 1.21 без компонентов.
var SlotCodec codec.Codec[Slot] = slotCodec{}
