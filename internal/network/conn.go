package network

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/annel0/voxelgate/internal/codec"
	"github.com/annel0/voxelgate/internal/logging"
	"github.com/annel0/voxelgate/internal/protocol"
)

// ErrProtocolState: пакет или переход, недопустимый в текущем состоянии.
var ErrProtocolState = errors.New("protocol state violation")

// Допустимые переходы. Play конечное, состояния не повторяются.
var transitions = map[protocol.State][]protocol.State{
	protocol.Handshake:     {protocol.Status, protocol.Login},
	protocol.Login:         {protocol.Configuration},
	protocol.Configuration: {protocol.Play},
}

// Conn соединение с клиентом. Отвечает за кадрирование, сжатие и текущее состояние.
// Читает одна горутина; писать можно из любой.
type Conn struct {
	raw     net.Conn
	remote  string
	state   atomic.Uint32
	version int32

	reader *FrameReader

	writeMu sync.Mutex
	writer  *FrameWriter

	metrics *Metrics
	logger  *logging.Logger
}

func newConn(raw net.Conn, m *Metrics) *Conn {
	return &Conn{
		raw:     raw,
		remote:  raw.RemoteAddr().String(),
		reader:  NewFrameReader(raw),
		writer:  NewFrameWriter(raw),
		metrics: m,
		logger:  logging.GetNetworkLogger(),
	}
}

// Remote: адрес клиента.
func (c *Conn) Remote() string { return c.remote }

// State: текущее состояние протокола.
func (c *Conn) State() protocol.State { return protocol.State(c.state.Load()) }

// Version: номер протокола из рукопожатия.
func (c *Conn) Version() int32 { return c.version }

// Transition переводит соединение в состояние to.
func (c *Conn) Transition(to protocol.State) error {
	from := c.State()
	for _, s := range transitions[from] {
		if s == to {
			c.state.Store(uint32(to))
			c.metrics.Transitions.WithLabelValues(from.String(), to.String()).Inc()
			c.logger.Debug("%s: %s → %s", c.remote, from, to)
			return nil
		}
	}
	return errors.Wrapf(ErrProtocolState, "transition %s → %s", from, to)
}

// SetCompression включает сжатие в обе стороны.
func (c *Conn) SetCompression(threshold int) {
	c.reader.SetThreshold(threshold)
	c.writeMu.Lock()
	c.writer.SetThreshold(threshold)
	c.writeMu.Unlock()
}

// SetReadDeadline ограничивает ожидание следующего кадра.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.raw.SetReadDeadline(t) }

// ReadPacket читает и разбирает следующий пакет клиента. Вместе с пакетом
// возвращается его имя; для нераспознанных пакетов имя пустое.
func (c *Conn) ReadPacket() (protocol.Packet, string, error) {
	st := c.State()
	payload, err := c.reader.ReadFrame()
	if err != nil {
		if errors.Is(err, codec.ErrMalformed) {
			c.metrics.DecodeErrors.WithLabelValues(st.String()).Inc()
			logging.LogProtocolError(c.logger, c.remote, st.String(), -1, codec.OffsetOf(err), err, nil)
		}
		return nil, "", err
	}

	id, _, _ := codec.VarInt.Decode(payload)
	name, _ := protocol.Default().NameOf(st, protocol.Serverbound, id)
	c.metrics.packet("in", st.String(), name, len(payload))

	p, err := protocol.Decode(st, protocol.Serverbound, payload)
	if err != nil {
		if errors.Is(err, codec.ErrMalformed) {
			c.metrics.DecodeErrors.WithLabelValues(st.String()).Inc()
			logging.LogProtocolError(c.logger, c.remote, st.String(), id, codec.OffsetOf(err), err, payload)
		}
		return nil, name, err
	}
	return p, name, nil
}

// WritePacket кодирует пакет в текущем состоянии и отправляет его.
func (c *Conn) WritePacket(p protocol.Packet) error {
	st := c.State()
	payload, err := protocol.Marshal(st, protocol.Clientbound, p)
	if err != nil {
		return errors.Wrapf(err, "encode %T", p)
	}
	if err := c.write(payload); err != nil {
		return err
	}
	c.metrics.packet("out", st.String(), protocol.NameOf(st, protocol.Clientbound, p), len(payload))
	return nil
}

// WriteRaw отправляет уже закодированные id||поля.
func (c *Conn) WriteRaw(payload []byte) error {
	if err := c.write(payload); err != nil {
		return err
	}
	c.metrics.packet("out", c.State().String(), "raw", len(payload))
	return nil
}

func (c *Conn) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writer.WriteFrame(payload)
}

// Close закрывает сокет; блокированное чтение возвращает ошибку.
func (c *Conn) Close() error { return c.raw.Close() }
