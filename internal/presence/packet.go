package presence

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Engine.IO packet types.
type PacketType byte

const (
	PacketOpen    PacketType = '0'
	PacketClose   PacketType = '1'
	PacketPing    PacketType = '2'
	PacketPong    PacketType = '3'
	PacketMessage PacketType = '4'
	PacketUpgrade PacketType = '5'
	PacketNoop    PacketType = '6'
)

// payloadSeparator joins packets in a single polling request or response.
const payloadSeparator = "\x1e"

type Packet struct {
	Type PacketType
	Data string
}

func (p Packet) Encode() string {
	return string(p.Type) + p.Data
}

func DecodePacket(s string) (Packet, error) {
	if s == "" {
		return Packet{}, ErrEmptyPacket
	}
	t := PacketType(s[0])
	if t < PacketOpen || t > PacketNoop {
		return Packet{}, fmt.Errorf("%w: %q", ErrUnknownPacket, s[0])
	}
	return Packet{Type: t, Data: s[1:]}, nil
}

func EncodePayload(packets ...Packet) string {
	parts := make([]string, len(packets))
	for i, p := range packets {
		parts[i] = p.Encode()
	}
	return strings.Join(parts, payloadSeparator)
}

func DecodePayload(s string) ([]Packet, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, payloadSeparator)
	packets := make([]Packet, 0, len(parts))
	for _, part := range parts {
		p, err := DecodePacket(part)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
	}
	return packets, nil
}

// handshake is the body of the open packet.
type handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

func decodeHandshake(p Packet) (handshake, error) {
	var hs handshake
	if p.Type != PacketOpen {
		return hs, fmt.Errorf("%w: want open, got %q", ErrUnexpectedPacket, byte(p.Type))
	}
	if err := json.Unmarshal([]byte(p.Data), &hs); err != nil {
		return hs, fmt.Errorf("invalid open packet: %w", err)
	}
	return hs, nil
}

// Socket.IO message types, carried inside Engine.IO message packets.
type MessageType byte

const (
	MessageConnect      MessageType = '0'
	MessageDisconnect   MessageType = '1'
	MessageEvent        MessageType = '2'
	MessageAck          MessageType = '3'
	MessageConnectError MessageType = '4'
)

type Message struct {
	Type      MessageType
	Namespace string
	Data      json.RawMessage
}

func (m Message) Encode() string {
	var b strings.Builder
	b.WriteByte(byte(m.Type))
	if m.Namespace != "" && m.Namespace != "/" {
		b.WriteString(m.Namespace)
		b.WriteByte(',')
	}
	b.Write(m.Data)
	return b.String()
}

// Packet wraps the message in an Engine.IO message packet.
func (m Message) Packet() Packet {
	return Packet{Type: PacketMessage, Data: m.Encode()}
}

func DecodeMessage(s string) (Message, error) {
	if s == "" {
		return Message{}, ErrEmptyPacket
	}
	m := Message{Type: MessageType(s[0]), Namespace: "/"}
	if m.Type < MessageConnect || m.Type > MessageConnectError {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownPacket, s[0])
	}
	rest := s[1:]
	if strings.HasPrefix(rest, "/") {
		ns, tail, found := strings.Cut(rest, ",")
		m.Namespace = ns
		if found {
			rest = tail
		} else {
			rest = ""
		}
	}
	// skip the ack id, if any
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	rest = rest[i:]
	if rest != "" {
		m.Data = json.RawMessage(rest)
	}
	return m, nil
}

// Event splits an event message into its name and arguments.
func (m Message) Event() (string, []json.RawMessage, error) {
	if m.Type != MessageEvent {
		return "", nil, fmt.Errorf("%w: not an event", ErrUnexpectedPacket)
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(m.Data, &parts); err != nil {
		return "", nil, fmt.Errorf("invalid event payload: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("%w: event without name", ErrUnexpectedPacket)
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("invalid event name: %w", err)
	}
	return name, parts[1:], nil
}

// NewEvent builds an event message for the default namespace.
func NewEvent(name string, args ...any) (Message, error) {
	data, err := json.Marshal(append([]any{name}, args...))
	if err != nil {
		return Message{}, err
	}
	return Message{Type: MessageEvent, Namespace: "/", Data: data}, nil
}

func connectErrorMessage(m Message) string {
	var body struct {
		Message string `json:"message"`
	}
	if len(m.Data) > 0 && json.Unmarshal(m.Data, &body) == nil && body.Message != "" {
		return body.Message
	}
	return string(m.Data)
}
