package counters

// Direction is the direction of a relayed DHCP message.
type Direction string

const (
	RX Direction = "RX"
	TX Direction = "TX"
)

// Directions lists both counter directions in persistence order.
var Directions = []Direction{RX, TX}

func (d Direction) valid() bool {
	return d == RX || d == TX
}

// MessageType is a DHCPv4 message type as counted by the relay. Values 1
// through 8 match the DHCP message type option.
type MessageType int

const (
	Unknown MessageType = iota
	Discover
	Offer
	Request
	Decline
	Ack
	Nak
	Release
	Inform
	Malformed
	Dropped
)

var messageTypeNames = map[MessageType]string{
	Unknown:   "Unknown",
	Discover:  "Discover",
	Offer:     "Offer",
	Request:   "Request",
	Decline:   "Decline",
	Ack:       "Acknowledge",
	Nak:       "NegativeAcknowledge",
	Release:   "Release",
	Inform:    "Inform",
	Malformed: "Malformed",
	Dropped:   "Dropped",
}

// MessageTypes lists every counted message type.
var MessageTypes = []MessageType{
	Unknown, Discover, Offer, Request, Decline, Ack, Nak, Release, Inform, Malformed, Dropped,
}

// String returns the name the counter is persisted under. Unrecognized types
// are counted as Unknown.
func (t MessageType) String() string {
	if n, ok := messageTypeNames[t]; ok {
		return n
	}
	return messageTypeNames[Unknown]
}

// Counters holds the RX and TX counts of one interface, keyed by message type name.
type Counters struct {
	RX map[string]uint64
	TX map[string]uint64
}

func newCounters() Counters {
	c := Counters{
		RX: make(map[string]uint64, len(MessageTypes)),
		TX: make(map[string]uint64, len(MessageTypes)),
	}
	for _, t := range MessageTypes {
		c.RX[t.String()] = 0
		c.TX[t.String()] = 0
	}
	return c
}

// Direction returns the counts for d.
func (c Counters) Direction(d Direction) map[string]uint64 {
	switch d {
	case RX:
		return c.RX
	case TX:
		return c.TX
	}
	return nil
}

func (c Counters) clone() Counters {
	n := Counters{
		RX: make(map[string]uint64, len(c.RX)),
		TX: make(map[string]uint64, len(c.TX)),
	}
	for k, v := range c.RX {
		n.RX[k] = v
	}
	for k, v := range c.TX {
		n.TX[k] = v
	}
	return n
}

// ParseMessageType returns the message type persisted under name, or Unknown.
func ParseMessageType(name string) MessageType {
	for t, n := range messageTypeNames {
		if n == name {
			return t
		}
	}
	return Unknown
}

// MessageTypeFromCode maps a DHCP message type option value to the counted
// message type.
func MessageTypeFromCode(code uint8) MessageType {
	if code >= uint8(Discover) && code <= uint8(Inform) {
		return MessageType(code)
	}
	return Unknown
}
