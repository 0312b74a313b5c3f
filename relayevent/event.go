package relayevent

import (
	"fmt"
	"net"
	"net/netip"
)

// EventType identifies the payload carried by an Event.
type EventType int

const (
	ConfigUpdate EventType = iota + 1
	InterfaceUpdate
	MetadataUpdate
)

func (t EventType) String() string {
	switch t {
	case ConfigUpdate:
		return "CONFIG_UPDATE"
	case InterfaceUpdate:
		return "INTERFACE_UPDATE"
	case MetadataUpdate:
		return "METADATA_UPDATE"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Payload is implemented by the three event payload shapes.
type Payload interface {
	EventType() EventType
}

// RelayConfig is the relay policy of a single VLAN.
type RelayConfig struct {
	VLAN             string
	Servers          []string
	VRF              string
	SourceInterface  string
	LinkSelection    string
	ServerIDOverride string
	VRFSelection     string
	AgentRelayMode   string
	IsAdd            bool
}

func (*RelayConfig) EventType() EventType { return ConfigUpdate }

// Clone returns a deep copy of c.
func (c *RelayConfig) Clone() *RelayConfig {
	n := *c
	if c.Servers != nil {
		n.Servers = append([]string(nil), c.Servers...)
	}
	return &n
}

// InterfaceAddress carries the selector address of a VLAN's source interface.
type InterfaceAddress struct {
	VLAN      string
	Interface string
	Address   netip.Addr
	IsAdd     bool
}

func (*InterfaceAddress) EventType() EventType { return InterfaceUpdate }

// DeviceMetadata is the switch identity used in relay agent options.
type DeviceMetadata struct {
	Hostname string
	MAC      net.HardwareAddr
}

func (*DeviceMetadata) EventType() EventType { return MetadataUpdate }

// Event is a single change handed to the forwarding engine. Once sent, the
// payload belongs to the receiver.
type Event struct {
	Type    EventType
	Payload Payload
}

// New wraps p in an Event of the matching type.
func New(p Payload) Event {
	return Event{Type: p.EventType(), Payload: p}
}
