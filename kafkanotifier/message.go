package kafkanotifier

import (
	"fmt"

	"github.com/cisco-open/dhcp4relay/counters"
	"github.com/cisco-open/dhcp4relay/relayevent"
)

const (
	actionAdd    = "add"
	actionDel    = "del"
	actionUpdate = "update"

	metadataKey = "localhost"
)

// EventMessage is the wire form of a relay event.
type EventMessage struct {
	Type      string            `json:"type"`
	Key       string            `json:"_key"`
	Action    string            `json:"action"`
	Relay     *RelayMessage     `json:"relay,omitempty"`
	Interface *InterfaceMessage `json:"interface,omitempty"`
	Metadata  *MetadataMessage  `json:"metadata,omitempty"`
}

type RelayMessage struct {
	Servers          []string `json:"servers"`
	VRF              string   `json:"server_vrf"`
	SourceInterface  string   `json:"source_interface,omitempty"`
	LinkSelection    string   `json:"link_selection,omitempty"`
	ServerIDOverride string   `json:"server_id_override,omitempty"`
	VRFSelection     string   `json:"vrf_selection,omitempty"`
	AgentRelayMode   string   `json:"agent_relay_mode,omitempty"`
}

type InterfaceMessage struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

type MetadataMessage struct {
	Hostname string `json:"hostname"`
	MAC      string `json:"mac"`
}

func action(isAdd bool) string {
	if isAdd {
		return actionAdd
	}
	return actionDel
}

func newEventMessage(ev relayevent.Event) (*EventMessage, error) {
	msg := &EventMessage{Type: ev.Type.String()}
	switch p := ev.Payload.(type) {
	case *relayevent.RelayConfig:
		msg.Key = p.VLAN
		msg.Action = action(p.IsAdd)
		if p.IsAdd {
			msg.Relay = &RelayMessage{
				Servers:          p.Servers,
				VRF:              p.VRF,
				SourceInterface:  p.SourceInterface,
				LinkSelection:    p.LinkSelection,
				ServerIDOverride: p.ServerIDOverride,
				VRFSelection:     p.VRFSelection,
				AgentRelayMode:   p.AgentRelayMode,
			}
		}
	case *relayevent.InterfaceAddress:
		msg.Key = p.VLAN
		msg.Action = action(p.IsAdd)
		msg.Interface = &InterfaceMessage{Name: p.Interface}
		if p.Address.IsValid() {
			msg.Interface.Address = p.Address.String()
		}
	case *relayevent.DeviceMetadata:
		msg.Key = metadataKey
		msg.Action = actionUpdate
		msg.Metadata = &MetadataMessage{
			Hostname: p.Hostname,
			MAC:      p.MAC.String(),
		}
	default:
		return nil, fmt.Errorf("unknown event payload %T", ev.Payload)
	}

	return msg, nil
}

// CounterLifecycle returns an observer that resets the counters of a VLAN
// when its relay policy is installed and discards them when it is removed.
func CounterLifecycle(tbl *counters.Table) Observer {
	return func(ev relayevent.Event) {
		p, ok := ev.Payload.(*relayevent.RelayConfig)
		if !ok {
			return
		}
		if p.IsAdd {
			tbl.InitializeInterface(p.VLAN)
			return
		}
		tbl.RemoveInterface(p.VLAN)
	}
}
