package relaymgr

import (
	"net"
	"net/netip"
	"reflect"
	"testing"

	"github.com/cisco-open/dhcp4relay/configdb"
	"github.com/cisco-open/dhcp4relay/relayevent"
)

type recorder struct {
	events []relayevent.Event
	err    error
}

func (r *recorder) Emit(ev relayevent.Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func newTestManager(t *testing.T) (*Manager, *recorder) {
	t.Helper()
	rec := &recorder{}
	m, err := NewManager(Config{Select: configdb.NewSelect(nil), Emitter: rec})
	if err != nil {
		t.Fatalf("failed to create relay manager: %v", err)
	}
	return m, rec
}

func relaySet(vlan string, fields map[string]string) configdb.Record {
	return configdb.Record{Key: vlan, Op: configdb.OpSet, Fields: configdb.FieldsFromMap(fields)}
}

func TestRelayNotification(t *testing.T) {
	tests := []struct {
		name   string
		record configdb.Record
		cached *relayevent.RelayConfig
		events []relayevent.Event
	}{
		{
			name: "set with servers and no vrf",
			record: relaySet("Vlan100", map[string]string{
				"dhcpv4_servers":   "10.0.0.1,10.0.0.2",
				"source_interface": "Vlan100",
			}),
			cached: &relayevent.RelayConfig{
				VLAN:            "Vlan100",
				Servers:         []string{"10.0.0.1", "10.0.0.2"},
				VRF:             "default",
				SourceInterface: "Vlan100",
				IsAdd:           true,
			},
			events: []relayevent.Event{
				relayevent.New(&relayevent.RelayConfig{
					VLAN:            "Vlan100",
					Servers:         []string{"10.0.0.1", "10.0.0.2"},
					VRF:             "default",
					SourceInterface: "Vlan100",
					IsAdd:           true,
				}),
			},
		},
		{
			name: "set with every option",
			record: relaySet("Vlan200", map[string]string{
				"dhcpv4_servers":     "192.168.0.1",
				"server_vrf":         "Vrf-red",
				"source_interface":   "Loopback0",
				"link_selection":     "enable",
				"server_id_override": "enable",
				"vrf_selection":      "enable",
				"agent_relay_mode":   "discard",
				"unknown_field":      "ignored",
			}),
			cached: &relayevent.RelayConfig{
				VLAN:             "Vlan200",
				Servers:          []string{"192.168.0.1"},
				VRF:              "Vrf-red",
				SourceInterface:  "Loopback0",
				LinkSelection:    "enable",
				ServerIDOverride: "enable",
				VRFSelection:     "enable",
				AgentRelayMode:   "discard",
				IsAdd:            true,
			},
			events: []relayevent.Event{
				relayevent.New(&relayevent.RelayConfig{
					VLAN:             "Vlan200",
					Servers:          []string{"192.168.0.1"},
					VRF:              "Vrf-red",
					SourceInterface:  "Loopback0",
					LinkSelection:    "enable",
					ServerIDOverride: "enable",
					VRFSelection:     "enable",
					AgentRelayMode:   "discard",
					IsAdd:            true,
				}),
			},
		},
		{
			name:   "set with empty server list",
			record: relaySet("Vlan300", map[string]string{"dhcpv4_servers": "", "server_vrf": ""}),
			cached: &relayevent.RelayConfig{
				VLAN:  "Vlan300",
				VRF:   "default",
				IsAdd: true,
			},
		},
		{
			name:   "set without server field",
			record: relaySet("Vlan400", map[string]string{"source_interface": "Ethernet4"}),
			cached: &relayevent.RelayConfig{
				VLAN:            "Vlan400",
				VRF:             "default",
				SourceInterface: "Ethernet4",
				IsAdd:           true,
			},
		},
		{
			name:   "unknown operation",
			record: configdb.Record{Key: "Vlan500", Op: "HSET"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, rec := newTestManager(t)
			m.processRelayNotification([]configdb.Record{tt.record})
			if !reflect.DeepEqual(m.cache[tt.record.Key], tt.cached) {
				t.Fatalf("expected cache entry %+v, got %+v", tt.cached, m.cache[tt.record.Key])
			}
			if !reflect.DeepEqual(rec.events, tt.events) {
				t.Fatalf("expected events %+v, got %+v", tt.events, rec.events)
			}
		})
	}
}

// Scenarios A, B and C: install, source interface address, removal.
func TestRelayLifecycle(t *testing.T) {
	m, rec := newTestManager(t)

	m.processRelayNotification([]configdb.Record{
		relaySet("Vlan100", map[string]string{
			"dhcpv4_servers":   "10.0.0.1,10.0.0.2",
			"source_interface": "Vlan100",
		}),
	})
	if len(rec.events) != 1 || rec.events[0].Type != relayevent.ConfigUpdate {
		t.Fatalf("expected a single config update, got %+v", rec.events)
	}
	if cfg := rec.events[0].Payload.(*relayevent.RelayConfig); !cfg.IsAdd {
		t.Fatalf("expected install, got %+v", cfg)
	}

	m.processInterfaceNotification([]configdb.Record{
		{Key: "Vlan100|10.0.0.1/24", Op: configdb.OpSet},
	})
	want := relayevent.New(&relayevent.InterfaceAddress{
		VLAN:      "Vlan100",
		Interface: "Vlan100",
		Address:   netip.MustParseAddr("10.0.0.1"),
		IsAdd:     true,
	})
	if len(rec.events) != 2 || !reflect.DeepEqual(rec.events[1], want) {
		t.Fatalf("expected interface update %+v, got %+v", want, rec.events[1:])
	}

	m.processRelayNotification([]configdb.Record{{Key: "Vlan100", Op: configdb.OpDel}})
	if _, ok := m.cache["Vlan100"]; ok {
		t.Fatal("cache entry survived DEL")
	}
	if len(rec.events) != 3 {
		t.Fatalf("expected a removal event, got %+v", rec.events)
	}
	removal := rec.events[2].Payload.(*relayevent.RelayConfig)
	if rec.events[2].Type != relayevent.ConfigUpdate || removal.IsAdd || len(removal.Servers) != 0 || removal.VLAN != "Vlan100" {
		t.Fatalf("unexpected removal event %+v", removal)
	}
}

func TestInterfaceNotification(t *testing.T) {
	tests := []struct {
		name    string
		records []configdb.Record
		events  []relayevent.Event
	}{
		{
			name:    "multiple policies share a source interface",
			records: []configdb.Record{{Key: "Loopback0|10.1.0.1/32", Op: configdb.OpSet}},
			events: []relayevent.Event{
				relayevent.New(&relayevent.InterfaceAddress{VLAN: "Vlan10", Interface: "Loopback0", Address: netip.MustParseAddr("10.1.0.1"), IsAdd: true}),
				relayevent.New(&relayevent.InterfaceAddress{VLAN: "Vlan20", Interface: "Loopback0", Address: netip.MustParseAddr("10.1.0.1"), IsAdd: true}),
			},
		},
		{
			name:    "delete needs no address",
			records: []configdb.Record{{Key: "PortChannel1|garbage", Op: configdb.OpDel}},
			events: []relayevent.Event{
				relayevent.New(&relayevent.InterfaceAddress{VLAN: "Vlan30", Interface: "PortChannel1"}),
			},
		},
		{
			name:    "unparsable address",
			records: []configdb.Record{{Key: "Loopback0|10.1.0.300/32", Op: configdb.OpSet}},
		},
		{
			name:    "ipv6 address",
			records: []configdb.Record{{Key: "PortChannel1|fc00::1/64", Op: configdb.OpSet}},
		},
		{
			name: "key without separator",
			records: []configdb.Record{
				{Key: "Loopback0", Op: configdb.OpSet},
				{Key: "|10.1.0.1/32", Op: configdb.OpSet},
			},
		},
		{
			name:    "no matching policy",
			records: []configdb.Record{{Key: "Ethernet8|10.8.0.1/31", Op: configdb.OpSet}},
		},
		{
			name: "bad record does not stop the batch",
			records: []configdb.Record{
				{Key: "Loopback0", Op: configdb.OpSet},
				{Key: "PortChannel1|10.3.0.1/24", Op: configdb.OpSet},
			},
			events: []relayevent.Event{
				relayevent.New(&relayevent.InterfaceAddress{VLAN: "Vlan30", Interface: "PortChannel1", Address: netip.MustParseAddr("10.3.0.1"), IsAdd: true}),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, rec := newTestManager(t)
			m.processRelayNotification([]configdb.Record{
				relaySet("Vlan10", map[string]string{"dhcpv4_servers": "10.0.0.1", "source_interface": "Loopback0"}),
				relaySet("Vlan20", map[string]string{"dhcpv4_servers": "10.0.0.2", "source_interface": "Loopback0"}),
				relaySet("Vlan30", map[string]string{"dhcpv4_servers": "10.0.0.3", "source_interface": "PortChannel1"}),
			})
			before := make(map[string]relayevent.RelayConfig, len(m.cache))
			for k, v := range m.cache {
				before[k] = *v
			}
			rec.events = nil

			m.processInterfaceNotification(tt.records)
			if !reflect.DeepEqual(rec.events, tt.events) {
				t.Fatalf("expected events %+v, got %+v", tt.events, rec.events)
			}
			for k, v := range m.cache {
				if !reflect.DeepEqual(before[k], *v) {
					t.Fatalf("interface notification changed cache entry %s: %+v", k, v)
				}
			}
		})
	}
}

func TestDeviceMetadataNotification(t *testing.T) {
	mac, _ := net.ParseMAC("52:54:00:12:34:56")
	tests := []struct {
		name    string
		policy  bool
		records []configdb.Record
		events  []relayevent.Event
	}{
		{
			name:    "no relay policy installed",
			records: []configdb.Record{relaySet("localhost", map[string]string{"hostname": "sw1", "mac": "52:54:00:12:34:56"})},
		},
		{
			name:    "hostname and mac",
			policy:  true,
			records: []configdb.Record{relaySet("localhost", map[string]string{"hostname": "sw1", "mac": "52:54:00:12:34:56"})},
			events:  []relayevent.Event{relayevent.New(&relayevent.DeviceMetadata{Hostname: "sw1", MAC: mac})},
		},
		{
			name:    "default hostname",
			policy:  true,
			records: []configdb.Record{relaySet("localhost", map[string]string{"hostname": "", "mac": "52:54:00:12:34:56"})},
			events:  []relayevent.Event{relayevent.New(&relayevent.DeviceMetadata{Hostname: "sonic", MAC: mac})},
		},
		{
			name:   "other keys are ignored",
			policy: true,
			records: []configdb.Record{
				relaySet("remote", map[string]string{"hostname": "sw2"}),
				relaySet("localhost", map[string]string{"hostname": "sw1"}),
			},
			events: []relayevent.Event{relayevent.New(&relayevent.DeviceMetadata{Hostname: "sw1"})},
		},
		{
			name:    "malformed mac",
			policy:  true,
			records: []configdb.Record{relaySet("localhost", map[string]string{"hostname": "sw1", "mac": "52:54:00:12:34"})},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, rec := newTestManager(t)
			if tt.policy {
				m.processRelayNotification([]configdb.Record{
					relaySet("Vlan100", map[string]string{"dhcpv4_servers": "10.0.0.1"}),
				})
				rec.events = nil
			}
			m.processDeviceMetadataNotification(tt.records)
			if !reflect.DeepEqual(rec.events, tt.events) {
				t.Fatalf("expected events %+v, got %+v", tt.events, rec.events)
			}
		})
	}
}

func TestEmitFailureKeepsCache(t *testing.T) {
	m, rec := newTestManager(t)
	rec.err = relayevent.ErrDeliveryFailed
	m.processRelayNotification([]configdb.Record{
		relaySet("Vlan100", map[string]string{"dhcpv4_servers": "10.0.0.1"}),
		relaySet("Vlan200", map[string]string{"dhcpv4_servers": "10.0.0.2"}),
	})
	if len(m.cache) != 2 {
		t.Fatalf("expected both policies cached after delivery failures, got %d", len(m.cache))
	}
}
