package relaymgr

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/cisco-open/dhcp4relay/configdb"
	"github.com/cisco-open/dhcp4relay/relayevent"
	"github.com/golang/glog"
)

const (
	defaultVRF      = "default"
	defaultHostname = "sonic"
	localhostKey    = "localhost"
)

// DHCPV4_RELAY table fields
const (
	fieldServers          = "dhcpv4_servers"
	fieldServerVRF        = "server_vrf"
	fieldSourceInterface  = "source_interface"
	fieldLinkSelection    = "link_selection"
	fieldServerIDOverride = "server_id_override"
	fieldVRFSelection     = "vrf_selection"
	fieldAgentRelayMode   = "agent_relay_mode"
)

// DEVICE_METADATA table fields
const (
	fieldHostname = "hostname"
	fieldMAC      = "mac"
)

func (m *Manager) processRelayNotification(records []configdb.Record) {
	for _, r := range records {
		cfg := &relayevent.RelayConfig{VLAN: r.Key}
		switch r.Op {
		case configdb.OpSet:
			cfg.IsAdd = true
			for _, fv := range r.Fields {
				switch fv.Field {
				case fieldServers:
					cfg.Servers = parseServers(fv.Value)
				case fieldServerVRF:
					cfg.VRF = fv.Value
				case fieldSourceInterface:
					cfg.SourceInterface = fv.Value
				case fieldLinkSelection:
					cfg.LinkSelection = fv.Value
				case fieldServerIDOverride:
					cfg.ServerIDOverride = fv.Value
				case fieldVRFSelection:
					cfg.VRFSelection = fv.Value
				case fieldAgentRelayMode:
					cfg.AgentRelayMode = fv.Value
				default:
					glog.V(6).Infof("[DHCPV4_RELAY] Ignoring field %s of %s", fv.Field, r.Key)
					continue
				}
				glog.V(6).Infof("[DHCPV4_RELAY] key: %s, operation: %s, f: %s, v: %s", r.Key, r.Op, fv.Field, fv.Value)
			}
			if cfg.VRF == "" {
				cfg.VRF = defaultVRF
			}
			m.cache.set(cfg)
			if len(cfg.Servers) == 0 {
				glog.Warningf("[DHCPV4_RELAY] No servers found for VLAN %s, skipping configuration", r.Key)
				continue
			}
		case configdb.OpDel:
			glog.Infof("[DHCPV4_RELAY] Received DELETE operation for VLAN %s", r.Key)
			m.cache.delete(r.Key)
		default:
			glog.Errorf("[DHCPV4_RELAY] Unknown operation %q for VLAN %s", r.Op, r.Key)
			continue
		}
		glog.Infof("[DHCPV4_RELAY] %s %s relay config", r.Op, r.Key)
		m.emit(cfg, r.Key)
	}
}

func (m *Manager) processInterfaceNotification(records []configdb.Record) {
	for _, r := range records {
		ifname, prefix, ok := strings.Cut(r.Key, "|")
		if !ok || ifname == "" {
			glog.V(5).Infof("[DHCPV4_RELAY] Skipping interface key without address: %q", r.Key)
			continue
		}
		ip, _, _ := strings.Cut(prefix, "/")
		if r.Op != configdb.OpSet && r.Op != configdb.OpDel {
			glog.Errorf("[DHCPV4_RELAY] Unknown operation %q for interface %s", r.Op, r.Key)
			continue
		}
		// Source interfaces are expected to be unique per VLAN, but every
		// matching policy gets its own update.
		for _, vlan := range m.cache.sourceInterfaceVLANs(ifname) {
			u := &relayevent.InterfaceAddress{
				VLAN:      vlan,
				Interface: ifname,
			}
			if r.Op == configdb.OpSet {
				addr, err := parseIPv4(ip)
				if err != nil {
					glog.Errorf("[DHCPV4_RELAY] Invalid IP address for interface %s, VLAN %s: %+v", ifname, vlan, err)
					continue
				}
				u.Address = addr
				u.IsAdd = true
			}
			glog.Infof("[DHCPV4_RELAY] %s source interface %s address for VLAN %s", r.Op, ifname, vlan)
			m.emit(u, vlan)
		}
	}
}

func (m *Manager) processDeviceMetadataNotification(records []configdb.Record) {
	// Without relay config the forwarding engine has nothing to apply metadata to.
	if len(m.cache) == 0 {
		return
	}
	for _, r := range records {
		if r.Key != localhostKey {
			continue
		}
		md := &relayevent.DeviceMetadata{}
		if v, ok := r.Get(fieldHostname); ok {
			md.Hostname = v
		}
		if md.Hostname == "" {
			md.Hostname = defaultHostname
		}
		if v, ok := r.Get(fieldMAC); ok && v != "" {
			mac, err := parseMAC(v)
			if err != nil {
				glog.Errorf("[DHCPV4_RELAY] Invalid device mac address: %+v", err)
				continue
			}
			md.MAC = mac
		}
		glog.Infof("[DHCPV4_RELAY] Device metadata update, hostname: %s, mac: %s", md.Hostname, md.MAC)
		m.emit(md, r.Key)
	}
}

func parseServers(v string) []string {
	var servers []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			servers = append(servers, s)
		}
	}
	return servers
}

func parseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%s is not an IPv4 address", s)
	}
	return addr, nil
}

func parseMAC(s string) (net.HardwareAddr, error) {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return nil, err
	}
	if len(mac) != 6 {
		return nil, fmt.Errorf("%s is not a 6 byte hardware address", s)
	}
	return mac, nil
}
