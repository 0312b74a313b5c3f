package relaymgr

import (
	"sort"

	"github.com/cisco-open/dhcp4relay/relayevent"
)

// policyCache maps a VLAN to its installed relay policy. Entries are private
// copies, never the payloads handed to the emitter.
type policyCache map[string]*relayevent.RelayConfig

func (c policyCache) set(cfg *relayevent.RelayConfig) {
	c[cfg.VLAN] = cfg.Clone()
}

func (c policyCache) delete(vlan string) {
	delete(c, vlan)
}

// sourceInterfaceVLANs returns, in VLAN order, every VLAN whose policy uses
// ifname as its source interface.
func (c policyCache) sourceInterfaceVLANs(ifname string) []string {
	var vlans []string
	for vlan, cfg := range c {
		if cfg.SourceInterface == ifname {
			vlans = append(vlans, vlan)
		}
	}
	sort.Strings(vlans)

	return vlans
}
