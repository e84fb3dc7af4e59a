package merge

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/honeybbq/uciconfig/pkg/ast/uci"
)

// networkGuard spots values that would take an existing interface of the
// network package offline. It only judges interface sections; new sections
// never reach it.
type networkGuard struct {
	known   map[string]struct{}
	defined map[string]struct{}
}

func newNetworkGuard(merged, incoming *uci.Tree, knownDevices []string) *networkGuard {
	g := &networkGuard{
		known:   make(map[string]struct{}, len(knownDevices)),
		defined: make(map[string]struct{}),
	}
	for _, name := range knownDevices {
		g.known[name] = struct{}{}
	}
	for _, tree := range []*uci.Tree{merged, incoming} {
		for _, section := range tree.Sections() {
			if section.Type != "device" {
				continue
			}
			if name, ok := section.Get("name"); ok {
				g.defined[name.Normalized()] = struct{}{}
			}
		}
	}
	return g
}

// check returns why value must not be applied to key, or "".
func (g *networkGuard) check(section *uci.Section, key string, value uci.Value) string {
	if section.Type != "interface" {
		return ""
	}

	switch key {
	case "proto":
		proto := strings.TrimSpace(value.Normalized())
		if proto != "" && proto != "none" {
			return ""
		}
		if current, ok := section.Get("proto"); ok && current.Normalized() == "none" {
			return ""
		}
		return fmt.Sprintf("proto %q leaves the interface unconfigured", proto)

	case "device", "ifname":
		names := strings.Fields(value.Normalized())
		if len(names) == 0 {
			return fmt.Sprintf("%s is empty", key)
		}
		for _, name := range names {
			if !g.exists(name) {
				return fmt.Sprintf("%s %q does not exist", key, name)
			}
		}

	case "disabled":
		if value.Normalized() == "1" {
			return "disables the interface"
		}

	case "auto":
		if value.Normalized() == "0" {
			return "stops the interface from coming up at boot"
		}

	case "ipaddr", "netmask", "gateway":
		for _, item := range strings.Fields(value.Normalized()) {
			if !validIPv4(item, key == "ipaddr") {
				return fmt.Sprintf("%s %q is not a valid IPv4 address", key, item)
			}
		}
		if strings.TrimSpace(value.Normalized()) == "" {
			return fmt.Sprintf("%s is empty", key)
		}
	}
	return ""
}

// exists reports whether a device name can be resolved. Without a list of
// known devices only emptiness is checked. VLAN sub-devices ("eth0.10")
// resolve through their parent and "@iface" aliases always resolve.
func (g *networkGuard) exists(name string) bool {
	if name == "" {
		return false
	}
	if len(g.known) == 0 || strings.HasPrefix(name, "@") {
		return true
	}
	if _, ok := g.known[name]; ok {
		return true
	}
	if _, ok := g.defined[name]; ok {
		return true
	}
	if parent, _, found := strings.Cut(name, "."); found {
		return g.exists(parent)
	}
	return false
}

func validIPv4(value string, allowPrefix bool) bool {
	if allowPrefix && strings.Contains(value, "/") {
		prefix, err := netip.ParsePrefix(value)
		return err == nil && prefix.Addr().Is4()
	}
	addr, err := netip.ParseAddr(value)
	return err == nil && addr.Is4()
}
