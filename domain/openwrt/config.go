// Package openwrt converts OpenWrt NetJSON descriptions into UCI trees, so
// fragments written as NetJSON can be merged into live configuration.
package openwrt

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	devicev1 "github.com/honeybbq/netjson/gen/go/netjson/device/v1"
	openwrtv1 "github.com/honeybbq/netjson/gen/go/netjson/openwrt/v1"

	helpers "github.com/honeybbq/uciconfig/domain/utils"
	"github.com/honeybbq/uciconfig/pkg/ast/uci"
	"github.com/honeybbq/uciconfig/pkg/nxerrors"
)

// Config 表示 OpenWrt 领域模型。
type Config struct {
	Message *openwrtv1.OpenWrtConfig
}

// FromProto 构造领域模型。
func FromProto(msg *openwrtv1.OpenWrtConfig) (*Config, error) {
	if msg == nil {
		return nil, nxerrors.New(nxerrors.KindValidation, fmt.Errorf("config is nil"))
	}
	return &Config{Message: msg}, nil
}

// ToTrees converts the message into one tree per UCI package, in the order
// system, network. Packages without content are omitted.
func (c *Config) ToTrees() ([]*uci.Tree, error) {
	if c == nil || c.Message == nil {
		return nil, nxerrors.New(nxerrors.KindInternal, errors.New("openwrt message is nil"))
	}

	var trees []*uci.Tree
	if tree := buildSystemPackage(c.Message); tree.Len() > 0 {
		trees = append(trees, tree)
	}
	if tree := buildNetworkPackage(c.Message); tree.Len() > 0 {
		trees = append(trees, tree)
	}

	if len(trees) == 0 {
		return nil, nxerrors.New(nxerrors.KindEmpty, fmt.Errorf("no supported netjson fields found"))
	}
	return trees, nil
}

// ToDocument wraps ToTrees together with the auxiliary files of the message.
func (c *Config) ToDocument() (*uci.Document, error) {
	trees, err := c.ToTrees()
	if err != nil {
		return nil, err
	}
	return &uci.Document{Packages: trees, Files: c.Message.GetFiles()}, nil
}

func buildSystemPackage(msg *openwrtv1.OpenWrtConfig) *uci.Tree {
	tree := uci.NewTree("system")
	if values := generalValues(msg.GetGeneral()); len(values) > 0 {
		helpers.ApplyOptionsFromMap(tree.AddAnonymous("system"), values, nil)
	}
	if ntp := msg.GetNtp(); ntp != nil {
		section := uci.NewSection("timeserver", "ntp")
		applyNtp(section, ntp)
		if len(section.Options) > 0 {
			tree.Insert(section)
		}
	}
	return tree
}

func generalValues(general *devicev1.General) map[string]any {
	if general == nil {
		return nil
	}
	values := helpers.ProtoMessageToMap(general)
	// globals-only fields
	delete(values, "ula_prefix")
	delete(values, "globals_id")
	return values
}

func applyNtp(section *uci.Section, ntp *openwrtv1.NtpSettings) {
	helpers.SetBool(section, "enabled", ntp.Enabled)
	helpers.SetBool(section, "enable_server", ntp.EnableServer)
	helpers.SetStringPtr(section, "hostname", ntp.Hostname)
	helpers.SetUint32Ptr(section, "port", ntp.Port)
	helpers.SetList(section, "server", append(append([]string(nil), ntp.GetServers()...), ntp.GetPools()...))
}

func buildNetworkPackage(msg *openwrtv1.OpenWrtConfig) *uci.Tree {
	tree := uci.NewTree("network")

	if general := msg.GetGeneral(); general.GetUlaPrefix() != "" {
		name := "globals"
		if general.GetGlobalsId() != "" {
			name = general.GetGlobalsId()
		}
		helpers.SetString(tree.AddNamed("globals", name), "ula_prefix", general.GetUlaPrefix())
	}

	// DSA style: bridge devices first, then interfaces
	for _, iface := range msg.GetInterfaces() {
		if iface.GetWireless() != nil {
			continue
		}
		if section := buildDeviceSection(iface); section != nil {
			tree.Insert(section)
		}
	}
	for _, iface := range msg.GetInterfaces() {
		if iface.GetWireless() != nil {
			continue
		}
		if section := buildInterfaceSection(iface, msg); section != nil {
			tree.Insert(section)
		}
	}
	for _, section := range buildRouteSections(msg.GetRoutes()) {
		tree.Insert(section)
	}
	return tree
}

func isBridge(iface *devicev1.Interface) bool {
	return strings.EqualFold(iface.GetType(), "bridge")
}

// buildDeviceSection creates the device section of a bridge.
func buildDeviceSection(iface *devicev1.Interface) *uci.Section {
	if iface == nil || iface.GetName() == "" || !isBridge(iface) {
		return nil
	}

	section := uci.NewSection("device", "device_"+iface.GetName())
	helpers.SetString(section, "name", "br-"+iface.GetName())
	helpers.SetString(section, "type", "bridge")
	for _, member := range iface.GetBridgeMembers() {
		helpers.AppendList(section, "ports", member)
	}
	helpers.SetUint32Ptr(section, "mtu", iface.Mtu)
	helpers.SetBool(section, "stp", iface.Stp)
	helpers.SetBool(section, "igmp_snooping", iface.IgmpSnooping)
	return section
}

func buildInterfaceSection(iface *devicev1.Interface, msg *openwrtv1.OpenWrtConfig) *uci.Section {
	if iface == nil || iface.GetName() == "" {
		return nil
	}
	section := uci.NewSection("interface", iface.GetName())
	bridge := isBridge(iface)

	if bridge {
		helpers.SetString(section, "device", "br-"+iface.GetName())
	} else {
		device := iface.GetDevice()
		if device == "" {
			device = iface.GetName()
		}
		helpers.SetString(section, "device", device)
		helpers.SetUint32Ptr(section, "mtu", iface.Mtu)
	}
	helpers.SetStringPtr(section, "ip4table", iface.Ip4Table)
	helpers.SetStringPtr(section, "ip6table", iface.Ip6Table)
	helpers.SetStringPtr(section, "ip6gw", iface.Ip6Gateway)
	helpers.SetStringPtr(section, "zone", iface.FirewallZone)

	helpers.SetBool(section, "disabled", iface.Disabled)
	helpers.SetBool(section, "auto", iface.Autostart)
	helpers.SetStringPtr(section, "macaddr", iface.Mac)
	if proto := iface.GetProto(); proto != "" {
		helpers.SetString(section, "proto", proto)
	}

	applyInterfaceAddresses(section, iface)
	applyDNS(section, iface, msg)

	if len(section.Options) == 0 {
		return nil
	}
	return section
}

func applyInterfaceAddresses(section *uci.Section, iface *devicev1.Interface) {
	protoSet := helpers.OptionExists(section, "proto")
	for _, addr := range iface.GetAddresses() {
		if !protoSet && addr.GetProto() != "" {
			helpers.SetString(section, "proto", addr.GetProto())
			protoSet = true
		}
		switch addr.GetFamily() {
		case "ipv4", "":
			if addr.GetProto() == "dhcp" || addr.GetAddress() == "" {
				continue
			}
			helpers.SetString(section, "ipaddr", addr.GetAddress())
			if mask := addr.GetMask(); mask != 0 {
				helpers.SetString(section, "netmask", prefixToNetmask(mask))
			}
			helpers.SetString(section, "gateway", addr.GetGateway())
		case "ipv6":
			if addr.GetProto() == "dhcpv6" || addr.GetAddress() == "" {
				continue
			}
			value := addr.GetAddress()
			if mask := addr.GetMask(); mask != 0 {
				value = fmt.Sprintf("%s/%d", value, mask)
			}
			helpers.AppendList(section, "ip6addr", value)
		}
	}
}

// applyDNS writes interface DNS, falling back to the global servers for
// statically configured interfaces. Both become lists so they merge with
// the deduplicator.
func applyDNS(section *uci.Section, iface *devicev1.Interface, msg *openwrtv1.OpenWrtConfig) {
	ignoreGlobal := false
	if proto, ok := section.Get("proto"); ok {
		switch proto.Text() {
		case "dhcp", "dhcpv6", "none":
			ignoreGlobal = true
		}
	}

	dns := iface.GetDns()
	if len(dns) == 0 && !ignoreGlobal {
		dns = msg.GetDnsServers()
	}
	helpers.SetList(section, "dns", dns)

	search := iface.GetDnsSearch()
	if len(search) == 0 && !ignoreGlobal {
		search = msg.GetDnsSearch()
	}
	helpers.SetList(section, "dns_search", search)
}

func prefixToNetmask(prefix uint32) string {
	if prefix > 32 {
		return ""
	}
	return net.IP(net.CIDRMask(int(prefix), 32)).String()
}

func buildRouteSections(routes []*devicev1.StaticRoute) []*uci.Section {
	var sections []*uci.Section
	counter := 1
	for _, route := range routes {
		if route == nil {
			continue
		}
		dest := route.GetDestination()
		isIPv6 := strings.Contains(dest, ":")
		sectionType := "route"
		if isIPv6 {
			sectionType = "route6"
		}
		name := route.GetName()
		if name == "" {
			name = fmt.Sprintf("route%d", counter)
		}
		counter++

		section := uci.NewSection(sectionType, name)
		helpers.SetString(section, "interface", route.GetDevice())
		helpers.SetString(section, "gateway", route.GetNext())
		helpers.SetString(section, "source", route.GetSource())
		helpers.SetString(section, "table", route.GetTable())
		helpers.SetString(section, "type", route.GetType())
		helpers.SetUint32Ptr(section, "metric", route.Cost)
		helpers.SetUint32Ptr(section, "mtu", route.Mtu)
		helpers.SetBool(section, "onlink", route.Onlink)

		if isIPv6 {
			helpers.SetString(section, "target", dest)
		} else {
			target, netmask := splitIPv4Destination(dest)
			helpers.SetString(section, "target", target)
			helpers.SetString(section, "netmask", netmask)
		}
		sections = append(sections, section)
	}
	return sections
}

func splitIPv4Destination(dest string) (string, string) {
	target, prefix, found := strings.Cut(dest, "/")
	if !found {
		return dest, ""
	}
	bits, err := strconv.Atoi(prefix)
	if err != nil || bits < 0 {
		return dest, ""
	}
	return target, prefixToNetmask(uint32(bits))
}
