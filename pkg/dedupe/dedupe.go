// Package dedupe normalizes and deduplicates UCI list values.
//
// Two strategies are available. PreserveOrder removes exact duplicates and
// keeps the first occurrence of every element. NetworkAware additionally
// compares IPv4 literals octet by octet and port-like values by number, so
// "192.168.001.001" and "192.168.1.1" collapse into one entry. Values that
// cannot be normalized are compared verbatim.
package dedupe

import (
	"fmt"
	"strconv"
	"strings"
)

// Strategy names a deduplication algorithm.
type Strategy string

const (
	PreserveOrder Strategy = "preserve_order"
	NetworkAware  Strategy = "network_aware"
)

// ParseStrategy validates a strategy name. An empty name selects PreserveOrder.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(strings.TrimSpace(name)) {
	case "", PreserveOrder:
		return PreserveOrder, nil
	case NetworkAware:
		return NetworkAware, nil
	default:
		return "", fmt.Errorf("unknown dedupe strategy %q", name)
	}
}

// Dedupe returns list without duplicates under strategy, keeping the first
// occurrence of every element in its original position. The input is not
// modified and the result is never longer than the input. Unknown strategies
// behave like PreserveOrder.
func Dedupe(list []string, strategy Strategy) []string {
	if list == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(list))
	result := make([]string, 0, len(list))
	for _, item := range list {
		key := item
		if strategy == NetworkAware {
			key = normalize(item)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, item)
	}
	return result
}

// MergeLists concatenates existing and incoming, then deduplicates. Merging
// a list with itself returns the deduplicated list unchanged.
func MergeLists(existing, incoming []string, strategy Strategy) []string {
	combined := make([]string, 0, len(existing)+len(incoming))
	combined = append(combined, existing...)
	combined = append(combined, incoming...)
	return Dedupe(combined, strategy)
}

// normalize maps network-equivalent spellings onto one key. Keys carry a
// prefix per class so a port never collides with an address or a verbatim
// string.
func normalize(value string) string {
	if addr, ok := normalizeIPv4(value); ok {
		return "ip:" + addr
	}
	if port, ok := normalizePortSpec(value); ok {
		return "port:" + port
	}
	return "raw:" + value
}

// normalizeIPv4 accepts dotted quads with optional leading zeros and an
// optional /prefix, e.g. "010.000.000.001/08".
func normalizeIPv4(value string) (string, bool) {
	addr, prefix, hasPrefix := strings.Cut(value, "/")
	parts := strings.Split(addr, ".")
	if len(parts) != 4 {
		return "", false
	}
	octets := make([]string, 4)
	for i, part := range parts {
		n, ok := parseDecimal(part, 255)
		if !ok {
			return "", false
		}
		octets[i] = strconv.Itoa(n)
	}
	normalized := strings.Join(octets, ".")
	if hasPrefix {
		bits, ok := parseDecimal(prefix, 32)
		if !ok {
			return "", false
		}
		normalized += "/" + strconv.Itoa(bits)
	}
	return normalized, true
}

// normalizePortSpec accepts a port ("0080") or an ascending range
// ("1000-2000", "1000:2000"). Colon ranges must be written without leading
// zeros, so clock times such as "08:00" stay verbatim.
func normalizePortSpec(value string) (string, bool) {
	for _, sep := range []string{"-", ":"} {
		low, high, found := strings.Cut(value, sep)
		if !found {
			continue
		}
		if sep == ":" && (hasLeadingZero(low) || hasLeadingZero(high)) {
			return "", false
		}
		lo, ok := parseDecimal(low, 65535)
		if !ok {
			return "", false
		}
		hi, ok := parseDecimal(high, 65535)
		if !ok || hi < lo {
			return "", false
		}
		return strconv.Itoa(lo) + "-" + strconv.Itoa(hi), true
	}
	port, ok := parseDecimal(value, 65535)
	if !ok {
		return "", false
	}
	return strconv.Itoa(port), true
}

func hasLeadingZero(value string) bool {
	return len(value) > 1 && value[0] == '0'
}

// parseDecimal parses 1-5 ASCII digits not exceeding limit.
func parseDecimal(value string, limit int) (int, bool) {
	if value == "" || len(value) > 5 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	if n > limit {
		return 0, false
	}
	return n, true
}
