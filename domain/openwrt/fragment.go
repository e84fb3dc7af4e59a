package openwrt

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	openwrtv1 "github.com/honeybbq/netjson/gen/go/netjson/openwrt/v1"
	"github.com/tidwall/jsonc"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/honeybbq/uciconfig/pkg/nxerrors"
)

// DefaultIdentifiers names the keys that make two array elements "the same"
// object when fragments are layered. The first non-empty key wins.
var DefaultIdentifiers = []string{"name", "config_value", "id"}

// DecodeFragment reads a NetJSON OpenWrt document. Comments and trailing
// commas are accepted. Unknown fields are errors unless lenient is set.
func DecodeFragment(data []byte, lenient bool) (*openwrtv1.OpenWrtConfig, error) {
	if len(data) == 0 {
		return nil, nxerrors.New(nxerrors.KindEmpty, errors.New("netjson fragment is empty"))
	}
	msg := &openwrtv1.OpenWrtConfig{}
	opts := protojson.UnmarshalOptions{DiscardUnknown: lenient}
	if err := opts.Unmarshal(jsonc.ToJSON(data), msg); err != nil {
		return nil, nxerrors.New(nxerrors.KindParse, fmt.Errorf("decode netjson: %w", err))
	}
	return msg, nil
}

// MergeFragments layers NetJSON documents, later ones on top of earlier ones.
//
// Scalars from a later layer replace earlier ones, objects merge key by key
// and arrays merge element-wise: objects sharing an identifier value are
// merged, exact duplicates are skipped and everything else is appended.
//
//	base:     {"interfaces": [{"name": "lan", "mtu": 1500}]}
//	override: {"interfaces": [{"name": "lan", "mtu": 9000}, {"name": "guest"}]}
//	result:   {"interfaces": [{"name": "lan", "mtu": 9000}, {"name": "guest"}]}
//
// A nil identifiers slice selects DefaultIdentifiers.
func MergeFragments(fragments [][]byte, identifiers []string) ([]byte, error) {
	if len(fragments) == 0 {
		return nil, nxerrors.New(nxerrors.KindEmpty, errors.New("no fragments to merge"))
	}
	if identifiers == nil {
		identifiers = DefaultIdentifiers
	}

	merged := map[string]any{}
	for i, fragment := range fragments {
		var layer map[string]any
		if err := json.Unmarshal(jsonc.ToJSON(fragment), &layer); err != nil {
			return nil, nxerrors.New(nxerrors.KindParse, fmt.Errorf("fragment %d: %w", i, err))
		}
		merged = mergeObjects(merged, layer, identifiers)
	}
	return json.Marshal(merged)
}

func mergeObjects(base, override map[string]any, identifiers []string) map[string]any {
	result := cloneValue(base).(map[string]any)
	if result == nil {
		result = map[string]any{}
	}
	for key, next := range override {
		current, exists := result[key]
		if !exists {
			result[key] = cloneValue(next)
			continue
		}
		switch next := next.(type) {
		case map[string]any:
			if currentMap, ok := current.(map[string]any); ok {
				result[key] = mergeObjects(currentMap, next, identifiers)
				continue
			}
		case []any:
			if currentSlice, ok := current.([]any); ok {
				result[key] = mergeArrays(currentSlice, next, identifiers)
				continue
			}
		}
		result[key] = cloneValue(next)
	}
	return result
}

func mergeArrays(base, override []any, identifiers []string) []any {
	result := cloneValue(base).([]any)

	index := make(map[any]int)
	for i, el := range result {
		if obj, ok := el.(map[string]any); ok {
			if id := identify(obj, identifiers); id != nil {
				index[id] = i
			}
		}
	}

	for _, el := range override {
		if containsValue(result, el) {
			continue
		}
		if obj, ok := el.(map[string]any); ok {
			if id := identify(obj, identifiers); id != nil {
				if i, found := index[id]; found {
					result[i] = mergeObjects(result[i].(map[string]any), obj, identifiers)
					continue
				}
				index[id] = len(result)
			}
		}
		result = append(result, cloneValue(el))
	}
	return result
}

// identify returns the first non-empty identifier value of obj. Only
// comparable values qualify since they are used as map keys.
func identify(obj map[string]any, identifiers []string) any {
	for _, key := range identifiers {
		switch v := obj[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64, bool:
			return v
		}
	}
	return nil
}

func containsValue(items []any, el any) bool {
	for _, item := range items {
		if reflect.DeepEqual(item, el) {
			return true
		}
	}
	return false
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		if v == nil {
			return map[string]any(nil)
		}
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		if v == nil {
			return []any(nil)
		}
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
