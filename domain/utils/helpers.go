package common

import (
	"encoding/json"
	"strconv"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/honeybbq/uciconfig/pkg/ast/uci"
)

// SetString stores a scalar option if non-empty.
func SetString(section *uci.Section, key, value string) {
	if section == nil || value == "" {
		return
	}
	section.Set(key, uci.Scalar(value))
}

// SetStringPtr stores a string pointer if it is set and non-empty.
func SetStringPtr(section *uci.Section, key string, value *string) {
	if value == nil {
		return
	}
	SetString(section, key, *value)
}

// SetUint32Ptr stores uint32 pointer as decimal string.
func SetUint32Ptr(section *uci.Section, key string, value *uint32) {
	if value == nil {
		return
	}
	SetString(section, key, strconv.FormatUint(uint64(*value), 10))
}

// SetBool stores bool pointer as "1"/"0".
func SetBool(section *uci.Section, key string, value *bool) {
	if value == nil {
		return
	}
	SetBoolValue(section, key, *value)
}

// SetBoolValue stores bool value as "1"/"0".
func SetBoolValue(section *uci.Section, key string, value bool) {
	if value {
		SetString(section, key, "1")
	} else {
		SetString(section, key, "0")
	}
}

// SetList sets a list option after filtering empty values.
func SetList(section *uci.Section, key string, values []string) {
	if section == nil || len(values) == 0 {
		return
	}
	filtered := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			filtered = append(filtered, v)
		}
	}
	if len(filtered) == 0 {
		return
	}
	section.Set(key, uci.List(filtered...))
}

// AppendList appends a single value to a list option. A scalar stored under
// key is replaced.
func AppendList(section *uci.Section, key string, value string) {
	if section == nil || value == "" {
		return
	}
	var items []string
	if current, ok := section.Get(key); ok && current.IsList() {
		items = current.Items()
	}
	section.Set(key, uci.List(append(items, value)...))
}

// OptionExists reports whether option already set.
func OptionExists(section *uci.Section, key string) bool {
	if section == nil {
		return false
	}
	_, ok := section.Get(key)
	return ok
}

// ProtoMessageToMap converts proto message into map via protojson.
func ProtoMessageToMap(msg proto.Message) map[string]any {
	if msg == nil {
		return nil
	}
	marshaler := protojson.MarshalOptions{
		UseProtoNames:   true,
		EmitUnpopulated: false,
	}
	data, err := marshaler.Marshal(msg)
	if err != nil {
		return nil
	}
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return nil
	}
	return values
}

// ApplyOptionsFromMap writes scalar and list entries into section, skipping
// keys in skip and keys the section already has.
func ApplyOptionsFromMap(section *uci.Section, values map[string]any, skip map[string]struct{}) {
	if len(values) == 0 || section == nil {
		return
	}
	for key, raw := range values {
		if _, ok := skip[key]; ok || OptionExists(section, key) {
			continue
		}
		switch v := raw.(type) {
		case string:
			SetString(section, key, v)
		case bool:
			SetBoolValue(section, key, v)
		case float64:
			SetString(section, key, strconv.FormatInt(int64(v), 10))
		case []any:
			SetList(section, key, toStringSlice(v))
		}
	}
}

func toStringSlice(items []any) []string {
	if len(items) == 0 {
		return nil
	}
	result := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if v != "" {
				result = append(result, v)
			}
		case bool:
			if v {
				result = append(result, "1")
			} else {
				result = append(result, "0")
			}
		case float64:
			result = append(result, strconv.FormatInt(int64(v), 10))
		}
	}
	return result
}
