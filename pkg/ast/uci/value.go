package uci

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// ValueKind tags an option value as written by an `option` or a `list` directive.
type ValueKind uint8

const (
	// ScalarKind is a single string written with `option`.
	ScalarKind ValueKind = iota
	// ListKind is an ordered sequence written with repeated `list` directives.
	ListKind
)

func (k ValueKind) String() string {
	if k == ListKind {
		return "list"
	}
	return "option"
}

// Value is the tagged union of Scalar(string) and List([]string). The zero
// value is the empty scalar.
type Value struct {
	kind  ValueKind
	text  string
	items []string
}

// Scalar builds a scalar value.
func Scalar(text string) Value {
	return Value{kind: ScalarKind, text: text}
}

// List builds a list value. The items are copied.
func List(items ...string) Value {
	copied := make([]string, len(items))
	copy(copied, items)
	return Value{kind: ListKind, items: copied}
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsList() bool { return v.kind == ListKind }

// Text returns the scalar string. Lists return "".
func (v Value) Text() string {
	if v.kind == ListKind {
		return ""
	}
	return v.text
}

// Items returns a copy of the list elements. Scalars return nil.
func (v Value) Items() []string {
	if v.kind != ListKind {
		return nil
	}
	copied := make([]string, len(v.items))
	copy(copied, v.items)
	return copied
}

// Len is the element count: 1 for a scalar, the item count for a list.
func (v Value) Len() int {
	if v.kind == ListKind {
		return len(v.items)
	}
	return 1
}

// Normalized joins list items with single spaces. UCI accepts a
// space-separated option wherever a list is expected, so this is the
// form used when comparing values across the two shapes.
func (v Value) Normalized() string {
	if v.kind == ListKind {
		return strings.Join(v.items, " ")
	}
	return v.text
}

// Equal is strict equality: same kind and same content.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	if v.kind == ScalarKind {
		return v.text == other.text
	}
	if len(v.items) != len(other.items) {
		return false
	}
	for i := range v.items {
		if v.items[i] != other.items[i] {
			return false
		}
	}
	return true
}

// Equivalent compares the normalized forms, so List("lan", "guest") is
// equivalent to Scalar("lan guest").
func (v Value) Equivalent(other Value) bool {
	if v.kind == other.kind {
		return v.Equal(other)
	}
	return v.Normalized() == other.Normalized()
}

// Clone returns a value that shares no memory with v.
func (v Value) Clone() Value {
	if v.kind == ListKind {
		return List(v.items...)
	}
	return v
}

// String renders the raw representation used in logs and conflict records.
func (v Value) String() string {
	if v.kind == ListKind {
		quoted := make([]string, len(v.items))
		for i, item := range v.items {
			quoted[i] = fmt.Sprintf("'%s'", item)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	}
	return fmt.Sprintf("'%s'", v.text)
}

// MarshalJSON encodes scalars as strings and lists as arrays.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == ListKind {
		return json.Marshal(v.items)
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON accepts a string or an array of strings.
func (v *Value) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*v = Scalar(text)
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("uci value must be a string or a list of strings: %w", err)
	}
	*v = List(items...)
	return nil
}

// MarshalCBOR mirrors MarshalJSON.
func (v Value) MarshalCBOR() ([]byte, error) {
	if v.kind == ListKind {
		return cbor.Marshal(v.items)
	}
	return cbor.Marshal(v.text)
}

// UnmarshalCBOR mirrors UnmarshalJSON.
func (v *Value) UnmarshalCBOR(data []byte) error {
	var text string
	if err := cbor.Unmarshal(data, &text); err == nil {
		*v = Scalar(text)
		return nil
	}
	var items []string
	if err := cbor.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("uci value must be a string or a list of strings: %w", err)
	}
	*v = List(items...)
	return nil
}
