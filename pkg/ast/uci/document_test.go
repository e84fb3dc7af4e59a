package uci

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueEquivalence(t *testing.T) {
	t.Parallel()

	list := List("lan", "guest")
	assert.True(t, list.Equivalent(Scalar("lan guest")))
	assert.False(t, list.Equal(Scalar("lan guest")))
	assert.False(t, List("a").Equal(Scalar("a")))
	assert.True(t, List("a").Equivalent(Scalar("a")))
	assert.False(t, list.Equivalent(List("guest", "lan")))
}

func TestValueItemsAreCopies(t *testing.T) {
	t.Parallel()

	source := []string{"a", "b"}
	value := List(source...)
	source[0] = "changed"

	items := value.Items()
	items[1] = "changed"
	assert.Equal(t, []string{"a", "b"}, value.Items())
}

func TestValueJSON(t *testing.T) {
	t.Parallel()

	encoded, err := json.Marshal(map[string]Value{"dns": List("1.1.1.1"), "proto": Scalar("dhcp")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"dns":["1.1.1.1"],"proto":"dhcp"}`, string(encoded))

	var decoded map[string]Value
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.True(t, decoded["dns"].IsList())
	assert.Equal(t, "dhcp", decoded["proto"].Text())
}

func TestTreeInsertKeepsOrdinals(t *testing.T) {
	t.Parallel()

	tree := NewTree("firewall")
	tree.AddAnonymous("rule")
	tree.AddAnonymous("rule")

	incoming := NewSection("rule", "")
	incoming.Ordinal = 5
	tree.Insert(incoming)

	next := tree.AddAnonymous("rule")
	assert.Equal(t, "@rule[6]", next.ID())
	assert.Equal(t, []string{"@rule[0]", "@rule[1]", "@rule[5]", "@rule[6]"}, tree.IDs())
}

func TestTreeCloneIsDeep(t *testing.T) {
	t.Parallel()

	tree := NewTree("network")
	tree.AddNamed("interface", "lan").Set("dns", List("8.8.8.8"))

	clone := tree.Clone()
	cloned, _ := clone.Section("lan")
	cloned.Set("dns", List("1.1.1.1"))
	cloned.Set("proto", Scalar("dhcp"))

	original, _ := tree.Section("lan")
	assert.Equal(t, []string{"8.8.8.8"}, original.Options["dns"].Items())
	assert.NotContains(t, original.Options, "proto")
}
