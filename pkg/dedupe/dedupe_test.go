package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		list     []string
		strategy Strategy
		want     []string
	}{
		{
			name:     "preserve order drops exact duplicates",
			list:     []string{"b", "a", "b", "c", "a"},
			strategy: PreserveOrder,
			want:     []string{"b", "a", "c"},
		},
		{
			name:     "preserve order keeps leading zero variants",
			list:     []string{"192.168.1.1", "192.168.001.001"},
			strategy: PreserveOrder,
			want:     []string{"192.168.1.1", "192.168.001.001"},
		},
		{
			name:     "network aware collapses ipv4 spellings",
			list:     []string{"192.168.1.1", "192.168.001.001"},
			strategy: NetworkAware,
			want:     []string{"192.168.1.1"},
		},
		{
			name:     "network aware cidr",
			list:     []string{"10.0.0.0/8", "010.000.000.000/08", "10.0.0.0/16"},
			strategy: NetworkAware,
			want:     []string{"10.0.0.0/8", "10.0.0.0/16"},
		},
		{
			name:     "network aware ports and ranges",
			list:     []string{"80", "0080", "1000-2000", "1000:2000", "443"},
			strategy: NetworkAware,
			want:     []string{"80", "1000-2000", "443"},
		},
		{
			name:     "times and dates are not port ranges",
			list:     []string{"08:00", "8:0", "8:00", "2024-05", "2024-5"},
			strategy: NetworkAware,
			want:     []string{"08:00", "8:0", "8:00", "2024-05", "2024-5"},
		},
		{
			name:     "port never equals address",
			list:     []string{"1", "0.0.0.1"},
			strategy: NetworkAware,
			want:     []string{"1", "0.0.0.1"},
		},
		{
			name:     "invalid values fall back to exact match",
			list:     []string{"256.1.1.1", "256.1.1.1", "256.001.1.1", "lan", "lan"},
			strategy: NetworkAware,
			want:     []string{"256.1.1.1", "256.001.1.1", "lan"},
		},
		{
			name:     "unknown strategy behaves like preserve order",
			list:     []string{"x", "x"},
			strategy: Strategy("bogus"),
			want:     []string{"x"},
		},
		{
			name:     "nil stays nil",
			list:     nil,
			strategy: NetworkAware,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Dedupe(tt.list, tt.strategy))
		})
	}
}

func TestDedupeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := [][]string{
		{"8.8.8.8", "08.8.8.8", "1.1.1.1", "8.8.8.8"},
		{"a", "b", "a", "c", "b"},
		{"22", "022", "22-23", "lan"},
		{},
	}
	for _, strategy := range []Strategy{PreserveOrder, NetworkAware} {
		for _, list := range inputs {
			once := Dedupe(list, strategy)
			assert.Equal(t, once, Dedupe(once, strategy), "strategy %s list %v", strategy, list)
			assert.LessOrEqual(t, len(once), len(list))
		}
	}
}

func TestMergeLists(t *testing.T) {
	t.Parallel()

	merged := MergeLists([]string{"8.8.8.8"}, []string{"8.8.8.8", "1.1.1.1"}, PreserveOrder)
	assert.Equal(t, []string{"8.8.8.8", "1.1.1.1"}, merged)

	self := []string{"a", "b"}
	assert.Equal(t, self, MergeLists(self, self, PreserveOrder))
	assert.Equal(t, []string{"10.0.0.1"}, MergeLists([]string{"10.0.0.1"}, []string{"10.000.0.01"}, NetworkAware))
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	strategy, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, PreserveOrder, strategy)

	strategy, err = ParseStrategy("network_aware")
	require.NoError(t, err)
	assert.Equal(t, NetworkAware, strategy)

	_, err = ParseStrategy("fuzzy")
	assert.Error(t, err)
}
