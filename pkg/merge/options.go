package merge

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/honeybbq/uciconfig/pkg/dedupe"
)

// NetworkPolicy selects what happens when a merge would apply a value that
// disconnects a network interface.
type NetworkPolicy string

const (
	// NetworkPolicyDrop keeps the existing value, records a Rejection and lets the merge succeed.
	NetworkPolicyDrop NetworkPolicy = "drop"
	// NetworkPolicyFail aborts the merge of that package with a KindNetworkSafety error.
	NetworkPolicyFail NetworkPolicy = "fail"
)

// ParseNetworkPolicy validates a policy name. An empty name selects NetworkPolicyDrop.
func ParseNetworkPolicy(name string) (NetworkPolicy, error) {
	switch NetworkPolicy(name) {
	case "", NetworkPolicyDrop:
		return NetworkPolicyDrop, nil
	case NetworkPolicyFail:
		return NetworkPolicyFail, nil
	default:
		return "", fmt.Errorf("unknown network policy %q", name)
	}
}

// Options configures an Engine.
type Options struct {
	DryRun           bool            // Compute and log, never write
	DedupeLists      bool            // Deduplicate merged lists; plain concatenation when false
	PreserveNetwork  bool            // Refuse values that would disconnect an interface
	PreserveExisting bool            // Keep the existing value on conflict; incoming wins when false
	Strategy         dedupe.Strategy // List deduplication strategy
	NetworkPolicy    NetworkPolicy   // Reaction to a disconnecting value when PreserveNetwork is set
	KnownDevices     []string        // Device names present on the router, used to spot nonexistent interfaces
	AllowedRoots     []string        // Directories merge sources and targets must live in; empty allows all
	Concurrency      int             // Parallel files in MergeDirectory; <= 0 picks a CPU based default
	Logger           *slog.Logger
}

// DefaultOptions returns the settings used for live devices: deduplicated
// lists, existing values win, network safety on.
func DefaultOptions() Options {
	return Options{
		DedupeLists:      true,
		PreserveNetwork:  true,
		PreserveExisting: true,
		Strategy:         dedupe.NetworkAware,
		NetworkPolicy:    NetworkPolicyDrop,
	}
}

const maxConcurrencyCap = 8

func (o Options) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return min(max(runtime.NumCPU(), 2), maxConcurrencyCap)
}
