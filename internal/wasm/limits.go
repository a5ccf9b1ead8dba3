package wasm

import "time"

const wasmPageSize = 64 * 1024

// Limits bounds a single plugin instance's resource consumption.
type Limits struct {
	// MemoryCapBytes is the hard ceiling on linear memory growth,
	// enforced via wazero's WithMemoryLimitPages. Only the value passed to
	// NewHost takes effect: it is set once on the shared runtime, so the
	// MemoryCapBytes of the Limits given to Host.Load is not applied.
	MemoryCapBytes int64
	// FuelBudget records a per-call step budget. Nothing in this package
	// reads or meters it; WallClock is the bound actually applied to a call.
	FuelBudget uint64
	// WallClock bounds how long a single execute-tool call may run.
	WallClock time.Duration
	// RateLimit and RateWindow bound how often any one guest function
	// may be invoked.
	RateLimit  int
	RateWindow time.Duration
}

// DefaultLimits matches the spec's stated defaults: 16MB memory, 1B fuel
// units, and a generous wall-clock bound left to the caller to tighten.
func DefaultLimits() Limits {
	return Limits{
		MemoryCapBytes: 16 * 1024 * 1024,
		FuelBudget:     1_000_000_000,
		WallClock:      10 * time.Second,
		RateLimit:      100,
		RateWindow:     time.Minute,
	}
}

func (l Limits) memoryPages() uint32 {
	pages := l.MemoryCapBytes / wasmPageSize
	if l.MemoryCapBytes%wasmPageSize != 0 {
		pages++
	}
	if pages < 1 {
		pages = 1
	}
	return uint32(pages)
}
