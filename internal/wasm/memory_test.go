package wasm

import "testing"

func TestPackUnpackRoundTrip(t *testing.T) {
	cases := []struct {
		ptr, length uint32
	}{
		{0, 0},
		{1, 1},
		{65536, 4096},
		{0xFFFFFFFF, 0xFFFFFFFF},
	}
	for _, c := range cases {
		packed := pack(c.ptr, c.length)
		gotPtr, gotLen := unpack(packed)
		if gotPtr != c.ptr || gotLen != c.length {
			t.Errorf("pack/unpack(%d, %d) round-tripped to (%d, %d)", c.ptr, c.length, gotPtr, gotLen)
		}
	}
}

func TestLimitsMemoryPagesRoundsUp(t *testing.T) {
	l := Limits{MemoryCapBytes: wasmPageSize + 1}
	if got := l.memoryPages(); got != 2 {
		t.Errorf("memoryPages() = %d, want 2", got)
	}
}

func TestLimitsMemoryPagesExactMultiple(t *testing.T) {
	l := Limits{MemoryCapBytes: wasmPageSize * 3}
	if got := l.memoryPages(); got != 3 {
		t.Errorf("memoryPages() = %d, want 3", got)
	}
}

func TestLimitsMemoryPagesFloorsAtOne(t *testing.T) {
	l := Limits{MemoryCapBytes: 0}
	if got := l.memoryPages(); got != 1 {
		t.Errorf("memoryPages() = %d, want 1", got)
	}
}

func TestDefaultLimitsMatchesSpecDefaults(t *testing.T) {
	l := DefaultLimits()
	if l.MemoryCapBytes != 16*1024*1024 {
		t.Errorf("MemoryCapBytes = %d, want 16MB", l.MemoryCapBytes)
	}
	if l.FuelBudget != 1_000_000_000 {
		t.Errorf("FuelBudget = %d, want 1e9", l.FuelBudget)
	}
}
