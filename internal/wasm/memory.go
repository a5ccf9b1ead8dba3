package wasm

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// pack/unpack combine a guest memory offset and length into the single
// uint64 every ABI call returns, matching a common wazero host/guest
// convention (high 32 bits = ptr, low 32 bits = len) so no second call is
// needed to learn a result's size.
func pack(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

func unpack(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}

// readGuestBytes copies length bytes out of mod's linear memory at ptr.
func readGuestBytes(mod api.Module, ptr, length uint32) ([]byte, error) {
	buf, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("wasm: read out of bounds at offset %d length %d", ptr, length)
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

// writeGuestResult asks the guest to allocate len(data) bytes via its
// exported "alloc" function, writes data into that region, and returns
// the packed (ptr, len) the caller hands back across the ABI boundary.
// The guest owns all linear memory; the host never allocates its own.
func writeGuestResult(ctx context.Context, mod api.Module, data []byte) (uint64, error) {
	allocFn := mod.ExportedFunction("alloc")
	if allocFn == nil {
		return 0, fmt.Errorf("wasm: guest module does not export \"alloc\"")
	}
	results, err := allocFn.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("wasm: alloc(%d) failed: %w", len(data), err)
	}
	ptr := uint32(results[0])
	if len(data) > 0 && !mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("wasm: write out of bounds at offset %d length %d", ptr, len(data))
	}
	return pack(ptr, uint32(len(data))), nil
}
