// Package boot models the contract the platform boot shim satisfies
// (spec §6.1): a pointer+length to the raw FDT blob, a pointer+length to a
// bootstrap heap, an enumeration of reserved ranges the shim claims for its
// own use or for firmware, and a one-shot shutdown that hands the heap's
// ownership to the kernel. None of this is the shim itself — the shim is a
// platform-specific collaborator named only by the contracts it satisfies —
// this package only carries the plain-data shape of that contract plus the
// composition (§4.7) that turns a parsed device tree and those reserved
// ranges into a finalized mem.Map.
package boot

import (
	"aarch64kernel/kernel"
	"aarch64kernel/kernel/devicetree"
	"aarch64kernel/kernel/mem"
)

// ReservedRange is a physical byte range the boot shim reserved for its own
// state or for firmware tables, before the kernel's page allocator exists.
type ReservedRange struct {
	Begin, End uint64
}

// Info is the plain-data shape of everything the boot shim hands the kernel
// at the §6.1 boundary: the FDT blob, the bootstrap heap's byte range, and
// the shim's own reserved ranges. A real platform populates this from
// linker-provided symbols and a firmware-supplied pointer; tests populate
// it directly.
type Info struct {
	// FDT is the raw device-tree blob (possibly empty, per §6.3's fdt()).
	FDT []byte

	// HeapBegin/HeapEnd bound the bootstrap heap (§6.1 heap_range()): a
	// contiguous byte range the shim carved out to back the allocator
	// that serves device-tree construction before the page allocator
	// exists. After Shutdown, this range belongs to the kernel and is
	// folded into the memory map as ordinary Regular/Reserved memory
	// like any other boot-shim reservation.
	HeapBegin, HeapEnd uint64

	// ReservedRanges enumerates the ranges the shim reserved for its own
	// use or for firmware (§6.1 reserved_range_iter()).
	ReservedRanges []ReservedRange
}

// FDTBytes returns the raw FDT blob handed over by the boot shim (§6.3
// fdt()), possibly empty.
func (i Info) FDTBytes() []byte {
	return i.FDT
}

// HeapRange returns the bootstrap heap's byte bounds (§6.3 heap_range()).
func (i Info) HeapRange() (begin, end uint64) {
	return i.HeapBegin, i.HeapEnd
}

// ReservedRangeIter calls visit once per boot-shim reserved range (§6.3
// reserved_range_iter()), in the order the shim enumerated them. visit
// returning false stops iteration early.
func (i Info) ReservedRangeIter(visit func(ReservedRange) bool) {
	for _, r := range i.ReservedRanges {
		if !visit(r) {
			return
		}
	}
}

// errNoMemoryNode reports that a device tree's root has no "memory" or
// "memory@*" child, leaving the resulting map with no Free Regular memory
// at all — a boot-fatal condition, per spec §7 strata 1.
var errNoMemoryNode = &kernel.Error{Module: "boot", Message: "device tree has no memory node"}

// MemoryMapFromDeviceTree performs the composition described in spec §4.7:
// every direct child of the root named "memory" or "memory@*" contributes
// its reg entries as Free Regular memory, sized per the root's inherited
// #address-cells/#size-cells; every device-tree reservation and every
// boot-shim reserved range is then carved out as Reserved Regular memory.
// The bootstrap heap itself (info.HeapBegin..HeapEnd) is also reserved: the
// shim's Shutdown only promises to release it after this call, and ranges
// cannot be handed to the buddy allocator before the map that seeds it is
// finalized.
func MemoryMapFromDeviceTree(tree *devicetree.Tree, info Info) (*mem.Map, *kernel.Error) {
	m := mem.NewMap()

	addressCells, sizeCells := tree.Root.AddressSizeCells()

	foundMemoryNode := false
	for _, name := range tree.Root.ChildNames() {
		if !isMemoryNodeName(name) {
			continue
		}
		child, _ := tree.Root.Child(name)

		entries, err := child.DecodeReg(addressCells, sizeCells)
		if err != nil {
			return nil, err
		}
		foundMemoryNode = true
		for _, e := range entries {
			if err := m.AddMemory(e.Address, e.Address+e.Size, mem.Regular); err != nil {
				return nil, err
			}
		}
	}
	if !foundMemoryNode {
		return nil, errNoMemoryNode
	}

	for _, r := range tree.ReservedMemory() {
		if r.Size == 0 {
			continue
		}
		if err := m.ReserveMemory(r.Address, r.Address+r.Size, mem.Regular); err != nil {
			return nil, err
		}
	}

	for _, r := range info.ReservedRanges {
		if r.Begin >= r.End {
			continue
		}
		if err := m.ReserveMemory(r.Begin, r.End, mem.Regular); err != nil {
			return nil, err
		}
	}

	if info.HeapEnd > info.HeapBegin {
		if err := m.ReserveMemory(info.HeapBegin, info.HeapEnd, mem.Regular); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// isMemoryNodeName reports whether a unit-name identifies a DT memory
// node: either exactly "memory" or prefixed "memory@" (the FDT convention
// for disambiguating multiple memory nodes by base address).
func isMemoryNodeName(name string) bool {
	if name == "memory" {
		return true
	}
	const prefix = "memory@"
	return len(name) > len(prefix) && name[:len(prefix)] == prefix
}
