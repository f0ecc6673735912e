// Package pmm is the physical page allocator: a set of per-zone buddy
// systems, constructed once at boot from the memory map built by the
// device-tree decoder and the boot shim's reserved ranges, that thereafter
// owns every free Regular page in the system.
package pmm

import (
	"reflect"
	"unsafe"

	"aarch64kernel/kernel"
	"aarch64kernel/kernel/mem"
	"aarch64kernel/kernel/mem/pmm/page"
	"aarch64kernel/kernel/sync"
)

var (
	errUnmappedAddress = &kernel.Error{Module: "pmm", Message: "address does not belong to any zone"}
	errNoFreePages     = &kernel.Error{Module: "pmm", Message: "zones exhausted: no free pages of the requested order"}
)

// Memory owns the complete set of zones for the system plus the page size
// they're sized in. It is constructed exactly once at boot; thereafter
// AllocatePages/FreePages are its only mutators, each individually
// serialized per zone via guards.
type Memory struct {
	zones    []Zone
	guards   []sync.Spinlock
	pageSize uint64
}

// New builds a Memory from a finalized memory map, per spec §4.6. Because
// the page allocator does not exist until this call returns, the zone
// descriptors and per-page metadata arrays cannot come from the Go heap:
// m is cloned into a scratch bump allocator, storage for both arrays is
// carved out of it, zeroed, and a slice is overlaid on the resulting
// address the same way kernel.Memset/Memcopy overlay a slice on a raw
// address. Only the thin per-zone spinlocks are ordinary Go-heap state.
//
// After New returns, m is no longer needed; the page allocator is
// self-sufficient.
func New(m *mem.Map, pageSize uint64) (*Memory, *kernel.Error) {
	scratch := m.Clone()
	zoneRanges := m.Zones()

	zoneDescBytes := uint64(len(zoneRanges)) * uint64(unsafe.Sizeof(Zone{}))
	zonesAddr, ok := scratch.Allocate(zoneDescBytes, pageSize)
	if !ok {
		return nil, errNoFreePages
	}
	kernel.Memset(uintptr(zonesAddr), 0, uintptr(zoneDescBytes))
	zones := *(*[]Zone)(unsafe.Pointer(&reflect.SliceHeader{
		Data: uintptr(zonesAddr),
		Len:  len(zoneRanges),
		Cap:  len(zoneRanges),
	}))

	built := 0
	for _, zr := range zoneRanges {
		start := alignUp(zr.Begin, pageSize)
		end := alignDown(zr.End, pageSize)
		if end <= start {
			continue
		}

		pageCount := (end - start) / pageSize
		pagesBytes := pageCount * uint64(unsafe.Sizeof(page.Page{}))

		pagesAddr, ok := scratch.AllocateWithHint(zr.Begin, zr.End, pagesBytes, pageSize)
		if !ok {
			return nil, errNoFreePages
		}
		kernel.Memset(uintptr(pagesAddr), 0, uintptr(pagesBytes))
		pages := *(*[]page.Page)(unsafe.Pointer(&reflect.SliceHeader{
			Data: uintptr(pagesAddr),
			Len:  int(pageCount),
			Cap:  int(pageCount),
		}))

		offset := uint32(start / pageSize)
		zones[built] = *newZone(start, end, pageSize, pages, offset)
		built++
	}

	mm := &Memory{
		zones:    zones[:built],
		guards:   make([]sync.Spinlock, built),
		pageSize: pageSize,
	}
	mm.seed(m, pageSize)

	return mm, nil
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

func alignDown(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return v &^ (align - 1)
}

// seed walks m's still-Free regions and hands each one, clipped to a zone's
// page-aligned bounds, to that zone's buddy free-lists.
func (m *Memory) seed(original *mem.Map, pageSize uint64) {
	for i := range m.zones {
		z := &m.zones[i]

		original.FreeMemoryInRange(z.start, z.end, func(r mem.Range) bool {
			s := alignUp(r.Begin, pageSize)
			e := alignDown(r.End, pageSize)
			if e <= s {
				return true
			}

			firstIndex := uint32(s / pageSize)
			pageCount := (e - s) / pageSize
			z.seedFreeRange(firstIndex, pageCount)
			return true
		})
	}
}

// AllocatePages tries each zone in turn and returns the byte address of a
// freshly-allocated block of 2^order pages from the first zone that has
// one.
func (m *Memory) AllocatePages(order uint64) (uint64, bool) {
	for i := range m.zones {
		m.guards[i].Acquire()
		index, ok := m.zones[i].allocatePages(order)
		m.guards[i].Release()
		if ok {
			return m.PageToAddress(index), true
		}
	}
	return 0, false
}

// FreePages returns the page-aligned block starting at addr to its owning
// zone. addr must have been returned by a prior AllocatePages; an address
// outside every zone is a fatal programming error, reported via a kernel
// error rather than a panic so the caller can decide how to fail.
func (m *Memory) FreePages(addr uint64) *kernel.Error {
	index := m.AddressToPage(addr)

	for i := range m.zones {
		if !m.zones[i].containsIndex(index) {
			continue
		}

		m.guards[i].Acquire()
		m.zones[i].freePages(index)
		m.guards[i].Release()
		return nil
	}

	return errUnmappedAddress
}

// PageSize returns the system's page size in bytes.
func (m *Memory) PageSize() uint64 {
	return m.pageSize
}

// PageToAddress converts a global page index to its byte address.
func (m *Memory) PageToAddress(index uint32) uint64 {
	return uint64(index) * m.pageSize
}

// AddressToPage converts a byte address to its global page index.
func (m *Memory) AddressToPage(addr uint64) uint32 {
	return uint32(addr / m.pageSize)
}
