package pmm

import (
	"aarch64kernel/kernel/mem/pmm/page"
	"aarch64kernel/kernel/numeric"
)

// Zone owns one contiguous page range and the buddy allocator backing it.
type Zone struct {
	start, end uint64
	pageSize   uint64

	pages page.Range
	buddy Buddy
}

// newZone constructs a zone descriptor over a pre-allocated, zeroed page
// array. start/end are the zone's page-aligned byte bounds; offset is the
// global page index of pages[0].
func newZone(start, end, pageSize uint64, pages []page.Page, offset uint32) *Zone {
	return &Zone{
		start:    start,
		end:      end,
		pageSize: pageSize,
		pages:    page.New(pages, offset),
	}
}

func (z *Zone) containsIndex(index uint32) bool {
	return z.pages.Contains(index)
}

func (z *Zone) allocatePages(order uint64) (uint32, bool) {
	return z.buddy.AllocatePages(&z.pages, order)
}

func (z *Zone) freePages(index uint32) {
	z.buddy.FreePages(&z.pages, index)
}

func (z *Zone) seedFreeRange(firstIndex uint32, pageCount uint64) {
	s := uint64(firstIndex)
	for pageCount > 0 {
		order := seedOrder(s, pageCount)
		z.buddy.FreePagesAtLevel(&z.pages, uint32(s), order)
		run := uint64(1) << order
		s += run
		pageCount -= run
	}
}

// seedOrder picks the order of the largest naturally-aligned power-of-two
// block starting at page index s, given count pages remain to be seeded and
// that orders above Levels-1 don't exist.
func seedOrder(s, count uint64) uint64 {
	order := uint64(Levels - 1)
	if l := numeric.Log2(count); l < order {
		order = l
	}
	if a := numeric.Lsb(s); a < order {
		order = a
	}
	return order
}
