package pmm

import (
	"sort"
	"testing"

	"aarch64kernel/kernel/mem/pmm/page"
)

func TestBuddyIndex(t *testing.T) {
	specs := []struct {
		index, order uint64
		exp          uint64
	}{
		{0, 0, 1}, {1, 0, 0}, {2, 0, 3}, {3, 0, 2},
		{4, 0, 5}, {5, 0, 4}, {6, 0, 7}, {7, 0, 6},
		{0, 1, 2}, {2, 1, 0}, {4, 1, 6}, {6, 1, 4},
		{0, 2, 4}, {4, 2, 0},
	}

	for specIndex, spec := range specs {
		got := buddyIndex(uint32(spec.index), spec.order)
		if uint64(got) != spec.exp {
			t.Errorf("[spec %d] expected %d; got %d", specIndex, spec.exp, got)
		}
	}
}

func TestBuddyNewIsAllEmpty(t *testing.T) {
	var b Buddy
	for level := 0; level < Levels; level++ {
		if !b.free[level].IsEmpty() {
			t.Fatalf("expected level %d to start empty", level)
		}
	}
}

func TestBuddyAllocFree(t *testing.T) {
	pages := make([]page.Page, 8)
	r := page.New(pages, 8)
	var b Buddy

	pages[0].SetLevel(3)
	b.FreePages(&r, 8)

	for round := 0; round < 2; round++ {
		var allocated []uint32
		for i := 0; i < len(pages); i++ {
			idx, ok := b.AllocatePages(&r, 0)
			if !ok {
				t.Fatalf("[round %d] expected allocation %d to succeed", round, i)
			}
			allocated = append(allocated, idx)
		}
		if _, ok := b.AllocatePages(&r, 0); ok {
			t.Fatalf("[round %d] expected the zone to be exhausted", round)
		}

		sort.Slice(allocated, func(i, j int) bool { return allocated[i] < allocated[j] })
		want := []uint32{8, 9, 10, 11, 12, 13, 14, 15}
		for i := range want {
			if allocated[i] != want[i] {
				t.Errorf("[round %d] expected %v; got %v", round, want, allocated)
				break
			}
		}

		for _, idx := range allocated {
			b.FreePages(&r, idx)
		}
	}
}

func TestBuddyAllocationAlignment(t *testing.T) {
	pages := make([]page.Page, 8)
	r := page.New(pages, 8)
	var b Buddy

	pages[0].SetLevel(3)
	b.FreePages(&r, 8)

	for order := uint64(1); order <= 3; order++ {
		idx, ok := b.AllocatePages(&r, order)
		if !ok {
			t.Fatalf("[order %d] expected allocation to succeed", order)
		}
		if idx&uint32((1<<order)-1) != 0 {
			t.Errorf("[order %d] expected alignment to 2^%d; got index %d", order, order, idx)
		}
		b.FreePages(&r, idx)
	}
}

// TestBuddyCoalesceRecordsLowerBuddy coalesces blocks of different orders
// where the last block freed is the higher-addressed buddy. Coalescing must
// record the merged block at the lower, naturally-aligned index: seed an
// 8-page zone at level 3, split off an order-1 block at 8 and an order-2
// block at 12, free 8 then 12, and expect allocate(3) to return 8, not 12.
func TestBuddyCoalesceRecordsLowerBuddy(t *testing.T) {
	pages := make([]page.Page, 8)
	r := page.New(pages, 8)
	var b Buddy

	pages[0].SetLevel(3)
	b.FreePages(&r, 8)

	order1, ok := b.AllocatePages(&r, 1)
	if !ok || order1 != 8 {
		t.Fatalf("expected order-1 allocation at 8; got %d, ok=%v", order1, ok)
	}
	order2, ok := b.AllocatePages(&r, 2)
	if !ok || order2 != 12 {
		t.Fatalf("expected order-2 allocation at 12; got %d, ok=%v", order2, ok)
	}

	b.FreePages(&r, order1)
	b.FreePages(&r, order2)

	idx, ok := b.AllocatePages(&r, 3)
	if !ok {
		t.Fatal("expected order-3 allocation to succeed after full coalescing")
	}
	if idx != 8 {
		t.Errorf("expected coalesced block to be recorded at index 8; got %d", idx)
	}
}
