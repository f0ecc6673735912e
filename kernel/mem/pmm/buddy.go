package pmm

import (
	"aarch64kernel/kernel/mem/pmm/list"
	"aarch64kernel/kernel/mem/pmm/page"
)

// Levels is the number of buddy free-lists: level k holds free blocks of
// exactly 2^k pages, aligned to 2^k.
const Levels = 20

// Buddy is a per-zone buddy-system page allocator. Its free-lists are
// threaded through the caller-owned page.Range handed to every operation;
// Buddy itself owns no page storage.
type Buddy struct {
	free [Levels]list.List
}

// AllocatePages removes and returns the index of a free block of exactly
// 2^order pages, splitting a larger block if no exact match is free. It
// reports false if no large enough block exists at any level.
func (b *Buddy) AllocatePages(r *page.Range, order uint64) (uint32, bool) {
	for level := order; level < Levels; level++ {
		index, ok := b.free[level].Pop(r)
		if !ok {
			continue
		}

		p := r.At(index)
		b.splitDown(r, p, index, order)
		p.SetBusy()
		p.SetLevel(order)
		return index, true
	}

	return 0, false
}

// splitDown breaks the block headed by (p, index), currently at p.Level(),
// down to order, pushing each freed upper half onto its own level's
// free-list.
func (b *Buddy) splitDown(r *page.Range, p *page.Page, index uint32, order uint64) {
	for level := p.Level(); level > order; level-- {
		buddyIndex := buddyIndex(index, level-1)
		buddy := r.At(buddyIndex)

		buddy.SetLevel(level - 1)
		buddy.SetFree()
		b.free[level-1].Push(r, buddyIndex)
	}
}

// FreePages returns the block headed by index to the allocator, coalescing
// with its buddy at each level as long as the buddy lies within the range
// and is itself free.
func (b *Buddy) FreePages(r *page.Range, index uint32) {
	p := r.At(index)
	level := p.Level()

	for level < Levels-1 {
		buddyIdx := buddyIndex(index, level)
		if !r.Contains(buddyIdx) {
			break
		}

		buddy := r.At(buddyIdx)
		if !buddy.IsFree() || buddy.Level() != level {
			break
		}

		b.free[level].Remove(r, buddyIdx)
		if buddyIdx < index {
			index = buddyIdx
		}
		level++
	}

	p = r.At(index)
	p.SetFree()
	p.SetLevel(level)
	b.free[level].Push(r, index)
}

// FreePagesAtLevel directly seeds a free block of 2^level pages at index
// into the allocator, bypassing the coalescing walk FreePages performs.
// Used only during initial zone construction; the caller must guarantee
// index is 2^level-aligned, lies in the zone, and that none of its pages
// are already linked into a free-list.
func (b *Buddy) FreePagesAtLevel(r *page.Range, index uint32, level uint64) {
	p := r.At(index)
	p.SetFree()
	p.SetLevel(level)
	b.free[level].Push(r, index)
}

// buddyIndex returns the index of the buddy of the block headed at index,
// at the given level.
func buddyIndex(index uint32, level uint64) uint32 {
	return index ^ (1 << level)
}
