// Package list implements the doubly-linked free-list the buddy allocator
// keeps one of per level. Nodes live inside a caller-owned Page array and
// are referenced by index, so pushing and popping never touches the Go
// heap.
package list

import "aarch64kernel/kernel/mem/pmm/page"

// List is a free-list head. The zero value is an empty list.
type List struct {
	head uint32
}

// IsEmpty reports whether the list has no members.
func (l *List) IsEmpty() bool {
	return l.head == page.Null
}

// Push links index onto the front of the list.
func (l *List) Push(r *page.Range, index uint32) {
	if index == page.Null {
		panic("list: cannot push the null index")
	}

	p := r.At(index)
	next := l.head

	p.Next = next
	p.Prev = page.Null
	l.head = index

	if next != page.Null {
		r.At(next).Prev = index
	}
}

// Pop unlinks and returns the front of the list, or (0, false) if empty.
func (l *List) Pop(r *page.Range) (uint32, bool) {
	if l.head == page.Null {
		return 0, false
	}

	index := l.head
	p := r.At(index)
	next := p.Next

	l.head = next
	if next != page.Null {
		r.At(next).Prev = page.Null
	}

	p.Prev = page.Null
	p.Next = page.Null
	return index, true
}

// Remove unlinks index from the list, wherever it currently sits.
func (l *List) Remove(r *page.Range, index uint32) {
	if index == page.Null {
		panic("list: cannot remove the null index")
	}

	p := r.At(index)
	prev := p.Prev
	next := p.Next

	if prev != page.Null {
		r.At(prev).Next = next
	}
	if next != page.Null {
		r.At(next).Prev = prev
	}
	if l.head == index {
		l.head = next
	}

	p.Prev = page.Null
	p.Next = page.Null
}
