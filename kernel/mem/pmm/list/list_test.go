package list

import (
	"testing"

	"aarch64kernel/kernel/mem/pmm/page"
)

func newTestRange() page.Range {
	return page.New(make([]page.Page, 3), 1)
}

func TestNewIsEmpty(t *testing.T) {
	var l List
	if !l.IsEmpty() {
		t.Fatal("expected a zero-valued list to be empty")
	}
}

func TestIsEmptyAfterPush(t *testing.T) {
	r := newTestRange()
	var l List

	if !l.IsEmpty() {
		t.Fatal("expected new list to be empty")
	}
	l.Push(&r, 1)
	if l.IsEmpty() {
		t.Fatal("expected list to be non-empty after push")
	}
	l.Push(&r, 2)
	l.Push(&r, 3)
	if l.IsEmpty() {
		t.Fatal("expected list to remain non-empty")
	}
}

func TestPushPop(t *testing.T) {
	r := newTestRange()
	var l List

	if _, ok := l.Pop(&r); ok {
		t.Fatal("expected pop on empty list to fail")
	}

	l.Push(&r, 1)
	l.Push(&r, 2)
	l.Push(&r, 3)

	specs := []uint32{3, 2, 1}
	for specIndex, want := range specs {
		got, ok := l.Pop(&r)
		if !ok || got != want {
			t.Errorf("[pop %d] expected %d; got %d (ok=%v)", specIndex, want, got, ok)
		}
		if p := r.At(got); p.Next != page.Null || p.Prev != page.Null {
			t.Errorf("[pop %d] expected popped page to be unlinked; next=%d prev=%d", specIndex, p.Next, p.Prev)
		}
	}

	if _, ok := l.Pop(&r); ok {
		t.Fatal("expected list to be drained")
	}
	if !l.IsEmpty() {
		t.Fatal("expected list to report empty after draining")
	}
}

func TestRemoveHead(t *testing.T) {
	r := newTestRange()
	var l List
	l.Push(&r, 1)
	l.Push(&r, 2)
	l.Push(&r, 3)

	l.Remove(&r, 3)
	if p := r.At(3); p.Next != page.Null || p.Prev != page.Null {
		t.Fatal("expected removed page to be unlinked")
	}

	want := []uint32{2, 1}
	for _, w := range want {
		got, ok := l.Pop(&r)
		if !ok || got != w {
			t.Fatalf("expected %d; got %d (ok=%v)", w, got, ok)
		}
	}
	if !l.IsEmpty() {
		t.Fatal("expected list to be empty")
	}
}

func TestRemoveMiddle(t *testing.T) {
	r := newTestRange()
	var l List
	l.Push(&r, 1)
	l.Push(&r, 2)
	l.Push(&r, 3)

	l.Remove(&r, 2)
	if p := r.At(2); p.Next != page.Null || p.Prev != page.Null {
		t.Fatal("expected removed page to be unlinked")
	}

	want := []uint32{3, 1}
	for _, w := range want {
		got, ok := l.Pop(&r)
		if !ok || got != w {
			t.Fatalf("expected %d; got %d (ok=%v)", w, got, ok)
		}
	}
}

func TestRemoveTail(t *testing.T) {
	r := newTestRange()
	var l List
	l.Push(&r, 1)
	l.Push(&r, 2)
	l.Push(&r, 3)

	l.Remove(&r, 1)
	if p := r.At(1); p.Next != page.Null || p.Prev != page.Null {
		t.Fatal("expected removed page to be unlinked")
	}

	want := []uint32{3, 2}
	for _, w := range want {
		got, ok := l.Pop(&r)
		if !ok || got != w {
			t.Fatalf("expected %d; got %d (ok=%v)", w, got, ok)
		}
	}
}

func TestRemoveOnlyMember(t *testing.T) {
	r := newTestRange()
	var l List
	l.Push(&r, 1)
	l.Remove(&r, 1)

	if p := r.At(1); p.Next != page.Null || p.Prev != page.Null {
		t.Fatal("expected removed page to be unlinked")
	}
	if _, ok := l.Pop(&r); ok {
		t.Fatal("expected list to be empty")
	}
	if !l.IsEmpty() {
		t.Fatal("expected list to report empty")
	}
}
