package page

import "testing"

func TestLevelAndFreeBit(t *testing.T) {
	var p Page

	if p.Level() != 0 || p.IsFree() {
		t.Fatal("expected a zero-valued page to have level 0 and be busy")
	}

	p.SetLevel(0xff)
	p.SetFree()
	if p.Level() != 0xff || !p.IsFree() {
		t.Fatalf("expected level=0xff free=true; got level=%d free=%v", p.Level(), p.IsFree())
	}

	p.SetLevel(0)
	if p.Level() != 0 || !p.IsFree() {
		t.Fatalf("expected level=0 free=true; got level=%d free=%v", p.Level(), p.IsFree())
	}

	p.SetBusy()
	if p.Level() != 0 || p.IsFree() {
		t.Fatalf("expected level=0 free=false; got level=%d free=%v", p.Level(), p.IsFree())
	}
}

func TestRangeContainsAndAt(t *testing.T) {
	pages := make([]Page, 8)
	r := New(pages, 1)

	specs := []struct {
		index uint32
		want  bool
	}{
		{0, false},
		{1, true},
		{8, true},
		{9, false},
	}
	for specIndex, spec := range specs {
		if got := r.Contains(spec.index); got != spec.want {
			t.Errorf("[spec %d] Contains(%d) = %v; want %v", specIndex, spec.index, got, spec.want)
		}
	}

	r.At(1).SetLevel(3)
	if pages[0].Level() != 3 {
		t.Fatalf("expected At(1) to address pages[0]; got level %d", pages[0].Level())
	}
}
