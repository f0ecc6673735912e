package numeric

import "testing"

func TestLog2(t *testing.T) {
	specs := []struct {
		v   uint64
		exp uint64
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 1},
		{4, 2},
		{8, 3},
		{1023, 9},
		{1024, 10},
		{1 << 19, 19},
	}

	for specIndex, spec := range specs {
		if got := Log2(spec.v); got != spec.exp {
			t.Errorf("[spec %d] expected Log2(%d) to be %d; got %d", specIndex, spec.v, spec.exp, got)
		}
	}
}

func TestLsb(t *testing.T) {
	specs := []struct {
		v   uint64
		exp uint64
	}{
		{0, 64},
		{1, 0},
		{2, 1},
		{4, 2},
		{6, 1},
		{8, 3},
		{1 << 12, 12},
		{3 << 12, 12},
	}

	for specIndex, spec := range specs {
		if got := Lsb(spec.v); got != spec.exp {
			t.Errorf("[spec %d] expected Lsb(%d) to be %d; got %d", specIndex, spec.v, spec.exp, got)
		}
	}
}

func TestAlignUp(t *testing.T) {
	specs := []struct {
		v, align, exp uint64
	}{
		{0, 0, 0},
		{5, 0, 5},
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{4096, 4096, 4096},
		{4097, 4096, 8192},
	}

	for specIndex, spec := range specs {
		if got := AlignUp(spec.v, spec.align); got != spec.exp {
			t.Errorf("[spec %d] expected AlignUp(%d, %d) to be %d; got %d", specIndex, spec.v, spec.align, spec.exp, got)
		}
	}
}

func TestAlignDown(t *testing.T) {
	specs := []struct {
		v, align, exp uint64
	}{
		{0, 0, 0},
		{5, 0, 5},
		{0, 8, 0},
		{1, 8, 0},
		{8, 8, 8},
		{9, 8, 8},
		{4095, 4096, 0},
		{8192, 4096, 8192},
	}

	for specIndex, spec := range specs {
		if got := AlignDown(spec.v, spec.align); got != spec.exp {
			t.Errorf("[spec %d] expected AlignDown(%d, %d) to be %d; got %d", specIndex, spec.v, spec.align, spec.exp, got)
		}
	}
}
