// Package numeric provides the small set of bit-twiddling helpers that the
// rest of the kernel builds on: base-2 logarithms, least-significant-bit
// extraction and alignment of 64-bit addresses and sizes. None of these
// allocate or can panic on valid u64 input; they are leaves with no
// dependency on any other kernel package.
package numeric

// Log2 returns floor(log2(v)). Log2(0) returns 0: callers that need a
// strict logarithm must guard the zero case themselves.
func Log2(v uint64) uint64 {
	var n uint64
	for v >>= 1; v != 0; v >>= 1 {
		n++
	}
	return n
}

// Lsb returns the index of the least-significant set bit of v, i.e. the
// largest k such that (1<<k) divides v. Lsb(0) returns 64.
func Lsb(v uint64) uint64 {
	if v == 0 {
		return 64
	}

	var n uint64
	for v&1 == 0 {
		v >>= 1
		n++
	}
	return n
}

// AlignUp rounds v up to the next multiple of align. align must be a power
// of two; align == 0 is treated as "no alignment" and returns v unchanged.
func AlignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// AlignDown rounds v down to the previous multiple of align. align must be
// a power of two; align == 0 is treated as "no alignment" and returns v
// unchanged.
func AlignDown(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return v &^ (align - 1)
}
