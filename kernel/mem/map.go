package mem

import "aarch64kernel/kernel"

var (
	// errKindMismatch is returned when a range being added overlaps an
	// existing entry whose Kind differs.
	errKindMismatch = &kernel.Error{Module: "mem_map", Message: "memory types of overlapping ranges don't match"}

	// errReservedCannotFree is returned when a range being freed overlaps
	// an existing Reserved entry.
	errReservedCannotFree = &kernel.Error{Module: "mem_map", Message: "reserved memory cannot be freed"}
)

// Map is an ordered, non-overlapping, maximally-coalesced interval map over
// physical memory, as reported by the boot firmware. It tracks two parallel
// views:
//
//   - memory: Free/Reserved status, used to answer "can I allocate here".
//   - zones:  Kind only (Status is always Unknown), used to partition the
//     address space into the contiguous regions that become buddy zones.
//
// Map additionally serves as a bump-style bootstrap allocator (Allocate /
// AllocateWithHint) so that the page allocator can size and place its own
// descriptor arrays before it exists.
type Map struct {
	memory []Range
	zones  []Range
}

// NewMap returns an empty memory map.
func NewMap() *Map {
	return &Map{}
}

// Clone returns a deep copy of m, suitable for use as a scratch allocator
// while the canonical map is preserved for seeding the buddy zones (see
// Memory's two-phase bootstrap).
func (m *Map) Clone() *Map {
	out := &Map{
		memory: make([]Range, len(m.memory)),
		zones:  make([]Range, len(m.zones)),
	}
	copy(out.memory, m.memory)
	copy(out.zones, m.zones)
	return out
}

// Zones returns the coalesced-by-kind view of the address space. Entries
// always carry Status == Unknown.
func (m *Map) Zones() []Range {
	return m.zones
}

// AddMemory records [begin, end) as Free memory of the given kind.
func (m *Map) AddMemory(begin, end uint64, kind Kind) *kernel.Error {
	if err := addRange(&m.memory, Range{Begin: begin, End: end, Kind: kind, Status: Free}); err != nil {
		return err
	}
	return addRange(&m.zones, Range{Begin: begin, End: end, Kind: kind, Status: Unknown})
}

// ReserveMemory records [begin, end) as Reserved memory of the given kind.
func (m *Map) ReserveMemory(begin, end uint64, kind Kind) *kernel.Error {
	if err := addRange(&m.memory, Range{Begin: begin, End: end, Kind: kind, Status: Reserved}); err != nil {
		return err
	}
	return addRange(&m.zones, Range{Begin: begin, End: end, Kind: kind, Status: Unknown})
}

// FreeMemoryInRange iterates the Free entries of the memory view, clipped
// to [lo, hi), in ascending address order. Empty intersections are skipped.
func (m *Map) FreeMemoryInRange(lo, hi uint64, visit func(Range) bool) {
	limits := Range{Begin: lo, End: hi}
	for _, r := range m.memory {
		if r.Status != Free {
			continue
		}
		clipped := overlap(r, limits)
		if clipped.Empty() {
			continue
		}
		clipped.Kind = r.Kind
		clipped.Status = Free
		if !visit(clipped) {
			return
		}
	}
}

// Allocate finds the lowest address a such that a = AlignUp(begin, align),
// a+size <= end for some Free Regular entry, and reserves [a, a+size).
// It returns (0, false) if no such region exists.
func (m *Map) Allocate(size, align uint64) (uint64, bool) {
	return m.allocateInRange(0, ^uint64(0), size, align)
}

// AllocateWithHint tries to satisfy the request within [hintBegin,
// hintEnd) first, falling back to the whole address space on failure.
func (m *Map) AllocateWithHint(hintBegin, hintEnd, size, align uint64) (uint64, bool) {
	if addr, ok := m.allocateInRange(hintBegin, hintEnd, size, align); ok {
		return addr, true
	}
	return m.Allocate(size, align)
}

func (m *Map) allocateInRange(lo, hi, size, align uint64) (uint64, bool) {
	var found Range
	ok := false

	m.FreeMemoryInRange(lo, hi, func(r Range) bool {
		if r.Kind != Regular {
			return true
		}

		from := alignUp(r.Begin, align)
		if from+size > r.End || from+size < from {
			return true
		}

		found = Range{Begin: from, End: from + size, Kind: r.Kind, Status: r.Status}
		ok = true
		return false
	})

	if !ok {
		return 0, false
	}

	// addRange on an already-Free entry with S=Reserved can only fail on
	// a kind mismatch, which cannot happen here since we carved the
	// range out of an entry we just observed to be Regular.
	_ = addRange(&m.memory, Range{Begin: found.Begin, End: found.End, Kind: found.Kind, Status: Reserved})
	return found.Begin, true
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// addRange inserts r into seq, splitting or merging with whatever overlaps
// it, per spec §4.3. seq is kept sorted, non-overlapping and maximally
// coalesced.
func addRange(seq *[]Range, r Range) *kernel.Error {
	if r.Empty() {
		return nil
	}

	lo, hi := equalRange(*seq, r)

	before := Range{Begin: r.Begin, End: r.Begin, Kind: r.Kind, Status: r.Status}
	after := Range{Begin: r.End, End: r.End, Kind: r.Kind, Status: r.Status}

	for i := lo; i < hi; i++ {
		existing := (*seq)[i]
		if existing.Kind != r.Kind {
			return errKindMismatch
		}
		if existing.Status == Reserved && r.Status == Free {
			return errReservedCannotFree
		}

		if existing.Begin < r.Begin {
			before = Range{Begin: existing.Begin, End: r.Begin, Kind: existing.Kind, Status: existing.Status}
		}
		if existing.End > r.End {
			after = Range{Begin: r.End, End: existing.End, Kind: existing.Kind, Status: existing.Status}
		}
	}

	replacement := make([]Range, 0, 3)
	if !before.Empty() {
		replacement = append(replacement, before)
	}
	replacement = append(replacement, r)
	if !after.Empty() {
		replacement = append(replacement, after)
	}

	replace(seq, lo, hi, replacement)
	compact(seq)

	return nil
}

// equalRange returns [lo, hi) such that every entry in seq[lo:hi] overlaps
// r, using the half-open ordering from spec §4.3: an entry is "less than" r
// if it ends at or before r begins, "greater than" r if it begins at or
// after r ends, and "equal" (overlapping) otherwise.
func equalRange(seq []Range, r Range) (int, int) {
	lo := 0
	for lo < len(seq) && seq[lo].End <= r.Begin {
		lo++
	}
	hi := lo
	for hi < len(seq) && seq[hi].Begin < r.End {
		hi++
	}
	return lo, hi
}

// replace splices items into seq in place of seq[lo:hi].
func replace(seq *[]Range, lo, hi int, items []Range) {
	tail := append([]Range{}, (*seq)[hi:]...)
	*seq = append((*seq)[:lo], items...)
	*seq = append(*seq, tail...)
}

// compact merges adjacent entries with identical (Kind, Status) whose
// ranges touch, left to right, in place.
func compact(seq *[]Range) {
	if len(*seq) == 0 {
		return
	}

	s := *seq
	to := 0
	for from := 1; from < len(s); from++ {
		if s[to].End == s[from].Begin && s[to].Kind == s[from].Kind && s[to].Status == s[from].Status {
			s[to].End = s[from].End
		} else {
			to++
			s[to] = s[from]
		}
	}
	*seq = s[:to+1]
}
