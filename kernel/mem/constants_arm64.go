//go:build arm64

package mem

const (
	// PageShift is equal to log2(PageSize). This constant is used when we
	// need to convert a physical address to a page index (shift right by
	// PageShift) and vice-versa.
	PageShift = 12

	// PageSize defines the system's page size in bytes. aarch64 supports
	// 4K, 16K and 64K granules; this kernel only targets the 4K granule
	// (see spec Non-goals: multi-page-size support is out of scope).
	PageSize = Size(1 << PageShift)
)
