// Package cpu exposes the small set of privileged operations the kernel
// needs straight from the processor.
package cpu

// Halt stops instruction execution. There is no return from a call to Halt.
//
// A real port issues "wfe" in a loop so the core drops to a low-power wait
// state between wakeup events; doing that from Go requires architecture
// assembly this tree doesn't carry yet, so Halt spins instead. Behaviourally
// equivalent for a kernel panic, which never expects to resume.
func Halt() {
	for {
	}
}
