// Package hostsvc declares the host-OS services this core consumes rather
// than implements: address translation, locked/pinned page allocation, and
// per-logical-CPU affinity. Driver entry, IRP handling, and OS loading stay
// entirely on the other side of this interface.
package hostsvc

// Services is everything vcpu needs from the host kernel. A production
// backend (linux_amd64.go) satisfies it over golang.org/x/sys/unix; tests
// use Mock.
type Services interface {
	// VirtToPhys resolves a linear address in the host's own address space
	// to a physical address, for VMXON/VMCLEAR/VMPTRLD/EPT-pointer fields
	// that take physical, not linear, addresses.
	VirtToPhys(virt uintptr) (uint64, error)

	// AllocPinnedPage allocates one page-aligned, page-locked page (never
	// paged out, never moved), returning both its linear address and its
	// physical address.
	AllocPinnedPage() (virt uintptr, phys uint64, err error)

	// AllocPinnedRegion allocates size bytes (rounded up to whole pages) of
	// pinned memory and returns the linear and physical address of its
	// start. Whether pages past the first are physically contiguous depends
	// on the backend; the Linux backend does not guarantee it.
	AllocPinnedRegion(size int) (virt uintptr, phys uint64, err error)

	// ReadLinear reads count bytes of host linear memory starting at base;
	// it satisfies gdt.LinearReader.
	ReadLinear(base uint64, count int) []byte

	// WriteLinear writes data into host linear memory starting at base, for
	// placing synthesized structures (the host GDT, a TSS) that the VMCS
	// host-state area then points at.
	WriteLinear(base uint64, data []byte)

	// PinCurrentThread binds the calling goroutine's OS thread to logical
	// CPU id for the duration of the per-CPU VMX lifecycle, and returns a
	// function that releases the binding.
	PinCurrentThread(cpu int) (unpin func(), err error)

	// NumLogicalCPUs reports how many logical CPUs the host has.
	NumLogicalCPUs() int
}
