package hostsvc

import (
	"encoding/binary"
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux is the real Services backend: physical addresses come from
// /proc/self/pagemap, pinned pages come from an anonymous mmap with
// MAP_LOCKED|MAP_POPULATE, and thread pinning comes from
// unix.SchedSetaffinity on the calling goroutine's locked OS thread.
type Linux struct {
	pagemap *os.File
}

var _ Services = (*Linux)(nil)

// NewLinux opens /proc/self/pagemap once; callers should keep one Linux
// per process, not one per vcpu.
func NewLinux() (*Linux, error) {
	f, err := os.Open("/proc/self/pagemap")
	if err != nil {
		return nil, fmt.Errorf("hostsvc: open pagemap: %w", err)
	}

	return &Linux{pagemap: f}, nil
}

func (l *Linux) Close() error { return l.pagemap.Close() }

const (
	pagemapEntrySize  = 8
	pagemapPresentBit = 1 << 63
	pagemapPFNMask    = (1 << 55) - 1
)

func (l *Linux) VirtToPhys(virt uintptr) (uint64, error) {
	vpn := uint64(virt) / pageSize
	offset := int64(vpn * pagemapEntrySize)

	var buf [pagemapEntrySize]byte
	if _, err := l.pagemap.ReadAt(buf[:], offset); err != nil {
		return 0, fmt.Errorf("hostsvc: read pagemap at vpn %#x: %w", vpn, err)
	}

	entry := binary.LittleEndian.Uint64(buf[:])
	if entry&pagemapPresentBit == 0 {
		return 0, fmt.Errorf("hostsvc: page at %#x is not resident", virt)
	}

	pfn := entry & pagemapPFNMask

	return pfn*pageSize + uint64(virt)%pageSize, nil
}

func (l *Linux) AllocPinnedPage() (uintptr, uint64, error) {
	return l.AllocPinnedRegion(pageSize)
}

// AllocPinnedRegion mmaps size bytes, locked and pre-faulted. Ordinary
// anonymous mmap does not guarantee the underlying pages are physically
// contiguous beyond the first; this core only relies on that for a single
// page at a time (each identity-map table level gets its own allocation),
// so that limitation never bites here.
func (l *Linux) AllocPinnedRegion(size int) (uintptr, uint64, error) {
	pages := (size + pageSize - 1) / pageSize
	size = pages * pageSize

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_LOCKED|unix.MAP_POPULATE)
	if err != nil {
		return 0, 0, fmt.Errorf("hostsvc: mmap pinned region: %w", err)
	}

	virt := uintptr(unsafe.Pointer(&data[0]))

	phys, err := l.VirtToPhys(virt)
	if err != nil {
		_ = unix.Munmap(data)
		return 0, 0, err
	}

	return virt, phys, nil
}

func (l *Linux) ReadLinear(base uint64, count int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(base))), count)
}

func (l *Linux) WriteLinear(base uint64, data []byte) {
	dst := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(base))), len(data))
	copy(dst, data)
}

func (l *Linux) PinCurrentThread(cpu int) (func(), error) {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("hostsvc: SchedSetaffinity(cpu=%d): %w", cpu, err)
	}

	return func() { runtime.UnlockOSThread() }, nil
}

func (l *Linux) NumLogicalCPUs() int { return runtime.NumCPU() }
