package hostsvc

import "fmt"

const pageSize = 4096

// Mock is a deterministic Services used by every test that exercises vcpu
// without a real MMU or scheduler: addresses are identity-mapped
// (virt == phys) and PinCurrentThread only records the cpu in PinCalls,
// mirroring how kvm's own
// tests substitute a plain Go struct for an ioctl-backed file descriptor.
type Mock struct {
	Memory   []byte
	NextFree uint64
	CPUs     int

	PinCalls []int
}

var _ Services = (*Mock)(nil)

func NewMock(size int, cpus int) *Mock {
	return &Mock{Memory: make([]byte, size), CPUs: cpus}
}

func (m *Mock) VirtToPhys(virt uintptr) (uint64, error) {
	if virt == 0 {
		return 0, fmt.Errorf("hostsvc: nil virtual address")
	}

	return uint64(virt), nil
}

func (m *Mock) AllocPinnedPage() (uintptr, uint64, error) {
	return m.AllocPinnedRegion(pageSize)
}

func (m *Mock) AllocPinnedRegion(size int) (uintptr, uint64, error) {
	// Round up to a whole number of pages, as a real page allocator would.
	pages := (size + pageSize - 1) / pageSize
	size = pages * pageSize

	if int(m.NextFree)+size > len(m.Memory) {
		return 0, 0, fmt.Errorf("hostsvc: mock out of memory")
	}

	addr := m.NextFree
	m.NextFree += uint64(size)

	return uintptr(addr), addr, nil
}

func (m *Mock) ReadLinear(base uint64, count int) []byte {
	if int(base)+count > len(m.Memory) {
		return make([]byte, count)
	}

	return m.Memory[base : int(base)+count]
}

func (m *Mock) WriteLinear(base uint64, data []byte) {
	if int(base)+len(data) > len(m.Memory) {
		return
	}

	copy(m.Memory[base:], data)
}

func (m *Mock) PinCurrentThread(cpu int) (func(), error) {
	m.PinCalls = append(m.PinCalls, cpu)

	return func() {}, nil
}

func (m *Mock) NumLogicalCPUs() int { return m.CPUs }
