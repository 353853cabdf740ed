package vcpu

import (
	"encoding/binary"
	"fmt"

	"github.com/nmi/vtxcore/paging"
)

// buildIdentityEPT allocates the PML4, PDPT, and 512 page-directory pages
// backing the identity EPT, populates them via paging.BuildIdentity, writes
// them into pinned host memory, and returns the EPTP value for VMCS
// FieldEPTPointer. c.pageTables keeps the in-memory copy so tests can
// inspect it without re-reading host memory.
func (c *CPU) buildIdentityEPT() (uint64, error) {
	pml4Virt, pml4Phys, err := c.Mem.AllocPinnedPage()
	if err != nil {
		return 0, fmt.Errorf("allocate PML4: %w", err)
	}

	pdptVirt, pdptPhys, err := c.Mem.AllocPinnedPage()
	if err != nil {
		return 0, fmt.Errorf("allocate PDPT: %w", err)
	}

	var addr paging.Addresses
	addr.PML4 = pml4Phys
	addr.PDPT = pdptPhys

	pdVirt := make([]uintptr, len(addr.PD))

	for i := range addr.PD {
		virt, phys, err := c.Mem.AllocPinnedPage()
		if err != nil {
			return 0, fmt.Errorf("allocate PD[%d]: %w", i, err)
		}

		pdVirt[i] = virt
		addr.PD[i] = phys
	}

	paging.BuildIdentity(&c.pageTables, addr)

	c.writeTable(uint64(pml4Virt), &c.pageTables.PML4)
	c.writeTable(uint64(pdptVirt), &c.pageTables.PDPT)

	for i, virt := range pdVirt {
		c.writeTable(uint64(virt), &c.pageTables.PD[i])
	}

	eptp := pml4Phys | eptMemTypeWriteBack | eptWalkLength4

	return eptp, nil
}

func (c *CPU) writeTable(linear uint64, t *paging.Table) {
	buf := make([]byte, len(t.Entries)*8)
	for i, e := range t.Entries {
		binary.LittleEndian.PutUint64(buf[i*8:(i+1)*8], uint64(e))
	}

	c.Mem.WriteLinear(linear, buf)
}
