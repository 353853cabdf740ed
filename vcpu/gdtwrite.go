package vcpu

import "github.com/nmi/vtxcore/gdt"

// writeHostGDT serializes h's entries into the page at gdtLinear and its
// TSS into the page at tssVirt, so the VMCS host-state area's HOST_GDTR_BASE
// and the TR descriptor it contains point at real, live memory.
func (c *CPU) writeHostGDT(gdtLinear uint64, h gdt.HostGDT, tssVirt uintptr) {
	buf := make([]byte, len(h.Entries)*8)
	for i, e := range h.Entries {
		copy(buf[i*8:(i+1)*8], e[:])
	}

	c.Mem.WriteLinear(gdtLinear, buf)
	c.Mem.WriteLinear(uint64(tssVirt), h.TSS[:])
}
