package gdt

import "encoding/binary"

// tssDescriptorSlots is 2: a 64-bit TSS descriptor occupies two consecutive
// 8-byte GDT slots (the second holds the high 32 bits of base and is
// reserved otherwise).
const tssDescriptorSlots = 2

// TaskStateSegment is a minimal 64-bit TSS: large enough to be a valid
// VMX host-state TR target, with every privilege/interrupt stack pointer
// left zero since this core never takes a ring change or IST-routed
// interrupt while host code is running under the VMCS.
type TaskStateSegment [104]byte

// HostGDT is a GDT synthesized from the current one plus one appended TSS
// descriptor, because host OS GDTs commonly carry TR==0, which is illegal
// VMX host state: HOST_TR_SELECTOR must be non-null, so a present,
// available 64-bit TSS descriptor is appended for it to select.
type HostGDT struct {
	Entries []Entry
	TSS     TaskStateSegment

	CS, SS, DS, ES, FS, GS, TR uint16
}

// Build clones current, appends a TSS descriptor describing tssLinearAddr,
// and returns the synthesized table plus the TR selector to load. The
// caller (vcpu) still owns placing both Entries and TSS at addresses the
// VMCS host GDTR/TR fields can reference; Build only constructs the bytes.
func Build(current []Entry, segs struct{ CS, SS, DS, ES, FS, GS uint16 }, tssLinearAddr uint64) HostGDT {
	h := HostGDT{
		Entries: append(append([]Entry{}, current...), Entry{}, Entry{}),
		CS:      segs.CS, SS: segs.SS, DS: segs.DS, ES: segs.ES, FS: segs.FS, GS: segs.GS,
	}

	trIndex := len(current)
	h.TR = uint16(trIndex * entrySize)

	lo, hi := tssDescriptor(tssLinearAddr, uint32(len(h.TSS)-1))
	h.Entries[trIndex] = lo
	h.Entries[trIndex+1] = hi

	return h
}

// tssDescriptor builds the two 8-byte slots of a 64-bit available TSS
// descriptor: type 0x9 (available 64-bit TSS), present, DPL 0.
func tssDescriptor(base uint64, limit uint32) (lo, hi Entry) {
	const (
		typeAvailableTSS64 = 0x9
		present            = 1 << 7
	)

	binary.LittleEndian.PutUint16(lo[0:2], uint16(limit))
	binary.LittleEndian.PutUint16(lo[2:4], uint16(base))
	lo[4] = byte(base >> 16)
	lo[5] = present | typeAvailableTSS64
	lo[6] = byte((limit>>16)&0x0F) | 0x00
	lo[7] = byte(base >> 24)

	binary.LittleEndian.PutUint32(hi[0:4], uint32(base>>32))

	return lo, hi
}
