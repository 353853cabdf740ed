// Package gdt unpacks hardware GDT descriptors into VMCS-ready segment
// fields and synthesizes the host GDT a VMX host-state area needs.
package gdt

import (
	"encoding/binary"

	"github.com/nmi/vtxcore/vmxasm"
)

const (
	entrySize = 8

	accessPresent     = 1 << 7
	segmentUnusable   = 1 << 16
	granularityMask   = 0xF0
	accessRightsMask  = 0xF0FF
)

// Entry is the packed, 8-byte hardware GDT descriptor layout: limit_low,
// base_low, base_middle, access, granularity, base_high.
type Entry [8]byte

func (e Entry) limitLow() uint16    { return binary.LittleEndian.Uint16(e[0:2]) }
func (e Entry) baseLow() uint16     { return binary.LittleEndian.Uint16(e[2:4]) }
func (e Entry) baseMiddle() byte    { return e[4] }
func (e Entry) access() byte        { return e[5] }
func (e Entry) granularity() byte   { return e[6] }
func (e Entry) baseHigh() byte      { return e[7] }

// Unpacked is the VMCS-ready form of one segment: base, limit, access
// rights, and selector, in the shape vmcs.PopulateGuest writes directly
// into the guest segment fields.
type Unpacked struct {
	Base         uint64
	Limit        uint32
	AccessRights uint32
	Selector     uint16
}

// Unpack resolves the descriptor selector indexes into a GDT of entries
// (which covers only the low 32 bits of base for non-system descriptors;
// this core never installs 16-byte system descriptors other than the one
// HostGDT.Build appends, so that is not modeled here), producing the
// VMCS-ready segment fields. A selector whose index is 0, or whose
// descriptor has the present bit clear, is unusable.
func Unpack(table []Entry, selector uint16) Unpacked {
	index := selector / entrySize
	if index == 0 || int(index) >= len(table) {
		return Unpacked{Selector: selector, AccessRights: segmentUnusable}
	}

	e := table[index]

	base := uint64(e.baseLow()) | uint64(e.baseMiddle())<<16 | uint64(e.baseHigh())<<24
	limit := uint32(e.limitLow()) | uint32(e.granularity()&0x0F)<<16

	access := uint32(e.access()) | uint32(e.granularity()&granularityMask)<<8
	access &= accessRightsMask

	if e.access()&accessPresent == 0 {
		access |= segmentUnusable
	}

	return Unpacked{Base: base, Limit: limit, AccessRights: access, Selector: selector}
}

// Current reads the GDT descriptor pointer and decodes it into a slice of
// Entry, via ops.SGDT.
func Current(ops vmxasm.Ops, mem LinearReader) []Entry {
	ptr := ops.SGDT()
	count := (int(ptr.Limit) + 1) / entrySize
	buf := mem.ReadLinear(ptr.Base, count*entrySize)

	entries := make([]Entry, count)
	for i := range entries {
		copy(entries[i][:], buf[i*entrySize:(i+1)*entrySize])
	}

	return entries
}

// LinearReader reads count bytes of host linear memory starting at base.
// hostsvc.Services satisfies this for the real backend; tests supply a
// closure or a byte-slice-backed stub.
type LinearReader interface {
	ReadLinear(base uint64, count int) []byte
}
