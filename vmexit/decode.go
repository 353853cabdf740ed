package vmexit

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Decoder disassembles the guest instruction at an unhandled exit so a log
// line names the instruction rather than just its address, the same role
// debug_amd64.go's Inst/Asm play for ptrace-trapped instructions.
type Decoder struct {
	// ReadGuestBytes returns up to 16 bytes of guest linear memory starting
	// at addr; a short read is fine, x86asm.Decode reports ErrTruncated.
	ReadGuestBytes func(addr uint64) []byte
}

// Describe returns a GNU-syntax rendering of the instruction at rip, or a
// diagnostic string if it couldn't be decoded.
func (d *Decoder) Describe(rip uint64) string {
	if d.ReadGuestBytes == nil {
		return "(no guest memory reader configured)"
	}

	buf := d.ReadGuestBytes(rip)

	inst, err := x86asm.Decode(buf, 64)
	if err != nil {
		return fmt.Sprintf("(failed to decode %#x: %v)", buf, err)
	}

	return x86asm.GNUSyntax(inst, rip, nil)
}
