// Package guest holds the data shapes that describe a guest execution
// context: the fixed-layout register block the VMLAUNCH/VMRESUME trampoline
// saves and restores GPRs through, and the bootstrap Context captured from
// the host's own CPU state before the guest's first entry (this core does
// not boot a guest OS; it re-enters the host's own execution stream under a
// VMCS, so "guest" here means "the host, now running as a VM").
package guest

// Registers is the general-purpose register block shared between Go and
// the VMLAUNCH/VMRESUME trampoline in vmxasm. Its field order is a contract
// with that assembly, not a stylistic choice: each offset below is exactly
// where the trampoline stores/loads the corresponding register, in the
// order RAX,RBX,RCX,RDX,RSI,RDI,RBP,RSP,R8-R15,RIP,RFLAGS.
// RSP, RIP, and RFLAGS are carried here for snapshotting only; on entry they
// come from the VMCS guest-state area, not from this block, and on exit the
// VMCS guest-state area (not this block) holds the authoritative values.
type Registers struct {
	RAX uint64
	RBX uint64
	RCX uint64
	RDX uint64
	RSI uint64
	RDI uint64
	RBP uint64
	RSP uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64
	RIP    uint64
	RFLAGS uint64
}

// Context is the bootstrap state captured from the host's own CPU before
// its first VM-entry: general registers, the instruction/stack pointer and
// flags the guest must resume at, the active segment selectors, and the
// control/debug registers the VMCS guest-state area is initialized from.
type Context struct {
	Regs Registers

	CS, SS, DS, ES, FS, GS, TR uint16

	CR0, CR3, CR4 uint64
	DR7           uint64

	EFER uint64

	IA32SysenterCS  uint32
	IA32SysenterESP uint64
	IA32SysenterEIP uint64
}
