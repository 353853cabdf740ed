// Package vmxasm wraps the privileged VMX, control-register, MSR, and
// descriptor-table instructions behind a small Go interface (Ops). The
// interface exists for the same reason kvm's package wraps ioctls with
// plain functions: callers above this layer (vmcs, vmexit, vcpu) never issue
// a privileged instruction directly, and tests substitute Fake for Hardware
// since there is no VMX-capable CPU in CI.
package vmxasm

// DescriptorPointer is the memory layout SGDT/SIDT/LGDT/LIDT read and write:
// a 16-bit limit followed by a 64-bit linear base address.
type DescriptorPointer struct {
	Limit uint16
	Base  uint64
}

// SegmentSelectors captures the current value of the six data/code segment
// registers as read directly from hardware (MOV r, Sreg).
type SegmentSelectors struct {
	CS, SS, DS, ES, FS, GS uint16
}

// CPUIDResult is the four-register result of executing CPUID for a given
// (leaf, subleaf) pair.
type CPUIDResult struct {
	EAX, EBX, ECX, EDX uint32
}
