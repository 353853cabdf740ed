package vmxerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions outside the VM-instruction success/failure
// convention vmxasm already covers: capability checks, VM-entry failures,
// and exit reasons this core has no handler for.
var (
	ErrCPUIncapable            = errors.New("vmxerr: processor lacks a required VMX capability")
	ErrVMEntryFailed           = errors.New("vmxerr: VM-entry failed, see exit qualification")
	ErrUnhandledExitReason     = errors.New("vmxerr: no handler registered for this exit reason")
	ErrVMInstructionFailed     = errors.New("vmxerr: VM-instruction failed, see VM_INSTRUCTION_ERROR")
	ErrAllocationFailed        = errors.New("vmxerr: physically-contiguous allocator refused the request")
	ErrVirtualToPhysicalFailed = errors.New("vmxerr: virtual-to-physical translation returned no mapping")
)

// InstructionError is the VM_INSTRUCTION_ERROR field value read after a
// VMfailValid (Intel SDM Vol. 3C, Appendix C).
type InstructionError uint32

func (e InstructionError) String() string {
	switch e {
	case 1:
		return "VMCALL in VMX root operation"
	case 2:
		return "VMCLEAR with invalid physical address"
	case 3:
		return "VMCLEAR with VMXON pointer"
	case 4:
		return "VMLAUNCH with non-clear VMCS"
	case 5:
		return "VMRESUME with non-launched VMCS"
	case 7:
		return "VM entry with invalid control field(s)"
	case 8:
		return "VM entry with invalid host-state field(s)"
	case 9:
		return "VMPTRLD with invalid physical address"
	case 10:
		return "VMPTRLD with VMXON pointer"
	case 11:
		return "VMPTRLD with incorrect VMCS revision identifier"
	case 12:
		return "VMREAD/VMWRITE from/to unsupported VMCS component"
	case 13:
		return "VMWRITE to read-only VMCS component"
	case 20:
		return "VMCALL with invalid VM-exit control fields"
	case 26:
		return "VM entry with events blocked by MOV SS"
	default:
		return fmt.Sprintf("unlisted VM-instruction error (%d)", uint32(e))
	}
}

// WrapInstructionError builds an error combining the operation name and the
// decoded instruction error, for reporting a VMfailValid back to a caller.
func WrapInstructionError(op string, code InstructionError) error {
	return fmt.Errorf("%s: %s: %w", op, code, ErrVMInstructionFailed)
}
