package vmxasm

import "errors"

// Sentinel errors for the VM-instruction success/failure convention. A
// caller that needs the precise VM_INSTRUCTION_ERROR code follows ErrVMFailValid
// with its own VMRead(vmcs.FieldVMInstructionError).
var (
	ErrVMFailInvalid = errors.New("vmxasm: VMfailInvalid, no current VMCS")
	ErrVMFailValid   = errors.New("vmxasm: VMfailValid, see VM_INSTRUCTION_ERROR")
	ErrNotIntelCPU   = errors.New("vmxasm: not running on a GenuineIntel CPU")
	ErrNoVMXSupport  = errors.New("vmxasm: CPUID.1:ECX.VMX[bit 5] is clear")
	ErrFeatureLocked = errors.New("vmxasm: IA32_FEATURE_CONTROL is locked without VMX enabled")
)
