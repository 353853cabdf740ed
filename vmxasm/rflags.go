package vmxasm

// rflagsZF and rflagsCF are the status bits the VM-instruction success/
// failure convention tests (Intel SDM Vol. 3C, 30.2).
const (
	rflagsCF = 1 << 0
	rflagsZF = 1 << 6
)

// classify turns the RFLAGS value produced by a VMX instruction into its Go
// error. VMsucceed maps to nil; VMfailInvalid (CF=1) means there is no
// current VMCS; VMfailValid (ZF=1) means the current VMCS rejected the
// instruction and the real reason lives in VM_INSTRUCTION_ERROR.
func classify(rflags uint64) error {
	switch {
	case rflags&rflagsZF != 0:
		return ErrVMFailValid
	case rflags&rflagsCF != 0:
		return ErrVMFailInvalid
	default:
		return nil
	}
}
