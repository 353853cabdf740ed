// Package vmxctl computes the capability-adjusted VMCS control fields and
// the CR0/CR4 fixups VMXON requires. Every adjustment follows Intel SDM
// Vol. 3C 31.5.1: a requested bit is forced on by allowed0, forced off by
// the complement of allowed1, and free to choose otherwise.
package vmxctl

import "github.com/nmi/vtxcore/vmxasm"

// Class names one of the five VMX control fields that must be adjusted
// against the processor's reported capabilities before being written to
// the VMCS.
type Class int

const (
	PinBased Class = iota
	ProcessorBased
	ProcessorBased2
	VMExit
	VMEntry
)

// trueCapabilityMSR returns the true-control MSR index to consult for
// class, and the fallback index to use when TRUE_CONTROLS is unavailable
// (IA32_VMX_BASIC bit 55 clear) or, for ProcessorBased2, always — there is
// no IA32_VMX_TRUE_PROCBASED_CTLS2 MSR.
func trueCapabilityMSR(class Class) (truth, fallback uint32) {
	switch class {
	case PinBased:
		return vmxasm.MSRIA32VMXTruePinbasedCtls, vmxasm.MSRIA32VMXPinbasedCtls
	case ProcessorBased:
		return vmxasm.MSRIA32VMXTrueProcbasedCtls, vmxasm.MSRIA32VMXProcbasedCtls
	case ProcessorBased2:
		return vmxasm.MSRIA32VMXProcbasedCtls2, vmxasm.MSRIA32VMXProcbasedCtls2
	case VMExit:
		return vmxasm.MSRIA32VMXTrueExitCtls, vmxasm.MSRIA32VMXExitCtls
	case VMEntry:
		return vmxasm.MSRIA32VMXTrueEntryCtls, vmxasm.MSRIA32VMXEntryCtls
	default:
		return 0, 0
	}
}

const vmxBasicTrueControlsFlag = 1 << 55

// Adjust computes the control value to load for class, starting from
// requested, against the processor's reported capability MSRs read through
// ops. The result always satisfies allowed0 (bits forced on) and allowed1
// (bits allowed at all); requested bits outside allowed1 are dropped rather
// than rejected, matching the adjustment algorithm every VMM written
// against this control scheme uses.
func Adjust(ops vmxasm.Ops, class Class, requested uint32) uint32 {
	basic := ops.ReadMSR(vmxasm.MSRIA32VMXBasic)

	truthMSR, fallbackMSR := trueCapabilityMSR(class)

	msr := fallbackMSR
	if class != ProcessorBased2 && basic&vmxBasicTrueControlsFlag != 0 {
		msr = truthMSR
	}

	capability := ops.ReadMSR(msr)
	allowed0 := uint32(capability)
	allowed1 := uint32(capability >> 32)

	return (requested | allowed0) & allowed1
}

// AdjustCR0 and AdjustCR4 compute the CR0/CR4 value VMXON requires: bits
// fixed to 1 by IA32_VMX_CRn_FIXED0 are forced on, bits fixed to 0 by
// IA32_VMX_CRn_FIXED1 are forced off, everything else is left as requested.
func AdjustCR0(ops vmxasm.Ops, requested uint64) uint64 {
	return adjustCR(requested, ops.ReadMSR(vmxasm.MSRIA32VMXCR0Fixed0), ops.ReadMSR(vmxasm.MSRIA32VMXCR0Fixed1))
}

func AdjustCR4(ops vmxasm.Ops, requested uint64) uint64 {
	return adjustCR(requested, ops.ReadMSR(vmxasm.MSRIA32VMXCR4Fixed0), ops.ReadMSR(vmxasm.MSRIA32VMXCR4Fixed1))
}

func adjustCR(requested, fixed0, fixed1 uint64) uint64 {
	return (requested | fixed0) & fixed1
}

// VMCSRevisionID returns the VMCS/VMXON region revision identifier the
// processor expects in the first four bytes of each region, read from the
// low 31 bits of IA32_VMX_BASIC.
func VMCSRevisionID(ops vmxasm.Ops) uint32 {
	return uint32(ops.ReadMSR(vmxasm.MSRIA32VMXBasic)) &^ (1 << 31)
}
