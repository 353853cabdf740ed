// Package vmxerr names the VM-exit basic reasons and VM-instruction error
// codes this core acts on, and the sentinel errors vmexit and vcpu return
// for conditions that are not VM-instruction failures (those live in
// vmxasm).
package vmxerr

import "fmt"

// ExitReason is the low 16 bits of the VMCS EXIT_REASON field (Intel SDM
// Vol. 3C, Appendix C).
type ExitReason uint32

const (
	ExitReasonExceptionNMI    ExitReason = 0
	ExitReasonExternalInt     ExitReason = 1
	ExitReasonTripleFault     ExitReason = 2
	ExitReasonCPUID           ExitReason = 10
	ExitReasonHLT             ExitReason = 12
	ExitReasonInvlpg          ExitReason = 14
	ExitReasonRDPMC           ExitReason = 15
	ExitReasonRDTSC           ExitReason = 16
	ExitReasonVMCall          ExitReason = 18
	ExitReasonCRAccess        ExitReason = 28
	ExitReasonMovDR           ExitReason = 29
	ExitReasonIOInstruction   ExitReason = 30
	ExitReasonRDMSR           ExitReason = 31
	ExitReasonWRMSR           ExitReason = 32
	ExitReasonEntryFailGuest  ExitReason = 33
	ExitReasonMWait           ExitReason = 36
	ExitReasonMonitorTrapFlag ExitReason = 37
	ExitReasonMonitor         ExitReason = 39
	ExitReasonPause           ExitReason = 40
	ExitReasonEPTViolation    ExitReason = 48
	ExitReasonEPTMisconfig    ExitReason = 49
	ExitReasonInvept          ExitReason = 50
	ExitReasonRDTSCP          ExitReason = 51
	ExitReasonInvvpid         ExitReason = 53
	ExitReasonXSetBV          ExitReason = 55
)

func (r ExitReason) String() string {
	switch r {
	case ExitReasonExceptionNMI:
		return "EXCEPTION_OR_NMI"
	case ExitReasonExternalInt:
		return "EXTERNAL_INTERRUPT"
	case ExitReasonTripleFault:
		return "TRIPLE_FAULT"
	case ExitReasonCPUID:
		return "CPUID"
	case ExitReasonHLT:
		return "HLT"
	case ExitReasonInvlpg:
		return "INVLPG"
	case ExitReasonRDPMC:
		return "RDPMC"
	case ExitReasonRDTSC:
		return "RDTSC"
	case ExitReasonVMCall:
		return "VMCALL"
	case ExitReasonCRAccess:
		return "CR_ACCESS"
	case ExitReasonMovDR:
		return "MOV_DR"
	case ExitReasonIOInstruction:
		return "IO_INSTRUCTION"
	case ExitReasonRDMSR:
		return "RDMSR"
	case ExitReasonWRMSR:
		return "WRMSR"
	case ExitReasonEntryFailGuest:
		return "VM_ENTRY_FAILURE_GUEST_STATE"
	case ExitReasonMWait:
		return "MWAIT"
	case ExitReasonMonitorTrapFlag:
		return "MONITOR_TRAP_FLAG"
	case ExitReasonMonitor:
		return "MONITOR"
	case ExitReasonPause:
		return "PAUSE"
	case ExitReasonEPTViolation:
		return "EPT_VIOLATION"
	case ExitReasonEPTMisconfig:
		return "EPT_MISCONFIG"
	case ExitReasonInvept:
		return "INVEPT"
	case ExitReasonRDTSCP:
		return "RDTSCP"
	case ExitReasonInvvpid:
		return "INVVPID"
	case ExitReasonXSetBV:
		return "XSETBV"
	default:
		return fmt.Sprintf("UNKNOWN_EXIT_REASON(%d)", uint32(r))
	}
}

// ExceptionVector numbers the architectural exceptions this core inspects
// in its #PF/#GP/#BP dispatch.
type ExceptionVector uint8

const (
	VectorDebug            ExceptionVector = 1
	VectorBreakpoint       ExceptionVector = 3
	VectorGeneralProtection ExceptionVector = 13
	VectorPageFault        ExceptionVector = 14
)
