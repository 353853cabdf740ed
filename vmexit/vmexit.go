// Package vmexit dispatches a VM-exit to the handler for its basic exit
// reason: CPUID and RDMSR/WRMSR are emulated in place, #PF/#GP are
// reflected back into the guest, #BP is redirected to an inline hook when
// one is registered, EPT violations are handed to a pluggable policy, and
// VMCALL stops running the guest (ExitHypervisor). Everything else is
// reported as unhandled rather than guessed at.
package vmexit

import (
	"log"

	"github.com/nmi/vtxcore/guest"
	"github.com/nmi/vtxcore/hook"
	"github.com/nmi/vtxcore/vmcs"
	"github.com/nmi/vtxcore/vmxasm"
	"github.com/nmi/vtxcore/vmxerr"
)

// Result tells vcpu what to do after Handle returns: advance the guest RIP
// past the instruction that exited (the common case for emulated
// instructions), or stop running the guest altogether (the Type-2 "give
// the host its own execution back" exit, or an unrecoverable failure).
type Result struct {
	AdvanceRIP     bool
	ExitHypervisor bool
}

// EPTPolicy decides what to do about an EPT violation: whether to retry the
// access (true) or give up. This core's own identity map never actually
// produces a violation for an in-range address, so the only real caller of
// this is diagnostics and out-of-range accesses. handleEPTViolation passes
// 0 as guestPhysical: it does not read the guest-physical-address field.
type EPTPolicy func(qualification, guestPhysical, guestLinear uint64) (retry bool)

// Handler dispatches one VM-exit. Hooks is consulted only on #BP; Policy is
// consulted only on EPT violations. Decoder is optional: when set, it is
// used to annotate unexpected exits with the offending instruction.
type Handler struct {
	Ops     vmxasm.Ops
	Hooks   hook.Manager
	Policy  EPTPolicy
	Decoder *Decoder
}

// NewHandler returns a Handler with a no-op hook manager and an EPT policy
// that always retries (appropriate for an always-present identity map).
func NewHandler(ops vmxasm.Ops) *Handler {
	return &Handler{
		Ops:    ops,
		Hooks:  hook.NoneManager{},
		Policy: func(uint64, uint64, uint64) bool { return true },
	}
}

// Handle reads EXIT_REASON and dispatches. regs is the guest GPR block
// VMLAUNCH/VMRESUME most recently populated; Handle both reads and mutates
// it to reflect emulated instruction results.
func (h *Handler) Handle(regs *guest.Registers) (Result, error) {
	rawReason, err := h.Ops.VMRead(vmcs.FieldExitReason)
	if err != nil {
		return Result{}, err
	}

	reason := vmxerr.ExitReason(rawReason & 0xFFFF)

	switch reason {
	case vmxerr.ExitReasonCPUID:
		h.handleCPUID(regs)
		return Result{AdvanceRIP: true}, nil

	case vmxerr.ExitReasonRDMSR:
		h.handleRDMSR(regs)
		return Result{AdvanceRIP: true}, nil

	case vmxerr.ExitReasonWRMSR:
		h.handleWRMSR(regs)
		return Result{AdvanceRIP: true}, nil

	case vmxerr.ExitReasonExceptionNMI:
		return h.handleException(regs)

	case vmxerr.ExitReasonEPTViolation:
		return h.handleEPTViolation()

	case vmxerr.ExitReasonVMCall:
		// VMCALL is this core's designated "stop running the guest and give
		// control back to the host" signal; see ExitHypervisor in Result.
		return Result{ExitHypervisor: true}, nil

	default:
		if h.Decoder != nil {
			log.Printf("vmexit: unhandled %s at guest RIP %#x: %s",
				reason, regs.RIP, h.Decoder.Describe(regs.RIP))
		}

		return Result{}, vmxerr.ErrUnhandledExitReason
	}
}

// AdvanceGuestRIP adds VM_EXIT_INSTRUCTION_LEN to the guest RIP, both in
// regs and in the VMCS guest-state area, so the next VM-entry resumes past
// the instruction that exited.
func (h *Handler) AdvanceGuestRIP(regs *guest.Registers) error {
	length, err := h.Ops.VMRead(vmcs.FieldVMExitInstructionLen)
	if err != nil {
		return err
	}

	regs.RIP += length

	return h.Ops.VMWrite(vmcs.FieldGuestRIP, regs.RIP)
}

func (h *Handler) handleCPUID(regs *guest.Registers) {
	r := h.Ops.CPUID(uint32(regs.RAX), uint32(regs.RCX))
	regs.RAX = uint64(r.EAX)
	regs.RBX = uint64(r.EBX)
	regs.RCX = uint64(r.ECX)
	regs.RDX = uint64(r.EDX)
}

func (h *Handler) handleRDMSR(regs *guest.Registers) {
	value := h.Ops.ReadMSR(uint32(regs.RCX))
	regs.RAX = value & 0xFFFFFFFF
	regs.RDX = value >> 32
}

func (h *Handler) handleWRMSR(regs *guest.Registers) {
	value := (regs.RDX << 32) | (regs.RAX & 0xFFFFFFFF)
	h.Ops.WriteMSR(uint32(regs.RCX), value)
}

func (h *Handler) handleEPTViolation() (Result, error) {
	qualification, err := h.Ops.VMRead(vmcs.FieldExitQualification)
	if err != nil {
		return Result{}, err
	}

	guestLinear, err := h.Ops.VMRead(vmcs.FieldGuestLinearAddress)
	if err != nil {
		return Result{}, err
	}

	if h.Policy(qualification, 0, guestLinear) {
		return Result{}, nil
	}

	return Result{ExitHypervisor: true}, nil
}
