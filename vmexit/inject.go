package vmexit

import (
	"github.com/nmi/vtxcore/guest"
	"github.com/nmi/vtxcore/hook"
	"github.com/nmi/vtxcore/vmcs"
	"github.com/nmi/vtxcore/vmxerr"
)

const (
	intrInfoVectorMask   = 0xFF
	intrInfoTypeMask     = 0x7 << 8
	intrInfoTypeHardware = 3 << 8
	intrInfoTypeSoftware = 6 << 8
	intrInfoErrCodeValid = 1 << 11
	intrInfoValid        = 1 << 31

	// bpInstructionLen is the width of the INT3 opcode #BP re-injection
	// re-executes on the next VM-entry.
	bpInstructionLen = 1
)

func (h *Handler) handleException(regs *guest.Registers) (Result, error) {
	rawInfo, err := h.Ops.VMRead(vmcs.FieldVMExitIntrInfo)
	if err != nil {
		return Result{}, err
	}

	vector := vmxerr.ExceptionVector(rawInfo & intrInfoVectorMask)

	switch vector {
	case vmxerr.VectorPageFault:
		errCode, err := h.Ops.VMRead(vmcs.FieldVMExitIntrErrorCode)
		if err != nil {
			return Result{}, err
		}

		return Result{}, h.injectPF(uint32(errCode))

	case vmxerr.VectorGeneralProtection:
		errCode, err := h.Ops.VMRead(vmcs.FieldVMExitIntrErrorCode)
		if err != nil {
			return Result{}, err
		}

		return Result{}, h.injectGP(uint32(errCode))

	case vmxerr.VectorBreakpoint:
		return h.handleBreakpoint(regs)

	default:
		return Result{}, vmxerr.ErrUnhandledExitReason
	}
}

// handleBreakpoint redirects guest execution to a registered inline-hook
// handler, or reflects #BP back into the guest when none is registered.
func (h *Handler) handleBreakpoint(regs *guest.Registers) (Result, error) {
	found, ok := h.Hooks.FindByAddress(regs.RIP)
	if ok && found.Type == hook.Function {
		regs.RIP = found.HandlerAddress

		return Result{}, h.Ops.VMWrite(vmcs.FieldGuestRIP, found.HandlerAddress)
	}

	return Result{}, h.injectBP()
}

func (h *Handler) injectPF(errCode uint32) error {
	return h.inject(vmxerr.VectorPageFault, intrInfoTypeHardware, true, errCode)
}

func (h *Handler) injectGP(errCode uint32) error {
	return h.inject(vmxerr.VectorGeneralProtection, intrInfoTypeHardware, true, errCode)
}

// injectBP re-injects #BP as a software exception (type 6): INT3 is a
// software-generated trap, not a hardware-detected one, per spec.md §4.6.2.
func (h *Handler) injectBP() error {
	return h.inject(vmxerr.VectorBreakpoint, intrInfoTypeSoftware, false, 0)
}

// inject writes the VM-entry interruption-information field so the next
// VM-entry delivers vector to the guest as intrType (hardware exception for
// #PF/#GP, software exception for #BP), with an error code when hasErrCode
// is set. A software-exception injection must also carry
// VM_ENTRY_INSTRUCTION_LEN so the processor knows how far to advance past
// the re-injected instruction.
func (h *Handler) inject(vector vmxerr.ExceptionVector, intrType uint64, hasErrCode bool, errCode uint32) error {
	info := uint64(intrInfoValid) | intrType | uint64(vector)
	if hasErrCode {
		info |= intrInfoErrCodeValid
	}

	if err := h.Ops.VMWrite(vmcs.FieldVMEntryIntrInfoField, info); err != nil {
		return err
	}

	if hasErrCode {
		if err := h.Ops.VMWrite(vmcs.FieldVMEntryExceptionErrorCode, uint64(errCode)); err != nil {
			return err
		}
	}

	if intrType == intrInfoTypeSoftware {
		return h.Ops.VMWrite(vmcs.FieldVMEntryInstructionLen, bpInstructionLen)
	}

	return nil
}
