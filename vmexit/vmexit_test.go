package vmexit

import (
	"errors"
	"testing"

	"github.com/nmi/vtxcore/guest"
	"github.com/nmi/vtxcore/hook"
	"github.com/nmi/vtxcore/vmcs"
	"github.com/nmi/vtxcore/vmxasm"
	"github.com/nmi/vtxcore/vmxerr"
)

func withReason(f *vmxasm.Fake, reason uint64) {
	f.CurrentVMCS = 1
	f.VMCSFields[vmcs.FieldExitReason] = reason
}

func TestHandleCPUIDEmulatesAndAdvances(t *testing.T) {
	f := vmxasm.NewFake()
	withReason(f, uint64(vmxerr.ExitReasonCPUID))

	h := NewHandler(f)
	regs := &guest.Registers{RAX: 1}

	result, err := h.Handle(regs)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if !result.AdvanceRIP || result.ExitHypervisor {
		t.Fatalf("Result = %+v, want AdvanceRIP only", result)
	}
}

func TestHandleRDMSRRoundTrips(t *testing.T) {
	f := vmxasm.NewFake()
	withReason(f, uint64(vmxerr.ExitReasonRDMSR))
	f.WriteMSR(0x10, 0x1122334455667788)

	h := NewHandler(f)
	regs := &guest.Registers{RCX: 0x10}

	if _, err := h.Handle(regs); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if regs.RAX != 0x55667788 || regs.RDX != 0x11223344 {
		t.Fatalf("RAX/RDX = %#x/%#x, want 0x55667788/0x11223344", regs.RAX, regs.RDX)
	}
}

func TestHandleWRMSRWrites(t *testing.T) {
	f := vmxasm.NewFake()
	withReason(f, uint64(vmxerr.ExitReasonWRMSR))

	h := NewHandler(f)
	regs := &guest.Registers{RCX: 0x20, RAX: 0xAAAA, RDX: 0xBBBB}

	if _, err := h.Handle(regs); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if got := f.ReadMSR(0x20); got != 0xBBBB00000000|0xAAAA {
		t.Fatalf("MSR 0x20 = %#x, want %#x", got, uint64(0xBBBB00000000|0xAAAA))
	}
}

func TestHandleVMCallExitsHypervisor(t *testing.T) {
	f := vmxasm.NewFake()
	withReason(f, uint64(vmxerr.ExitReasonVMCall))

	h := NewHandler(f)

	result, err := h.Handle(&guest.Registers{})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if !result.ExitHypervisor {
		t.Fatalf("Result = %+v, want ExitHypervisor", result)
	}
}

func TestHandleUnknownReasonIsUnhandled(t *testing.T) {
	f := vmxasm.NewFake()
	withReason(f, 0xFFFF)

	h := NewHandler(f)

	_, err := h.Handle(&guest.Registers{})
	if !errors.Is(err, vmxerr.ErrUnhandledExitReason) {
		t.Fatalf("Handle err = %v, want ErrUnhandledExitReason", err)
	}
}

func TestBreakpointRedirectsToFunctionHook(t *testing.T) {
	f := vmxasm.NewFake()
	withReason(f, uint64(vmxerr.ExitReasonExceptionNMI))
	f.VMCSFields[vmcs.FieldVMExitIntrInfo] = uint64(vmxerr.VectorBreakpoint)

	h := NewHandler(f)
	h.Hooks = stubHooks{addr: 0x1000, hook: hook.Hook{Type: hook.Function, HandlerAddress: 0x2000}}

	regs := &guest.Registers{RIP: 0x1000}

	if _, err := h.Handle(regs); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if regs.RIP != 0x2000 {
		t.Fatalf("RIP = %#x, want 0x2000", regs.RIP)
	}

	if f.VMCSFields[vmcs.FieldGuestRIP] != 0x2000 {
		t.Fatalf("GuestRIP VMCS field = %#x, want 0x2000", f.VMCSFields[vmcs.FieldGuestRIP])
	}
}

func TestBreakpointInjectsWithoutHook(t *testing.T) {
	f := vmxasm.NewFake()
	withReason(f, uint64(vmxerr.ExitReasonExceptionNMI))
	f.VMCSFields[vmcs.FieldVMExitIntrInfo] = uint64(vmxerr.VectorBreakpoint)

	h := NewHandler(f)
	regs := &guest.Registers{RIP: 0x3000}

	if _, err := h.Handle(regs); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	info := f.VMCSFields[vmcs.FieldVMEntryIntrInfoField]
	if info&intrInfoValid == 0 || info&0xFF != uint64(vmxerr.VectorBreakpoint) {
		t.Fatalf("injected info = %#x, want valid #BP", info)
	}

	if info&intrInfoTypeMask != intrInfoTypeSoftware {
		t.Fatalf("injected info = %#x, want software-exception type (6)", info)
	}

	if f.VMCSFields[vmcs.FieldVMEntryInstructionLen] != bpInstructionLen {
		t.Fatalf("VMEntryInstructionLen = %d, want %d",
			f.VMCSFields[vmcs.FieldVMEntryInstructionLen], bpInstructionLen)
	}
}

type stubHooks struct {
	addr uint64
	hook hook.Hook
}

func (s stubHooks) FindByAddress(rip uint64) (hook.Hook, bool) {
	if rip == s.addr {
		return s.hook, true
	}

	return hook.Hook{}, false
}
