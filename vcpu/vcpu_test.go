package vcpu

import (
	"errors"
	"testing"

	"github.com/nmi/vtxcore/guest"
	"github.com/nmi/vtxcore/hostsvc"
	"github.com/nmi/vtxcore/vmcs"
	"github.com/nmi/vtxcore/vmxasm"
	"github.com/nmi/vtxcore/vmxerr"
)

func newTestCPU(t *testing.T) (*CPU, *vmxasm.Fake, *hostsvc.Mock) {
	t.Helper()

	ops := vmxasm.NewFake()
	ops.CPUIDOverride = map[[2]uint32]vmxasm.CPUIDResult{
		{1, 0}: {ECX: cpuidECXVMXBit},
	}

	mem := hostsvc.NewMock(64<<20, 1)
	cpu := New(0, ops, mem)

	return cpu, ops, mem
}

func testContext() *guest.Context {
	return &guest.Context{
		CS: 0x10, SS: 0x18, DS: 0x18, ES: 0x18, FS: 0x18, GS: 0x18, TR: 0x28,
	}
}

func TestEnableWalksToVMCSCurrent(t *testing.T) {
	cpu, _, mem := newTestCPU(t)

	unpin, err := cpu.Enable(testContext())
	if err != nil {
		t.Fatalf("Enable: %v", err)
	}
	defer unpin()

	if cpu.State() != VmcsCurrent {
		t.Fatalf("State() = %v, want VmcsCurrent", cpu.State())
	}

	if len(mem.PinCalls) != 1 || mem.PinCalls[0] != 0 {
		t.Fatalf("PinCalls = %v, want [0]", mem.PinCalls)
	}
}

func TestEnableAllocatesRegionsWithMaskedRevisionID(t *testing.T) {
	cpu, ops, mem := newTestCPU(t)
	ops.MSRs[vmxasm.MSRIA32VMXBasic] = (1 << 55) | (1 << 31) | 0x11

	unpin, err := cpu.Enable(testContext())
	if err != nil {
		t.Fatalf("Enable: %v", err)
	}
	defer unpin()

	if cpu.vmxonPhys == cpu.vmcsPhys {
		t.Fatalf("VMXON and VMCS regions share a physical address: %#x", cpu.vmxonPhys)
	}

	for _, phys := range []uint64{cpu.vmxonPhys, cpu.vmcsPhys} {
		word0 := mem.ReadLinear(phys, 4)
		id := uint32(word0[0]) | uint32(word0[1])<<8 | uint32(word0[2])<<16 | uint32(word0[3])<<24

		if id&(1<<31) != 0 {
			t.Fatalf("region word0 = %#x, bit 31 not cleared", id)
		}

		if id != 0x11 {
			t.Fatalf("region word0 = %#x, want revision ID 0x11", id)
		}
	}
}

func TestEnablePopulatesEPTPointer(t *testing.T) {
	cpu, ops, _ := newTestCPU(t)

	unpin, err := cpu.Enable(testContext())
	if err != nil {
		t.Fatalf("Enable: %v", err)
	}
	defer unpin()

	eptp, ok := ops.VMCSFields[vmcs.FieldEPTPointer]
	if !ok {
		t.Fatalf("FieldEPTPointer not written")
	}

	if eptp&0xFFF != eptMemTypeWriteBack|eptWalkLength4 {
		t.Fatalf("eptp low bits = %#x, want memtype/walklength encoding", eptp&0xFFF)
	}
}

func TestRunStopsOnVMCall(t *testing.T) {
	cpu, ops, _ := newTestCPU(t)

	unpin, err := cpu.Enable(testContext())
	if err != nil {
		t.Fatalf("Enable: %v", err)
	}
	defer unpin()

	ops.VMCSFields[vmcs.FieldExitReason] = uint64(vmxerr.ExitReasonVMCall)

	if err := cpu.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if cpu.State() != Exiting {
		t.Fatalf("State() = %v, want Exiting", cpu.State())
	}

	if len(ops.LaunchedWith) != 1 {
		t.Fatalf("LaunchedWith = %v, want one VMLAUNCH", ops.LaunchedWith)
	}
}

func TestRunPropagatesUnhandledExit(t *testing.T) {
	cpu, ops, _ := newTestCPU(t)

	unpin, err := cpu.Enable(testContext())
	if err != nil {
		t.Fatalf("Enable: %v", err)
	}
	defer unpin()

	ops.VMCSFields[vmcs.FieldExitReason] = uint64(vmxerr.ExitReasonHLT)

	err = cpu.Run()
	if !errors.Is(err, vmxerr.ErrUnhandledExitReason) {
		t.Fatalf("Run err = %v, want ErrUnhandledExitReason", err)
	}
}

func TestTeardownClearsAndTurnsOffVMX(t *testing.T) {
	cpu, ops, _ := newTestCPU(t)

	unpin, err := cpu.Enable(testContext())
	if err != nil {
		t.Fatalf("Enable: %v", err)
	}
	defer unpin()

	if err := cpu.Teardown(); err != nil {
		t.Fatalf("Teardown: %v", err)
	}

	if cpu.State() != Disabled {
		t.Fatalf("State() = %v, want Disabled", cpu.State())
	}

	if ops.VMXOffCalls != 1 {
		t.Fatalf("VMXOffCalls = %d, want 1", ops.VMXOffCalls)
	}

	if len(ops.VMClearCalls) != 2 {
		t.Fatalf("VMClearCalls = %v, want two clears (Enable, then Teardown)", ops.VMClearCalls)
	}
}
