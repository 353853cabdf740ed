package vmcs

import (
	"testing"

	"github.com/nmi/vtxcore/gdt"
	"github.com/nmi/vtxcore/guest"
	"github.com/nmi/vtxcore/vmxasm"
)

func flatCode() gdt.Entry {
	var e gdt.Entry
	e[0], e[1] = 0xFF, 0xFF
	e[5] = 0b1001_1010
	e[6] = 0b1010_1111

	return e
}

func TestPopulateGuestWritesRIPAndSegments(t *testing.T) {
	f := vmxasm.NewFake()
	f.CurrentVMCS = 1
	table := []gdt.Entry{{}, flatCode()}

	ctx := &guest.Context{
		CS:  8,
		SS:  8,
		DS:  8,
		ES:  8,
		FS:  8,
		GS:  8,
		CR0: 0x80000011,
		CR3: 0x1000,
		CR4: 0x2020,
	}
	ctx.Regs.RIP = 0xdeadbeef
	ctx.Regs.RSP = 0x7000

	gdtr := vmxasm.DescriptorPointer{Base: 0x4000, Limit: 0xFFF}

	if err := PopulateGuest(f, ctx, table, gdtr, vmxasm.DescriptorPointer{}); err != nil {
		t.Fatalf("PopulateGuest: %v", err)
	}

	if f.VMCSFields[FieldGuestRIP] != 0xdeadbeef {
		t.Fatalf("GuestRIP = %#x, want 0xdeadbeef", f.VMCSFields[FieldGuestRIP])
	}

	if f.VMCSFields[FieldGuestCSSelector] != 8 {
		t.Fatalf("GuestCSSelector = %#x, want 8", f.VMCSFields[FieldGuestCSSelector])
	}

	if f.VMCSFields[FieldGuestCSAccessRights]&(1<<16) != 0 {
		t.Fatalf("GuestCS marked unusable unexpectedly")
	}

	if f.VMCSFields[FieldGuestGDTRBase] != gdtr.Base {
		t.Fatalf("GuestGDTRBase = %#x, want %#x", f.VMCSFields[FieldGuestGDTRBase], gdtr.Base)
	}

	if f.VMCSFields[FieldGuestVMCSLinkPointer] != ^uint64(0) {
		t.Fatalf("GuestVMCSLinkPointer = %#x, want all-ones", f.VMCSFields[FieldGuestVMCSLinkPointer])
	}
}

func TestPopulateControlsWritesAdjustedFields(t *testing.T) {
	f := vmxasm.NewFake()
	f.CurrentVMCS = 1

	err := PopulateControls(f, ControlRequest{
		PinBased: 0x10, ProcessorBased: 0x20, ProcessorBased2: 0x40,
		VMExit: 0x80, VMEntry: 0x100,
	}, 1<<14, 0x20, 0x2000)
	if err != nil {
		t.Fatalf("PopulateControls: %v", err)
	}

	if f.VMCSFields[FieldPinBasedVMExecControl] != 0x10 {
		t.Fatalf("PinBased = %#x, want 0x10", f.VMCSFields[FieldPinBasedVMExecControl])
	}

	if f.VMCSFields[FieldExceptionBitmap] != 1<<14 {
		t.Fatalf("ExceptionBitmap = %#x, want bit 14 (#PF)", f.VMCSFields[FieldExceptionBitmap])
	}
}

func TestPopulateHostWritesCR0AndRIP(t *testing.T) {
	f := vmxasm.NewFake()
	f.CurrentVMCS = 1
	f.CR0 = 0x80000033
	f.MSRs[vmxasm.MSRIA32FSBase] = 0xAAAA
	f.MSRs[vmxasm.MSRIA32GSBase] = 0xBBBB
	f.MSRs[vmxasm.MSRIA32SysenterCS] = 0x10
	f.MSRs[vmxasm.MSRIA32SysenterESP] = 0x7000
	f.MSRs[vmxasm.MSRIA32SysenterEIP] = 0x8000

	err := PopulateHost(f, HostState{
		GDTLinearBase: 0x5000, TSSLinearBase: 0x5800, TRSelector: 0x28,
		EntryRIP: 0x6000, CR3: 0x9000,
	})
	if err != nil {
		t.Fatalf("PopulateHost: %v", err)
	}

	if f.VMCSFields[FieldHostCR0] != 0x80000033 {
		t.Fatalf("HostCR0 = %#x, want 0x80000033", f.VMCSFields[FieldHostCR0])
	}

	if f.VMCSFields[FieldHostRIP] != 0x6000 {
		t.Fatalf("HostRIP = %#x, want 0x6000", f.VMCSFields[FieldHostRIP])
	}

	if f.VMCSFields[FieldHostTRSelector] != 0x28 {
		t.Fatalf("HostTRSelector = %#x, want 0x28", f.VMCSFields[FieldHostTRSelector])
	}

	if f.VMCSFields[FieldHostTRBase] != 0x5800 {
		t.Fatalf("HostTRBase = %#x, want 0x5800", f.VMCSFields[FieldHostTRBase])
	}

	if f.VMCSFields[FieldHostFSBase] != 0xAAAA || f.VMCSFields[FieldHostGSBase] != 0xBBBB {
		t.Fatalf("HostFSBase/GSBase = %#x/%#x, want 0xAAAA/0xBBBB",
			f.VMCSFields[FieldHostFSBase], f.VMCSFields[FieldHostGSBase])
	}

	if f.VMCSFields[FieldHostSysenterEIP] != 0x8000 {
		t.Fatalf("HostSysenterEIP = %#x, want 0x8000", f.VMCSFields[FieldHostSysenterEIP])
	}
}

func TestPopulateHostMasksSelectorsRPLAndTI(t *testing.T) {
	f := vmxasm.NewFake()
	f.CurrentVMCS = 1
	f.Segs =vmxasm.SegmentSelectors{CS: 0x0B, SS: 0x13, DS: 0x1B, ES: 0x23, FS: 0x2B, GS: 0x33}

	if err := PopulateHost(f, HostState{TRSelector: 0x2F}); err != nil {
		t.Fatalf("PopulateHost: %v", err)
	}

	for _, tc := range []struct {
		name  string
		field uint64
		want  uint64
	}{
		{"CS", FieldHostCSSelector, 0x08},
		{"SS", FieldHostSSSelector, 0x10},
		{"DS", FieldHostDSSelector, 0x18},
		{"ES", FieldHostESSelector, 0x20},
		{"FS", FieldHostFSSelector, 0x28},
		{"GS", FieldHostGSSelector, 0x30},
		{"TR", FieldHostTRSelector, 0x28},
	} {
		if got := f.VMCSFields[tc.field]; got != tc.want {
			t.Errorf("Host%sSelector = %#x, want %#x (RPL/TI cleared)", tc.name, got, tc.want)
		}
	}
}
