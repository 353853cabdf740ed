package vmcs

import (
	"github.com/nmi/vtxcore/gdt"
	"github.com/nmi/vtxcore/guest"
	"github.com/nmi/vtxcore/vmxasm"
)

// PopulateGuest writes the guest-state area from ctx: general-purpose
// registers are not VMCS fields (VMLAUNCH/VMRESUME restore them from the
// Registers block directly) but RIP/RSP/RFLAGS, every segment, CR0/CR3/CR4,
// DR7, and the SYSENTER MSRs are, so the processor's first VM-entry starts
// exactly where ctx was captured.
func PopulateGuest(ops vmxasm.Ops, ctx *guest.Context, gdtTable []gdt.Entry, gdtr, idt vmxasm.DescriptorPointer) error {
	writes := []struct {
		field, value uint64
	}{
		{FieldGuestRIP, ctx.Regs.RIP},
		{FieldGuestRSP, ctx.Regs.RSP},
		{FieldGuestRFLAGS, ctx.Regs.RFLAGS},
		{FieldGuestCR0, ctx.CR0},
		{FieldGuestCR3, ctx.CR3},
		{FieldGuestCR4, ctx.CR4},
		{FieldGuestDR7, ctx.DR7},
		{FieldGuestGDTRBase, gdtr.Base},
		{FieldGuestGDTRLimit, uint64(gdtr.Limit)},
		{FieldGuestIDTRLimit, uint64(idt.Limit)},
		{FieldGuestIDTRBase, idt.Base},
		{FieldGuestSysenterCS, uint64(ctx.IA32SysenterCS)},
		{FieldGuestSysenterESP, ctx.IA32SysenterESP},
		{FieldGuestSysenterEIP, ctx.IA32SysenterEIP},
		{FieldGuestActivityState, 0}, // active
		{FieldGuestInterruptibility, 0},
		{FieldGuestIA32DebugCtl, ops.ReadMSR(vmxasm.MSRIA32DebugCtl)},
		{FieldGuestVMCSLinkPointer, ^uint64(0)},
	}

	for _, w := range writes {
		if err := ops.VMWrite(w.field, w.value); err != nil {
			return err
		}
	}

	segs := []struct {
		selector             uint16
		selField, baseField  uint64
		limitField, arField  uint64
	}{
		{ctx.CS, FieldGuestCSSelector, FieldGuestCSBase, FieldGuestCSLimit, FieldGuestCSAccessRights},
		{ctx.SS, FieldGuestSSSelector, FieldGuestSSBase, FieldGuestSSLimit, FieldGuestSSAccessRights},
		{ctx.DS, FieldGuestDSSelector, FieldGuestDSBase, FieldGuestDSLimit, FieldGuestDSAccessRights},
		{ctx.ES, FieldGuestESSelector, FieldGuestESBase, FieldGuestESLimit, FieldGuestESAccessRights},
		{ctx.FS, FieldGuestFSSelector, FieldGuestFSBase, FieldGuestFSLimit, FieldGuestFSAccessRights},
		{ctx.GS, FieldGuestGSSelector, FieldGuestGSBase, FieldGuestGSLimit, FieldGuestGSAccessRights},
		{ctx.TR, FieldGuestTRSelector, FieldGuestTRBase, FieldGuestTRLimit, FieldGuestTRAccessRights},
	}

	for _, s := range segs {
		u := gdt.Unpack(gdtTable, s.selector)
		if err := writeSegment(ops, s.selField, s.baseField, s.limitField, s.arField, u); err != nil {
			return err
		}
	}

	// LDTR is unused by this core; mark it unusable rather than resolve it.
	return writeSegment(ops, FieldGuestLDTRSelector, FieldGuestLDTRBase, FieldGuestLDTRLimit,
		FieldGuestLDTRAccessRights, gdt.Unpacked{AccessRights: 1 << 16})
}

func writeSegment(ops vmxasm.Ops, selField, baseField, limitField, arField uint64, u gdt.Unpacked) error {
	for _, w := range []struct{ field, value uint64 }{
		{selField, uint64(u.Selector)},
		{baseField, u.Base},
		{limitField, uint64(u.Limit)},
		{arField, uint64(u.AccessRights)},
	} {
		if err := ops.VMWrite(w.field, w.value); err != nil {
			return err
		}
	}

	return nil
}

// HostState is everything PopulateHost needs beyond what ops can read
// directly: the synthesized host GDT/TSS and the address the VM-exit
// trampoline resumes at.
type HostState struct {
	GDTLinearBase uint64
	TSSLinearBase uint64
	TRSelector    uint16
	EntryRIP      uint64
	CR3           uint64
}

// PopulateHost writes the host-state area. Host segment bases are left at
// zero (flat addressing, matching the host's own 64-bit long-mode
// segmentation), except FS/GS/TR, which VM-exit needs set correctly for the
// exit stub's own thread-local and task-switch bookkeeping: FS/GS base come
// from their MSRs (they override the GDT base in long mode, per spec.md
// §4.4) and TR base is the linear address of the synthesized TSS.
// hostSelectorMask clears the RPL (bits 0-1) and TI (bit 2) bits: VMX
// requires host CS/SS/DS/ES/FS/GS/TR selector fields carry index bits only.
const hostSelectorMask = 0xFFF8

func PopulateHost(ops vmxasm.Ops, hs HostState) error {
	idt := ops.SIDT()
	segs := ops.ReadSegmentSelectors()

	writes := []struct {
		field, value uint64
	}{
		{FieldHostCR0, ops.GetCR0()},
		{FieldHostCR3, hs.CR3},
		{FieldHostCR4, ops.GetCR4()},
		{FieldHostCSSelector, uint64(segs.CS) & hostSelectorMask},
		{FieldHostSSSelector, uint64(segs.SS) & hostSelectorMask},
		{FieldHostDSSelector, uint64(segs.DS) & hostSelectorMask},
		{FieldHostESSelector, uint64(segs.ES) & hostSelectorMask},
		{FieldHostFSSelector, uint64(segs.FS) & hostSelectorMask},
		{FieldHostGSSelector, uint64(segs.GS) & hostSelectorMask},
		{FieldHostTRSelector, uint64(hs.TRSelector) & hostSelectorMask},
		{FieldHostFSBase, ops.ReadMSR(vmxasm.MSRIA32FSBase)},
		{FieldHostGSBase, ops.ReadMSR(vmxasm.MSRIA32GSBase)},
		{FieldHostTRBase, hs.TSSLinearBase},
		{FieldHostGDTRBase, hs.GDTLinearBase},
		{FieldHostIDTRBase, idt.Base},
		{FieldHostSysenterCS, ops.ReadMSR(vmxasm.MSRIA32SysenterCS)},
		{FieldHostSysenterESP, ops.ReadMSR(vmxasm.MSRIA32SysenterESP)},
		{FieldHostSysenterEIP, ops.ReadMSR(vmxasm.MSRIA32SysenterEIP)},
		{FieldHostRIP, hs.EntryRIP},
	}

	for _, w := range writes {
		if err := ops.VMWrite(w.field, w.value); err != nil {
			return err
		}
	}

	return nil
}

// ControlRequest is the control value a caller wants for each of the five
// adjustable VMX control fields, before vmxctl.Adjust masks them against
// capability MSRs.
type ControlRequest struct {
	PinBased, ProcessorBased, ProcessorBased2 uint32
	VMExit, VMEntry                           uint32
}

// PopulateControls writes the five (already-adjusted) control fields, the
// exception bitmap, and the CR0/CR4 read shadows. The CR0/CR4 guest/host
// masks are not written.
func PopulateControls(ops vmxasm.Ops, adjusted ControlRequest, exceptionBitmap uint32, cr0Shadow, cr4Shadow uint64) error {
	writes := []struct {
		field uint64
		value uint64
	}{
		{FieldPinBasedVMExecControl, uint64(adjusted.PinBased)},
		{FieldProcBasedVMExecControl, uint64(adjusted.ProcessorBased)},
		{FieldSecondaryVMExecControl, uint64(adjusted.ProcessorBased2)},
		{FieldVMExitControls, uint64(adjusted.VMExit)},
		{FieldVMEntryControls, uint64(adjusted.VMEntry)},
		{FieldExceptionBitmap, uint64(exceptionBitmap)},
		{FieldCR0ReadShadow, cr0Shadow},
		{FieldCR4ReadShadow, cr4Shadow},
	}

	for _, w := range writes {
		if err := ops.VMWrite(w.field, w.value); err != nil {
			return err
		}
	}

	return nil
}
