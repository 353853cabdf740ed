// Package vcpu orchestrates one logical CPU through the full VMX
// lifecycle: capability probe, CR0/CR4 fixup, VMXON, VMCS setup, identity
// EPT construction, VM-entry, and the VM-exit loop, entirely in terms of
// the vmxasm.Ops/hostsvc.Services/hook.Manager interfaces so none of it
// needs real VT-x hardware to exercise in a test.
package vcpu

import (
	"fmt"
	"runtime"

	"github.com/nmi/vtxcore/gdt"
	"github.com/nmi/vtxcore/guest"
	"github.com/nmi/vtxcore/hook"
	"github.com/nmi/vtxcore/hostsvc"
	"github.com/nmi/vtxcore/paging"
	"github.com/nmi/vtxcore/vmcs"
	"github.com/nmi/vtxcore/vmexit"
	"github.com/nmi/vtxcore/vmxasm"
	"github.com/nmi/vtxcore/vmxctl"
	"github.com/nmi/vtxcore/vmxerr"
)

// CPU drives one logical processor through the lifecycle. It is not safe
// to share across goroutines: the VMX instructions it issues are
// necessarily scoped to whichever logical CPU the calling OS thread is
// pinned to.
type CPU struct {
	ID  int
	Ops vmxasm.Ops
	Mem hostsvc.Services

	Hooks  hook.Manager
	Policy vmexit.EPTPolicy

	state State

	vmxonVirt uintptr
	vmcsVirt  uintptr
	vmxonPhys uint64
	vmcsPhys  uint64

	pageTables paging.Tables

	regs    guest.Registers
	handler *vmexit.Handler

	caps Capabilities
}

// New returns a CPU bound to logical processor id, ready for Enable.
func New(id int, ops vmxasm.Ops, mem hostsvc.Services) *CPU {
	return &CPU{ID: id, Ops: ops, Mem: mem, Hooks: hook.NoneManager{}}
}

func (c *CPU) State() State { return c.state }

// Enable walks Disabled -> VmcsCurrent: it pins the calling goroutine's OS
// thread to c.ID, probes VMX capability, fixes up CR0/CR4, executes VMXON,
// builds the identity EPT, and populates the VMCS control/host/guest state
// areas. It does not launch the guest; call Run for that.
func (c *CPU) Enable(ctx *guest.Context) (unpin func(), err error) {
	unpin, err = c.Mem.PinCurrentThread(c.ID)
	if err != nil {
		return nil, fmt.Errorf("vcpu[%d]: pin: %w", c.ID, err)
	}

	if err := c.enableLocked(ctx); err != nil {
		unpin()
		return nil, err
	}

	return unpin, nil
}

func (c *CPU) enableLocked(ctx *guest.Context) error {
	caps, err := Probe(c.Ops)
	if err != nil {
		return fmt.Errorf("vcpu[%d]: probe: %w", c.ID, err)
	}

	c.caps = caps
	c.state = Probed

	c.Ops.SetCR0(vmxctl.AdjustCR0(c.Ops, c.Ops.GetCR0()))
	c.Ops.SetCR4(vmxctl.AdjustCR4(c.Ops, c.Ops.GetCR4()|cr4VMXE))

	if err := c.allocRegion(&c.vmxonVirt, &c.vmxonPhys, caps.VMCSRevisionID); err != nil {
		return fmt.Errorf("vcpu[%d]: allocate VMXON region: %w", c.ID, err)
	}

	if err := c.allocRegion(&c.vmcsVirt, &c.vmcsPhys, caps.VMCSRevisionID); err != nil {
		return fmt.Errorf("vcpu[%d]: allocate VMCS region: %w", c.ID, err)
	}

	if err := c.Ops.VMXOn(c.vmxonPhys); err != nil {
		return fmt.Errorf("vcpu[%d]: VMXON: %w", c.ID, err)
	}

	c.state = VmxOn

	if err := c.Ops.VMClear(c.vmcsPhys); err != nil {
		return fmt.Errorf("vcpu[%d]: VMCLEAR: %w", c.ID, err)
	}

	if err := c.Ops.VMPtrld(c.vmcsPhys); err != nil {
		return fmt.Errorf("vcpu[%d]: VMPTRLD: %w", c.ID, err)
	}

	c.state = VmcsCurrent

	if err := c.populate(ctx); err != nil {
		return fmt.Errorf("vcpu[%d]: populate VMCS: %w", c.ID, err)
	}

	handler := vmexit.NewHandler(c.Ops)
	handler.Hooks = c.Hooks

	if c.Policy != nil {
		handler.Policy = c.Policy
	}

	c.handler = handler
	c.regs = ctx.Regs

	return nil
}

// allocRegion obtains one pinned, page-aligned, physically contiguous page
// from c.Mem (spec.md §3/§4.3: "Allocates VMXON/VMCS regions zeroed and
// 4 KiB aligned") and stamps the low 31 bits of revisionID into its first
// four bytes, clearing bit 31, per spec.md P5. virt/phys are written back
// into the fields VMXON/VMCLEAR/VMPTRLD take their physical address from.
func (c *CPU) allocRegion(virt *uintptr, phys *uint64, revisionID uint32) error {
	v, p, err := c.Mem.AllocPinnedPage()
	if err != nil {
		return fmt.Errorf("%w: %v", vmxerr.ErrAllocationFailed, err)
	}

	var header vmcs.Region
	header.SetRevisionID(revisionID)
	c.Mem.WriteLinear(uint64(v), header[:4])

	*virt, *phys = v, p

	return nil
}

func (c *CPU) populate(ctx *guest.Context) error {
	eptPointer, err := c.buildIdentityEPT()
	if err != nil {
		return fmt.Errorf("vcpu[%d]: build identity EPT: %w", c.ID, err)
	}

	requested := vmcs.ControlRequest{
		ProcessorBased2: procbased2RDTSCP | procbased2XSAVES | procbased2INVPCID | procbased2EnableEPT,
		VMEntry:         vmEntryIA32EGuest,
		VMExit:          vmExitHostAddressSpaceSize,
	}

	adjusted := vmcs.ControlRequest{
		PinBased:        vmxctl.Adjust(c.Ops, vmxctl.PinBased, requested.PinBased),
		ProcessorBased:  vmxctl.Adjust(c.Ops, vmxctl.ProcessorBased, secondaryControlsActive),
		ProcessorBased2: vmxctl.Adjust(c.Ops, vmxctl.ProcessorBased2, requested.ProcessorBased2),
		VMExit:          vmxctl.Adjust(c.Ops, vmxctl.VMExit, requested.VMExit),
		VMEntry:         vmxctl.Adjust(c.Ops, vmxctl.VMEntry, requested.VMEntry),
	}

	if err := vmcs.PopulateControls(c.Ops, adjusted, exceptionBitmapVectors, c.Ops.GetCR0(), c.Ops.GetCR4()); err != nil {
		return err
	}

	if adjusted.ProcessorBased2&procbased2EnableEPT != 0 {
		if err := c.Ops.VMWrite(vmcs.FieldEPTPointer, eptPointer); err != nil {
			return err
		}
	}

	currentGDT := gdt.Current(c.Ops, c.Mem)

	gdtr := c.Ops.SGDT()
	idt := c.Ops.SIDT()
	if err := vmcs.PopulateGuest(c.Ops, ctx, currentGDT, gdtr, idt); err != nil {
		return err
	}

	gdtVirt, _, err := c.Mem.AllocPinnedPage()
	if err != nil {
		return fmt.Errorf("vcpu[%d]: allocate host GDT page: %w", c.ID, err)
	}

	tssVirt, _, err := c.Mem.AllocPinnedPage()
	if err != nil {
		return fmt.Errorf("vcpu[%d]: allocate host TSS page: %w", c.ID, err)
	}

	hgdt := gdt.Build(currentGDT, struct{ CS, SS, DS, ES, FS, GS uint16 }{
		CS: ctx.CS, SS: ctx.SS, DS: ctx.DS, ES: ctx.ES, FS: ctx.FS, GS: ctx.GS,
	}, uint64(tssVirt))

	c.writeHostGDT(uint64(gdtVirt), hgdt, tssVirt)

	return vmcs.PopulateHost(c.Ops, vmcs.HostState{
		GDTLinearBase: uint64(gdtVirt),
		TSSLinearBase: uint64(tssVirt),
		TRSelector:    hgdt.TR,
		EntryRIP:      vmxasm.VMExitStubAddr(),
		CR3:           c.Ops.GetCR3(),
	})
}

// Run launches the guest and services VM-exits until the handler reports
// ExitHypervisor (the Type-2 "resume the host in place" signal) or an
// unrecoverable error occurs.
func (c *CPU) Run() error {
	if err := c.Ops.VMLaunch(regsAddr(&c.regs)); err != nil {
		return fmt.Errorf("vcpu[%d]: VMLAUNCH: %w", c.ID, err)
	}

	c.state = Launched

	for {
		for _, s := range []struct {
			field uint64
			dst   *uint64
		}{
			{vmcs.FieldGuestRIP, &c.regs.RIP},
			{vmcs.FieldGuestRSP, &c.regs.RSP},
			{vmcs.FieldGuestRFLAGS, &c.regs.RFLAGS},
		} {
			v, err := c.Ops.VMRead(s.field)
			if err != nil {
				return fmt.Errorf("vcpu[%d]: read guest state: %w", c.ID, err)
			}
			*s.dst = v
		}

		result, err := c.handler.Handle(&c.regs)
		if err != nil {
			return fmt.Errorf("vcpu[%d]: exit handling: %w", c.ID, err)
		}

		if result.ExitHypervisor {
			c.state = Exiting
			return nil
		}

		if result.AdvanceRIP {
			if err := c.handler.AdvanceGuestRIP(&c.regs); err != nil {
				return fmt.Errorf("vcpu[%d]: advance RIP: %w", c.ID, err)
			}
		}

		if err := c.Ops.VMResume(regsAddr(&c.regs)); err != nil {
			return fmt.Errorf("vcpu[%d]: VMRESUME: %w", c.ID, err)
		}
	}
}

// Teardown executes VMCLEAR and VMXOFF; call it after Run returns,
// regardless of outcome, to leave the logical CPU outside VMX operation.
func (c *CPU) Teardown() error {
	if err := c.Ops.VMClear(c.vmcsPhys); err != nil {
		return fmt.Errorf("vcpu[%d]: VMCLEAR: %w", c.ID, err)
	}

	if err := c.Ops.VMXOff(); err != nil {
		return fmt.Errorf("vcpu[%d]: VMXOFF: %w", c.ID, err)
	}

	c.state = Disabled

	runtime.KeepAlive(c)

	return nil
}
