package vmxasm

// Ops is the full set of privileged operations the rest of this module
// needs from the processor: VMX lifecycle instructions, control-register
// and MSR access, descriptor-table reads, and CPUID. vcpu and vmcs talk to
// an Ops, never to a bare instruction, so Hardware can be swapped for Fake
// in every test that doesn't run on a VMX-capable core.
type Ops interface {
	// HasIntelCPU reports whether CPUID leaf 0 returns the "GenuineIntel"
	// vendor string.
	HasIntelCPU() bool

	// CPUID executes CPUID for the given leaf/subleaf pair.
	CPUID(leaf, subleaf uint32) CPUIDResult

	// ReadMSR and WriteMSR wrap RDMSR/WRMSR.
	ReadMSR(msr uint32) uint64
	WriteMSR(msr uint32, value uint64)

	// GetCR0, SetCR0, GetCR4, SetCR4 wrap MOV to/from CR0 and CR4.
	GetCR0() uint64
	SetCR0(v uint64)
	GetCR4() uint64
	SetCR4(v uint64)
	GetCR3() uint64

	// SGDT and SIDT read the current descriptor table pointers.
	SGDT() DescriptorPointer
	SIDT() DescriptorPointer

	// STR and SLDT read the task-register and LDT selectors.
	STR() uint16
	SLDT() uint16

	// ReadSegmentSelectors reads CS/SS/DS/ES/FS/GS.
	ReadSegmentSelectors() SegmentSelectors

	// VMXOn and VMXOff wrap VMXON/VMXOFF. phys is the physical address of a
	// page-aligned VMXON region whose first four bytes already hold the VMCS
	// revision identifier.
	VMXOn(phys uint64) error
	VMXOff() error

	// VMClear, VMPtrld, VMPtrst wrap VMCLEAR/VMPTRLD/VMPTRST.
	VMClear(phys uint64) error
	VMPtrld(phys uint64) error
	VMPtrst() (uint64, error)

	// VMRead and VMWrite wrap VMREAD/VMWRITE against the current VMCS.
	VMRead(field uint64) (uint64, error)
	VMWrite(field, value uint64) error

	// VMLaunch and VMResume enter the guest. regsAddr is the address of a
	// guest.Registers-shaped block the trampoline saves/restores GPRs
	// through; see guest.Registers for the exact field order this layout is
	// a contract with. Both return only after a VM-exit delivers control
	// back to the host (or report a VM-instruction failure as an error).
	VMLaunch(regsAddr uintptr) error
	VMResume(regsAddr uintptr) error
}
