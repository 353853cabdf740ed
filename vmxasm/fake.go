package vmxasm

import "sort"

// Fake is an in-memory Ops used by every test in this module that exercises
// VMCS population, control adjustment, or exit handling without real VMX
// hardware. It records VMWRITEs into a map the way the kvm package's own
// tests stub ioctls with plain Go values instead of a real /dev/kvm fd.
type Fake struct {
	MSRs map[uint32]uint64
	CR0  uint64
	CR4  uint64
	CR3  uint64

	GDT  DescriptorPointer
	IDT  DescriptorPointer
	Segs SegmentSelectors
	Tr   uint16
	Ldt  uint16

	Intel bool

	// CPUIDOverride maps [leaf,subleaf] to the result CPUID should return;
	// an unlisted pair returns the zero CPUIDResult.
	CPUIDOverride map[[2]uint32]CPUIDResult

	VMCSFields map[uint64]uint64

	VMXOnCalls   []uint64
	VMXOffCalls  int
	VMClearCalls []uint64
	VMPtrldCalls []uint64
	CurrentVMCS  uint64
	LaunchedWith []uintptr
	ResumedWith  []uintptr

	// NextExit, if set, is returned once by the next VMLaunch/VMResume to
	// simulate a failed VM-instruction. While it is nil those calls return
	// nil, simulating a VM-exit whose field values a test cares about (e.g.
	// EXIT_REASON) should already be preloaded into VMCSFields.
	NextExit error
}

var _ Ops = (*Fake)(nil)

// NewFake returns a Fake preloaded with the IA32_VMX_BASIC/FIXED*/*_CTLS
// MSRs a capability probe or control adjustment reads, set to permissive
// values: every optional control bit allowed, nothing forced on.
func NewFake() *Fake {
	f := &Fake{
		MSRs:       map[uint32]uint64{},
		VMCSFields: map[uint64]uint64{},
		Intel:      true,
	}

	const allowAll = 0xFFFFFFFF_00000000 // allowed1 (high 32 bits) = all bits settable
	f.MSRs[msrIA32FeatureControl] = (1 << 0) | (1 << 2)
	f.MSRs[msrIA32VMXBasic] = 1<<55 | 0x1 // TRUE controls available, revision ID 1
	f.MSRs[msrIA32VMXCR0Fixed0] = 0
	f.MSRs[msrIA32VMXCR0Fixed1] = ^uint64(0)
	f.MSRs[msrIA32VMXCR4Fixed0] = 0
	f.MSRs[msrIA32VMXCR4Fixed1] = ^uint64(0)

	for _, msr := range []uint32{
		msrIA32VMXTruePinbasedCtls, msrIA32VMXTrueProcbasedCtls,
		msrIA32VMXProcbasedCtls2, msrIA32VMXTrueExitCtls, msrIA32VMXTrueEntryCtls,
	} {
		f.MSRs[msr] = allowAll
	}

	return f
}

func (f *Fake) HasIntelCPU() bool { return f.Intel }

func (f *Fake) CPUID(leaf, subleaf uint32) CPUIDResult {
	return f.CPUIDOverride[[2]uint32{leaf, subleaf}]
}

func (f *Fake) ReadMSR(msr uint32) uint64 { return f.MSRs[msr] }

func (f *Fake) WriteMSR(msr uint32, value uint64) { f.MSRs[msr] = value }

func (f *Fake) GetCR0() uint64  { return f.CR0 }
func (f *Fake) SetCR0(v uint64) { f.CR0 = v }
func (f *Fake) GetCR4() uint64  { return f.CR4 }
func (f *Fake) SetCR4(v uint64) { f.CR4 = v }
func (f *Fake) GetCR3() uint64  { return f.CR3 }

func (f *Fake) SGDT() DescriptorPointer          { return f.GDT }
func (f *Fake) SIDT() DescriptorPointer          { return f.IDT }
func (f *Fake) STR() uint16                      { return f.Tr }
func (f *Fake) SLDT() uint16                     { return f.Ldt }
func (f *Fake) ReadSegmentSelectors() SegmentSelectors { return f.Segs }

func (f *Fake) VMXOn(phys uint64) error {
	f.VMXOnCalls = append(f.VMXOnCalls, phys)

	return nil
}

func (f *Fake) VMXOff() error {
	f.VMXOffCalls++

	return nil
}

func (f *Fake) VMClear(phys uint64) error {
	f.VMClearCalls = append(f.VMClearCalls, phys)
	if f.CurrentVMCS == phys {
		f.CurrentVMCS = 0
	}

	return nil
}

func (f *Fake) VMPtrld(phys uint64) error {
	f.VMPtrldCalls = append(f.VMPtrldCalls, phys)
	f.CurrentVMCS = phys

	return nil
}

func (f *Fake) VMPtrst() (uint64, error) {
	return f.CurrentVMCS, nil
}

func (f *Fake) VMRead(field uint64) (uint64, error) {
	if f.CurrentVMCS == 0 {
		return 0, ErrVMFailInvalid
	}

	return f.VMCSFields[field], nil
}

func (f *Fake) VMWrite(field, value uint64) error {
	if f.CurrentVMCS == 0 {
		return ErrVMFailInvalid
	}

	f.VMCSFields[field] = value

	return nil
}

func (f *Fake) VMLaunch(regsAddr uintptr) error {
	f.LaunchedWith = append(f.LaunchedWith, regsAddr)
	err := f.NextExit
	f.NextExit = nil

	return err
}

func (f *Fake) VMResume(regsAddr uintptr) error {
	f.ResumedWith = append(f.ResumedWith, regsAddr)
	err := f.NextExit
	f.NextExit = nil

	return err
}

// SortedVMCSFields returns the written field encodings in ascending order,
// for tests that assert on the shape of a VMCS population without caring
// about write order.
func (f *Fake) SortedVMCSFields() []uint64 {
	keys := make([]uint64, 0, len(f.VMCSFields))
	for k := range f.VMCSFields {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}
