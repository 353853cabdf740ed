package vmxasm

import (
	"encoding/binary"
	"unsafe"

	"github.com/nmi/vtxcore/guest"
)

// Hardware is the real Ops backed by the instructions in instr_amd64.s and
// cpuid_amd64.s. It carries no state of its own; every call is a direct,
// synchronous instruction on whatever CPU the goroutine is currently
// scheduled on, so callers that care which logical CPU executes (vcpu does)
// must pin the OS thread first.
type Hardware struct{}

var _ Ops = Hardware{}

func (Hardware) HasIntelCPU() bool {
	r := Hardware{}.CPUID(0, 0)
	// "GenuineIntel" split across EBX,EDX,ECX in that order.
	var vendor [12]byte
	binary.LittleEndian.PutUint32(vendor[0:4], r.EBX)
	binary.LittleEndian.PutUint32(vendor[4:8], r.EDX)
	binary.LittleEndian.PutUint32(vendor[8:12], r.ECX)

	return string(vendor[:]) == "GenuineIntel"
}

func (Hardware) CPUID(leaf, subleaf uint32) CPUIDResult {
	eax, ebx, ecx, edx := cpuidAsm(leaf, subleaf)

	return CPUIDResult{EAX: eax, EBX: ebx, ECX: ecx, EDX: edx}
}

func (Hardware) ReadMSR(msr uint32) uint64 {
	lo, hi := rdmsrAsm(msr)

	return uint64(hi)<<32 | uint64(lo)
}

func (Hardware) WriteMSR(msr uint32, value uint64) {
	wrmsrAsm(msr, uint32(value), uint32(value>>32))
}

func (Hardware) GetCR0() uint64     { return getCR0Asm() }
func (Hardware) SetCR0(v uint64)    { setCR0Asm(v) }
func (Hardware) GetCR4() uint64     { return getCR4Asm() }
func (Hardware) SetCR4(v uint64)    { setCR4Asm(v) }
func (Hardware) GetCR3() uint64     { return getCR3Asm() }

func (Hardware) SGDT() DescriptorPointer {
	var buf [10]byte
	sgdtAsm(&buf[0])

	return DescriptorPointer{
		Limit: binary.LittleEndian.Uint16(buf[0:2]),
		Base:  binary.LittleEndian.Uint64(buf[2:10]),
	}
}

func (Hardware) SIDT() DescriptorPointer {
	var buf [10]byte
	sidtAsm(&buf[0])

	return DescriptorPointer{
		Limit: binary.LittleEndian.Uint16(buf[0:2]),
		Base:  binary.LittleEndian.Uint64(buf[2:10]),
	}
}

func (Hardware) STR() uint16  { return strAsm() }
func (Hardware) SLDT() uint16 { return sldtAsm() }

func (Hardware) ReadSegmentSelectors() SegmentSelectors {
	var sel [6]uint16
	readSegSelectorsAsm(&sel[0])

	return SegmentSelectors{CS: sel[0], SS: sel[1], DS: sel[2], ES: sel[3], FS: sel[4], GS: sel[5]}
}

func (Hardware) VMXOn(phys uint64) error  { return classify(vmxonAsm(phys)) }
func (Hardware) VMXOff() error            { return classify(vmxoffAsm()) }
func (Hardware) VMClear(phys uint64) error { return classify(vmclearAsm(phys)) }
func (Hardware) VMPtrld(phys uint64) error { return classify(vmptrldAsm(phys)) }

func (Hardware) VMPtrst() (uint64, error) {
	phys, rflags := vmptrstAsm()

	return phys, classify(rflags)
}

func (Hardware) VMRead(field uint64) (uint64, error) {
	value, rflags := vmreadAsm(field)

	return value, classify(rflags)
}

func (Hardware) VMWrite(field, value uint64) error {
	return classify(vmwriteAsm(field, value))
}

func (Hardware) VMLaunch(regsAddr uintptr) error {
	regs := (*guest.Registers)(unsafe.Pointer(regsAddr))
	hostRSP := currentRSPAsm()

	if err := (Hardware{}).VMWrite(vmcsHostRSP, uint64(hostRSP)); err != nil {
		return err
	}

	return classify(vmlaunchAsm(regs))
}

func (Hardware) VMResume(regsAddr uintptr) error {
	regs := (*guest.Registers)(unsafe.Pointer(regsAddr))
	hostRSP := currentRSPAsm()

	if err := (Hardware{}).VMWrite(vmcsHostRSP, uint64(hostRSP)); err != nil {
		return err
	}

	return classify(vmresumeAsm(regs))
}

// vmcsHostRSP is the VMCS field encoding for the host RSP, duplicated from
// vmcs.FieldHostRSP to avoid an import cycle (vmcs depends on vmxasm.Ops).
const vmcsHostRSP = 0x00006c14
