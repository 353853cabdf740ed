package vmxasm

import "github.com/nmi/vtxcore/guest"

// The declarations below follow cpuid_low's pattern: the Go signature lives
// here, the instruction itself is implemented in instr_amd64.s. None of
// these have a safe, non-assembly expression, and no ecosystem Go package
// wraps privileged VMX/control-register/descriptor-table instructions, so
// unlike everywhere else in this module there is no third-party library to
// reach for here.

func getCR0Asm() uint64
func setCR0Asm(v uint64)
func getCR3Asm() uint64
func getCR4Asm() uint64
func setCR4Asm(v uint64)

func rdmsrAsm(msr uint32) (lo, hi uint32)
func wrmsrAsm(msr uint32, lo, hi uint32)

// sgdtAsm and sidtAsm write a packed 10-byte descriptor pointer (2-byte
// limit followed by 8-byte base, matching the hardware SGDT/SIDT layout) to
// *buf. buf must point at 10 or more bytes.
func sgdtAsm(buf *byte)
func sidtAsm(buf *byte)

func strAsm() uint16
func sldtAsm() uint16

// readSegSelectorsAsm writes six selectors, in order CS,SS,DS,ES,FS,GS, to
// *out. out must point at 6 or more uint16 slots.
func readSegSelectorsAsm(out *uint16)

// vmxonAsm, vmxoffAsm, vmclearAsm, vmptrldAsm, vmptrstAsm, vmreadAsm, and
// vmwriteAsm each return the RFLAGS value immediately after the
// instruction, which classify() turns into the VM-instruction success/
// failure convention.
func vmxonAsm(phys uint64) (rflags uint64)
func vmxoffAsm() (rflags uint64)
func vmclearAsm(phys uint64) (rflags uint64)
func vmptrldAsm(phys uint64) (rflags uint64)
func vmptrstAsm() (phys uint64, rflags uint64)
func vmreadAsm(field uint64) (value uint64, rflags uint64)
func vmwriteAsm(field, value uint64) (rflags uint64)

// vmlaunchAsm and vmresumeAsm restore the guest GPRs found at *regs, then
// execute VMLAUNCH/VMRESUME. They return only if the instruction itself
// fails before the guest runs (rflags carries CF/ZF for classify()); a
// successful VM-entry instead resumes host execution at VMExitStub once a
// VM-exit occurs, with the guest's exit-time GPRs already written back to
// *regs.
func vmlaunchAsm(regs *guest.Registers) (rflags uint64)
func vmresumeAsm(regs *guest.Registers) (rflags uint64)

// currentRSPAsm returns its own entry stack pointer. Hardware.VMLaunch and
// Hardware.VMResume call it before vmlaunchAsm/vmresumeAsm and write the
// result into the VMCS HOST_RSP field; see the coupling note on VMExitStub.
func currentRSPAsm() uintptr

// VMExitStub is the address vcpu installs as the VMCS host RIP. It is
// reached directly by hardware on VM-exit, not by a Go call, and saves the
// guest's exit-time GPRs into the Registers block that was passed to
// vmlaunchAsm/vmresumeAsm before returning to that call's caller.
func VMExitStub()
