package vmxasm

// cpuidAsm executes CPUID for (leaf, subleaf); implemented in cpuid_amd64.s
// following the same declare-here/define-in-.s split the kvm package uses
// for cpuid_low.
func cpuidAsm(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32)
