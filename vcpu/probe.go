package vcpu

import (
	"fmt"

	"github.com/nmi/vtxcore/vmxasm"
)

const (
	cpuidLeafFeatures = 1
	cpuidECXVMXBit    = 1 << 5

	featureControlLockBit        = 1 << 0
	featureControlVMXOutsideSMX  = 1 << 2
)

// Capabilities is the result of Probe: whether this logical CPU can enter
// VMX operation at all, and under what IA32_FEATURE_CONTROL state.
type Capabilities struct {
	HasVMX             bool
	FeatureControlLock uint64
	VMCSRevisionID     uint32
}

// Probe checks CPU vendor, CPUID.1:ECX.VMX, and IA32_FEATURE_CONTROL, and
// locks the MSR (setting the lock bit plus VMXON-outside-SMX) if it was
// unlocked. It returns vmxasm.ErrNotIntelCPU, vmxasm.ErrNoVMXSupport, or
// vmxasm.ErrFeatureLocked for the three ways a CPU can fail to qualify.
func Probe(ops vmxasm.Ops) (Capabilities, error) {
	if !ops.HasIntelCPU() {
		return Capabilities{}, vmxasm.ErrNotIntelCPU
	}

	r := ops.CPUID(cpuidLeafFeatures, 0)
	if r.ECX&cpuidECXVMXBit == 0 {
		return Capabilities{}, vmxasm.ErrNoVMXSupport
	}

	fc := ops.ReadMSR(vmxasm.MSRIA32FeatureControl)
	if fc&featureControlLockBit == 0 {
		fc |= featureControlLockBit | featureControlVMXOutsideSMX
		ops.WriteMSR(vmxasm.MSRIA32FeatureControl, fc)
	} else if fc&featureControlVMXOutsideSMX == 0 {
		return Capabilities{}, fmt.Errorf("vcpu: %w: VMXON-outside-SMX is clear and locked", vmxasm.ErrFeatureLocked)
	}

	basic := ops.ReadMSR(vmxasm.MSRIA32VMXBasic)

	return Capabilities{
		HasVMX:             true,
		FeatureControlLock: fc,
		VMCSRevisionID:     uint32(basic) &^ (1 << 31),
	}, nil
}
