package vcpu

import (
	"errors"
	"testing"

	"github.com/nmi/vtxcore/vmxasm"
)

func TestProbeRejectsNonIntel(t *testing.T) {
	f := vmxasm.NewFake()
	f.Intel = false

	_, err := Probe(f)
	if !errors.Is(err, vmxasm.ErrNotIntelCPU) {
		t.Fatalf("Probe err = %v, want ErrNotIntelCPU", err)
	}
}

func TestProbeLocksUnlockedFeatureControl(t *testing.T) {
	f := vmxasm.NewFake()
	f.WriteMSR(vmxasm.MSRIA32FeatureControl, 0)
	f.CPUIDOverride = map[[2]uint32]vmxasm.CPUIDResult{
		{1, 0}: {ECX: cpuidECXVMXBit},
	}

	caps, err := Probe(f)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}

	if !caps.HasVMX {
		t.Fatalf("Capabilities.HasVMX = false, want true")
	}

	if fc := f.ReadMSR(vmxasm.MSRIA32FeatureControl); fc&featureControlLockBit == 0 {
		t.Fatalf("feature control not locked: %#x", fc)
	}
}

func TestProbeRejectsLockedWithoutOutsideSMX(t *testing.T) {
	f := vmxasm.NewFake()
	f.WriteMSR(vmxasm.MSRIA32FeatureControl, featureControlLockBit)
	f.CPUIDOverride = map[[2]uint32]vmxasm.CPUIDResult{
		{1, 0}: {ECX: cpuidECXVMXBit},
	}

	_, err := Probe(f)
	if !errors.Is(err, vmxasm.ErrFeatureLocked) {
		t.Fatalf("Probe err = %v, want ErrFeatureLocked", err)
	}
}
