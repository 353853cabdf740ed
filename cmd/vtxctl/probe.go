package main

import (
	"fmt"

	"github.com/nmi/vtxcore/vcpu"
	"github.com/nmi/vtxcore/vmxasm"
)

// probeCapabilities runs the real vcpu.Probe against hardware. RDMSR and
// the IA32_FEATURE_CONTROL write it performs are privileged: outside a
// kernel-mode driver (the bootstrap spec.md assumes but leaves external to
// this core) this will typically fail with a general-protection fault
// surfaced by the OS as a crash, not a returned error. The subcommand
// exists anyway, the way gokvm's own "probe" queries /dev/kvm, so there is
// a single entry point a real driver's main loop can call into.
func probeCapabilities() error {
	caps, err := vcpu.Probe(vmxasm.Hardware{})
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}

	fmt.Printf("VMX supported: revision ID %#x, IA32_FEATURE_CONTROL %#x\n",
		caps.VMCSRevisionID, caps.FeatureControlLock)

	return nil
}
