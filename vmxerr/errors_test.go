package vmxerr

import (
	"errors"
	"testing"
)

func TestExitReasonString(t *testing.T) {
	if got := ExitReasonCPUID.String(); got != "CPUID" {
		t.Fatalf("ExitReasonCPUID.String() = %q, want CPUID", got)
	}

	if got := ExitReason(999).String(); got != "UNKNOWN_EXIT_REASON(999)" {
		t.Fatalf("unknown exit reason = %q", got)
	}
}

func TestWrapInstructionErrorWrapsInstructionFailed(t *testing.T) {
	err := WrapInstructionError("VMLAUNCH", 4)
	if !errors.Is(err, ErrVMInstructionFailed) {
		t.Fatalf("WrapInstructionError does not wrap ErrVMInstructionFailed: %v", err)
	}
}
