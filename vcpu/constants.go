package vcpu

// CR4.VMXE, Intel SDM Vol. 3C 23.7.
const cr4VMXE = 1 << 13

// Secondary-controls-active bit in the primary processor-based control
// field; everything else this core needs (RDTSCP, XSAVES/XRSTORS, INVPCID)
// lives in the secondary control field instead.
const secondaryControlsActive = 1 << 31

// Secondary processor-based control bits this core requests.
const (
	procbased2RDTSCP   = 1 << 3
	procbased2EnableEPT = 1 << 1
	procbased2INVPCID  = 1 << 12
	procbased2XSAVES   = 1 << 20
)

// eptMemTypeWriteBack | (4-1)<<3 encodes EPTP's memory type (write-back) and
// page-walk length (4 levels) fields, Intel SDM Vol. 3C 24.6.11.
const (
	eptMemTypeWriteBack = 6
	eptWalkLength4       = 3 << 3
)

// VM-entry/VM-exit control bits.
const (
	vmEntryIA32EGuest          = 1 << 9
	vmExitHostAddressSpaceSize = 1 << 9
)

// exceptionBitmapVectors traps #BP, #GP, and #PF (vectors 3, 13, 14): the
// only exceptions vmexit.handleException acts on.
const exceptionBitmapVectors = (1 << 3) | (1 << 13) | (1 << 14)
