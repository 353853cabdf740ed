package vmxasm

// MSR indices used during VMX capability probing and control adjustment
// (Intel SDM Vol. 3C, Appendix A).
const (
	MSRIA32FeatureControl = 0x3a
	MSRIA32VMXBasic       = 0x480

	MSRIA32VMXPinbasedCtls     = 0x481
	MSRIA32VMXProcbasedCtls    = 0x482
	MSRIA32VMXExitCtls         = 0x483
	MSRIA32VMXEntryCtls        = 0x484
	MSRIA32VMXProcbasedCtls2   = 0x48b
	MSRIA32VMXTruePinbasedCtls = 0x48d
	MSRIA32VMXTrueProcbasedCtls = 0x48e
	MSRIA32VMXTrueExitCtls     = 0x48f
	MSRIA32VMXTrueEntryCtls    = 0x490

	MSRIA32VMXCR0Fixed0 = 0x486
	MSRIA32VMXCR0Fixed1 = 0x487
	MSRIA32VMXCR4Fixed0 = 0x488
	MSRIA32VMXCR4Fixed1 = 0x489

	MSRIA32SysenterCS  = 0x174
	MSRIA32SysenterESP = 0x175
	MSRIA32SysenterEIP = 0x176
	MSRIA32EFER        = 0xc0000080
	MSRIA32DebugCtl    = 0x1d9

	MSRIA32FSBase = 0xc0000100
	MSRIA32GSBase = 0xc0000101
)

// unexported aliases used by fake.go, matching the lowerCamel spelling used
// there before these were pulled out into their own file.
const (
	msrIA32FeatureControl       = MSRIA32FeatureControl
	msrIA32VMXBasic             = MSRIA32VMXBasic
	msrIA32VMXCR0Fixed0         = MSRIA32VMXCR0Fixed0
	msrIA32VMXCR0Fixed1         = MSRIA32VMXCR0Fixed1
	msrIA32VMXCR4Fixed0         = MSRIA32VMXCR4Fixed0
	msrIA32VMXCR4Fixed1         = MSRIA32VMXCR4Fixed1
	msrIA32VMXTruePinbasedCtls  = MSRIA32VMXTruePinbasedCtls
	msrIA32VMXTrueProcbasedCtls = MSRIA32VMXTrueProcbasedCtls
	msrIA32VMXProcbasedCtls2    = MSRIA32VMXProcbasedCtls2
	msrIA32VMXTrueExitCtls      = MSRIA32VMXTrueExitCtls
	msrIA32VMXTrueEntryCtls     = MSRIA32VMXTrueEntryCtls
)
