package vmxasm

import "reflect"

// VMExitStubAddr returns the entry address of VMExitStub, for installing
// into the VMCS HOST_RIP field. reflect.ValueOf(fn).Pointer() is the
// standard way Go code recovers a function's code address without the
// assembler needing to export it as data.
func VMExitStubAddr() uint64 {
	return uint64(reflect.ValueOf(VMExitStub).Pointer())
}
