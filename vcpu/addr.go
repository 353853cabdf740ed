package vcpu

import (
	"unsafe"

	"github.com/nmi/vtxcore/guest"
)

func regsAddr(r *guest.Registers) uintptr { return uintptr(unsafe.Pointer(r)) }
