package vmcs

import "encoding/binary"

// RegionSize is the fixed size of a VMXON region and of a VMCS region: one
// page, the only size Intel SDM 24.2/31.5 permits.
const RegionSize = 4096

// Region is the raw byte backing of a VMXON or VMCS region. The caller is
// responsible for page alignment and for resolving it to a physical
// address; Region itself only knows how to stamp and read the revision
// identifier every such region must carry in its first four bytes.
type Region [RegionSize]byte

// SetRevisionID stamps the processor's VMCS revision identifier (the low
// 31 bits of IA32_VMX_BASIC) into the region header, as VMXON and VMCLEAR
// both require.
func (r *Region) SetRevisionID(id uint32) {
	binary.LittleEndian.PutUint32(r[0:4], id&0x7FFFFFFF)
}

func (r *Region) RevisionID() uint32 {
	return binary.LittleEndian.Uint32(r[0:4]) & 0x7FFFFFFF
}
