package gdt

import "testing"

func flatCodeDescriptor() Entry {
	// base=0, limit=0xFFFFF, granularity=4KiB, 64-bit code, present, DPL0.
	var e Entry
	e[0], e[1] = 0xFF, 0xFF // limit_low
	e[5] = 0b1001_1010      // present, DPL0, code, executable, readable
	e[6] = 0b1010_1111      // granularity, long mode, limit high nibble

	return e
}

func TestUnpackSelectorZeroIsUnusable(t *testing.T) {
	table := []Entry{{}, flatCodeDescriptor()}

	got := Unpack(table, 0)
	if got.AccessRights&segmentUnusable == 0 {
		t.Fatalf("selector 0 should be unusable, got %+v", got)
	}
}

func TestUnpackNotPresentIsUnusable(t *testing.T) {
	d := flatCodeDescriptor()
	d[5] &^= accessPresent

	table := []Entry{{}, d}

	got := Unpack(table, entrySize)
	if got.AccessRights&segmentUnusable == 0 {
		t.Fatalf("not-present descriptor should be unusable, got %+v", got)
	}
}

func TestUnpackFlatCodeSegment(t *testing.T) {
	table := []Entry{{}, flatCodeDescriptor()}

	got := Unpack(table, entrySize)
	if got.Base != 0 {
		t.Fatalf("Base = %#x, want 0", got.Base)
	}

	if got.Limit != 0xFFFFF {
		t.Fatalf("Limit = %#x, want 0xFFFFF", got.Limit)
	}

	if got.AccessRights&segmentUnusable != 0 {
		t.Fatalf("present descriptor marked unusable: %+v", got)
	}
}

func TestBuildAppendsTSSDescriptor(t *testing.T) {
	current := []Entry{{}, flatCodeDescriptor()}

	h := Build(current, struct{ CS, SS, DS, ES, FS, GS uint16 }{CS: 8}, 0x1000)

	if len(h.Entries) != len(current)+tssDescriptorSlots {
		t.Fatalf("len(Entries) = %d, want %d", len(h.Entries), len(current)+tssDescriptorSlots)
	}

	if h.TR != uint16(len(current)*entrySize) {
		t.Fatalf("TR = %#x, want %#x", h.TR, len(current)*entrySize)
	}

	unpacked := Unpack(h.Entries, h.TR)
	if unpacked.Base != 0x1000 {
		t.Fatalf("TSS base = %#x, want 0x1000", unpacked.Base)
	}
}
