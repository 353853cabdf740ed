package paging

import "testing"

func addrs() Addresses {
	a := Addresses{PML4: 0x1000, PDPT: 0x2000}
	for i := range a.PD {
		a.PD[i] = 0x3000 + uint64(i)*0x1000
	}

	return a
}

func TestBuildIdentityPML4HasOneEntry(t *testing.T) {
	var tbl Tables
	a := addrs()
	BuildIdentity(&tbl, a)

	if !tbl.PML4.Entries[0].Present() || !tbl.PML4.Entries[0].Writable() {
		t.Fatalf("PML4[0] = %#x, want present+writable", tbl.PML4.Entries[0])
	}

	if tbl.PML4.Entries[0].PFN() != a.PDPT>>baseShiftPFN {
		t.Fatalf("PML4[0].PFN = %#x, want %#x", tbl.PML4.Entries[0].PFN(), a.PDPT>>baseShiftPFN)
	}

	for i := 1; i < entriesPerTable; i++ {
		if tbl.PML4.Entries[i].Present() {
			t.Fatalf("PML4[%d] should be absent", i)
		}
	}
}

func TestBuildIdentityMapsEveryPhysicalPage(t *testing.T) {
	var tbl Tables
	BuildIdentity(&tbl, addrs())

	cases := []struct{ pdIndex, pdeIndex int }{{0, 0}, {0, 1}, {5, 200}, {511, 511}}
	for _, c := range cases {
		e := tbl.PD[c.pdIndex].Entries[c.pdeIndex]
		if !e.Present() || !e.Large() || !e.Writable() {
			t.Fatalf("PD[%d][%d] = %#x, want present+large+writable", c.pdIndex, c.pdeIndex, e)
		}

		wantPA := (uint64(c.pdIndex)*entriesPerTable + uint64(c.pdeIndex)) * largePageSize
		if e.PFN() != wantPA>>baseShiftPFN {
			t.Fatalf("PD[%d][%d].PFN = %#x, want %#x identity mapping",
				c.pdIndex, c.pdeIndex, e.PFN(), wantPA>>baseShiftPFN)
		}
	}
}
