package main

import (
	"flag"
	"fmt"

	"github.com/pkg/profile"

	"github.com/nmi/vtxcore/gdt"
	"github.com/nmi/vtxcore/paging"
	"github.com/nmi/vtxcore/vmxasm"
	"github.com/nmi/vtxcore/vmxctl"
)

// runSelftest exercises every pure-Go piece of this module that the
// testable properties in spec.md §8 describe, without touching real VMX
// hardware: the control adjuster, GDT unpacking, identity page-table
// construction, and VMCS-revision-ID masking. It is meant as a quick
// "does this build still behave" smoke check, not a replacement for the
// package test suites.
func runSelftest(args []string) error {
	cmd := flag.NewFlagSet("selftest", flag.ExitOnError)
	doProfile := cmd.Bool("profile", false, "wrap the self-test run with a CPU profile (writes to ./cpu.pprof)")

	if err := cmd.Parse(args); err != nil {
		return err
	}

	if *doProfile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}

	checks := []struct {
		name string
		run  func() error
	}{
		{"control adjustment forces allowed0 and masks allowed1", checkAdjust},
		{"GDT unpacking reassembles base/limit/access rights", checkGDTUnpack},
		{"selector 0 unpacks as unusable", checkGDTUnpackZero},
		{"identity page tables cover every (i,j) with the right PFN", checkIdentityPaging},
		{"VMCS revision ID masks bit 31", checkRevisionID},
		{"CR0/CR4 fixup is monotonic against FIXED0/FIXED1", checkCRFixup},
	}

	failed := 0

	for _, c := range checks {
		if err := c.run(); err != nil {
			fmt.Printf("FAIL  %s: %v\n", c.name, err)
			failed++

			continue
		}

		fmt.Printf("PASS  %s\n", c.name)
	}

	if failed > 0 {
		return fmt.Errorf("selftest: %d/%d checks failed", failed, len(checks))
	}

	return nil
}

func checkAdjust() error {
	f := vmxasm.NewFake()
	f.MSRs[vmxasm.MSRIA32VMXTrueProcbasedCtls] = (1 << 0) | (uint64(0x00030001) << 32)

	got := vmxctl.Adjust(f, vmxctl.ProcessorBased, 1<<5)

	const allowed0 = 1 << 0
	const allowed1 = 0x00030001

	if got|allowed0 != got {
		return fmt.Errorf("Adjust(%#x) = %#x, missing a forced-on bit", 1<<5, got)
	}

	if got&^allowed1 != 0 {
		return fmt.Errorf("Adjust(%#x) = %#x, sets a forbidden bit", 1<<5, got)
	}

	return nil
}

func checkGDTUnpack() error {
	var flat gdt.Entry
	flat[0], flat[1] = 0xFF, 0xFF
	flat[5] = 0b1001_1010
	flat[6] = 0b1010_1111

	table := []gdt.Entry{{}, flat}
	u := gdt.Unpack(table, 8)

	if u.Base != 0 {
		return fmt.Errorf("base = %#x, want 0", u.Base)
	}

	if u.AccessRights&(1<<16) != 0 {
		return fmt.Errorf("present descriptor marked unusable")
	}

	return nil
}

func checkGDTUnpackZero() error {
	table := []gdt.Entry{{}}
	u := gdt.Unpack(table, 0)

	if u.AccessRights&(1<<16) == 0 {
		return fmt.Errorf("selector 0 not marked unusable")
	}

	return nil
}

func checkIdentityPaging() error {
	var t paging.Tables

	var addr paging.Addresses
	addr.PML4, addr.PDPT = 0x1000, 0x2000

	for i := range addr.PD {
		addr.PD[i] = 0x3000 + uint64(i)*0x1000
	}

	paging.BuildIdentity(&t, addr)

	for _, c := range []struct{ i, j int }{{0, 0}, {7, 19}, {511, 511}} {
		e := t.PD[c.i].Entries[c.j]
		if !e.Present() || !e.Writable() || !e.Large() {
			return fmt.Errorf("PD[%d][%d] missing present/writable/large", c.i, c.j)
		}

		want := (uint64(c.i)*512 + uint64(c.j)) * (1 << 21) >> 12
		if e.PFN() != want {
			return fmt.Errorf("PD[%d][%d].PFN = %#x, want %#x", c.i, c.j, e.PFN(), want)
		}
	}

	return nil
}

func checkRevisionID() error {
	f := vmxasm.NewFake()
	f.MSRs[vmxasm.MSRIA32VMXBasic] = (1 << 31) | 0x0123_4567

	id := vmxctl.VMCSRevisionID(f)
	if id&(1<<31) != 0 {
		return fmt.Errorf("revision ID %#x has bit 31 set", id)
	}

	if id != 0x0123_4567 {
		return fmt.Errorf("revision ID = %#x, want %#x", id, 0x0123_4567)
	}

	return nil
}

func checkCRFixup() error {
	f := vmxasm.NewFake()
	f.MSRs[vmxasm.MSRIA32VMXCR0Fixed0] = 1 << 0
	f.MSRs[vmxasm.MSRIA32VMXCR0Fixed1] = ^uint64(1 << 3)

	cr0 := vmxctl.AdjustCR0(f, 1<<3)

	if cr0&(1<<0) == 0 {
		return fmt.Errorf("fixed0 bit not forced on")
	}

	if cr0&(1<<3) != 0 {
		return fmt.Errorf("fixed1-excluded bit not cleared")
	}

	return nil
}
