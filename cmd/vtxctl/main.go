// Command vtxctl is a userspace harness around the pieces of this module
// that do not require VMX hardware to exercise: the control-adjustment
// algorithm, GDT unpacking, and identity page-table construction. It also
// exposes a "probe" subcommand that attempts the real capability probe,
// which only succeeds when run with the privilege level VMX instructions
// require (this binary is not the driver spec.md's bootstrap describes;
// it is the closest thing to gokvm's own "probe" subcommand this core has).
package main

import (
	"log"
	"os"
)

func main() {
	if err := run(os.Args); err != nil {
		log.Fatal(err)
	}
}
