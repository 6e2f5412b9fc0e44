// Package mmio lets Go device emulators be loaded into an instruction-set
// simulator such as Spike through its memory-mapped I/O plugin interface.
//
// A plugin author implements Device and declares it from an init function:
//
//	func init() {
//	    mmio.MustRegister("uart", NewUART)
//	}
//
// and builds the main package with -buildmode=c-shared, blank-importing the
// startup package:
//
//	import _ "github.com/reglet-dev/spike-mmio-sdk/startup"
//
// When the simulator loads the library, startup publishes every declared
// plugin to the simulator's register_mmio_plugin before dlopen returns. From
// then on the simulator calls straight into the generated function table
// and this package forwards each call to the Device.
//
// Go programs that host plugins themselves (tests, tools) call Start
// explicitly instead; it is idempotent.
package mmio

// Version is the SDK version reported in the manifest.
const Version = "0.1.0"
