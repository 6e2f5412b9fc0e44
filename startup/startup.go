// Package startup registers a c-shared plugin library's declared plugins
// with the simulator while the library is being loaded.
//
// Blank-import it from the main package of a library built with
// -buildmode=c-shared:
//
//	import _ "github.com/reglet-dev/spike-mmio-sdk/startup"
//
// A C constructor in this package runs when the dynamic loader maps the
// library. It calls into Go, which blocks until the Go runtime and every
// package init function (and with them every mmio.MustRegister call) have
// finished, then runs mmio.Start. Registration is therefore complete
// before dlopen returns to the simulator.
//
// Do not import this package from ordinary Go executables or tests: there
// the constructor would run before the Go runtime exists. Call mmio.Start
// instead.
package startup

import "C"

import (
	"log/slog"

	mmio "github.com/reglet-dev/spike-mmio-sdk"
	mmiolog "github.com/reglet-dev/spike-mmio-sdk/log"
)

//export mmioStartup
func mmioStartup() {
	if err := mmio.Start(); err != nil {
		mmiolog.LogError(slog.Default(), "mmio plugin registration failed", err)
	}
}
