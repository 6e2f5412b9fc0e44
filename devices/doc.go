// Package devices holds reference device models built on the mmio SDK.
//
// Each subpackage exposes a New(args string) constructor suitable for
// mmio.Register and an Args struct describing its argument string for the
// plugin manifest.
package devices
