// Package ports defines the interface a device emulator implements to be
// served over the MMIO plugin ABI. Nothing here knows about C pointers or
// handles; the bridge adapts these calls to the host's function table.
package ports
