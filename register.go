package mmio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"

	"github.com/reglet-dev/spike-mmio-sdk/internal/abi"
	"github.com/reglet-dev/spike-mmio-sdk/internal/bridge"
	"github.com/reglet-dev/spike-mmio-sdk/internal/registry"
)

// Registration error codes, as reported by oops.AsOops(err).Code().
const (
	CodeNameInvalid    = registry.CodeNameInvalid
	CodeNameDuplicate  = registry.CodeNameDuplicate
	CodeSlotsExhausted = registry.CodeSlotsExhausted
	CodePublishFailed  = registry.CodePublishFailed
	CodeNilConstructor = "MMIO_CONSTRUCTOR_NIL"
)

var (
	declared = registry.New(bridge.MaxSlots)

	// startMu serializes publishing so each plugin reaches the host once.
	startMu sync.Mutex
	started atomic.Bool
)

// Option configures a registration.
type Option func(*registerConfig)

type registerConfig struct {
	description string
	args        any
}

// WithDescription sets the human-readable description shown in the manifest.
func WithDescription(desc string) Option {
	return func(c *registerConfig) {
		c.description = desc
	}
}

// WithArgs describes the accepted argument format with a struct; its JSON
// schema appears in the manifest.
func WithArgs(v any) Option {
	return func(c *registerConfig) {
		c.args = v
	}
}

// Register declares a plugin type under name. Declared plugins are handed
// to the host by Start; after Start has run, Register publishes
// immediately.
//
// name must be printable ASCII, at most 63 bytes, and unique within the
// library.
func Register[T Device](name string, newFn NewFunc[T], opts ...Option) error {
	if newFn == nil {
		return oops.In("mmio").Code(CodeNilConstructor).With("plugin", name).Errorf("nil constructor for %q", name)
	}

	var cfg registerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	startMu.Lock()
	defer startMu.Unlock()

	entry, err := declared.Add(name, cfg.description, cfg.args)
	if err != nil {
		return err
	}

	factory := func(args string) Device { return newFn(args) }
	if err := bridge.Bind(entry.Slot, name, factory); err != nil {
		declared.Remove(name)
		return oops.In("mmio").With("plugin", name).Wrap(err)
	}

	if started.Load() {
		return publishLocked()
	}
	return nil
}

// MustRegister is Register for init functions: it panics on error.
func MustRegister[T Device](name string, newFn NewFunc[T], opts ...Option) {
	if err := Register(name, newFn, opts...); err != nil {
		panic(fmt.Sprintf("mmio: failed to register plugin %q: %v", name, err))
	}
}

// publishLocked hands every pending plugin to the host. Callers hold startMu.
func publishLocked() error {
	return declared.Publish(func(e registry.Entry) error {
		d, err := abi.Publish(e.Slot, e.Name)
		if err != nil {
			return err
		}
		logger().Info("mmio plugin registered",
			"plugin", e.Name,
			"slot", e.Slot,
			"host", d.Hosted(),
		)
		return nil
	})
}
