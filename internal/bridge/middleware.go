package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/reglet-dev/spike-mmio-sdk/domain/ports"
	"github.com/reglet-dev/spike-mmio-sdk/metrics"
)

// Op names the kind of access.
type Op string

const (
	OpLoad  Op = "load"
	OpStore Op = "store"
)

// Access describes one host load or store.
type Access struct {
	Plugin   string
	Instance ulid.ULID
	Op       Op
	Offset   uint64
}

// AccessFunc performs an access against a device.
type AccessFunc func(dev ports.Device, acc Access, buf []byte) bool

// Middleware wraps an AccessFunc. Middleware executes in FIFO order (first
// registered wraps outermost). A middleware must return the wrapped
// function's result unchanged whenever the wrapped function returns.
type Middleware func(next AccessFunc) AccessFunc

func dispatch(dev ports.Device, acc Access, buf []byte) bool {
	if acc.Op == OpLoad {
		return dev.Load(acc.Offset, buf)
	}
	return dev.Store(acc.Offset, buf)
}

// Chain wraps fn with mw, first middleware outermost.
func Chain(fn AccessFunc, mw ...Middleware) AccessFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		fn = mw[i](fn)
	}
	return fn
}

var current atomic.Pointer[AccessFunc]

func init() {
	Use(DefaultMiddleware()...)
}

// DefaultMiddleware is the chain installed at startup.
func DefaultMiddleware() []Middleware {
	return []Middleware{
		RecoverMiddleware(),
		MetricsMiddleware(),
		TraceMiddleware(),
	}
}

// Use replaces the access chain. Calls already in flight finish on the old
// chain.
func Use(mw ...Middleware) {
	fn := Chain(dispatch, mw...)
	current.Store(&fn)
}

func pipeline() AccessFunc {
	return *current.Load()
}

// RecoverMiddleware turns a panicking device into a failed access. The host
// sees false, exactly as for a device-reported failure.
func RecoverMiddleware() Middleware {
	return func(next AccessFunc) AccessFunc {
		return func(dev ports.Device, acc Access, buf []byte) (ok bool) {
			defer func() {
				if r := recover(); r != nil {
					ok = false
					metrics.RecordAccess(acc.Plugin, string(acc.Op), metrics.ResultPanic)
					slog.Error("mmio device panicked",
						"plugin", acc.Plugin,
						"instance", acc.Instance.String(),
						"op", string(acc.Op),
						"offset", acc.Offset,
						"len", len(buf),
						"panic", fmt.Sprint(r),
					)
				}
			}()
			return next(dev, acc, buf)
		}
	}
}

// MetricsMiddleware counts accesses by plugin, op and result.
func MetricsMiddleware() Middleware {
	return func(next AccessFunc) AccessFunc {
		return func(dev ports.Device, acc Access, buf []byte) bool {
			ok := next(dev, acc, buf)
			result := metrics.ResultOK
			if !ok {
				result = metrics.ResultFail
			}
			metrics.RecordAccess(acc.Plugin, string(acc.Op), result)
			return ok
		}
	}
}

// TraceMiddleware logs every access at debug level.
func TraceMiddleware() Middleware {
	return func(next AccessFunc) AccessFunc {
		return func(dev ports.Device, acc Access, buf []byte) bool {
			ok := next(dev, acc, buf)
			logger := slog.Default()
			if logger.Enabled(context.Background(), slog.LevelDebug) {
				logger.Debug("mmio access",
					"plugin", acc.Plugin,
					"instance", acc.Instance.String(),
					"op", string(acc.Op),
					"offset", acc.Offset,
					"len", len(buf),
					"ok", ok,
				)
			}
			return ok
		}
	}
}
