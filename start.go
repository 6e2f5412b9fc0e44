package mmio

import (
	"log/slog"

	"github.com/reglet-dev/spike-mmio-sdk/config"
	"github.com/reglet-dev/spike-mmio-sdk/internal/abi"
	"github.com/reglet-dev/spike-mmio-sdk/internal/bridge"
	mmiolog "github.com/reglet-dev/spike-mmio-sdk/log"
	"github.com/reglet-dev/spike-mmio-sdk/metrics"
)

// Start configures logging and metrics on its first call and publishes
// every declared plugin that has not been published yet. It is idempotent
// and safe for concurrent use.
//
// The startup package calls Start from a shared-library constructor. Hosts
// that drive plugins from Go must call it themselves, once all plugins are
// declared and before any plugin function is used.
func Start() error {
	startMu.Lock()
	defer startMu.Unlock()

	if !started.Load() {
		setup()
		started.Store(true)
	}
	return publishLocked()
}

// Started reports whether Start has run.
func Started() bool {
	return started.Load()
}

// LiveInstances returns the number of device instances the host currently owns.
func LiveInstances() int64 {
	return bridge.Live()
}

// HostLinked reports whether the simulator's registration function is
// present in the process.
func HostLinked() bool {
	return abi.HostLinked()
}

func setup() {
	cfg, err := config.Load()
	slog.SetDefault(mmiolog.New(
		mmiolog.WithLevel(mmiolog.ParseLevel(cfg.Log.Level)),
		mmiolog.WithFormat(cfg.Log.Format),
	))
	if err != nil {
		mmiolog.LogError(logger(), "invalid mmio configuration, using defaults", err)
	}

	if cfg.Metrics.Addr != "" {
		if _, err := metrics.Serve(cfg.Metrics.Addr); err != nil {
			mmiolog.LogError(logger(), "metrics endpoint disabled", err)
		}
	}
}

func logger() *slog.Logger {
	return slog.Default()
}
