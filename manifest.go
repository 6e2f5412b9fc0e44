package mmio

import (
	"github.com/reglet-dev/spike-mmio-sdk/internal/registry"
)

// PluginManifest describes one declared plugin.
type PluginManifest = registry.PluginManifest

// Manifest lists the plugins declared in this library.
type Manifest struct {
	SDKVersion string           `json:"sdk_version"`
	HostLinked bool             `json:"host_linked"`
	Plugins    []PluginManifest `json:"plugins"`
}

// GetManifest returns the manifest of every declared plugin.
func GetManifest() (*Manifest, error) {
	plugins, err := declared.Manifest()
	if err != nil {
		return nil, err
	}
	return &Manifest{
		SDKVersion: Version,
		HostLinked: HostLinked(),
		Plugins:    plugins,
	}, nil
}
