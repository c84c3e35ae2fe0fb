package audio

import (
	"fmt"
	"sort"
)

// DeviceRouter maps platform names (runtime.GOOS values, or explicit
// adapter names) to audio devices, with a fallback used for unknown names.
type DeviceRouter struct {
	devices  map[string]Device
	fallback string
}

// NewDeviceRouter creates a router over the given adapters.
func NewDeviceRouter(devices map[string]Device, fallback string) *DeviceRouter {
	return &DeviceRouter{devices: devices, fallback: fallback}
}

// Route returns the device registered under name, falling back to the default.
func (r *DeviceRouter) Route(name string) (Device, error) {
	if d, ok := r.devices[name]; ok {
		return d, nil
	}
	if d, ok := r.devices[r.fallback]; ok {
		return d, nil
	}
	return Device{}, fmt.Errorf("no audio device for %q", name)
}

// Has reports whether name is registered.
func (r *DeviceRouter) Has(name string) bool {
	_, ok := r.devices[name]
	return ok
}

// Names returns registered adapter names, sorted.
func (r *DeviceRouter) Names() []string {
	names := make([]string, 0, len(r.devices))
	for k := range r.devices {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
