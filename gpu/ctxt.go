// Package gpu holds the process-wide GPU context used by the
// ray-entry compositor (package rayentry) for its render targets.
//
// The concrete driver.Driver implementation (the graphics API
// binding) is outside this module's scope; the host application
// selects one via driver.Register/driver.Drivers and activates it
// with Use.
package gpu

import (
	"errors"
	"strings"
	"sync"

	"github.com/vxcore/volcore/driver"
)

var (
	mu     sync.RWMutex
	drv    driver.Driver
	gpu    driver.GPU
	limits driver.Limits
)

// ErrNoDriver means that no registered driver.Driver matched the
// requested name.
var ErrNoDriver = errors.New("gpu: driver not found")

// Use selects a registered driver whose name contains the given
// substring (case-sensitive) and opens it for use by this process.
// An empty name considers every registered driver.
// It replaces any previously active driver; callers are responsible
// for having destroyed every GPU resource created under the old one.
func Use(name string) error {
	mu.Lock()
	defer mu.Unlock()
	drivers := driver.Drivers()
	for i := range drivers {
		if !strings.Contains(drivers[i].Name(), name) {
			continue
		}
		g, err := drivers[i].Open()
		if err != nil {
			continue
		}
		drv = drivers[i]
		gpu = g
		limits = g.Limits()
		return nil
	}
	return ErrNoDriver
}

// UseGPU installs an already-open GPU directly, bypassing driver
// selection. This is primarily useful for tests, which supply a
// fake driver.GPU.
func UseGPU(d driver.Driver, g driver.GPU) {
	mu.Lock()
	defer mu.Unlock()
	drv = d
	gpu = g
	if g != nil {
		limits = g.Limits()
	} else {
		limits = driver.Limits{}
	}
}

// Driver returns the active driver.Driver, or nil if none was
// activated.
func Driver() driver.Driver {
	mu.RLock()
	defer mu.RUnlock()
	return drv
}

// GPU returns the active driver.GPU, or nil if none was activated.
func GPU() driver.GPU {
	mu.RLock()
	defer mu.RUnlock()
	return gpu
}

// Limits returns a copy of the active GPU's implementation limits.
func Limits() driver.Limits {
	mu.RLock()
	defer mu.RUnlock()
	return limits
}
