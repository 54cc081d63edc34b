package device

import "runtime"

// deviceConfig collects the options shared by every backend.
type deviceConfig struct {
	label                string
	workers              int
	forceFallbackAdapter bool
	validate             bool
}

// DeviceBuilderOption is a functional option applied to a device during construction via NewDevice.
type DeviceBuilderOption func(*deviceConfig)

func defaultWorkers() int {
	return max(runtime.NumCPU()-1, 1)
}

// WithLabel sets the debug label of the device.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - DeviceBuilderOption: a function that applies the label option to a device
func WithLabel(label string) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.label = label
	}
}

// WithWorkers sets the number of workers the simulated backend fans unordered kernels out to.
// Values below 1 fall back to the default of NumCPU-1.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - DeviceBuilderOption: a function that applies the worker option to a device
func WithWorkers(n int) DeviceBuilderOption {
	return func(c *deviceConfig) {
		if n < 1 {
			n = defaultWorkers()
		}
		c.workers = n
	}
}

// WithForceFallbackAdapter forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe). Ignored by the simulated backend.
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - DeviceBuilderOption: a function that applies the fallback adapter option to a device
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithHazardValidation toggles barrier validation of command streams. Enabled by default.
//
// Parameters:
//   - enabled: false to record commands without checking barriers
//
// Returns:
//   - DeviceBuilderOption: a function that applies the validation option to a device
func WithHazardValidation(enabled bool) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.validate = enabled
	}
}
