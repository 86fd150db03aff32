package device

import (
	"strings"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// InstanceFactory creates HAL instances. hal.Backend implementations and
// noop.API satisfy it.
type InstanceFactory interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// PowerPreference selects between adapter classes when several are present.
type PowerPreference int

const (
	// PowerHighPerformance prefers discrete GPUs.
	PowerHighPerformance PowerPreference = iota
	// PowerLowPower prefers integrated GPUs.
	PowerLowPower
)

// Option configures Open.
type Option func(*options)

type options struct {
	backend     gputypes.Backend
	factory     InstanceFactory
	power       PowerPreference
	adapterName string
	waitTimeout time.Duration
}

func defaultOptions() options {
	return options{
		backend:     gputypes.BackendVulkan,
		power:       PowerHighPerformance,
		waitTimeout: 5 * time.Second,
	}
}

// WithBackend selects a registered HAL backend. Default: Vulkan.
func WithBackend(b gputypes.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithInstanceFactory bypasses the backend registry. Tests pass the noop API.
func WithInstanceFactory(f InstanceFactory) Option {
	return func(o *options) {
		o.factory = f
	}
}

// WithPowerPreference selects the preferred adapter class.
func WithPowerPreference(p PowerPreference) Option {
	return func(o *options) {
		o.power = p
	}
}

// WithAdapterName restricts selection to adapters whose name contains name
// (case-insensitive).
func WithAdapterName(name string) Option {
	return func(o *options) {
		o.adapterName = strings.ToLower(name)
	}
}

// WithWaitTimeout bounds a blocking Poll(true). Default: 5s.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.waitTimeout = d
		}
	}
}
