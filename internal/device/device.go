// Package device describes the hardware targets of a compilation: their
// time quantization, trigger wiring and kind. It owns no I/O; drivers
// consuming compiled instructions live outside this repository.
package device

import (
	"fmt"
	"sort"
)

// Kind distinguishes plain sequencers from cameras, which additionally
// receive a per-picture exposure list alongside their instruction.
type Kind uint8

const (
	Sequencer Kind = iota
	Camera
)

// String returns the kind name used in configuration files.
func (k Kind) String() string {
	switch k {
	case Sequencer:
		return "sequencer"
	case Camera:
		return "camera"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Trigger is the closed set of ways a device starts or paces its output.
// Sources start before the devices they drive, so each variant carries a
// start-up priority: lower starts earlier.
type Trigger interface {
	// Priority orders device start-up: lower values start first.
	Priority() int
	// LeaderName is the device this one follows, or "" for self-starting
	// devices.
	LeaderName() string

	isTrigger()
}

// SoftwareTrigger starts on a software command; it leads, never follows.
type SoftwareTrigger struct{}

func (SoftwareTrigger) Priority() int      { return 0 }
func (SoftwareTrigger) LeaderName() string { return "" }
func (SoftwareTrigger) isTrigger()         {}

// ExternalTriggerStart starts on an edge produced by the leader device.
type ExternalTriggerStart struct {
	Leader string
}

func (t ExternalTriggerStart) Priority() int      { return 1 }
func (t ExternalTriggerStart) LeaderName() string { return t.Leader }
func (t ExternalTriggerStart) isTrigger()         {}

// ExternalClock is paced tick by tick by a clock signal the leader device
// emits; the leader's instruction gains a synthesized clock channel.
type ExternalClock struct {
	Leader string
}

func (t ExternalClock) Priority() int      { return 1 }
func (t ExternalClock) LeaderName() string { return t.Leader }
func (t ExternalClock) isTrigger()         {}

// ExternalClockOnChange is like ExternalClock but the leader only pulses
// when the follower's output changes.
type ExternalClockOnChange struct {
	Leader string
}

func (t ExternalClockOnChange) Priority() int      { return 1 }
func (t ExternalClockOnChange) LeaderName() string { return t.Leader }
func (t ExternalClockOnChange) isTrigger()         {}

// Config is one device's static description.
type Config struct {
	Name string
	// TimeStep is the quantization unit in nanoseconds per tick. Always
	// positive.
	TimeStep uint64
	Trigger  Trigger
	Kind     Kind
}

// Registry holds the devices available to one compilation session. It is an
// explicit object owned by the caller; there is no process-wide device
// state.
type Registry struct {
	devices map[string]*Config
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*Config)}
}

// Add registers a device. Names are unique and time steps must be positive.
func (r *Registry) Add(cfg *Config) error {
	if cfg.Name == "" {
		return fmt.Errorf("device name must not be empty")
	}
	if cfg.TimeStep == 0 {
		return fmt.Errorf("device %q: time step must be positive", cfg.Name)
	}
	if cfg.Trigger == nil {
		return fmt.Errorf("device %q: trigger is required", cfg.Name)
	}
	if _, ok := r.devices[cfg.Name]; ok {
		return fmt.Errorf("device %q already registered", cfg.Name)
	}
	r.devices[cfg.Name] = cfg
	return nil
}

// Get looks a device up by name.
func (r *Registry) Get(name string) (*Config, bool) {
	cfg, ok := r.devices[name]
	return cfg, ok
}

// Names returns all registered device names in sorted order, so callers
// never depend on map iteration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.devices))
	for name := range r.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
