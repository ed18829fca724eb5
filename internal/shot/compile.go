// Package shot compiles a complete timeline into per-device instructions
// and a device start order. Compilation is atomic: either every device
// compiles, or the whole shot fails and nothing is returned.
package shot

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/light-scattering-iogs/caqtus-sub004/internal/ctxlog"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/dag"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/device"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/instruction"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/sequencer"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/timeline"
)

// DeviceProgram is everything one device needs to run a shot: its merged
// multi-channel instruction, its time base, and for cameras the expected
// exposure list.
type DeviceProgram struct {
	Device string
	// TimeStep is the device quantization in nanoseconds per tick.
	TimeStep uint64
	// Instruction carries every channel of the device, in lane declaration
	// order, plus any synthesized clock channels for followers it paces.
	Instruction instruction.Instruction
	// Exposures lists the pictures a camera device takes, in order. Empty
	// for sequencers.
	Exposures []sequencer.Exposure
	// StartPriority is the trigger priority used for the start order;
	// lower starts earlier.
	StartPriority int
}

// Result is one fully compiled shot.
type Result struct {
	// Devices maps each participating device name to its program.
	Devices map[string]*DeviceProgram
	// StartOrder lists device names in the order they must be started:
	// every clock or trigger source before the devices it drives, ties
	// broken by (priority, name) so the order is reproducible.
	StartOrder []string
}

// Compile turns a validated shot into per-device programs. Every device is
// compiled against the same step boundaries on its own time base, lanes
// are merged per device, clock channels are synthesized into leaders, and
// the start order is derived from the trigger graph.
func Compile(ctx context.Context, s *timeline.Shot, registry *device.Registry) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	if err := s.Validate(); err != nil {
		return nil, err
	}

	byDevice := make(map[string][]*timeline.Lane)
	var errs *multierror.Error
	for _, lane := range s.Lanes {
		cfg, ok := registry.Get(lane.Device)
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("lane %q targets unknown device %q", lane.Name, lane.Device))
			continue
		}
		if lane.Camera != nil && cfg.Kind != device.Camera {
			errs = multierror.Append(errs, &timeline.LaneStructureError{
				Lane:   lane.Name,
				Detail: fmt.Sprintf("camera lane targets %s device %q", cfg.Kind, lane.Device),
			})
			continue
		}
		byDevice[lane.Device] = append(byDevice[lane.Device], lane)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(byDevice))
	for name := range byDevice {
		names = append(names, name)
	}
	sort.Strings(names)

	// Devices are independent until trigger resolution, so they compile in
	// parallel. The first failure cancels the rest and discards everything.
	programs := make(map[string]*DeviceProgram, len(names))
	var programsMu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	for _, name := range names {
		cfg, _ := registry.Get(name)
		lanes := byDevice[name]
		group.Go(func() error {
			program, err := compileDevice(groupCtx, cfg, lanes, s)
			if err != nil {
				return err
			}
			programsMu.Lock()
			programs[cfg.Name] = program
			programsMu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if err := resolveTriggers(programs, registry); err != nil {
		return nil, err
	}

	order, err := startOrder(programs, registry)
	if err != nil {
		return nil, err
	}

	logger.Info("Compiled shot.", "shot", s.Name, "devices", len(programs))
	return &Result{Devices: programs, StartOrder: order}, nil
}

// compileDevice compiles every lane of one device on its time base and
// merges them into a single multi-channel instruction.
func compileDevice(ctx context.Context, cfg *device.Config, lanes []*timeline.Lane, s *timeline.Shot) (*DeviceProgram, error) {
	timing, err := sequencer.ComputeTiming(s.Steps, s.Variables, cfg.TimeStep)
	if err != nil {
		return nil, fmt.Errorf("device %q: %w", cfg.Name, err)
	}

	var (
		merged    instruction.Instruction
		firstLane string
		exposures []sequencer.Exposure
	)
	for _, lane := range lanes {
		compiled, err := sequencer.CompileLane(ctx, lane, timing, s.Variables)
		if err != nil {
			return nil, err
		}
		exposures = append(exposures, compiled.Exposures...)

		if merged == nil {
			merged, firstLane = compiled.Instruction, lane.Name
			continue
		}
		if a, b := merged.Length(), compiled.Instruction.Length(); a != b {
			return nil, &LengthMismatchError{
				Device: cfg.Name,
				LaneA:  firstLane, TicksA: a,
				LaneB: lane.Name, TicksB: b,
			}
		}
		merged, err = instruction.MergeChannels(merged, compiled.Instruction)
		if err != nil {
			return nil, fmt.Errorf("device %q: %w", cfg.Name, err)
		}
	}

	return &DeviceProgram{
		Device:        cfg.Name,
		TimeStep:      cfg.TimeStep,
		Instruction:   merged,
		Exposures:     exposures,
		StartPriority: cfg.Trigger.Priority(),
	}, nil
}

// resolveTriggers synthesizes clock channels into leader programs for
// every externally clocked follower. Runs after all devices compiled so
// follower instructions are final when their clocks are derived.
func resolveTriggers(programs map[string]*DeviceProgram, registry *device.Registry) error {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg, _ := registry.Get(name)
		leaderName := cfg.Trigger.LeaderName()
		if leaderName == "" {
			continue
		}
		leaderCfg, ok := registry.Get(leaderName)
		if !ok {
			return &TriggerConfigurationError{Device: name, Detail: fmt.Sprintf("leader %q is not registered", leaderName)}
		}
		leader, ok := programs[leaderName]
		if !ok {
			return &TriggerConfigurationError{Device: name, Detail: fmt.Sprintf("leader %q has no lanes in this shot", leaderName)}
		}

		var onChange bool
		switch cfg.Trigger.(type) {
		case device.ExternalTriggerStart:
			continue
		case device.ExternalClock:
			onChange = false
		case device.ExternalClockOnChange:
			onChange = true
		default:
			return &TriggerConfigurationError{Device: name, Detail: fmt.Sprintf("unsupported trigger %T", cfg.Trigger)}
		}

		follower := programs[name]
		if cfg.TimeStep%leaderCfg.TimeStep != 0 {
			return &TriggerConfigurationError{
				Device: name,
				Detail: fmt.Sprintf("time step %d ns is not a multiple of leader %q's %d ns", cfg.TimeStep, leaderName, leaderCfg.TimeStep),
			}
		}
		ratio := cfg.TimeStep / leaderCfg.TimeStep
		if ratio < 2 {
			return &TriggerConfigurationError{
				Device: name,
				Detail: fmt.Sprintf("leader %q must run at least twice as fast to clock this device", leaderName),
			}
		}
		fTicks := follower.Instruction.Length()
		if lTicks := leader.Instruction.Length(); fTicks*ratio != lTicks {
			return &TriggerConfigurationError{
				Device: name,
				Detail: fmt.Sprintf("%d follower ticks at ratio %d do not fill leader %q's %d ticks", fTicks, ratio, leaderName, lTicks),
			}
		}

		channel := ClockChannelName(name)
		var clock instruction.Instruction
		var err error
		if onChange {
			clock, err = changeClock(follower.Instruction, channel, ratio)
		} else {
			clock, err = steadyClock(channel, fTicks, ratio)
		}
		if err != nil {
			return fmt.Errorf("device %q: synthesizing clock: %w", name, err)
		}
		leader.Instruction, err = instruction.MergeChannels(leader.Instruction, clock)
		if err != nil {
			return fmt.Errorf("device %q: merging clock into leader %q: %w", name, leaderName, err)
		}
	}
	return nil
}

// startOrder topologically sorts devices so every trigger and clock
// source comes before the devices it drives, ties broken by ascending
// trigger priority then name.
func startOrder(programs map[string]*DeviceProgram, registry *device.Registry) ([]string, error) {
	g := dag.New()
	for name := range programs {
		g.AddNode(name)
	}
	for name := range programs {
		cfg, _ := registry.Get(name)
		if leader := cfg.Trigger.LeaderName(); leader != "" {
			if err := g.AddEdge(leader, name); err != nil {
				return nil, &TriggerConfigurationError{Device: name, Detail: err.Error()}
			}
		}
	}
	order, err := g.TopoSort(func(a, b string) bool {
		pa, pb := programs[a].StartPriority, programs[b].StartPriority
		if pa != pb {
			return pa < pb
		}
		return a < b
	})
	if err != nil {
		return nil, fmt.Errorf("resolving start order: %w", err)
	}
	return order, nil
}
