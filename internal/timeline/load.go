package timeline

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/light-scattering-iogs/caqtus-sub004/internal/device"
	"github.com/light-scattering-iogs/caqtus-sub004/internal/expression"
)

// --- HCL schema ---

// shotFileHCL is the top-level structure of a shot file.
type shotFileHCL struct {
	Shot      *shotHCL       `hcl:"shot,block"`
	Devices   []*deviceHCL   `hcl:"device,block"`
	Lanes     []*laneHCL     `hcl:"lane,block"`
	Variables []*variableHCL `hcl:"variable,block"`
}

type shotHCL struct {
	Name  string     `hcl:"name,label"`
	Steps []*stepHCL `hcl:"step,block"`
}

type stepHCL struct {
	Name     string `hcl:"name,label"`
	Duration string `hcl:"duration"`
}

type deviceHCL struct {
	Name     string      `hcl:"name,label"`
	TimeStep uint64      `hcl:"time_step"`
	Kind     *string     `hcl:"kind,optional"`
	Trigger  *triggerHCL `hcl:"trigger,block"`
}

type triggerHCL struct {
	Kind   string `hcl:"kind"`
	Leader string `hcl:"leader,optional"`
}

type variableHCL struct {
	Name  string `hcl:"name,label"`
	Value string `hcl:"value"`
}

type laneHCL struct {
	Name    string          `hcl:"name,label"`
	Device  string          `hcl:"device"`
	Channel string          `hcl:"channel"`
	Digital *digitalLaneHCL `hcl:"digital,block"`
	Analog  *analogLaneHCL  `hcl:"analog,block"`
	Camera  *cameraLaneHCL  `hcl:"camera,block"`
}

type digitalLaneHCL struct {
	Cells []*digitalCellHCL `hcl:"cell,block"`
}

type digitalCellHCL struct {
	Value *bool     `hcl:"value,optional"`
	Blink *blinkHCL `hcl:"blink,block"`
	Span  *uint64   `hcl:"span,optional"`
}

type blinkHCL struct {
	Period    string `hcl:"period"`
	DutyCycle string `hcl:"duty_cycle"`
	Phase     string `hcl:"phase,optional"`
}

type analogLaneHCL struct {
	Unit  string           `hcl:"unit"`
	Cells []*analogCellHCL `hcl:"cell,block"`
}

type analogCellHCL struct {
	Value *string `hcl:"value,optional"`
	Ramp  *bool   `hcl:"ramp,optional"`
	Span  *uint64 `hcl:"span,optional"`
}

type cameraLaneHCL struct {
	Cells []*cameraCellHCL `hcl:"cell,block"`
}

type cameraCellHCL struct {
	Picture *string `hcl:"picture,optional"`
	Span    *uint64 `hcl:"span,optional"`
}

// --- Loading ---

// LoadFile reads and decodes one shot file from disk.
func LoadFile(path string) (*Shot, *device.Registry, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading shot file: %w", err)
	}
	return Load(src, path)
}

// Load decodes a shot file from source bytes. It returns the shot timeline
// and the device registry declared alongside it. Structural problems are
// aggregated so the experimenter sees every issue at once.
func Load(src []byte, filename string) (*Shot, *device.Registry, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, nil, fmt.Errorf("parsing %s: %w", filename, diags)
	}

	var raw shotFileHCL
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, nil, fmt.Errorf("decoding %s: %w", filename, diags)
	}
	if raw.Shot == nil {
		return nil, nil, fmt.Errorf("%s: missing shot block", filename)
	}

	var errs *multierror.Error

	registry := device.NewRegistry()
	for _, d := range raw.Devices {
		cfg, err := d.config()
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if err := registry.Add(cfg); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	shot := &Shot{Name: raw.Shot.Name, Variables: expression.Namespace{}}
	for _, s := range raw.Shot.Steps {
		duration, err := expression.New(s.Duration)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("step %q: %w", s.Name, err))
			continue
		}
		shot.Steps = append(shot.Steps, Step{Name: s.Name, Duration: duration})
	}

	// Variables are resolved in file order, so later entries may refer to
	// earlier ones.
	for _, v := range raw.Variables {
		expr, err := expression.New(v.Value)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("variable %q: %w", v.Name, err))
			continue
		}
		value, err := expr.Evaluate(shot.Variables)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("variable %q: %w", v.Name, err))
			continue
		}
		shot.Variables[v.Name] = value
	}

	for _, l := range raw.Lanes {
		lane, err := l.lane()
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		shot.Lanes = append(shot.Lanes, lane)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, nil, err
	}
	if err := shot.Validate(); err != nil {
		return nil, nil, err
	}
	return shot, registry, nil
}

func (d *deviceHCL) config() (*device.Config, error) {
	kind := device.Sequencer
	if d.Kind != nil {
		switch *d.Kind {
		case "sequencer":
		case "camera":
			kind = device.Camera
		default:
			return nil, fmt.Errorf("device %q: unknown kind %q", d.Name, *d.Kind)
		}
	}
	trigger, err := d.trigger()
	if err != nil {
		return nil, err
	}
	return &device.Config{
		Name:     d.Name,
		TimeStep: d.TimeStep,
		Trigger:  trigger,
		Kind:     kind,
	}, nil
}

func (d *deviceHCL) trigger() (device.Trigger, error) {
	if d.Trigger == nil {
		return device.SoftwareTrigger{}, nil
	}
	needsLeader := func() error {
		if d.Trigger.Leader == "" {
			return fmt.Errorf("device %q: trigger kind %q requires a leader", d.Name, d.Trigger.Kind)
		}
		return nil
	}
	switch d.Trigger.Kind {
	case "software":
		if d.Trigger.Leader != "" {
			return nil, fmt.Errorf("device %q: software trigger takes no leader", d.Name)
		}
		return device.SoftwareTrigger{}, nil
	case "external_start":
		if err := needsLeader(); err != nil {
			return nil, err
		}
		return device.ExternalTriggerStart{Leader: d.Trigger.Leader}, nil
	case "external_clock":
		if err := needsLeader(); err != nil {
			return nil, err
		}
		return device.ExternalClock{Leader: d.Trigger.Leader}, nil
	case "external_clock_on_change":
		if err := needsLeader(); err != nil {
			return nil, err
		}
		return device.ExternalClockOnChange{Leader: d.Trigger.Leader}, nil
	default:
		return nil, fmt.Errorf("device %q: unknown trigger kind %q", d.Name, d.Trigger.Kind)
	}
}

func (l *laneHCL) lane() (*Lane, error) {
	lane := &Lane{Name: l.Name, Device: l.Device, Channel: l.Channel}

	set := 0
	if l.Digital != nil {
		set++
	}
	if l.Analog != nil {
		set++
	}
	if l.Camera != nil {
		set++
	}
	if set != 1 {
		return nil, &LaneStructureError{Lane: l.Name, Detail: "exactly one of digital, analog or camera must be set"}
	}

	switch {
	case l.Digital != nil:
		dl := &DigitalLane{}
		for i, c := range l.Digital.Cells {
			cell, err := c.cell(l.Name, i)
			if err != nil {
				return nil, err
			}
			dl.Cells = append(dl.Cells, cell)
		}
		lane.Digital = dl
	case l.Analog != nil:
		al := &AnalogLane{Unit: l.Analog.Unit}
		for i, c := range l.Analog.Cells {
			cell, err := c.cell(l.Name, i)
			if err != nil {
				return nil, err
			}
			al.Cells = append(al.Cells, cell)
		}
		lane.Analog = al
	case l.Camera != nil:
		cl := &CameraLane{}
		for _, c := range l.Camera.Cells {
			cell := CameraCell{Span: spanOrDefault(c.Span)}
			if c.Picture != nil {
				cell.Picture = *c.Picture
			}
			cl.Cells = append(cl.Cells, cell)
		}
		lane.Camera = cl
	}
	return lane, nil
}

func (c *digitalCellHCL) cell(lane string, index int) (DigitalCell, error) {
	if (c.Value == nil) == (c.Blink == nil) {
		return DigitalCell{}, &LaneStructureError{
			Lane:   lane,
			Detail: fmt.Sprintf("cell %d must set exactly one of value or blink", index),
		}
	}
	cell := DigitalCell{Span: spanOrDefault(c.Span)}
	if c.Value != nil {
		cell.Value = Level{High: *c.Value}
		return cell, nil
	}
	period, err := expression.New(c.Blink.Period)
	if err != nil {
		return DigitalCell{}, fmt.Errorf("lane %q cell %d: %w", lane, index, err)
	}
	duty, err := expression.New(c.Blink.DutyCycle)
	if err != nil {
		return DigitalCell{}, fmt.Errorf("lane %q cell %d: %w", lane, index, err)
	}
	blink := Blink{Period: period, DutyCycle: duty}
	if c.Blink.Phase != "" {
		phase, err := expression.New(c.Blink.Phase)
		if err != nil {
			return DigitalCell{}, fmt.Errorf("lane %q cell %d: %w", lane, index, err)
		}
		blink.Phase = phase
	}
	cell.Value = blink
	return cell, nil
}

func (c *analogCellHCL) cell(lane string, index int) (AnalogCell, error) {
	isRamp := c.Ramp != nil && *c.Ramp
	if isRamp == (c.Value != nil) {
		return AnalogCell{}, &LaneStructureError{
			Lane:   lane,
			Detail: fmt.Sprintf("cell %d must set exactly one of value or ramp", index),
		}
	}
	cell := AnalogCell{Span: spanOrDefault(c.Span)}
	if isRamp {
		cell.Value = Ramp{}
		return cell, nil
	}
	expr, err := expression.New(*c.Value)
	if err != nil {
		return AnalogCell{}, fmt.Errorf("lane %q cell %d: %w", lane, index, err)
	}
	cell.Value = Constant{Expression: expr}
	return cell, nil
}

func spanOrDefault(span *uint64) uint64 {
	if span == nil {
		return 1
	}
	return *span
}
