// Package timeline models the human-edited shot description: named lanes of
// run-length-encoded symbolic values over a shared list of steps, plus the
// variable namespace they are evaluated against. Lanes are produced by
// external editors; this package only reads and validates them.
package timeline

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/light-scattering-iogs/caqtus-sub004/internal/expression"
)

// Step is one declared segment of a shot with a symbolic duration.
type Step struct {
	Name     string
	Duration *expression.Expression
}

// Shot is the complete declarative timeline handed to the compiler: the
// ordered steps, every lane, and the variables lane expressions refer to.
// All fields are read-only inputs to compilation.
type Shot struct {
	Name      string
	Steps     []Step
	Lanes     []*Lane
	Variables expression.Namespace
}

// Lane is one named timeline targeting a single channel of a single
// device. Exactly one of Digital, Analog or Camera is set.
type Lane struct {
	Name    string
	Device  string
	Channel string

	Digital *DigitalLane
	Analog  *AnalogLane
	Camera  *CameraLane
}

// DigitalValue is the closed set of values a digital cell can hold.
type DigitalValue interface{ isDigitalValue() }

// Level holds the line constant high or low for the cell.
type Level struct {
	High bool
}

func (Level) isDigitalValue() {}

// Blink toggles the line periodically for the duration of the cell.
type Blink struct {
	Period    *expression.Expression
	DutyCycle *expression.Expression
	// Phase shifts the starting point within the first cycle. Nil means
	// zero phase.
	Phase *expression.Expression
}

func (Blink) isDigitalValue() {}

// DigitalCell is one run of a digital lane: a value covering Span
// consecutive steps. A span of zero marks a step absorbed into the
// previous cell and never starts a lane.
type DigitalCell struct {
	Value DigitalValue
	Span  uint64
}

// DigitalLane drives one boolean output line.
type DigitalLane struct {
	Cells []DigitalCell
}

// AnalogValue is the closed set of values an analog cell can hold.
type AnalogValue interface{ isAnalogValue() }

// Constant evaluates one expression and holds its value for the cell.
type Constant struct {
	Expression *expression.Expression
}

func (Constant) isAnalogValue() {}

// Ramp interpolates linearly between the neighboring Constant cells. It
// must not be the first or last cell of its lane.
type Ramp struct{}

func (Ramp) isAnalogValue() {}

// AnalogCell is one run of an analog lane.
type AnalogCell struct {
	Value AnalogValue
	Span  uint64
}

// AnalogLane drives one scalar output line. Unit is the declared unit
// symbol every cell value must be dimensionally compatible with.
type AnalogLane struct {
	Unit  string
	Cells []AnalogCell
}

// CameraCell is one run of a camera lane. An empty Picture means the
// camera is not exposing.
type CameraCell struct {
	Picture string
	Span    uint64
}

// CameraLane drives a camera's exposure line. Consecutive cells naming the
// same picture form one continuous exposure.
type CameraLane struct {
	Cells []CameraCell
}

// LaneStructureError reports a lane whose cell structure is invalid.
type LaneStructureError struct {
	Lane   string
	Detail string
}

func (e *LaneStructureError) Error() string {
	return fmt.Sprintf("lane %q: %s", e.Lane, e.Detail)
}

// stepSpan sums the spans of a lane's cells.
func (l *Lane) stepSpan() uint64 {
	var total uint64
	switch {
	case l.Digital != nil:
		for _, c := range l.Digital.Cells {
			total += c.Span
		}
	case l.Analog != nil:
		for _, c := range l.Analog.Cells {
			total += c.Span
		}
	case l.Camera != nil:
		for _, c := range l.Camera.Cells {
			total += c.Span
		}
	}
	return total
}

// Validate checks one lane against the shot's step count.
func (l *Lane) Validate(stepCount uint64) error {
	kinds := 0
	for _, set := range []bool{l.Digital != nil, l.Analog != nil, l.Camera != nil} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		return &LaneStructureError{Lane: l.Name, Detail: "exactly one of digital, analog or camera must be set"}
	}
	if l.Device == "" || l.Channel == "" {
		return &LaneStructureError{Lane: l.Name, Detail: "device and channel are required"}
	}
	// The "__" prefix is reserved for synthesized channels such as clocks.
	if strings.HasPrefix(l.Channel, "__") {
		return &LaneStructureError{Lane: l.Name, Detail: fmt.Sprintf("channel %q uses the reserved \"__\" prefix", l.Channel)}
	}
	if err := l.validateCells(); err != nil {
		return err
	}
	if got := l.stepSpan(); got != stepCount {
		return &LaneStructureError{
			Lane:   l.Name,
			Detail: fmt.Sprintf("cell spans cover %d steps, shot has %d", got, stepCount),
		}
	}
	return nil
}

func (l *Lane) validateCells() error {
	var spans []uint64
	switch {
	case l.Digital != nil:
		if len(l.Digital.Cells) == 0 {
			return &LaneStructureError{Lane: l.Name, Detail: "lane has no cells"}
		}
		for _, c := range l.Digital.Cells {
			if c.Value == nil {
				return &LaneStructureError{Lane: l.Name, Detail: "cell without a value"}
			}
			spans = append(spans, c.Span)
		}
	case l.Analog != nil:
		if len(l.Analog.Cells) == 0 {
			return &LaneStructureError{Lane: l.Name, Detail: "lane has no cells"}
		}
		if l.Analog.Unit == "" {
			return &LaneStructureError{Lane: l.Name, Detail: "analog lane must declare a unit"}
		}
		for _, c := range l.Analog.Cells {
			if c.Value == nil {
				return &LaneStructureError{Lane: l.Name, Detail: "cell without a value"}
			}
			spans = append(spans, c.Span)
		}
	case l.Camera != nil:
		if len(l.Camera.Cells) == 0 {
			return &LaneStructureError{Lane: l.Name, Detail: "lane has no cells"}
		}
		for _, c := range l.Camera.Cells {
			spans = append(spans, c.Span)
		}
	}
	if spans[0] == 0 {
		return &LaneStructureError{Lane: l.Name, Detail: "first cell cannot have a zero span"}
	}
	return nil
}

// Validate checks the whole shot structure, aggregating every problem
// rather than stopping at the first, so an experimenter sees all issues in
// one pass.
func (s *Shot) Validate() error {
	var errs *multierror.Error
	if len(s.Steps) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("shot %q declares no steps", s.Name))
	}
	seen := make(map[string]bool, len(s.Steps))
	for _, step := range s.Steps {
		if step.Duration == nil {
			errs = multierror.Append(errs, fmt.Errorf("step %q has no duration", step.Name))
		}
		if seen[step.Name] {
			errs = multierror.Append(errs, fmt.Errorf("duplicate step name %q", step.Name))
		}
		seen[step.Name] = true
	}
	laneNames := make(map[string]bool, len(s.Lanes))
	for _, lane := range s.Lanes {
		if laneNames[lane.Name] {
			errs = multierror.Append(errs, fmt.Errorf("duplicate lane name %q", lane.Name))
		}
		laneNames[lane.Name] = true
		if err := lane.Validate(uint64(len(s.Steps))); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
