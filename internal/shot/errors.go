package shot

import "fmt"

// LengthMismatchError reports two lanes of one device that compiled to
// different tick lengths.
type LengthMismatchError struct {
	Device string
	LaneA  string
	LaneB  string
	TicksA uint64
	TicksB uint64
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("device %q: lane %q compiled to %d ticks but lane %q to %d",
		e.Device, e.LaneA, e.TicksA, e.LaneB, e.TicksB)
}

// TriggerConfigurationError reports a device whose trigger or clock wiring
// cannot be resolved.
type TriggerConfigurationError struct {
	Device string
	Detail string
}

func (e *TriggerConfigurationError) Error() string {
	return fmt.Sprintf("device %q: %s", e.Device, e.Detail)
}
