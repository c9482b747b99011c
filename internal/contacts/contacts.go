// Package contacts converts the engine's per-sample foot contact timelines
// into time-stamped contact phases consumable by a balance controller.
//
// A ContactList holds, for one foot, the ordered and non-overlapping
// intervals [ActivationTime, DeactivationTime) during which the foot is in
// fixed contact with the ground at a given pose.
package contacts

import (
	"fmt"
	"time"

	"github.com/golang/geo/r2"

	"github.com/fils99/bipedal-locomotion-framework/internal/unicycle"
)

// Contact is a single contact phase of one foot.
type Contact struct {
	// Name labels the foot, e.g. "left_foot".
	Name string
	// FrameIndex is the contact frame resolved against the robot model.
	FrameIndex int

	// Pose held for the whole phase.
	Position r2.Point
	Yaw      float64

	// Interval [ActivationTime, DeactivationTime).
	ActivationTime   time.Duration
	DeactivationTime time.Duration
}

// ContactList is the ordered contact phase sequence of one foot.
type ContactList []Contact

// ContactListMap maps a foot label to its ContactList.
type ContactListMap map[string]ContactList

// BuildContactList walks the boolean contact timeline, pairs every
// contiguous in-contact run with the corresponding footstep, and emits one
// phase per run. Sample i maps to startTime + i*dt; a run still active at
// the end of the timeline deactivates at the timeline end.
//
// The timeline and the footstep list must be consistent: more contact runs
// than footsteps is an error.
func BuildContactList(startTime, dt time.Duration, inContact []bool,
	steps []unicycle.Step, frameIndex int, name string) (ContactList, error) {

	if dt <= 0 {
		return nil, fmt.Errorf("contact list %q: sample period must be positive, got %v", name, dt)
	}

	var list ContactList
	run := -1 // start index of the current run, -1 when not in a run

	flush := func(first, afterLast int) error {
		if len(list) >= len(steps) {
			return fmt.Errorf(
				"contact list %q: %d contact runs found but only %d footsteps available",
				name, len(list)+1, len(steps))
		}
		step := steps[len(list)]
		list = append(list, Contact{
			Name:             name,
			FrameIndex:       frameIndex,
			Position:         step.Position,
			Yaw:              step.Angle,
			ActivationTime:   startTime + time.Duration(first)*dt,
			DeactivationTime: startTime + time.Duration(afterLast)*dt,
		})
		return nil
	}

	for i, c := range inContact {
		switch {
		case c && run < 0:
			run = i
		case !c && run >= 0:
			if err := flush(run, i); err != nil {
				return nil, err
			}
			run = -1
		}
	}
	if run >= 0 {
		if err := flush(run, len(inContact)); err != nil {
			return nil, err
		}
	}

	return list, nil
}

// Validate checks that the phases are strictly time-ordered and
// non-overlapping.
func (l ContactList) Validate() error {
	for i, c := range l {
		if c.DeactivationTime <= c.ActivationTime {
			return fmt.Errorf("contact %d of %q: empty interval [%v, %v)",
				i, c.Name, c.ActivationTime, c.DeactivationTime)
		}
		if i > 0 && c.ActivationTime < l[i-1].DeactivationTime {
			return fmt.Errorf("contact %d of %q: overlaps previous phase ending at %v",
				i, c.Name, l[i-1].DeactivationTime)
		}
	}
	return nil
}
