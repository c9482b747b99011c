package planner

import "fmt"

// ConfigurationError reports invalid parameters or a failed planner setup.
// The planner stays (or falls back to) NotInitialized when it is returned.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// SequenceError reports an operation invoked in the wrong lifecycle state.
type SequenceError struct {
	Op    string
	State State
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("%s is not allowed in state %s", e.Op, e.State)
}

// ReplanError reports a failed replanning cycle. The previously published
// output stays in effect.
type ReplanError struct {
	Err error
}

func (e *ReplanError) Error() string {
	return fmt.Sprintf("replanning failed: %v", e.Err)
}

func (e *ReplanError) Unwrap() error {
	return e.Err
}
