package service

import "fmt"

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// ValidationError represents a validation error
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// TransitionError reports a session action that is not legal from the
// current view state (e.g. commence without a preview, pause while idle).
type TransitionError struct {
	Action string
	State  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from state %s", e.Action, e.State)
}
