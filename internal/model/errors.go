package model

import "fmt"

// ModelUnavailableError reports a model artifact that is missing, unreadable,
// or failed to deserialize. It is operational, not user-correctable; partial
// scratch state for the model has already been released when it is returned.
type ModelUnavailableError struct {
	Name  string
	Cause error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %q unavailable: %v", e.Name, e.Cause)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Cause }

// InferenceError reports a failed forward pass, or predictor output in an
// unexpected shape.
type InferenceError struct {
	Cause error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Cause)
}

func (e *InferenceError) Unwrap() error { return e.Cause }
