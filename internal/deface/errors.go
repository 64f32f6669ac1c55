package deface

import "strings"

// BatchError aggregates precondition failures across subjects so the
// operator sees every offender in a single run instead of one at a time.
type BatchError struct {
	Errors []error
}

func (e *BatchError) Error() string {
	lines := make([]string, 0, len(e.Errors)+1)
	lines = append(lines, "preconditions failed for one or more subjects:")
	for _, err := range e.Errors {
		lines = append(lines, "  - "+err.Error())
	}
	return strings.Join(lines, "\n")
}

// Append collects err into the batch; nil errors are ignored. Errors that
// are themselves batches are flattened.
func (e *BatchError) Append(err error) {
	if err == nil {
		return
	}
	if batch, ok := err.(*BatchError); ok {
		e.Errors = append(e.Errors, batch.Errors...)
		return
	}
	e.Errors = append(e.Errors, err)
}

// OrNil returns the batch as an error when it holds anything, nil otherwise.
func (e *BatchError) OrNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
