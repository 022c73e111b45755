package services

import (
	"errors"
	"fmt"

	"github.com/kerbaras/mgdl/pkg/data"
)

// TaskError is the unrecovered failure of a single page task.
type TaskError struct {
	Task Task
	Kind string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s page %d: %v", e.Task.Label, e.Task.Item.Sequence, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

func (e *TaskError) ErrorKind() string { return e.Kind }

// BatchError reports a scheduler run in which at least one task failed.
// First is the earliest failure in task order.
type BatchError struct {
	First  error
	Failed int
	Total  int
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of %d page tasks failed, first: %v", e.Failed, e.Total, e.First)
}

func (e *BatchError) Unwrap() error { return e.First }

func (e *BatchError) ErrorKind() string { return ErrorKind(e.First) }

// ErrorKind classifies err for logs and exit reporting.
func ErrorKind(err error) string {
	var classified interface{ ErrorKind() string }
	switch {
	case err == nil:
		return ""
	case errors.Is(err, data.ErrConflict):
		return "conflict"
	case errors.Is(err, data.ErrNotFound):
		return "not_found"
	case errors.As(err, &classified):
		return classified.ErrorKind()
	default:
		return "unknown"
	}
}
