package analyzer

import (
	"time"

	apperrors "go-image-enricher/internal/errors"
)

// Analyzer names, used in logs, events and metrics.
const (
	NameOCR        = "ocr"
	NameScene      = "scene"
	NameClassifier = "classifier"
	NameEXIF       = "exif"
)

// Result is either a populated Value or an unavailable outcome carrying the classified failure.
type Result[T any] struct {
	Value    T
	Err      *apperrors.AppError
	Duration time.Duration
}

// Available reports whether the analyzer produced data.
func (r Result[T]) Available() bool {
	return r.Err == nil
}

// ValueOrNil returns a pointer to the value, or nil when the analyzer was unavailable.
func (r Result[T]) ValueOrNil() *T {
	if r.Err != nil {
		return nil
	}
	v := r.Value
	return &v
}

func available[T any](v T, start time.Time) Result[T] {
	return Result[T]{Value: v, Duration: time.Since(start)}
}

func unavailable[T any](err *apperrors.AppError, start time.Time) Result[T] {
	return Result[T]{Err: err, Duration: time.Since(start)}
}
