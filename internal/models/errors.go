package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures for boundary handling: config errors go
// back to the caller, dependency errors mark an upstream as unreachable,
// data errors degrade to neutral scoring, anything else fails the job.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindConfig
	KindDependency
	KindData
)

// KindError wraps an error with its classification.
type KindError struct {
	Kind ErrorKind
	Err  error
}

func (e *KindError) Error() string { return e.Err.Error() }
func (e *KindError) Unwrap() error { return e.Err }

// ConfigError marks a caller mistake: unknown service, missing
// credentials, malformed profile.
func ConfigError(format string, args ...any) error {
	return &KindError{Kind: KindConfig, Err: fmt.Errorf(format, args...)}
}

// DependencyError marks an unreachable or misbehaving upstream.
func DependencyError(format string, args ...any) error {
	return &KindError{Kind: KindDependency, Err: fmt.Errorf(format, args...)}
}

// DataError marks content missing required fields. Never fatal; criteria
// score neutral and continue.
func DataError(format string, args ...any) error {
	return &KindError{Kind: KindData, Err: fmt.Errorf(format, args...)}
}

// InternalError marks unexpected state. The owning job fails with the
// message.
func InternalError(format string, args ...any) error {
	return &KindError{Kind: KindInternal, Err: fmt.Errorf(format, args...)}
}

// KindOf walks the error chain for a classification. Unclassified errors
// are internal.
func KindOf(err error) ErrorKind {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return KindInternal
}
