// Package launchpaderrors contains the typed errors returned by the resolution engine and the job setup workflow.
// Callers should look for these types with errors.As, since they are usually wrapped with additional context by the
// time they reach the top of the call stack.
//
// If multiple errors occur in some function (e.g., several malformed criteria tiers), that function should return an
// error of type multierror.Error from package github.com/hashicorp/go-multierror that encapsulates those individual
// errors.
package launchpaderrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrPreconditionFailed is returned when some state required before an operation can start is missing,
// e.g., a workflow task is run without a job execution environment.
type ErrPreconditionFailed struct {
	// Operation that could not start, e.g., "application task"
	Operation string
	// The missing input, e.g., "jobExecutionEnvironment"
	Key string
	// Optional message included with the error message
	Message string
}

func (err *ErrPreconditionFailed) Error() (s string) {
	s = fmt.Sprintf("cannot run %s as %s is not set", err.Operation, err.Key)
	if err.Message != "" {
		s = s + fmt.Sprintf("; %s", err.Message)
	}
	return
}

// ErrBadRequest is returned on an invalid argument, e.g., a blank file reference or malformed criteria.
// Message is optional and is omitted from the error message if not provided.
type ErrBadRequest struct {
	Name    string      // Name of the field referred to, e.g., "dependencies"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message explaining why the value is invalid
}

func (err *ErrBadRequest) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", err.Value, err.Name)
	} else {
		return fmt.Sprintf("value %q is invalid for field %q; %s", err.Value, err.Name, err.Message)
	}
}

// ResolutionFailureReason distinguishes why no cluster/command pair could be resolved.
type ResolutionFailureReason string

const (
	// NoClusterMatched means no tier of the cluster criteria matched any eligible cluster.
	NoClusterMatched ResolutionFailureReason = "no cluster matched"
	// NoCommandMatched means some tier matched clusters, but none of them had an eligible command.
	NoCommandMatched ResolutionFailureReason = "no command matched"
)

// ErrResolutionFailed is returned when no tier of cluster criteria yields an eligible cluster and command.
type ErrResolutionFailed struct {
	Reason ResolutionFailureReason
	// Index of the first tier whose clusters matched but had no eligible command.
	// -1 when Reason is NoClusterMatched.
	Tier int
	// Number of tiers evaluated
	TiersEvaluated int
	Message        string
}

func (err *ErrResolutionFailed) Error() (s string) {
	if err.Reason == NoCommandMatched {
		s = fmt.Sprintf("resolution failed: %s for clusters matching criteria tier %d", err.Reason, err.Tier)
	} else {
		s = fmt.Sprintf("resolution failed: %s in any of %d criteria tiers", err.Reason, err.TiersEvaluated)
	}
	if err.Message != "" {
		s = s + fmt.Sprintf("; %s", err.Message)
	}
	return
}

// ErrTransfer is returned when a remote file could not be fetched to its local destination.
type ErrTransfer struct {
	Source      string
	Destination string
	Err         error
}

func (err *ErrTransfer) Error() string {
	return fmt.Sprintf("failed to transfer %q to %q: %v", err.Source, err.Destination, err.Err)
}

func (err *ErrTransfer) Cause() error { return err.Err }

func (err *ErrTransfer) Unwrap() error { return err.Err }

// ErrIO is returned when a local directory or file could not be created or written.
type ErrIO struct {
	Op   string // e.g., "mkdir" or "open"
	Path string
	Err  error
}

func (err *ErrIO) Error() string {
	return fmt.Sprintf("%s %s: %v", err.Op, err.Path, err.Err)
}

func (err *ErrIO) Cause() error { return err.Err }

func (err *ErrIO) Unwrap() error { return err.Err }

// ErrNotFound is a generic error to be returned whenever some resource isn't found.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string
	Value   string
	Message string
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	} else {
		return s
	}
}

// Process exit codes reported by the command line for each error type.
const (
	ExitOK                 = 0
	ExitUnknown            = 1
	ExitBadRequest         = 2
	ExitPreconditionFailed = 3
	ExitResolutionFailed   = 4
	ExitTransfer           = 5
	ExitIO                 = 6
	ExitNotFound           = 7
)

// ExitCodeFromError maps error types to process exit codes.
// Uses errors.As to look through the chain of errors, as opposed to just considering the topmost error in the chain.
func ExitCodeFromError(err error) int {
	if err == nil {
		return ExitOK
	}

	// Using {} scopes just to re-use the "e" variable name for each case.
	{
		var e *ErrBadRequest
		if errors.As(err, &e) {
			return ExitBadRequest
		}
	}
	{
		var e *ErrPreconditionFailed
		if errors.As(err, &e) {
			return ExitPreconditionFailed
		}
	}
	{
		var e *ErrResolutionFailed
		if errors.As(err, &e) {
			return ExitResolutionFailed
		}
	}
	{
		var e *ErrTransfer
		if errors.As(err, &e) {
			return ExitTransfer
		}
	}
	{
		var e *ErrIO
		if errors.As(err, &e) {
			return ExitIO
		}
	}
	{
		var e *ErrNotFound
		if errors.As(err, &e) {
			return ExitNotFound
		}
	}

	return ExitUnknown
}
