package router

import (
	"fmt"
	"time"
)

// Kind tags a CommandError so callers can dispatch on failure class without
// a type hierarchy.
type Kind int

const (
	KindUnknown Kind = iota
	KindCommandNotFound
	KindDuplicateCommand
	KindMissingRequiredArgument
	KindBadArgument
	KindCheckFailure
	KindCommandOnCooldown
	KindMaxConcurrencyReached
	KindHandlerError
)

func (k Kind) String() string {
	switch k {
	case KindCommandNotFound:
		return "command not found"
	case KindDuplicateCommand:
		return "duplicate command"
	case KindMissingRequiredArgument:
		return "missing required argument"
	case KindBadArgument:
		return "bad argument"
	case KindCheckFailure:
		return "check failure"
	case KindCommandOnCooldown:
		return "command on cooldown"
	case KindMaxConcurrencyReached:
		return "max concurrency reached"
	case KindHandlerError:
		return "handler error"
	default:
		return "unknown"
	}
}

// CommandError is the single error type for every failure on the command
// path. Only the fields relevant to its Kind are populated.
type CommandError struct {
	Kind    Kind
	Command string

	// Param and Value identify the offending parameter for argument errors.
	Param string
	Value string

	// RetryAfter is set for cooldown errors.
	RetryAfter time.Duration

	Err error
}

func (e *CommandError) Error() string {
	switch e.Kind {
	case KindCommandNotFound:
		return fmt.Sprintf("%s: %q", e.Kind, e.Command)
	case KindDuplicateCommand:
		return fmt.Sprintf("%s: %q already registered", e.Kind, e.Command)
	case KindMissingRequiredArgument:
		return fmt.Sprintf("%s: %q requires %q", e.Kind, e.Command, e.Param)
	case KindBadArgument:
		return fmt.Sprintf("%s: %q parameter %q rejected value %q", e.Kind, e.Command, e.Param, e.Value)
	case KindCommandOnCooldown:
		return fmt.Sprintf("%s: %q retry in %s", e.Kind, e.Command, e.RetryAfter)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %q: %v", e.Kind, e.Command, e.Err)
		}
		return fmt.Sprintf("%s: %q", e.Kind, e.Command)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
