package interceptor

import (
	"fmt"

	"github.com/itskum47/sprinklerd/internal/observability"
)

// Kind identifies which chain invariant rejected a turn_on/turn_off call.
type Kind string

const (
	KindConcurrencyExceeded Kind = "concurrency_exceeded"
	KindBudgetExceeded      Kind = "budget_exceeded"
	KindAlreadyOn           Kind = "already_on"
	KindAlreadyOff          Kind = "already_off"
)

// Error is raised by a chain member rejecting a turn_on/turn_off call. It is
// always recoverable from the job queue's point of view: the offending job
// is dropped and scheduling continues.
type Error struct {
	Kind        Kind
	SprinklerID string
	Message     string
}

func (e *Error) Error() string { return e.Message }

// SprinklerErrorKind satisfies the scheduler's sprinklerError interface, so
// chain rejections can be told apart from a genuine programming bug without
// the queue package importing this one's Kind type.
func (e *Error) SprinklerErrorKind() string { return string(e.Kind) }

func errConcurrencyExceeded(sprinklerID string, max int) *Error {
	observability.ActivationRejections.WithLabelValues(string(KindConcurrencyExceeded)).Inc()
	return &Error{
		Kind:        KindConcurrencyExceeded,
		SprinklerID: sprinklerID,
		Message:     fmt.Sprintf("sprinkler %s: maximum of %d active sprinklers reached", sprinklerID, max),
	}
}

func errAlreadyOn(sprinklerID string) *Error {
	observability.ActivationRejections.WithLabelValues(string(KindAlreadyOn)).Inc()
	return &Error{
		Kind:        KindAlreadyOn,
		SprinklerID: sprinklerID,
		Message:     fmt.Sprintf("sprinkler %s already turned on", sprinklerID),
	}
}

func errAlreadyOff(sprinklerID string) *Error {
	return &Error{
		Kind:        KindAlreadyOff,
		SprinklerID: sprinklerID,
		Message:     fmt.Sprintf("sprinkler %s already turned off", sprinklerID),
	}
}

func errBudgetExceeded(sprinklerID string) *Error {
	observability.ActivationRejections.WithLabelValues(string(KindBudgetExceeded)).Inc()
	return &Error{
		Kind:        KindBudgetExceeded,
		SprinklerID: sprinklerID,
		Message:     fmt.Sprintf("sprinkler %s was already running for too long this window", sprinklerID),
	}
}
