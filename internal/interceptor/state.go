package interceptor

import "github.com/itskum47/sprinklerd/internal/sprinkler"

// StateVerificationInterceptor is the innermost invariant check: it refuses
// a turn_on on a sprinkler already believed on, and a turn_off on one
// already believed off. It is innermost because it is the cheapest check;
// when it rejects a turn_on, the outer budget interceptor cancels the
// tracker start it already made, so no runtime is recorded.
type StateVerificationInterceptor struct {
	next Interceptor
	on   map[sprinkler.Driver]bool
}

// NewStateVerificationInterceptor returns a state verifier with no drivers
// touched yet; a driver defaults to "off" the first time it's seen.
func NewStateVerificationInterceptor() *StateVerificationInterceptor {
	return &StateVerificationInterceptor{on: make(map[sprinkler.Driver]bool)}
}

func (s *StateVerificationInterceptor) setNext(n Interceptor) { s.next = n }

func (s *StateVerificationInterceptor) TurnOn(d sprinkler.Driver) error {
	if s.on[d] {
		return errAlreadyOn(d.SprinklerID())
	}
	if err := s.next.TurnOn(d); err != nil {
		return err
	}
	s.on[d] = true
	return nil
}

func (s *StateVerificationInterceptor) TurnOff(d sprinkler.Driver) error {
	if !s.on[d] {
		return errAlreadyOff(d.SprinklerID())
	}
	if err := s.next.TurnOff(d); err != nil {
		return err
	}
	s.on[d] = false
	return nil
}
