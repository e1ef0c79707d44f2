package interceptor

import (
	"github.com/itskum47/sprinklerd/internal/observability"
	"github.com/itskum47/sprinklerd/internal/sprinkler"
)

// Interceptor wraps a turn_on/turn_off call with a safety invariant, then
// delegates to the next interceptor inward. Each concrete interceptor
// carries its own state (a counter, a per-driver flag, a runtime tracker)
// rather than subclassing a shared base — composition over inheritance, the
// natural Go rendering of the original decorator chain.
type Interceptor interface {
	TurnOn(d sprinkler.Driver) error
	TurnOff(d sprinkler.Driver) error
	setNext(n Interceptor)
}

// sink is the innermost link: it calls the driver directly.
type sink struct{}

func (sink) TurnOn(d sprinkler.Driver) error {
	if err := d.On(); err != nil {
		observability.DriverErrors.WithLabelValues(d.SprinklerID(), "on").Inc()
		return &sprinkler.DriverError{SprinklerID: d.SprinklerID(), Op: "on", Err: err}
	}
	return nil
}

func (sink) TurnOff(d sprinkler.Driver) error {
	if err := d.Off(); err != nil {
		observability.DriverErrors.WithLabelValues(d.SprinklerID(), "off").Inc()
		return &sprinkler.DriverError{SprinklerID: d.SprinklerID(), Op: "off", Err: err}
	}
	return nil
}

func (sink) setNext(Interceptor) {}

// Chain composes a head interceptor, built by successive calls to Add: the
// outermost interceptor is the last one added, exactly matching the
// original controller's add_interceptor behavior.
type Chain struct {
	head Interceptor
}

// NewChain returns an empty chain whose head calls the driver directly.
func NewChain() *Chain {
	return &Chain{head: sink{}}
}

// Add registers i as the new outermost interceptor.
func (c *Chain) Add(i Interceptor) {
	i.setNext(c.head)
	c.head = i
}

func (c *Chain) TurnOn(d sprinkler.Driver) error  { return c.head.TurnOn(d) }
func (c *Chain) TurnOff(d sprinkler.Driver) error { return c.head.TurnOff(d) }
