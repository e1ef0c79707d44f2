// Package controller owns the sprinkler registry and the interceptor chain
// that every turn_on/turn_off call passes through. It is logic-free glue:
// all safety policy lives in the interceptors it holds.
package controller

import (
	"fmt"

	"github.com/itskum47/sprinklerd/internal/interceptor"
	"github.com/itskum47/sprinklerd/internal/sprinkler"
)

// UnknownSprinklerError is returned when an operation references a
// sprinkler id that was never registered.
type UnknownSprinklerError struct {
	SprinklerID sprinkler.ID
}

func (e *UnknownSprinklerError) Error() string {
	return fmt.Sprintf("unknown sprinkler %q", e.SprinklerID)
}

// Controller holds the fixed sprinkler registry, populated once at startup,
// and the interceptor chain that mediates every on/off call against it.
type Controller struct {
	drivers map[sprinkler.ID]sprinkler.Driver
	chain   *interceptor.Chain
}

// New returns a controller with an empty registry and an identity chain
// (turn_on/turn_off go straight to the driver until interceptors are added).
func New() *Controller {
	return &Controller{
		drivers: make(map[sprinkler.ID]sprinkler.Driver),
		chain:   interceptor.NewChain(),
	}
}

// AddSprinkler registers a driver under id. Startup-only; the registry is
// immutable once the daemon starts serving requests.
func (c *Controller) AddSprinkler(id sprinkler.ID, d sprinkler.Driver) {
	c.drivers[id] = d
}

// AddInterceptor makes i the new outermost interceptor in the chain.
func (c *Controller) AddInterceptor(i interceptor.Interceptor) {
	c.chain.Add(i)
}

// IsValid reports whether id is registered.
func (c *Controller) IsValid(id sprinkler.ID) bool {
	_, ok := c.drivers[id]
	return ok
}

// SprinklerIDs returns every registered id, in no particular order.
func (c *Controller) SprinklerIDs() []sprinkler.ID {
	ids := make([]sprinkler.ID, 0, len(c.drivers))
	for id := range c.drivers {
		ids = append(ids, id)
	}
	return ids
}

// TurnOn resolves id and runs turn_on through the interceptor chain.
func (c *Controller) TurnOn(id sprinkler.ID) error {
	d, ok := c.drivers[id]
	if !ok {
		return &UnknownSprinklerError{SprinklerID: id}
	}
	return c.chain.TurnOn(d)
}

// TurnOff resolves id and runs turn_off through the interceptor chain.
func (c *Controller) TurnOff(id sprinkler.ID) error {
	d, ok := c.drivers[id]
	if !ok {
		return &UnknownSprinklerError{SprinklerID: id}
	}
	return c.chain.TurnOff(d)
}
