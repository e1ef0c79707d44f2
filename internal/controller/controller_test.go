package controller

import (
	"testing"
	"time"

	"github.com/itskum47/sprinklerd/internal/clock"
	"github.com/itskum47/sprinklerd/internal/interceptor"
	"github.com/itskum47/sprinklerd/internal/sprinkler"
)

func newTestController(t *testing.T, fc *clock.Fake, forced *[]sprinkler.ID) *Controller {
	t.Helper()
	c := New()
	c.AddSprinkler("court1", sprinkler.NewDummyDriver("court1"))
	c.AddInterceptor(interceptor.NewStateVerificationInterceptor())
	c.AddInterceptor(interceptor.NewConcurrencyInterceptor(2))
	c.AddInterceptor(interceptor.NewBudgetInterceptor(fc, interceptor.DefaultWindows(), func(id string) {
		*forced = append(*forced, sprinkler.ID(id))
	}))
	return c
}

func TestControllerUnknownSprinkler(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	var forced []sprinkler.ID
	c := newTestController(t, fc, &forced)

	if err := c.TurnOn("doesnotexist"); err == nil {
		t.Fatalf("expected UnknownSprinklerError")
	} else if _, ok := err.(*UnknownSprinklerError); !ok {
		t.Fatalf("expected *UnknownSprinklerError, got %T", err)
	}
}

func TestControllerRoundTrip(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	var forced []sprinkler.ID
	c := newTestController(t, fc, &forced)

	if err := c.TurnOn("court1"); err != nil {
		t.Fatalf("turn_on: %v", err)
	}
	if err := c.TurnOn("court1"); err == nil {
		t.Fatalf("expected already_on rejection on second turn_on")
	}
	if err := c.TurnOff("court1"); err != nil {
		t.Fatalf("turn_off: %v", err)
	}
	if err := c.TurnOff("court1"); err == nil {
		t.Fatalf("expected already_off rejection on second turn_off")
	}
	if len(forced) != 0 {
		t.Fatalf("expected no forced turn-offs, got %v", forced)
	}
}

func TestControllerSprinklerIDs(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	var forced []sprinkler.ID
	c := newTestController(t, fc, &forced)
	c.AddSprinkler("court2", sprinkler.NewDummyDriver("court2"))

	ids := c.SprinklerIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 registered sprinklers, got %d: %v", len(ids), ids)
	}
	if !c.IsValid("court2") || c.IsValid("court3") {
		t.Fatalf("IsValid mismatch")
	}
}
