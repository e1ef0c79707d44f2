package sprinkler

import "log"

// DummyDriver logs instead of touching hardware. Grounded on the original
// daemon's TestSprinkler: a drop-in stand-in used in dev and in tests.
type DummyDriver struct {
	id ID
}

// NewDummyDriver returns a Driver that only logs its activations.
func NewDummyDriver(id ID) *DummyDriver {
	return &DummyDriver{id: id}
}

func (d *DummyDriver) On() error {
	log.Printf("sprinkler %s: turning on (dummy)", d.id)
	return nil
}

func (d *DummyDriver) Off() error {
	log.Printf("sprinkler %s: turning off (dummy)", d.id)
	return nil
}

func (d *DummyDriver) SprinklerID() ID { return d.id }
