package sprinkler

import (
	"fmt"
	"os"
	"path/filepath"
)

// gpioSysfsBase is the Linux sysfs mount point for GPIO control, matching
// the original daemon's GpioController.GPIO_BASE_PATH.
const gpioSysfsBase = "/sys/class/gpio"

// GPIODriver drives a sprinkler through the Linux sysfs GPIO interface.
// Activation polarity can be inverted for relay boards that are active-low.
type GPIODriver struct {
	id       ID
	basePath string
	address  int
	inverted bool
}

// NewGPIODriver returns a Driver for the given GPIO line number.
func NewGPIODriver(id ID, address int, inverted bool) *GPIODriver {
	return &GPIODriver{id: id, basePath: gpioSysfsBase, address: address, inverted: inverted}
}

func (g *GPIODriver) portPath() string {
	return filepath.Join(g.basePath, fmt.Sprintf("gpio%d", g.address))
}

// Export requests the kernel expose this GPIO line and sets its direction
// and active-low polarity. Must run once before first use; the daemon
// calls it during startup registration.
func (g *GPIODriver) Export() error {
	if err := g.write(filepath.Join(g.basePath, "export"), fmt.Sprintf("%d", g.address)); err != nil {
		return err
	}
	direction := "low"
	if g.inverted {
		direction = "high"
	}
	if err := g.write(filepath.Join(g.portPath(), "direction"), direction); err != nil {
		return err
	}
	activeLow := "0"
	if g.inverted {
		activeLow = "1"
	}
	return g.write(filepath.Join(g.portPath(), "active_low"), activeLow)
}

// IsExported reports whether the GPIO line has already been exported.
func (g *GPIODriver) IsExported() bool {
	_, err := os.Stat(g.portPath())
	return err == nil
}

func (g *GPIODriver) On() error {
	return g.setValue("1")
}

func (g *GPIODriver) Off() error {
	return g.setValue("0")
}

func (g *GPIODriver) SprinklerID() ID { return g.id }

func (g *GPIODriver) setValue(value string) error {
	if err := g.write(filepath.Join(g.portPath(), "value"), value); err != nil {
		op := "on"
		if value == "0" {
			op = "off"
		}
		return &DriverError{SprinklerID: g.id, Op: op, Err: err}
	}
	return nil
}

func (g *GPIODriver) write(path, value string) error {
	return os.WriteFile(path, []byte(value), 0644)
}
