// Package relay drives the HAT's two relay outputs.
package relay

import (
	"fmt"
	"sync"

	"iothat-go/drivers/devio"
	"iothat-go/drivers/hatio"
)

// Channels is the number of relays.
const Channels = 2

// Pins are the BCM lines of relay 1 and 2.
var Pins = [Channels]int{hatio.PinRelay1, hatio.PinRelay2}

// Controller owns both relay lines. Both are driven off on construction and
// on Close.
type Controller struct {
	mu    sync.Mutex
	pins  [Channels]hatio.OutputPin
	state [Channels]bool
}

// New takes the relay 1 and relay 2 pins and switches both off.
func New(r1, r2 hatio.OutputPin) *Controller {
	c := &Controller{pins: [Channels]hatio.OutputPin{r1, r2}}
	c.allOff()
	return c
}

func (c *Controller) allOff() {
	for i, p := range c.pins {
		if p != nil {
			p.Set(false)
		}
		c.state[i] = false
	}
}

func index(ch int) (int, error) {
	if ch < 1 || ch > Channels {
		return 0, fmt.Errorf("relay: channel %d: %w", ch, devio.ErrInvalidParams)
	}
	return ch - 1, nil
}

// Set switches relay ch (1 or 2).
func (c *Controller) Set(ch int, on bool) error {
	i, err := index(ch)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pins[i] == nil {
		return fmt.Errorf("relay: channel %d not wired: %w", ch, devio.ErrInvalidParams)
	}
	c.pins[i].Set(on)
	c.state[i] = on
	return nil
}

// Toggle inverts relay ch and returns the new state.
func (c *Controller) Toggle(ch int) (bool, error) {
	on, err := c.State(ch)
	if err != nil {
		return false, err
	}
	return !on, c.Set(ch, !on)
}

// State reports the last state written to relay ch.
func (c *Controller) State(ch int) (bool, error) {
	i, err := index(ch)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state[i], nil
}

// Close switches both relays off.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allOff()
	return nil
}
