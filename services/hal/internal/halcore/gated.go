// services/hal/internal/halcore/gated.go
package halcore

import "iothat-go/drivers/devio"

// Gated is a driver that initialises in the background.
type Gated interface {
	State() devio.State
	InitErr() error
}

// Ready converts a driver's init gate into a worker error: nil when ready,
// the init failure if init failed, ErrNotReady while still initialising.
// Adaptors call it before any bus traffic so a Trigger never blocks on the
// gate budget.
func Ready(g Gated) error {
	if g.State() == devio.Ready {
		return nil
	}
	if err := g.InitErr(); err != nil {
		return err
	}
	return ErrNotReady
}
