// services/hal/internal/platform/locked.go

package platform

import (
	"sync"

	"tinygo.org/x/drivers"
)

// LockedI2C serialises Tx on a bus shared by the measure worker and
// control requests.
type LockedI2C struct {
	mu  sync.Mutex
	bus drivers.I2C
}

func NewLockedI2C(bus drivers.I2C) *LockedI2C { return &LockedI2C{bus: bus} }

func (l *LockedI2C) Tx(addr uint16, w, r []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bus.Tx(addr, w, r)
}
