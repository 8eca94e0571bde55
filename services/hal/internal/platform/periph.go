// services/hal/internal/platform/periph.go

package platform

import (
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var hostInit struct {
	once sync.Once
	err  error
}

// OpenPeriphI2C opens a bus from the periph registry. name is what i2creg
// accepts: "1", "/dev/i2c-1", "I2C1" or "" for the first bus.
func OpenPeriphI2C(name string) (i2c.BusCloser, error) {
	hostInit.once.Do(func() {
		_, hostInit.err = host.Init()
	})
	if hostInit.err != nil {
		return nil, hostInit.err
	}
	return i2creg.Open(name)
}
