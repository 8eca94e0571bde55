// services/hal/hal.go

// Package hal runs the HAT hardware abstraction service: it opens the I²C
// buses and GPIO for the chosen backends, builds the devices named on
// config/hal and publishes their capabilities under hal/capability.
package hal

import (
	"context"
	"io"

	"github.com/d2r2/go-logger"
	"github.com/prometheus/client_golang/prometheus"
	"tinygo.org/x/drivers"

	"iothat-go/bus"
	_ "iothat-go/services/hal/internal/devices/all"
	"iothat-go/services/hal/internal/halcore"
	"iothat-go/services/hal/internal/metrics"
	"iothat-go/services/hal/internal/platform"
	"iothat-go/services/hal/internal/service"
	"iothat-go/types"
)

var lg = logger.NewPackageLogger("hal", logger.InfoLevel)

// Backend names.
const (
	BackendPeriph = platform.BackendPeriph
	BackendEmbd   = platform.BackendEmbd
	BackendRPIO   = platform.BackendRPIO
	BackendFake   = platform.BackendFake
)

// Options selects the hardware backends. Zero values take periph for I²C
// and rpio for GPIO.
type Options struct {
	I2CBackend  string
	GPIOBackend string
	// I2C lists the buses to open; empty opens "i2c1" on bus 1.
	I2C []types.I2CBus
	// Registerer receives the HAL collectors; nil disables metrics.
	Registerer prometheus.Registerer
	Worker     halcore.WorkerConfig
}

// Run opens the hardware and serves until ctx is cancelled. It returns an
// error only if a backend cannot be opened.
func Run(ctx context.Context, conn *bus.Connection, opts Options) error {
	if opts.I2CBackend == "" {
		opts.I2CBackend = BackendPeriph
	}
	if opts.GPIOBackend == "" {
		opts.GPIOBackend = BackendRPIO
	}

	var m *metrics.Metrics
	if opts.Registerer != nil {
		m = metrics.New(opts.Registerer)
	}

	buses, err := platform.OpenI2C(opts.I2CBackend, opts.I2C, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := buses.Close(); err != nil {
			lg.Warnf("closing i2c: %v", err)
		}
	}()

	pins, closePins, err := platform.OpenPins(opts.GPIOBackend)
	if err != nil {
		return err
	}
	defer func() {
		if err := closePins(); err != nil {
			lg.Warnf("closing gpio: %v", err)
		}
	}()

	svc := service.New(conn, service.Options{Buses: buses, Pins: pins, Metrics: m, Worker: opts.Worker})
	if opts.Registerer != nil {
		metrics.RegisterISRDrops(opts.Registerer, svc.GPIODrops)
	}
	lg.Infof("hal running (i2c %s, gpio %s)", opts.I2CBackend, opts.GPIOBackend)
	svc.Run(ctx)
	return nil
}

// OpenBus opens a single host I²C bus for direct driver use. The returned
// closer releases it.
func OpenBus(backend string, number int) (drivers.I2C, io.Closer, error) {
	if backend == "" {
		backend = BackendPeriph
	}
	f, err := platform.OpenI2C(backend, []types.I2CBus{{ID: "i2c", Number: number}}, nil)
	if err != nil {
		return nil, nil, err
	}
	b, _ := f.ByID("i2c")
	return b, f, nil
}
