// Command hatread reads one HAT sensor once and prints its values in
// physical units.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/d2r2/go-logger"
	"tinygo.org/x/drivers"

	"iothat-go/drivers/apds9960"
	"iothat-go/drivers/bme280"
	"iothat-go/drivers/bme680"
	"iothat-go/drivers/max30100"
	"iothat-go/drivers/veml6075"
	"iothat-go/services/hal"
)

var readers = map[string]func(drivers.I2C) error{
	"bme280":   readBME280,
	"bme680":   readBME680,
	"veml6075": readVEML6075,
	"max30100": readMAX30100,
	"apds9960": readAPDS9960,
}

func main() {
	defer logger.FinalizeLogger()

	sensor := flag.String("sensor", "bme280", "bme280, bme680, veml6075, max30100 or apds9960")
	busNum := flag.Int("bus", 1, "I2C bus number")
	backend := flag.String("backend", hal.BackendPeriph, "I2C backend: periph, embd or fake")
	flag.Parse()

	read, ok := readers[*sensor]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown sensor %q\n", *sensor)
		os.Exit(2)
	}
	bus, closer, err := hal.OpenBus(*backend, *busNum)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	err = read(bus)
	_ = closer.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", *sensor, err)
		logger.FinalizeLogger()
		os.Exit(1)
	}
}

func readBME280(bus drivers.I2C) error {
	d := bme280.New(bus, bme280.Config{})
	defer d.Close()
	m, err := d.Read()
	if err != nil {
		return err
	}
	alt, _ := m.Altitude(1013.25)
	fmt.Printf("temperature %.2f C\npressure %.2f hPa\nhumidity %.2f %%RH\naltitude %.1f m\n",
		m.Temperature, m.Pressure/100, m.Humidity, alt)
	return nil
}

func readBME680(bus drivers.I2C) error {
	d := bme680.New(bus, bme680.Config{})
	defer d.Close()
	m, err := d.Read(true)
	if err != nil {
		return err
	}
	fmt.Printf("temperature %.2f C\npressure %.2f hPa\nhumidity %.2f %%RH\n",
		m.Temperature, m.Pressure/100, m.Humidity)
	if m.GasValid && m.HeatStable {
		fmt.Printf("gas resistance %.0f Ohm\n", m.GasResistance)
	} else {
		fmt.Println("gas resistance unavailable")
	}
	return nil
}

func readVEML6075(bus drivers.I2C) error {
	d := veml6075.New(bus, veml6075.Config{})
	defer d.Close()
	r, err := d.ReadRaw()
	if err != nil {
		return err
	}
	c := d.Coefficients()
	fmt.Printf("uva %.2f\nuvb %.2f\nuv index %.2f\n", c.UVA(r), c.UVB(r), c.AverageUVIndex(r))
	return nil
}

func readMAX30100(bus drivers.I2C) error {
	d := max30100.New(bus, max30100.Config{})
	defer d.Close()
	// let the FIFO collect a few samples
	time.Sleep(100 * time.Millisecond)
	a, err := d.ReadAverages()
	if err != nil {
		return err
	}
	fmt.Printf("ir %.1f\nred %.1f\nsamples %d\n", a.IR, a.Red, a.N)
	if t, err := d.ReadTemperature(); err == nil {
		fmt.Printf("die temperature %.2f C\n", t)
	}
	return nil
}

func readAPDS9960(bus drivers.I2C) error {
	d := apds9960.New(bus, apds9960.Config{})
	defer d.Close()
	c, err := d.ReadAmbient()
	if err != nil {
		return err
	}
	rgb, err := d.ReadRGB()
	if err != nil {
		return err
	}
	p, err := d.ReadProximity()
	if err != nil {
		return err
	}
	fmt.Printf("clear %d\nred %d\ngreen %d\nblue %d\nproximity %d\n", c, rgb.R, rgb.G, rgb.B, p)
	return nil
}
