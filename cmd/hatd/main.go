// Command hatd runs the IoT HAT hardware abstraction service. It publishes
// the configuration on the bus, serves sensor readings under hal/capability
// and exposes the HAL metrics over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/d2r2/go-logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"iothat-go/bus"
	"iothat-go/services/config"
	"iothat-go/services/hal"
	"iothat-go/services/heartbeat"
)

var lg = logger.NewPackageLogger("hatd", logger.InfoLevel)

// packages lists every package logger so -debug can lower them together.
var packages = []string{
	"hatd", "config", "heartbeat", "hal", "halsvc", "worker", "platform",
	"bme280", "bme680", "veml6075", "mma8491q", "apds9960", "max30100", "iomcu",
}

func main() {
	defer logger.FinalizeLogger()

	configPath := flag.String("config", "", "JSON config file (empty uses the built-in HAT config)")
	i2cBackend := flag.String("i2c", hal.BackendPeriph, "I2C backend: periph, embd or fake")
	gpioBackend := flag.String("gpio", hal.BackendRPIO, "GPIO backend: rpio, embd or fake")
	debug := flag.Bool("debug", false, "enable debug logging")
	metricsAddr := flag.String("metrics", "", "metrics listen address, overrides the config")
	monitor := flag.Bool("monitor", false, "log every hal/# publication")
	flag.Parse()

	if *debug {
		for _, p := range packages {
			if err := logger.ChangePackageLogLevel(p, logger.DebugLevel); err != nil {
				lg.Warnf("log level %s: %v", p, err)
			}
		}
	}

	if err := run(*configPath, *i2cBackend, *gpioBackend, *metricsAddr, *monitor); err != nil {
		lg.Errorf("%v", err)
		logger.FinalizeLogger()
		os.Exit(1)
	}
}

func run(configPath, i2cBackend, gpioBackend, metricsAddr string, monitor bool) error {
	cfg, _, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())

	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Listen
	}
	if metricsAddr != "" {
		srv := serveMetrics(metricsAddr, reg)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	b := bus.NewBus(16)
	halConn := b.NewConnection("hal")
	cfgConn := b.NewConnection("config")

	if monitor {
		go watch(ctx, b.NewConnection("monitor"))
	}

	done := make(chan error, 1)
	go func() {
		done <- hal.Run(ctx, halConn, hal.Options{
			I2CBackend:  i2cBackend,
			GPIOBackend: gpioBackend,
			I2C:         cfg.HAL.I2C,
			Registerer:  reg,
		})
	}()

	hb := &heartbeat.Service{Interval: time.Duration(cfg.Heartbeat.IntervalS) * time.Second}
	if err := hb.Start(ctx, b.NewConnection("heartbeat")); err != nil {
		return err
	}

	config.NewConfigService(configPath).Start(ctx, cfgConn)

	err = <-done
	lg.Info("stopped")
	return err
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Errorf("metrics: %v", err)
		}
	}()
	lg.Infof("metrics on %s/metrics", addr)
	return srv
}

func watch(ctx context.Context, conn *bus.Connection) {
	sub := conn.Subscribe(bus.T("hal", "#"))
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-sub.Channel():
			lg.Infof("<- %s %+v", m.Topic, m.Payload)
		}
	}
}
