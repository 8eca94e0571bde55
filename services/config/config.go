// Package config publishes the system configuration on the bus. Each
// top-level key of the JSON document is published retained on
// "config/<key>".
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/d2r2/go-logger"

	"iothat-go/bus"
	"iothat-go/types"
)

var lg = logger.NewPackageLogger("config", logger.InfoLevel)

const (
	serviceName  = "config"
	configPrefix = "config"
	CtxDeviceKey = "device" // context key used for the embedded config name
)

// EmbeddedConfigLookup allows overriding how built-in configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// Load reads and decodes a config file. An empty path returns the embedded
// default for the HAT.
func Load(path string) (types.Config, []byte, error) {
	raw, err := readRaw(path, DefaultDevice)
	if err != nil {
		return types.Config{}, nil, err
	}
	var cfg types.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return types.Config{}, nil, fmt.Errorf("config %s: %w", source(path), err)
	}
	return cfg, raw, nil
}

func readRaw(path, device string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return nil, errors.New("no embedded config for device: " + device)
	}
	return raw, nil
}

func source(path string) string {
	if path == "" {
		return "(embedded)"
	}
	return path
}

// ConfigService publishes a config document once at start.
type ConfigService struct {
	Name string
	// Path is the JSON file to publish. Empty uses the embedded config
	// named by CtxDeviceKey in the start context, or DefaultDevice.
	Path string
}

func NewConfigService(path string) *ConfigService {
	return &ConfigService{Name: serviceName, Path: path}
}

func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		device = DefaultDevice
	}
	raw, err := readRaw(s.Path, device)
	if err != nil {
		return err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("config %s is not a JSON object: %w", source(s.Path), err)
	}
	for k, v := range m {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("config key %q: %w", k, err)
		}
		conn.Publish(&bus.Message{
			Topic:    bus.T(configPrefix, k),
			Payload:  val,
			Retained: true,
		})
	}
	lg.Infof("published %d config keys from %s", len(m), source(s.Path))
	return nil
}

// Start launches the publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			lg.Errorf("publish: %v", err)
		}
	}()
}
