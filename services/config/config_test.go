package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"iothat-go/bus"
)

func collect(t *testing.T, sub *bus.Subscription, want int) map[string]any {
	t.Helper()
	got := map[string]any{}
	deadline := time.After(600 * time.Millisecond)
	for len(got) < want {
		select {
		case m := <-sub.Channel():
			if len(m.Topic) != 2 || m.Topic[0] != configPrefix || !m.Retained {
				t.Fatalf("unexpected message %v retained=%v", m.Topic, m.Retained)
			}
			got[m.Topic[1].(string)] = m.Payload
		case <-deadline:
			t.Fatalf("got %d of %d keys: %v", len(got), want, got)
		}
	}
	return got
}

func TestPublishEmbeddedRetainedPerKey(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		if device != "pico" {
			return nil, false
		}
		return []byte(`{"mode": "dev", "debug": true, "region": {"code": "eu"}}`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	ctx := context.WithValue(context.Background(), CtxDeviceKey, "pico")
	if err := NewConfigService("").publishConfig(ctx, conn); err != nil {
		t.Fatal(err)
	}

	sub := conn.Subscribe(bus.T(configPrefix, bus.MultiWild))
	got := collect(t, sub, 3)
	if got["mode"] != "dev" || got["debug"] != true {
		t.Fatalf("scalars = %v", got)
	}
	if r, ok := got["region"].(map[string]any); !ok || r["code"] != "eu" {
		t.Fatalf("region = %#v", got["region"])
	}
}

func TestPublishFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hat.json")
	if err := os.WriteFile(path, []byte(`{"hal": {"devices": []}, "metrics": {"listen": ":1"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	sub := conn.Subscribe(bus.T(configPrefix, bus.MultiWild))
	NewConfigService(path).Start(context.Background(), conn)
	got := collect(t, sub, 2)
	if _, ok := got["hal"].(map[string]any); !ok {
		t.Fatalf("hal = %#v", got["hal"])
	}
}

func TestPublishErrors(t *testing.T) {
	conn := bus.NewBus(4).NewConnection("test-config")
	ctx := context.WithValue(context.Background(), CtxDeviceKey, "nope")
	if err := NewConfigService("").publishConfig(ctx, conn); err == nil {
		t.Fatal("unknown embedded device accepted")
	}
	path := filepath.Join(t.TempDir(), "list.json")
	if err := os.WriteFile(path, []byte(`[1, 2]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := NewConfigService(path).publishConfig(context.Background(), conn); err == nil {
		t.Fatal("non-object config accepted")
	}
}

func TestLoadDefault(t *testing.T) {
	cfg, raw, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) == 0 || len(cfg.HAL.I2C) != 1 || cfg.HAL.I2C[0].Number != 1 {
		t.Fatalf("i2c = %+v", cfg.HAL.I2C)
	}
	if len(cfg.HAL.Devices) != 9 || cfg.Metrics.Listen != ":9108" {
		t.Fatalf("config = %+v", cfg)
	}
	if d := cfg.HAL.Devices[0]; d.ID != "env0" || d.Type != "bme280" || d.BusRef.ID != "i2c1" {
		t.Fatalf("first device = %+v", d)
	}
}

func TestLoadBadFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("missing file accepted")
	}
}
