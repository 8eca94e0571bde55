package types

// Config is the system configuration document. Each top-level key is
// published retained on "config/<key>".
type Config struct {
	HAL       HALConfig       `json:"hal"`
	Metrics   MetricsConfig   `json:"metrics,omitempty"`
	Heartbeat HeartbeatConfig `json:"heartbeat,omitempty"`
}

// HALConfig is supplied on topic "config/hal".
type HALConfig struct {
	I2C     []I2CBus `json:"i2c,omitempty"`
	Devices []Device `json:"devices"`
}

// I2CBus binds a logical bus id to a host bus. Name is the backend's bus
// name ("1", "/dev/i2c-1"); Number is used by backends that take an index.
type I2CBus struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Number int    `json:"number,omitempty"`
}

type Device struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Params any    `json:"params,omitempty"`
	BusRef BusRef `json:"bus_ref,omitempty"`
}

type BusRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// MetricsConfig controls the Prometheus endpoint. Empty Listen disables it.
type MetricsConfig struct {
	Listen string `json:"listen,omitempty"`
}

// HeartbeatConfig sets the liveness publication interval in seconds.
type HeartbeatConfig struct {
	IntervalS int `json:"interval_s,omitempty"`
}

// Heartbeat is published retained on "sys/heartbeat".
type Heartbeat struct {
	Seq     uint64  `json:"seq"`
	UptimeS float64 `json:"uptime_s"`
	TS      int64   `json:"ts_ms"`
}
