package config

// DefaultDevice names the embedded config used when no file is given.
const DefaultDevice = "iothat"

// cfgIoTHAT brings up every sensor and IO group on the HAT.
const cfgIoTHAT = `{
  "hal": {
    "i2c": [{"id": "i2c1", "number": 1}],
    "devices": [
      {"id": "env0",   "type": "bme280",       "bus_ref": {"type": "i2c", "id": "i2c1"}},
      {"id": "uv0",    "type": "veml6075",     "bus_ref": {"type": "i2c", "id": "i2c1"}},
      {"id": "accel0", "type": "mma8491q",     "bus_ref": {"type": "i2c", "id": "i2c1"}},
      {"id": "light0", "type": "apds9960",     "bus_ref": {"type": "i2c", "id": "i2c1"}},
      {"id": "ain0",   "type": "iomcu_analog", "bus_ref": {"type": "i2c", "id": "i2c1"}},
      {"id": "ir0",    "type": "iomcu_ir",     "bus_ref": {"type": "i2c", "id": "i2c1"}},
      {"id": "relay0", "type": "relay"},
      {"id": "pir0",   "type": "pir"},
      {"id": "din0",   "type": "digital_in"}
    ]
  },
  "metrics": {"listen": ":9108"},
  "heartbeat": {"interval_s": 30}
}`

var embeddedConfigs = map[string][]byte{
	DefaultDevice: []byte(cfgIoTHAT),
}
