package types

// Kind names a capability on hal/capability/<kind>/<id>/...
type Kind = string

const (
	KindTemperature  Kind = "temperature"
	KindPressure     Kind = "pressure"
	KindHumidity     Kind = "humidity"
	KindAltitude     Kind = "altitude"
	KindGas          Kind = "gas"
	KindUV           Kind = "uv"
	KindAcceleration Kind = "acceleration"
	KindTilt         Kind = "tilt"
	KindLight        Kind = "light"
	KindProximity    Kind = "proximity"
	KindPulse        Kind = "pulse"
	KindAnalog       Kind = "analog"
	KindIR           Kind = "ir"
	KindRelay        Kind = "relay"
	KindInput        Kind = "input"
)

// Info is the retained info document for a capability.
type Info struct {
	SchemaVersion int    `json:"schema_version"`
	Driver        string `json:"driver"`
	Unit          string `json:"unit,omitempty"`
	Bus           string `json:"bus,omitempty"`
	Addr          uint16 `json:"addr,omitempty"`
	Pins          []int  `json:"pins,omitempty"`
}

// Fielder is implemented by value payloads that expose numeric fields,
// used for metrics export.
type Fielder interface {
	Fields() map[string]float64
}
