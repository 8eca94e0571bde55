package types

// ---- Environmental values ----

type TemperatureValue struct {
	C    float64 `json:"c"`
	TsMs int64   `json:"ts_ms"`
}

func (v TemperatureValue) Fields() map[string]float64 { return map[string]float64{"c": v.C} }

type PressureValue struct {
	Pa   float64 `json:"pa"`
	TsMs int64   `json:"ts_ms"`
}

func (v PressureValue) Fields() map[string]float64 { return map[string]float64{"pa": v.Pa} }

type HumidityValue struct {
	RH   float64 `json:"rh"`
	TsMs int64   `json:"ts_ms"`
}

func (v HumidityValue) Fields() map[string]float64 { return map[string]float64{"rh": v.RH} }

type AltitudeValue struct {
	M           float64 `json:"m"`
	SeaLevelHPa float64 `json:"sea_level_hpa"`
	TsMs        int64   `json:"ts_ms"`
}

func (v AltitudeValue) Fields() map[string]float64 { return map[string]float64{"m": v.M} }

// GasValue is a BME680 gas resistance. Valid and Stable mirror the
// sensor's gas_valid and heat_stab flags.
type GasValue struct {
	Ohm    float64 `json:"ohm"`
	Valid  bool    `json:"valid"`
	Stable bool    `json:"stable"`
	TsMs   int64   `json:"ts_ms"`
}

func (v GasValue) Fields() map[string]float64 { return map[string]float64{"ohm": v.Ohm} }

type UVValue struct {
	UVA    float64 `json:"uva"`
	UVB    float64 `json:"uvb"`
	IndexA float64 `json:"index_a"`
	IndexB float64 `json:"index_b"`
	Index  float64 `json:"index"`
	TsMs   int64   `json:"ts_ms"`
}

func (v UVValue) Fields() map[string]float64 {
	return map[string]float64{"uva": v.UVA, "uvb": v.UVB, "index": v.Index}
}
