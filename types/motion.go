package types

// ---- Motion, light, biometrics ----

type AccelerationValue struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	TsMs int64   `json:"ts_ms"`
}

func (v AccelerationValue) Fields() map[string]float64 {
	return map[string]float64{"x": v.X, "y": v.Y, "z": v.Z}
}

type LightValue struct {
	Clear uint16 `json:"clear"`
	R     uint16 `json:"r"`
	G     uint16 `json:"g"`
	B     uint16 `json:"b"`
	TsMs  int64  `json:"ts_ms"`
}

func (v LightValue) Fields() map[string]float64 {
	return map[string]float64{"clear": float64(v.Clear), "r": float64(v.R), "g": float64(v.G), "b": float64(v.B)}
}

type ProximityValue struct {
	Count uint8 `json:"count"`
	TsMs  int64 `json:"ts_ms"`
}

func (v ProximityValue) Fields() map[string]float64 {
	return map[string]float64{"count": float64(v.Count)}
}

// LightMode is the apds9960 set_mode control payload and reply.
type LightMode struct {
	Ambient   bool `json:"ambient"`
	Proximity bool `json:"proximity"`
	Gesture   bool `json:"gesture"`
}

type PulseValue struct {
	IR        float64 `json:"ir"`
	Red       float64 `json:"red"`
	Samples   int     `json:"samples"`
	HeartRate float64 `json:"heart_rate"`
	DieC      float64 `json:"die_c"`
	TsMs      int64   `json:"ts_ms"`
}

func (v PulseValue) Fields() map[string]float64 {
	return map[string]float64{"ir": v.IR, "red": v.Red, "heart_rate": v.HeartRate, "die_c": v.DieC}
}
