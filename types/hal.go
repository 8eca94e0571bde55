package types

// ---- Common HAL state (retained) ----

type HALState struct {
	Level  string `json:"level"`  // "idle", "ready", "error", "stopped"
	Status string `json:"status"` // short code
	Error  string `json:"error,omitempty"`
	TsMs   int64  `json:"ts_ms"`
}

// Link is the link/state reported for a capability.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

type CapabilityState struct {
	Link  Link   `json:"link"`
	TsMs  int64  `json:"ts_ms"`
	Error string `json:"error,omitempty"` // errcode.Code
}

// ---- Control payloads and replies ----

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type ReadNowAck struct {
	OK bool `json:"ok"`
}

type SetRate struct {
	PeriodMs int `json:"period_ms"`
}

type SetRateAck struct {
	OK       bool `json:"ok"`
	PeriodMs int  `json:"period_ms"`
}
