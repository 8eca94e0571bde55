// services/hal/internal/consts/consts.go
package consts

// Top-level topics
const (
	TokConfig     = "config"
	TokHAL        = "hal"
	TokCapability = "capability"
	TokInfo       = "info"
	TokState      = "state"
	TokValue      = "value"
	TokControl    = "control"
	TokEvent      = "event"
)

// Control verbs
const (
	CtrlReadNow = "read_now"
	CtrlSetRate = "set_rate"
	CtrlSet     = "set"
	CtrlGet     = "get"
	CtrlSend    = "send"
	CtrlSetMode = "set_mode"
	CtrlGetMode = "get_mode"
)

const (
	LinkUp       = "up"
	LinkDown     = "down"
	LinkDegraded = "degraded"
)

// Sampling bounds.
const (
	MinPeriodMs     = 200
	MaxPeriodMs     = 3_600_000
	FirstReadDelay  = 200 // ms after configuration
	DefaultPeriodMs = 2000
)
