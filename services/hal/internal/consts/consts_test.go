package consts

import "testing"

func TestTokens(t *testing.T) {
	if TokConfig != "config" || TokHAL != "hal" || TokCapability != "capability" {
		t.Fatal("top-level tokens changed unexpectedly")
	}
	if CtrlReadNow != "read_now" || CtrlSetRate != "set_rate" {
		t.Fatal("control tokens changed unexpectedly")
	}
}

func TestPeriodBounds(t *testing.T) {
	if MinPeriodMs >= DefaultPeriodMs || DefaultPeriodMs >= MaxPeriodMs {
		t.Fatalf("period bounds out of order: %d %d %d", MinPeriodMs, DefaultPeriodMs, MaxPeriodMs)
	}
}
