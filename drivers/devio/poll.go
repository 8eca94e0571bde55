package devio

import "time"

// Busy-poll defaults for measurement completion.
const (
	DefaultPollInterval = time.Millisecond
	DefaultPollAttempts = 500
)

// sleep is swapped in tests.
var sleep = time.Sleep

// PollUntil calls done up to attempts times, sleeping interval after each
// call that reports false. A done error ends the loop immediately. Exhausting
// the budget returns ErrMeasureTimeout.
func PollUntil(attempts int, interval time.Duration, done func() (bool, error)) error {
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}
	for i := 0; i < attempts; i++ {
		ok, err := done()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		sleep(interval)
	}
	return ErrMeasureTimeout
}

// PollBitsClear polls reg until every bit in mask reads zero.
func (d *Dev) PollBitsClear(reg, mask byte, attempts int, interval time.Duration) error {
	return PollUntil(attempts, interval, func() (bool, error) {
		v, err := d.ReadU8(reg)
		if err != nil {
			return false, err
		}
		return v&mask == 0, nil
	})
}

// PollBitsSet polls reg until every bit in mask reads one.
func (d *Dev) PollBitsSet(reg, mask byte, attempts int, interval time.Duration) error {
	return PollUntil(attempts, interval, func() (bool, error) {
		v, err := d.ReadU8(reg)
		if err != nil {
			return false, err
		}
		return v&mask == mask, nil
	})
}
