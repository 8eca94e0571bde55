package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Ms converts a millisecond count to a Duration.
func Ms[T ~int | ~uint16 | ~uint32 | ~int64](n T) time.Duration {
	return time.Duration(n) * time.Millisecond
}
