package codec

import (
	"fmt"
	"time"
)

// TimeRFC3339 returns a Swap that converts between time.Time and RFC3339
// strings. Output is normalized to UTC with RFC3339Nano (trailing zeros
// trimmed); input accepts both RFC3339Nano and RFC3339.
func TimeRFC3339() Swap {
	return WithFormat(New("rfc3339", encodeRFC3339, parseRFC3339), "date-time")
}

// TimeUnix returns a Swap that converts between time.Time and whole epoch
// seconds. It is not part of Defaults; declare it per property with
// swap=unix.
func TimeUnix() Swap {
	return New("unix",
		func(t time.Time) (int64, error) { return t.Unix(), nil },
		func(s int64) (time.Time, error) { return time.Unix(s, 0).UTC(), nil },
	)
}

func encodeRFC3339(t time.Time) (string, error) {
	return formatRFC3339Canonical(t), nil
}

func parseRFC3339(s string) (time.Time, error) {
	// Accept RFC3339Nano (trailing zeros optional)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2, nil
		}
		return time.Time{}, fmt.Errorf("codec: invalid RFC3339 time %q: %w", s, err)
	}
	return t, nil
}

func formatRFC3339Canonical(t time.Time) string {
	// Normalize to UTC and format using RFC3339Nano (Go trims trailing zeros)
	return t.UTC().Format(time.RFC3339Nano)
}
