package verdict

import (
	"fmt"
	"time"
)

// FormatElapsed renders a duration for display: "500ms" under a second,
// "2.35s" under a minute, "1m 15.4s" otherwise.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Second:
		ms := (d + 500*time.Microsecond) / time.Millisecond
		if ms < 1000 {
			return fmt.Sprintf("%dms", ms)
		}
		d = time.Second
		fallthrough
	case d < time.Minute:
		cs := (d + 5*time.Millisecond) / (10 * time.Millisecond)
		if cs < 6000 {
			return fmt.Sprintf("%d.%02ds", cs/100, cs%100)
		}
		d = time.Minute
	}
	mins := d / time.Minute
	ds := (d - mins*time.Minute + 50*time.Millisecond) / (100 * time.Millisecond)
	if ds >= 600 {
		mins++
		ds -= 600
	}
	return fmt.Sprintf("%dm %d.%ds", mins, ds/10, ds%10)
}
