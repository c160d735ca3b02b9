package dynip

import (
	"fmt"
	"strings"
)

// FormatUpdateTime renders minutes since the last update for display, e.g. "2 hrs 5 minutes".
// Negative values mean updates are not being sent.
func FormatUpdateTime(minutes int) string {
	if minutes < 0 {
		return "never"
	}
	if minutes == 0 {
		return "less than a minute"
	}
	days, hours, mins := minutes/(60*24), minutes/60%24, minutes%60
	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day", "days"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hr", "hrs"))
	}
	if mins > 0 {
		parts = append(parts, plural(mins, "minute", "minutes"))
	}
	return strings.Join(parts, " ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
