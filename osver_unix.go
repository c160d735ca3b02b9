//go:build linux || darwin || freebsd

package dynip

import (
	"strings"

	"golang.org/x/sys/unix"
)

// osVersion returns "major.minor" of the running kernel.
func osVersion() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return ""
	}
	return majorMinor(unix.ByteSliceToString(u.Release[:]))
}

func majorMinor(release string) string {
	parts := strings.SplitN(release, ".", 3)
	if len(parts) < 2 {
		return ""
	}
	minor := parts[1]
	if i := strings.IndexFunc(minor, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		minor = minor[:i]
	}
	return parts[0] + "." + minor
}
