//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly && !windows
// +build !linux,!darwin,!freebsd,!netbsd,!openbsd,!dragonfly,!windows

package cli

// IsTerminal reports whether fd refers to a terminal. Platforms without
// a known probe report false, which keeps output uncolored.
func IsTerminal(fd uintptr) bool {
	return false
}
