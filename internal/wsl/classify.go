package wsl

import (
	"strings"
	"time"
)

// Command deadlines per operation class. Write operations cover archive
// imports and exports that legitimately run for minutes.
const (
	DefaultReadTimeout  = 15 * time.Second
	DefaultWriteTimeout = 600 * time.Second
)

// writeOps lists every wsl.exe token that mutates backing-store state.
// A token missing from this set would classify a slow mutating command as
// a read and cut it off at the short deadline.
var writeOps = map[string]struct{}{
	"--import":              {},
	"--export":              {},
	"--unregister":          {},
	"--install":             {},
	"--set-version":         {},
	"--set-default-version": {},
	"--set-default":         {},
	"-s":                    {},
	"--shutdown":            {},
	"--terminate":           {},
	"-t":                    {},
	"--mount":               {},
	"--unmount":             {},
	"--update":              {},
}

// IsWriteCommand reports whether the argument vector contains a
// state-mutating verb. Matching is case-insensitive and applies to whole
// tokens only, never substrings.
func IsWriteCommand(args []string) bool {
	for _, arg := range args {
		if _, ok := writeOps[strings.ToLower(arg)]; ok {
			return true
		}
	}
	return false
}
