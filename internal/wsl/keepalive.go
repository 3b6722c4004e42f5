package wsl

import (
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// KeepAliveRunning reports whether a keep-alive placeholder for the distro
// already exists on the host, so a start does not stack duplicates.
func (e *Executor) KeepAliveRunning(name string) bool {
	procs, err := process.Processes()
	if err != nil {
		return false
	}
	toolName := filepath.Base(e.binary)
	want := []string{"-d", name, "--", "sleep", "infinity"}
	for _, p := range procs {
		exe, err := p.Name()
		if err != nil || !strings.EqualFold(exe, toolName) {
			continue
		}
		args, err := p.CmdlineSlice()
		if err != nil {
			continue
		}
		if containsSeq(args, want) {
			return true
		}
	}
	return false
}

// containsSeq reports whether want appears as a contiguous subsequence of
// args.
func containsSeq(args, want []string) bool {
	if len(want) == 0 || len(args) < len(want) {
		return false
	}
	for i := 0; i+len(want) <= len(args); i++ {
		match := true
		for j := range want {
			if args[i+j] != want[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
