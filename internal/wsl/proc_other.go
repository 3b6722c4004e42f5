//go:build !windows

package wsl

import "syscall"

// HiddenConsoleAttr is a no-op where there is no console window to hide.
func HiddenConsoleAttr() *syscall.SysProcAttr { return nil }
