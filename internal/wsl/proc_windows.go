//go:build windows

package wsl

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// HiddenConsoleAttr suppresses the transient console window that child
// process creation would otherwise flash on the desktop.
func HiddenConsoleAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
}
