//go:build !windows

package autostart

import "errors"

// SetSelfEnabled needs the Windows Run key; elsewhere it is a no-op
// error so callers can degrade gracefully.
func (w *Writer) SetSelfEnabled(enable, silent bool) error {
	return errors.New("dashboard autostart is only available on windows")
}

func (w *Writer) SelfEnabled() bool { return false }
